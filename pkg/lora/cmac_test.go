package lora

import (
	"bytes"
	"testing"
)

func mustKey(t *testing.T, hexKey string) [blockSize]byte {
	t.Helper()
	buf, err := ParseHexadecimal(hexKey)
	if err != nil {
		t.Fatalf("ParseHexadecimal: %v", err)
	}
	var k [blockSize]byte
	copy(k[:], buf)
	return k
}

func mustBytes(t *testing.T, hexMsg string) []byte {
	t.Helper()
	buf, err := ParseHexadecimal(hexMsg)
	if err != nil {
		t.Fatalf("ParseHexadecimal: %v", err)
	}
	return buf
}

// RFC 4493 test vectors, quoted verbatim by the source specification.
func TestComputeCMACRFC4493Vectors(t *testing.T) {
	key := mustKey(t, "2b7e151628aed2a6abf7158809cf4f3c")

	cases := []struct {
		name string
		msg  string
		want string
	}{
		{"empty", "", "BB1D6929E95937287FA37D129B756746"},
		{"one block", "6bc1bee22e409f96e93d7e117393172a", "070A16B46B4D4144F79BDD9DD04A287C"},
		{
			"40 bytes",
			"6bc1bee22e409f96e93d7e117393172a" +
				"ae2d8a571e03ac9c9eb76fac45af8e51" +
				"30c81c46a35ce411",
			"DFA66747DE9AE63030CA32611497C827",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			msg := mustBytes(t, c.msg)
			got, err := ComputeCMAC(key, msg)
			if err != nil {
				t.Fatalf("ComputeCMAC: %v", err)
			}
			want := mustBytes(t, c.want)
			if !bytes.Equal(got[:], want) {
				t.Errorf("CMAC(%s) = %X, want %s", c.name, got, c.want)
			}
		})
	}
}
