package lora

import "testing"

func TestDecryptFramePayloadVector(t *testing.T) {
	phy, err := ParsePHYHex("40F17DBE4900020001954378762B11FF0D")
	if err != nil {
		t.Fatalf("ParsePHYHex: %v", err)
	}
	appSKey, err := ParseFrameKeyHex("ec925802ae430ca77fd3dd73cb2cc588")
	if err != nil {
		t.Fatalf("ParseFrameKeyHex: %v", err)
	}

	plaintext, err := appSKey.ApplyToFrame(phy, 0)
	if err != nil {
		t.Fatalf("ApplyToFrame: %v", err)
	}
	if string(plaintext) != "test" {
		t.Errorf("decrypted payload = %q, want \"test\"", plaintext)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := ParseFrameKeyHex("00112233445566778899aabbccddeeff")
	if err != nil {
		t.Fatalf("ParseFrameKeyHex: %v", err)
	}
	plaintext := []byte("a longer payload spanning more than one AES block of data")

	encrypted, err := key.Apply(plaintext, Uplink, 0x12345678, 42)
	if err != nil {
		t.Fatalf("Apply (encrypt): %v", err)
	}
	decrypted, err := key.Apply(encrypted, Uplink, 0x12345678, 42)
	if err != nil {
		t.Fatalf("Apply (decrypt): %v", err)
	}
	if string(decrypted) != string(plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", decrypted, plaintext)
	}
}

func TestComputeMICVector(t *testing.T) {
	phy, err := ParsePHYHex("40F17DBE4900020001954378762B11FF0D")
	if err != nil {
		t.Fatalf("ParsePHYHex: %v", err)
	}
	nwkSKey, err := ParseFrameKeyHex("44024241ed4ce9a68c6a8bc055233fd3")
	if err != nil {
		t.Fatalf("ParseFrameKeyHex: %v", err)
	}

	mic, err := nwkSKey.ComputeMIC(phy, 0)
	if err != nil {
		t.Fatalf("ComputeMIC: %v", err)
	}
	if mic != 0x0DFF112B {
		t.Errorf("MIC = %#08x, want 0x0dff112b", mic)
	}

	ok, err := nwkSKey.CheckMIC(phy, 0)
	if err != nil {
		t.Fatalf("CheckMIC: %v", err)
	}
	if !ok {
		t.Error("expected CheckMIC to succeed")
	}
}
