// Package lora implements the LoRaWAN 1.0.x PHY/MAC frame parsing,
// AES-CTR payload crypto, and RFC 4493 AES-CMAC used to compute and
// check a frame's MIC. Grounded on original_source/Framework/LoRa
// (PHYPayload.cpp, MACPayload.cpp, FrameEncryptionKey.cpp,
// UnsignedInteger128.cpp, LoRaToolbox.cpp).
package lora

import (
	"fmt"

	"github.com/abrandao/iotseries/pkg/ierrors"
)

// ParseHexadecimal decodes a hexadecimal string into raw bytes, the Go
// counterpart of LoRaToolbox::ParseHexadecimal.
func ParseHexadecimal(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, ierrors.New(ierrors.BadInput, "hexadecimal string must have an even number of characters")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexNibble(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

// FormatHexadecimal is the inverse of ParseHexadecimal.
func FormatHexadecimal(buf []byte, upcase bool) string {
	alphabet := "0123456789abcdef"
	if upcase {
		alphabet = "0123456789ABCDEF"
	}
	out := make([]byte, len(buf)*2)
	for i, b := range buf {
		out[2*i] = alphabet[b>>4]
		out[2*i+1] = alphabet[b&0x0f]
	}
	return string(out)
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	case c >= '0' && c <= '9':
		return c - '0', nil
	default:
		return 0, ierrors.New(ierrors.BadInput, fmt.Sprintf("not a hexadecimal character: %q", c))
	}
}
