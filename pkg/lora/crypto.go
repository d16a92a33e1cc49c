package lora

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/abrandao/iotseries/pkg/ierrors"
)

// FrameKey is a 128-bit AppSKey or NwkSKey used to crypt a frame's
// payload and to compute/check its MIC.
type FrameKey [blockSize]byte

// ParseFrameKeyHex parses a 32-character hexadecimal key.
func ParseFrameKeyHex(s string) (FrameKey, error) {
	buf, err := ParseHexadecimal(s)
	if err != nil {
		return FrameKey{}, err
	}
	if len(buf) != blockSize {
		return FrameKey{}, ierrors.New(ierrors.BadInput, "encryption keys must have 128 bits")
	}
	var k FrameKey
	copy(k[:], buf)
	return k, nil
}

func (k FrameKey) String() string { return FormatHexadecimal(k[:], false) }

// prepareMainBlock builds the 16-byte block shared by the session-key
// generator and the MIC's B0, per FrameEncryptionKey::PrepareMainBlock.
func prepareMainBlock(direction MessageDirection, deviceAddress uint32, frameCounter uint32, headerByte, trailerByte byte) [blockSize]byte {
	var block [blockSize]byte
	block[0] = headerByte
	if direction == Downlink {
		block[5] = 1
	}
	binary.LittleEndian.PutUint32(block[6:10], deviceAddress)
	binary.LittleEndian.PutUint32(block[10:14], frameCounter)
	block[15] = trailerByte
	return block
}

// Apply XORs source with the AES-CTR-like keystream LoRaWAN derives
// from key/direction/deviceAddress/frameCounter, per
// FrameEncryptionKey::Apply. Encryption and decryption are the same
// operation.
func (k FrameKey) Apply(source []byte, direction MessageDirection, deviceAddress uint32, frameCounter uint32) ([]byte, error) {
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, err
	}

	blocks := ceilingDivision(len(source), blockSize)
	mainBlock := prepareMainBlock(direction, deviceAddress, frameCounter, 0x01, 0)

	keystream := make([]byte, blocks*blockSize)
	for i := 0; i < blocks; i++ {
		mainBlock[15] = byte(i + 1)
		block.Encrypt(keystream[i*blockSize:(i+1)*blockSize], mainBlock[:])
	}

	out := make([]byte, len(source))
	for i := range out {
		out[i] = source[i] ^ keystream[i]
	}
	return out, nil
}

// ApplyToFrame decrypts (or encrypts) phy's FRMPayload and returns the
// result as a new slice, leaving phy unchanged. It resolves the 32-bit frame counter from the MAC payload's 16-bit
// counter plus the caller-supplied high 16 bits.
func (k FrameKey) ApplyToFrame(phy PHYPayload, highFrameCounter uint16) ([]byte, error) {
	mac, err := ParseMACFromPHY(phy)
	if err != nil {
		return nil, err
	}
	frameCounter := uint32(mac.FrameCounter()) | uint32(highFrameCounter)<<16
	return k.Apply(mac.FramePayload(), phy.Direction(), mac.DeviceAddress(), frameCounter)
}

// ComputeMIC computes phy's message integrity code using NwkSKey k,
// per FrameEncryptionKey::ComputeMIC.
func (k FrameKey) ComputeMIC(phy PHYPayload, highFrameCounter uint16) (uint32, error) {
	mac, err := ParseMACFromPHY(phy)
	if err != nil {
		return 0, err
	}
	frameCounter := uint32(mac.FrameCounter()) | uint32(highFrameCounter)<<16

	fhdr := mac.FHDR()
	frame := mac.FramePayload()
	fport := mac.FPort()

	msgSize := 1 + len(fhdr) + 1 + len(frame)
	if msgSize > 255 {
		return 0, ierrors.New(ierrors.Protocol, "message too long for MIC computation")
	}

	b0 := prepareMainBlock(phy.Direction(), mac.DeviceAddress(), frameCounter, 0x49, byte(msgSize))

	msg := make([]byte, 0, blockSize+msgSize)
	msg = append(msg, b0[:]...)
	msg = append(msg, phy.MHDR())
	msg = append(msg, fhdr...)
	msg = append(msg, fport)
	msg = append(msg, frame...)

	cmac, err := ComputeCMAC([blockSize]byte(k), msg)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(cmac[:4]), nil
}

// CheckMIC reports whether phy's embedded MIC matches ComputeMIC.
func (k FrameKey) CheckMIC(phy PHYPayload, highFrameCounter uint16) (bool, error) {
	computed, err := k.ComputeMIC(phy, highFrameCounter)
	if err != nil {
		return false, err
	}
	return computed == phy.MIC(), nil
}
