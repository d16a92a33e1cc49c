package lora

import (
	"encoding/binary"

	"github.com/abrandao/iotseries/pkg/ierrors"
)

// MessageType is the 3-bit MHDR type field.
type MessageType uint8

const (
	JoinRequest MessageType = iota
	JoinAccept
	UnconfirmedDataUp
	UnconfirmedDataDown
	ConfirmedDataUp
	ConfirmedDataDown
	Reserved
	Proprietary
)

// MessageDirection is derived from a data frame's MessageType.
type MessageDirection int

const (
	Uplink MessageDirection = iota
	Downlink
)

// Direction returns t's message direction. Only defined for the four
// data frame types; callers must not call this on JoinRequest/
// JoinAccept/Reserved/Proprietary.
func (t MessageType) Direction() MessageDirection {
	switch t {
	case UnconfirmedDataUp, ConfirmedDataUp:
		return Uplink
	case UnconfirmedDataDown, ConfirmedDataDown:
		return Downlink
	default:
		return Uplink
	}
}

// HasMACPayload reports whether t carries a MAC payload (the four data
// frame types).
func (t MessageType) HasMACPayload() bool {
	switch t {
	case UnconfirmedDataUp, UnconfirmedDataDown, ConfirmedDataUp, ConfirmedDataDown:
		return true
	default:
		return false
	}
}

// PHYPayload is a parsed LoRaWAN PHY frame:
// MHDR(1) | MACPayload(n) | MIC(4, little-endian).
type PHYPayload struct {
	buffer []byte
	mhdr   byte
	typ    MessageType
	rfu    uint8
	major  uint8
	mic    uint32
}

// ParsePHYHex parses a hex-encoded PHY frame.
func ParsePHYHex(s string) (PHYPayload, error) {
	buf, err := ParseHexadecimal(s)
	if err != nil {
		return PHYPayload{}, err
	}
	return ParsePHYBuffer(buf)
}

// ParsePHYBuffer parses a raw PHY frame.
func ParsePHYBuffer(buf []byte) (PHYPayload, error) {
	if len(buf) < 5 {
		return PHYPayload{}, ierrors.New(ierrors.Protocol, "too short PHY payload")
	}

	mhdr := buf[0]
	p := PHYPayload{
		buffer: buf,
		mhdr:   mhdr,
		typ:    MessageType(mhdr >> 5),
		rfu:    (mhdr >> 2) & 0x07,
		major:  mhdr & 0x03,
		mic:    binary.LittleEndian.Uint32(buf[len(buf)-4:]),
	}
	return p, nil
}

func (p PHYPayload) Buffer() []byte           { return p.buffer }
func (p PHYPayload) MHDR() byte               { return p.mhdr }
func (p PHYPayload) MessageType() MessageType { return p.typ }
func (p PHYPayload) Direction() MessageDirection {
	return p.typ.Direction()
}
func (p PHYPayload) MIC() uint32 { return p.mic }

// MACPayload returns the frame's MAC payload (buffer minus MHDR and MIC).
func (p PHYPayload) MACPayload() ([]byte, error) {
	if !p.typ.HasMACPayload() {
		return nil, ierrors.New(ierrors.Protocol, "frame has no MAC payload for this message type")
	}
	return p.buffer[1 : len(p.buffer)-4], nil
}
