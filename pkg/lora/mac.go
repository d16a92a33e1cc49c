package lora

import (
	"encoding/binary"

	"github.com/abrandao/iotseries/pkg/ierrors"
)

// MACPayload is a parsed data-frame MAC payload:
// DevAddr(4,LE) | FCtrl(1) | FCnt(2,LE) | FOpts(FCtrl&0x0f bytes) |
// [FPort(1) | FRMPayload(rest)].
type MACPayload struct {
	buffer       []byte
	deviceAddr   uint32
	fctrl        uint8
	frameCounter uint16
	foptsLen     int
	fport        uint8
	frameOffset  int
	frameSize    int
}

// ParseMAC parses a data frame's raw MAC payload buffer.
func ParseMAC(buf []byte) (MACPayload, error) {
	if len(buf) < 7 {
		return MACPayload{}, ierrors.New(ierrors.Protocol, "too short MAC payload")
	}

	m := MACPayload{
		buffer:       buf,
		deviceAddr:   binary.LittleEndian.Uint32(buf[0:4]),
		fctrl:        buf[4],
		frameCounter: binary.LittleEndian.Uint16(buf[5:7]),
	}
	m.foptsLen = int(m.fctrl & 0x0f)
	m.frameOffset = 7 + m.foptsLen

	switch {
	case len(buf) < m.frameOffset:
		return MACPayload{}, ierrors.New(ierrors.Protocol, "MAC payload shorter than its FOpts field")
	case len(buf) == m.frameOffset:
		// No FPort/FRMPayload, allowed by the standard.
		m.frameSize = 0
		m.fport = 0
	default:
		m.fport = buf[m.frameOffset]
		m.frameOffset++
		if len(buf) == m.frameOffset {
			m.frameSize = 0
		} else {
			m.frameSize = len(buf) - m.frameOffset
		}
	}
	return m, nil
}

// ParseMACFromPHY parses the MAC payload embedded in a data-frame PHYPayload.
func ParseMACFromPHY(phy PHYPayload) (MACPayload, error) {
	buf, err := phy.MACPayload()
	if err != nil {
		return MACPayload{}, err
	}
	return ParseMAC(buf)
}

func (m MACPayload) DeviceAddress() uint32 { return m.deviceAddr }
func (m MACPayload) FrameCounter() uint16  { return m.frameCounter }
func (m MACPayload) FCtrl() uint8          { return m.fctrl }
func (m MACPayload) FOptsLength() int      { return m.foptsLen }
func (m MACPayload) FOpts() []byte         { return m.buffer[7 : 7+m.foptsLen] }
func (m MACPayload) FPort() uint8          { return m.fport }

// FramePayload returns FRMPayload, possibly empty.
func (m MACPayload) FramePayload() []byte {
	return m.buffer[m.frameOffset : m.frameOffset+m.frameSize]
}

// FHDR returns DevAddr | FCtrl | FCnt | FOpts, i.e. everything before
// the FPort byte.
func (m MACPayload) FHDR() []byte {
	return m.buffer[0 : 7+m.foptsLen]
}

func hasBit(value uint8, bit uint) bool {
	return value&(1<<bit) != 0
}

// HasADR reports the ADR bit (bit 7, same position both directions).
func (m MACPayload) HasADR() bool { return hasBit(m.fctrl, 7) }

// HasACK reports the ACK bit (bit 5, same position both directions).
func (m MACPayload) HasACK() bool { return hasBit(m.fctrl, 5) }

// HasADRACKReq is only meaningful for uplink frames (bit 6).
func (m MACPayload) HasADRACKReq() bool { return hasBit(m.fctrl, 6) }

// FPending is only meaningful for downlink frames (bit 4).
func (m MACPayload) FPending() bool { return hasBit(m.fctrl, 4) }

// HasRFU reports the direction-dependent RFU bit: bit 6 downlink, bit 4 uplink.
func (m MACPayload) HasRFU(dir MessageDirection) bool {
	if dir == Downlink {
		return hasBit(m.fctrl, 6)
	}
	return hasBit(m.fctrl, 4)
}
