package builtin

import (
	"context"
	"time"

	"github.com/abrandao/iotseries/pkg/lora"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// RadioDecoder is the external collaborator an IMST filter delegates
// to: a vendor IMST LoRaWAN gateway board reachable over serial or
// UDP, out of core scope per spec.md §1 and absent from the retrieved
// corpus (no radio SDK in any pack repo). This module ships only the
// interface plus an in-memory test double.
type RadioDecoder interface {
	Open() error
	// ReceiveFrame blocks up to timeout for the next raw LoRaWAN PHY
	// frame off the radio.
	ReceiveFrame(timeout time.Duration) (frame []byte, ok bool, err error)
	Close() error
}

// IMSTConfig is IMST's option set: it appends raw, still-encrypted PHY
// frames to Output as hexadecimal text, ready for a downstream
// LoRaDecoder filter (spec.md §4.9 enumerates IMST alongside
// LoRaDecoder as a distinct filter type).
type IMSTConfig struct {
	Output string `yaml:"output"`
}

// IMST is a Filter that appends one message per frame received off a
// RadioDecoder, hex-encoding the raw bytes as the message value.
type IMST struct {
	name   string
	output *timeseries.Writer
	radio  RadioDecoder
}

// NewIMST builds an IMST filter around radio.
func NewIMST(name string, output *timeseries.Writer, radio RadioDecoder, cfg IMSTConfig) *IMST {
	return &IMST{name: name, output: output, radio: radio}
}

func (i *IMST) Name() string { return i.name }
func (i *IMST) Start() error { return i.radio.Open() }
func (i *IMST) Stop() error  { return i.radio.Close() }

func (i *IMST) Step() (bool, error) {
	frame, ok, err := i.radio.ReceiveFrame(waitTimeout)
	if err != nil {
		return true, err
	}
	if !ok {
		return true, nil
	}

	msg := message.Message{
		TimestampType: message.Default,
		Value:         []byte(lora.FormatHexadecimal(frame, true)),
	}
	_, err = i.output.AppendMessage(context.Background(), msg)
	return true, err
}
