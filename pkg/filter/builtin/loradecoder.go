package builtin

import (
	"context"

	"github.com/abrandao/iotseries/pkg/filter"
	"github.com/abrandao/iotseries/pkg/lora"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// LoRaDecoderConfig is LoRaDecoder's documented option set from
// spec.md §6: hex-encoded 128-bit session keys plus the Adapter options.
type LoRaDecoderConfig struct {
	Input         string `yaml:"input"`
	Output        string `yaml:"output"`
	NwkSKey       string `yaml:"nwk_s_key"`
	AppSKey       string `yaml:"app_s_key"`
	ReplayHistory bool   `yaml:"replay_history"`
	PopInput      bool   `yaml:"pop_input"`
}

// LoRaDecoder is an Adapter that parses each pushed message's value as
// a hex-encoded LoRaWAN PHY payload, verifies its MIC against NwkSKey,
// decrypts FRMPayload with AppSKey, and appends the plaintext to
// Output. Malformed frames push Failure (logged, advanced past, per
// spec.md §7's Protocol error kind).
type LoRaDecoder struct {
	filter.Adapter

	output  *timeseries.Writer
	nwkSKey lora.FrameKey
	appSKey lora.FrameKey
}

// NewLoRaDecoder builds a LoRaDecoder over cfg's session keys.
func NewLoRaDecoder(name string, input *timeseries.Reader, inputMgr *timeseries.Writer, output *timeseries.Writer, cfg LoRaDecoderConfig) (*LoRaDecoder, error) {
	nwkSKey, err := lora.ParseFrameKeyHex(cfg.NwkSKey)
	if err != nil {
		return nil, err
	}
	appSKey, err := lora.ParseFrameKeyHex(cfg.AppSKey)
	if err != nil {
		return nil, err
	}

	d := &LoRaDecoder{output: output, nwkSKey: nwkSKey, appSKey: appSKey}
	d.Adapter = filter.Adapter{
		FilterName:    name,
		Input:         input,
		InputMgr:      inputMgr,
		ReplayHistory: cfg.ReplayHistory,
		PopInput:      cfg.PopInput,
		Push:          d.push,
	}
	return d, nil
}

func (d *LoRaDecoder) push(ctx context.Context, msg message.Message) (filter.PushResult, error) {
	phy, err := lora.ParsePHYHex(string(msg.Value))
	if err != nil {
		return filter.PushFailure, err
	}

	ok, err := d.nwkSKey.CheckMIC(phy, 0)
	if err != nil {
		return filter.PushFailure, err
	}
	if !ok {
		return filter.PushFailure, nil
	}

	plaintext, err := d.appSKey.ApplyToFrame(phy, 0)
	if err != nil {
		return filter.PushFailure, err
	}

	out := message.Message{
		TimestampType: message.Default,
		Value:         plaintext,
	}
	if _, err := d.output.AppendMessage(ctx, out); err != nil {
		return filter.PushRetry, err
	}
	return filter.PushSuccess, nil
}
