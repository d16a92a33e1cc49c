package builtin

import (
	"context"
	"strconv"
	"time"

	"github.com/abrandao/iotseries/pkg/config"
	"github.com/abrandao/iotseries/pkg/filter"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// CounterConfig is Counter's documented option set from spec.md §6.
type CounterConfig struct {
	Output             string        `yaml:"output"`
	Metadata           string        `yaml:"metadata"`
	Start              int64         `yaml:"start"`
	Stop               int64         `yaml:"stop"`
	Increment          int64         `yaml:"increment"`
	Delay              time.Duration `yaml:"delay"`
	MaxPendingMessages uint64        `yaml:"max_pending_messages"`
}

// ApplyDefaults fills unset fields with spec.md §6's documented
// defaults (Start=0, Stop=100, Increment=1, Delay=100ms).
func (c *CounterConfig) ApplyDefaults() {
	if c.Increment == 0 {
		c.Increment = config.CounterDefaultIncrement
	}
	if c.Stop == 0 {
		c.Stop = config.CounterDefaultStop
	}
	if c.Delay == 0 {
		c.Delay = config.CounterDefaultDelay
	}
}

// NewCounter builds a Source that appends Start, Start+Increment, ...
// while the value is short of Stop (Stop itself is not appended), waiting Delay between each, then
// terminates. Grounded on spec.md §4.6/§6's Counter filter.
func NewCounter(name string, output *timeseries.Writer, outputReader *timeseries.Reader, cfg CounterConfig) *filter.Source {
	current := cfg.Start
	done := false

	fetch := func(ctx context.Context, msg *message.Message) (filter.FetchResult, error) {
		if done {
			return filter.FetchDone, nil
		}

		select {
		case <-time.After(cfg.Delay):
		case <-ctx.Done():
			return filter.FetchDone, nil
		}

		value := current
		current += cfg.Increment
		if (cfg.Increment > 0 && value >= cfg.Stop) || (cfg.Increment <= 0 && value <= cfg.Stop) {
			done = true
			return filter.FetchDone, nil
		}

		msg.TimestampType = message.Default
		msg.Metadata = cfg.Metadata
		msg.Value = []byte(strconv.FormatInt(value, 10))
		return filter.FetchSuccess, nil
	}

	return &filter.Source{
		FilterName:   name,
		Output:       output,
		OutputReader: outputReader,
		MaxPending:   cfg.MaxPendingMessages,
		Fetch:        fetch,
	}
}
