package builtin

import (
	"context"

	"github.com/abrandao/iotseries/pkg/config"
	"github.com/abrandao/iotseries/pkg/csvwire"
	"github.com/abrandao/iotseries/pkg/filewriter"
	"github.com/abrandao/iotseries/pkg/filter"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// CSVSinkConfig is CSVSink's documented option set from spec.md §6.
type CSVSinkConfig struct {
	Input         string `yaml:"input"`
	Path          string `yaml:"path"`
	Append        bool   `yaml:"append"`
	Header        bool   `yaml:"header"`
	Base64        bool   `yaml:"base64"`
	ReplayHistory bool   `yaml:"replay_history"`
	PopInput      bool   `yaml:"pop_input"`
}

// DefaultCSVSinkConfig returns spec.md §6's documented CSVSink defaults.
func DefaultCSVSinkConfig() CSVSinkConfig {
	return CSVSinkConfig{
		Append:        config.CSVSinkDefaultAppend,
		Header:        config.CSVSinkDefaultHeader,
		Base64:        config.CSVSinkDefaultBase64,
		ReplayHistory: config.CSVSinkDefaultReplayHistory,
		PopInput:      config.CSVSinkDefaultPopInput,
	}
}

const csvSinkHeaderLine = "series,timestamp,metadata,value\n"

// CSVSink is an Adapter that appends one CSV wire line per pushed
// message to a shared pooled file.
type CSVSink struct {
	filter.Adapter

	cfg      CSVSinkConfig
	pool     *filewriter.Pool
	accessor *filewriter.Accessor
}

// NewCSVSink builds a CSVSink writing cfg.Input's messages to cfg.Path
// through pool, so that several sinks can share one open file.
func NewCSVSink(name string, input *timeseries.Reader, inputMgr *timeseries.Writer, pool *filewriter.Pool, cfg CSVSinkConfig) *CSVSink {
	s := &CSVSink{cfg: cfg, pool: pool}
	s.Adapter = filter.Adapter{
		FilterName:    name,
		Input:         input,
		InputMgr:      inputMgr,
		ReplayHistory: cfg.ReplayHistory,
		PopInput:      cfg.PopInput,
		Push:          s.push,
	}
	return s
}

func (s *CSVSink) Start() error {
	var header []byte
	if s.cfg.Header {
		header = []byte(csvSinkHeaderLine)
	}
	a, err := s.pool.Open(s.cfg.Path, s.cfg.Append, header)
	if err != nil {
		return err
	}
	s.accessor = a
	return s.Adapter.Start()
}

func (s *CSVSink) Stop() error {
	if err := s.Adapter.Stop(); err != nil {
		return err
	}
	if s.accessor == nil {
		return nil
	}
	return s.accessor.Close()
}

func (s *CSVSink) push(ctx context.Context, msg message.Message) (filter.PushResult, error) {
	line, err := csvwire.EncodeRecord(csvwire.Record{
		Series:    s.cfg.Input,
		Timestamp: msg.Timestamp,
		Metadata:  msg.Metadata,
		Value:     msg.Value,
	}, s.cfg.Base64)
	if err != nil {
		return filter.PushFailure, err
	}

	if err := s.accessor.Write(line); err != nil {
		return filter.PushRetry, err
	}
	return filter.PushSuccess, nil
}
