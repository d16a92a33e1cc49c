package builtin

import (
	"context"
	"io"
	"os"

	"github.com/abrandao/iotseries/pkg/csvwire"
	"github.com/abrandao/iotseries/pkg/filter"
	"github.com/abrandao/iotseries/pkg/ierrors"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// CSVSourceConfig is CSVSource's documented option set from spec.md §6.
type CSVSourceConfig struct {
	Output             string `yaml:"output"`
	Path               string `yaml:"path"`
	MaxPendingMessages uint64 `yaml:"max_pending_messages"`
}

// CSVSource is a Source that reads one CSV wire line per Fetch call
// from a file, base64-decoding the value field.
type CSVSource struct {
	filter.Source

	cfg    CSVSourceConfig
	file   *os.File
	reader *csvwire.Reader
}

// NewCSVSource builds a CSVSource reading cfg.Path's CSV wire lines.
func NewCSVSource(name string, output *timeseries.Writer, outputReader *timeseries.Reader, cfg CSVSourceConfig) *CSVSource {
	c := &CSVSource{cfg: cfg}
	c.Source = filter.Source{
		FilterName:   name,
		Output:       output,
		OutputReader: outputReader,
		MaxPending:   cfg.MaxPendingMessages,
		Fetch:        c.fetch,
	}
	return c
}

func (c *CSVSource) Start() error {
	f, err := os.Open(c.cfg.Path)
	if err != nil {
		return ierrors.Wrap(ierrors.Fatal, "csvsource: cannot open "+c.cfg.Path, err)
	}
	c.file = f
	c.reader = csvwire.NewReader(f, true)
	return nil
}

func (c *CSVSource) Stop() error {
	if c.file == nil {
		return nil
	}
	return c.file.Close()
}

func (c *CSVSource) fetch(ctx context.Context, msg *message.Message) (filter.FetchResult, error) {
	rec, err := c.reader.ReadRecord()
	if err == io.EOF {
		return filter.FetchDone, nil
	}
	if err != nil {
		return filter.FetchInvalid, err
	}

	msg.TimestampType = message.Fixed
	msg.Timestamp = rec.Timestamp
	msg.Metadata = rec.Metadata
	msg.Value = rec.Value
	return filter.FetchSuccess, nil
}
