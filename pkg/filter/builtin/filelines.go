package builtin

import (
	"bufio"
	"context"
	"os"

	"github.com/abrandao/iotseries/pkg/filter"
	"github.com/abrandao/iotseries/pkg/ierrors"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// FileLinesConfig is FileLines's documented option set from spec.md §6.
type FileLinesConfig struct {
	Output             string `yaml:"output"`
	Path               string `yaml:"path"`
	Metadata           string `yaml:"metadata"`
	MaxPendingMessages uint64 `yaml:"max_pending_messages"`
}

// FileLines is a Source that appends one message per line of a text
// file, in order, then terminates.
type FileLines struct {
	filter.Source

	cfg     FileLinesConfig
	file    *os.File
	scanner *bufio.Scanner
}

// NewFileLines builds a FileLines source over cfg.Path.
func NewFileLines(name string, output *timeseries.Writer, outputReader *timeseries.Reader, cfg FileLinesConfig) *FileLines {
	f := &FileLines{cfg: cfg}
	f.Source = filter.Source{
		FilterName:   name,
		Output:       output,
		OutputReader: outputReader,
		MaxPending:   cfg.MaxPendingMessages,
		Fetch:        f.fetch,
	}
	return f
}

func (f *FileLines) Start() error {
	file, err := os.Open(f.cfg.Path)
	if err != nil {
		return ierrors.Wrap(ierrors.Fatal, "filelines: cannot open "+f.cfg.Path, err)
	}
	f.file = file
	f.scanner = bufio.NewScanner(file)
	return nil
}

func (f *FileLines) Stop() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}

func (f *FileLines) fetch(ctx context.Context, msg *message.Message) (filter.FetchResult, error) {
	if !f.scanner.Scan() {
		if err := f.scanner.Err(); err != nil {
			return filter.FetchInvalid, err
		}
		return filter.FetchDone, nil
	}

	msg.TimestampType = message.Default
	msg.Metadata = f.cfg.Metadata
	msg.Value = []byte(f.scanner.Text())
	return filter.FetchSuccess, nil
}
