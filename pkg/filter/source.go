package filter

import (
	"context"

	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// FetchResult is the outcome of a Source's FetchFunc call.
type FetchResult int

const (
	// FetchSuccess means msg was populated and should be appended.
	FetchSuccess FetchResult = iota
	// FetchInvalid means this fetch produced nothing usable; step
	// again without delay.
	FetchInvalid
	// FetchDone means the source is exhausted; Step returns false.
	FetchDone
)

// FetchFunc produces the next message for a Source filter to append.
type FetchFunc func(ctx context.Context, msg *message.Message) (FetchResult, error)

// Source is the 0-in/1-out filter base: subclasses supply Fetch, the
// base enforces output back-pressure and appends on success. Grounded
// on spec.md §4.6's Source primitive; SourceFilter.cpp in
// original_source/ is the reference for the back-pressure sleep.
type Source struct {
	FilterName string
	Output     *timeseries.Writer
	// OutputReader is used only to observe the output's current length
	// for back-pressure and to sleep on its modification signal; it
	// must be a blocking reader over the same series as Output.
	OutputReader *timeseries.Reader
	MaxPending   uint64
	Fetch        FetchFunc
}

func (s *Source) Name() string { return s.FilterName }
func (s *Source) Start() error { return nil }
func (s *Source) Stop() error  { return nil }

// Step enforces back-pressure, then fetches and appends one message.
func (s *Source) Step() (bool, error) {
	ctx := context.Background()

	if s.MaxPending > 0 && s.OutputReader != nil {
		stats, err := s.OutputReader.Statistics(ctx)
		if err != nil {
			return true, err
		}
		if stats.Length >= s.MaxPending {
			s.OutputReader.WaitModification(waitTimeout)
			return true, nil
		}
	}

	var msg message.Message
	result, err := s.Fetch(ctx, &msg)
	if err != nil {
		return true, err
	}

	switch result {
	case FetchDone:
		return false, nil
	case FetchInvalid:
		return true, nil
	default:
		_, err := s.Output.AppendMessage(ctx, msg)
		return true, err
	}
}
