package filter

import (
	"context"

	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// PushResult is the outcome of an Adapter's PushFunc call.
type PushResult int

const (
	// PushSuccess: the message was consumed; advance the read head
	// (and pop the input timestamp if PopInput is set).
	PushSuccess PushResult = iota
	// PushRetry: a transient failure; keep the read head where it is
	// and retry the same message next Step.
	PushRetry
	// PushFailure: a permanent failure for this message (e.g. a
	// malformed frame); advance the read head without popping.
	PushFailure
)

// PushFunc consumes one message read from an Adapter's input series.
type PushFunc func(ctx context.Context, msg message.Message) (PushResult, error)

// Adapter is the 1-in/N-out filter base: spec.md §4.6's Adapter
// primitive, grounded on AdapterFilter.cpp. Subclasses supply Push; the
// base owns the read-head bookkeeping (ReplayHistory, PopInput) and the
// wait-for-new-data blocking.
type Adapter struct {
	FilterName string
	Input      *timeseries.Reader
	InputMgr   *timeseries.Writer // used only to DeleteRange when PopInput is set

	ReplayHistory bool
	PopInput      bool

	Push PushFunc

	started bool
}

func (a *Adapter) Name() string { return a.FilterName }

// Start places the read head at the beginning (ReplayHistory) or onto
// the last existing item (!ReplayHistory, so only future appends are
// seen), per spec.md §4.6.
func (a *Adapter) Start() error {
	ctx := context.Background()
	if a.ReplayHistory {
		if _, err := a.Input.SeekFirst(ctx); err != nil {
			return err
		}
		// Rewind one logical step: SeekFirst already lands on the
		// first item, so the first Step's SeekNext from it would skip
		// that item. Treat the head as "before the first item" by
		// seeking to one less than the first timestamp, if any.
		if a.Input.IsValid() {
			a.Input.Seek(a.Input.Timestamp() - 1)
		}
	} else {
		if _, err := a.Input.SeekLast(ctx); err != nil {
			return err
		}
		if !a.Input.IsValid() {
			a.Input.Seek(-1)
		}
	}
	a.started = true
	return nil
}

func (a *Adapter) Stop() error { return nil }

// Step reads the next message after the current head, blocking on the
// input's modification signal if there is none yet, then dispatches it
// to Push and advances (or retries) the head accordingly.
func (a *Adapter) Step() (bool, error) {
	ctx := context.Background()

	ok, err := a.Input.SeekNext(ctx, a.Input.Timestamp())
	if err != nil {
		return true, err
	}
	if !ok {
		a.Input.WaitModification(waitTimeout)
		return true, nil
	}

	ts := a.Input.Timestamp()
	metadata, value, found, err := a.Input.Read(ctx)
	if err != nil {
		return true, err
	}
	if !found {
		return true, nil
	}

	msg := message.Message{
		TimestampType: message.Fixed,
		Timestamp:     ts,
		Metadata:      metadata,
		Value:         value,
	}

	result, err := a.Push(ctx, msg)
	if err != nil {
		return true, err
	}

	switch result {
	case PushRetry:
		a.Input.Seek(ts - 1)
		return true, nil
	case PushSuccess:
		if a.PopInput && a.InputMgr != nil {
			if err := a.InputMgr.DeleteRange(ctx, ts, ts+1); err != nil {
				return true, err
			}
		}
		return true, nil
	default: // PushFailure
		return true, nil
	}
}
