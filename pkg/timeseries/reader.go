package timeseries

import (
	"context"
	"time"

	"github.com/abrandao/iotseries/pkg/timeseries/backend"
)

// Reader is a user-facing cursor over a series' content. It keeps an
// internal "virtual position" — a (timestamp, valid) pair independent
// of any backend transaction — so Seek to a non-existent timestamp is
// still a legal position from which SeekNext/SeekPrevious work.
type Reader struct {
	series   *series
	blocking bool

	position int64
	valid    bool
}

// withTx runs fn against a read-only transaction on the series' current
// backend, holding the series' shared (read) lock for its duration. If
// the series has been deleted, fn is not called and ok=false with no
// error, per the "deleted series observes empty state" contract.
func (r *Reader) withTx(ctx context.Context, fn func(tx backend.Transaction) error) error {
	r.series.mu.RLock()
	defer r.series.mu.RUnlock()

	if r.series.deleted || r.series.backend == nil {
		return nil
	}

	tx, err := r.series.backend.BeginTransaction(ctx, true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	return fn(tx)
}

// SeekFirst moves the virtual position to the smallest stored timestamp.
func (r *Reader) SeekFirst(ctx context.Context) (bool, error) {
	var ts int64
	var ok bool
	err := r.withTx(ctx, func(tx backend.Transaction) error {
		var e error
		ts, ok, e = tx.SeekFirst(ctx)
		return e
	})
	r.setPosition(ts, ok)
	return ok, err
}

// SeekLast moves the virtual position to the largest stored timestamp.
func (r *Reader) SeekLast(ctx context.Context) (bool, error) {
	var ts int64
	var ok bool
	err := r.withTx(ctx, func(tx backend.Transaction) error {
		var e error
		ts, ok, e = tx.SeekLast(ctx)
		return e
	})
	r.setPosition(ts, ok)
	return ok, err
}

// SeekNearest moves the virtual position to the smallest stored
// timestamp >= ts.
func (r *Reader) SeekNearest(ctx context.Context, ts int64) (bool, error) {
	var found int64
	var ok bool
	err := r.withTx(ctx, func(tx backend.Transaction) error {
		var e error
		found, ok, e = tx.SeekNearest(ctx, ts)
		return e
	})
	r.setPosition(found, ok)
	return ok, err
}

// SeekNext moves the virtual position to the smallest stored timestamp
// strictly greater than ts.
func (r *Reader) SeekNext(ctx context.Context, ts int64) (bool, error) {
	var found int64
	var ok bool
	err := r.withTx(ctx, func(tx backend.Transaction) error {
		var e error
		found, ok, e = tx.SeekNext(ctx, ts)
		return e
	})
	r.setPosition(found, ok)
	return ok, err
}

// SeekPrevious moves the virtual position to the largest stored
// timestamp strictly less than ts.
func (r *Reader) SeekPrevious(ctx context.Context, ts int64) (bool, error) {
	var found int64
	var ok bool
	err := r.withTx(ctx, func(tx backend.Transaction) error {
		var e error
		found, ok, e = tx.SeekPrevious(ctx, ts)
		return e
	})
	r.setPosition(found, ok)
	return ok, err
}

// Seek moves the virtual position directly to ts, regardless of
// whether an item exists there. It is always "valid" as a position,
// even though Read() on it may return ok=false.
func (r *Reader) Seek(ts int64) {
	r.position = ts
	r.valid = true
}

func (r *Reader) setPosition(ts int64, ok bool) {
	if ok {
		r.position = ts
		r.valid = true
	} else {
		r.valid = false
	}
}

// IsValid reports whether the cursor currently sits on a legal position.
func (r *Reader) IsValid() bool { return r.valid }

// Timestamp returns the cursor's current virtual position.
func (r *Reader) Timestamp() int64 { return r.position }

// Read returns the item at the current virtual position, if any.
func (r *Reader) Read(ctx context.Context) (metadata string, value []byte, ok bool, err error) {
	if !r.valid {
		return "", nil, false, nil
	}
	err = r.withTx(ctx, func(tx backend.Transaction) error {
		var e error
		metadata, value, ok, e = tx.Read(ctx, r.position)
		return e
	})
	return metadata, value, ok, err
}

// Statistics returns the series' current (length, size_bytes).
func (r *Reader) Statistics(ctx context.Context) (backend.Stats, error) {
	var stats backend.Stats
	err := r.withTx(ctx, func(tx backend.Transaction) error {
		var e error
		stats, e = tx.Statistics(ctx)
		return e
	})
	return stats, err
}

// WaitModification blocks up to timeout for the next series_modified or
// series_deleted event. The non-blocking flavor sleeps for timeout and
// always returns true (the documented degraded polling fallback); the
// blocking flavor truly waits on the series' notification channel.
func (r *Reader) WaitModification(timeout time.Duration) bool {
	if !r.blocking {
		time.Sleep(timeout)
		return true
	}
	if r.series.deleted {
		return true
	}
	return r.series.waitModification(timeout)
}
