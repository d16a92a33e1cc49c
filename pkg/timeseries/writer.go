package timeseries

import (
	"context"

	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries/backend"
)

// Writer is a user-facing cursor for mutating a series' content. Every
// mutating method opens its own exclusive write transaction, scoped to
// the method call; on any successful mutation it signals series_modified
// exactly once, while still holding the series' write lock.
type Writer struct {
	series *series
}

// withWriteTx runs fn against a writable transaction, commits it, and —
// iff modified is true when fn returns — notifies observers before
// releasing the write lock. If the series has been deleted, fn is not
// called and the operation is a silent no-op (ok=false, no error).
func (w *Writer) withWriteTx(ctx context.Context, fn func(tx backend.Transaction) (modified bool, err error)) (bool, error) {
	s := w.series
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted || s.backend == nil {
		return false, nil
	}

	tx, err := s.backend.BeginTransaction(ctx, false)
	if err != nil {
		return false, err
	}

	modified, err := fn(tx)
	if err != nil {
		tx.Rollback()
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	if modified {
		s.notifyModified()
	}
	return modified, nil
}

// withReadTx runs fn against a read-only transaction, holding only the
// series' shared (read) lock — used by the writer's non-mutating
// methods (LastTimestamp, Statistics) so they do not contend with
// concurrent readers.
func (w *Writer) withReadTx(ctx context.Context, fn func(tx backend.Transaction) error) error {
	s := w.series
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.deleted || s.backend == nil {
		return nil
	}

	tx, err := s.backend.BeginTransaction(ctx, true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	return fn(tx)
}

// LastTimestamp returns the series' persistent high-water mark.
func (w *Writer) LastTimestamp(ctx context.Context) (int64, bool, error) {
	var ts int64
	var ok bool
	err := w.withReadTx(ctx, func(tx backend.Transaction) error {
		var e error
		ts, ok, e = tx.LastTimestamp(ctx)
		return e
	})
	return ts, ok, err
}

// Append enforces monotonicity and quotas and, on success, returns true
// and fires series_modified.
func (w *Writer) Append(ctx context.Context, ts int64, metadata string, value []byte) (bool, error) {
	return w.withWriteTx(ctx, func(tx backend.Transaction) (bool, error) {
		return tx.Append(ctx, ts, metadata, value)
	})
}

// AppendMessage resolves msg's concrete timestamp against the series'
// declared policy and current last_timestamp, then appends it.
func (w *Writer) AppendMessage(ctx context.Context, msg message.Message) (bool, error) {
	s := w.series

	s.mu.RLock()
	policy := s.policy
	s.mu.RUnlock()

	var resolveErr error
	ok, err := w.withWriteTx(ctx, func(tx backend.Transaction) (bool, error) {
		lastTS, hasLast, err := tx.LastTimestamp(ctx)
		if err != nil {
			return false, err
		}
		ts, err := msg.ResolveTimestamp(policy, lastTS, hasLast)
		if err != nil {
			resolveErr = err
			return false, nil
		}
		return tx.Append(ctx, ts, msg.Metadata, msg.Value)
	})
	if resolveErr != nil {
		return false, resolveErr
	}
	return ok, err
}

// DeleteRange removes items with a <= ts < b; a >= b is a no-op and
// does not fire series_modified.
func (w *Writer) DeleteRange(ctx context.Context, a, b int64) error {
	_, err := w.withWriteTx(ctx, func(tx backend.Transaction) (bool, error) {
		if a >= b {
			return false, nil
		}
		if err := tx.DeleteRange(ctx, a, b); err != nil {
			return false, err
		}
		return true, nil
	})
	return err
}

// ClearContent empties the series without resetting last_timestamp.
func (w *Writer) ClearContent(ctx context.Context) error {
	_, err := w.withWriteTx(ctx, func(tx backend.Transaction) (bool, error) {
		if err := tx.ClearContent(ctx); err != nil {
			return false, err
		}
		return true, nil
	})
	return err
}

// Statistics returns the series' current (length, size_bytes).
func (w *Writer) Statistics(ctx context.Context) (backend.Stats, error) {
	var stats backend.Stats
	err := w.withReadTx(ctx, func(tx backend.Transaction) error {
		var e error
		stats, e = tx.Statistics(ctx)
		return e
	})
	return stats, err
}
