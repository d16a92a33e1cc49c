// Package backend defines the storage contract that every time-series
// engine (memory, embedded SQL, LSM) must satisfy.
package backend

import "context"

// Stats reports the two accounting fields a backend must keep exact at
// every transaction boundary.
type Stats struct {
	Length uint64
	Size   uint64
}

// Transaction is a single scoped view over a series' stored items.
// Read-only transactions only use the seek/read family; writable
// transactions additionally use Append/DeleteRange/ClearContent.
//
// A Transaction must be committed or rolled back exactly once. The
// memory backend's transaction scope equals a single method call and
// always succeeds; the SQL and LSM backends hold a real underlying
// transaction across the Transaction's lifetime.
type Transaction interface {
	// SeekFirst returns the smallest stored timestamp.
	SeekFirst(ctx context.Context) (ts int64, ok bool, err error)
	// SeekLast returns the largest stored timestamp.
	SeekLast(ctx context.Context) (ts int64, ok bool, err error)
	// SeekNearest returns the smallest stored timestamp >= ts.
	SeekNearest(ctx context.Context, ts int64) (found int64, ok bool, err error)
	// SeekNext returns the smallest stored timestamp > ts.
	SeekNext(ctx context.Context, ts int64) (found int64, ok bool, err error)
	// SeekPrevious returns the largest stored timestamp < ts.
	SeekPrevious(ctx context.Context, ts int64) (found int64, ok bool, err error)
	// Read returns the (metadata, value) stored at ts, if any.
	Read(ctx context.Context, ts int64) (metadata string, value []byte, ok bool, err error)
	// Append enforces monotonicity and quotas per the append
	// algorithm; returns false (no error) when rejected by
	// monotonicity or quota, consistent with the documented
	// QuotaViolation/MonotonicityViolation return-false contract.
	Append(ctx context.Context, ts int64, metadata string, value []byte) (bool, error)
	// DeleteRange removes items with a <= ts < b; a >= b is a no-op.
	DeleteRange(ctx context.Context, a, b int64) error
	// ClearContent empties the series without resetting last_timestamp.
	ClearContent(ctx context.Context) error
	// Statistics returns the current (length, size_bytes).
	Statistics(ctx context.Context) (Stats, error)
	// LastTimestamp returns the persistent high-water mark.
	LastTimestamp(ctx context.Context) (ts int64, ok bool, err error)
	// Commit finalizes a writable transaction's mutations.
	Commit() error
	// Rollback discards a writable transaction's mutations.
	Rollback() error
}

// Backend is a concrete storage engine hosting exactly one series.
type Backend interface {
	// BeginTransaction opens a Transaction. Read-only transactions may
	// run concurrently with each other and with a writable one,
	// subject to the backend's own serialization; writable
	// transactions are serialized by the backend.
	BeginTransaction(ctx context.Context, readOnly bool) (Transaction, error)
	// SetQuota changes max_length/max_size_bytes, evicting oldest
	// items as needed to restore the invariant before returning.
	SetQuota(ctx context.Context, maxLength, maxSizeBytes uint64) error
	// Close releases any resources (file handles, connections) held
	// by this backend.
	Close() error
}
