// Package memory implements an in-memory time-series backend. Data is
// lost on restart; useful for tests and ephemeral series.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/abrandao/iotseries/pkg/timeseries/backend"
)

type record struct {
	ts       int64
	metadata string
	value    []byte
}

// Backend is a single series' content held as a slice kept sorted by
// timestamp, guarded by a shared_mutex-style RWMutex: read-only
// transactions take the read lock, writable ones take the write lock.
type Backend struct {
	mu        sync.RWMutex
	items     []record
	maxLength uint64
	maxSize   uint64
	size      uint64
	lastTS    int64
	hasLastTS bool
}

// New creates an empty in-memory backend with the given initial quota.
func New(maxLength, maxSizeBytes uint64) *Backend {
	return &Backend{
		maxLength: maxLength,
		maxSize:   maxSizeBytes,
	}
}

// BeginTransaction returns a Transaction scoped to a single method
// call's lifetime: the memory backend has no durable transaction log,
// so every Transaction method locks, mutates, and unlocks immediately.
func (b *Backend) BeginTransaction(ctx context.Context, readOnly bool) (backend.Transaction, error) {
	return &transaction{backend: b, readOnly: readOnly}, nil
}

// SetQuota tightens or loosens the quota, evicting oldest items first
// until the new quota holds.
func (b *Backend) SetQuota(ctx context.Context, maxLength, maxSizeBytes uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maxLength = maxLength
	b.maxSize = maxSizeBytes
	b.enforceQuota()
	return nil
}

func (b *Backend) Close() error {
	return nil
}

// enforceQuota evicts the oldest items (lowest timestamp) until both
// quotas hold. Caller must hold the write lock.
func (b *Backend) enforceQuota() {
	for b.maxLength > 0 && uint64(len(b.items)) > b.maxLength {
		b.evictOldest()
	}
	for b.maxSize > 0 && b.size > b.maxSize && len(b.items) > 0 {
		b.evictOldest()
	}
}

func (b *Backend) evictOldest() {
	if len(b.items) == 0 {
		return
	}
	b.size -= uint64(len(b.items[0].value))
	b.items = b.items[1:]
}

// lowerBound returns the index of the smallest item with ts' >= ts
// (sort.Search semantics), or len(items) if there is none.
func (b *Backend) lowerBound(ts int64) int {
	return sort.Search(len(b.items), func(i int) bool {
		return b.items[i].ts >= ts
	})
}

type transaction struct {
	backend  *Backend
	readOnly bool
	done     bool
}

func (t *transaction) SeekFirst(ctx context.Context) (int64, bool, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.items) == 0 {
		return 0, false, nil
	}
	return b.items[0].ts, true, nil
}

func (t *transaction) SeekLast(ctx context.Context) (int64, bool, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.items) == 0 {
		return 0, false, nil
	}
	return b.items[len(b.items)-1].ts, true, nil
}

func (t *transaction) SeekNearest(ctx context.Context, ts int64) (int64, bool, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx := b.lowerBound(ts)
	if idx >= len(b.items) {
		return 0, false, nil
	}
	return b.items[idx].ts, true, nil
}

func (t *transaction) SeekNext(ctx context.Context, ts int64) (int64, bool, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx := b.lowerBound(ts + 1)
	if idx >= len(b.items) {
		return 0, false, nil
	}
	return b.items[idx].ts, true, nil
}

func (t *transaction) SeekPrevious(ctx context.Context, ts int64) (int64, bool, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx := b.lowerBound(ts)
	if idx == 0 {
		return 0, false, nil
	}
	return b.items[idx-1].ts, true, nil
}

func (t *transaction) Read(ctx context.Context, ts int64) (string, []byte, bool, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx := b.lowerBound(ts)
	if idx >= len(b.items) || b.items[idx].ts != ts {
		return "", nil, false, nil
	}
	r := b.items[idx]
	value := make([]byte, len(r.value))
	copy(value, r.value)
	return r.metadata, value, true, nil
}

// Append implements the five-step algorithm of the append contract:
// reject on oversize, reject on non-monotone ts, evict to quota, insert,
// update last_timestamp.
func (t *transaction) Append(ctx context.Context, ts int64, metadata string, value []byte) (bool, error) {
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxSize > 0 && uint64(len(value)) > b.maxSize {
		return false, nil
	}
	if b.hasLastTS && ts <= b.lastTS {
		return false, nil
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	b.items = append(b.items, record{ts: ts, metadata: metadata, value: stored})
	b.size += uint64(len(stored))
	b.enforceQuota()

	b.lastTS = ts
	b.hasLastTS = true
	return true, nil
}

func (t *transaction) DeleteRange(ctx context.Context, a, b2 int64) error {
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if a >= b2 {
		return nil
	}

	lo := b.lowerBound(a)
	hi := b.lowerBound(b2)
	for _, r := range b.items[lo:hi] {
		b.size -= uint64(len(r.value))
	}
	b.items = append(b.items[:lo], b.items[hi:]...)
	return nil
}

func (t *transaction) ClearContent(ctx context.Context) error {
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
	b.size = 0
	// last_timestamp is intentionally preserved.
	return nil
}

func (t *transaction) Statistics(ctx context.Context) (backend.Stats, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	return backend.Stats{Length: uint64(len(b.items)), Size: b.size}, nil
}

func (t *transaction) LastTimestamp(ctx context.Context) (int64, bool, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastTS, b.hasLastTS, nil
}

// Commit and Rollback are no-ops: every mutation above already happened
// under its own method-scoped lock.
func (t *transaction) Commit() error   { t.done = true; return nil }
func (t *transaction) Rollback() error { t.done = true; return nil }
