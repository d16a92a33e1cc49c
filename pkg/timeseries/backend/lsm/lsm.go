// Package lsm implements a time-series backend on top of BadgerDB, an
// LSM-tree key/value engine. Unlike the teacher storage this package is
// adapted from, keys are built so that badger's native key ordering
// gives seek/range semantics directly instead of requiring a full
// table scan per query.
package lsm

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/abrandao/iotseries/pkg/timeseries/backend"
)

// Config mirrors the teacher's badger.Config: conservative, laptop- and
// embedded-device-friendly memory bounds for an LSM tree that is never
// expected to hold more than a handful of series worth of time-series
// history.
type Config struct {
	// Path to store database files. Ignored if InMemory is true.
	Path string

	// InMemory runs badger entirely in RAM (useful for tests).
	InMemory bool

	// MaxMemoryMB limits badger's memory usage in MB (0 = defaults).
	MaxMemoryMB int64
}

// Store owns the shared *badger.DB behind every series backed by this
// engine, matching sqlbackend.Store's one-database-many-series shape.
type Store struct {
	db *badger.DB
}

// Open configures and opens a badger database per Config.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	var memTableSize int64
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	} else {
		memTableSize = 16 * 1024 * 1024
	}
	blockCacheSize := memTableSize / 2
	indexCacheSize := memTableSize / 4

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(blockCacheSize).
		WithIndexCacheSize(indexCacheSize).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("lsm: open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close shuts badger down cleanly.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs badger's value-log garbage collection. Call periodically
// from a background task; ErrNoRewrite means nothing needed collecting.
func (s *Store) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Series binds a Backend to the named series, creating its metadata
// record with the given quota if it does not already exist.
func (s *Store) Series(ctx context.Context, name string, maxLength, maxSize uint64) (*Backend, error) {
	prefix := xxhash.Sum64String(name)
	b := &Backend{store: s, prefix: prefix}

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(prefix))
		if err == badger.ErrKeyNotFound {
			m := seriesMeta{MaxLength: maxLength, MaxSize: maxSize}
			return txn.Set(metaKey(prefix), encodeMeta(m))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("lsm: series %q: %w", name, err)
	}
	return b, nil
}

// seriesMeta is the per-series bookkeeping record stored at each
// series' reserved meta key, analogous to sqlbackend's series row.
type seriesMeta struct {
	MaxLength uint64 `json:"max_length"`
	MaxSize   uint64 `json:"max_size"`
	Length    uint64 `json:"length"`
	Size      uint64 `json:"size"`
	LastTS    int64  `json:"last_ts"`
	HasLast   bool   `json:"has_last"`
}

func encodeMeta(m seriesMeta) []byte {
	data, _ := json.Marshal(m)
	return data
}

func decodeMeta(data []byte) (seriesMeta, error) {
	var m seriesMeta
	err := json.Unmarshal(data, &m)
	return m, err
}

// Key layout: [1-byte tag][8-byte series hash][8-byte sort key].
// tag 0 identifies the per-series meta record (no sort key); tag 1
// identifies an item record keyed by its timestamp, encoded so that
// byte-lexicographic order matches signed int64 order.
const (
	tagMeta byte = 0
	tagItem byte = 1
)

func metaKey(prefix uint64) []byte {
	key := make([]byte, 9)
	key[0] = tagMeta
	binary.BigEndian.PutUint64(key[1:], prefix)
	return key
}

func itemKeyPrefix(prefix uint64) []byte {
	key := make([]byte, 9)
	key[0] = tagItem
	binary.BigEndian.PutUint64(key[1:], prefix)
	return key
}

func itemKey(prefix uint64, ts int64) []byte {
	key := make([]byte, 17)
	key[0] = tagItem
	binary.BigEndian.PutUint64(key[1:9], prefix)
	binary.BigEndian.PutUint64(key[9:], encodeTS(ts))
	return key
}

func decodeItemTS(key []byte) int64 {
	return decodeTS(binary.BigEndian.Uint64(key[9:]))
}

// encodeTS maps an int64 to a uint64 preserving order byte-wise, by
// flipping the sign bit (two's-complement order becomes unsigned
// order once the sign bit is inverted).
func encodeTS(ts int64) uint64 {
	return uint64(ts) ^ (1 << 63)
}

func decodeTS(u uint64) int64 {
	return int64(u ^ (1 << 63))
}

type itemValue struct {
	Metadata string `json:"metadata"`
	Value    []byte `json:"value"`
}

func encodeItem(metadata string, value []byte) []byte {
	data, _ := json.Marshal(itemValue{Metadata: metadata, Value: value})
	return data
}

func decodeItem(data []byte) (itemValue, error) {
	var v itemValue
	err := json.Unmarshal(data, &v)
	return v, err
}

// Backend is a single series' handle into a shared Store.
type Backend struct {
	store  *Store
	prefix uint64
}

func (b *Backend) BeginTransaction(ctx context.Context, readOnly bool) (backend.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := b.store.db.NewTransaction(!readOnly)
	return &transaction{backend: b, txn: txn, readOnly: readOnly}, nil
}

// SetQuota updates the declared quota and evicts oldest items until it
// holds.
func (b *Backend) SetQuota(ctx context.Context, maxLength, maxSizeBytes uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.store.db.Update(func(txn *badger.Txn) error {
		meta, err := b.readMeta(txn)
		if err != nil {
			return err
		}
		meta.MaxLength = maxLength
		meta.MaxSize = maxSizeBytes
		if err := b.enforceQuota(txn, &meta); err != nil {
			return err
		}
		return txn.Set(metaKey(b.prefix), encodeMeta(meta))
	})
}

func (b *Backend) Close() error {
	return nil
}

func (b *Backend) readMeta(txn *badger.Txn) (seriesMeta, error) {
	item, err := txn.Get(metaKey(b.prefix))
	if err != nil {
		return seriesMeta{}, err
	}
	var meta seriesMeta
	err = item.Value(func(val []byte) error {
		m, decErr := decodeMeta(val)
		meta = m
		return decErr
	})
	return meta, err
}

// enforceQuota evicts oldest items until both quotas hold. Mutates meta
// in place; caller persists it.
func (b *Backend) enforceQuota(txn *badger.Txn, meta *seriesMeta) error {
	for {
		needsLength := meta.MaxLength > 0 && meta.Length > meta.MaxLength
		needsSize := meta.MaxSize > 0 && meta.Size > meta.MaxSize && meta.Length > 0
		if !needsLength && !needsSize {
			return nil
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = itemKeyPrefix(b.prefix)
		it := txn.NewIterator(opts)
		it.Rewind()
		if !it.Valid() {
			it.Close()
			return nil
		}
		oldestKey := it.Item().KeyCopy(nil)
		var oldestSize int
		if err := it.Item().Value(func(val []byte) error {
			v, err := decodeItem(val)
			if err != nil {
				return err
			}
			oldestSize = len(v.Value)
			return nil
		}); err != nil {
			it.Close()
			return err
		}
		it.Close()

		if err := txn.Delete(oldestKey); err != nil {
			return err
		}
		meta.Length--
		meta.Size -= uint64(oldestSize)
	}
}

type transaction struct {
	backend  *Backend
	txn      *badger.Txn
	readOnly bool
	done     bool
}

func (t *transaction) SeekFirst(ctx context.Context) (int64, bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = itemKeyPrefix(t.backend.prefix)
	opts.PrefetchValues = false
	it := t.txn.NewIterator(opts)
	defer it.Close()
	it.Rewind()
	if !it.Valid() {
		return 0, false, nil
	}
	return decodeItemTS(it.Item().Key()), true, nil
}

func (t *transaction) SeekLast(ctx context.Context) (int64, bool, error) {
	prefix := itemKeyPrefix(t.backend.prefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = true
	opts.PrefetchValues = false
	it := t.txn.NewIterator(opts)
	defer it.Close()
	// Reverse iteration seeks from the largest key <= seek value; append
	// 0xFF bytes to the prefix so we start past every possible item key.
	seek := append(append([]byte{}, prefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	it.Seek(seek)
	if !it.Valid() {
		return 0, false, nil
	}
	return decodeItemTS(it.Item().Key()), true, nil
}

func (t *transaction) seekFrom(ts int64, reverse, inclusive bool) (int64, bool, error) {
	prefix := itemKeyPrefix(t.backend.prefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = reverse
	opts.PrefetchValues = false
	it := t.txn.NewIterator(opts)
	defer it.Close()

	key := itemKey(t.backend.prefix, ts)
	it.Seek(key)
	for it.Valid() {
		cur := decodeItemTS(it.Item().Key())
		if !inclusive {
			if reverse && cur >= ts {
				it.Next()
				continue
			}
			if !reverse && cur <= ts {
				it.Next()
				continue
			}
		}
		return cur, true, nil
	}
	return 0, false, nil
}

func (t *transaction) SeekNearest(ctx context.Context, ts int64) (int64, bool, error) {
	return t.seekFrom(ts, false, true)
}

func (t *transaction) SeekNext(ctx context.Context, ts int64) (int64, bool, error) {
	return t.seekFrom(ts, false, false)
}

func (t *transaction) SeekPrevious(ctx context.Context, ts int64) (int64, bool, error) {
	return t.seekFrom(ts, true, false)
}

func (t *transaction) Read(ctx context.Context, ts int64) (string, []byte, bool, error) {
	item, err := t.txn.Get(itemKey(t.backend.prefix, ts))
	if err == badger.ErrKeyNotFound {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	var metadata string
	var value []byte
	err = item.Value(func(val []byte) error {
		v, decErr := decodeItem(val)
		if decErr != nil {
			return decErr
		}
		metadata = v.Metadata
		value = v.Value
		return nil
	})
	if err != nil {
		return "", nil, false, err
	}
	return metadata, value, true, nil
}

func (t *transaction) Append(ctx context.Context, ts int64, metadata string, value []byte) (bool, error) {
	meta, err := t.backend.readMeta(t.txn)
	if err != nil {
		return false, err
	}

	if meta.MaxSize > 0 && uint64(len(value)) > meta.MaxSize {
		return false, nil
	}
	if meta.HasLast && ts <= meta.LastTS {
		return false, nil
	}

	if err := t.txn.Set(itemKey(t.backend.prefix, ts), encodeItem(metadata, value)); err != nil {
		return false, err
	}
	meta.Length++
	meta.Size += uint64(len(value))
	meta.LastTS = ts
	meta.HasLast = true

	if err := t.backend.enforceQuota(t.txn, &meta); err != nil {
		return false, err
	}
	if err := t.txn.Set(metaKey(t.backend.prefix), encodeMeta(meta)); err != nil {
		return false, err
	}
	return true, nil
}

func (t *transaction) DeleteRange(ctx context.Context, a, b int64) error {
	if a >= b {
		return nil
	}
	meta, err := t.backend.readMeta(t.txn)
	if err != nil {
		return err
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = itemKeyPrefix(t.backend.prefix)
	it := t.txn.NewIterator(opts)
	start := itemKey(t.backend.prefix, a)

	var toDelete [][]byte
	for it.Seek(start); it.Valid(); it.Next() {
		ts := decodeItemTS(it.Item().Key())
		if ts >= b {
			break
		}
		key := it.Item().KeyCopy(nil)
		var sz int
		if err := it.Item().Value(func(val []byte) error {
			v, decErr := decodeItem(val)
			if decErr != nil {
				return decErr
			}
			sz = len(v.Value)
			return nil
		}); err != nil {
			it.Close()
			return err
		}
		toDelete = append(toDelete, key)
		meta.Length--
		meta.Size -= uint64(sz)
	}
	it.Close()

	for _, key := range toDelete {
		if err := t.txn.Delete(key); err != nil {
			return err
		}
	}
	return t.txn.Set(metaKey(t.backend.prefix), encodeMeta(meta))
}

func (t *transaction) ClearContent(ctx context.Context) error {
	meta, err := t.backend.readMeta(t.txn)
	if err != nil {
		return err
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = itemKeyPrefix(t.backend.prefix)
	opts.PrefetchValues = false
	it := t.txn.NewIterator(opts)
	var toDelete [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		toDelete = append(toDelete, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range toDelete {
		if err := t.txn.Delete(key); err != nil {
			return err
		}
	}

	meta.Length = 0
	meta.Size = 0
	// last_timestamp is intentionally preserved.
	return t.txn.Set(metaKey(t.backend.prefix), encodeMeta(meta))
}

func (t *transaction) Statistics(ctx context.Context) (backend.Stats, error) {
	meta, err := t.backend.readMeta(t.txn)
	if err != nil {
		return backend.Stats{}, err
	}
	return backend.Stats{Length: meta.Length, Size: meta.Size}, nil
}

func (t *transaction) LastTimestamp(ctx context.Context) (int64, bool, error) {
	meta, err := t.backend.readMeta(t.txn)
	if err != nil {
		return 0, false, err
	}
	return meta.LastTS, meta.HasLast, nil
}

func (t *transaction) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.txn.Commit()
}

func (t *transaction) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.txn.Discard()
	return nil
}
