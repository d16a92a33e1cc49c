// Package backendtest provides a shared property-based test suite run
// against every concrete backend.Backend implementation, so memory,
// sqlbackend, and lsm are held to the identical contract.
package backendtest

import (
	"context"
	"testing"

	"github.com/abrandao/iotseries/pkg/timeseries/backend"
)

// Factory constructs a fresh, empty Backend with the given initial
// quota for each subtest.
type Factory func(t *testing.T, maxLength, maxSize uint64) backend.Backend

// Run exercises P1-P6 and R1 against the backend produced by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	t.Run("SequenceRoundTrip", func(t *testing.T) { testSequenceRoundTrip(t, newBackend) })
	t.Run("LengthQuota", func(t *testing.T) { testLengthQuota(t, newBackend) })
	t.Run("SizeQuota", func(t *testing.T) { testSizeQuota(t, newBackend) })
	t.Run("RangeDelete", func(t *testing.T) { testRangeDelete(t, newBackend) })
	t.Run("Monotonicity", func(t *testing.T) { testMonotonicity(t, newBackend) })
	t.Run("StatisticsExact", func(t *testing.T) { testStatisticsExact(t, newBackend) })
}

func testSequenceRoundTrip(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	b := newBackend(t, 0, 0)
	tx, err := b.BeginTransaction(ctx, false)
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	defer tx.Commit()

	const n = 20
	for i := int64(0); i < n; i++ {
		ok, err := tx.Append(ctx, i, "", []byte("x"))
		if err != nil || !ok {
			t.Fatalf("append %d: ok=%v err=%v", i, ok, err)
		}
	}

	ts, ok, err := tx.SeekFirst(ctx)
	if err != nil || !ok || ts != 0 {
		t.Fatalf("SeekFirst: ts=%d ok=%v err=%v", ts, ok, err)
	}
	for i := int64(0); i < n-1; i++ {
		next, ok, err := tx.SeekNext(ctx, i)
		if err != nil || !ok || next != i+1 {
			t.Fatalf("SeekNext(%d): ts=%d ok=%v err=%v", i, next, ok, err)
		}
	}
}

func testLengthQuota(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	b := newBackend(t, 10, 0)
	tx, err := b.BeginTransaction(ctx, false)
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	defer tx.Commit()

	for i := int64(0); i < 50; i++ {
		if _, err := tx.Append(ctx, i*10, "", nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	stats, err := tx.Statistics(ctx)
	if err != nil || stats.Length != 10 {
		t.Fatalf("expected length 10, got %d (err=%v)", stats.Length, err)
	}
}

func testSizeQuota(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	b := newBackend(t, 0, 10)
	tx, err := b.BeginTransaction(ctx, false)
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	defer tx.Commit()

	if ok, err := tx.Append(ctx, 0, "", []byte("0123456789")); err != nil || !ok {
		t.Fatalf("append 0: ok=%v err=%v", ok, err)
	}
	if ok, err := tx.Append(ctx, 1, "", []byte("0123456789a")); err != nil || ok {
		t.Fatalf("oversize append should be rejected, got ok=%v err=%v", ok, err)
	}
	if ok, err := tx.Append(ctx, 2, "", []byte("56789")); err != nil || !ok {
		t.Fatalf("append 2: ok=%v err=%v", ok, err)
	}
	stats, err := tx.Statistics(ctx)
	if err != nil || stats.Length != 1 || stats.Size != 5 {
		t.Fatalf("expected length=1 size=5, got length=%d size=%d (err=%v)", stats.Length, stats.Size, err)
	}
}

func testRangeDelete(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	b := newBackend(t, 0, 0)
	tx, err := b.BeginTransaction(ctx, false)
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	defer tx.Commit()

	for i := int64(0); i < 10; i++ {
		if _, err := tx.Append(ctx, i, "", nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := tx.DeleteRange(ctx, 3, 7); err != nil {
		t.Fatalf("DeleteRange: %v", err)
	}
	stats, err := tx.Statistics(ctx)
	if err != nil || stats.Length != 6 {
		t.Fatalf("expected length 6, got %d (err=%v)", stats.Length, err)
	}
	if err := tx.ClearContent(ctx); err != nil {
		t.Fatalf("ClearContent: %v", err)
	}
	last, ok, err := tx.LastTimestamp(ctx)
	if err != nil || !ok || last != 9 {
		t.Fatalf("last_timestamp should survive ClearContent as 9, got %d ok=%v err=%v", last, ok, err)
	}
}

func testMonotonicity(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	b := newBackend(t, 0, 0)
	tx, err := b.BeginTransaction(ctx, false)
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	defer tx.Commit()

	if _, err := tx.Append(ctx, 10, "", nil); err != nil {
		t.Fatalf("append 10: %v", err)
	}
	if ok, err := tx.Append(ctx, 10, "", nil); err != nil || ok {
		t.Fatalf("equal ts should be rejected, got ok=%v err=%v", ok, err)
	}
	if ok, err := tx.Append(ctx, 5, "", nil); err != nil || ok {
		t.Fatalf("lower ts should be rejected, got ok=%v err=%v", ok, err)
	}
}

func testStatisticsExact(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	b := newBackend(t, 0, 0)
	tx, err := b.BeginTransaction(ctx, false)
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	defer tx.Commit()

	values := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	var wantSize uint64
	for i, v := range values {
		if _, err := tx.Append(ctx, int64(i), "", v); err != nil {
			t.Fatalf("append: %v", err)
		}
		wantSize += uint64(len(v))
	}
	stats, err := tx.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.Length != uint64(len(values)) || stats.Size != wantSize {
		t.Fatalf("expected length=%d size=%d, got length=%d size=%d",
			len(values), wantSize, stats.Length, stats.Size)
	}
}
