package memory

import (
	"context"
	"testing"
)

func TestAppendMonotoneSequence(t *testing.T) {
	b := New(0, 0)
	ctx := context.Background()
	tx, err := b.BeginTransaction(ctx, false)
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}

	for i := int64(0); i < 50; i++ {
		ok, err := tx.Append(ctx, i, "", []byte{byte(i)})
		if err != nil || !ok {
			t.Fatalf("append %d: ok=%v err=%v", i, ok, err)
		}
	}

	stats, err := tx.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.Length != 50 {
		t.Errorf("expected length 50, got %d", stats.Length)
	}
	if stats.Size != 50 {
		t.Errorf("expected size 50, got %d", stats.Size)
	}
}

func TestLengthQuota(t *testing.T) {
	b := New(10, 0)
	ctx := context.Background()
	tx, _ := b.BeginTransaction(ctx, false)

	for i := int64(0); i < 50; i++ {
		ts := i * 10
		ok, err := tx.Append(ctx, ts, "", []byte("x"))
		if err != nil || !ok {
			t.Fatalf("append %d: ok=%v err=%v", ts, ok, err)
		}
	}

	stats, _ := tx.Statistics(ctx)
	if stats.Length != 10 {
		t.Fatalf("expected length 10, got %d", stats.Length)
	}

	first, ok, _ := tx.SeekFirst(ctx)
	if !ok || first != 400 {
		t.Errorf("expected first ts 400, got %d ok=%v", first, ok)
	}
	last, ok, _ := tx.SeekLast(ctx)
	if !ok || last != 490 {
		t.Errorf("expected last ts 490, got %d ok=%v", last, ok)
	}
}

func TestSizeQuota(t *testing.T) {
	b := New(0, 10)
	ctx := context.Background()
	tx, _ := b.BeginTransaction(ctx, false)

	ok, err := tx.Append(ctx, 0, "", []byte("0123456789"))
	if err != nil || !ok {
		t.Fatalf("append 0: ok=%v err=%v", ok, err)
	}

	ok, err = tx.Append(ctx, 1, "", []byte("0123456789a"))
	if err != nil || ok {
		t.Fatalf("append 1 should be rejected, got ok=%v err=%v", ok, err)
	}

	ok, err = tx.Append(ctx, 2, "", []byte("56789"))
	if err != nil || !ok {
		t.Fatalf("append 2: ok=%v err=%v", ok, err)
	}

	stats, _ := tx.Statistics(ctx)
	if stats.Length != 1 {
		t.Errorf("expected length 1, got %d", stats.Length)
	}
	if stats.Size != 5 {
		t.Errorf("expected size 5, got %d", stats.Size)
	}

	_, _, ok0, _ := tx.Read(ctx, 0)
	if ok0 {
		t.Error("item 0 should have been evicted")
	}
}

func TestRangeDelete(t *testing.T) {
	b := New(0, 0)
	ctx := context.Background()
	tx, _ := b.BeginTransaction(ctx, false)

	for i := int64(0); i < 10; i++ {
		if _, err := tx.Append(ctx, i, "", nil); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	mustHave := func(want ...int64) {
		t.Helper()
		for _, ts := range want {
			_, _, ok, _ := tx.Read(ctx, ts)
			if !ok {
				t.Errorf("expected ts %d to be present", ts)
			}
		}
	}
	mustNotHave := func(bad ...int64) {
		t.Helper()
		for _, ts := range bad {
			_, _, ok, _ := tx.Read(ctx, ts)
			if ok {
				t.Errorf("expected ts %d to be absent", ts)
			}
		}
	}

	if err := tx.DeleteRange(ctx, 3, 7); err != nil {
		t.Fatalf("DeleteRange(3,7): %v", err)
	}
	mustHave(0, 1, 2, 7, 8, 9)
	mustNotHave(3, 4, 5, 6)

	if err := tx.DeleteRange(ctx, -10, 2); err != nil {
		t.Fatalf("DeleteRange(-10,2): %v", err)
	}
	mustHave(2, 7, 8, 9)
	mustNotHave(0, 1)

	if err := tx.DeleteRange(ctx, 9, 20); err != nil {
		t.Fatalf("DeleteRange(9,20): %v", err)
	}
	mustHave(2, 7, 8)
	mustNotHave(9)

	if err := tx.DeleteRange(ctx, 2, 3); err != nil {
		t.Fatalf("DeleteRange(2,3): %v", err)
	}
	mustHave(7, 8)
	mustNotHave(2)

	if err := tx.ClearContent(ctx); err != nil {
		t.Fatalf("ClearContent: %v", err)
	}
	stats, _ := tx.Statistics(ctx)
	if stats.Length != 0 {
		t.Errorf("expected empty series, got length %d", stats.Length)
	}

	last, ok, _ := tx.LastTimestamp(ctx)
	if !ok || last != 9 {
		t.Errorf("expected last_timestamp to survive ClearContent as 9, got %d ok=%v", last, ok)
	}
}

func TestDeleteRangeNoOpWhenAGEB(t *testing.T) {
	b := New(0, 0)
	ctx := context.Background()
	tx, _ := b.BeginTransaction(ctx, false)
	tx.Append(ctx, 5, "", nil)

	if err := tx.DeleteRange(ctx, 5, 5); err != nil {
		t.Fatalf("DeleteRange(5,5): %v", err)
	}
	_, _, ok, _ := tx.Read(ctx, 5)
	if !ok {
		t.Error("a>=b delete_range must be a no-op")
	}
}

func TestMonotonicityRejection(t *testing.T) {
	b := New(0, 0)
	ctx := context.Background()
	tx, _ := b.BeginTransaction(ctx, false)

	if _, err := tx.Append(ctx, 10, "", nil); err != nil {
		t.Fatalf("append 10: %v", err)
	}
	ok, err := tx.Append(ctx, 10, "", nil)
	if err != nil || ok {
		t.Fatalf("equal timestamp append should fail, got ok=%v err=%v", ok, err)
	}
	ok, err = tx.Append(ctx, 5, "", nil)
	if err != nil || ok {
		t.Fatalf("lower timestamp append should fail, got ok=%v err=%v", ok, err)
	}
}

func TestQuotaTighteningEvictsOnSetQuota(t *testing.T) {
	b := New(0, 0)
	ctx := context.Background()
	tx, _ := b.BeginTransaction(ctx, false)
	for i := int64(0); i < 5; i++ {
		tx.Append(ctx, i, "", nil)
	}

	if err := b.SetQuota(ctx, 2, 0); err != nil {
		t.Fatalf("SetQuota: %v", err)
	}

	stats, _ := tx.Statistics(ctx)
	if stats.Length != 2 {
		t.Errorf("expected length 2 after tightened quota, got %d", stats.Length)
	}
	first, _, _ := tx.SeekFirst(ctx)
	if first != 3 {
		t.Errorf("expected oldest surviving ts 3, got %d", first)
	}
}
