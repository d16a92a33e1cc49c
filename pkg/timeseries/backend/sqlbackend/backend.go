package sqlbackend

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/abrandao/iotseries/pkg/timeseries/backend"
)

// Backend is a single series' handle into a shared Store's database.
type Backend struct {
	store    *Store
	seriesID int64
}

func (b *Backend) BeginTransaction(ctx context.Context, readOnly bool) (backend.Transaction, error) {
	if !readOnly {
		b.store.writeMu.Lock()
	}
	tx, err := b.store.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		if !readOnly {
			b.store.writeMu.Unlock()
		}
		return nil, fmt.Errorf("sqlbackend: begin tx: %w", err)
	}
	return &transaction{backend: b, tx: tx, readOnly: readOnly}, nil
}

// SetQuota updates the declared quota and evicts oldest items until it
// holds, inside a single write transaction.
func (b *Backend) SetQuota(ctx context.Context, maxLength, maxSizeBytes uint64) error {
	b.store.writeMu.Lock()
	defer b.store.writeMu.Unlock()

	return retryOnContention(func() error {
		tx, err := b.store.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`UPDATE series SET max_length = ?, max_size = ? WHERE id = ?`,
			maxLength, maxSizeBytes, b.seriesID); err != nil {
			return err
		}
		if err := enforceQuota(ctx, tx, b.seriesID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Close is a no-op: the underlying *sql.DB is owned by the Store, which
// may host many series backends simultaneously.
func (b *Backend) Close() error {
	return nil
}

type transaction struct {
	backend  *Backend
	tx       *sql.Tx
	readOnly bool
	done     bool
}

func (t *transaction) seriesRow(ctx context.Context) (maxLength, maxSize, length, size uint64, lastTS int64, hasLast bool, err error) {
	var lastTSNull sql.NullInt64
	err = t.tx.QueryRowContext(ctx,
		`SELECT max_length, max_size, length, size, last_timestamp, has_last FROM series WHERE id = ?`,
		t.backend.seriesID,
	).Scan(&maxLength, &maxSize, &length, &size, &lastTSNull, &hasLast)
	if err != nil {
		return
	}
	if lastTSNull.Valid {
		lastTS = lastTSNull.Int64
	}
	return
}

func (t *transaction) SeekFirst(ctx context.Context) (int64, bool, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT MIN(ts) FROM item WHERE series_id = ?`, t.backend.seriesID)
	var nts sql.NullInt64
	if err := row.Scan(&nts); err != nil {
		return 0, false, err
	}
	if !nts.Valid {
		return 0, false, nil
	}
	return nts.Int64, true, nil
}

func (t *transaction) SeekLast(ctx context.Context) (int64, bool, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT MAX(ts) FROM item WHERE series_id = ?`, t.backend.seriesID)
	var nts sql.NullInt64
	if err := row.Scan(&nts); err != nil {
		return 0, false, err
	}
	if !nts.Valid {
		return 0, false, nil
	}
	return nts.Int64, true, nil
}

func (t *transaction) SeekNearest(ctx context.Context, ts int64) (int64, bool, error) {
	return t.seekOne(ctx, `SELECT MIN(ts) FROM item WHERE series_id = ? AND ts >= ?`, ts)
}

func (t *transaction) SeekNext(ctx context.Context, ts int64) (int64, bool, error) {
	return t.seekOne(ctx, `SELECT MIN(ts) FROM item WHERE series_id = ? AND ts > ?`, ts)
}

func (t *transaction) SeekPrevious(ctx context.Context, ts int64) (int64, bool, error) {
	return t.seekOne(ctx, `SELECT MAX(ts) FROM item WHERE series_id = ? AND ts < ?`, ts)
}

func (t *transaction) seekOne(ctx context.Context, query string, ts int64) (int64, bool, error) {
	row := t.tx.QueryRowContext(ctx, query, t.backend.seriesID, ts)
	var nts sql.NullInt64
	if err := row.Scan(&nts); err != nil {
		return 0, false, err
	}
	if !nts.Valid {
		return 0, false, nil
	}
	return nts.Int64, true, nil
}

func (t *transaction) Read(ctx context.Context, ts int64) (string, []byte, bool, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT metadata, value FROM item WHERE series_id = ? AND ts = ?`, t.backend.seriesID, ts)
	var metadata string
	var value []byte
	err := row.Scan(&metadata, &value)
	if err == sql.ErrNoRows {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	return metadata, value, true, nil
}

// Append runs the five-step algorithm inside the already-open write
// transaction.
func (t *transaction) Append(ctx context.Context, ts int64, metadata string, value []byte) (bool, error) {
	_, maxSize, _, _, lastTS, hasLast, err := t.seriesRow(ctx)
	if err != nil {
		return false, err
	}

	if maxSize > 0 && uint64(len(value)) > maxSize {
		return false, nil
	}
	if hasLast && ts <= lastTS {
		return false, nil
	}

	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO item (series_id, ts, size, metadata, value) VALUES (?, ?, ?, ?, ?)`,
		t.backend.seriesID, ts, len(value), metadata, value); err != nil {
		return false, err
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE series SET length = length + 1, size = size + ?, last_timestamp = ?, has_last = 1 WHERE id = ?`,
		len(value), ts, t.backend.seriesID); err != nil {
		return false, err
	}

	if err := enforceQuota(ctx, t.tx, t.backend.seriesID); err != nil {
		return false, err
	}

	return true, nil
}

func (t *transaction) DeleteRange(ctx context.Context, a, b int64) error {
	if a >= b {
		return nil
	}
	var freedSize uint64
	if err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM item WHERE series_id = ? AND ts >= ? AND ts < ?`,
		t.backend.seriesID, a, b).Scan(&freedSize); err != nil {
		return err
	}

	result, err := t.tx.ExecContext(ctx,
		`DELETE FROM item WHERE series_id = ? AND ts >= ? AND ts < ?`, t.backend.seriesID, a, b)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx,
		`UPDATE series SET length = length - ?, size = size - ? WHERE id = ?`,
		rows, freedSize, t.backend.seriesID)
	return err
}

func (t *transaction) ClearContent(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM item WHERE series_id = ?`, t.backend.seriesID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`UPDATE series SET length = 0, size = 0 WHERE id = ?`, t.backend.seriesID)
	return err
}

func (t *transaction) Statistics(ctx context.Context) (backend.Stats, error) {
	_, _, length, size, _, _, err := t.seriesRow(ctx)
	if err != nil {
		return backend.Stats{}, err
	}
	return backend.Stats{Length: length, Size: size}, nil
}

func (t *transaction) LastTimestamp(ctx context.Context) (int64, bool, error) {
	_, _, _, _, lastTS, hasLast, err := t.seriesRow(ctx)
	return lastTS, hasLast, err
}

func (t *transaction) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.tx.Commit()
	if !t.readOnly {
		t.backend.store.writeMu.Unlock()
	}
	return err
}

func (t *transaction) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.tx.Rollback()
	if !t.readOnly {
		t.backend.store.writeMu.Unlock()
	}
	return err
}

// enforceQuota evicts oldest items until both quotas hold. Caller holds
// the write transaction.
func enforceQuota(ctx context.Context, tx *sql.Tx, seriesID int64) error {
	for {
		var maxLength, maxSize, length, size uint64
		var lastTSNull sql.NullInt64
		var hasLast bool
		if err := tx.QueryRowContext(ctx,
			`SELECT max_length, max_size, length, size, last_timestamp, has_last FROM series WHERE id = ?`,
			seriesID).Scan(&maxLength, &maxSize, &length, &size, &lastTSNull, &hasLast); err != nil {
			return err
		}

		needsLengthEvict := maxLength > 0 && length > maxLength
		needsSizeEvict := maxSize > 0 && size > maxSize && length > 0
		if !needsLengthEvict && !needsSizeEvict {
			return nil
		}

		var oldestTS int64
		var oldestSize uint64
		if err := tx.QueryRowContext(ctx,
			`SELECT ts, size FROM item WHERE series_id = ? ORDER BY ts ASC LIMIT 1`,
			seriesID).Scan(&oldestTS, &oldestSize); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM item WHERE series_id = ? AND ts = ?`, seriesID, oldestTS); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE series SET length = length - 1, size = size - ? WHERE id = ?`,
			oldestSize, seriesID); err != nil {
			return err
		}
	}
}
