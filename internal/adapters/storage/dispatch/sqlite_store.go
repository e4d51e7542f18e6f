package dispatch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bulksms/internal/adapters/storage"
	domain "bulksms/internal/domain/dispatch"
)

// timeLayout has a fixed-width fraction so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const dispatchColumns = `id, kind, operator, preview, item_count, chunk_count, success_count,
	failure_chunk_count, send_at, expire_at, created_at`

// Save writes a dispatch and its chunks in one transaction.
// PRE: d has been validated; every chunk's DispatchID equals d.ID
// POST: The dispatch row is upserted and its chunk rows replaced
func (s *SQLiteStore) Save(ctx context.Context, d domain.Dispatch, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dispatch (`+dispatchColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   kind=excluded.kind, operator=excluded.operator, preview=excluded.preview,
		   item_count=excluded.item_count, chunk_count=excluded.chunk_count,
		   success_count=excluded.success_count, failure_chunk_count=excluded.failure_chunk_count,
		   send_at=excluded.send_at, expire_at=excluded.expire_at`,
		d.ID, d.Kind, d.Operator, d.Preview, d.ItemCount, d.ChunkCount, d.SuccessCount,
		d.FailureChunkCount, nullTime(d.SendAt), nullTime(d.ExpireAt), d.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save dispatch %s: %w", d.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dispatch_chunk WHERE dispatch_id = ?`, d.ID); err != nil {
		return fmt.Errorf("clear chunks of %s: %w", d.ID, err)
	}
	for _, c := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dispatch_chunk (dispatch_id, idx, size, status_code, status_description, accepted, transport_error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID, c.Index, c.Size, c.StatusCode, nullStr(c.StatusDescription), c.Accepted, nullStr(c.TransportError))
		if err != nil {
			return fmt.Errorf("save chunk %d of %s: %w", c.Index, d.ID, err)
		}
	}
	return tx.Commit()
}

// GetByID retrieves a dispatch by its ID.
// PRE: id is non-empty
// POST: Returns the dispatch or sql.ErrNoRows
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Dispatch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+dispatchColumns+` FROM dispatch WHERE id = ?`, id)
	return scanDispatch(row)
}

// ListChunks retrieves the chunks of a dispatch in send order.
// PRE: dispatchID is non-empty
// POST: Returns chunks ordered by index; empty when none exist
func (s *SQLiteStore) ListChunks(ctx context.Context, dispatchID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dispatch_id, idx, size, status_code, status_description, accepted, transport_error
		 FROM dispatch_chunk WHERE dispatch_id = ? ORDER BY idx`, dispatchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var desc, transportErr sql.NullString
		if err := rows.Scan(&c.DispatchID, &c.Index, &c.Size, &c.StatusCode, &desc, &c.Accepted, &transportErr); err != nil {
			return nil, err
		}
		c.StatusDescription = desc.String
		c.TransportError = transportErr.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// List retrieves the dispatches of one operator, newest first.
// PRE: limit > 0, offset >= 0
// POST: Returns at most limit dispatches, all sent by operator
func (s *SQLiteStore) List(ctx context.Context, operator string, limit, offset int) ([]domain.Dispatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+dispatchColumns+` FROM dispatch WHERE operator = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		operator, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Count returns the number of dispatches journaled for operator.
func (s *SQLiteStore) Count(ctx context.Context, operator string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dispatch WHERE operator = ?`, operator).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDispatch(row scanner) (domain.Dispatch, error) {
	var d domain.Dispatch
	var sendAt, expireAt sql.NullString
	var createdAt string
	err := row.Scan(&d.ID, &d.Kind, &d.Operator, &d.Preview, &d.ItemCount, &d.ChunkCount, &d.SuccessCount,
		&d.FailureChunkCount, &sendAt, &expireAt, &createdAt)
	if err != nil {
		return domain.Dispatch{}, err
	}
	d.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if sendAt.Valid {
		d.SendAt, _ = time.Parse(timeLayout, sendAt.String)
	}
	if expireAt.Valid {
		d.ExpireAt, _ = time.Parse(timeLayout, expireAt.String)
	}
	return d, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
