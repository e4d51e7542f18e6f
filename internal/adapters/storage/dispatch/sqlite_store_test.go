package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"bulksms/internal/adapters/storage"
	domain "bulksms/internal/domain/dispatch"
	"bulksms/internal/domain/sms"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := storage.Open(storage.MemoryPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(storage.NewTimedDB(db, nil, 0))
}

func sampleDispatch(id string, created time.Time) domain.Dispatch {
	outcome := sms.BatchOutcome{SuccessCount: 800, FailureChunkCount: 1, ChunkCount: 2}
	return domain.New(id, domain.KindManyToMany, "acme", "Hi Ali", 1600, outcome, sms.ScheduleWindow{}, created)
}

// TestSQLiteStore_SaveAndGet verifies a dispatch and its chunks round-trip.
func TestSQLiteStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 5, 1, 10, 0, 0, 123, time.UTC)
	sendAt := created.Add(time.Hour)
	d := sampleDispatch("d1", created)
	d.SendAt = sendAt

	chunks := []domain.Chunk{
		{DispatchID: "d1", Index: 0, Size: 800, StatusCode: 200, Accepted: 800},
		{DispatchID: "d1", Index: 1, Size: 800, StatusCode: 0, TransportError: "connection refused"},
	}
	if err := s.Save(ctx, d, chunks); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.GetByID(ctx, "d1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Kind != domain.KindManyToMany || got.Operator != "acme" || got.ItemCount != 1600 {
		t.Errorf("got = %+v", got)
	}
	if got.Outcome() != d.Outcome() {
		t.Errorf("Outcome = %+v, want %+v", got.Outcome(), d.Outcome())
	}
	if !got.CreatedAt.Equal(created) || !got.SendAt.Equal(sendAt) {
		t.Errorf("times = %v / %v", got.CreatedAt, got.SendAt)
	}
	if !got.ExpireAt.IsZero() {
		t.Errorf("ExpireAt = %v, want zero", got.ExpireAt)
	}

	gotChunks, err := s.ListChunks(ctx, "d1")
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if len(gotChunks) != 2 || gotChunks[1].TransportError != "connection refused" || gotChunks[0].Accepted != 800 {
		t.Errorf("chunks = %+v", gotChunks)
	}
}

// TestSQLiteStore_SaveReplacesChunks verifies a second Save does not duplicate chunks.
func TestSQLiteStore_SaveReplacesChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := sampleDispatch("d1", time.Now())

	first := []domain.Chunk{{DispatchID: "d1", Index: 0, Size: 1, StatusCode: 500}}
	second := []domain.Chunk{{DispatchID: "d1", Index: 0, Size: 1, StatusCode: 200, Accepted: 1}}
	if err := s.Save(ctx, d, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, d, second); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	chunks, _ := s.ListChunks(ctx, "d1")
	if len(chunks) != 1 || chunks[0].StatusCode != 200 {
		t.Errorf("chunks = %+v", chunks)
	}
}

// TestSQLiteStore_GetByID_NotFound returns sql.ErrNoRows.
func TestSQLiteStore_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetByID(context.Background(), "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

// TestSQLiteStore_ListAndCount verifies newest-first paging scoped to one operator.
func TestSQLiteStore_ListAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		// Sub-second offsets check lexical ordering of fractional timestamps.
		created := base.Add(time.Duration(i) * 100 * time.Millisecond)
		if err := s.Save(ctx, sampleDispatch(fmt.Sprintf("d%d", i), created), nil); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	other := sampleDispatch("x0", base.Add(time.Hour))
	other.Operator = "globex"
	if err := s.Save(ctx, other, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	n, err := s.Count(ctx, "acme")
	if err != nil || n != 5 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	if n, _ := s.Count(ctx, "globex"); n != 1 {
		t.Errorf("Count(globex) = %d, want 1", n)
	}
	page, err := s.List(ctx, "acme", 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 || page[0].ID != "d4" || page[1].ID != "d3" {
		t.Errorf("first page = %v", ids(page))
	}
	last, _ := s.List(ctx, "acme", 2, 4)
	if len(last) != 1 || last[0].ID != "d0" {
		t.Errorf("last page = %v", ids(last))
	}
}

// TestSQLiteStore_ListChunks_Empty returns no chunks for an unknown dispatch.
func TestSQLiteStore_ListChunks_Empty(t *testing.T) {
	s := newTestStore(t)
	chunks, err := s.ListChunks(context.Background(), "nope")
	if err != nil || len(chunks) != 0 {
		t.Errorf("chunks = %v, err = %v", chunks, err)
	}
}

func ids(ds []domain.Dispatch) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}
