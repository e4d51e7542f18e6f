package dispatch

import (
	"context"

	domain "bulksms/internal/domain/dispatch"
)

// Store persists the dispatch journal.
type Store interface {
	Save(ctx context.Context, d domain.Dispatch, chunks []domain.Chunk) error
	GetByID(ctx context.Context, id string) (domain.Dispatch, error)
	ListChunks(ctx context.Context, dispatchID string) ([]domain.Chunk, error)
	List(ctx context.Context, operator string, limit, offset int) ([]domain.Dispatch, error)
	Count(ctx context.Context, operator string) (int, error)
}
