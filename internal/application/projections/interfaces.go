package projections

import (
	"context"

	domainDispatch "bulksms/internal/domain/dispatch"
)

// DispatchStore interface for journal queries.
type DispatchStore interface {
	GetByID(ctx context.Context, id string) (domainDispatch.Dispatch, error)
	ListChunks(ctx context.Context, dispatchID string) ([]domainDispatch.Chunk, error)
	List(ctx context.Context, operator string, limit, offset int) ([]domainDispatch.Dispatch, error)
	Count(ctx context.Context, operator string) (int, error)
}
