package projections

import (
	"context"
	"database/sql"

	domainDispatch "bulksms/internal/domain/dispatch"
	"bulksms/internal/domain/sms"
)

// GetDispatchDetailQuery names the dispatch and the operator asking for it.
type GetDispatchDetailQuery struct {
	ID       string
	Operator string
}

// GetDispatchDetailResult carries a dispatch with its chunk replies.
type GetDispatchDetailResult struct {
	Dispatch domainDispatch.Dispatch
	Chunks   []domainDispatch.Chunk
	Verdict  sms.Verdict
}

// GetDispatchDetailDeps holds dependencies for GetDispatchDetail.
type GetDispatchDetailDeps struct {
	DispatchStore DispatchStore
}

// QueryGetDispatchDetail retrieves one dispatch and its chunks in index order.
// PRE: query.ID is non-empty
// POST: Returns sql.ErrNoRows (unwrapped) when the dispatch does not exist or belongs to another operator
// INVARIANT: Verdict is computed from the stored counts, the same way the live banner was
func QueryGetDispatchDetail(ctx context.Context, query GetDispatchDetailQuery, deps GetDispatchDetailDeps) (GetDispatchDetailResult, error) {
	d, err := deps.DispatchStore.GetByID(ctx, query.ID)
	if err != nil {
		return GetDispatchDetailResult{}, err
	}
	if d.Operator != query.Operator {
		return GetDispatchDetailResult{}, sql.ErrNoRows
	}
	chunks, err := deps.DispatchStore.ListChunks(ctx, d.ID)
	if err != nil {
		return GetDispatchDetailResult{}, err
	}
	return GetDispatchDetailResult{Dispatch: d, Chunks: chunks, Verdict: d.Outcome().Verdict()}, nil
}
