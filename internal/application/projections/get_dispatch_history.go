package projections

import (
	"context"
	"fmt"

	"bulksms/internal/application/listutil"
	domainDispatch "bulksms/internal/domain/dispatch"
)

// GetDispatchHistoryQuery carries query parameters.
type GetDispatchHistoryQuery struct {
	Operator string // only this operator's dispatches are listed
	Page     listutil.PageParams
}

// GetDispatchHistoryResult carries one page of the journal.
type GetDispatchHistoryResult struct {
	Dispatches []domainDispatch.Dispatch
	PageInfo   listutil.PageInfo
}

// GetDispatchHistoryDeps holds dependencies for GetDispatchHistory.
type GetDispatchHistoryDeps struct {
	DispatchStore DispatchStore
}

// QueryGetDispatchHistory retrieves one page of the operator's dispatches, newest first.
// PRE: query.Page comes from listutil.ParsePageParams
// POST: PageInfo.Page is clamped to the last page; Dispatches holds at most PerPage entries
func QueryGetDispatchHistory(ctx context.Context, query GetDispatchHistoryQuery, deps GetDispatchHistoryDeps) (GetDispatchHistoryResult, error) {
	total, err := deps.DispatchStore.Count(ctx, query.Operator)
	if err != nil {
		return GetDispatchHistoryResult{}, fmt.Errorf("count dispatches: %w", err)
	}
	info := listutil.NewPageInfo(query.Page.Page, query.Page.PerPage, total)
	list, err := deps.DispatchStore.List(ctx, query.Operator, info.PerPage, info.Offset())
	if err != nil {
		return GetDispatchHistoryResult{}, fmt.Errorf("list dispatches: %w", err)
	}
	return GetDispatchHistoryResult{Dispatches: list, PageInfo: info}, nil
}
