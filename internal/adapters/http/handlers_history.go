package web

import (
	"database/sql"
	"errors"
	"net/http"

	"bulksms/internal/adapters/http/middleware"
	"bulksms/internal/application/listutil"
	"bulksms/internal/application/orchestrators"
	"bulksms/internal/application/projections"
)

// handleHistory lists the signed-in operator's dispatches, newest first.
func handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if app.Journal == nil || !ok {
		http.NotFound(w, r)
		return
	}
	result, err := projections.QueryGetDispatchHistory(r.Context(), projections.GetDispatchHistoryQuery{
		Operator: sess.Username,
		Page:     listutil.ParsePageParams(r.URL.Query()),
	}, projections.GetDispatchHistoryDeps{DispatchStore: app.Journal})
	if err != nil {
		internalError(w, err)
		return
	}

	renderTemplate(w, r, "history.html", map[string]any{
		"Dispatches":     result.Dispatches,
		"PageInfo":       result.PageInfo,
		"PerPageOptions": listutil.PerPageOptions,
	})
}

// handleHistoryDetail shows one of the operator's dispatches with its chunk replies.
func handleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if app.Journal == nil || !ok {
		http.NotFound(w, r)
		return
	}
	result, err := projections.QueryGetDispatchDetail(r.Context(), projections.GetDispatchDetailQuery{
		ID:       r.PathValue("id"),
		Operator: sess.Username,
	}, projections.GetDispatchDetailDeps{DispatchStore: app.Journal})
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}

	renderTemplate(w, r, "history_detail.html", map[string]any{
		"Dispatch": result.Dispatch,
		"Verdict":  string(result.Verdict),
		"Report": orchestrators.DispatchReportMarkdown(orchestrators.DispatchReportInput{
			Dispatch: result.Dispatch,
			Chunks:   result.Chunks,
		}),
	})
}
