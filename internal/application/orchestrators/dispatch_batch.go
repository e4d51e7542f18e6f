package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bulksms/internal/application/listutil"
	"bulksms/internal/domain/sms"
)

// SendFunc sends one chunk. Credentials and schedule are bound by the caller.
type SendFunc[T any] func(ctx context.Context, chunk []T) (sms.Response, error)

// ChunkResult is the outcome of one chunk request.
// When Err is non-nil the chunk never got a provider reply and Response carries StatusCode 0 and the error text.
type ChunkResult struct {
	Index    int
	Size     int
	Response sms.Response
	Err      error
	Duration time.Duration
}

// ExecuteDispatchBatch splits items into chunks of size and sends them one after another in chunk order.
// PRE: size > 0; send is non-nil
// POST: len(result) == ceil(len(items)/size); every chunk was attempted exactly once
// INVARIANT: A failed chunk, rejected or unreachable, never stops later chunks; nothing is retried
func ExecuteDispatchBatch[T any](ctx context.Context, items []T, size int, send SendFunc[T]) ([]ChunkResult, error) {
	if send == nil {
		return nil, fmt.Errorf("%w: send function is required", sms.ErrInvalidArgument)
	}
	chunks, err := listutil.Chunk(items, size)
	if err != nil {
		return nil, err
	}

	results := make([]ChunkResult, 0, listutil.ChunkCount(len(items), size))
	for chunk := range chunks {
		idx := len(results)
		start := time.Now()
		resp, err := send(ctx, chunk)
		res := ChunkResult{Index: idx, Size: len(chunk), Response: resp, Err: err, Duration: time.Since(start)}
		if err != nil {
			res.Response = sms.Response{StatusDescription: err.Error()}
			slog.Warn("dispatch_event", "event", "chunk_failed", "chunk", idx, "size", len(chunk), "error", err)
		} else {
			slog.Info("dispatch_event", "event", "chunk_sent", "chunk", idx, "size", len(chunk),
				"status_code", resp.StatusCode, "accepted", acceptedCount(resp))
		}
		results = append(results, res)
	}
	return results, nil
}

// Responses returns the provider reply of each chunk, in chunk order.
func Responses(results []ChunkResult) []sms.Response {
	out := make([]sms.Response, len(results))
	for i, r := range results {
		out[i] = r.Response
	}
	return out
}

// acceptedCount is the number of recipients a reply accounts for; zero unless it succeeded.
func acceptedCount(resp sms.Response) int {
	if !resp.Succeeded() {
		return 0
	}
	return resp.ResultLen()
}
