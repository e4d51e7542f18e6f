package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bulksms/internal/adapters/provider"
	"bulksms/internal/domain/dispatch"
	"bulksms/internal/domain/sms"
)

// DispatchJournal records completed dispatches for the history pages.
type DispatchJournal interface {
	Save(ctx context.Context, d dispatch.Dispatch, chunks []dispatch.Chunk) error
}

// SendDeps holds dependencies shared by both send orchestrators.
// Journal and Report are optional.
type SendDeps struct {
	Provider   provider.API
	Journal    DispatchJournal
	Report     *DispatchReportDeps
	GenerateID func() string
	Now        func() time.Time
}

// SendResult is what the operator sees after a dispatch.
// Outcome is always computed from the live chunk replies.
type SendResult struct {
	DispatchID string
	Outcome    sms.BatchOutcome
	Chunks     []ChunkResult
}

// --- One-to-many ---

// SendOneToManyInput carries a broadcast.
type SendOneToManyInput struct {
	Credentials sms.Credentials
	Message     string
	Receivers   []sms.Recipient
	Window      sms.ScheduleWindow
}

// ExecuteSendOneToMany broadcasts one message to every receiver, sms.ChunkSize receivers per request.
// PRE: Message is non-blank; Receivers is non-empty; Window is coherent
// POST: One request per chunk was made in order; the dispatch is journaled and reported when configured
// INVARIANT: Cancelling ctx never stops the batch or its journal record; ctx values still flow through
func ExecuteSendOneToMany(ctx context.Context, input SendOneToManyInput, deps SendDeps) (SendResult, error) {
	if strings.TrimSpace(input.Message) == "" {
		return SendResult{}, fmt.Errorf("%w: message is empty", sms.ErrInvalidArgument)
	}
	if len(input.Receivers) == 0 {
		return SendResult{}, fmt.Errorf("%w: no receivers", sms.ErrInvalidArgument)
	}
	if err := input.Window.Validate(); err != nil {
		return SendResult{}, err
	}

	ctx = context.WithoutCancel(ctx)
	send := func(ctx context.Context, chunk []sms.Recipient) (sms.Response, error) {
		return deps.Provider.SendOneToMany(ctx, input.Credentials, input.Message, chunk, input.Window)
	}
	chunks, err := ExecuteDispatchBatch(ctx, input.Receivers, sms.ChunkSize, send)
	if err != nil {
		return SendResult{}, err
	}
	return finishDispatch(ctx, dispatch.KindOneToMany, input.Credentials.Username, input.Message,
		len(input.Receivers), input.Window, chunks, deps), nil
}

// --- Many-to-many ---

// SendManyToManyInput carries generated message pairs.
type SendManyToManyInput struct {
	Credentials sms.Credentials
	Pairs       []sms.MessagePair
	Window      sms.ScheduleWindow
}

// ExecuteSendManyToMany sends each pair's message to its receiver, sms.ChunkSize pairs per request.
// PRE: Pairs is non-empty; Window is coherent
// POST: One request per chunk was made in order; the dispatch is journaled and reported when configured
// INVARIANT: Cancelling ctx never stops the batch or its journal record; ctx values still flow through
func ExecuteSendManyToMany(ctx context.Context, input SendManyToManyInput, deps SendDeps) (SendResult, error) {
	if len(input.Pairs) == 0 {
		return SendResult{}, fmt.Errorf("%w: no generated messages to send", sms.ErrInvalidArgument)
	}
	if err := input.Window.Validate(); err != nil {
		return SendResult{}, err
	}

	ctx = context.WithoutCancel(ctx)
	send := func(ctx context.Context, chunk []sms.MessagePair) (sms.Response, error) {
		return deps.Provider.SendManyToMany(ctx, input.Credentials, chunk, input.Window)
	}
	chunks, err := ExecuteDispatchBatch(ctx, input.Pairs, sms.ChunkSize, send)
	if err != nil {
		return SendResult{}, err
	}
	return finishDispatch(ctx, dispatch.KindManyToMany, input.Credentials.Username, input.Pairs[0].Message,
		len(input.Pairs), input.Window, chunks, deps), nil
}

// finishDispatch aggregates the replies, then journals and reports them. Journal and report
// failures are logged and never change what the operator is shown.
func finishDispatch(ctx context.Context, kind, operator, preview string, itemCount int,
	window sms.ScheduleWindow, chunks []ChunkResult, deps SendDeps) SendResult {
	outcome := sms.Aggregate(Responses(chunks))
	id := deps.GenerateID()
	slog.Info("dispatch_event", "event", "dispatch_completed", "dispatch_id", id, "kind", kind,
		"operator", operator, "items", itemCount, "chunks", outcome.ChunkCount,
		"success_count", outcome.SuccessCount, "failed_chunks", outcome.FailureChunkCount)

	record := dispatch.New(id, kind, operator, preview, itemCount, outcome, window, deps.Now())
	records := chunkRecords(id, chunks)

	if deps.Journal != nil {
		if err := deps.Journal.Save(ctx, record, records); err != nil {
			slog.Error("dispatch_journal_failed", "dispatch_id", id, "error", err)
		}
	}
	if deps.Report != nil {
		if err := ExecuteSendDispatchReport(ctx, DispatchReportInput{Dispatch: record, Chunks: records}, *deps.Report); err != nil {
			slog.Error("dispatch_report_failed", "dispatch_id", id, "error", err)
		}
	}
	return SendResult{DispatchID: id, Outcome: outcome, Chunks: chunks}
}

func chunkRecords(dispatchID string, chunks []ChunkResult) []dispatch.Chunk {
	out := make([]dispatch.Chunk, len(chunks))
	for i, c := range chunks {
		rec := dispatch.Chunk{
			DispatchID:        dispatchID,
			Index:             c.Index,
			Size:              c.Size,
			StatusCode:        c.Response.StatusCode,
			StatusDescription: c.Response.StatusDescription,
			Accepted:          acceptedCount(c.Response),
		}
		if c.Err != nil {
			rec.StatusDescription = ""
			rec.TransportError = c.Err.Error()
		}
		out[i] = rec
	}
	return out
}
