package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	emailAdapter "bulksms/internal/adapters/email"
	"bulksms/internal/domain/dispatch"
)

// DispatchReportDeps holds dependencies for the dispatch report email.
type DispatchReportDeps struct {
	Sender emailAdapter.Sender
	From   string
	To     []string
}

// DispatchReportInput carries a journaled dispatch.
type DispatchReportInput struct {
	Dispatch dispatch.Dispatch
	Chunks   []dispatch.Chunk
}

// ExecuteSendDispatchReport emails a summary of a dispatch, one email per recipient.
// PRE: deps.Sender is non-nil
// POST: Nothing is sent when To is empty
func ExecuteSendDispatchReport(ctx context.Context, input DispatchReportInput, deps DispatchReportDeps) error {
	if len(deps.To) == 0 {
		return nil
	}
	d := input.Dispatch
	md := DispatchReportMarkdown(input)
	html, err := emailAdapter.RenderMarkdown(md)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("SMS dispatch %s: %d delivered, %d of %d chunks failed",
		d.KindLabel(), d.SuccessCount, d.FailureChunkCount, d.ChunkCount)
	reqs := make([]emailAdapter.SendRequest, len(deps.To))
	for i, to := range deps.To {
		reqs[i] = emailAdapter.SendRequest{To: []string{to}, From: deps.From, Subject: subject, HTML: html, Text: md}
	}
	if _, err := deps.Sender.SendBatch(ctx, reqs); err != nil {
		return fmt.Errorf("send dispatch report: %w", err)
	}
	slog.Info("dispatch_event", "event", "report_sent", "dispatch_id", d.ID, "recipients", len(deps.To))
	return nil
}

// DispatchReportMarkdown renders the report body. The history page reuses it.
func DispatchReportMarkdown(input DispatchReportInput) string {
	d := input.Dispatch
	var b strings.Builder
	fmt.Fprintf(&b, "# %s dispatch %s\n\n", d.KindLabel(), d.ID)
	fmt.Fprintf(&b, "- **Operator:** %s\n", d.Operator)
	fmt.Fprintf(&b, "- **Sent:** %s\n", d.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if d.IsScheduled() {
		fmt.Fprintf(&b, "- **Scheduled for:** %s\n", d.SendAt.Format("2006-01-02 15:04"))
	}
	if !d.ExpireAt.IsZero() {
		fmt.Fprintf(&b, "- **Expires:** %s\n", d.ExpireAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "- **Items:** %d in %d chunks\n", d.ItemCount, d.ChunkCount)
	fmt.Fprintf(&b, "- **Accepted recipients:** %d\n", d.SuccessCount)
	fmt.Fprintf(&b, "- **Failed chunks:** %d\n\n", d.FailureChunkCount)

	if len(input.Chunks) > 0 {
		b.WriteString("| Chunk | Size | Status | Accepted | Detail |\n|---|---|---|---|---|\n")
		for _, c := range input.Chunks {
			detail := c.StatusDescription
			if c.TransportError != "" {
				detail = "transport: " + c.TransportError
			}
			fmt.Fprintf(&b, "| %d | %d | %d | %d | %s |\n", c.Index+1, c.Size, c.StatusCode, c.Accepted, escapeCell(detail))
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
