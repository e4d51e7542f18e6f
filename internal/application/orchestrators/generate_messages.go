package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"bulksms/internal/domain/msgtemplate"
	"bulksms/internal/domain/sms"
)

// GenerateMessagesInput carries an uploaded table and the operator's template settings.
// PRE: Rows were ingested against Columns.
type GenerateMessagesInput struct {
	Columns        []string
	Rows           []msgtemplate.Row
	Lines          []int // file row of each entry in Rows; nil numbers rows from 2, under the header
	Template       string
	Directives     string // one "field=directive" per line
	ReceiverColumn string
}

// GenerateMessagesResult holds the rendered pairs and the rows that were skipped.
type GenerateMessagesResult struct {
	Total  int
	Pairs  []sms.MessagePair
	Errors []GenerateMessagesRowError
}

// GenerateMessagesRowError describes why one data row produced no message.
type GenerateMessagesRowError struct {
	Row     int // row in the uploaded file; the header is row 1
	Message string
}

// ErrEmptyReceiver marks a row whose receiver cell is blank.
var ErrEmptyReceiver = errors.New("receiver is empty")

// ExecuteGenerateMessages renders one message per row.
// Settings that fail for every row (unknown receiver column, malformed template or directives,
// a placeholder naming no column) abort with an error before any row is rendered.
// PRE: none
// POST: len(Pairs) + len(Errors) == Total; Pairs are in row order
// INVARIANT: Input rows are not mutated
func ExecuteGenerateMessages(_ context.Context, input GenerateMessagesInput) (GenerateMessagesResult, error) {
	if strings.TrimSpace(input.Template) == "" {
		return GenerateMessagesResult{}, fmt.Errorf("%w: message template is empty", sms.ErrInvalidArgument)
	}
	if !slices.Contains(input.Columns, input.ReceiverColumn) {
		return GenerateMessagesResult{}, fmt.Errorf("%w: receiver column %q is not in the file", sms.ErrInvalidArgument, input.ReceiverColumn)
	}
	tmpl, err := msgtemplate.Parse(input.Template)
	if err != nil {
		return GenerateMessagesResult{}, err
	}
	if missing := tmpl.MissingFields(input.Columns); len(missing) > 0 {
		return GenerateMessagesResult{}, &msgtemplate.TemplateError{
			Field: missing[0],
			Err:   fmt.Errorf("%w: the file has no column named %s", msgtemplate.ErrMissingField, strings.Join(missing, ", ")),
		}
	}
	directives, err := msgtemplate.ParseDirectiveLines(input.Directives)
	if err != nil {
		return GenerateMessagesResult{}, err
	}

	result := GenerateMessagesResult{Total: len(input.Rows), Pairs: make([]sms.MessagePair, 0, len(input.Rows))}
	for i, row := range input.Rows {
		rowNum := i + 2
		if i < len(input.Lines) {
			rowNum = input.Lines[i]
		}
		receiver := strings.TrimSpace(row[input.ReceiverColumn].String())
		if receiver == "" {
			result.Errors = append(result.Errors, GenerateMessagesRowError{Row: rowNum, Message: ErrEmptyReceiver.Error()})
			continue
		}
		msg, err := tmpl.Execute(row, directives)
		if err != nil {
			var te *msgtemplate.TemplateError
			if errors.As(err, &te) {
				te.Row = rowNum
			}
			result.Errors = append(result.Errors, GenerateMessagesRowError{Row: rowNum, Message: err.Error()})
			continue
		}
		result.Pairs = append(result.Pairs, sms.MessagePair{Receiver: receiver, Message: msg})
	}

	slog.Info("dispatch_event", "event", "messages_generated",
		"total", result.Total, "generated", len(result.Pairs), "skipped", len(result.Errors))
	return result, nil
}
