package orchestrators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"bulksms/internal/adapters/provider"
	"bulksms/internal/domain/sms"
)

// QueryDeps holds dependencies for the balance and status lookups.
type QueryDeps struct {
	Provider provider.API
}

// CheckBalanceResult carries the remaining credit.
type CheckBalanceResult struct {
	Balance  string
	Response sms.Response
}

// ExecuteCheckBalance asks the provider for the account's credit.
// PRE: none
// POST: On success Balance holds Result.Balance as text; a rejection returns the Response with a *sms.ProviderRejected
func ExecuteCheckBalance(ctx context.Context, creds sms.Credentials, deps QueryDeps) (CheckBalanceResult, error) {
	resp, err := deps.Provider.CheckBalance(ctx, creds)
	if err != nil {
		return CheckBalanceResult{}, err
	}
	result := CheckBalanceResult{Response: resp}
	if err := resp.Err(); err != nil {
		slog.Info("provider_event", "event", "balance_rejected", "username", creds.Username, "status_code", resp.StatusCode)
		return result, err
	}

	var raw json.RawMessage
	if err := resp.ResultField("Balance", &raw); err != nil {
		return result, fmt.Errorf("balance missing from reply: %w", err)
	}
	var number json.Number
	var text string
	switch {
	case json.Unmarshal(raw, &number) == nil:
		result.Balance = number.String()
	case json.Unmarshal(raw, &text) == nil:
		result.Balance = text
	default:
		result.Balance = string(raw)
	}
	return result, nil
}

// CheckStatusResult carries the provider's status report.
type CheckStatusResult struct {
	Response sms.Response
	Entries  int    // number of entries in Result
	Pretty   string // indented Result for display
}

// ExecuteCheckStatus asks the provider for the delivery status of message ids in one request.
// PRE: ids is non-empty
// POST: On success Pretty holds the indented Result; a rejection returns the Response with a *sms.ProviderRejected
func ExecuteCheckStatus(ctx context.Context, creds sms.Credentials, ids []string, deps QueryDeps) (CheckStatusResult, error) {
	if len(ids) == 0 {
		return CheckStatusResult{}, fmt.Errorf("%w: no message ids", sms.ErrInvalidArgument)
	}
	resp, err := deps.Provider.CheckStatus(ctx, creds, ids)
	if err != nil {
		return CheckStatusResult{}, err
	}
	result := CheckStatusResult{Response: resp, Entries: resp.ResultLen()}
	if err := resp.Err(); err != nil {
		return result, err
	}
	var buf bytes.Buffer
	if len(resp.Result) > 0 && json.Indent(&buf, resp.Result, "", "  ") == nil {
		result.Pretty = buf.String()
	}
	slog.Info("provider_event", "event", "status_checked", "username", creds.Username, "ids", len(ids), "entries", result.Entries)
	return result, nil
}
