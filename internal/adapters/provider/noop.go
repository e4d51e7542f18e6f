package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"bulksms/internal/domain/sms"
)

// NoopBalance is the credit the noop provider reports.
const NoopBalance = 1000

// Call records one request the noop provider received.
type Call struct {
	Op        string
	Username  string
	Message   string
	Receivers []sms.Recipient
	Messages  []sms.MessagePair
	IDs       []string
	Window    sms.ScheduleWindow
}

// NoopClient accepts every request without contacting a provider.
// Used in development and browser tests. Results echo the request so outcome counts are realistic.
type NoopClient struct {
	mu    sync.Mutex
	calls []Call
}

// NewNoopClient creates a noop provider.
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

// Calls returns a copy of the requests received so far.
func (n *NoopClient) Calls() []Call {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Call, len(n.calls))
	copy(out, n.calls)
	return out
}

func (n *NoopClient) record(c Call) {
	n.mu.Lock()
	n.calls = append(n.calls, c)
	n.mu.Unlock()
	slog.Info("provider_call", "op", c.Op, "provider", "noop")
}

// SendOneToMany accepts the broadcast; Result holds one id per receiver.
func (n *NoopClient) SendOneToMany(_ context.Context, creds sms.Credentials, message string, receivers []sms.Recipient, window sms.ScheduleWindow) (sms.Response, error) {
	n.record(Call{Op: OpSendOneToMany, Username: creds.Username, Message: message, Receivers: receivers, Window: window})
	return accepted(messageIDs(len(receivers)))
}

// SendManyToMany accepts the pairs; Result holds one id per pair.
func (n *NoopClient) SendManyToMany(_ context.Context, creds sms.Credentials, messages []sms.MessagePair, window sms.ScheduleWindow) (sms.Response, error) {
	n.record(Call{Op: OpSendManyToMany, Username: creds.Username, Messages: messages, Window: window})
	return accepted(messageIDs(len(messages)))
}

// CheckStatus reports every id as delivered.
func (n *NoopClient) CheckStatus(_ context.Context, creds sms.Credentials, ids []string) (sms.Response, error) {
	n.record(Call{Op: OpCheckStatus, Username: creds.Username, IDs: ids})
	type status struct {
		MessageID string `json:"MessageId"`
		Status    string `json:"Status"`
	}
	out := make([]status, len(ids))
	for i, id := range ids {
		out[i] = status{MessageID: id, Status: "Delivered"}
	}
	return accepted(out)
}

// CheckBalance reports NoopBalance.
func (n *NoopClient) CheckBalance(_ context.Context, creds sms.Credentials) (sms.Response, error) {
	n.record(Call{Op: OpCheckBalance, Username: creds.Username})
	return accepted(map[string]int{"Balance": NoopBalance})
}

func messageIDs(count int) []string {
	ids := make([]string, count)
	for i := range ids {
		ids[i] = fmt.Sprintf("noop-%d", i+1)
	}
	return ids
}

func accepted(result any) (sms.Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return sms.Response{}, &sms.TransportError{Op: "noop", Err: err}
	}
	return sms.Response{StatusCode: sms.StatusSuccess, StatusDescription: "OK", Result: raw}, nil
}
