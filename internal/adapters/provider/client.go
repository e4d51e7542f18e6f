package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bulksms/internal/adapters/http/perf"
	"bulksms/internal/domain/sms"
)

// DefaultBaseURL is the provider's JSON API root.
const DefaultBaseURL = "https://www.poctgoyercini.com/api_json/v1/Sms"

// maxResponseBytes caps how much of a reply is read; status replies for 800 ids stay well below it.
const maxResponseBytes = 8 << 20

// Endpoints are the paths, relative to the base URL, of the four operations.
type Endpoints struct {
	SendOneToMany  string
	SendManyToMany string
	CheckStatus    string
	CheckBalance   string
}

// DefaultEndpoints returns the provider's fixed endpoint paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		SendOneToMany:  "/Send_1_N",
		SendManyToMany: "/Send_N_N",
		CheckStatus:    "/Status",
		CheckBalance:   "/CreditBalance",
	}
}

// Client calls the provider over HTTP. It holds no per-operator state and is safe for concurrent use.
type Client struct {
	baseURL    string
	endpoints  Endpoints
	httpClient *http.Client
	collector  *perf.Collector
}

// Option modifies client behaviour.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (timeouts, transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithEndpoints overrides the endpoint paths.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) {
		c.endpoints = e
	}
}

// WithCollector records each call's duration to the perf collector.
func WithCollector(collector *perf.Collector) Option {
	return func(c *Client) {
		c.collector = collector
	}
}

// NewClient creates a provider client rooted at baseURL.
// PRE: baseURL is an absolute URL; empty selects DefaultBaseURL
// POST: Returns a ready-to-use client with no timeout unless WithHTTPClient sets one
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		endpoints:  DefaultEndpoints(),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// SendOneToMany broadcasts one message to receivers.
// PRE: receivers is non-empty
// POST: Exactly one POST to the Send_1_N endpoint
func (c *Client) SendOneToMany(ctx context.Context, creds sms.Credentials, message string, receivers []sms.Recipient, window sms.ScheduleWindow) (sms.Response, error) {
	return c.post(ctx, OpSendOneToMany, c.endpoints.SendOneToMany, sendOneToManyRequest{
		Message:    message,
		Receivers:  receivers,
		SendDate:   window.SendDate(),
		ExpireDate: window.ExpireDate(),
		Username:   creds.Username,
		Password:   creds.Password,
	})
}

// SendManyToMany sends a distinct message to each receiver.
// PRE: messages is non-empty
// POST: Exactly one POST to the Send_N_N endpoint
func (c *Client) SendManyToMany(ctx context.Context, creds sms.Credentials, messages []sms.MessagePair, window sms.ScheduleWindow) (sms.Response, error) {
	return c.post(ctx, OpSendManyToMany, c.endpoints.SendManyToMany, sendManyToManyRequest{
		Messages:   messages,
		SendDate:   window.SendDate(),
		ExpireDate: window.ExpireDate(),
		Username:   creds.Username,
		Password:   creds.Password,
	})
}

// CheckStatus queries delivery status for message ids.
// PRE: messageIDs is non-empty
// POST: Exactly one POST to the Status endpoint
func (c *Client) CheckStatus(ctx context.Context, creds sms.Credentials, messageIDs []string) (sms.Response, error) {
	return c.post(ctx, OpCheckStatus, c.endpoints.CheckStatus, statusRequest{
		MessageIds: messageIDs,
		Username:   creds.Username,
		Password:   creds.Password,
	})
}

// CheckBalance queries the account's remaining credit.
// PRE: none
// POST: Exactly one POST to the CreditBalance endpoint
func (c *Client) CheckBalance(ctx context.Context, creds sms.Credentials) (sms.Response, error) {
	return c.post(ctx, OpCheckBalance, c.endpoints.CheckBalance, balanceRequest{
		Username: creds.Username,
		Password: creds.Password,
	})
}

// post sends payload as JSON and decodes the reply. The HTTP status is not interpreted:
// the provider reports rejection in StatusCode, and an undecodable body is a transport failure.
func (c *Client) post(ctx context.Context, op, path string, payload any) (sms.Response, error) {
	url := c.baseURL + path
	start := time.Now()
	defer c.record(op, start)

	body, err := json.Marshal(payload)
	if err != nil {
		return sms.Response{}, &sms.TransportError{Op: op, URL: url, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return sms.Response{}, &sms.TransportError{Op: op, URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("provider_call_failed", "op", op, "error", err)
		return sms.Response{}, &sms.TransportError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return sms.Response{}, &sms.TransportError{Op: op, URL: url, Err: fmt.Errorf("read response: %w", err)}
	}

	var out sms.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.Warn("provider_decode_failed", "op", op, "http_status", resp.StatusCode, "error", err)
		return sms.Response{}, &sms.TransportError{Op: op, URL: url,
			Err: fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)}
	}

	slog.Info("provider_call", "op", op, "http_status", resp.StatusCode, "status_code", out.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (c *Client) record(op string, start time.Time) {
	if c.collector == nil {
		return
	}
	c.collector.Record(perf.Entry{
		Kind:       perf.KindProvider,
		Path:       op,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:  start,
	})
}
