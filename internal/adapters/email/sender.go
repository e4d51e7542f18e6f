package email

import (
	"context"
	"time"
)

// SendRequest is one outgoing email.
type SendRequest struct {
	To      []string
	From    string // empty uses the sender's default
	Subject string
	HTML    string
	Text    string // plain-text alternative; optional
}

// SendResult is the provider's acknowledgement of one email.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers dispatch report emails.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
	SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error)
}
