package provider

import (
	"context"

	"bulksms/internal/domain/sms"
)

// Operation names, used in logs, perf entries and TransportError.Op.
const (
	OpSendOneToMany  = "send_one_to_many"
	OpSendManyToMany = "send_many_to_many"
	OpCheckStatus    = "check_status"
	OpCheckBalance   = "check_balance"
)

// API is the messaging provider contract consumed by this system.
// Every call performs exactly one request. A non-nil error is always a *sms.TransportError;
// provider-level rejection is carried in the returned Response's StatusCode.
type API interface {
	SendOneToMany(ctx context.Context, creds sms.Credentials, message string, receivers []sms.Recipient, window sms.ScheduleWindow) (sms.Response, error)
	SendManyToMany(ctx context.Context, creds sms.Credentials, messages []sms.MessagePair, window sms.ScheduleWindow) (sms.Response, error)
	CheckStatus(ctx context.Context, creds sms.Credentials, messageIDs []string) (sms.Response, error)
	CheckBalance(ctx context.Context, creds sms.Credentials) (sms.Response, error)
}

// sendOneToManyRequest is the Send_1_N body.
type sendOneToManyRequest struct {
	Message    string   `json:"Message"`
	Receivers  []string `json:"Receivers"`
	SendDate   *string  `json:"SendDate"`
	ExpireDate *string  `json:"ExpireDate"`
	Username   string   `json:"Username"`
	Password   string   `json:"Password"`
}

// sendManyToManyRequest is the Send_N_N body.
type sendManyToManyRequest struct {
	Messages   []sms.MessagePair `json:"Messages"`
	SendDate   *string           `json:"SendDate"`
	ExpireDate *string           `json:"ExpireDate"`
	Username   string            `json:"Username"`
	Password   string            `json:"Password"`
}

// statusRequest is the Status body.
type statusRequest struct {
	MessageIds []string `json:"MessageIds"`
	Username   string   `json:"Username"`
	Password   string   `json:"Password"`
}

// balanceRequest is the CreditBalance body.
type balanceRequest struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}
