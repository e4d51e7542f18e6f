package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"bulksms/internal/domain/sms"
)

// LoginInput carries the provider credentials typed into the login form.
type LoginInput struct {
	Username string
	Password string
}

// LoginResult carries the credentials to bind to a new session.
type LoginResult struct {
	Credentials sms.Credentials
}

// ErrUsernameRequired is returned when the login form has no username.
var ErrUsernameRequired = errors.New("username is required")

// ExecuteLogin accepts provider credentials for a new session.
// Credentials are not checked against the provider; a wrong password surfaces on the first provider call.
// PRE: none
// POST: Returns the credentials with the username trimmed; the password is passed through unchanged
func ExecuteLogin(_ context.Context, input LoginInput) (LoginResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return LoginResult{}, ErrUsernameRequired
	}
	slog.Info("auth_event", "event", "login", "username", username)
	return LoginResult{Credentials: sms.Credentials{Username: username, Password: input.Password}}, nil
}
