package sms

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StatusSuccess is the only StatusCode the provider uses to signal acceptance.
const StatusSuccess = 200

// Response is the provider reply shared by all four operations.
// Only StatusCode and the length of Result are interpreted by this system.
type Response struct {
	StatusCode        int             `json:"StatusCode"`
	StatusDescription string          `json:"StatusDescription,omitempty"`
	Result            json.RawMessage `json:"Result,omitempty"`
}

// Succeeded reports whether the provider accepted the request.
// INVARIANT: Response fields are not mutated
func (r Response) Succeeded() bool {
	return r.StatusCode == StatusSuccess
}

// Err returns a *ProviderRejected for any non-success StatusCode, nil otherwise.
func (r Response) Err() error {
	if r.Succeeded() {
		return nil
	}
	return &ProviderRejected{StatusCode: r.StatusCode, Description: r.StatusDescription}
}

// ResultLen returns the number of entries in Result: the length of an array, the key count of an object, 0 otherwise.
// PRE: none
// POST: Returns a count >= 0; malformed Result counts as 0
func (r Response) ResultLen() int {
	raw := bytes.TrimSpace(r.Result)
	if len(raw) == 0 {
		return 0
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return 0
		}
		return len(items)
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return 0
		}
		return len(fields)
	default:
		return 0
	}
}

// ResultField decodes a single field of an object Result into v.
// PRE: v is a non-nil pointer
// POST: Returns an error if Result is not an object or the field is absent
func (r Response) ResultField(name string, v any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Result, &fields); err != nil {
		return fmt.Errorf("result is not an object: %w", err)
	}
	raw, ok := fields[name]
	if !ok {
		return fmt.Errorf("result has no field %q", name)
	}
	return json.Unmarshal(raw, v)
}

// ProviderRejected is a well-formed provider reply whose StatusCode is not success.
type ProviderRejected struct {
	StatusCode  int
	Description string
}

// Error implements the error interface.
func (e *ProviderRejected) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("provider rejected request with status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider rejected request with status %d: %s", e.StatusCode, e.Description)
}

// TransportError means the call never reached the provider, no response was received,
// or the reply could not be read or decoded.
type TransportError struct {
	Op  string
	URL string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}
