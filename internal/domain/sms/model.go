package sms

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ProviderDateLayout is the layout the provider accepts for SendDate and ExpireDate (yyyyMMdd HH:mm).
const ProviderDateLayout = "20060102 15:04"

// ChunkSize is the number of recipients or message pairs carried by a single provider request.
const ChunkSize = 800

// ErrInvalidArgument marks caller input that cannot be acted on (bad chunk size, malformed schedule, empty batch).
var ErrInvalidArgument = errors.New("invalid argument")

// Credentials are the provider username and password.
// They are opaque and passed through to every provider call without local verification.
type Credentials struct {
	Username string
	Password string
}

// Recipient is a phone-number-like receiver identifier. No format validation is performed.
type Recipient = string

// MessagePair is the unit of a many-to-many send.
type MessagePair struct {
	Receiver Recipient `json:"Receiver"`
	Message  string    `json:"Message"`
}

// ScheduleWindow holds the optional send and expiry times of a dispatch.
// A nil SendAt means send immediately; a nil ExpireAt means the message never expires.
type ScheduleWindow struct {
	SendAt   *time.Time
	ExpireAt *time.Time
}

// Validate checks that the window is coherent.
// PRE: none
// POST: Returns an ErrInvalidArgument-wrapped error if ExpireAt is not after SendAt
func (w ScheduleWindow) Validate() error {
	if w.SendAt != nil && w.ExpireAt != nil && !w.ExpireAt.After(*w.SendAt) {
		return fmt.Errorf("%w: expiry %s must be after send time %s",
			ErrInvalidArgument, w.ExpireAt.Format(ProviderDateLayout), w.SendAt.Format(ProviderDateLayout))
	}
	return nil
}

// IsImmediate reports whether the dispatch is sent without a scheduled time.
// INVARIANT: Window fields are not mutated
func (w ScheduleWindow) IsImmediate() bool {
	return w.SendAt == nil
}

// SendDate returns the provider-formatted send time, or nil for immediate sends.
func (w ScheduleWindow) SendDate() *string {
	return formatProviderDate(w.SendAt)
}

// ExpireDate returns the provider-formatted expiry time, or nil when the message never expires.
func (w ScheduleWindow) ExpireDate() *string {
	return formatProviderDate(w.ExpireAt)
}

func formatProviderDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(ProviderDateLayout)
	return &s
}

// ParseFormTime parses a datetime value submitted by a browser form in the given location.
// Empty input yields nil. Accepts "2006-01-02T15:04", "2006-01-02T15:04:05" and "2006-01-02 15:04:05".
// PRE: loc is non-nil
// POST: Returns the parsed time or an ErrInvalidArgument-wrapped error
func ParseFormTime(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: unrecognised date and time %q", ErrInvalidArgument, value)
}

// ParseReceivers splits newline-separated receiver text. Each line is trimmed and blank lines are dropped;
// order and duplicates are kept.
func ParseReceivers(text string) []Recipient {
	var out []Recipient
	for line := range strings.Lines(text) {
		if r := strings.TrimSpace(line); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// ParseMessageIDs splits message ids separated by commas, semicolons or whitespace.
func ParseMessageIDs(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}
