package dispatch

import (
	"errors"
	"time"

	"bulksms/internal/domain/sms"
)

// Kind constants for the two send operations.
const (
	KindOneToMany  = "one_to_many"
	KindManyToMany = "many_to_many"
)

// Domain errors
var (
	ErrEmptyID       = errors.New("dispatch ID is required")
	ErrInvalidKind   = errors.New("dispatch kind must be one_to_many or many_to_many")
	ErrEmptyOperator = errors.New("operator is required")
)

// Dispatch is the journal record of one batch send.
// The outcome shown to the operator is computed from live responses; this record is an audit copy.
type Dispatch struct {
	ID                string
	Kind              string
	Operator          string // provider username of the session that sent it
	Preview           string // message text (one-to-many) or first generated message (many-to-many)
	ItemCount         int
	ChunkCount        int
	SuccessCount      int
	FailureChunkCount int
	SendAt            time.Time // zero for immediate sends
	ExpireAt          time.Time // zero when never expiring
	CreatedAt         time.Time
}

// Chunk is the journal record of one provider request within a dispatch.
type Chunk struct {
	DispatchID        string
	Index             int
	Size              int
	StatusCode        int
	StatusDescription string
	Accepted          int
	TransportError    string
}

// New builds a Dispatch from a computed outcome.
// PRE: id and operator are non-empty
// POST: Counters mirror outcome; schedule times are copied when set
func New(id, kind, operator, preview string, itemCount int, outcome sms.BatchOutcome, window sms.ScheduleWindow, now time.Time) Dispatch {
	d := Dispatch{
		ID:                id,
		Kind:              kind,
		Operator:          operator,
		Preview:           preview,
		ItemCount:         itemCount,
		ChunkCount:        outcome.ChunkCount,
		SuccessCount:      outcome.SuccessCount,
		FailureChunkCount: outcome.FailureChunkCount,
		CreatedAt:         now,
	}
	if window.SendAt != nil {
		d.SendAt = *window.SendAt
	}
	if window.ExpireAt != nil {
		d.ExpireAt = *window.ExpireAt
	}
	return d
}

// Validate checks that the Dispatch has valid data.
// PRE: Dispatch struct is populated
// POST: Returns nil if valid, error otherwise
func (d *Dispatch) Validate() error {
	if d.ID == "" {
		return ErrEmptyID
	}
	if d.Kind != KindOneToMany && d.Kind != KindManyToMany {
		return ErrInvalidKind
	}
	if d.Operator == "" {
		return ErrEmptyOperator
	}
	if d.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}

// Outcome rebuilds the counters as a BatchOutcome for display.
// INVARIANT: Dispatch fields are not mutated
func (d *Dispatch) Outcome() sms.BatchOutcome {
	return sms.BatchOutcome{
		SuccessCount:      d.SuccessCount,
		FailureChunkCount: d.FailureChunkCount,
		ChunkCount:        d.ChunkCount,
	}
}

// IsScheduled returns true if the dispatch had a future send time.
// INVARIANT: Dispatch fields are not mutated
func (d *Dispatch) IsScheduled() bool {
	return !d.SendAt.IsZero()
}

// KindLabel returns the operator-facing name of the dispatch kind.
func (d *Dispatch) KindLabel() string {
	if d.Kind == KindManyToMany {
		return "N-to-N"
	}
	return "1-to-N"
}
