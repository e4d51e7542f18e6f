package sms

// Verdict is the user-facing classification of a batch outcome.
type Verdict string

const (
	VerdictSuccess Verdict = "success"
	VerdictPartial Verdict = "partial"
	VerdictFailure Verdict = "failure"
)

// BatchOutcome is derived from the responses of one dispatch and recomputed on every dispatch.
type BatchOutcome struct {
	SuccessCount      int // recipients accepted by successful chunks
	FailureChunkCount int // chunks whose StatusCode was not success
	ChunkCount        int
}

// Aggregate reduces chunk responses to a BatchOutcome.
// A failed chunk contributes nothing to SuccessCount regardless of its Result.
// PRE: none
// POST: FailureChunkCount + successful chunks == len(responses)
// INVARIANT: responses are not mutated; identical input yields identical output
func Aggregate(responses []Response) BatchOutcome {
	out := BatchOutcome{ChunkCount: len(responses)}
	for _, r := range responses {
		if r.Succeeded() {
			out.SuccessCount += r.ResultLen()
			continue
		}
		out.FailureChunkCount++
	}
	return out
}

// SucceededChunks returns the number of chunks the provider accepted.
func (o BatchOutcome) SucceededChunks() int {
	return o.ChunkCount - o.FailureChunkCount
}

// Verdict classifies the outcome: no failed chunks is success, every chunk failed is failure, anything between is partial.
// INVARIANT: Outcome fields are not mutated
func (o BatchOutcome) Verdict() Verdict {
	switch {
	case o.FailureChunkCount == 0:
		return VerdictSuccess
	case o.FailureChunkCount >= o.ChunkCount:
		return VerdictFailure
	default:
		return VerdictPartial
	}
}
