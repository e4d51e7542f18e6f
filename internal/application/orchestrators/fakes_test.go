package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bulksms/internal/domain/dispatch"
	"bulksms/internal/domain/sms"
)

// --- Fake provider ---

// fakeProvider replies from a script, one entry per call; when the script runs out it accepts everything.
type fakeProvider struct {
	script    []fakeReply
	calls     int
	receivers [][]sms.Recipient
	pairs     [][]sms.MessagePair
	windows   []sms.ScheduleWindow
	creds     []sms.Credentials
	statusIDs []string
	balance   sms.Response
}

type fakeReply struct {
	code int
	err  error
}

func (f *fakeProvider) next(n int) (sms.Response, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.script) {
		r := f.script[idx]
		if r.err != nil {
			return sms.Response{}, r.err
		}
		if r.code != sms.StatusSuccess {
			return sms.Response{StatusCode: r.code, StatusDescription: fmt.Sprintf("rejected %d", r.code)}, nil
		}
	}
	return acceptAll(n), nil
}

func acceptAll(n int) sms.Response {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%d", i)
	}
	raw, _ := json.Marshal(ids)
	return sms.Response{StatusCode: sms.StatusSuccess, Result: raw}
}

func (f *fakeProvider) SendOneToMany(_ context.Context, creds sms.Credentials, _ string, receivers []sms.Recipient, window sms.ScheduleWindow) (sms.Response, error) {
	f.receivers = append(f.receivers, receivers)
	f.windows = append(f.windows, window)
	f.creds = append(f.creds, creds)
	return f.next(len(receivers))
}

func (f *fakeProvider) SendManyToMany(_ context.Context, creds sms.Credentials, pairs []sms.MessagePair, window sms.ScheduleWindow) (sms.Response, error) {
	f.pairs = append(f.pairs, pairs)
	f.windows = append(f.windows, window)
	f.creds = append(f.creds, creds)
	return f.next(len(pairs))
}

func (f *fakeProvider) CheckStatus(_ context.Context, creds sms.Credentials, ids []string) (sms.Response, error) {
	f.statusIDs = ids
	f.creds = append(f.creds, creds)
	return f.next(len(ids))
}

func (f *fakeProvider) CheckBalance(_ context.Context, creds sms.Credentials) (sms.Response, error) {
	f.creds = append(f.creds, creds)
	if len(f.script) > 0 {
		return f.next(0)
	}
	return f.balance, nil
}

// --- Fake journal ---

type fakeJournal struct {
	saved  []dispatch.Dispatch
	chunks map[string][]dispatch.Chunk
	err    error
}

func (j *fakeJournal) Save(_ context.Context, d dispatch.Dispatch, chunks []dispatch.Chunk) error {
	if j.err != nil {
		return j.err
	}
	if j.chunks == nil {
		j.chunks = make(map[string][]dispatch.Chunk)
	}
	j.saved = append(j.saved, d)
	j.chunks[d.ID] = chunks
	return nil
}

var fixedNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func testSendDeps(p *fakeProvider, j *fakeJournal) SendDeps {
	n := 0
	deps := SendDeps{
		Provider: p,
		GenerateID: func() string {
			n++
			return fmt.Sprintf("dispatch-%d", n)
		},
		Now: func() time.Time { return fixedNow },
	}
	if j != nil {
		deps.Journal = j
	}
	return deps
}

func makePairs(n int) []sms.MessagePair {
	out := make([]sms.MessagePair, n)
	for i := range out {
		out[i] = sms.MessagePair{Receiver: fmt.Sprintf("05%08d", i), Message: fmt.Sprintf("msg %d", i)}
	}
	return out
}

func makeReceivers(n int) []sms.Recipient {
	out := make([]sms.Recipient, n)
	for i := range out {
		out[i] = fmt.Sprintf("05%08d", i)
	}
	return out
}
