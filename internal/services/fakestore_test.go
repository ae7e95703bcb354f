package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/agent"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/tabular"
)

// fakeStore is an in-memory stand-in for the Postgres store that keeps
// the same claim/sweep semantics the SQL implements, so protocol tests
// can run the full trigger/webhook/poll flow without a database.
type fakeStore struct {
	events     map[int64]*store.Event
	sweeps     []jobs.Kind
	claims     []int64
	usage      []fakeUsage
	getErr     error
	claimErr   error
	sweepErr   error
	completeErr error
}

type fakeUsage struct {
	eventID          int64
	agent            string
	promptTokens     int64
	completionTokens int64
}

func newFakeStore(events ...*store.Event) *fakeStore {
	fs := &fakeStore{events: make(map[int64]*store.Event)}
	for _, e := range events {
		fs.events[e.ID] = e
	}
	return fs
}

func (f *fakeStore) GetEvent(_ context.Context, id int64) (store.Event, error) {
	if f.getErr != nil {
		return store.Event{}, f.getErr
	}
	e, ok := f.events[id]
	if !ok {
		return store.Event{}, sql.ErrNoRows
	}
	return *e, nil
}

func (f *fakeStore) jobState(e *store.Event, kind jobs.Kind) *store.JobState {
	if kind == jobs.KindSlides {
		return &e.Slides
	}
	return &e.Report
}

func (f *fakeStore) SweepStale(_ context.Context, kind jobs.Kind, staleBefore time.Time) (int64, error) {
	f.sweeps = append(f.sweeps, kind)
	if f.sweepErr != nil {
		return 0, f.sweepErr
	}
	var n int64
	for _, e := range f.events {
		js := f.jobState(e, kind)
		if js.Status.String == string(jobs.StatusProcessing) && !js.URL.Valid &&
			js.StartedAt.Valid && js.StartedAt.Time.Before(staleBefore) {
			js.Status = sql.NullString{String: string(jobs.StatusFailed), Valid: true}
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ClaimJob(_ context.Context, id int64, kind jobs.Kind, now, staleBefore time.Time) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	e, ok := f.events[id]
	if !ok {
		return false, nil
	}
	js := f.jobState(e, kind)
	claimable := false
	switch jobs.Status(js.Status.String) {
	case "", jobs.StatusPending, jobs.StatusFailed:
		claimable = true
	case jobs.StatusProcessing:
		claimable = !js.URL.Valid && js.StartedAt.Valid && js.StartedAt.Time.Before(staleBefore)
	}
	if !claimable {
		return false, nil
	}
	js.Status = sql.NullString{String: string(jobs.StatusProcessing), Valid: true}
	js.StartedAt = sql.NullTime{Time: now, Valid: true}
	f.claims = append(f.claims, id)
	return true, nil
}

func (f *fakeStore) CompleteJob(_ context.Context, id int64, kind jobs.Kind, url, content *string, generatedAt time.Time) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	e, ok := f.events[id]
	if !ok {
		return sql.ErrNoRows
	}
	js := f.jobState(e, kind)
	js.Status = sql.NullString{String: string(jobs.StatusCompleted), Valid: true}
	js.URL = sql.NullString{}
	if url != nil {
		js.URL = sql.NullString{String: *url, Valid: true}
	}
	if kind == jobs.KindPresalesReport {
		js.Content = sql.NullString{}
		if content != nil {
			js.Content = sql.NullString{String: *content, Valid: true}
		}
	}
	js.GeneratedAt = sql.NullTime{Time: generatedAt, Valid: true}
	return nil
}

func (f *fakeStore) FailJob(_ context.Context, id int64, kind jobs.Kind) error {
	e, ok := f.events[id]
	if !ok {
		return sql.ErrNoRows
	}
	js := f.jobState(e, kind)
	js.Status = sql.NullString{String: string(jobs.StatusFailed), Valid: true}
	return nil
}

func (f *fakeStore) InsertTokenUsage(_ context.Context, eventID *int64, agentID string, promptTokens, completionTokens int64) error {
	rec := fakeUsage{agent: agentID, promptTokens: promptTokens, completionTokens: completionTokens}
	if eventID != nil {
		rec.eventID = *eventID
	}
	f.usage = append(f.usage, rec)
	return nil
}

// fakeDispatcher records dispatches and optionally fails them.
type fakeDispatcher struct {
	calls []agent.DispatchRequest
	kinds []jobs.Kind
	err   error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, kind jobs.Kind, req agent.DispatchRequest) error {
	f.kinds = append(f.kinds, kind)
	f.calls = append(f.calls, req)
	return f.err
}

// fakeTabular serves a canned record for one event id.
type fakeTabular struct {
	record  *tabular.Record
	eventID int64
	err     error
	calls   int
}

func (f *fakeTabular) FindEventRecord(_ context.Context, eventID int64) (*tabular.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.record != nil && eventID == f.eventID {
		return f.record, nil
	}
	return nil, nil
}

// event builders

func pendingEvent(id int64) *store.Event {
	return &store.Event{ID: id, Title: "Quarterly sync"}
}

func processingEvent(id int64, kind jobs.Kind, startedAt time.Time) *store.Event {
	e := pendingEvent(id)
	js := &e.Report
	if kind == jobs.KindSlides {
		js = &e.Slides
	}
	js.Status = sql.NullString{String: string(jobs.StatusProcessing), Valid: true}
	js.StartedAt = sql.NullTime{Time: startedAt, Valid: true}
	return e
}

func completedEvent(id int64, kind jobs.Kind, url string) *store.Event {
	e := pendingEvent(id)
	js := &e.Report
	if kind == jobs.KindSlides {
		js = &e.Slides
	}
	js.Status = sql.NullString{String: string(jobs.StatusCompleted), Valid: true}
	js.URL = sql.NullString{String: url, Valid: true}
	js.GeneratedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	return e
}
