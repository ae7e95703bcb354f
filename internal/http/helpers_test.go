package http

import (
	"context"
	"database/sql"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/agent"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
)

const testStaleAfter = 15 * time.Minute

// memStore backs handler tests with the same claim/sweep semantics the
// SQL store implements.
type memStore struct {
	events map[int64]*store.Event
	usage  int
}

func newMemStore(events ...*store.Event) *memStore {
	m := &memStore{events: make(map[int64]*store.Event)}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return m
}

func (m *memStore) job(e *store.Event, kind jobs.Kind) *store.JobState {
	if kind == jobs.KindSlides {
		return &e.Slides
	}
	return &e.Report
}

func (m *memStore) GetEvent(_ context.Context, id int64) (store.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return store.Event{}, sql.ErrNoRows
	}
	return *e, nil
}

func (m *memStore) SweepStale(_ context.Context, kind jobs.Kind, staleBefore time.Time) (int64, error) {
	var n int64
	for _, e := range m.events {
		js := m.job(e, kind)
		if js.Status.String == string(jobs.StatusProcessing) && !js.URL.Valid &&
			js.StartedAt.Valid && js.StartedAt.Time.Before(staleBefore) {
			js.Status = sql.NullString{String: string(jobs.StatusFailed), Valid: true}
			n++
		}
	}
	return n, nil
}

func (m *memStore) ClaimJob(_ context.Context, id int64, kind jobs.Kind, now, staleBefore time.Time) (bool, error) {
	e, ok := m.events[id]
	if !ok {
		return false, nil
	}
	js := m.job(e, kind)
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
	return true, nil
}

func (m *memStore) CompleteJob(_ context.Context, id int64, kind jobs.Kind, url, content *string, generatedAt time.Time) error {
	e, ok := m.events[id]
	if !ok {
		return sql.ErrNoRows
	}
	js := m.job(e, kind)
	js.Status = sql.NullString{String: string(jobs.StatusCompleted), Valid: true}
	js.URL = sql.NullString{}
	if url != nil {
		js.URL = sql.NullString{String: *url, Valid: true}
	}
	if kind == jobs.KindPresalesReport && content != nil {
		js.Content = sql.NullString{String: *content, Valid: true}
	}
	js.GeneratedAt = sql.NullTime{Time: generatedAt, Valid: true}
	return nil
}

func (m *memStore) FailJob(_ context.Context, id int64, kind jobs.Kind) error {
	e, ok := m.events[id]
	if !ok {
		return sql.ErrNoRows
	}
	m.job(e, kind).Status = sql.NullString{String: string(jobs.StatusFailed), Valid: true}
	return nil
}

func (m *memStore) InsertTokenUsage(_ context.Context, _ *int64, _ string, _, _ int64) error {
	m.usage++
	return nil
}

// nopDispatcher accepts every dispatch.
type nopDispatcher struct{ err error }

func (d *nopDispatcher) Dispatch(_ context.Context, _ jobs.Kind, _ agent.DispatchRequest) error {
	return d.err
}

func newPendingEvent(id int64) *store.Event {
	return &store.Event{ID: id, Title: "Quarterly sync"}
}

func newCompletedEvent(id int64, kind jobs.Kind, url string) *store.Event {
	e := newPendingEvent(id)
	js := &e.Report
	if kind == jobs.KindSlides {
		js = &e.Slides
	}
	js.Status = sql.NullString{String: string(jobs.StatusCompleted), Valid: true}
	js.URL = sql.NullString{String: url, Valid: true}
	js.GeneratedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	return e
}
