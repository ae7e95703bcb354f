package services

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
)

// TestTriggerSweepPollLifecycle walks one job across the full lifecycle:
// trigger, in-flight polls, stuck run, staleness sweep, retrigger, and a
// webhook completion, with time simulated by backdating started_at.
func TestTriggerSweepPollLifecycle(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore(pendingEvent(42))
	disp := &fakeDispatcher{}

	trigger := NewTriggerService(fs, disp, testStaleAfter, nil)
	status := NewStatusService(fs, nil, testStaleAfter, nil)

	// Trigger: pending -> processing.
	res, err := trigger.Trigger(ctx, TriggerRequest{EventID: 42, Kind: jobs.KindPresalesReport})
	if err != nil || !res.Accepted {
		t.Fatalf("initial trigger: accepted=%v err=%v", res.Accepted, err)
	}

	// Poll while in flight: not found, processing, not stale.
	st, err := status.Get(ctx, 42, jobs.KindPresalesReport)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if st.Found || st.Status != jobs.StatusProcessing || st.Stale {
		t.Fatalf("in-flight poll: %+v", st)
	}

	// A sweep before the window elapses must not touch the row.
	backdate(fs, 42, 10*time.Minute)
	if n, err := fs.SweepStale(ctx, jobs.KindPresalesReport, time.Now().UTC().Add(-testStaleAfter)); err != nil || n != 0 {
		t.Fatalf("early sweep: n=%d err=%v", n, err)
	}
	if fs.events[42].Report.Status.String != string(jobs.StatusProcessing) {
		t.Fatal("early sweep must leave the row processing")
	}

	// Past the window the sweep fails the row, and doing it again is a
	// no-op.
	backdate(fs, 42, testStaleAfter+time.Minute)
	if n, _ := fs.SweepStale(ctx, jobs.KindPresalesReport, time.Now().UTC().Add(-testStaleAfter)); n != 1 {
		t.Fatalf("late sweep swept %d rows, want 1", n)
	}
	if n, _ := fs.SweepStale(ctx, jobs.KindPresalesReport, time.Now().UTC().Add(-testStaleAfter)); n != 0 {
		t.Fatalf("repeated sweep swept %d rows, want 0", n)
	}

	// Poll after the sweep surfaces the failure.
	st, err = status.Get(ctx, 42, jobs.KindPresalesReport)
	if err != nil {
		t.Fatalf("poll after sweep: %v", err)
	}
	if st.Found || st.Status != jobs.StatusFailed {
		t.Fatalf("post-sweep poll: %+v", st)
	}

	// Failed rows are retriggerable.
	res, err = trigger.Trigger(ctx, TriggerRequest{EventID: 42, Kind: jobs.KindPresalesReport})
	if err != nil || !res.Accepted {
		t.Fatalf("retrigger: accepted=%v err=%v", res.Accepted, err)
	}
	if len(disp.calls) != 2 {
		t.Fatalf("dispatch count = %d, want 2", len(disp.calls))
	}

	// Webhook completion closes the loop.
	webhook := newWebhookService(fs, nil)
	raw, sig := signedBody(t, WebhookPayload{
		AgentID:         "agent-report",
		CalendarEventID: 42,
		Status:          "completed",
		PDFURL:          "https://agent.example.com/r.pdf",
	})
	if out := webhook.Process(ctx, raw, sig); out.HTTPStatus != http.StatusOK {
		t.Fatalf("webhook: %d (%s)", out.HTTPStatus, out.Message)
	}

	st, err = status.Get(ctx, 42, jobs.KindPresalesReport)
	if err != nil {
		t.Fatalf("final poll: %v", err)
	}
	if !st.Found || st.URL != "https://agent.example.com/r.pdf" || st.Source != SourceDatabase {
		t.Fatalf("final poll: %+v", st)
	}

	// Competing trigger after completion loses.
	res, err = trigger.Trigger(ctx, TriggerRequest{EventID: 42, Kind: jobs.KindPresalesReport})
	if err != nil {
		t.Fatalf("post-completion trigger: %v", err)
	}
	if res.Accepted || res.Status != jobs.StatusCompleted {
		t.Fatalf("post-completion trigger must lose: %+v", res)
	}
}

// backdate shifts the report started_at stamp into the past.
func backdate(fs *fakeStore, id int64, age time.Duration) {
	js := &fs.events[id].Report
	js.StartedAt = sql.NullTime{Time: time.Now().UTC().Add(-age), Valid: true}
}
