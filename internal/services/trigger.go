package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/agent"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/metrics"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
)

// ErrNotFound is returned when the referenced calendar event does not
// exist.
var ErrNotFound = errors.New("event not found")

// TriggerStore is the store surface the trigger path needs.
type TriggerStore interface {
	GetEvent(ctx context.Context, id int64) (store.Event, error)
	SweepStale(ctx context.Context, kind jobs.Kind, staleBefore time.Time) (int64, error)
	ClaimJob(ctx context.Context, id int64, kind jobs.Kind, now, staleBefore time.Time) (bool, error)
}

// Dispatcher starts a job on the external agent runner.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind jobs.Kind, req agent.DispatchRequest) error
}

// TriggerRequest is one trigger attempt for an event + job kind.
type TriggerRequest struct {
	EventID       int64
	Kind          jobs.Kind
	Title         string
	Description   string
	AttendeeEmail string
}

// TriggerResult reports whether the trigger was accepted and, if not,
// why. DispatchErr is set when the claim succeeded but the outbound
// dispatch failed; the row stays processing in that case and is
// recovered by the staleness sweep.
type TriggerResult struct {
	Accepted    bool
	Status      jobs.Status
	Reason      string
	DispatchErr error
}

// TriggerService implements the job trigger: a global staleness sweep,
// an atomic claim, then dispatch to the external runner.
type TriggerService struct {
	st         TriggerStore
	dispatcher Dispatcher
	staleAfter time.Duration
	logger     *slog.Logger
}

func NewTriggerService(st TriggerStore, dispatcher Dispatcher, staleAfter time.Duration, logger *slog.Logger) *TriggerService {
	return &TriggerService{
		st:         st,
		dispatcher: dispatcher,
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// Trigger runs the side effects of a trigger in order: sweep stale rows
// for the kind across all events, claim this event's job with a single
// conditional UPDATE, then dispatch. A claim loss means the job is
// completed or genuinely in flight.
func (s *TriggerService) Trigger(ctx context.Context, req TriggerRequest) (TriggerResult, error) {
	if !req.Kind.Valid() {
		return TriggerResult{}, fmt.Errorf("unknown job kind: %s", req.Kind)
	}

	now := time.Now().UTC()
	staleBefore := now.Add(-s.staleAfter)

	// Maintenance sweep first, so previously stuck rows read as failed
	// before the claim below interprets this event's state.
	if n, err := s.st.SweepStale(ctx, req.Kind, staleBefore); err != nil {
		if s.logger != nil {
			s.logger.Warn("stale sweep failed", "kind", string(req.Kind), "error", err)
		}
	} else if n > 0 {
		metrics.RecordStaleSwept(string(req.Kind), n)
	}

	event, err := s.st.GetEvent(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TriggerResult{}, ErrNotFound
		}
		return TriggerResult{}, fmt.Errorf("load event: %w", err)
	}

	claimed, err := s.st.ClaimJob(ctx, req.EventID, req.Kind, now, staleBefore)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		js := event.Job(req.Kind)
		status := js.EffectiveStatus()
		reason := "job is already in progress"
		if status == jobs.StatusCompleted {
			reason = "job is already completed"
		}
		return TriggerResult{Accepted: false, Status: status, Reason: reason}, nil
	}

	metrics.RecordTrigger(string(req.Kind))
	if s.logger != nil {
		s.logger.Info("job_triggered",
			"event_id", req.EventID,
			"kind", string(req.Kind),
		)
	}

	// Dispatch after the claim. On failure the row is left processing on
	// purpose; the staleness window makes it retryable again.
	dispatchReq := agent.DispatchRequest{
		EventID:       req.EventID,
		Title:         firstNonEmpty(req.Title, event.Title),
		Description:   firstNonEmpty(req.Description, event.Description),
		AttendeeEmail: firstNonEmpty(req.AttendeeEmail, event.AttendeeEmail),
	}
	if err := s.dispatcher.Dispatch(ctx, req.Kind, dispatchReq); err != nil {
		if s.logger != nil {
			s.logger.Error("agent dispatch failed",
				"event_id", req.EventID,
				"kind", string(req.Kind),
				"error", err,
			)
		}
		return TriggerResult{Accepted: false, Status: jobs.StatusProcessing, DispatchErr: err}, nil
	}

	return TriggerResult{Accepted: true, Status: jobs.StatusProcessing}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
