package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/metrics"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/tabular"
)

// Result sources reported by the status reconciler.
const (
	SourceDatabase = "database"
	SourceExternal = "external"
)

// StatusStore is the store surface the reconciler needs: local reads
// plus the write-through backfill of externally found results.
type StatusStore interface {
	GetEvent(ctx context.Context, id int64) (store.Event, error)
	CompleteJob(ctx context.Context, id int64, kind jobs.Kind, url, content *string, generatedAt time.Time) error
}

// TabularSource is the external record store consulted when the local
// row has no result.
type TabularSource interface {
	FindEventRecord(ctx context.Context, eventID int64) (*tabular.Record, error)
}

// StatusResult is the reconciled answer to "is job X done?".
type StatusResult struct {
	Found   bool
	Status  jobs.Status
	URL     string
	Content string
	Source  string
	Stale   bool
}

// StatusService answers poll requests: the local database is always
// authoritative; the external tabular source is a fallback that, when
// it has a completed result, is written through to the local store so
// future lookups skip the external round-trip.
type StatusService struct {
	st         StatusStore
	tab        TabularSource
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewStatusService wires the reconciler. tab may be nil when no external
// source is configured.
func NewStatusService(st StatusStore, tab TabularSource, staleAfter time.Duration, logger *slog.Logger) *StatusService {
	return &StatusService{
		st:         st,
		tab:        tab,
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// Get reconciles the status for one event + job kind. Order is strict:
// local first, external only when local has no completed result.
func (s *StatusService) Get(ctx context.Context, eventID int64, kind jobs.Kind) (StatusResult, error) {
	if !kind.Valid() {
		return StatusResult{}, fmt.Errorf("unknown job kind: %s", kind)
	}

	event, err := s.st.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StatusResult{}, ErrNotFound
		}
		return StatusResult{}, fmt.Errorf("load event: %w", err)
	}

	js := event.Job(kind)
	status := js.EffectiveStatus()

	if status == jobs.StatusCompleted && (js.URL.Valid || js.Content.Valid) {
		metrics.RecordStatusLookup(string(kind), SourceDatabase)
		return StatusResult{
			Found:   true,
			Status:  jobs.StatusCompleted,
			URL:     js.URL.String,
			Content: js.Content.String,
			Source:  SourceDatabase,
		}, nil
	}

	if s.tab != nil {
		rec, err := s.tab.FindEventRecord(ctx, eventID)
		if err != nil {
			return StatusResult{}, fmt.Errorf("external status lookup: %w", err)
		}
		if rec != nil && rec.Completed() {
			// Write-through cache fill so later polls stay local.
			var urlPtr, contentPtr *string
			if rec.URL != "" {
				urlPtr = &rec.URL
			}
			if kind == jobs.KindPresalesReport && rec.Content != "" {
				contentPtr = &rec.Content
			}
			if err := s.st.CompleteJob(ctx, eventID, kind, urlPtr, contentPtr, time.Now().UTC()); err != nil {
				if s.logger != nil {
					s.logger.Warn("backfill from external source failed", "event_id", eventID, "error", err)
				}
			}
			metrics.RecordStatusLookup(string(kind), SourceExternal)
			return StatusResult{
				Found:   true,
				Status:  jobs.StatusCompleted,
				URL:     rec.URL,
				Content: rec.Content,
				Source:  SourceExternal,
			}, nil
		}
	}

	// No result anywhere. Callers treat this as "still pending"; a failed
	// row is surfaced so the UI can offer retry immediately.
	reported := jobs.StatusProcessing
	if status == jobs.StatusFailed {
		reported = jobs.StatusFailed
	}

	var startedAt *time.Time
	if js.StartedAt.Valid {
		t := js.StartedAt.Time
		startedAt = &t
	}

	return StatusResult{
		Found:  false,
		Status: reported,
		Source: SourceDatabase,
		Stale:  jobs.IsStale(status, js.URL.String, startedAt, time.Now().UTC(), s.staleAfter),
	}, nil
}
