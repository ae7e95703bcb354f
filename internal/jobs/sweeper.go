package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/config"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/metrics"
)

// SweepStore is the store surface the background sweeper needs.
type SweepStore interface {
	SweepStale(ctx context.Context, kind Kind, staleBefore time.Time) (int64, error)
	DeleteTokenUsageBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically marks stale processing jobs as failed and trims
// old token-usage rows. The trigger path also sweeps synchronously;
// this loop covers events nobody is actively retriggering.
type Sweeper struct {
	cfg    *config.Config
	store  SweepStore
	logger *slog.Logger
}

func NewSweeper(cfg *config.Config, st SweepStore, logger *slog.Logger) *Sweeper {
	return &Sweeper{cfg: cfg, store: st, logger: logger}
}

// StaleAfter returns the configured staleness window, defaulting to 15
// minutes. This single constant governs the sweeper, the trigger
// precondition, and the client poller budget.
func StaleAfter(cfg *config.Config) time.Duration {
	minutes := cfg.Jobs.StaleAfterMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

// Start runs the sweep loop until the context is cancelled. Callers
// typically run this in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	interval := time.Duration(s.cfg.Jobs.SweepIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	staleAfter := StaleAfter(s.cfg)

	retentionDays := s.cfg.Jobs.UsageRetentionDays
	var lastCleanup time.Time

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now().UTC()
		staleBefore := now.Add(-staleAfter)

		for _, kind := range []Kind{KindPresalesReport, KindSlides} {
			n, err := s.store.SweepStale(ctx, kind, staleBefore)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("stale sweep failed", "kind", string(kind), "error", err)
				}
				continue
			}
			if n > 0 {
				metrics.RecordStaleSwept(string(kind), n)
				if s.logger != nil {
					s.logger.Info("stale jobs swept", "kind", string(kind), "count", n)
				}
			}
		}

		// Usage retention runs at most hourly.
		if retentionDays > 0 && (lastCleanup.IsZero() || now.Sub(lastCleanup) >= time.Hour) {
			cutoff := now.AddDate(0, 0, -retentionDays)
			if n, err := s.store.DeleteTokenUsageBefore(ctx, cutoff); err == nil && n > 0 {
				metrics.RecordUsageRowsDeleted(n)
			}
			lastCleanup = now
		}
	}
}
