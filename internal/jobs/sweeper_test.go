package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/config"
)

type sweepRecorder struct {
	swept   chan Kind
	deleted chan time.Time
}

func (r *sweepRecorder) SweepStale(_ context.Context, kind Kind, _ time.Time) (int64, error) {
	r.swept <- kind
	return 1, nil
}

func (r *sweepRecorder) DeleteTokenUsageBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.deleted <- cutoff
	return 2, nil
}

func TestStaleAfter(t *testing.T) {
	cfg := &config.Config{}
	if got := StaleAfter(cfg); got != 15*time.Minute {
		t.Fatalf("default = %s, want 15m", got)
	}

	cfg.Jobs.StaleAfterMinutes = 20
	if got := StaleAfter(cfg); got != 20*time.Minute {
		t.Fatalf("configured = %s, want 20m", got)
	}

	cfg.Jobs.StaleAfterMinutes = -1
	if got := StaleAfter(cfg); got != 15*time.Minute {
		t.Fatalf("negative config = %s, want 15m", got)
	}
}

func TestSweeper_SweepsBothKinds(t *testing.T) {
	cfg := &config.Config{}
	cfg.Jobs.SweepIntervalSecs = 1
	cfg.Jobs.UsageRetentionDays = 30

	rec := &sweepRecorder{swept: make(chan Kind, 4), deleted: make(chan time.Time, 2)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go NewSweeper(cfg, rec, nil).Start(ctx)

	waitKind := func() Kind {
		select {
		case k := <-rec.swept:
			return k
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a sweep")
			return ""
		}
	}

	first, second := waitKind(), waitKind()
	if first != KindPresalesReport || second != KindSlides {
		t.Fatalf("sweep order = %s, %s", first, second)
	}

	select {
	case cutoff := <-rec.deleted:
		if want := time.Now().UTC().AddDate(0, 0, -30); cutoff.After(want.Add(time.Minute)) || cutoff.Before(want.Add(-time.Minute)) {
			t.Fatalf("retention cutoff = %s, want ~%s", cutoff, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for usage retention")
	}

	cancel()
}
