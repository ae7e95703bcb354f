package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
)

// State is the client-side view of one event + job kind.
type State string

const (
	StateIdle      State = "idle"
	StateTriggered State = "triggered"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed-out"
)

// StatusResponse mirrors the poll endpoint's JSON body.
type StatusResponse struct {
	Success bool   `json:"success"`
	Found   bool   `json:"found"`
	Status  string `json:"status"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
	Source  string `json:"source,omitempty"`
	Stale   bool   `json:"stale,omitempty"`
}

// StatusGetter fetches the reconciled status for one event + job kind.
type StatusGetter interface {
	GetStatus(ctx context.Context, eventID int64, kind jobs.Kind) (StatusResponse, error)
}

// Client is an HTTP StatusGetter against the dashboard API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func statusPath(kind jobs.Kind) string {
	if kind == jobs.KindSlides {
		return "/v1/slides/status"
	}
	return "/v1/presales-report/status"
}

// GetStatus calls the poll endpoint once.
func (c *Client) GetStatus(ctx context.Context, eventID int64, kind jobs.Kind) (StatusResponse, error) {
	url := c.baseURL + statusPath(kind) + "?event_id=" + strconv.FormatInt(eventID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusResponse{}, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return StatusResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusResponse{}, fmt.Errorf("status poll failed with status %d", resp.StatusCode)
	}

	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StatusResponse{}, err
	}
	return out, nil
}

// Outcome is the terminal result of a polling run.
type Outcome struct {
	State  State
	Result StatusResponse
}

// Poller drives the display-side state machine: after a successful
// trigger it polls the reconciler on a fixed interval until a terminal
// state or the budget elapses. Poll errors are logged and retried on
// the next tick; only the budget ends the run without a result.
type Poller struct {
	getter   StatusGetter
	interval time.Duration
	budget   time.Duration
	logger   *slog.Logger
}

// New builds a Poller. interval defaults to 5s; budget defaults to the
// staleness window so the client and server agree on when a job is
// stuck.
func New(getter StatusGetter, interval, budget time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if budget <= 0 {
		budget = 15 * time.Minute
	}
	return &Poller{getter: getter, interval: interval, budget: budget, logger: logger}
}

// Poll runs until the job completes, fails, the budget elapses, or ctx
// is cancelled. A timed-out run leaves the stored status untouched; the
// caller presents a retry affordance and a later sweep or webhook may
// still settle the job.
func (p *Poller) Poll(ctx context.Context, eventID int64, kind jobs.Kind) (Outcome, error) {
	startedAt := time.Now()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Outcome{State: StateTimedOut}, ctx.Err()
		case <-ticker.C:
		}

		resp, err := p.getter.GetStatus(ctx, eventID, kind)
		if err != nil {
			// Transient poll failures are invisible to the user until the
			// budget elapses.
			if p.logger != nil {
				p.logger.Warn("status poll failed", "event_id", eventID, "kind", string(kind), "error", err)
			}
		} else {
			if resp.Found && (resp.URL != "" || resp.Content != "") {
				return Outcome{State: StateCompleted, Result: resp}, nil
			}
			if resp.Status == string(jobs.StatusFailed) {
				return Outcome{State: StateFailed, Result: resp}, nil
			}
		}

		if time.Since(startedAt) > p.budget {
			return Outcome{State: StateTimedOut, Result: resp}, nil
		}
	}
}
