package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/config"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
)

// DispatchRequest carries the event context sent to the external job
// runner when a generation job is started.
type DispatchRequest struct {
	EventID       int64
	Title         string
	Description   string
	AttendeeEmail string
}

// dispatchPayload is the wire shape posted to the runner. The callback
// URL points back at this service's webhook endpoint.
type dispatchPayload struct {
	AgentID          string `json:"agent_id"`
	CalendarEventID  int64  `json:"calendar_event_id"`
	EventTitle       string `json:"event_title"`
	EventDescription string `json:"event_description,omitempty"`
	AttendeeEmail    string `json:"attendee_email,omitempty"`
	CallbackURL      string `json:"callback_url"`
}

// Client dispatches generation jobs to the external agent runner over
// authenticated JSON POSTs.
type Client struct {
	cfg    config.AgentConfig
	client *http.Client
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.AgentConfig) *Client {
	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 15000
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}
}

// endpoint resolves the per-kind runner endpoint and agent id.
func (c *Client) endpoint(kind jobs.Kind) (config.AgentEndpointConfig, error) {
	var ep config.AgentEndpointConfig
	switch kind {
	case jobs.KindPresalesReport:
		ep = c.cfg.Report
	case jobs.KindSlides:
		ep = c.cfg.Slides
	default:
		return ep, fmt.Errorf("unknown job kind: %s", kind)
	}
	if strings.TrimSpace(ep.WebhookURL) == "" {
		return ep, fmt.Errorf("agent webhook URL for %s is not configured", kind)
	}
	return ep, nil
}

// Dispatch posts a job start request to the runner for the given kind.
// Non-2xx responses are returned as errors embedding the upstream status
// and body so the request boundary can surface them.
func (c *Client) Dispatch(ctx context.Context, kind jobs.Kind, req DispatchRequest) error {
	if strings.TrimSpace(c.cfg.Secret) == "" {
		return fmt.Errorf("agent secret is not configured")
	}
	ep, err := c.endpoint(kind)
	if err != nil {
		return err
	}

	callbackURL := strings.TrimRight(c.cfg.CallbackBaseURL, "/") + "/webhooks/lindy"

	body, err := json.Marshal(dispatchPayload{
		AgentID:          ep.AgentID,
		CalendarEventID:  req.EventID,
		EventTitle:       req.Title,
		EventDescription: req.Description,
		AttendeeEmail:    req.AttendeeEmail,
		CallbackURL:      callbackURL,
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Secret)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("agent dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Cap the echoed body; upstream error pages can be large.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("agent dispatch failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return nil
}
