package tabular

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/config"
)

// The external tabular store has drifted field names over time, so
// correlation and result extraction each try several candidates in
// order.
var (
	eventIDFields = []string{
		"calendar_event_id", "event_id", "eventId", "Calendar Event ID", "Event ID",
	}
	statusFields = []string{"status", "Status"}
	urlFields    = []string{
		"pdf_url", "presales_report_url", "slides_url", "presentation_url",
		"url", "PDF URL", "Report URL",
	}
	contentFields = []string{"report_content", "content", "Report Content"}
)

// Record is a normalized row from the external tabular source.
type Record struct {
	ID      string
	Status  string
	URL     string
	Content string
}

// Completed reports whether the record carries a completed status and a
// usable result.
func (r Record) Completed() bool {
	return strings.EqualFold(r.Status, "completed") && (r.URL != "" || r.Content != "")
}

// listResponse models the subset of the tabular REST response we read.
type listResponse struct {
	Records []struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	} `json:"records"`
}

// Client queries the external tabular record store used as a fallback
// status source for generation jobs.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient builds a Client, or returns nil if the source is not
// configured; callers treat a nil client as "no fallback available".
func NewClient(cfg config.TabularConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil
	}

	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	return &Client{
		baseURL: base,
		token:   cfg.Token,
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}
}

// FindEventRecord fetches the record list and returns the first record
// whose event-id field matches the given event id, or nil when no row
// correlates. The id is matched as a string against every candidate
// field name.
func (c *Client) FindEventRecord(ctx context.Context, eventID int64) (*Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tabular query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tabular query failed with status %d", resp.StatusCode)
	}

	var payload listResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	want := strconv.FormatInt(eventID, 10)
	for _, rec := range payload.Records {
		if !fieldMatches(rec.Fields, eventIDFields, want) {
			continue
		}
		out := &Record{
			ID:      rec.ID,
			Status:  firstString(rec.Fields, statusFields),
			URL:     firstString(rec.Fields, urlFields),
			Content: firstString(rec.Fields, contentFields),
		}
		return out, nil
	}

	return nil, nil
}

// fieldMatches reports whether any candidate field holds the wanted id,
// comparing numbers and strings alike through their string form.
func fieldMatches(fields map[string]any, candidates []string, want string) bool {
	for _, name := range candidates {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if stringify(v) == want {
			return true
		}
	}
	return false
}

func firstString(fields map[string]any, candidates []string) string {
	for _, name := range candidates {
		if v, ok := fields[name]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		// JSON numbers decode as float64; event ids are integral.
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
