package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/config"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/metrics"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/report"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/storage"
)

// WebhookStore is the store surface webhook processing needs.
type WebhookStore interface {
	GetEvent(ctx context.Context, id int64) (store.Event, error)
	CompleteJob(ctx context.Context, id int64, kind jobs.Kind, url, content *string, generatedAt time.Time) error
	FailJob(ctx context.Context, id int64, kind jobs.Kind) error
	InsertTokenUsage(ctx context.Context, eventID *int64, agent string, promptTokens, completionTokens int64) error
}

// Uploader persists a synthesized document to durable object storage.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// WebhookPayload is the JSON body posted by the agent runner on job
// completion or failure. The runner has used two naming schemes for
// result URLs over time; both are accepted and normalized.
type WebhookPayload struct {
	AgentID         string `json:"agent_id"`
	CalendarEventID int64  `json:"calendar_event_id"`
	Status          string `json:"status"`

	PDFURL            string `json:"pdf_url,omitempty"`
	PresalesReportURL string `json:"presales_report_url,omitempty"`
	ReportContent     string `json:"report_content,omitempty"`
	SlidesURL         string `json:"slides_url,omitempty"`
	PresentationURL   string `json:"presentation_url,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`

	PromptTokens     int64 `json:"prompt_tokens,omitempty"`
	CompletionTokens int64 `json:"completion_tokens,omitempty"`
}

// resultURL maps either external naming convention onto the canonical
// internal url field, enumerated explicitly per kind.
func (p WebhookPayload) resultURL(kind jobs.Kind) string {
	switch kind {
	case jobs.KindPresalesReport:
		if p.PDFURL != "" {
			return p.PDFURL
		}
		return p.PresalesReportURL
	case jobs.KindSlides:
		if p.SlidesURL != "" {
			return p.SlidesURL
		}
		return p.PresentationURL
	}
	return ""
}

// WebhookOutcome carries the HTTP status and message the receiver should
// answer with.
type WebhookOutcome struct {
	HTTPStatus int
	Message    string
}

// WebhookService validates and applies agent completion callbacks.
type WebhookService struct {
	cfg      config.WebhookConfig
	st       WebhookStore
	uploader Uploader
	agents   map[string]jobs.Kind
	logger   *slog.Logger
}

// NewWebhookService wires the webhook receiver. The agent-id mapping is
// built from configuration: exactly two known identifiers, one per job
// kind. A nil uploader degrades content-only reports to an inline
// data: URL.
func NewWebhookService(webhookCfg config.WebhookConfig, agentCfg config.AgentConfig, st WebhookStore, uploader Uploader, logger *slog.Logger) *WebhookService {
	agents := make(map[string]jobs.Kind, 2)
	if agentCfg.Report.AgentID != "" {
		agents[agentCfg.Report.AgentID] = jobs.KindPresalesReport
	}
	if agentCfg.Slides.AgentID != "" {
		agents[agentCfg.Slides.AgentID] = jobs.KindSlides
	}
	return &WebhookService{
		cfg:      webhookCfg,
		st:       st,
		uploader: uploader,
		agents:   agents,
		logger:   logger,
	}
}

// Signature computes the hex HMAC-SHA256 of body under the given
// secret, the scheme carried in the x-lindy-signature header.
func Signature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature enforces the callback authentication policy: a
// present header must match; an absent header is rejected unless
// lenient mode is configured, in which case it is logged and allowed.
func (s *WebhookService) verifySignature(raw []byte, header string) *WebhookOutcome {
	if s.cfg.Secret == "" {
		return &WebhookOutcome{HTTPStatus: http.StatusInternalServerError, Message: "webhook secret is not configured"}
	}

	if header == "" {
		if s.cfg.SignatureRequired() {
			return &WebhookOutcome{HTTPStatus: http.StatusUnauthorized, Message: "missing webhook signature"}
		}
		if s.logger != nil {
			s.logger.Warn("webhook delivered without signature; accepting due to lenient policy")
		}
		return nil
	}

	expected := Signature(raw, s.cfg.Secret)
	if !hmac.Equal([]byte(strings.ToLower(header)), []byte(expected)) {
		return &WebhookOutcome{HTTPStatus: http.StatusUnauthorized, Message: "invalid webhook signature"}
	}
	return nil
}

// Process applies one webhook delivery. Repeated identical deliveries
// re-apply the same terminal state, so the receiver is idempotent by
// overwrite.
func (s *WebhookService) Process(ctx context.Context, raw []byte, signatureHeader string) WebhookOutcome {
	if out := s.verifySignature(raw, signatureHeader); out != nil {
		return *out
	}

	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return WebhookOutcome{HTTPStatus: http.StatusBadRequest, Message: "malformed JSON body"}
	}

	kind, ok := s.agents[payload.AgentID]
	if !ok {
		return WebhookOutcome{HTTPStatus: http.StatusBadRequest, Message: fmt.Sprintf("unknown agent id %q", payload.AgentID)}
	}
	if payload.CalendarEventID <= 0 {
		return WebhookOutcome{HTTPStatus: http.StatusBadRequest, Message: "missing calendar_event_id"}
	}

	if _, err := s.st.GetEvent(ctx, payload.CalendarEventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WebhookOutcome{HTTPStatus: http.StatusNotFound, Message: "event not found"}
		}
		return WebhookOutcome{HTTPStatus: http.StatusInternalServerError, Message: err.Error()}
	}

	metrics.RecordWebhook(string(kind), payload.Status)

	switch strings.ToLower(payload.Status) {
	case "completed":
		return s.applyCompleted(ctx, kind, payload)
	case "failed":
		if err := s.st.FailJob(ctx, payload.CalendarEventID, kind); err != nil {
			return WebhookOutcome{HTTPStatus: http.StatusInternalServerError, Message: err.Error()}
		}
		if s.logger != nil {
			s.logger.Info("job_failed",
				"event_id", payload.CalendarEventID,
				"kind", string(kind),
				"error_message", payload.ErrorMessage,
			)
		}
		s.recordUsage(ctx, payload)
		return WebhookOutcome{HTTPStatus: http.StatusOK, Message: "failure recorded"}
	default:
		// Best-effort protocol: unknown statuses are logged, not stored,
		// and not surfaced back as HTTP errors.
		if s.logger != nil {
			s.logger.Warn("webhook with unhandled status",
				"event_id", payload.CalendarEventID,
				"kind", string(kind),
				"status", payload.Status,
			)
		}
		return WebhookOutcome{HTTPStatus: http.StatusOK, Message: "ignored"}
	}
}

func (s *WebhookService) applyCompleted(ctx context.Context, kind jobs.Kind, payload WebhookPayload) WebhookOutcome {
	url := payload.resultURL(kind)
	content := payload.ReportContent

	if url == "" && (kind != jobs.KindPresalesReport || content == "") {
		return WebhookOutcome{HTTPStatus: http.StatusBadRequest, Message: "completed status without a result"}
	}

	// A report delivered as inline content only gets a synthesized
	// document persisted to object storage, with an inline data: URL as
	// the degraded fallback when storage is unavailable.
	if url == "" && kind == jobs.KindPresalesReport {
		url = s.persistReport(ctx, payload.CalendarEventID, content)
	}

	var urlPtr, contentPtr *string
	if url != "" {
		urlPtr = &url
	}
	if kind == jobs.KindPresalesReport && content != "" {
		contentPtr = &content
	}

	if err := s.st.CompleteJob(ctx, payload.CalendarEventID, kind, urlPtr, contentPtr, time.Now().UTC()); err != nil {
		return WebhookOutcome{HTTPStatus: http.StatusInternalServerError, Message: err.Error()}
	}

	if s.logger != nil {
		s.logger.Info("job_completed",
			"event_id", payload.CalendarEventID,
			"kind", string(kind),
			"url", url,
		)
	}
	s.recordUsage(ctx, payload)
	return WebhookOutcome{HTTPStatus: http.StatusOK, Message: "completion recorded"}
}

// persistReport synthesizes a PDF from inline content and uploads it.
// Every failure degrades to an inline-encoded representation rather than
// failing the webhook.
func (s *WebhookService) persistReport(ctx context.Context, eventID int64, content string) string {
	pdfBytes, err := report.SynthesizePDF(fmt.Sprintf("Pre-Sales Report - Event %d", eventID), content)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("report synthesis failed, falling back to inline text", "event_id", eventID, "error", err)
		}
		return "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(content))
	}

	if s.uploader != nil {
		key := fmt.Sprintf("reports/event-%d-%d.pdf", eventID, time.Now().UTC().Unix())
		if uploaded, err := s.uploader.Upload(ctx, key, pdfBytes, "application/pdf"); err == nil {
			return uploaded
		} else if s.logger != nil && err != storage.ErrUnavailable {
			s.logger.Warn("report upload failed, falling back to inline document", "event_id", eventID, "error", err)
		}
	}

	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdfBytes)
}

func (s *WebhookService) recordUsage(ctx context.Context, payload WebhookPayload) {
	if payload.PromptTokens <= 0 && payload.CompletionTokens <= 0 {
		return
	}
	eventID := payload.CalendarEventID
	if err := s.st.InsertTokenUsage(ctx, &eventID, payload.AgentID, payload.PromptTokens, payload.CompletionTokens); err != nil {
		if s.logger != nil {
			s.logger.Warn("token usage insert failed", "event_id", eventID, "error", err)
		}
		return
	}
	metrics.RecordTokens(payload.AgentID, payload.PromptTokens+payload.CompletionTokens)
}
