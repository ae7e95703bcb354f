package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	RecordRequest("GET", "/v1/events", 200, 12)

	out := Export()
	if !strings.Contains(out, "autoprep_http_requests_total{method=\"GET\",path=\"/v1/events\",status=\"200\"}") {
		t.Fatalf("expected HTTP request metric for GET /v1/events in export, got:\n%s", out)
	}
	if !strings.Contains(out, "autoprep_http_request_duration_ms_sum") || !strings.Contains(out, "autoprep_http_request_duration_ms_count") {
		t.Fatalf("expected latency metrics headers in export, got:\n%s", out)
	}
}

func TestRecordJobMetrics(t *testing.T) {
	RecordTrigger("presales_report")
	RecordWebhook("presales_report", "completed")
	RecordStaleSwept("slides", 2)
	RecordStatusLookup("presales_report", "database")
	RecordStatusLookup("presales_report", "external")

	out := Export()
	if !strings.Contains(out, "autoprep_jobs_triggered_total{kind=\"presales_report\"}") {
		t.Fatalf("expected trigger metric, got:\n%s", out)
	}
	if !strings.Contains(out, "autoprep_webhooks_received_total{kind=\"presales_report\",status=\"completed\"}") {
		t.Fatalf("expected webhook metric, got:\n%s", out)
	}
	if !strings.Contains(out, "autoprep_stale_jobs_swept_total{kind=\"slides\"} 2") {
		t.Fatalf("expected stale sweep metric, got:\n%s", out)
	}
	if !strings.Contains(out, "autoprep_status_lookups_total{kind=\"presales_report\",source=\"database\"}") ||
		!strings.Contains(out, "autoprep_status_lookups_total{kind=\"presales_report\",source=\"external\"}") {
		t.Fatalf("expected status lookup metrics for both sources, got:\n%s", out)
	}
}

func TestRecordTokenMetrics(t *testing.T) {
	RecordTokens("agent-report", 1500)
	RecordTokens("agent-report", 0) // ignored
	RecordUsageRowsDeleted(4)

	out := Export()
	if !strings.Contains(out, "autoprep_agent_tokens_total{agent=\"agent-report\"} 1500") {
		t.Fatalf("expected token usage metric, got:\n%s", out)
	}
	if !strings.Contains(out, "autoprep_usage_rows_deleted_total 4") {
		t.Fatalf("expected usage retention metric, got:\n%s", out)
	}
}
