package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and the job
// protocol. This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	jobsTriggered    = make(map[string]int64)
	webhooksReceived = make(map[webhookKey]int64)
	staleSwept       = make(map[string]int64)
	statusLookups    = make(map[lookupKey]int64)
	tokensUsed       = make(map[string]int64)

	usageRowsDeleted int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type webhookKey struct {
	Kind   string
	Status string
}

type lookupKey struct {
	Kind   string
	Source string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordTrigger increments the counter of accepted job triggers.
func RecordTrigger(kind string) {
	mu.Lock()
	defer mu.Unlock()
	jobsTriggered[kind]++
}

// RecordWebhook counts inbound agent callbacks by job kind and reported
// status.
func RecordWebhook(kind, status string) {
	mu.Lock()
	defer mu.Unlock()
	webhooksReceived[webhookKey{Kind: kind, Status: status}]++
}

// RecordStaleSwept adds the number of processing rows marked failed by a
// staleness sweep.
func RecordStaleSwept(kind string, n int64) {
	if n <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	staleSwept[kind] += n
}

// RecordStatusLookup counts poll-endpoint resolutions by the source that
// answered (database or external).
func RecordStatusLookup(kind, source string) {
	mu.Lock()
	defer mu.Unlock()
	statusLookups[lookupKey{Kind: kind, Source: source}]++
}

// RecordTokens accumulates reported token usage per agent.
func RecordTokens(agent string, tokens int64) {
	if tokens <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	tokensUsed[agent] += tokens
}

// RecordUsageRowsDeleted counts token-usage rows removed by retention
// cleanup.
func RecordUsageRowsDeleted(n int64) {
	if n <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	usageRowsDeleted += n
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP autoprep_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE autoprep_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "autoprep_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP autoprep_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE autoprep_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP autoprep_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE autoprep_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		sum := latencyMsSum[k]
		cnt := latencyMsCount[k]
		fmt.Fprintf(&b, "autoprep_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, sum)
		fmt.Fprintf(&b, "autoprep_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, cnt)
	}

	b.WriteString("# HELP autoprep_jobs_triggered_total Accepted job triggers by kind\n")
	b.WriteString("# TYPE autoprep_jobs_triggered_total counter\n")

	var kinds []string
	for k := range jobsTriggered {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "autoprep_jobs_triggered_total{kind=\"%s\"} %d\n", k, jobsTriggered[k])
	}

	b.WriteString("# HELP autoprep_webhooks_received_total Inbound agent callbacks by kind and status\n")
	b.WriteString("# TYPE autoprep_webhooks_received_total counter\n")

	var whKeys []webhookKey
	for k := range webhooksReceived {
		whKeys = append(whKeys, k)
	}
	sort.Slice(whKeys, func(i, j int) bool {
		if whKeys[i].Kind != whKeys[j].Kind {
			return whKeys[i].Kind < whKeys[j].Kind
		}
		return whKeys[i].Status < whKeys[j].Status
	})
	for _, k := range whKeys {
		fmt.Fprintf(&b, "autoprep_webhooks_received_total{kind=\"%s\",status=\"%s\"} %d\n",
			k.Kind, k.Status, webhooksReceived[k])
	}

	b.WriteString("# HELP autoprep_stale_jobs_swept_total Processing jobs marked failed by staleness sweeps\n")
	b.WriteString("# TYPE autoprep_stale_jobs_swept_total counter\n")

	var sweepKinds []string
	for k := range staleSwept {
		sweepKinds = append(sweepKinds, k)
	}
	sort.Strings(sweepKinds)
	for _, k := range sweepKinds {
		fmt.Fprintf(&b, "autoprep_stale_jobs_swept_total{kind=\"%s\"} %d\n", k, staleSwept[k])
	}

	b.WriteString("# HELP autoprep_status_lookups_total Poll endpoint resolutions by answering source\n")
	b.WriteString("# TYPE autoprep_status_lookups_total counter\n")

	var lkKeys []lookupKey
	for k := range statusLookups {
		lkKeys = append(lkKeys, k)
	}
	sort.Slice(lkKeys, func(i, j int) bool {
		if lkKeys[i].Kind != lkKeys[j].Kind {
			return lkKeys[i].Kind < lkKeys[j].Kind
		}
		return lkKeys[i].Source < lkKeys[j].Source
	})
	for _, k := range lkKeys {
		fmt.Fprintf(&b, "autoprep_status_lookups_total{kind=\"%s\",source=\"%s\"} %d\n",
			k.Kind, k.Source, statusLookups[k])
	}

	b.WriteString("# HELP autoprep_agent_tokens_total Reported token usage by agent\n")
	b.WriteString("# TYPE autoprep_agent_tokens_total counter\n")

	var agents []string
	for a := range tokensUsed {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	for _, a := range agents {
		fmt.Fprintf(&b, "autoprep_agent_tokens_total{agent=\"%s\"} %d\n", a, tokensUsed[a])
	}

	b.WriteString("# HELP autoprep_usage_rows_deleted_total Token-usage rows removed by retention cleanup\n")
	b.WriteString("# TYPE autoprep_usage_rows_deleted_total counter\n")
	fmt.Fprintf(&b, "autoprep_usage_rows_deleted_total %d\n", usageRowsDeleted)

	return b.String()
}
