package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions      prometheus.Gauge
	sessionsCreated     prometheus.Counter
	sessionSaveDuration prometheus.Histogram

	reaperRuns      prometheus.Counter
	reaperRemoved   prometheus.Counter
	reaperFailures  prometheus.Counter
	reaperRemaining prometheus.Gauge
	reaperDuration  prometheus.Histogram

	chatRequestsTotal *prometheus.CounterVec
	rateLimitRejected *prometheus.CounterVec

	upstreamCallsTotal    *prometheus.CounterVec
	upstreamCallDuration  *prometheus.HistogramVec
	providerCooldown      *prometheus.GaugeVec
	websocketConnections  prometheus.Gauge
	transcriptsArchived   prometheus.Counter
	transcriptArchiveErrs prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "chat_active_sessions",
					Help: "Current number of live chat sessions.",
				},
			),
			sessionsCreated: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "chat_sessions_created_total",
					Help: "Total chat sessions created.",
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "chat_session_append_duration_seconds",
					Help:    "Time spent appending an exchange to a session.",
					Buckets: prometheus.DefBuckets,
				},
			),
			reaperRuns: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "session_reaper_runs_total",
					Help: "Total reaper sweep cycles.",
				},
			),
			reaperRemoved: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "session_reaper_removed_total",
					Help: "Total idle sessions removed by the reaper.",
				},
			),
			reaperFailures: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "session_reaper_failures_total",
					Help: "Total per-session failures during reaper sweeps.",
				},
			),
			reaperRemaining: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "session_reaper_remaining",
					Help: "Sessions remaining after the last reaper sweep.",
				},
			),
			reaperDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_reaper_duration_seconds",
					Help:    "Reaper sweep duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			chatRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_requests_total",
					Help: "Total chat requests by outcome.",
				},
				[]string{"outcome"},
			),
			rateLimitRejected: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_rejected_total",
					Help: "Total requests rejected by limiter.",
				},
				[]string{"limiter"},
			),
			upstreamCallsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "upstream_calls_total",
					Help: "Total model backend calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			upstreamCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "upstream_call_duration_seconds",
					Help:    "Model backend call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			providerCooldown: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "upstream_provider_cooldown",
					Help: "Whether a model provider is cooling down after failures (1) or not (0).",
				},
				[]string{"provider"},
			),
			websocketConnections: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "chat_websocket_connections",
					Help: "Open chat websocket connections.",
				},
			),
			transcriptsArchived: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "session_transcripts_archived_total",
					Help: "Total evicted session transcripts archived.",
				},
			),
			transcriptArchiveErrs: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "session_transcript_archive_errors_total",
					Help: "Total failures archiving evicted transcripts.",
				},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionsCreated,
			m.sessionSaveDuration,
			m.reaperRuns,
			m.reaperRemoved,
			m.reaperFailures,
			m.reaperRemaining,
			m.reaperDuration,
			m.chatRequestsTotal,
			m.rateLimitRejected,
			m.upstreamCallsTotal,
			m.upstreamCallDuration,
			m.providerCooldown,
			m.websocketConnections,
			m.transcriptsArchived,
			m.transcriptArchiveErrs,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func RecordSessionCreated() {
	getMetrics().sessionsCreated.Inc()
}

func RecordSessionSave(duration time.Duration) {
	m := getMetrics()
	m.sessionSaveDuration.Observe(duration.Seconds())
}

func RecordReaperSweep(removed, remaining, failed int, duration time.Duration) {
	m := getMetrics()
	m.reaperRuns.Inc()
	m.reaperRemoved.Add(float64(removed))
	m.reaperFailures.Add(float64(failed))
	m.reaperRemaining.Set(float64(remaining))
	m.reaperDuration.Observe(duration.Seconds())
	m.activeSessions.Set(float64(remaining))
}

// RecordChatRequest counts a finished chat request. outcome is "success" or
// an error kind.
func RecordChatRequest(outcome string) {
	getMetrics().chatRequestsTotal.WithLabelValues(outcome).Inc()
}

func RecordRateLimitRejection(limiter string) {
	getMetrics().rateLimitRejected.WithLabelValues(limiter).Inc()
}

func RecordUpstreamCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.upstreamCallsTotal.WithLabelValues(provider, status).Inc()
	m.upstreamCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func SetProviderCooldown(provider string, cooling bool) {
	value := 0.0
	if cooling {
		value = 1
	}
	getMetrics().providerCooldown.WithLabelValues(provider).Set(value)
}

func AddWebsocketConnections(delta int) {
	getMetrics().websocketConnections.Add(float64(delta))
}

func RecordTranscriptArchived(success bool) {
	m := getMetrics()
	if success {
		m.transcriptsArchived.Inc()
		return
	}
	m.transcriptArchiveErrs.Inc()
}
