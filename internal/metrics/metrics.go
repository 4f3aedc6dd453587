// Package metrics exposes Prometheus collectors for the relay service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"method", "route"},
	)

	scrapeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_scrape_requests_total",
			Help: "Total number of scrape requests, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_stage_duration_seconds",
			Help:    "Time spent in each orchestration stage.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	workerStatusChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_worker_status_checks_total",
			Help: "Agent status checks, labeled by result (idle, busy, error).",
		},
		[]string{"result"},
	)

	launchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_launch_attempts_total",
			Help: "Agent launch attempts, labeled by result.",
		},
		[]string{"result"},
	)

	jobStatusPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_job_status_polls_total",
			Help: "Container status polls, labeled by result.",
		},
		[]string{"result"},
	)

	profilesNormalizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_profiles_normalized_total",
			Help: "Total number of profile records returned to clients.",
		},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Scrape requests rejected by the per-user rate limiter.",
		},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveScrape counts a finished scrape request.
func ObserveScrape(outcome string) {
	scrapeRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long an orchestration stage took.
func ObserveStage(stage string, duration time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveWorkerCheck counts one agent status check.
func ObserveWorkerCheck(result string) {
	workerStatusChecksTotal.WithLabelValues(result).Inc()
}

// ObserveLaunchAttempt counts one launch attempt.
func ObserveLaunchAttempt(result string) {
	launchAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveJobPoll counts one container status poll.
func ObserveJobPoll(result string) {
	jobStatusPollsTotal.WithLabelValues(result).Inc()
}

// AddProfiles adds n to the normalized profile counter.
func AddProfiles(n int) {
	if n > 0 {
		profilesNormalizedTotal.Add(float64(n))
	}
}

// ObserveRateLimited counts a request rejected by the rate limiter.
func ObserveRateLimited() {
	rateLimitedTotal.Inc()
}
