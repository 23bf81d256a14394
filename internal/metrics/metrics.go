// v1
// internal/metrics/metrics.go

// Package metrics registers the service's Prometheus instruments and
// exposes them through the standard /metrics handler.
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
	replayBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enduro_replay_builds_total",
		Help: "Number of replay payloads assembled.",
	})
	replayDurations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enduro_replay_build_duration_seconds",
		Help:    "Time spent reconstructing standings for a replay payload.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
	simulatorPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enduro_simulator_polls_total",
		Help: "Simulator poll calls, partitioned by completion.",
	}, []string{"complete"})
	simulatorResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enduro_simulator_resets_total",
		Help: "Explicit simulator resets.",
	})
	importRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enduro_import_runs_total",
		Help: "Federation import runs, partitioned by outcome.",
	}, []string{"outcome"})
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enduro_http_requests_total",
		Help: "HTTP requests, partitioned by status code.",
	}, []string{"status"})
	httpLatencies = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enduro_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})
)

// Handler serves the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveReplayBuild records one replay assembly and its duration.
func ObserveReplayBuild(d time.Duration) {
	replayBuilds.Inc()
	replayDurations.Observe(d.Seconds())
}

// IncSimulatorPoll counts a poll call.
func IncSimulatorPoll(complete bool) {
	simulatorPolls.WithLabelValues(strconv.FormatBool(complete)).Inc()
}

// IncSimulatorReset counts an explicit reset.
func IncSimulatorReset() {
	simulatorResets.Inc()
}

// IncImportRun counts a federation import by outcome ("ok" or "error").
func IncImportRun(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	importRuns.WithLabelValues(outcome).Inc()
}

// ObserveRequest records the status distribution and latency of one HTTP
// request.
func ObserveRequest(status int, d time.Duration) {
	httpRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	httpLatencies.Observe(d.Seconds())
}
