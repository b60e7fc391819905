package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/ErlanBelekov/dist-job-scheduler/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics

	AttemptsScheduledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexing",
		Name:      "attempts_scheduled_total",
		Help:      "Total IndexAttempt rows created, by model status (present/future).",
	}, []string{"model_status"})

	// Dispatcher metrics

	AttemptsDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexing",
		Name:      "attempts_dispatched_total",
		Help:      "Total attempts submitted to a job client, by pool.",
	}, []string{"pool"})

	TrackedJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexing",
		Name:      "tracked_jobs",
		Help:      "Number of attempts currently tracked by the supervisor.",
	})

	// Reaper metrics

	ReaperFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexing",
		Name:      "reaper_failures_total",
		Help:      "Total attempts failed by the reaper, by reason class.",
	}, []string{"reason"})

	TickDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexing",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one supervisor tick, by component.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"component"})

	// Swap metrics

	ModelSwapsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "indexing",
		Name:      "model_swaps_total",
		Help:      "Total embedding model promotions (FUTURE -> PRESENT).",
	})

	// Process lifecycle

	SupervisorStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexing",
		Name:      "supervisor_start_time_seconds",
		Help:      "Unix timestamp when the supervisor started.",
	})
)

func Register() {
	prometheus.MustRegister(
		AttemptsScheduledTotal,
		AttemptsDispatchedTotal,
		TrackedJobs,
		ReaperFailuresTotal,
		TickDuration,
		ModelSwapsTotal,
		SupervisorStartTime,
	)
}

// NewServer serves /metrics plus the liveness/readiness endpoints backed by
// checker (spec §6 "observability").
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		if result.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		writeHealth(w, result)
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
