package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	gradingOutcomesTotal  *prometheus.CounterVec
	rankRecomputeDuration prometheus.Histogram
	rankUpdatesTotal      prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campuscode",
			Name:      "http_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "campuscode",
			Name:      "http_latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campuscode",
			Name:      "http_errors_total",
			Help:      "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradingOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campuscode",
			Name:      "grading_outcomes_total",
			Help:      "Grading attempts by outcome status and error kind.",
		}, []string{"status", "kind"})

		rankRecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "campuscode",
			Name:      "rank_recompute_duration_seconds",
			Help:      "Duration of leaderboard rank recomputations.",
			Buckets:   prometheus.DefBuckets,
		})

		rankUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "campuscode",
			Name:      "rank_updates_total",
			Help:      "Number of user rank rows rewritten by recomputation.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			gradingOutcomesTotal,
			rankRecomputeDuration,
			rankUpdatesTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// GradingOutcomes exposes the grading outcome counter.
func GradingOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingOutcomesTotal
}

// RankRecomputeDuration exposes the recomputation latency histogram.
func RankRecomputeDuration() prometheus.Histogram {
	RegisterMetrics()
	return rankRecomputeDuration
}

// RankUpdates exposes the counter of rewritten rank rows.
func RankUpdates() prometheus.Counter {
	RegisterMetrics()
	return rankUpdatesTotal
}

// MetricsHandler serves the default registry, which also carries the
// executor collectors registered by pkg/execution.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
