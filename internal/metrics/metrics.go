// Package metrics provides Prometheus instrumentation for the premium API.
package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/premium/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "premium"

var (
	// HTTPRequestsTotal counts HTTP requests by method, route pattern and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route pattern.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PredictionsTotal counts served premiums by segment and model version.
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Premiums served by segment and model version.",
		},
		[]string{"segment", "model_version"},
	)

	// ClampedTotal counts raw model outputs replaced by the floor.
	ClampedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clamped_total",
		Help:      "Predictions whose raw output was clamped to the floor.",
	})

	PremiumAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "premium_amount",
		Help:      "Distribution of served premiums.",
		Buckets:   []float64{1000, 2500, 5000, 7500, 10000, 15000, 20000, 30000, 50000},
	})

	// ValidationFailuresTotal counts rejected fields by field and reason.
	ValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Rejected applicant fields by field name and reason.",
		},
		[]string{"field", "reason"},
	)

	// InternalErrorsTotal counts pipeline contract failures.
	InternalErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "internal_errors_total",
		Help:      "Pipeline failures that are not caused by input.",
	})

	// CacheRequestsTotal counts result cache lookups by result (hit, miss, error).
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Result cache lookups by result.",
		},
		[]string{"result"},
	)

	BatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_size",
		Help:      "Records per batch request.",
		Buckets:   []float64{1, 5, 10, 50, 100, 250, 500, 1000},
	})

	// ArtifactInfo is 1 for the loaded artifact.
	ArtifactInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_info",
			Help:      "Loaded scoring artifact.",
		},
		[]string{"name", "version"},
	)

	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_open_connections",
		Help: "Number of open audit database connections.",
	})
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_in_use_connections",
		Help: "Number of in-use audit database connections.",
	})
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PredictionsTotal,
		ClampedTotal,
		PremiumAmount,
		ValidationFailuresTotal,
		InternalErrorsTotal,
		CacheRequestsTotal,
		BatchSize,
		ArtifactInfo,
		DBOpenConnections,
		DBInUseConnections,
		GoroutineCount,
		logCounters{},
	)
}

var (
	loggedMessagesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "logged_messages_total"),
		"Warnings and errors logged, including those dropped by sampling.",
		[]string{"level"}, nil,
	)
	httpErrorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "http_error_responses_total"),
		"Error responses by status class.",
		[]string{"class"}, nil,
	)
	httpClientErrorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "http_client_errors_total"),
		"Client error responses for the statuses tracked individually.",
		[]string{"code"}, nil,
	)
	rejectedRecordsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "rejected_records_total"),
		"Applicant records rejected by validation.",
		nil, nil,
	)
)

// logCounters exports the logger's counters at scrape time
type logCounters struct{}

func (logCounters) Describe(ch chan<- *prometheus.Desc) {
	ch <- loggedMessagesDesc
	ch <- httpErrorsDesc
	ch <- httpClientErrorsDesc
	ch <- rejectedRecordsDesc
}

func (logCounters) Collect(ch chan<- prometheus.Metric) {
	counter := func(desc *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	counter(loggedMessagesDesc, logger.TotalErrors.Load(), "error")
	counter(loggedMessagesDesc, logger.TotalWarnings.Load(), "warning")
	counter(httpErrorsDesc, logger.Total4xxErrors.Load(), "4xx")
	counter(httpErrorsDesc, logger.Total5xxErrors.Load(), "5xx")
	counter(httpClientErrorsDesc, logger.Total400Errors.Load(), "400")
	counter(httpClientErrorsDesc, logger.Total404Errors.Load(), "404")
	counter(httpClientErrorsDesc, logger.Total413Errors.Load(), "413")
	counter(rejectedRecordsDesc, logger.ValidationErrors.Load())
}

// ObservePrediction records one served premium
func ObservePrediction(segment, modelVersion string, premium float64, clamped bool) {
	PredictionsTotal.WithLabelValues(segment, modelVersion).Inc()
	PremiumAmount.Observe(premium)
	if clamped {
		ClampedTotal.Inc()
	}
}

// UnknownFieldLabel replaces client-chosen field names in label values
const UnknownFieldLabel = "_unknown"

// ObserveValidationFailure records one rejected field. Undeclared fields are
// named by the client, so they share a single label value.
func ObserveValidationFailure(field, reason string) {
	if reason == "unknown_field" {
		field = UnknownFieldLabel
	}
	ValidationFailuresTotal.WithLabelValues(field, reason).Inc()
}

// ObserveCache records a cache lookup
func ObserveCache(hit bool, err error) {
	switch {
	case err != nil:
		CacheRequestsTotal.WithLabelValues("error").Inc()
	case hit:
		CacheRequestsTotal.WithLabelValues("hit").Inc()
	default:
		CacheRequestsTotal.WithLabelValues("miss").Inc()
	}
}

// StartDBStatsCollector periodically samples sql.DBStats and the goroutine
// count. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware records request count and latency under the chi route pattern,
// not the raw path, to keep label cardinality bounded
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, path, statusBucket(status)).Inc()
	})
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
