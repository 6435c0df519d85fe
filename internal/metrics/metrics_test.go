package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/liamcoop/premium/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{42, "unknown"},
	}

	for _, tt := range tests {
		if got := statusBucket(tt.code); got != tt.want {
			t.Errorf("statusBucket(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/v1/predictions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/predictions/{id}", "4xx"))

	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/predictions/"+id, nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	}

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/predictions/{id}", "4xx"))
	assert.Equal(t, before+3, after)
}

func TestObserveHelpers(t *testing.T) {
	predBefore := testutil.ToFloat64(PredictionsTotal.WithLabelValues("rest", "test"))
	clampedBefore := testutil.ToFloat64(ClampedTotal)
	ObservePrediction("rest", "test", 11500, false)
	ObservePrediction("rest", "test", 0, true)
	assert.Equal(t, predBefore+2, testutil.ToFloat64(PredictionsTotal.WithLabelValues("rest", "test")))
	assert.Equal(t, clampedBefore+1, testutil.ToFloat64(ClampedTotal))

	hits := testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("miss"))
	errs := testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("error"))
	ObserveCache(true, nil)
	ObserveCache(false, nil)
	ObserveCache(false, errors.New("down"))
	assert.Equal(t, hits+1, testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("hit")))
	assert.Equal(t, misses+1, testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("miss")))
	assert.Equal(t, errs+1, testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("error")))
}

func TestObserveValidationFailureBoundsUnknownFields(t *testing.T) {
	before := testutil.ToFloat64(ValidationFailuresTotal.WithLabelValues(UnknownFieldLabel, "unknown_field"))
	for _, field := range []string{"nickname", "junk_1", "junk_2"} {
		ObserveValidationFailure(field, "unknown_field")
	}
	assert.Equal(t, before+3, testutil.ToFloat64(ValidationFailuresTotal.WithLabelValues(UnknownFieldLabel, "unknown_field")))

	ageBefore := testutil.ToFloat64(ValidationFailuresTotal.WithLabelValues("age", "out_of_range"))
	ObserveValidationFailure("age", "out_of_range")
	assert.Equal(t, ageBefore+1, testutil.ToFloat64(ValidationFailuresTotal.WithLabelValues("age", "out_of_range")))
}

func TestLogCountersCollector(t *testing.T) {
	assert.Equal(t, 8, testutil.CollectAndCount(logCounters{}))

	before := logCounterValue(t, "premium_http_client_errors_total", "413")
	logger.WarnHttp4xx(http.StatusRequestEntityTooLarge)
	assert.Equal(t, before+1, logCounterValue(t, "premium_http_client_errors_total", "413"))

	rejected := logCounterValue(t, "premium_rejected_records_total", "")
	logger.WarnValidation()
	assert.Equal(t, rejected+1, logCounterValue(t, "premium_rejected_records_total", ""))
}

// logCounterValue gathers logCounters and returns the series whose only
// label value is label, or the unlabeled series when label is empty
func logCounterValue(t *testing.T, name, label string) float64 {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(logCounters{})
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := m.GetLabel()
			if (label == "" && len(labels) == 0) || (len(labels) == 1 && labels[0].GetValue() == label) {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("series %s{%s} not found", name, label)
	return 0
}

func TestMetricsEndpoint(t *testing.T) {
	ArtifactInfo.WithLabelValues("shield-premium", "test").Set(1)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, name := range []string{"premium_artifact_info", "premium_goroutines", "premium_db_open_connections"} {
		assert.True(t, strings.Contains(body, name), "expected %s in output", name)
	}
}
