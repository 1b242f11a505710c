package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWithRegistry(reg, reg)
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m := newTestMetrics()

	m.RecordHTTPRequest("POST", "/v1/ruptures", 200, 100*time.Millisecond)
	m.RecordHTTPRequest("POST", "/v1/ruptures", 200, 50*time.Millisecond)
	m.RecordHTTPRequest("POST", "/v1/ruptures", 404, 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/v1/ruptures", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/v1/ruptures", "404")))
}

func TestMetrics_CacheRecorder(t *testing.T) {
	m := newTestMetrics()

	m.RecordCacheHit("filtered_ruptures", "local")
	m.RecordCacheHit("filtered_ruptures", "local")
	m.RecordCacheHit("location_ruptures", "remote")
	m.RecordCacheMiss("mfd")
	m.RecordCacheCompute("mfd", time.Millisecond, nil)
	m.RecordCacheCompute("mfd", time.Millisecond, errors.New("boom"))
	m.RecordCacheEviction()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("filtered_ruptures", "local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("location_ruptures", "remote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("mfd")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvictions))
	assert.Equal(t, 2, testutil.CollectAndCount(m.cacheComputes))
}

func TestMetrics_RecordResolve(t *testing.T) {
	m := newTestMetrics()

	m.RecordResolve("internal", "locations", time.Millisecond, nil)
	m.RecordResolve("external", "faults", time.Millisecond, errors.New("lookup down"))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.resolveErrors.WithLabelValues("internal", "locations")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolveErrors.WithLabelValues("external", "faults")))
}

func TestMetrics_QueryErrorsAndHealth(t *testing.T) {
	m := newTestMetrics()

	m.RecordQueryError("EMPTY_RESULT")
	m.SetHealthStatus(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queryErrors.WithLabelValues("EMPTY_RESULT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.healthStatus))

	m.SetHealthStatus(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.healthStatus))
}

func TestMetricsMiddleware(t *testing.T) {
	m := newTestMetrics()

	handler := MetricsMiddleware(m, func(*http.Request) string { return "/v1/ruptures/{id}" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			w.Write([]byte("OK"))
		}))

	req := httptest.NewRequest(http.MethodGet, "/v1/ruptures/7", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/v1/ruptures/{id}", "418")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requestsInFlight))
}

func TestMetrics_Handler(t *testing.T) {
	m := newTestMetrics()
	m.RecordQueryError("TOO_MANY_RESULTS")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `solvis_query_errors_total{code="TOO_MANY_RESULTS"} 1`)
}
