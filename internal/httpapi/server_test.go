package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GNS-Science/solvis-query/internal/cache"
	"github.com/GNS-Science/solvis-query/internal/catalogue/cataloguetest"
	"github.com/GNS-Science/solvis-query/internal/config"
	"github.com/GNS-Science/solvis-query/internal/health"
	"github.com/GNS-Science/solvis-query/internal/location"
	"github.com/GNS-Science/solvis-query/internal/lookup"
	"github.com/GNS-Science/solvis-query/internal/metrics"
	"github.com/GNS-Science/solvis-query/internal/precompute"
	"github.com/GNS-Science/solvis-query/internal/query"
	"github.com/GNS-Science/solvis-query/internal/resolver"
	"github.com/GNS-Science/solvis-query/internal/validation"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second},
	}
}

func newTestServer(t *testing.T, sectionLimit int) http.Handler {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	locs, err := location.Default()
	require.NoError(t, err)
	catalogues := cataloguetest.Registry()

	store := lookup.NewMemoryStore()
	sol, err := cataloguetest.Composite().Solution("CRU")
	require.NoError(t, err)
	_, err = precompute.NewJob(locs.All(), store, precompute.Options{RadiiKm: []int{10}}, logger).Run(ctx, sol)
	require.NoError(t, err)

	memo := cache.NewMemo()
	res := resolver.New(locs, resolver.NewInternalBackend(0), memo, nil, logger)
	internal := query.NewService(catalogues, locs, res, memo, validation.NewValidator(), sectionLimit, logger)
	services := map[string]*query.Service{
		resolver.BackendInternal: internal,
		resolver.BackendExternal: internal.WithBackend(resolver.NewExternalBackend(store)),
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry(reg, reg)
	errorHandler := NewErrorHandler(m, logger)
	handlers, err := NewHandlers(services, resolver.BackendInternal, errorHandler, logger)
	require.NoError(t, err)

	srv := NewServer(testConfig(), handlers, errorHandler, health.NewHealthChecker(m, logger), m, logger)
	srv.SetupRoutes()
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func masterton() map[string]interface{} {
	return map[string]interface{}{
		"model_id":              cataloguetest.ModelID,
		"fault_system":          "CRU",
		"corupture_fault_names": []string{"Masterton"},
		"minimum_mag":           7.2,
		"minimum_rate":          1e-9,
		"filter_set_options": map[string]string{
			"multiple_locations":   "INTERSECTION",
			"multiple_faults":      "INTERSECTION",
			"locations_and_faults": "INTERSECTION",
		},
	}
}

func TestRuptureSections(t *testing.T) {
	h := newTestServer(t, 0)

	for _, path := range []string{"/v1/rupture-sections", "/v1/rupture-sections?backend=external"} {
		t.Run(path, func(t *testing.T) {
			w := do(t, h, http.MethodPost, path, masterton())
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

			body := decodeBody(t, w)
			assert.Equal(t, 2.0, body["rupture_count"])
			assert.Equal(t, 4.0, body["section_count"])
			assert.Equal(t, 7.8, body["min_magnitude"])
			assert.Equal(t, 8.0, body["max_magnitude"])

			traces := body["fault_traces"].(map[string]interface{})
			assert.Equal(t, "FeatureCollection", traces["type"])
			assert.Len(t, traces["features"], 4)

			echo := body["filter_arguments"].(map[string]interface{})
			assert.Equal(t, []interface{}{"Masterton"}, echo["corupture_fault_names"])
		})
	}
}

func TestRuptureSections_Errors(t *testing.T) {
	h := newTestServer(t, 0)

	unknownFault := masterton()
	unknownFault["corupture_fault_names"] = []string{"Masterton", "Nowhere"}

	empty := masterton()
	empty["minimum_mag"] = 8.5

	hik := masterton()
	hik["fault_system"] = "HIK"
	hik["corupture_fault_names"] = []string{"Hikurangi"}

	unknownModel := masterton()
	unknownModel["model_id"] = "NOPE"

	// only the 10km radius is precomputed for the external backend
	wlg20 := masterton()
	wlg20["location_ids"] = []string{"WLG"}
	wlg20["radius_km"] = 20

	tests := []struct {
		name     string
		path     string
		body     interface{}
		wantCode int
		wantErr  string
		wantMsg  string
	}{
		{"unknown fault", "/v1/rupture-sections", unknownFault, http.StatusBadRequest, "INVALID_FAULT_NAME", ""},
		{"empty", "/v1/rupture-sections", empty, http.StatusNotFound, "EMPTY_RESULT", "No fault sections satisfy the filter."},
		{"ambiguous rupture set", "/v1/rupture-sections?backend=external", hik, http.StatusPreconditionFailed, "AMBIGUOUS_RUPTURE_SET", ""},
		{"unknown model", "/v1/rupture-sections", unknownModel, http.StatusNotFound, "UNKNOWN_MODEL", ""},
		{"unknown backend", "/v1/rupture-sections?backend=remote", masterton(), http.StatusBadRequest, ErrorCodeInvalidRequest, ""},
		{"malformed body", "/v1/rupture-sections", "{not json", http.StatusBadRequest, ErrorCodeInvalidRequest, ""},
		{"unknown field", "/v1/rupture-sections", `{"model_id":"TEST_MODEL","fault_system":"CRU","radius":5}`, http.StatusBadRequest, ErrorCodeInvalidRequest, ""},
		{"bad set operation", "/v1/rupture-sections", `{"model_id":"TEST_MODEL","fault_system":"CRU","filter_set_options":{"multiple_faults":"XOR"}}`, http.StatusBadRequest, "UNSUPPORTED_SET_OPERATION", "unsupported set operation: XOR"},
		{"bad numeric set operation", "/v1/ruptures", `{"model_id":"TEST_MODEL","fault_system":"CRU","filter_set_options":{"locations_and_faults":7}}`, http.StatusBadRequest, "UNSUPPORTED_SET_OPERATION", "unsupported set operation: 7"},
		{"missing lookup record", "/v1/rupture-sections?backend=external", wlg20, http.StatusServiceUnavailable, "LOOKUP_FAILED", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.wantErr, resp.ErrorCode)
			assert.NotEmpty(t, resp.RequestID)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Message)
			}
		})
	}
}

func TestRuptureSections_TooMany(t *testing.T) {
	h := newTestServer(t, 3)

	w := do(t, h, http.MethodPost, "/v1/rupture-sections", masterton())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "TOO_MANY_RESULTS", resp.ErrorCode)
	assert.Equal(t, "Too many fault sections satisfy the filter, please try more selective values.", resp.Message)
	assert.Equal(t, 3.0, resp.Details["limit"])
	assert.Equal(t, 4.0, resp.Details["count"])
}

func TestFilterRuptures_Pages(t *testing.T) {
	h := newTestServer(t, 0)

	req := masterton()
	req["first"] = 1
	req["sortby"] = []map[string]interface{}{{"attribute": "magnitude", "ascending": false}}

	w := do(t, h, http.MethodPost, "/v1/ruptures", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, 2.0, body["total_count"])
	edges := body["edges"].([]interface{})
	require.Len(t, edges, 1)
	node := edges[0].(map[string]interface{})["node"].(map[string]interface{})
	assert.Equal(t, 8.0, node["rupture_index"])
	pageInfo := body["page_info"].(map[string]interface{})
	assert.Equal(t, true, pageInfo["has_next_page"])

	req["after"] = pageInfo["end_cursor"]
	w = do(t, h, http.MethodPost, "/v1/ruptures", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decodeBody(t, w)
	edges = body["edges"].([]interface{})
	require.Len(t, edges, 1)
	node = edges[0].(map[string]interface{})["node"].(map[string]interface{})
	assert.Equal(t, 2.0, node["rupture_index"])
	assert.Equal(t, false, body["page_info"].(map[string]interface{})["has_next_page"])

	req["after"] = "garbage"
	w = do(t, h, http.MethodPost, "/v1/ruptures", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CURSOR")

	empty := masterton()
	empty["minimum_mag"] = 8.5
	w = do(t, h, http.MethodPost, "/v1/ruptures", empty)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No ruptures satisfy the filter.")
}

func TestMFD(t *testing.T) {
	h := newTestServer(t, 0)

	w := do(t, h, http.MethodPost, "/v1/mfd", masterton())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp MFDResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, cataloguetest.ModelID, resp.ModelID)
	assert.Len(t, resp.Bins, 30)
	assert.Equal(t, 6.85, resp.Bins[0].Bin)
}

func TestCatalogueRoutes(t *testing.T) {
	h := newTestServer(t, 0)

	w := do(t, h, http.MethodGet, "/v1/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":["TEST_MODEL"]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/v1/backends", nil)
	assert.JSONEq(t, `{"items":["external","internal"]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/v1/models/TEST_MODEL/fault-systems", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":["CRU","HIK"]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/v1/models/TEST_MODEL/fault-systems/CRU/parent-faults", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":["Alpine Jacks to Kaniere","Masterton","Ohariu","Wellington Hutt Valley"]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/v1/models/TEST_MODEL/fault-systems/CRU/ruptures/2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "CRU:2", body["id"])
	assert.Equal(t, 7.8, body["magnitude"])
	assert.Len(t, body["fault_traces"].(map[string]interface{})["features"], 3)

	w = do(t, h, http.MethodGet, "/v1/models/TEST_MODEL/fault-systems/CRU/ruptures/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "UNKNOWN_RUPTURE")

	w = do(t, h, http.MethodGet, "/v1/models/TEST_MODEL/fault-systems/PUY/parent-faults", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "UNKNOWN_FAULT_SYSTEM")
}

func TestLocationRoutes(t *testing.T) {
	h := newTestServer(t, 0)

	w := do(t, h, http.MethodGet, "/v1/locations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var locs LocationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &locs))
	assert.NotEmpty(t, locs.Locations)

	w = do(t, h, http.MethodGet, "/v1/locations/geojson?radius_km=10&location_id=WLG&location_id=MRO", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	body := decodeBody(t, w)
	assert.Len(t, body["features"], 2)

	w = do(t, h, http.MethodGet, "/v1/locations/geojson?radius_km=ten", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/v1/locations/geojson?radius_km=10&location_id=XXX", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "UNKNOWN_LOCATION")
}

func TestHealthAndFallbackRoutes(t *testing.T) {
	h := newTestServer(t, 0)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/ready", nil).Code)

	w := do(t, h, http.MethodGet, "/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), ErrorCodeNotFound)

	w = do(t, h, http.MethodGet, "/v1/ruptures", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestNewHandlers_UnknownDefault(t *testing.T) {
	_, err := NewHandlers(map[string]*query.Service{}, "internal", NewErrorHandler(nil, zap.NewNop()), zap.NewNop())
	assert.Error(t, err)
}

func TestGRPCToHTTPStatus_NonStatusError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GRPCToHTTPStatus(assert.AnError))
	assert.Equal(t, http.StatusOK, GRPCToHTTPStatus(nil))
	assert.Equal(t, ErrorCodeInternalError, GRPCToErrorCode(assert.AnError))
}

func TestHandleError_Deadline(t *testing.T) {
	eh := NewErrorHandler(nil, zap.NewNop())
	w := httptest.NewRecorder()
	eh.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), context.DeadlineExceeded)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), ErrorCodeTimeout)
}
