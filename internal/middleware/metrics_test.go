package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/hiring-pipeline/hiring-pipeline/internal/telemetry"
)

// requestCount reads http_requests_total for one label combination.
func requestCount(t *testing.T, method, path, status string) float64 {
	t.Helper()
	counter, err := telemetry.HTTPRequestsTotal.GetMetricWithLabelValues(method, path, status)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	return testutil.ToFloat64(counter)
}

// durationSamples reads the observation count of http_request_duration_seconds
// for one method/path series.
func durationSamples(t *testing.T, method, path string) uint64 {
	t.Helper()
	obs, err := telemetry.HTTPRequestDuration.GetMetricWithLabelValues(method, path)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var dm dto.Metric
	if err := obs.(prometheus.Metric).Write(&dm); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return dm.GetHistogram().GetSampleCount()
}

// pathLabels returns every distinct path label currently held by
// http_requests_total.
func pathLabels(t *testing.T) []string {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	telemetry.HTTPRequestsTotal.Collect(ch)
	close(ch)

	var paths []string
	for m := range ch {
		var dm dto.Metric
		if err := m.Write(&dm); err != nil {
			continue
		}
		for _, lp := range dm.GetLabel() {
			if lp.GetName() == "path" {
				paths = append(paths, lp.GetValue())
			}
		}
	}
	return paths
}

func pipelineRouter() *gin.Engine {
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/api/v1/candidates/:id", func(c *gin.Context) {
		if c.Param("id") == "0" {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func serve(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// MetricsMiddleware tests
// ---------------------------------------------------------------------------

func TestMetricsMiddleware_CountsByRouteTemplate(t *testing.T) {
	const route = "/api/v1/candidates/:id"
	before := requestCount(t, "GET", route, "200")

	r := pipelineRouter()
	serve(r, http.MethodGet, "/api/v1/candidates/42")
	serve(r, http.MethodGet, "/api/v1/candidates/77")

	if got := requestCount(t, "GET", route, "200") - before; got != 2 {
		t.Errorf("http_requests_total delta = %v, want 2", got)
	}

	for _, p := range pathLabels(t) {
		if p == "/api/v1/candidates/42" || p == "/api/v1/candidates/77" {
			t.Errorf("raw URL %q leaked into the path label; want only the route template", p)
		}
	}
}

func TestMetricsMiddleware_CountsErrorStatusSeparately(t *testing.T) {
	const route = "/api/v1/candidates/:id"
	okBefore := requestCount(t, "GET", route, "200")
	errBefore := requestCount(t, "GET", route, "500")

	r := pipelineRouter()
	serve(r, http.MethodGet, "/api/v1/candidates/0")

	if got := requestCount(t, "GET", route, "500") - errBefore; got != 1 {
		t.Errorf("status=500 delta = %v, want 1", got)
	}
	if got := requestCount(t, "GET", route, "200") - okBefore; got != 0 {
		t.Errorf("status=200 delta = %v, want 0", got)
	}
}

func TestMetricsMiddleware_ObservesDuration(t *testing.T) {
	const route = "/api/v1/candidates/:id"
	before := durationSamples(t, "GET", route)

	r := pipelineRouter()
	serve(r, http.MethodGet, "/api/v1/candidates/5")

	if after := durationSamples(t, "GET", route); after != before+1 {
		t.Errorf("duration sample count = %d, want %d", after, before+1)
	}
}

func TestMetricsMiddleware_UnmatchedRouteUsesSentinel(t *testing.T) {
	before := requestCount(t, "GET", "<no-route>", "404")

	r := pipelineRouter()
	serve(r, http.MethodGet, "/definitely/not/registered")

	if got := requestCount(t, "GET", "<no-route>", "404") - before; got != 1 {
		t.Errorf("<no-route> delta = %v, want 1", got)
	}
}
