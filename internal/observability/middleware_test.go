package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestModule(t *testing.T) (*Module, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := newModule("test", reader)
	if err != nil {
		t.Fatalf("newModule() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m, reader
}

// sumByRoute collects the named int64 counter and returns its value keyed by
// the "route" attribute.
func sumByRoute(t *testing.T, reader *sdkmetric.ManualReader, name string) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != name {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s has unexpected data type %T", name, md.Data)
			}
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("route")
				out[route.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestHTTPMetrics_RecordsMatchedRoute(t *testing.T) {
	m, reader := newTestModule(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := HTTPMetrics(m.Metrics())(mux)

	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	}

	totals := sumByRoute(t, reader, "http.request.total")
	if totals["GET /health"] != 3 {
		t.Errorf("http.request.total[GET /health] = %d, want 3 (all: %v)", totals["GET /health"], totals)
	}
	if errs := sumByRoute(t, reader, "http.request.errors"); len(errs) != 0 {
		t.Errorf("expected no error datapoints, got %v", errs)
	}
}

func TestHTTPMetrics_CountsErrorsForUnmatchedRoutes(t *testing.T) {
	m, reader := newTestModule(t)

	handler := HTTPMetrics(m.Metrics())(http.NewServeMux())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	errs := sumByRoute(t, reader, "http.request.errors")
	if errs["unmatched"] != 1 {
		t.Errorf("http.request.errors[unmatched] = %d, want 1 (all: %v)", errs["unmatched"], errs)
	}
}

func TestHTTPMetrics_NilMetricsPassesThrough(t *testing.T) {
	called := false
	handler := HTTPMetrics(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Error("expected wrapped handler to be called")
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestStatusResponseWriter_FirstWriteHeaderWins(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &statusResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	_, _ = w.Write([]byte("body"))
	w.WriteHeader(http.StatusInternalServerError)

	if w.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want %d after implicit 200", w.statusCode, http.StatusOK)
	}
}
