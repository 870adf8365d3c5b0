package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMiddleware(t *testing.T) {
	m, reader := newTestMetrics(t)
	exp := useTestTracer(t)

	var seen string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	h := Middleware(m)(mux)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	const wantID = "4bf92f3577b34da6a3ce929d0e0e4736"
	if seen != wantID {
		t.Errorf("handler trace id = %q, want %q", seen, wantID)
	}
	if got := rec.Header().Get(HeaderTraceID); got != wantID {
		t.Errorf("%s = %q, want %q", HeaderTraceID, got, wantID)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "GET /readyz" {
		t.Errorf("span name = %q, want the mux pattern", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want Error for a 503", spans[0].Status.Code)
	}
	var status int64
	for _, a := range spans[0].Attributes {
		if a.Key == "http.response.status_code" {
			status = a.Value.AsInt64()
		}
	}
	if status != http.StatusServiceUnavailable {
		t.Errorf("span status attribute = %d, want 503", status)
	}

	met := findMetric(collect(t, reader), "irum.http.request.duration")
	if met == nil {
		t.Fatal("duration metric not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("duration points = %+v, want one sample", hist.DataPoints)
	}
	if route, _ := hist.DataPoints[0].Attributes.Value(attribute.Key("route")); route.AsString() != "GET /readyz" {
		t.Errorf("route attribute = %q", route.AsString())
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	m, reader := newTestMetrics(t)
	exp := useTestTracer(t)

	h := Middleware(m)(http.NewServeMux())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/no/such/path", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if spans := exp.GetSpans(); len(spans) != 1 || spans[0].Name != routeUnmatched {
		t.Errorf("spans = %+v, want one %q span", spans, routeUnmatched)
	}
	hist := findMetric(collect(t, reader), "irum.http.request.duration").Data.(metricdata.Histogram[float64])
	if route, _ := hist.DataPoints[0].Attributes.Value(attribute.Key("route")); route.AsString() != routeUnmatched {
		t.Errorf("route attribute = %q, want %q", route.AsString(), routeUnmatched)
	}
}
