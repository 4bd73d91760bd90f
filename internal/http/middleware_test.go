package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weatherlink-dashboard/internal/observability"
	"github.com/kjstillabower/weatherlink-dashboard/internal/traffic"
)

func TestMiddleware_CorrelationIDGenerated(t *testing.T) {
	_, router := newTestHandler(t, newAirClient(), nil, RouterConfig{})

	w := doGet(router, "/api/families")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(w.Header().Get("X-Correlation-ID")) != 36 {
		t.Errorf("X-Correlation-ID = %q, want a uuid", w.Header().Get("X-Correlation-ID"))
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	_, router := newTestHandler(t, newAirClient(), nil, RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
	if e := decodeError(t, w); e["requestId"] != "client-provided-id" {
		t.Errorf("requestId = %q", e["requestId"])
	}
}

func TestMiddleware_MetricsUseRouteTemplate(t *testing.T) {
	_, router := newTestHandler(t, newAirClient(), nil, RouterConfig{})
	counter := observability.HTTPRequestsTotal.WithLabelValues("GET", "/charts/{variable}.png", "4xx")
	before := testutil.ToFloat64(counter)

	doGet(router, "/charts/anything.png")
	doGet(router, "/charts/other.png")

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("requests for chart template = %v, want 2", got)
	}
}

func TestMiddleware_RateLimit(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	_, router := newTestHandler(t, newAirClient(), nil, RouterConfig{Limiter: limiter})
	before := testutil.ToFloat64(observability.RateLimitDeniedTotal)

	first := doGet(router, "/api/families")
	second := doGet(router, "/api/families")

	if first.Code != http.StatusOK {
		t.Errorf("first status = %d, want 200", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	if e := decodeError(t, second); e["code"] != "RATE_LIMITED" {
		t.Errorf("code = %q", e["code"])
	}
	if got := testutil.ToFloat64(observability.RateLimitDeniedTotal) - before; got != 1 {
		t.Errorf("RateLimitDeniedTotal delta = %v, want 1", got)
	}
	if got := traffic.Count(traffic.OutcomeDenied, time.Minute); got != 1 {
		t.Errorf("denied in window = %d, want 1", got)
	}

	if w := doGet(router, "/health"); w.Code == http.StatusTooManyRequests {
		t.Error("/health must not be rate limited")
	}
}

func TestMiddleware_Timeout(t *testing.T) {
	mc := newAirClient()
	mc.block = make(chan struct{})
	defer close(mc.block)
	_, router := newTestHandler(t, mc, nil, RouterConfig{RequestTimeout: 20 * time.Millisecond})

	w := doGet(router, "/api/data?station=Parque+Norte")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body dataResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Failed) != 1 || body.Failed[0] != "Parque Norte" {
		t.Errorf("failed = %v, want the timed out station", body.Failed)
	}
}

func TestMiddleware_CORSPreflight(t *testing.T) {
	_, router := newTestHandler(t, newAirClient(), nil, RouterConfig{CORSOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/stations", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	w = doGet(router, "/api/stations")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("no Origin header should get no CORS header, got %q", got)
	}
}

func TestMiddleware_InFlightReturnsToZero(t *testing.T) {
	_, router := newTestHandler(t, newAirClient(), nil, RouterConfig{})

	doGet(router, "/api/families")

	if got := InFlightCount(); got != 0 {
		t.Errorf("InFlightCount() = %d, want 0", got)
	}
}
