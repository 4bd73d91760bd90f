package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/weatherlink-dashboard/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// WeatherLink API call rate by endpoint (stations, historic). Watch for: error vs success ratio.
	WeatherLinkCallsTotal *prometheus.CounterVec

	// WeatherLink latency per call. Historic pages of busy stations are the slow tail.
	WeatherLinkDuration *prometheus.HistogramVec

	// Retry attempts against WeatherLink. Watch for: high retries = unstable upstream.
	WeatherLinkRetriesTotal *prometheus.CounterVec

	// Cache hits and misses by cache type (stations, historic).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Cache backend failures. The dashboard keeps serving from upstream on these.
	CacheErrorsTotal *prometheus.CounterVec

	// Dashboard queries by sensor family (allow-list; others go to "other").
	DashboardQueriesTotal *prometheus.CounterVec

	// Per-station fetch outcomes: success, empty, skipped, unknown, error.
	StationFetchesTotal *prometheus.CounterVec

	// CSV and Excel downloads.
	ExportsTotal *prometheus.CounterVec

	// Server-side PNG chart renders by result.
	ChartRendersTotal *prometheus.CounterVec

	// Station directory refreshes by result (ok, error).
	DirectoryRefreshesTotal *prometheus.CounterVec

	// Duration of a station directory refresh.
	DirectoryRefreshDurationSeconds prometheus.Histogram

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per component: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per component and target state.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	trackedFamiliesMu sync.RWMutex
	trackedFamilies   map[string]struct{}

	trafficGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherLinkCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherlinkCallsTotal",
			Help: "Total number of WeatherLink API calls",
		},
		[]string{"endpoint", "status"},
	)
	WeatherLinkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherlinkDurationSeconds",
			Help:    "WeatherLink API latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	WeatherLinkRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherlinkRetriesTotal",
			Help: "Total number of retry attempts for WeatherLink calls",
		},
		[]string{"endpoint"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits",
		},
		[]string{"cacheType"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Total number of cache backend errors",
		},
		[]string{"op"},
	)
	DashboardQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboardQueriesTotal",
			Help: "Dashboard queries by sensor family (allow-list; others use family=other)",
		},
		[]string{"family"},
	)
	StationFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationFetchesTotal",
			Help: "Per-station history fetches by outcome",
		},
		[]string{"outcome"},
	)
	ExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exportsTotal",
			Help: "Table downloads by format",
		},
		[]string{"format"},
	)
	ChartRendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartRendersTotal",
			Help: "Server-side chart renders by result",
		},
		[]string{"result"},
	)
	DirectoryRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directoryRefreshesTotal",
			Help: "Station directory refreshes by result",
		},
		[]string{"result"},
	)
	DirectoryRefreshDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "directoryRefreshDurationSeconds",
			Help:    "Station directory refresh latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "to"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherLinkCallsTotal, WeatherLinkDuration, WeatherLinkRetriesTotal,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal,
		DashboardQueriesTotal, StationFetchesTotal,
		ExportsTotal, ChartRendersTotal,
		DirectoryRefreshesTotal, DirectoryRefreshDurationSeconds,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
	)
}

// RegisterTrafficGauges registers sliding-window gauges over the traffic tracker.
// Call from main after config load with the health error-rate window.
func RegisterTrafficGauges(window time.Duration) {
	trafficGaugesOnce.Do(func() {
		gauge := func(name, help string, o traffic.Outcome) prometheus.Collector {
			return prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{Name: name, Help: help},
				func() float64 { return float64(traffic.Count(o, window)) },
			)
		}
		registry.MustRegister(
			gauge("stationFetchErrorsInWindow", "Failed station fetches in sliding window", traffic.OutcomeError),
			gauge("stationFetchEmptyInWindow", "Station fetches without data in sliding window", traffic.OutcomeEmpty),
			gauge("rateLimitRejectsInWindow", "429 responses in sliding window", traffic.OutcomeDenied),
		)
	})
}

// SetTrackedFamilies sets the allow-list for family metrics. Other values increment "other".
func SetTrackedFamilies(families []string) {
	trackedFamiliesMu.Lock()
	defer trackedFamiliesMu.Unlock()
	trackedFamilies = make(map[string]struct{}, len(families))
	for _, f := range families {
		trackedFamilies[normalizeLabel(f)] = struct{}{}
	}
}

// RecordDashboardQuery records a dashboard query for the given family.
func RecordDashboardQuery(family string) {
	f := normalizeLabel(family)
	trackedFamiliesMu.RLock()
	_, ok := trackedFamilies[f] // nil map read is safe in Go
	trackedFamiliesMu.RUnlock()
	if !ok {
		f = "other"
	}
	DashboardQueriesTotal.WithLabelValues(f).Inc()
}

// RecordCircuitTransition updates the breaker gauges. Use as circuitbreaker.Config.OnStateChange.
func RecordCircuitTransition(component string, to int, toName string) {
	CircuitBreakerState.WithLabelValues(component).Set(float64(to))
	CircuitBreakerTransitionsTotal.WithLabelValues(component, toName).Inc()
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
