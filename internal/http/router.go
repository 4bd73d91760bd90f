package http

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weatherlink-dashboard/internal/observability"
)

// RouterConfig holds the middleware settings of NewRouter.
type RouterConfig struct {
	Limiter        *rate.Limiter // nil disables rate limiting
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// NewRouter wires the dashboard, API, export, chart, health and metrics routes.
// Rate limit and timeout apply to every route that calls upstream; /health and
// /metrics only get correlation ids and metrics.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(CORSMiddleware(cfg.CORSOrigins))
	api.Use(RateLimitMiddleware(cfg.Limiter))
	api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/stations", h.GetStations).Methods("GET", "OPTIONS")
	api.HandleFunc("/families", h.GetFamilies).Methods("GET", "OPTIONS")
	api.HandleFunc("/data", h.GetData).Methods("GET", "OPTIONS")

	pages := router.NewRoute().Subrouter()
	pages.Use(RateLimitMiddleware(cfg.Limiter))
	pages.Use(TimeoutMiddleware(cfg.RequestTimeout))
	pages.HandleFunc("/", h.GetDashboard).Methods("GET")
	pages.HandleFunc("/export.csv", h.GetExportCSV).Methods("GET")
	pages.HandleFunc("/export.xlsx", h.GetExportXLSX).Methods("GET")
	pages.HandleFunc("/charts/{variable}.png", h.GetChartPNG).Methods("GET")
	return router
}
