package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weatherlink-dashboard/internal/catalog"
	"github.com/kjstillabower/weatherlink-dashboard/internal/charts"
	"github.com/kjstillabower/weatherlink-dashboard/internal/client"
	"github.com/kjstillabower/weatherlink-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weatherlink-dashboard/internal/observability"
	"github.com/kjstillabower/weatherlink-dashboard/internal/query"
	"github.com/kjstillabower/weatherlink-dashboard/internal/service"
	"github.com/kjstillabower/weatherlink-dashboard/internal/table"
	"github.com/kjstillabower/weatherlink-dashboard/internal/traffic"
	"github.com/kjstillabower/weatherlink-dashboard/internal/views"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
	// CredentialCheckTTL is how long a WeatherLink credential check is reused
	// before /health calls upstream again. Zero means 30s.
	CredentialCheckTTL time.Duration
}

// Options configures request parsing and chart rendering.
type Options struct {
	Location    *time.Location // dashboard zone for dates; default time.Local
	Limits      query.Limits
	ChartWidth  int
	ChartHeight int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	dashboard        *service.DashboardService
	client           client.StationClient
	healthConfig     *HealthConfig
	logger           *zap.Logger
	loc              *time.Location
	limits           query.Limits
	chartWidth       int
	chartHeight      int
	now              func() time.Time
	healthStatusMu   sync.Mutex
	healthStatusPrev string

	credMu        sync.Mutex
	credCheckedAt time.Time
	credErr       error
}

// NewHandler returns a new Handler.
func NewHandler(
	dashboard *service.DashboardService,
	client client.StationClient,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	opts Options,
) *Handler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Handler{
		dashboard:    dashboard,
		client:       client,
		healthConfig: healthConfig,
		logger:       logger,
		loc:          opts.Location,
		limits:       opts.Limits,
		chartWidth:   opts.ChartWidth,
		chartHeight:  opts.ChartHeight,
		now:          time.Now,
	}
}

// parseParams collects the selector values of r and checks the family
// belongs to the variant.
func (h *Handler) parseParams(r *http.Request) (query.Params, error) {
	profile := h.dashboard.Profile()
	p, err := query.Parse(r.URL.Query(), h.now(), h.loc, profile.DefaultFamily(), h.limits)
	if err != nil {
		return query.Params{}, err
	}
	if _, err := profile.Family(p.Family); err != nil {
		return query.Params{}, err
	}
	return p, nil
}

// defaultParams are the selector values of an empty query string.
func (h *Handler) defaultParams() query.Params {
	p, _ := query.Parse(url.Values{}, h.now(), h.loc, h.dashboard.Profile().DefaultFamily(), h.limits)
	return p
}

// GetDashboard handles GET /. The page is always rendered; bad parameters
// answer 400 and an unavailable directory 503, each with the error notice.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	labels := h.dashboard.Labels()
	page := views.Page{
		Labels:   labels,
		Profile:  h.dashboard.Profile(),
		MaxHours: h.limits.MaxHours,
	}
	status := http.StatusOK

	stations, err := h.dashboard.Stations(r.Context())
	if err != nil {
		logFromRequest(r, h.logger).Warn("station directory unavailable", zap.Error(err))
		page.Params = h.defaultParams()
		page.Err = errors.New(labels.Text("unavailable"))
		h.renderDashboard(w, r, http.StatusServiceUnavailable, page)
		return
	}
	page.Stations = service.StationNames(stations)

	p, err := h.parseParams(r)
	if err != nil {
		page.Params = h.defaultParams()
		page.Err = errors.New(fmt.Sprintf(labels.Text("invalid_query"), err.Error()))
		h.renderDashboard(w, r, http.StatusBadRequest, page)
		return
	}
	page.Params = p

	if p.Selected() {
		res, err := h.dashboard.Query(r.Context(), p)
		switch {
		case err == nil:
			page.Result = &res
		case errors.Is(err, service.ErrDirectoryUnavailable):
			status = http.StatusServiceUnavailable
			page.Err = errors.New(labels.Text("unavailable"))
		default:
			status = http.StatusBadRequest
			page.Err = errors.New(fmt.Sprintf(labels.Text("invalid_query"), err.Error()))
		}
	}
	h.renderDashboard(w, r, status, page)
}

func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, page views.Page) {
	data, err := views.NewDashboardData(page)
	if err != nil {
		logFromRequest(r, h.logger).Error("dashboard view model", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, data); err != nil {
		logFromRequest(r, h.logger).Error("dashboard render", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// GetStations handles GET /api/stations.
func (h *Handler) GetStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.dashboard.Stations(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stations": stations,
		"count":    len(stations),
	})
}

type familyView struct {
	Name              string   `json:"name"`
	Label             string   `json:"label"`
	SensorType        int      `json:"sensorType"`
	DataStructureType int      `json:"dataStructureType"`
	Columns           []string `json:"columns"`
	Variables         []string `json:"variables"`
}

// GetFamilies handles GET /api/families: the families of the variant.
func (h *Handler) GetFamilies(w http.ResponseWriter, r *http.Request) {
	profile := h.dashboard.Profile()
	labels := h.dashboard.Labels()
	families := make([]familyView, 0, len(profile.Families))
	for _, name := range profile.Families {
		cfg, err := profile.Family(name)
		if err != nil {
			continue
		}
		families = append(families, familyView{
			Name:              name,
			Label:             labels.Family(name),
			SensorType:        cfg.SensorType,
			DataStructureType: cfg.DataStructureType,
			Columns:           cfg.ColumnNames(),
			Variables:         cfg.Variables,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"variant":  profile.Name,
		"default":  profile.DefaultFamily(),
		"families": families,
	})
}

// runQuery parses r and runs the pipeline, writing the error response itself.
// ok is false when a response was already written.
func (h *Handler) runQuery(w http.ResponseWriter, r *http.Request) (res service.Result, ok bool) {
	p, err := h.parseParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return service.Result{}, false
	}
	if !p.Selected() {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", h.dashboard.Labels().Text("select_station"))
		return service.Result{}, false
	}
	res, err = h.dashboard.Query(r.Context(), p)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownFamily) {
			writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
			return service.Result{}, false
		}
		writeServiceError(w, r, err)
		return service.Result{}, false
	}
	return res, true
}

type dataResponse struct {
	Family  string         `json:"family"`
	Start   time.Time      `json:"start"`
	End     time.Time      `json:"end"`
	Columns []string       `json:"columns"`
	Records []table.Record `json:"records"`
	Missing []string       `json:"missing"`
	Skipped []string       `json:"skipped"`
	Unknown []string       `json:"unknown"`
	Failed  []string       `json:"failed"`
}

// GetData handles GET /api/data: the aggregated table as JSON records.
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	res, ok := h.runQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{
		Family:  res.Family.Family,
		Start:   res.Params.Start,
		End:     res.Params.End,
		Columns: res.Table.Header(),
		Records: res.Table.Records(),
		Missing: nonNil(res.Missing),
		Skipped: nonNil(res.Skipped),
		Unknown: nonNil(res.Unknown),
		Failed:  nonNil(res.Failed),
	})
}

// GetExportCSV handles GET /export.csv.
func (h *Handler) GetExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", "text/csv; charset=utf-8", func(buf *bytes.Buffer, res service.Result) error {
		return res.Table.WriteCSV(buf)
	})
}

// GetExportXLSX handles GET /export.xlsx.
func (h *Handler) GetExportXLSX(w http.ResponseWriter, r *http.Request) {
	labels := h.dashboard.Labels()
	h.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", func(buf *bytes.Buffer, res service.Result) error {
		return res.Table.WriteXLSX(buf, table.DefaultSheet, labels.Field)
	})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, format, contentType string, write func(*bytes.Buffer, service.Result) error) {
	res, ok := h.runQuery(w, r)
	if !ok {
		return
	}
	if res.NoData() {
		writeError(w, r, http.StatusNotFound, "NO_DATA", "no data for the selected stations")
		return
	}
	var buf bytes.Buffer
	if err := write(&buf, res); err != nil {
		logFromRequest(r, h.logger).Error("export failed", zap.String("format", format), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "EXPORT_FAILED", "Unable to build export")
		return
	}
	observability.ExportsTotal.WithLabelValues(format).Inc()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(res, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// exportFilename is datos_{family}_{yyyymmdd_hhmm}.{ext}, in the dashboard zone.
func exportFilename(res service.Result, ext string) string {
	return fmt.Sprintf("datos_%s_%s.%s", res.Family.Family, res.Params.End.Format("20060102_1504"), ext)
}

// GetChartPNG handles GET /charts/{variable}.png.
func (h *Handler) GetChartPNG(w http.ResponseWriter, r *http.Request) {
	variable := mux.Vars(r)["variable"]
	res, ok := h.runQuery(w, r)
	if !ok {
		return
	}
	c, err := charts.Find(res.Charts, variable)
	if err != nil {
		observability.ChartRendersTotal.WithLabelValues("not_found").Inc()
		writeError(w, r, http.StatusNotFound, "UNKNOWN_VARIABLE", err.Error())
		return
	}
	var buf bytes.Buffer
	if err := charts.RenderPNG(&buf, c, h.chartWidth, h.chartHeight); err != nil {
		if errors.Is(err, charts.ErrNotEnoughData) {
			observability.ChartRendersTotal.WithLabelValues("not_enough_data").Inc()
			writeError(w, r, http.StatusUnprocessableEntity, "NOT_ENOUGH_DATA", err.Error())
			return
		}
		observability.ChartRendersTotal.WithLabelValues("error").Inc()
		logFromRequest(r, h.logger).Error("chart render failed", zap.String("variable", variable), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render chart")
		return
	}
	observability.ChartRendersTotal.WithLabelValues("success").Inc()
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.reason == "credentials_invalid" || result.reason == "error_rate_breach" {
		checks["weatherlink"] = "unhealthy"
	} else {
		checks["weatherlink"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"variant":   h.dashboard.Profile().Name,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > credentials invalid > degraded > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if !lifecycle.IsReady() {
		return healthResult{"starting", http.StatusServiceUnavailable, "directory_not_loaded"}
	}
	if err := h.checkCredentials(ctx); err != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "credentials_invalid"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(h.healthConfig.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// checkCredentials returns the last credential check, calling WeatherLink at
// most once per CredentialCheckTTL. A check cut short by the caller is not kept.
func (h *Handler) checkCredentials(ctx context.Context) error {
	ttl := 30 * time.Second
	if h.healthConfig != nil && h.healthConfig.CredentialCheckTTL > 0 {
		ttl = h.healthConfig.CredentialCheckTTL
	}

	h.credMu.Lock()
	defer h.credMu.Unlock()
	now := h.now()
	if !h.credCheckedAt.IsZero() && now.Sub(h.credCheckedAt) < ttl {
		return h.credErr
	}
	err := h.client.ValidateCredentials(ctx)
	if errors.Is(err, context.Canceled) {
		return err
	}
	h.credCheckedAt, h.credErr = now, err
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// logFromRequest returns the request-scoped logger set by CorrelationIDMiddleware, or fallback.
func logFromRequest(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return zap.NewNop()
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		corrID = v
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError writes a 503 for upstream failures and logs the cause at DEBUG.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch station data")
	logFromRequest(r, nil).Debug("upstream error",
		zap.String("category", string(client.CategorizeError(err))),
		zap.Error(err))
}
