package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kjstillabower/weatherlink-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weatherlink-dashboard/internal/models"
	"github.com/kjstillabower/weatherlink-dashboard/internal/observability"
)

// StationClient is the upstream surface the dashboard needs.
type StationClient interface {
	GetStations(ctx context.Context) ([]models.Station, error)
	GetHistoric(ctx context.Context, stationID string, start, end time.Time) (models.HistoricResponse, error)
	ValidateCredentials(ctx context.Context) error
}

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrStationNotFound = errors.New("station not found")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidWindow   = errors.New("invalid time window")
)

// MaxHistoricSpan is the longest window one historic request may cover.
const MaxHistoricSpan = 24 * time.Hour

// Signing modes for authenticating requests.
const (
	SigningHeader = "header"
	SigningHMAC   = "hmac"
)

// Options configures a WeatherLinkClient.
type Options struct {
	APIKey         string
	APISecret      string
	BaseURL        string
	Timeout        time.Duration
	Signing        string
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// WeatherLinkClient talks to the WeatherLink v2 REST API.
type WeatherLinkClient struct {
	apiKey         string
	apiSecret      string
	signing        string
	timeout        time.Duration
	http           *resty.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
	now            func() time.Time
}

// NewWeatherLinkClient validates credentials and returns a client. Zero retry
// settings fall back to 3 attempts, 100ms base and 2s max delay.
func NewWeatherLinkClient(opts Options) (*WeatherLinkClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if opts.APISecret == "" {
		return nil, fmt.Errorf("%w: API secret is required", ErrInvalidAPIKey)
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	switch opts.Signing {
	case "":
		opts.Signing = SigningHeader
	case SigningHeader, SigningHMAC:
	default:
		return nil, fmt.Errorf("unknown signing mode %q", opts.Signing)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 2 * time.Second
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	return &WeatherLinkClient{
		apiKey:         opts.APIKey,
		apiSecret:      opts.APISecret,
		signing:        opts.Signing,
		timeout:        opts.Timeout,
		http:           rc,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		now:            time.Now,
	}, nil
}

// SetCircuitBreaker guards every upstream call with cb. nil disables it.
func (c *WeatherLinkClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type stationsResponse struct {
	Stations []struct {
		StationID   json.Number `json:"station_id"`
		StationName string      `json:"station_name"`
		TimeZone    string      `json:"time_zone"`
	} `json:"stations"`
}

type historicResponse struct {
	StationID   json.Number          `json:"station_id"`
	Sensors     []models.SensorBlock `json:"sensors"`
	GeneratedAt int64                `json:"generated_at"`
}

// GetStations returns the stations visible to the API key.
func (c *WeatherLinkClient) GetStations(ctx context.Context) ([]models.Station, error) {
	body, err := c.getWithRetry(ctx, "stations", "/stations", nil, nil)
	if err != nil {
		return nil, err
	}
	var resp stationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse stations response: %w", err)
	}
	out := make([]models.Station, 0, len(resp.Stations))
	for _, s := range resp.Stations {
		out = append(out, models.Station{
			ID:       s.StationID.String(),
			Name:     s.StationName,
			TimeZone: s.TimeZone,
		})
	}
	return out, nil
}

// GetHistoric returns the historic records of stationID in [start, end).
// Windows longer than MaxHistoricSpan are fetched page by page and merged.
func (c *WeatherLinkClient) GetHistoric(ctx context.Context, stationID string, start, end time.Time) (models.HistoricResponse, error) {
	if stationID == "" {
		return models.HistoricResponse{}, fmt.Errorf("%w: empty station id", ErrStationNotFound)
	}
	pages, err := SplitWindow(start, end, MaxHistoricSpan)
	if err != nil {
		return models.HistoricResponse{}, err
	}

	merged := models.HistoricResponse{StationID: stationID, Start: start, End: end}
	for _, pg := range pages {
		query := map[string]string{
			"start-timestamp": strconv.FormatInt(pg.Start.Unix(), 10),
			"end-timestamp":   strconv.FormatInt(pg.End.Unix(), 10),
		}
		path := map[string]string{"station-id": stationID}
		body, err := c.getWithRetry(ctx, "historic", "/historic/{station-id}", path, query)
		if err != nil {
			return models.HistoricResponse{}, err
		}
		var page historicResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return models.HistoricResponse{}, fmt.Errorf("parse historic response: %w", err)
		}
		mergeSensors(&merged, page.Sensors)
		if page.GeneratedAt > merged.GeneratedAt {
			merged.GeneratedAt = page.GeneratedAt
		}
	}
	return merged, nil
}

// Window is one page of a historic request.
type Window struct {
	Start time.Time
	End   time.Time
}

// SplitWindow cuts [start, end) into consecutive windows no longer than span.
func SplitWindow(start, end time.Time, span time.Duration) ([]Window, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end %s not after start %s", ErrInvalidWindow, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	var out []Window
	for cur := start; cur.Before(end); cur = cur.Add(span) {
		next := cur.Add(span)
		if next.After(end) {
			next = end
		}
		out = append(out, Window{Start: cur, End: next})
	}
	return out, nil
}

// mergeSensors appends page blocks to dst, joining blocks with the same
// (lsid, sensor_type, data_structure_type).
func mergeSensors(dst *models.HistoricResponse, blocks []models.SensorBlock) {
	for _, b := range blocks {
		found := false
		for i := range dst.Sensors {
			d := &dst.Sensors[i]
			if d.LSID == b.LSID && d.SensorType == b.SensorType && d.DataStructureType == b.DataStructureType {
				d.Data = append(d.Data, b.Data...)
				found = true
				break
			}
		}
		if !found {
			dst.Sensors = append(dst.Sensors, b)
		}
	}
}

func (c *WeatherLinkClient) getWithRetry(ctx context.Context, endpoint, path string, pathParams, query map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.WeatherLinkRetriesTotal.WithLabelValues(endpoint).Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		var body []byte
		call := func() error {
			var err error
			body, err = c.callAPI(ctx, endpoint, path, pathParams, query)
			return err
		}
		var err error
		if c.breaker != nil {
			err = c.breaker.Call(ctx, call)
		} else {
			err = call()
		}
		if err == nil {
			return body, nil
		}

		lastErr = err
		if errors.Is(err, circuitbreaker.ErrOpen) || !c.isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *WeatherLinkClient) callAPI(ctx context.Context, endpoint, path string, pathParams, query map[string]string) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.http.R().SetContext(reqCtx).SetPathParams(pathParams)
	params := c.authParams(pathParams, query)
	req.SetQueryParams(params)
	if c.signing == SigningHeader {
		req.SetHeader("X-Api-Secret", c.apiSecret)
	}
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.SetHeader("X-Correlation-ID", corrID)
	}

	resp, err := req.Get(path)
	if err != nil {
		observability.WeatherLinkCallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.WeatherLinkDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	status := statusLabel(resp.StatusCode())
	observability.WeatherLinkCallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherLinkDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())

	if err := c.handleErrorResponse(resp.StatusCode()); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// authParams returns the query parameters of a request, including api-key and,
// in hmac mode, the t and api-signature parameters.
func (c *WeatherLinkClient) authParams(pathParams, query map[string]string) map[string]string {
	params := make(map[string]string, len(query)+3)
	for k, v := range query {
		params[k] = v
	}
	params["api-key"] = c.apiKey
	if c.signing != SigningHMAC {
		return params
	}
	params["t"] = strconv.FormatInt(c.now().Unix(), 10)

	signed := make(map[string]string, len(params)+len(pathParams))
	for k, v := range params {
		signed[k] = v
	}
	for k, v := range pathParams {
		signed[k] = v
	}
	params["api-signature"] = Sign(c.apiSecret, signed)
	return params
}

func (c *WeatherLinkClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded")
}

func (c *WeatherLinkClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *WeatherLinkClient) handleErrorResponse(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, statusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrStationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
	}
	return nil
}

// ValidateCredentials performs a cheap authenticated call without retries.
func (c *WeatherLinkClient) ValidateCredentials(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.callAPI(ctx, "stations", "/stations", nil, nil); err != nil {
		if errors.Is(err, ErrInvalidAPIKey) {
			return fmt.Errorf("%w: key or secret rejected", ErrInvalidAPIKey)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
