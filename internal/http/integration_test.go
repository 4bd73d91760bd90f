//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/kjstillabower/weatherlink-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weatherlink-dashboard/internal/models"
	"github.com/kjstillabower/weatherlink-dashboard/internal/observability"
	"github.com/kjstillabower/weatherlink-dashboard/internal/query"
	testhelpers "github.com/kjstillabower/weatherlink-dashboard/internal/testhelpers"
	"github.com/kjstillabower/weatherlink-dashboard/internal/views"
)

// setupIntegrationRouter builds the full router over the real WeatherLink API.
func setupIntegrationRouter(t *testing.T) *mux.Router {
	t.Helper()
	cfg := testhelpers.GetIntegrationConfig(t)
	svc, c, cleanup := testhelpers.SetupIntegrationService(t, cfg)
	t.Cleanup(cleanup)

	if err := views.LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() = %v", err)
	}
	logger, err := observability.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() = %v", err)
	}
	h := NewHandler(svc, c, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, logger, Options{
		Location: time.UTC,
		Limits:   query.Limits{DefaultHours: 24, MaxHours: 168, MaxRangeDays: 31, MaxStations: 10},
	})
	return NewRouter(h, logger, RouterConfig{RequestTimeout: 60 * time.Second})
}

func firstStation(t *testing.T, router *mux.Router) string {
	t.Helper()
	w := doGet(router, "/api/stations")
	if w.Code != http.StatusOK {
		t.Fatalf("/api/stations status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Stations []models.Station `json:"stations"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Stations) == 0 {
		t.Skip("account has no stations")
	}
	return body.Stations[0].Name
}

func TestIntegration_DashboardAndData(t *testing.T) {
	router := setupIntegrationRouter(t)
	name := firstStation(t, router)
	qs := url.Values{query.KeyStation: {name}, query.KeyHours: {"6"}}.Encode()

	w := doGet(router, "/?"+qs)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<form") {
		t.Error("dashboard form missing")
	}

	w = doGet(router, "/api/data?"+qs)
	if w.Code != http.StatusOK {
		t.Fatalf("/api/data status = %d: %s", w.Code, w.Body.String())
	}
	var body dataResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	t.Logf("%s: %d records, missing=%v skipped=%v failed=%v", name, len(body.Records), body.Missing, body.Skipped, body.Failed)
	if len(body.Failed) != 0 {
		t.Errorf("station fetch failed: %v", body.Failed)
	}
}

func TestIntegration_Health(t *testing.T) {
	router := setupIntegrationRouter(t)
	lifecycle.SetReady(true)
	t.Cleanup(func() { lifecycle.SetReady(false) })

	w := doGet(router, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d: %s", w.Code, w.Body.String())
	}
}
