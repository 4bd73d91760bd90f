//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/weatherlink-dashboard/internal/cache"
	"github.com/kjstillabower/weatherlink-dashboard/internal/catalog"
	"github.com/kjstillabower/weatherlink-dashboard/internal/client"
	"github.com/kjstillabower/weatherlink-dashboard/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APISecret     string
	APIURL        string
	Variant       string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test when WeatherLink credentials are not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	key := os.Getenv("WEATHERLINK_API_KEY")
	secret := os.Getenv("WEATHERLINK_API_SECRET")
	if key == "" || secret == "" {
		t.Skip("WEATHERLINK_API_KEY or WEATHERLINK_API_SECRET not set, skipping integration test")
	}

	cfg := IntegrationTestConfig{
		APIKey:        key,
		APISecret:     secret,
		APIURL:        os.Getenv("WEATHERLINK_API_URL"),
		Variant:       os.Getenv("DASHBOARD_VARIANT"),
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: os.Getenv("MEMCACHED_ADDRS"),
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.weatherlink.com/v2"
	}
	if cfg.Variant == "" {
		cfg.Variant = "full"
	}
	if cfg.MemcachedAddr == "" {
		cfg.MemcachedAddr = "localhost:11211"
	}
	return cfg
}

// SetupIntegrationClient creates a WeatherLink client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.WeatherLinkClient {
	t.Helper()
	c, err := client.NewWeatherLinkClient(client.Options{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.APIURL,
		Timeout:   10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewWeatherLinkClient() error = %v", err)
	}
	return c
}

// SetupIntegrationService creates a dashboard service over the real API.
// Returns the service, its client, and a cleanup function.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.DashboardService, *client.WeatherLinkClient, func()) {
	t.Helper()
	c := SetupIntegrationClient(t, cfg)

	profile, err := catalog.Variant(cfg.Variant)
	if err != nil {
		t.Fatalf("Variant(%q) error = %v", cfg.Variant, err)
	}

	var store cache.Cache = cache.NewInMemoryCache()
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil {
			store = mc
			cleanup = func() { _ = mc.Close() }
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available (%v), using in-memory cache", err)
		}
	}

	svc := service.NewDashboardService(c, store, profile, service.Options{
		HistoricTTL: time.Hour,
		Labels:      catalog.LabelsFor(catalog.LocaleEN),
	})
	return svc, c, cleanup
}
