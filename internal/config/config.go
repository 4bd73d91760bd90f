package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weatherlink-dashboard/internal/catalog"
	"github.com/kjstillabower/weatherlink-dashboard/internal/client"
)

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	ServerPort string

	WeatherLinkAPIKey    string
	WeatherLinkAPISecret string
	WeatherLinkURL       string
	WeatherLinkTimeout   time.Duration
	WeatherLinkSigning   string

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	Variant       string
	Locale        string
	TimeZone      string
	Location      *time.Location
	DefaultHours  int
	MaxHours      int
	MaxRangeDays  int
	MaxStations   int
	MaxConcurrent int
	ChartWidth    int
	ChartHeight   int
	Overrides     map[string]catalog.StationOverride

	RequestTimeout time.Duration

	CacheBackend          string // "in_memory" or "memcached"
	StationTTL            time.Duration
	HistoricTTL           time.Duration
	RefreshInterval       time.Duration
	CoalesceTimeout       time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	RateLimitRPS   int
	RateLimitBurst int
	CORSOrigins    []string

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	DegradedWindow     time.Duration
	DegradedErrorPct   int
	CredentialCheckTTL time.Duration
}

type fileConfig struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	WeatherLink struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
		Signing string `yaml:"signing"`
	} `yaml:"weatherlink"`

	Dashboard struct {
		Variant       string                             `yaml:"variant"`
		Locale        string                             `yaml:"locale"`
		TimeZone      string                             `yaml:"timezone"`
		DefaultHours  int                                `yaml:"default_hours"`
		MaxHours      int                                `yaml:"max_hours"`
		MaxRangeDays  int                                `yaml:"max_range_days"`
		MaxStations   int                                `yaml:"max_stations"`
		MaxConcurrent int                                `yaml:"max_concurrent"`
		ChartWidth    int                                `yaml:"chart_width"`
		ChartHeight   int                                `yaml:"chart_height"`
		Overrides     map[string]catalog.StationOverride `yaml:"overrides"`
	} `yaml:"dashboard"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend         string `yaml:"backend"`
		StationTTL      string `yaml:"station_ttl"`
		HistoricTTL     string `yaml:"historic_ttl"`
		RefreshInterval string `yaml:"refresh_interval"`
		CoalesceTimeout string `yaml:"coalesce_timeout"`
		Memcached       struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow     string `yaml:"degraded_window"`
		DegradedErrorPct   int    `yaml:"degraded_error_pct"`
		CredentialCheckTTL string `yaml:"credential_check_ttl"`
	} `yaml:"health"`
}

type secretsFile struct {
	WeatherLinkAPIKey    string `yaml:"weatherlink_api_key"`
	WeatherLinkAPISecret string `yaml:"weatherlink_api_secret"`
}

// Load reads configuration from the working directory. See LoadDir.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadDir(cwd)
}

// LoadDir reads dir/.env (optional, never overriding the process environment),
// then dir/config/{ENV_NAME}.yaml (default dev) and dir/config/secrets.yaml.
// Credentials come from WEATHERLINK_API_KEY and WEATHERLINK_API_SECRET or the
// secrets file. DASHBOARD_VARIANT, CACHE_BACKEND, MEMCACHED_ADDRS and
// SERVER_PORT override their YAML values.
func LoadDir(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	if err := loadSecrets(cfg, dir); err != nil {
		return nil, err
	}

	cfg.ServerPort = firstNonEmpty(os.Getenv("SERVER_PORT"), fc.Server.Port, "8080")
	cfg.CORSOrigins = fc.Server.CORSOrigins

	cfg.WeatherLinkURL = firstNonEmpty(fc.WeatherLink.URL, "https://api.weatherlink.com/v2")
	cfg.WeatherLinkTimeout = parseDurationOrZero(fc.WeatherLink.Timeout, 10*time.Second)
	cfg.WeatherLinkSigning = firstNonEmpty(strings.ToLower(strings.TrimSpace(fc.WeatherLink.Signing)), client.SigningHeader)

	cfg.RetryAttempts = intOr(fc.Reliability.RetryMaxAttempts, 3)
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 200*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 5*time.Second)
	cfg.RateLimitRPS = intOr(fc.Reliability.RateLimitRPS, 20)
	cfg.RateLimitBurst = intOr(fc.Reliability.RateLimitBurst, 40)

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = true
	if cb.Enabled != nil {
		cfg.CircuitBreakerEnabled = *cb.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = intOr(cb.FailureThreshold, 5)
	cfg.CircuitBreakerSuccessThreshold = intOr(cb.SuccessThreshold, 2)
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	d := fc.Dashboard
	cfg.Variant = strings.ToLower(firstNonEmpty(os.Getenv("DASHBOARD_VARIANT"), d.Variant, "full"))
	cfg.Locale = strings.ToLower(firstNonEmpty(d.Locale, catalog.LocaleES))
	cfg.TimeZone = firstNonEmpty(d.TimeZone, "America/Santiago")
	cfg.DefaultHours = intOr(d.DefaultHours, 24)
	cfg.MaxHours = intOr(d.MaxHours, 168)
	cfg.MaxRangeDays = intOr(d.MaxRangeDays, 31)
	cfg.MaxStations = intOr(d.MaxStations, 10)
	cfg.MaxConcurrent = intOr(d.MaxConcurrent, 4)
	cfg.ChartWidth = intOr(d.ChartWidth, 960)
	cfg.ChartHeight = intOr(d.ChartHeight, 400)
	cfg.Overrides = d.Overrides

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 60*time.Second)

	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, "in_memory")))
	cfg.StationTTL = parseDurationOrZero(fc.Cache.StationTTL, 0)
	cfg.HistoricTTL = parseDurationOrZero(fc.Cache.HistoricTTL, time.Hour)
	cfg.RefreshInterval = parseDurationOrZero(fc.Cache.RefreshInterval, 5*time.Minute)
	cfg.CoalesceTimeout = parseDuration(fc.Cache.CoalesceTimeout, 30*time.Second)
	cfg.MemcachedAddrs = strings.TrimSpace(firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211"))
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = intOr(fc.Cache.Memcached.MaxIdleConns, 2)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = intOr(fc.Health.DegradedErrorPct, 50)
	cfg.CredentialCheckTTL = parseDuration(fc.Health.CredentialCheckTTL, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSecrets fills credentials from env, falling back to config/secrets.yaml per field.
func loadSecrets(cfg *Config, dir string) error {
	cfg.WeatherLinkAPIKey = strings.TrimSpace(os.Getenv("WEATHERLINK_API_KEY"))
	cfg.WeatherLinkAPISecret = strings.TrimSpace(os.Getenv("WEATHERLINK_API_SECRET"))
	if cfg.WeatherLinkAPIKey == "" || cfg.WeatherLinkAPISecret == "" {
		secretsData, err := os.ReadFile(filepath.Join(dir, "config", "secrets.yaml"))
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return fmt.Errorf("parse secrets file: %w", err)
			}
			cfg.WeatherLinkAPIKey = firstNonEmpty(cfg.WeatherLinkAPIKey, sec.WeatherLinkAPIKey)
			cfg.WeatherLinkAPISecret = firstNonEmpty(cfg.WeatherLinkAPISecret, sec.WeatherLinkAPISecret)
		}
	}
	if cfg.WeatherLinkAPIKey == "" || cfg.WeatherLinkAPISecret == "" {
		return fmt.Errorf("WEATHERLINK_API_KEY and WEATHERLINK_API_SECRET required (set env or config/secrets.yaml weatherlink_api_key, weatherlink_api_secret)")
	}
	return nil
}

// Profile returns the configured variant with the YAML overrides applied.
func (c *Config) Profile() (catalog.Profile, error) {
	p, err := catalog.Variant(c.Variant)
	if err != nil {
		return catalog.Profile{}, err
	}
	return p.WithOverrides(c.Overrides), nil
}

// ClientOptions returns the WeatherLink client settings.
func (c *Config) ClientOptions() client.Options {
	return client.Options{
		APIKey:         c.WeatherLinkAPIKey,
		APISecret:      c.WeatherLinkAPISecret,
		BaseURL:        c.WeatherLinkURL,
		Timeout:        c.WeatherLinkTimeout,
		Signing:        c.WeatherLinkSigning,
		RetryAttempts:  c.RetryAttempts,
		RetryBaseDelay: c.RetryBaseDelay,
		RetryMaxDelay:  c.RetryMaxDelay,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero is returned as-is so "0s" can disable a feature.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate checks cross-field constraints after defaults are applied.
// RequestTimeout is raised above the upstream timeout when needed.
func validate(cfg *Config) error {
	if cfg.WeatherLinkTimeout <= 0 {
		return fmt.Errorf("weatherlink.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherLinkTimeout {
		cfg.RequestTimeout = cfg.WeatherLinkTimeout + time.Second
	}
	switch cfg.WeatherLinkSigning {
	case client.SigningHeader, client.SigningHMAC:
	default:
		return fmt.Errorf("weatherlink.signing must be %s or %s, got %q", client.SigningHeader, client.SigningHMAC, cfg.WeatherLinkSigning)
	}
	if _, err := cfg.Profile(); err != nil {
		return fmt.Errorf("dashboard.variant: %w (valid: %s)", err, strings.Join(catalog.VariantNames(), ", "))
	}
	switch cfg.Locale {
	case catalog.LocaleES, catalog.LocaleEN:
	default:
		return fmt.Errorf("dashboard.locale must be %s or %s, got %q", catalog.LocaleES, catalog.LocaleEN, cfg.Locale)
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("dashboard.timezone: %w", err)
	}
	cfg.Location = loc
	if cfg.DefaultHours > cfg.MaxHours {
		return fmt.Errorf("dashboard.default_hours (%d) exceeds max_hours (%d)", cfg.DefaultHours, cfg.MaxHours)
	}
	for id, ov := range cfg.Overrides {
		if ov.RequiredSensor != "" && !catalog.IsFamily(ov.RequiredSensor) {
			return fmt.Errorf("dashboard.overrides[%s]: unknown family %q", id, ov.RequiredSensor)
		}
		for fam := range ov.Sensors {
			if !catalog.IsFamily(fam) {
				return fmt.Errorf("dashboard.overrides[%s]: unknown family %q", id, fam)
			}
		}
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
