package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weatherlink-dashboard/internal/cache"
	"github.com/kjstillabower/weatherlink-dashboard/internal/catalog"
	"github.com/kjstillabower/weatherlink-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weatherlink-dashboard/internal/client"
	"github.com/kjstillabower/weatherlink-dashboard/internal/config"
	httphandler "github.com/kjstillabower/weatherlink-dashboard/internal/http"
	"github.com/kjstillabower/weatherlink-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weatherlink-dashboard/internal/observability"
	"github.com/kjstillabower/weatherlink-dashboard/internal/query"
	"github.com/kjstillabower/weatherlink-dashboard/internal/service"
	"github.com/kjstillabower/weatherlink-dashboard/internal/views"
)

func main() {
	variant := flag.String("variant", "", "dashboard variant: air, meteo or full (overrides config)")
	port := flag.String("port", "", "listen port (overrides config)")
	flag.Parse()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if *variant != "" {
		cfg.Variant = *variant
	}
	if *port != "" {
		cfg.ServerPort = *port
	}
	profile, err := cfg.Profile()
	if err != nil {
		logger.Fatal("dashboard variant", zap.Error(err), zap.Strings("valid", catalog.VariantNames()))
	}

	if err := views.LoadTemplates(); err != nil {
		logger.Fatal("templates", zap.Error(err))
	}

	wlClient, err := client.NewWeatherLinkClient(cfg.ClientOptions())
	if err != nil {
		logger.Fatal("weatherlink client", zap.Error(err))
	}

	if cfg.CircuitBreakerEnabled {
		const component = "weatherlink_api"
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        component,
			IsFailure:        client.IsUpstreamFailure,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitTransition(component, int(to), to.String())
				logger.Warn("circuit breaker transition",
					zap.String("component", component),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		wlClient.SetCircuitBreaker(cb)
		observability.CircuitBreakerState.WithLabelValues(component).Set(0)
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold), zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	var store cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		store = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		store = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	dashboard := service.NewDashboardService(wlClient, store, profile, service.Options{
		StationTTL:      cfg.StationTTL,
		HistoricTTL:     cfg.HistoricTTL,
		CoalesceTimeout: cfg.CoalesceTimeout,
		MaxConcurrent:   cfg.MaxConcurrent,
		Labels:          catalog.LabelsFor(cfg.Locale),
	})

	observability.RegisterTrafficGauges(cfg.DegradedWindow)
	observability.SetTrackedFamilies(profile.Families)

	refreshCtx, refreshCancel := context.WithCancel(context.Background())
	defer refreshCancel()
	refresher := cache.NewDirectoryRefresher(dashboard, logger)
	if cfg.RefreshInterval > 0 {
		go func() {
			if err := refresher.RefreshPeriodic(refreshCtx, cfg.RefreshInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("station directory refresh stopped", zap.Error(err))
			}
		}()
	} else {
		loadCtx, loadCancel := context.WithTimeout(refreshCtx, cfg.RequestTimeout)
		if err := refresher.Refresh(loadCtx); err != nil {
			logger.Warn("initial station directory load failed", zap.Error(err))
		}
		loadCancel()
		// Without a refresher the directory loads lazily on the first request.
		lifecycle.SetReady(true)
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:     cfg.DegradedWindow,
		DegradedErrorPct:   cfg.DegradedErrorPct,
		CredentialCheckTTL: cfg.CredentialCheckTTL,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	handler := httphandler.NewHandler(dashboard, wlClient, healthConfig, logger, httphandler.Options{
		Location: cfg.Location,
		Limits: query.Limits{
			DefaultHours: cfg.DefaultHours,
			MaxHours:     cfg.MaxHours,
			MaxRangeDays: cfg.MaxRangeDays,
			MaxStations:  cfg.MaxStations,
		},
		ChartWidth:  cfg.ChartWidth,
		ChartHeight: cfg.ChartHeight,
	})
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", ":"+cfg.ServerPort),
			zap.String("variant", profile.Name),
			zap.Strings("families", profile.Families))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	refreshCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "flush logs: %v\n", err)
	}
}
