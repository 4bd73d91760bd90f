package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weatherlink-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weatherlink-dashboard/internal/observability"
)

// StationLoader is implemented by the service layer to reload the station
// directory into the cache. Kept as an interface to avoid importing service.
type StationLoader interface {
	RefreshStations(ctx context.Context) (int, error)
}

// DirectoryRefresher keeps the cached station directory warm.
type DirectoryRefresher struct {
	loader StationLoader
	logger *zap.Logger
}

// NewDirectoryRefresher creates a DirectoryRefresher for loader.
func NewDirectoryRefresher(loader StationLoader, logger *zap.Logger) *DirectoryRefresher {
	return &DirectoryRefresher{loader: loader, logger: logger}
}

// Refresh reloads the directory once. The first success marks the process ready.
func (r *DirectoryRefresher) Refresh(ctx context.Context) error {
	start := time.Now()
	n, err := r.loader.RefreshStations(ctx)
	duration := time.Since(start).Seconds()
	observability.DirectoryRefreshDurationSeconds.Observe(duration)
	if err != nil {
		observability.DirectoryRefreshesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh station directory: %w", err)
	}
	observability.DirectoryRefreshesTotal.WithLabelValues("ok").Inc()
	lifecycle.SetReady(true)
	if r.logger != nil {
		r.logger.Info("station directory refreshed", zap.Int("stations", n), zap.Float64("duration_seconds", duration))
	}
	return nil
}

// RefreshPeriodic runs an initial Refresh, then refreshes at interval until ctx is done.
func (r *DirectoryRefresher) RefreshPeriodic(ctx context.Context, interval time.Duration) error {
	if err := r.Refresh(ctx); err != nil && r.logger != nil {
		r.logger.Warn("initial station directory load failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil && r.logger != nil {
				r.logger.Warn("periodic station directory refresh failed", zap.Error(err))
			}
		}
	}
}
