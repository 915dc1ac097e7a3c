package cron

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
)

const (
	CacheStatsJobName   = "cache-stats"
	UpstreamPingJobName = "upstream-ping"
)

type Pinger interface {
	Ping(ctx context.Context, path string) error
}

// CacheStatsJob publishes the cache size gauge.
func CacheStatsJob(cache types.CacheManager, metrics types.MetricsManager, logger types.Logger) func() {
	return func() {
		stats := cache.Stats()

		if metrics != nil {
			metrics.Gauge("cache_entries", nil).Set(float64(stats.Size))
		}

		logger.Debug("Cache stats collected", zap.Int("size", stats.Size))
	}
}

// UpstreamPingJob pings the upstream so the circuit breaker and health
// report reflect its state even while the portal is idle.
func UpstreamPingJob(upstream Pinger, path string, timeout time.Duration, metrics types.MetricsManager, logger types.Logger) func() {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		up := 1.0
		if err := upstream.Ping(ctx, path); err != nil {
			up = 0
			logger.Warn("Upstream ping failed", zap.String("path", path), zap.Error(err))
		}

		if metrics != nil {
			metrics.Gauge("upstream_up", nil).Set(up)
		}
	}
}

// RegisterDefaultJobs adds the built-in jobs whose specs are configured.
func RegisterDefaultJobs(m *Manager, config *types.CronConfig, cache types.CacheManager, upstream Pinger, metrics types.MetricsManager, logger types.Logger) error {
	if config == nil {
		return nil
	}

	if config.CacheStatsSpec != "" && cache != nil {
		if err := m.Add(CacheStatsJobName, config.CacheStatsSpec, CacheStatsJob(cache, metrics, logger)); err != nil {
			return err
		}
	}

	if config.UpstreamPingSpec != "" && upstream != nil {
		path := config.UpstreamPingPath
		if path == "" {
			path = "/"
		}
		if err := m.Add(UpstreamPingJobName, config.UpstreamPingSpec, UpstreamPingJob(upstream, path, 0, metrics, logger)); err != nil {
			return err
		}
	}

	return nil
}
