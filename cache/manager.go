package cache

import (
	"context"
	"time"

	"github.com/saiset-co/b2b-portal/types"
)

var customCacheCreators = make(map[string]types.CacheManagerCreator)

func RegisterCacheManager(cacheManagerName string, creator types.CacheManagerCreator) {
	customCacheCreators[cacheManagerName] = creator
}

func NewCacheManager(ctx context.Context, cacheConfig *types.CacheConfig, logger types.Logger, metrics types.MetricsManager) (types.CacheManager, error) {
	if cacheConfig == nil || !cacheConfig.Enabled {
		return nil, types.ErrCacheIsDisabled
	}

	var impl types.CacheManager

	switch cacheConfig.Type {
	case "memory", "":
		impl = NewMemoryCache(ctx, logger, cacheConfig)
	case "redis":
		redisCache, err := NewRedisCache(ctx, logger, cacheConfig)
		if err != nil {
			return nil, err
		}
		impl = redisCache
	default:
		creator, exists := customCacheCreators[cacheConfig.Type]
		if !exists {
			return nil, types.Errorf(types.ErrCacheTypeUnknown, "type: %s", cacheConfig.Type)
		}

		custom, err := creator(cacheConfig)
		if err != nil {
			return nil, err
		}
		impl = custom
	}

	return newInstrumentedCacheManager(logger, metrics, impl), nil
}

type instrumentedCacheManager struct {
	impl    types.CacheManager
	logger  types.Logger
	metrics types.MetricsManager
}

func newInstrumentedCacheManager(logger types.Logger, metrics types.MetricsManager, impl types.CacheManager) types.CacheManager {
	return &instrumentedCacheManager{
		impl:    impl,
		logger:  logger,
		metrics: metrics,
	}
}

// Unwrap exposes the backend, e.g. for health checks.
func (icm *instrumentedCacheManager) Unwrap() types.CacheManager {
	return icm.impl
}

func (icm *instrumentedCacheManager) Get(key string) (interface{}, bool) {
	start := time.Now()
	value, exists := icm.impl.Get(key)

	result := "miss"
	if exists {
		result = "hit"
	}

	icm.recordMetric("get", result, time.Since(start))
	return value, exists
}

func (icm *instrumentedCacheManager) Set(key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := icm.impl.Set(key, value, ttl)

	icm.recordMetric("set", resultOf(err), time.Since(start))
	return err
}

func (icm *instrumentedCacheManager) Delete(key string) error {
	start := time.Now()
	err := icm.impl.Delete(key)

	icm.recordMetric("delete", resultOf(err), time.Since(start))
	return err
}

func (icm *instrumentedCacheManager) Invalidate(pattern types.KeyPattern) (int, error) {
	start := time.Now()
	removed, err := icm.impl.Invalidate(pattern)

	icm.recordMetric("invalidate", resultOf(err), time.Since(start))
	return removed, err
}

func (icm *instrumentedCacheManager) Clear() error {
	start := time.Now()
	err := icm.impl.Clear()

	icm.recordMetric("clear", resultOf(err), time.Since(start))
	return err
}

func (icm *instrumentedCacheManager) Stats() types.CacheStats {
	return icm.impl.Stats()
}

func (icm *instrumentedCacheManager) Start() error {
	start := time.Now()
	err := icm.impl.Start()

	icm.recordMetric("start", resultOf(err), time.Since(start))
	return err
}

func (icm *instrumentedCacheManager) Stop() error {
	return icm.impl.Stop()
}

func (icm *instrumentedCacheManager) IsRunning() bool {
	return icm.impl.IsRunning()
}

func (icm *instrumentedCacheManager) recordMetric(operation, result string, duration time.Duration) {
	if icm.metrics == nil {
		return
	}

	icm.metrics.Counter("cache_operations_total", map[string]string{
		"operation": operation,
		"result":    result,
	}).Inc()

	icm.metrics.Histogram("cache_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"operation": operation},
	).Observe(duration.Seconds())
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
