package cache

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

type RedisConfig struct {
	Host               string `json:"host"`
	Port               int    `json:"port"`
	Password           string `json:"password"`
	DB                 int    `json:"db"`
	PoolSize           int    `json:"pool_size"`
	MinIdleConnections int    `json:"min_idle_connections"`
	DialTimeoutMs      int    `json:"dial_timeout_ms"`
	ReadTimeoutMs      int    `json:"read_timeout_ms"`
	WriteTimeoutMs     int    `json:"write_timeout_ms"`
	KeyPrefix          string `json:"key_prefix"`
	ScanCount          int64  `json:"scan_count"`
}

// RedisCache shares entries between portal instances. Values are stored as
// JSON and handed back as RawValue; expiry is delegated to Redis.
type RedisCache struct {
	ctx        context.Context
	logger     types.Logger
	config     *RedisConfig
	client     redis.UniversalClient
	defaultTTL time.Duration
	opTimeout  time.Duration
	started    int32
}

func NewRedisCache(ctx context.Context, logger types.Logger, config *types.CacheConfig) (*RedisCache, error) {
	var redisConfig = &RedisConfig{
		Host:               "localhost",
		Port:               6379,
		PoolSize:           10,
		MinIdleConnections: 2,
		DialTimeoutMs:      5000,
		ReadTimeoutMs:      3000,
		WriteTimeoutMs:     3000,
		KeyPrefix:          "b2b-portal",
		ScanCount:          500,
	}

	if config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, redisConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal redis cache config")
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisConfig.Host + ":" + strconv.Itoa(redisConfig.Port),
		Password:     redisConfig.Password,
		DB:           redisConfig.DB,
		PoolSize:     redisConfig.PoolSize,
		MinIdleConns: redisConfig.MinIdleConnections,
		DialTimeout:  time.Duration(redisConfig.DialTimeoutMs) * time.Millisecond,
		ReadTimeout:  time.Duration(redisConfig.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(redisConfig.WriteTimeoutMs) * time.Millisecond,
	})

	return newRedisCacheWithClient(ctx, logger, config, redisConfig, client), nil
}

func newRedisCacheWithClient(ctx context.Context, logger types.Logger, config *types.CacheConfig, redisConfig *RedisConfig, client redis.UniversalClient) *RedisCache {
	defaultTTL := DefaultTTL
	if config != nil && config.DefaultTTL > 0 {
		defaultTTL = config.DefaultTTL
	}

	return &RedisCache{
		ctx:        ctx,
		logger:     logger,
		config:     redisConfig,
		client:     client,
		defaultTTL: defaultTTL,
		opTimeout:  3 * time.Second,
	}
}

func (r *RedisCache) Get(key string) (interface{}, bool) {
	if key == "" {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.opTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.buildFullKey(key)).Bytes()
	if err != nil {
		if !types.IsError(err, redis.Nil) {
			r.logger.Error("Failed to get cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	return RawValue(data), true
}

func (r *RedisCache) Set(key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	var data []byte
	if raw, ok := value.(RawValue); ok {
		data = raw
	} else {
		encoded, err := utils.Marshal(value)
		if err != nil {
			return types.WrapError(err, "failed to marshal cache entry")
		}
		data = encoded
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.opTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.buildFullKey(key), data, ttl).Err(); err != nil {
		r.logger.Error("Failed to set cache entry", zap.String("key", key), zap.Error(err))
		return types.WrapError(types.ErrCacheOperationFailed, err.Error())
	}

	return nil
}

func (r *RedisCache) Delete(key string) error {
	if key == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.opTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.buildFullKey(key)).Err(); err != nil {
		r.logger.Error("Failed to delete cache key", zap.String("key", key), zap.Error(err))
		return types.WrapError(types.ErrCacheOperationFailed, err.Error())
	}

	return nil
}

func (r *RedisCache) Invalidate(pattern types.KeyPattern) (int, error) {
	if pattern == nil {
		return 0, types.ErrCachePatternInvalid
	}

	keys, err := r.scan(pattern.LiteralPrefix())
	if err != nil {
		return 0, err
	}

	matched := make([]string, 0, len(keys))
	for _, key := range keys {
		if pattern.Match(key) {
			matched = append(matched, r.buildFullKey(key))
		}
	}

	if err := r.deleteFullKeys(matched); err != nil {
		return 0, err
	}

	r.logger.Debug("Cache invalidated",
		zap.String("pattern", pattern.String()),
		zap.Int("removed", len(matched)))

	return len(matched), nil
}

func (r *RedisCache) Clear() error {
	keys, err := r.scan("")
	if err != nil {
		return err
	}

	fullKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		fullKeys = append(fullKeys, r.buildFullKey(key))
	}

	if err := r.deleteFullKeys(fullKeys); err != nil {
		return err
	}

	r.logger.Info("Redis cache cleared", zap.Int("cleared_entries", len(fullKeys)))
	return nil
}

func (r *RedisCache) Stats() types.CacheStats {
	keys, err := r.scan("")
	if err != nil {
		r.logger.Error("Failed to collect cache stats", zap.Error(err))
		return types.CacheStats{Keys: []string{}}
	}

	sort.Strings(keys)
	return types.CacheStats{Size: len(keys), Keys: keys}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Start() error {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.opTimeout)
	defer cancel()

	if err := r.Ping(ctx); err != nil {
		atomic.StoreInt32(&r.started, 0)
		return types.WrapError(types.ErrCacheConnectionFailed, err.Error())
	}

	r.logger.Info("Redis cache started", zap.String("key_prefix", r.config.KeyPrefix))
	return nil
}

func (r *RedisCache) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.started, 1, 0) {
		return types.ErrServerNotRunning
	}

	if err := r.client.Close(); err != nil {
		return types.WrapError(err, "failed to close redis client")
	}

	r.logger.Info("Redis cache stopped")
	return nil
}

func (r *RedisCache) IsRunning() bool {
	return atomic.LoadInt32(&r.started) == 1
}

// scan returns unprefixed keys starting with prefix.
func (r *RedisCache) scan(prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(r.ctx, 10*r.opTimeout)
	defer cancel()

	match := r.buildFullKey(escapeGlob(prefix)) + "*"
	keys := make([]string, 0)

	iter := r.client.Scan(ctx, 0, match, r.config.ScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, r.stripPrefix(iter.Val()))
	}

	if err := iter.Err(); err != nil {
		return nil, types.WrapError(types.ErrCacheOperationFailed, err.Error())
	}

	return keys, nil
}

func (r *RedisCache) deleteFullKeys(keys []string) error {
	const batch = 256

	ctx, cancel := context.WithTimeout(r.ctx, 10*r.opTimeout)
	defer cancel()

	for start := 0; start < len(keys); start += batch {
		end := start + batch
		if end > len(keys) {
			end = len(keys)
		}

		if err := r.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return types.WrapError(types.ErrCacheOperationFailed, err.Error())
		}
	}

	return nil
}

func (r *RedisCache) buildFullKey(key string) string {
	if r.config.KeyPrefix == "" {
		return key
	}
	return r.config.KeyPrefix + ":" + key
}

func (r *RedisCache) stripPrefix(fullKey string) string {
	if r.config.KeyPrefix == "" {
		return fullKey
	}
	return strings.TrimPrefix(fullKey, r.config.KeyPrefix+":")
}

func escapeGlob(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(s)
}
