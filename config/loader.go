package config

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/b2b-portal/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// LoadFromFile reads, expands ${ENV} references, applies defaults and validates.
func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, map[string]interface{}, error) {
	if configPath == "" {
		return nil, nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil, types.WrapError(err, "file not found: "+configPath)
	}

	data, err := l.ReadFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, nil, types.WrapError(err, "failed to read config file")
	}

	return l.Parse(data)
}

func (l *Loader) Parse(data []byte) (*types.ServiceConfig, map[string]interface{}, error) {
	expanded := []byte(os.ExpandEnv(string(data)))

	config := l.Defaults()
	if err := yaml.Unmarshal(expanded, config); err != nil {
		return nil, nil, types.WrapError(types.ErrConfigParseFailed, err.Error())
	}

	raw := make(map[string]interface{})
	if err := yaml.Unmarshal(expanded, &raw); err != nil {
		return nil, nil, types.WrapError(types.ErrConfigParseFailed, err.Error())
	}

	if err := l.validator.Struct(config); err != nil {
		return nil, nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	return config, raw, nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Server: &types.ServerConfig{
			HTTP: &types.HTTPConfig{
				Host:            "0.0.0.0",
				Port:            8080,
				ReadTimeout:     30,
				WriteTimeout:    30,
				IdleTimeout:     120,
				ShutdownTimeout: 5,
				MaxBodySize:     4 * 1024 * 1024,
			},
			TLS: &types.TLSConfig{
				Enabled:  false,
				CacheDir: "./certs",
			},
		},
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		Cache: &types.CacheConfig{
			Enabled:         true,
			Type:            "memory",
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Upstream: &types.UpstreamConfig{
			BaseURL:     "https://api-b2b.bigcommerce.com",
			GraphQLPath: "/graphql",
			Timeout:     15 * time.Second,
			Retries:     2,
			CircuitBreaker: &types.CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				RecoveryTimeout:  30 * time.Second,
				HalfOpenRequests: 2,
			},
		},
		Portal: &types.PortalConfig{
			Timezone:       "UTC",
			RequestTimeout: 30 * time.Second,
			TTL:            map[string]time.Duration{},
		},
		Metrics: &types.MetricsConfig{
			Enabled:   false,
			Type:      "prometheus",
			Namespace: "b2b_portal",
			Path:      "/metrics",
		},
		Health: &types.HealthConfig{
			Enabled: true,
			Path:    "/health",
		},
		Docs: &types.DocsConfig{
			Enabled: false,
			Path:    "/docs",
		},
		Cron: &types.CronConfig{
			Enabled:        false,
			Timezone:       "UTC",
			CacheStatsSpec: "*/30 * * * * *",
		},
		Middlewares: &types.MiddlewaresConfig{
			Enabled: true,
			Recovery: &types.MiddlewareItemConfig{
				Enabled: true,
				Params: map[string]interface{}{
					"stack_trace": true,
				},
				Weight: 10,
			},
			RequestID: &types.MiddlewareItemConfig{
				Enabled: true,
				Params: map[string]interface{}{
					"header": "X-Request-ID",
				},
				Weight: 20,
			},
			CORS: &types.MiddlewareItemConfig{
				Enabled: false,
				Params: map[string]interface{}{
					"allowed_origins": []interface{}{"*"},
				},
				Weight: 25,
			},
			Logging: &types.MiddlewareItemConfig{
				Enabled: true,
				Params: map[string]interface{}{
					"log_level":   "info",
					"log_headers": false,
				},
				Weight: 30,
			},
			Compression: &types.MiddlewareItemConfig{
				Enabled: false,
				Params: map[string]interface{}{
					"algorithm": "br",
					"level":     6,
					"threshold": 1024,
				},
				Weight: 90,
			},
		},
	}
}
