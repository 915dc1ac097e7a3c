package types

import (
	"time"
)

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
	GetValue(path string, defaultValue interface{}) interface{}
	GetAs(path string, target interface{}) error
}

type ServiceConfig struct {
	Name          string               `yaml:"name" json:"name" validate:"required"`
	Version       string               `yaml:"version" json:"version" validate:"required"`
	Server        *ServerConfig        `yaml:"server" json:"server" validate:"required"`
	Logger        *LoggerConfig        `yaml:"logger" json:"logger" validate:"required"`
	Cache         *CacheConfig         `yaml:"cache" json:"cache" validate:"required"`
	Upstream      *UpstreamConfig      `yaml:"upstream" json:"upstream" validate:"required"`
	Portal        *PortalConfig        `yaml:"portal" json:"portal" validate:"required"`
	Middlewares   *MiddlewaresConfig   `yaml:"middlewares" json:"middlewares"`
	Metrics       *MetricsConfig       `yaml:"metrics" json:"metrics"`
	Health        *HealthConfig        `yaml:"health" json:"health"`
	Cron          *CronConfig          `yaml:"cron" json:"cron"`
	AuthProviders *AuthProvidersConfig `yaml:"auth_providers" json:"auth_providers"`
	Docs          *DocsConfig          `yaml:"docs" json:"docs"`
}

type ServerConfig struct {
	HTTP *HTTPConfig `yaml:"http" json:"http" validate:"required"`
	TLS  *TLSConfig  `yaml:"tls" json:"tls"`
}

type HTTPConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     int    `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     int    `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBodySize     int    `yaml:"max_body_size" json:"max_body_size"`
}

type TLSConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	CertFile      string   `yaml:"cert_file,omitempty" json:"cert_file,omitempty" validate:"required_if=Enabled true AutoCert false"`
	KeyFile       string   `yaml:"key_file,omitempty" json:"key_file,omitempty" validate:"required_if=Enabled true AutoCert false"`
	AutoCert      bool     `yaml:"auto_cert" json:"auto_cert"`
	Domains       []string `yaml:"domains,omitempty" json:"domains,omitempty" validate:"required_if=AutoCert true"`
	Email         string   `yaml:"email,omitempty" json:"email,omitempty"`
	CacheDir      string   `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty"`
	ACMEDirectory string   `yaml:"acme_directory,omitempty" json:"acme_directory,omitempty"`
}

type LoggerConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Level  string      `yaml:"level" json:"level" validate:"required"`
	Config interface{} `yaml:"config" json:"config"`
}

type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Type            string        `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	DefaultTTL      time.Duration `yaml:"default_ttl" json:"default_ttl" validate:"min=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval" validate:"min=0"`
	Coalesce        bool          `yaml:"coalesce" json:"coalesce"`
	Config          interface{}   `yaml:"config" json:"config"`
}

type UpstreamConfig struct {
	BaseURL        string                `yaml:"base_url" json:"base_url" validate:"required,url"`
	GraphQLPath    string                `yaml:"graphql_path" json:"graphql_path"`
	StoreHash      string                `yaml:"store_hash" json:"store_hash"`
	AuthToken      string                `yaml:"auth_token" json:"auth_token"`
	Timeout        time.Duration         `yaml:"timeout" json:"timeout" validate:"min=0"`
	Retries        int                   `yaml:"retries" json:"retries" validate:"min=0,max=10"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
	HalfOpenRequests int           `yaml:"half_open_requests" json:"half_open_requests"`
}

type PortalConfig struct {
	Timezone       string                   `yaml:"timezone" json:"timezone"`
	RequestTimeout time.Duration            `yaml:"request_timeout" json:"request_timeout" validate:"min=0"`
	TTL            map[string]time.Duration `yaml:"ttl" json:"ttl"`
}

// AuthProvidersConfig configures the credentials that guard the cache
// administration routes.
type AuthProvidersConfig struct {
	Token *AuthProviderConfig `yaml:"token" json:"token"`
	Basic *AuthProviderConfig `yaml:"basic" json:"basic"`
}

type AuthProviderConfig struct {
	Params map[string]interface{} `yaml:"params" json:"params"`
}

type MiddlewaresConfig struct {
	Enabled     bool                  `yaml:"enabled" json:"enabled"`
	Recovery    *MiddlewareItemConfig `yaml:"recovery" json:"recovery"`
	RequestID   *MiddlewareItemConfig `yaml:"request_id" json:"request_id"`
	CORS        *MiddlewareItemConfig `yaml:"cors" json:"cors"`
	Logging     *MiddlewareItemConfig `yaml:"logging" json:"logging"`
	Compression *MiddlewareItemConfig `yaml:"compression" json:"compression"`
}

type MiddlewareItemConfig struct {
	Enabled bool                   `yaml:"enabled" json:"enabled"`
	Weight  int                    `yaml:"weight" json:"weight" validate:"min=0"`
	Params  map[string]interface{} `yaml:"params" json:"params"`
}

type MetricsConfig struct {
	Enabled   bool              `yaml:"enabled" json:"enabled"`
	Type      string            `yaml:"type" json:"type" validate:"omitempty,oneof=prometheus memory"`
	Namespace string            `yaml:"namespace" json:"namespace"`
	Path      string            `yaml:"path" json:"path" validate:"required_if=Enabled true"`
	Labels    map[string]string `yaml:"labels" json:"labels"`
	GoMetrics bool              `yaml:"go_metrics" json:"go_metrics"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path" validate:"required_if=Enabled true"`
}

type CronConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	Timezone         string `yaml:"timezone" json:"timezone"`
	CacheStatsSpec   string `yaml:"cache_stats_spec" json:"cache_stats_spec"`
	UpstreamPingSpec string `yaml:"upstream_ping_spec" json:"upstream_ping_spec"`
	UpstreamPingPath string `yaml:"upstream_ping_path" json:"upstream_ping_path"`
}
