package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/b2b-portal/types"
)

const minimalConfig = `
name: portal
version: 0.1.0
upstream:
  base_url: https://b2b.example.com
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, raw, err := NewLoader().Parse([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "portal", cfg.Name)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, "UTC", cfg.Portal.Timezone)
	assert.Equal(t, 30*time.Second, cfg.Portal.RequestTimeout)
	assert.Equal(t, "/graphql", cfg.Upstream.GraphQLPath)
	assert.True(t, cfg.Middlewares.Recovery.Enabled)
	assert.False(t, cfg.Middlewares.Compression.Enabled)
	assert.Equal(t, "portal", raw["name"])
}

func TestParseOverridesAndExpandsEnv(t *testing.T) {
	t.Setenv("PORTAL_TEST_TOKEN", "s3cret")

	cfg, _, err := NewLoader().Parse([]byte(minimalConfig + `
  auth_token: ${PORTAL_TEST_TOKEN}
  timeout: 3s
portal:
  timezone: Europe/Berlin
  ttl:
    cart: 10s
cache:
  enabled: true
  type: redis
  coalesce: true
middlewares:
  enabled: true
  compression:
    enabled: true
    weight: 90
`))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Upstream.AuthToken)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "Europe/Berlin", cfg.Portal.Timezone)
	assert.Equal(t, 10*time.Second, cfg.Portal.TTL["cart"])
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.True(t, cfg.Cache.Coalesce)
	assert.True(t, cfg.Middlewares.Compression.Enabled)
	assert.Equal(t, 90, cfg.Middlewares.Compression.Weight)
}

func TestParseAdminSections(t *testing.T) {
	t.Setenv("PORTAL_TEST_ADMIN", "admin-token")

	cfg, _, err := NewLoader().Parse([]byte(minimalConfig + `
auth_providers:
  token:
    params:
      token: ${PORTAL_TEST_ADMIN}
docs:
  enabled: true
  path: /api-docs
`))
	require.NoError(t, err)

	require.NotNil(t, cfg.AuthProviders)
	require.NotNil(t, cfg.AuthProviders.Token)
	assert.Nil(t, cfg.AuthProviders.Basic)
	assert.Equal(t, "admin-token", cfg.AuthProviders.Token.Params["token"])
	assert.True(t, cfg.Docs.Enabled)
	assert.Equal(t, "/api-docs", cfg.Docs.Path)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", "version: \"1\"\nupstream:\n  base_url: https://b2b.example.com\n"},
		{"bad upstream url", "name: p\nversion: \"1\"\nupstream:\n  base_url: not a url\n"},
		{"bad port", minimalConfig + "server:\n  http:\n    port: 70000\n"},
		{"unknown metrics type", minimalConfig + "metrics:\n  type: statsd\n"},
		{"docs without path", minimalConfig + "docs:\n  enabled: true\n  path: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewLoader().Parse([]byte(tt.body))
			assert.ErrorIs(t, err, types.ErrConfigValidateFailed)
		})
	}

	_, _, err := NewLoader().Parse([]byte("name: [unclosed"))
	assert.ErrorIs(t, err, types.ErrConfigParseFailed)
}

func TestExampleConfigIsValid(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "config.yml"))
	require.NoError(t, err)

	cfg, _, err := NewLoader().Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "b2b-portal", cfg.Name)
	assert.True(t, cfg.Middlewares.CORS.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Portal.TTL["cart"])
}

func TestConfigurationManager(t *testing.T) {
	path := writeConfig(t, minimalConfig+"custom:\n  feature:\n    limit: 3\n")

	cm, err := NewConfigurationManager(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "portal", cm.GetConfig().Name)
	assert.Equal(t, 3, cm.GetValue("custom.feature.limit", 0))
	assert.Equal(t, "fallback", cm.GetValue("custom.missing", "fallback"))

	var feature struct {
		Limit int `yaml:"limit"`
	}
	require.NoError(t, cm.GetAs("custom.feature", &feature))
	assert.Equal(t, 3, feature.Limit)
	assert.ErrorIs(t, cm.GetAs("custom.nothing", &feature), types.ErrConfigNotFound)

	require.NoError(t, cm.Start())
	assert.True(t, cm.IsRunning())
	require.NoError(t, cm.Stop())
	assert.False(t, cm.IsRunning())
}

func TestConfigurationManagerErrors(t *testing.T) {
	_, err := NewConfigurationManager(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrConfigInvalidPath)

	_, err = NewConfigurationManager(context.Background(), filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
