package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/b2b-portal/logger"
	"github.com/saiset-co/b2b-portal/types"
)

func scrape(t *testing.T, handler types.FastHTTPHandler) string {
	t.Helper()
	require.NotNil(t, handler)

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod("GET")
	ctx.Request.SetRequestURI("/metrics")
	handler(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	return string(ctx.Response.Body())
}

func TestNewManagerSelectsBackend(t *testing.T) {
	m, err := NewManager(&types.MetricsConfig{Enabled: false}, logger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, m.Handler())
	m.Counter("anything", nil).Inc()
	assert.Zero(t, m.Counter("anything", nil).Get())

	m, err = NewManager(&types.MetricsConfig{Enabled: true, Type: "memory"}, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryMetrics{}, m)

	_, err = NewManager(&types.MetricsConfig{Enabled: true, Type: "statsd"}, logger.NewNop())
	assert.ErrorIs(t, err, types.ErrMetricsTypeUnknown)
}

func TestPrometheusMetrics(t *testing.T) {
	p, err := NewPrometheusMetrics(&types.MetricsConfig{
		Enabled:   true,
		Namespace: "b2b_portal",
		Labels:    map[string]string{"env": "test"},
	}, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, p.Start())
	assert.ErrorIs(t, p.Start(), types.ErrServerAlreadyRunning)

	labels := map[string]string{"method": "GET", "status": "200"}
	p.Counter("http_requests_total", labels).Inc()
	p.Counter("http_requests_total", labels).Add(2)
	assert.Equal(t, 3.0, p.Counter("http_requests_total", labels).Get())

	p.Gauge("cache_entries", nil).Set(7)
	p.Gauge("cache_entries", nil).Dec()
	assert.Equal(t, 6.0, p.Gauge("cache_entries", nil).Get())

	p.Histogram("upstream_duration_seconds", nil, map[string]string{"op": "get"}).ObserveDuration(time.Now())

	// mismatched label sets degrade to a no-op instead of panicking
	assert.NotPanics(t, func() {
		p.Counter("http_requests_total", map[string]string{"other": "x"}).Inc()
	})

	body := scrape(t, p.Handler())
	assert.Contains(t, body, `b2b_portal_http_requests_total{env="test",method="GET",status="200"} 3`)
	assert.Contains(t, body, `b2b_portal_cache_entries{env="test"} 6`)
	assert.Contains(t, body, `b2b_portal_upstream_duration_seconds_count{env="test",op="get"} 1`)

	require.NoError(t, p.Stop())
	assert.False(t, p.IsRunning())
}

func TestMemoryMetrics(t *testing.T) {
	m := NewMemoryMetrics(logger.NewNop())
	require.NoError(t, m.Start())

	m.Counter("cache_hits_total", map[string]string{"kind": "orders"}).Inc()
	m.Counter("cache_hits_total", map[string]string{"kind": "orders"}).Add(-5)
	m.Counter("cache_hits_total", map[string]string{"kind": "invoices"}).Add(4)
	m.Gauge("cache_entries", nil).Inc()
	m.Histogram("upstream_duration_seconds", nil, nil).Observe(0.5)
	m.Histogram("upstream_duration_seconds", nil, nil).Observe(1.5)

	snapshot := m.Snapshot()
	require.Len(t, snapshot, 4)

	assert.Equal(t, "cache_entries", snapshot[0].Name)
	assert.Equal(t, 1.0, snapshot[0].Value)
	assert.Equal(t, map[string]string{"kind": "invoices"}, snapshot[1].Labels)
	assert.Equal(t, 4.0, snapshot[1].Value)
	assert.Equal(t, 1.0, snapshot[2].Value)
	assert.Equal(t, uint64(2), snapshot[3].Count)
	assert.Equal(t, 2.0, snapshot[3].Value)

	body := scrape(t, m.Handler())
	assert.Contains(t, body, `"cache_hits_total"`)

	require.NoError(t, m.Stop())
}
