package service

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/saiset-co/b2b-portal/client"
	"github.com/saiset-co/b2b-portal/config"
	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

func testConfig() *types.ServiceConfig {
	cfg := config.NewLoader().Defaults()
	cfg.Name = "b2b-portal"
	cfg.Version = "1.2.3"
	cfg.Logger.Level = "error"
	cfg.Server.HTTP.Host = "127.0.0.1"
	cfg.Server.HTTP.Port = 0
	cfg.Upstream.BaseURL = "http://upstream.test"
	cfg.Upstream.Retries = 0
	return cfg
}

func startUpstream(t *testing.T, handler fasthttp.RequestHandler) client.Option {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}

	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return client.WithDial(func(string) (net.Conn, error) { return ln.Dial() })
}

func newTestService(t *testing.T, cfg *types.ServiceConfig, upstream fasthttp.RequestHandler) *Service {
	t.Helper()

	s, err := NewServiceFromConfig(context.Background(), cfg, WithClientOptions(startUpstream(t, upstream)), WithoutSignals())
	require.NoError(t, err)

	return s
}

func request(s *Service, method, uri string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	s.Handler()(ctx)
	return ctx
}

func TestNewServiceValidatesInput(t *testing.T) {
	_, err := NewService(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrConfigInvalidPath)

	_, err = NewService(context.Background(), "/does/not/exist.yml")
	assert.Error(t, err)

	_, err = NewServiceFromConfig(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrConfigIsNil)

	cfg := testConfig()
	cfg.Portal.Timezone = "Mars/Olympus_Mons"
	_, err = NewServiceFromConfig(context.Background(), cfg, WithoutSignals())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Server.TLS = &types.TLSConfig{Enabled: true, CertFile: "missing.pem", KeyFile: "missing.key"}
	_, err = NewServiceFromConfig(context.Background(), cfg, WithoutSignals())
	assert.ErrorIs(t, err, types.ErrTLSCertificateInvalid)

	cfg = testConfig()
	cfg.Cache.Enabled = false
	_, err = NewServiceFromConfig(context.Background(), cfg, WithoutSignals())
	assert.ErrorIs(t, err, types.ErrCacheIsDisabled)
}

func TestPortalRouteRunsThroughMiddlewares(t *testing.T) {
	var calls atomic.Int32
	s := newTestService(t, testConfig(), func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		assert.Equal(t, "/orders/1", string(ctx.Path()))
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"data":{"orderId":1,"status":"Awaiting Shipment","totalIncTax":"42.50"}}`)
	})

	for i := 0; i < 2; i++ {
		ctx := request(s, fasthttp.MethodGet, "/api/orders/1")
		require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
		assert.NotEmpty(t, ctx.Response.Header.Peek("X-Request-ID"))

		var order map[string]interface{}
		require.NoError(t, utils.Unmarshal(ctx.Response.Body(), &order))
		assert.Equal(t, "awaiting_shipment", order["status"])
	}

	assert.Equal(t, int32(1), calls.Load())
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	s := newTestService(t, testConfig(), func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	})

	ctx := request(s, fasthttp.MethodGet, "/api/users/u1")
	assert.Equal(t, fasthttp.StatusBadGateway, ctx.Response.StatusCode())
}

func TestUnknownRoute(t *testing.T) {
	s := newTestService(t, testConfig(), func(ctx *fasthttp.RequestCtx) {})

	ctx := request(s, fasthttp.MethodGet, "/api/nowhere")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	ctx = request(s, fasthttp.MethodPost, "/api/orders/1")
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
}

func TestCacheAdministrationRequiresToken(t *testing.T) {
	cfg := testConfig()
	cfg.AuthProviders = &types.AuthProvidersConfig{
		Token: &types.AuthProviderConfig{Params: map[string]interface{}{"token": "admin-token"}},
	}

	s := newTestService(t, cfg, func(ctx *fasthttp.RequestCtx) {})

	ctx := request(s, fasthttp.MethodDelete, "/api/cache")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(fasthttp.MethodDelete)
	ctx.Request.SetRequestURI("/api/cache")
	ctx.Request.Header.Set("Authorization", "Bearer admin-token")
	s.Handler()(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	cfg = testConfig()
	cfg.AuthProviders = &types.AuthProvidersConfig{Basic: &types.AuthProviderConfig{}}
	_, err := NewServiceFromConfig(context.Background(), cfg, WithoutSignals())
	assert.Error(t, err)
}

func TestDocsRoute(t *testing.T) {
	cfg := testConfig()
	cfg.Docs.Enabled = true

	s := newTestService(t, cfg, func(ctx *fasthttp.RequestCtx) {})

	ctx := request(s, fasthttp.MethodGet, "/docs/openapi.json")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	var spec types.OpenAPISpec
	require.NoError(t, utils.Unmarshal(ctx.Response.Body(), &spec))
	assert.Equal(t, "b2b-portal", spec.Info.Title)
	assert.Contains(t, spec.Paths, "/api/companies/{id}/invoices")
	assert.Contains(t, spec.Components.Schemas, "FrontendInvoice")
}

func TestMetricsRouteIsRegisteredWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Type = "memory"

	s := newTestService(t, cfg, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"id":"u1"}`)
	})

	request(s, fasthttp.MethodGet, "/api/users/u1")

	ctx := request(s, fasthttp.MethodGet, "/metrics")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "http_requests_total")
}

func TestMetricsRouteIsAbsentWhenDisabled(t *testing.T) {
	s := newTestService(t, testConfig(), func(ctx *fasthttp.RequestCtx) {})

	for _, route := range s.Routes() {
		assert.NotEqual(t, "/metrics", route.Path)
	}
}

func TestServiceLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.Cron.Enabled = true

	s := newTestService(t, cfg, func(ctx *fasthttp.RequestCtx) {})

	ctx := request(s, fasthttp.MethodGet, "/health")
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	require.Eventually(t, s.IsRunning, 5*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, s.Start(), types.ErrServiceIsRunning)

	ctx = request(s, fasthttp.MethodGet, "/health")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))

	var report types.HealthReport
	require.NoError(t, utils.Unmarshal(ctx.Response.Body(), &report))
	assert.Equal(t, types.StatusHealthy, report.Status)
	assert.Contains(t, report.Checks, "cache")
	assert.Contains(t, report.Checks, "upstream")
	assert.Equal(t, "1.2.3", report.Service.Version)

	ctx = request(s, fasthttp.MethodGet, "/version")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "1.2.3")

	require.NoError(t, s.Stop())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}

	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), types.ErrServiceIsNotRunning)
}
