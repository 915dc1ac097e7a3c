package middleware

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/b2b-portal/logger"
	"github.com/saiset-co/b2b-portal/types"
)

type stubMiddleware struct {
	name   string
	weight int
	trace  *[]string
}

func (s *stubMiddleware) Name() string { return s.name }
func (s *stubMiddleware) Weight() int  { return s.weight }

func (s *stubMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	*s.trace = append(*s.trace, s.name+">")
	next(ctx)
	*s.trace = append(*s.trace, "<"+s.name)
}

func newRequest(method, uri string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	return ctx
}

func TestManagerOrdersByWeight(t *testing.T) {
	var trace []string
	m := NewManager(logger.NewNop())

	require.NoError(t, m.Register(&stubMiddleware{name: "late", weight: 50, trace: &trace}))
	require.NoError(t, m.Register(&stubMiddleware{name: "early", weight: 10, trace: &trace}))

	assert.ErrorIs(t, m.Register(nil), types.ErrMiddlewareIsNil)
	assert.ErrorIs(t, m.Register(&stubMiddleware{name: "early", weight: 11, trace: &trace}), types.ErrMiddlewareExists)
	assert.Error(t, m.Register(&stubMiddleware{name: "clash", weight: 10, trace: &trace}))

	m.Execute(newRequest("GET", "/"), func(*fasthttp.RequestCtx) {
		trace = append(trace, "handler")
	})

	assert.Equal(t, []string{"early>", "late>", "handler", "<late", "<early"}, trace)
	assert.Equal(t, []string{"early", "late"}, m.Names())
}

func TestRegisterFromConfig(t *testing.T) {
	m := NewManager(logger.NewNop())
	cfg := &types.MiddlewaresConfig{
		Enabled:   true,
		Recovery:  &types.MiddlewareItemConfig{Enabled: true, Weight: 10},
		RequestID: &types.MiddlewareItemConfig{Enabled: true, Weight: 20},
		CORS:      &types.MiddlewareItemConfig{Enabled: false, Weight: 25},
		Logging:   &types.MiddlewareItemConfig{Enabled: true, Weight: 30},
	}

	require.NoError(t, m.RegisterFromConfig(cfg, nil))
	assert.Equal(t, []string{"recovery", "request_id", "logging"}, m.Names())

	empty := NewManager(logger.NewNop())
	require.NoError(t, empty.RegisterFromConfig(&types.MiddlewaresConfig{Enabled: false, Recovery: cfg.Recovery}, nil))
	assert.Empty(t, empty.Names())
}

func TestRecoveryMiddleware(t *testing.T) {
	mw := NewRecoveryMiddleware(&types.MiddlewareItemConfig{Weight: 10}, logger.NewNop(), nil)
	ctx := newRequest("GET", "/api/orders/1")

	assert.NotPanics(t, func() {
		mw.Handle(ctx, func(*fasthttp.RequestCtx) { panic("boom") })
	})

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "internal server error")
}

func TestRequestIDMiddleware(t *testing.T) {
	mw := NewRequestIDMiddleware(&types.MiddlewareItemConfig{Weight: 20}, logger.NewNop())

	ctx := newRequest("GET", "/")
	var seen string
	mw.Handle(ctx, func(ctx *fasthttp.RequestCtx) { seen = RequestID(ctx) })

	assert.Len(t, seen, 36)
	assert.Equal(t, seen, string(ctx.Response.Header.Peek(DefaultRequestIDHeader)))

	ctx = newRequest("GET", "/")
	ctx.Request.Header.Set(DefaultRequestIDHeader, "abc-123")
	mw.Handle(ctx, func(*fasthttp.RequestCtx) {})
	assert.Equal(t, "abc-123", string(ctx.Response.Header.Peek(DefaultRequestIDHeader)))
}

func TestSanitizeHeaders(t *testing.T) {
	ctx := newRequest("GET", "/")
	ctx.Request.Header.Set("Authorization", "Bearer secret")
	ctx.Request.Header.Set("X-Trace", "t1")

	headers := sanitizeHeaders(ctx)
	assert.Equal(t, "[REDACTED]", headers["Authorization"])
	assert.Equal(t, "t1", headers["X-Trace"])
}

func jsonHandler(body string) func(*fasthttp.RequestCtx) {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		ctx.SetBodyString(body)
	}
}

func TestCompressionMiddleware(t *testing.T) {
	mw := NewCompressionMiddleware(&types.MiddlewareItemConfig{
		Weight: 90,
		Params: map[string]interface{}{"algorithm": "br", "level": 6, "threshold": 64},
	}, logger.NewNop())

	payload := `{"orders":[` + strings.Repeat(`{"status":"pending","total":120},`, 40) + `{}]}`

	t.Run("brotli", func(t *testing.T) {
		ctx := newRequest("GET", "/api/orders")
		ctx.Request.Header.Set("Accept-Encoding", "gzip, br")
		mw.Handle(ctx, jsonHandler(payload))

		require.Equal(t, "br", string(ctx.Response.Header.Peek("Content-Encoding")))
		assert.Equal(t, "Accept-Encoding", string(ctx.Response.Header.Peek("Vary")))

		plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(ctx.Response.Body())))
		require.NoError(t, err)
		assert.Equal(t, payload, string(plain))
	})

	t.Run("gzip fallback", func(t *testing.T) {
		ctx := newRequest("GET", "/api/orders")
		ctx.Request.Header.Set("Accept-Encoding", "gzip")
		mw.Handle(ctx, jsonHandler(payload))

		require.Equal(t, "gzip", string(ctx.Response.Header.Peek("Content-Encoding")))
		plain, err := ctx.Response.BodyGunzip()
		require.NoError(t, err)
		assert.Equal(t, payload, string(plain))
	})

	t.Run("below threshold", func(t *testing.T) {
		ctx := newRequest("GET", "/api/orders")
		ctx.Request.Header.Set("Accept-Encoding", "br")
		mw.Handle(ctx, jsonHandler(`{}`))
		assert.Empty(t, ctx.Response.Header.Peek("Content-Encoding"))
	})

	t.Run("not accepted", func(t *testing.T) {
		ctx := newRequest("GET", "/api/orders")
		ctx.Request.Header.Set("Accept-Encoding", "br;q=0")
		mw.Handle(ctx, jsonHandler(payload))
		assert.Empty(t, ctx.Response.Header.Peek("Content-Encoding"))
	})

	t.Run("binary type", func(t *testing.T) {
		ctx := newRequest("GET", "/file")
		ctx.Request.Header.Set("Accept-Encoding", "br")
		mw.Handle(ctx, func(ctx *fasthttp.RequestCtx) {
			ctx.SetContentType("image/png")
			ctx.SetBodyString(payload)
		})
		assert.Empty(t, ctx.Response.Header.Peek("Content-Encoding"))
	})
}

func TestCORSMiddleware(t *testing.T) {
	mw := NewCORSMiddleware(&types.MiddlewareItemConfig{
		Weight: 25,
		Params: map[string]interface{}{
			"allowed_origins": []interface{}{"https://portal.example.com", "*.shop.example.com"},
		},
	}, logger.NewNop())

	called := false
	next := func(*fasthttp.RequestCtx) { called = true }

	ctx := newRequest("GET", "/api/orders")
	ctx.Request.Header.Set("Origin", "https://portal.example.com")
	mw.Handle(ctx, next)
	assert.True(t, called)
	assert.Equal(t, "https://portal.example.com", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))

	called = false
	ctx = newRequest("OPTIONS", "/api/orders")
	ctx.Request.Header.Set("Origin", "https://eu.shop.example.com")
	ctx.Request.Header.Set("Access-Control-Request-Method", "PUT")
	mw.Handle(ctx, next)
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.Peek("Access-Control-Allow-Methods")), "PUT")

	ctx = newRequest("GET", "/api/orders")
	ctx.Request.Header.Set("Origin", "https://evil.test")
	mw.Handle(ctx, next)
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())

	ctx = newRequest("GET", "/api/orders")
	mw.Handle(ctx, next)
	assert.True(t, called)
	assert.Empty(t, ctx.Response.Header.Peek("Access-Control-Allow-Origin"))
}
