package server

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const defaultShutdownTimeout = 5 * time.Second

type FastHTTPServer struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	middlewares     types.MiddlewareManager
	tls             types.TLSManager
	router          *FastHTTPRouter
	server          *fasthttp.Server
	listener        net.Listener
	httpConfig      *types.HTTPConfig
	state           atomic.Value
	shutdownTimeout time.Duration
}

func NewHTTPServer(
	ctx context.Context,
	httpConfig *types.HTTPConfig,
	logger types.Logger,
	middlewares types.MiddlewareManager,
	tlsManager types.TLSManager,
	router *FastHTTPRouter) *FastHTTPServer {
	serverCtx, cancel := context.WithCancel(ctx)

	shutdownTimeout := defaultShutdownTimeout
	if httpConfig.ShutdownTimeout > 0 {
		shutdownTimeout = time.Duration(httpConfig.ShutdownTimeout) * time.Second
	}

	server := &FastHTTPServer{
		ctx:             serverCtx,
		cancel:          cancel,
		logger:          logger,
		middlewares:     middlewares,
		tls:             tlsManager,
		router:          router,
		httpConfig:      httpConfig,
		shutdownTimeout: shutdownTimeout,
	}

	server.state.Store(StateStopped)

	return server
}

// Start binds the configured address and serves in the background. With a
// TLS manager the listener terminates TLS.
func (h *FastHTTPServer) Start() error {
	addr := fmt.Sprintf("%s:%d", h.httpConfig.Host, h.httpConfig.Port)

	if h.tls != nil {
		listener, err := h.tls.Listen(addr)
		if err != nil {
			return err
		}
		return h.Serve(listener)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return types.WrapError(types.ErrServerStartFailed, err.Error())
	}

	return h.Serve(listener)
}

// Serve runs the server on an existing listener.
func (h *FastHTTPServer) Serve(listener net.Listener) error {
	if !h.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	h.listener = listener
	h.server = &fasthttp.Server{
		Handler:                      h.Handler(),
		Name:                         "b2b-portal",
		ReadTimeout:                  time.Duration(h.httpConfig.ReadTimeout) * time.Second,
		WriteTimeout:                 time.Duration(h.httpConfig.WriteTimeout) * time.Second,
		IdleTimeout:                  time.Duration(h.httpConfig.IdleTimeout) * time.Second,
		MaxRequestBodySize:           h.httpConfig.MaxBodySize,
		TCPKeepalive:                 true,
		DisablePreParseMultipartForm: true,
		CloseOnShutdown:              true,
	}

	go func() {
		if err := h.server.Serve(listener); err != nil {
			h.logger.Error("HTTP server failed", zap.Error(err))
			h.setState(StateStopped)
		}
	}()

	h.setState(StateRunning)

	h.logger.Info("HTTP server started successfully",
		zap.String("address", listener.Addr().String()),
		zap.Int("routes", len(h.router.Routes())))

	return nil
}

func (h *FastHTTPServer) Stop() error {
	if !h.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		h.setState(StateStopped)
		h.cancel()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	if err := h.server.ShutdownWithContext(ctx); err != nil {
		if ctx.Err() != nil {
			h.logger.Warn("Server stop timeout, some connections may not have closed gracefully")
			return nil
		}
		h.logger.Error("Error during server shutdown", zap.Error(err))
		return types.WrapError(err, "failed to shutdown http server")
	}

	h.logger.Info("HTTP server stopped gracefully")

	return nil
}

func (h *FastHTTPServer) IsRunning() bool {
	return h.getState() == StateRunning
}

// Handler resolves the route and runs it through the middleware chain.
// Unmatched requests still pass through the chain so they are logged.
func (h *FastHTTPServer) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		method := string(ctx.Method())
		path := string(ctx.Path())

		handler, params, found := h.router.Lookup(method, path)
		if !found {
			handler = h.fallbackHandler(method, path)
		}

		for name, value := range params {
			ctx.SetUserValue(name, value)
		}

		if h.middlewares != nil {
			h.middlewares.Execute(ctx, handler)
			return
		}

		handler(ctx)
	}
}

func (h *FastHTTPServer) fallbackHandler(method, path string) types.FastHTTPHandler {
	allowed := h.router.Methods(path)
	if len(allowed) == 0 {
		return func(ctx *fasthttp.RequestCtx) {
			utils.WriteError(ctx, fasthttp.StatusNotFound, "route not found")
		}
	}

	if method == fasthttp.MethodOptions {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Response.Header.Set(fasthttp.HeaderAllow, strings.Join(allowed, ", "))
			ctx.SetStatusCode(fasthttp.StatusNoContent)
		}
	}

	return func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.Set(fasthttp.HeaderAllow, strings.Join(allowed, ", "))
		utils.WriteError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *FastHTTPServer) getState() State {
	return h.state.Load().(State)
}

func (h *FastHTTPServer) setState(newState State) bool {
	currentState := h.getState()
	return h.state.CompareAndSwap(currentState, newState)
}

func (h *FastHTTPServer) transitionState(from, to State) bool {
	return h.state.CompareAndSwap(from, to)
}
