package middleware

import (
	"sort"
	"sync"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
)

const MaxMiddlewares = 64

// Manager runs registered middlewares in ascending weight order around the
// route handler.
type Manager struct {
	logger      types.Logger
	middlewares []types.Middleware
	names       map[string]struct{}
	mu          sync.RWMutex
}

func NewManager(logger types.Logger) *Manager {
	return &Manager{
		logger: logger,
		names:  make(map[string]struct{}),
	}
}

// RegisterFromConfig registers every enabled built-in middleware.
func (m *Manager) RegisterFromConfig(config *types.MiddlewaresConfig, metrics types.MetricsManager) error {
	if config == nil || !config.Enabled {
		return nil
	}

	candidates := []struct {
		item    *types.MiddlewareItemConfig
		factory func(*types.MiddlewareItemConfig) types.Middleware
	}{
		{config.Recovery, func(c *types.MiddlewareItemConfig) types.Middleware {
			return NewRecoveryMiddleware(c, m.logger, metrics)
		}},
		{config.RequestID, func(c *types.MiddlewareItemConfig) types.Middleware {
			return NewRequestIDMiddleware(c, m.logger)
		}},
		{config.CORS, func(c *types.MiddlewareItemConfig) types.Middleware {
			return NewCORSMiddleware(c, m.logger)
		}},
		{config.Logging, func(c *types.MiddlewareItemConfig) types.Middleware {
			return NewLoggingMiddleware(c, m.logger, metrics)
		}},
		{config.Compression, func(c *types.MiddlewareItemConfig) types.Middleware {
			return NewCompressionMiddleware(c, m.logger)
		}},
	}

	for _, candidate := range candidates {
		if candidate.item == nil || !candidate.item.Enabled {
			continue
		}

		mw := candidate.factory(candidate.item)
		if err := m.Register(mw); err != nil {
			return err
		}

		m.logger.Info("Middleware registered",
			zap.String("name", mw.Name()),
			zap.Int("weight", mw.Weight()))
	}

	return nil
}

func (m *Manager) Register(middleware types.Middleware) error {
	if middleware == nil {
		return types.ErrMiddlewareIsNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.names[middleware.Name()]; exists {
		return types.Errorf(types.ErrMiddlewareExists, "name: %s", middleware.Name())
	}

	if len(m.middlewares) >= MaxMiddlewares {
		return types.NewErrorf("maximum middleware count exceeded: %d", MaxMiddlewares)
	}

	for _, existing := range m.middlewares {
		if existing.Weight() == middleware.Weight() {
			return types.NewErrorf("duplicate weight %d for middlewares '%s' and '%s'",
				middleware.Weight(), existing.Name(), middleware.Name())
		}
	}

	m.names[middleware.Name()] = struct{}{}
	m.middlewares = append(m.middlewares, middleware)

	sort.Slice(m.middlewares, func(i, j int) bool {
		return m.middlewares[i].Weight() < m.middlewares[j].Weight()
	})

	return nil
}

func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.middlewares))
	for _, mw := range m.middlewares {
		names = append(names, mw.Name())
	}
	return names
}

func (m *Manager) Execute(ctx *fasthttp.RequestCtx, handler types.FastHTTPHandler) {
	m.mu.RLock()
	chain := m.middlewares
	m.mu.RUnlock()

	if len(chain) == 0 {
		handler(ctx)
		return
	}

	var index int

	var next func(*fasthttp.RequestCtx)
	next = func(ctx *fasthttp.RequestCtx) {
		if index >= len(chain) {
			handler(ctx)
			return
		}

		mw := chain[index]
		index++
		mw.Handle(ctx, next)
	}

	next(ctx)
}
