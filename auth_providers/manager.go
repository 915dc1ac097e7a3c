package auth_providers

import (
	"sort"
	"sync"
	"sync/atomic"

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

var _ types.AuthProviderManager = (*AuthProviderManager)(nil)

type challenger interface {
	Challenge(ctx *fasthttp.RequestCtx)
}

// AuthProviderManager holds the providers guarding administrative routes.
// A request passes the guard when any registered provider accepts it.
type AuthProviderManager struct {
	logger    types.Logger
	mu        sync.RWMutex
	providers map[string]types.AuthProvider
	state     atomic.Value
}

func NewAuthProviderManager(config *types.AuthProvidersConfig, logger types.Logger) (*AuthProviderManager, error) {
	manager := &AuthProviderManager{
		logger:    logger,
		providers: make(map[string]types.AuthProvider),
	}

	manager.state.Store(StateStopped)

	if err := manager.initializeDefaultProviders(config); err != nil {
		return nil, types.WrapError(err, "failed to initialize auth providers")
	}

	return manager, nil
}

func (pm *AuthProviderManager) Start() error {
	if !pm.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	pm.setState(StateRunning)

	pm.logger.Info("Auth provider manager started", zap.Strings("providers", pm.Names()))
	return nil
}

func (pm *AuthProviderManager) Stop() error {
	if !pm.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	pm.setState(StateStopped)
	return nil
}

func (pm *AuthProviderManager) IsRunning() bool {
	return pm.getState() == StateRunning
}

func (pm *AuthProviderManager) GetProvider(name string) (types.AuthProvider, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if provider, ok := pm.providers[name]; ok {
		return provider, nil
	}
	return nil, types.Errorf(types.ErrAuthProviderUnknown, "name: %s", name)
}

func (pm *AuthProviderManager) Register(name string, provider types.AuthProvider) error {
	if pm.IsRunning() {
		pm.logger.Warn("Auth provider manager is already running")
		return types.ErrServerAlreadyRunning
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, exists := pm.providers[name]; exists {
		return types.Errorf(types.ErrAuthProviderExists, "name: %s", name)
	}

	pm.providers[name] = provider
	pm.logger.Info("Auth provider registered", zap.String("name", name), zap.String("type", provider.Type()))

	return nil
}

func (pm *AuthProviderManager) Names() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return sortedKeys(pm.providers)
}

// Guard wraps handler so it only runs for authenticated requests. With no
// providers registered the handler is returned unchanged.
func (pm *AuthProviderManager) Guard(handler types.FastHTTPHandler) types.FastHTTPHandler {
	return func(ctx *fasthttp.RequestCtx) {
		pm.mu.RLock()
		providers := make([]types.AuthProvider, 0, len(pm.providers))
		for _, name := range sortedKeys(pm.providers) {
			providers = append(providers, pm.providers[name])
		}
		pm.mu.RUnlock()

		if len(providers) == 0 {
			handler(ctx)
			return
		}

		var lastErr error
		for _, provider := range providers {
			if err := provider.Authenticate(ctx); err != nil {
				lastErr = err
				continue
			}
			handler(ctx)
			return
		}

		pm.logger.Warn("Unauthorized admin request",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.String("remote_addr", ctx.RemoteIP().String()),
			zap.Error(lastErr))

		for _, provider := range providers {
			if c, ok := provider.(challenger); ok {
				c.Challenge(ctx)
			}
		}

		ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
		utils.WriteError(ctx, fasthttp.StatusUnauthorized, "authentication required")
	}
}

func (pm *AuthProviderManager) getState() State {
	return pm.state.Load().(State)
}

func (pm *AuthProviderManager) setState(newState State) bool {
	currentState := pm.getState()
	return pm.state.CompareAndSwap(currentState, newState)
}

func (pm *AuthProviderManager) transitionState(from, to State) bool {
	return pm.state.CompareAndSwap(from, to)
}

func (pm *AuthProviderManager) initializeDefaultProviders(config *types.AuthProvidersConfig) error {
	if config == nil {
		pm.logger.Debug("No auth providers configured")
		return nil
	}

	if config.Token != nil {
		token, _ := config.Token.Params["token"].(string)
		if token == "" {
			return types.NewErrorf("token auth provider requires a non-empty token")
		}
		if err := pm.Register("token", NewTokenAuthProvider(token)); err != nil {
			return err
		}
	}

	if config.Basic != nil {
		username, _ := config.Basic.Params["username"].(string)
		password, _ := config.Basic.Params["password"].(string)
		if username == "" || password == "" {
			return types.NewErrorf("basic auth provider requires username and password")
		}

		provider := NewBasicAuthProvider(username, password)
		if realm, ok := config.Basic.Params["realm"].(string); ok && realm != "" {
			provider.SetRealm(realm)
		}

		if err := pm.Register("basic", provider); err != nil {
			return err
		}
	}

	return nil
}

func sortedKeys(providers map[string]types.AuthProvider) []string {
	keys := make([]string, 0, len(providers))
	for name := range providers {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}
