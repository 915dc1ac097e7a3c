package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/b2b-portal/auth_providers"
	"github.com/saiset-co/b2b-portal/cache"
	"github.com/saiset-co/b2b-portal/client"
	"github.com/saiset-co/b2b-portal/config"
	"github.com/saiset-co/b2b-portal/cron"
	"github.com/saiset-co/b2b-portal/documentations"
	"github.com/saiset-co/b2b-portal/health"
	"github.com/saiset-co/b2b-portal/logger"
	"github.com/saiset-co/b2b-portal/metrics"
	"github.com/saiset-co/b2b-portal/middleware"
	"github.com/saiset-co/b2b-portal/portal"
	"github.com/saiset-co/b2b-portal/server"
	"github.com/saiset-co/b2b-portal/tls"
	"github.com/saiset-co/b2b-portal/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const versionPath = "/version"

// Option tweaks how the service builds its components.
type Option func(*options)

type options struct {
	clientOptions []client.Option
	signals       bool
}

// WithClientOptions passes options to the upstream client, e.g. a custom dialer.
func WithClientOptions(opts ...client.Option) Option {
	return func(o *options) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}

// WithoutSignals disables SIGINT/SIGTERM handling, for embedding and tests.
func WithoutSignals() Option {
	return func(o *options) {
		o.signals = false
	}
}

// Service owns the portal's components and their lifecycle.
type Service struct {
	ctx             context.Context
	cancel          context.CancelFunc
	config          *types.ServiceConfig
	configManager   types.LifecycleManager
	logger          types.LoggerManager
	metrics         types.MetricsManager
	cache           types.CacheManager
	upstream        *client.B2BClient
	middlewares     *middleware.Manager
	router          *server.FastHTTPRouter
	server          *server.FastHTTPServer
	tls             *tls.CertManager
	health          *health.Manager
	cron            *cron.Manager
	portal          *portal.Handlers
	auth            *auth_providers.AuthProviderManager
	options         options
	done            chan struct{}
	wg              sync.WaitGroup
	state           atomic.Value
	shutdownTimeout time.Duration
	startTimeout    time.Duration
}

func NewService(ctx context.Context, configPath string, opts ...Option) (*Service, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, types.WrapError(err, "file does not exist")
	}

	configManager, err := config.NewConfigurationManager(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to register config manager")
	}

	s, err := newService(ctx, configManager.GetConfig(), opts...)
	if err != nil {
		_ = configManager.Stop()
		return nil, err
	}

	s.configManager = configManager

	return s, nil
}

// NewServiceFromConfig builds the service from an already loaded configuration.
func NewServiceFromConfig(ctx context.Context, serviceConfig *types.ServiceConfig, opts ...Option) (*Service, error) {
	if serviceConfig == nil {
		return nil, types.ErrConfigIsNil
	}
	return newService(ctx, serviceConfig, opts...)
}

func newService(ctx context.Context, serviceConfig *types.ServiceConfig, opts ...Option) (*Service, error) {
	o := options{signals: true}
	for _, opt := range opts {
		opt(&o)
	}

	serviceCtx, cancel := context.WithCancel(ctx)

	s := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		config:          serviceConfig,
		options:         o,
		done:            make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
		startTimeout:    60 * time.Second,
	}

	s.state.Store(StateStopped)

	if err := s.registerComponents(); err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to register components")
	}

	return s, nil
}

func (s *Service) registerComponents() error {
	var err error

	s.logger, err = logger.NewManager(s.config.Logger,
		zap.String("service", s.config.Name),
		zap.String("version", s.config.Version))
	if err != nil {
		return types.WrapError(err, "failed to register logger")
	}

	metricsConfig := s.config.Metrics
	if metricsConfig == nil {
		metricsConfig = &types.MetricsConfig{}
	}

	s.metrics, err = metrics.NewManager(metricsConfig, s.logger)
	if err != nil {
		return types.WrapError(err, "failed to register metrics manager")
	}

	s.cache, err = cache.NewCacheManager(s.ctx, s.config.Cache, s.logger, s.metrics)
	if err != nil {
		return types.WrapError(err, "failed to register cache manager")
	}

	s.upstream = client.NewB2BClient(s.ctx, s.logger, s.config.Upstream, s.options.clientOptions...)

	s.portal, err = portal.NewHandlers(s.upstream, cache.NewMemoizer(s.cache, s.logger, s.config.Cache.Coalesce), s.logger, s.config.Portal)
	if err != nil {
		return types.WrapError(err, "failed to register portal handlers")
	}

	s.auth, err = auth_providers.NewAuthProviderManager(s.config.AuthProviders, s.logger)
	if err != nil {
		return types.WrapError(err, "failed to register auth providers")
	}
	s.portal.SetAdminGuard(s.auth.Guard)

	s.middlewares = middleware.NewManager(s.logger)
	if err = s.middlewares.RegisterFromConfig(s.config.Middlewares, s.metrics); err != nil {
		return types.WrapError(err, "failed to register middlewares")
	}

	s.health = health.NewManager(s.logger, types.ServiceInfo{
		Name:    s.config.Name,
		Version: s.config.Version,
	})
	s.health.RegisterChecker("cache", health.CacheChecker(s.cache))
	s.health.RegisterChecker("upstream", health.BreakerChecker(s.upstream.BreakerState))

	if s.config.Cron != nil && s.config.Cron.Enabled {
		s.cron, err = cron.NewManager(s.config.Cron, s.logger, s.metrics)
		if err != nil {
			return types.WrapError(err, "failed to register cron manager")
		}

		if err = cron.RegisterDefaultJobs(s.cron, s.config.Cron, s.cache, s.upstream, s.metrics, s.logger); err != nil {
			return types.WrapError(err, "failed to register cron jobs")
		}
	}

	var tlsManager types.TLSManager
	if s.config.Server.TLS != nil && s.config.Server.TLS.Enabled {
		s.tls, err = tls.NewCertManager(s.ctx, s.logger, s.config.Server.TLS)
		if err != nil {
			return types.WrapError(err, "failed to register TLS manager")
		}
		tlsManager = s.tls
		s.health.RegisterChecker("tls", health.CertificateChecker(s.tls.CertificateStatus))
	}

	s.router = server.NewFastHTTPRouter()
	s.registerRoutes()

	s.server = server.NewHTTPServer(s.ctx, s.config.Server.HTTP, s.logger, s.middlewares, tlsManager, s.router)

	return nil
}

func (s *Service) registerRoutes() {
	s.portal.Register(s.router)

	if s.config.Health != nil && s.config.Health.Enabled {
		s.router.GET(s.config.Health.Path, s.health.Handler())
		s.router.GET(versionPath, s.health.VersionHandler())
	}

	if s.config.Metrics != nil && s.config.Metrics.Enabled {
		if handler := s.metrics.Handler(); handler != nil {
			s.router.GET(s.config.Metrics.Path, handler)
		}
	}

	if s.config.Docs != nil && s.config.Docs.Enabled {
		docs := documentations.NewManager(types.ServiceInfo{Name: s.config.Name, Version: s.config.Version}, s.logger)
		for _, route := range s.portal.Docs() {
			if err := docs.AddRoute(route); err != nil {
				s.logger.Warn("Skipping undocumentable route", zap.String("path", route.Path), zap.Error(err))
			}
		}
		docs.RegisterRoutes(s.router, s.config.Docs.Path)
	}
}

// Start brings every component up and blocks until the service is stopped.
func (s *Service) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		s.logger.Warn("Service is already running")
		return types.ErrServiceIsRunning
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				runErr = fmt.Errorf("service panic: %v", r)
				s.logger.Error("Service run panic", zap.Stack(string(buf[:n])))
				s.setState(StateStopped)
			}
		}()

		runErr = s.run()
	}()

	return runErr
}

func (s *Service) run() error {
	s.logger.Info("Starting service",
		zap.String("name", s.config.Name),
		zap.String("version", s.config.Version))

	ctx, cancel := context.WithTimeout(s.ctx, s.startTimeout)
	defer cancel()

	if err := s.startComponents(ctx); err != nil {
		s.setState(StateStopped)
		_ = s.stopComponents()
		return types.WrapError(err, "failed to start components")
	}

	s.setState(StateRunning)

	if s.options.signals {
		s.setupSignalHandling()
	}

	s.wg.Add(1)
	go s.contextMonitor()

	s.logger.Info("Service started successfully")

	<-s.done

	if err := s.stopComponents(); err != nil {
		s.logger.Error("Error during service shutdown", zap.Error(err))
	}

	s.wg.Wait()
	s.setState(StateStopped)

	s.logger.Info("Service stopped gracefully")
	return nil
}

func (s *Service) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		s.logger.Warn("Service is not running")
		return types.ErrServiceIsNotRunning
	}

	s.logger.Info("Stopping service...")
	s.cancel()

	return nil
}

func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) Context() context.Context {
	return s.ctx
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

// Handler is the full request pipeline: routing plus middlewares.
func (s *Service) Handler() fasthttp.RequestHandler {
	return s.server.Handler()
}

func (s *Service) Routes() []types.RouteInfo {
	return s.router.Routes()
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) bool {
	currentState := s.getState()
	return s.state.CompareAndSwap(currentState, newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}

func (s *Service) startComponents(ctx context.Context) error {
	for _, component := range []struct {
		name    string
		manager types.LifecycleManager
	}{
		{"config manager", s.configManager},
		{"logger", s.logger},
	} {
		if component.manager == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := component.manager.Start(); err != nil {
				return types.WrapError(err, "failed to start "+component.name)
			}
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		default:
			if err := s.metrics.Start(); err != nil {
				s.logger.Error("Failed to start metrics manager", zap.Error(err))
			}
			return nil
		}
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		default:
			if err := s.cache.Start(); err != nil {
				return types.WrapError(err, "failed to start cache manager")
			}
			return nil
		}
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		default:
			if err := s.health.Start(); err != nil {
				s.logger.Error("Failed to start health manager", zap.Error(err))
			}
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			return types.NewErrorf("component startup timeout: %v", ctx.Err())
		default:
			return err
		}
	}

	if err := s.auth.Start(); err != nil {
		return types.WrapError(err, "failed to start auth provider manager")
	}

	if s.tls != nil {
		if err := s.tls.Start(); err != nil {
			return types.WrapError(err, "failed to start TLS manager")
		}
	}

	if err := s.server.Start(); err != nil {
		return types.WrapError(err, "failed to start HTTP server")
	}

	if s.cron != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.cron.Start(); err != nil {
				s.logger.Error("Failed to start cron manager", zap.Error(err))
			}
		}
	}

	s.logger.Info("All components started successfully")
	return nil
}

func (s *Service) stopComponents() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errors []error

	s.logger.Info("Stopping service components...")

	if s.cron != nil && s.cron.IsRunning() {
		if err := s.cron.Stop(); err != nil {
			s.logger.Error("Failed to stop cron manager", zap.Error(err))
			errors = append(errors, err)
		}
	}

	if s.server.IsRunning() {
		if err := s.server.Stop(); err != nil {
			s.logger.Error("Failed to stop HTTP server", zap.Error(err))
			errors = append(errors, err)
		}
	}

	if s.tls != nil && s.tls.IsRunning() {
		if err := s.tls.Stop(); err != nil {
			s.logger.Error("Failed to stop TLS manager", zap.Error(err))
			errors = append(errors, err)
		}
	}

	s.upstream.Close()

	g, _ := errgroup.WithContext(ctx)

	for _, component := range []struct {
		name    string
		manager types.LifecycleManager
	}{
		{"cache manager", s.cache},
		{"metrics manager", s.metrics},
		{"health manager", s.health},
		{"auth provider manager", s.auth},
	} {
		if !component.manager.IsRunning() {
			continue
		}

		component := component
		g.Go(func() error {
			if err := component.manager.Stop(); err != nil {
				s.logger.Error("Failed to stop "+component.name, zap.Error(err))
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			s.logger.Warn("Component shutdown timeout, some components may not have stopped gracefully")
		default:
			errors = append(errors, err)
		}
	}

	if s.configManager != nil && s.configManager.IsRunning() {
		if err := s.configManager.Stop(); err != nil {
			s.logger.Error("Failed to stop config manager", zap.Error(err))
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return types.NewErrorf("errors during shutdown: %v", errors)
	}

	s.logger.Info("All components stopped successfully")

	if s.logger.IsRunning() {
		_ = s.logger.Stop()
	}

	return nil
}

func (s *Service) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case sig := <-sigChan:
			s.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			if s.transitionState(StateRunning, StateStopping) {
				s.cancel()
			}

		case <-s.ctx.Done():
			s.logger.Info("Service context cancelled")
		}

		signal.Stop(sigChan)
	}()
}

func (s *Service) contextMonitor() {
	defer s.wg.Done()
	defer close(s.done)

	<-s.ctx.Done()

	switch err := s.ctx.Err(); {
	case types.IsError(err, context.Canceled):
		s.logger.Info("Service shutdown: context cancelled")
	case types.IsError(err, context.DeadlineExceeded):
		s.logger.Warn("Service shutdown: context deadline exceeded")
	default:
		s.logger.Info("Service shutdown: context done")
	}
}
