package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
)

const defaultCheckTimeout = 5 * time.Second

type Manager struct {
	logger       types.Logger
	service      types.ServiceInfo
	checkers     map[string]types.HealthChecker
	startTime    time.Time
	checkTimeout time.Duration
	mu           sync.RWMutex
	state        atomic.Int32
}

func NewManager(logger types.Logger, service types.ServiceInfo) *Manager {
	return &Manager{
		logger:       logger,
		service:      service,
		checkers:     make(map[string]types.HealthChecker),
		checkTimeout: defaultCheckTimeout,
	}
}

func (hm *Manager) RegisterChecker(name string, checker types.HealthChecker) {
	if checker == nil {
		return
	}

	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.checkers[name] = checker
}

func (hm *Manager) Start() error {
	if !hm.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return types.ErrServerAlreadyRunning
	}

	hm.startTime = time.Now()
	hm.logger.Info("Health manager started")
	return nil
}

func (hm *Manager) Stop() error {
	if !hm.state.CompareAndSwap(int32(StateRunning), int32(StateStopped)) {
		return types.ErrServerNotRunning
	}

	hm.logger.Info("Health manager stopped")
	return nil
}

func (hm *Manager) IsRunning() bool {
	return State(hm.state.Load()) == StateRunning
}

// Check runs every checker concurrently. A checker that panics or outlives
// the check timeout is reported unhealthy.
func (hm *Manager) Check(ctx context.Context) types.HealthReport {
	hm.mu.RLock()
	checkers := make(map[string]types.HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		checkers[name] = checker
	}
	hm.mu.RUnlock()

	results := make(map[string]types.HealthCheck, len(checkers))
	var resultMu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)

	for name, checker := range checkers {
		name, checker := name, checker
		g.Go(func() error {
			result := hm.executeCheck(gCtx, name, checker)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	return hm.buildReport(results)
}

func (hm *Manager) executeCheck(ctx context.Context, name string, checker types.HealthChecker) types.HealthCheck {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, hm.checkTimeout)
	defer cancel()

	resultChan := make(chan types.HealthCheck, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- types.HealthCheck{
					Status:  types.StatusUnhealthy,
					Message: fmt.Sprintf("health check panicked: %v", r),
				}
			}
		}()

		resultChan <- checker(checkCtx)
	}()

	var result types.HealthCheck
	select {
	case result = <-resultChan:
	case <-checkCtx.Done():
		result = types.HealthCheck{
			Status:  types.StatusUnhealthy,
			Message: "health check timeout",
		}
	}

	result.Name = name
	result.LastCheck = time.Now()
	result.Duration = time.Since(start)

	if result.Status == types.StatusUnhealthy {
		hm.logger.Warn("Health check failed", zap.String("check", name), zap.String("message", result.Message))
	}

	return result
}

func (hm *Manager) buildReport(results map[string]types.HealthCheck) types.HealthReport {
	summary := types.HealthSummary{Total: len(results)}

	overallStatus := types.StatusHealthy
	for _, result := range results {
		switch result.Status {
		case types.StatusHealthy:
			summary.Healthy++
		case types.StatusUnhealthy:
			summary.Unhealthy++
			overallStatus = types.StatusUnhealthy
		default:
			summary.Unknown++
			if overallStatus == types.StatusHealthy {
				overallStatus = types.StatusUnknown
			}
		}
	}

	var uptime time.Duration
	if !hm.startTime.IsZero() {
		uptime = time.Since(hm.startTime)
	}

	return types.HealthReport{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Uptime:    uptime,
		Service:   hm.service,
		Checks:    results,
		Summary:   summary,
	}
}

// Handler serves the health report. Unhealthy reports answer 503 so load
// balancers can act on the status code alone.
func (hm *Manager) Handler() types.FastHTTPHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !hm.IsRunning() {
			utils.WriteError(ctx, fasthttp.StatusServiceUnavailable, types.ErrHealthIsNotRunning.Error())
			return
		}

		report := hm.Check(context.Background())

		status := fasthttp.StatusOK
		if report.Status == types.StatusUnhealthy {
			status = fasthttp.StatusServiceUnavailable
		}

		utils.WriteJSON(ctx, status, report)
	}
}

func (hm *Manager) VersionHandler() types.FastHTTPHandler {
	return func(ctx *fasthttp.RequestCtx) {
		info := GetBuildInfo()
		if hm.service.Version != "" {
			info.Version = hm.service.Version
		}
		utils.WriteJSON(ctx, fasthttp.StatusOK, info)
	}
}
