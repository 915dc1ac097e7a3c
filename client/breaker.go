package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
)

type CircuitBreakerState int32

const (
	StateBreakerClosed CircuitBreakerState = iota
	StateBreakerOpen
	StateBreakerHalfOpen
)

const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 30 * time.Second
	defaultHalfOpenRequests = 1
)

// CircuitBreaker stops calling the upstream after FailureThreshold
// consecutive failures. After RecoveryTimeout it lets trial requests through
// and closes again once HalfOpenRequests of them succeeded.
type CircuitBreaker struct {
	config    types.CircuitBreakerConfig
	logger    types.Logger
	name      string
	now       func() time.Time
	mu        sync.Mutex
	state     CircuitBreakerState
	failures  int
	successes int
	openedAt  time.Time
}

func NewCircuitBreaker(config *types.CircuitBreakerConfig, logger types.Logger, name string) *CircuitBreaker {
	if config == nil || !config.Enabled {
		return nil
	}

	cfg := *config
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = defaultRecoveryTimeout
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = defaultHalfOpenRequests
	}

	return &CircuitBreaker{
		config: cfg,
		logger: logger,
		name:   name,
		now:    time.Now,
		state:  StateBreakerClosed,
	}
}

// CanExecute is safe on a nil breaker, which always allows calls.
func (cb *CircuitBreaker) CanExecute() bool {
	if cb == nil {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateBreakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.RecoveryTimeout {
			return false
		}
		cb.transitionToHalfOpen()
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateBreakerClosed:
		cb.failures = 0
	case StateBreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenRequests {
			cb.transitionToClosed()
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateBreakerClosed:
		cb.failures++
		cb.logger.Debug("Failure recorded in closed state",
			zap.String("upstream", cb.name),
			zap.Int("failures", cb.failures),
			zap.Int("threshold", cb.config.FailureThreshold))

		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionToOpen()
		}
	case StateBreakerHalfOpen:
		cb.transitionToOpen()
	}
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	if cb == nil {
		return StateBreakerClosed
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

func (cb *CircuitBreaker) StateString() string {
	if cb == nil {
		return "disabled"
	}
	return stateToString(cb.State())
}

func (cb *CircuitBreaker) Reset() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transitionToClosed()
}

func (cb *CircuitBreaker) transitionToClosed() {
	if cb.state != StateBreakerClosed {
		cb.logger.Info("Circuit breaker closed", zap.String("upstream", cb.name))
	}
	cb.state = StateBreakerClosed
	cb.failures = 0
	cb.successes = 0
}

func (cb *CircuitBreaker) transitionToOpen() {
	cb.state = StateBreakerOpen
	cb.openedAt = cb.now()
	cb.successes = 0
	cb.logger.Warn("Circuit breaker opened",
		zap.String("upstream", cb.name),
		zap.Int("failures", cb.failures),
		zap.Duration("recovery_timeout", cb.config.RecoveryTimeout))
}

func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.state = StateBreakerHalfOpen
	cb.successes = 0
	cb.logger.Info("Circuit breaker transitioned to half-open", zap.String("upstream", cb.name))
}

func stateToString(state CircuitBreakerState) string {
	switch state {
	case StateBreakerClosed:
		return "closed"
	case StateBreakerOpen:
		return "open"
	case StateBreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// IsCircuitBreakerFailure reports whether an attempt counts against the
// upstream's health. Client errors other than 408/429 do not.
func IsCircuitBreakerFailure(statusCode int, err error) bool {
	if err != nil {
		return true
	}

	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func IsRetryableError(statusCode int, err error) bool {
	if err != nil {
		return isNetworkError(err)
	}

	switch {
	case statusCode == 408, statusCode == 429:
		return true
	case statusCode >= 500:
		return true
	default:
		return false
	}
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, fasthttp.ErrTimeout) ||
		errors.Is(err, fasthttp.ErrConnectionClosed) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EPIPE)
}
