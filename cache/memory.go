package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
)

type MemoryState int32

const (
	MemoryStateStopped MemoryState = iota
	MemoryStateStarting
	MemoryStateRunning
	MemoryStateStopping
)

const (
	DefaultTTL             = 5 * time.Minute
	DefaultCleanupInterval = time.Minute
)

// MemoryCache is a process-local TTL store. Entries are visible while
// now-CreatedAt <= TTL; expired entries are dropped lazily by Get and
// eagerly by the sweep routine.
type MemoryCache struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	data            map[string]*types.CacheEntry
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	hits            uint64
	misses          uint64
	expirations     uint64
	mu              sync.RWMutex
	state           atomic.Value
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
	shutdownTimeout time.Duration
}

func NewMemoryCache(ctx context.Context, logger types.Logger, config *types.CacheConfig) *MemoryCache {
	cacheCtx, cancel := context.WithCancel(ctx)

	cache := &MemoryCache{
		ctx:             cacheCtx,
		cancel:          cancel,
		logger:          logger,
		data:            make(map[string]*types.CacheEntry),
		defaultTTL:      DefaultTTL,
		cleanupInterval: DefaultCleanupInterval,
		now:             time.Now,
		shutdownTimeout: 5 * time.Second,
	}

	if config != nil {
		if config.DefaultTTL > 0 {
			cache.defaultTTL = config.DefaultTTL
		}
		if config.CleanupInterval > 0 {
			cache.cleanupInterval = config.CleanupInterval
		}
	}

	cache.state.Store(MemoryStateStopped)

	return cache
}

func (m *MemoryCache) Get(key string) (interface{}, bool) {
	now := m.now()

	m.mu.RLock()
	entry, exists := m.data[key]
	if !exists {
		m.mu.RUnlock()
		atomic.AddUint64(&m.misses, 1)
		return nil, false
	}

	if isExpired(entry, now) {
		m.mu.RUnlock()

		m.mu.Lock()
		// The entry may have been replaced between the two locks.
		if current, ok := m.data[key]; ok && isExpired(current, now) {
			delete(m.data, key)
			atomic.AddUint64(&m.expirations, 1)
		}
		m.mu.Unlock()

		atomic.AddUint64(&m.misses, 1)
		return nil, false
	}

	value := entry.Value
	m.mu.RUnlock()

	atomic.AddUint64(&m.hits, 1)

	return value, true
}

func (m *MemoryCache) Set(key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		m.logger.Error("Attempted to set cache entry with empty key")
		return types.ErrCacheKeyEmpty
	}

	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	entry := &types.CacheEntry{
		Value:     value,
		TTL:       ttl,
		CreatedAt: m.now(),
	}

	m.mu.Lock()
	m.data[key] = entry
	m.mu.Unlock()

	return nil
}

func (m *MemoryCache) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()

	return nil
}

func (m *MemoryCache) Invalidate(pattern types.KeyPattern) (int, error) {
	if pattern == nil {
		return 0, types.ErrCachePatternInvalid
	}

	m.mu.Lock()
	removed := 0
	for key := range m.data {
		if pattern.Match(key) {
			delete(m.data, key)
			removed++
		}
	}
	m.mu.Unlock()

	m.logger.Debug("Cache invalidated",
		zap.String("pattern", pattern.String()),
		zap.Int("removed", removed))

	return removed, nil
}

func (m *MemoryCache) Clear() error {
	m.mu.Lock()
	cleared := len(m.data)
	m.data = make(map[string]*types.CacheEntry)
	m.mu.Unlock()

	m.logger.Info("Memory cache cleared", zap.Int("cleared_entries", cleared))

	return nil
}

// Stats lists live keys. Expired entries still waiting for the sweep are not reported.
func (m *MemoryCache) Stats() types.CacheStats {
	now := m.now()

	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for key, entry := range m.data {
		if !isExpired(entry, now) {
			keys = append(keys, key)
		}
	}
	m.mu.RUnlock()

	sort.Strings(keys)

	return types.CacheStats{Size: len(keys), Keys: keys}
}

// Len reports the number of stored entries including expired ones not yet swept.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryCache) Start() error {
	if !m.transitionState(MemoryStateStopped, MemoryStateStarting) {
		m.logger.Warn("Memory cache is already running")
		return types.ErrServerAlreadyRunning
	}

	m.stopCleanup = make(chan struct{})
	m.cleanupDone = make(chan struct{})

	go m.startCleanupRoutine()

	m.setState(MemoryStateRunning)

	m.logger.Info("Memory cache started",
		zap.Duration("default_ttl", m.defaultTTL),
		zap.Duration("cleanup_interval", m.cleanupInterval))

	return nil
}

func (m *MemoryCache) Stop() error {
	if !m.transitionState(MemoryStateRunning, MemoryStateStopping) {
		m.logger.Warn("Memory cache is not running")
		return types.ErrServerNotRunning
	}

	defer m.setState(MemoryStateStopped)

	close(m.stopCleanup)

	select {
	case <-m.cleanupDone:
		m.logger.Debug("Cleanup routine stopped")
	case <-time.After(m.shutdownTimeout):
		m.logger.Warn("Cleanup routine stop timeout")
	}

	m.mu.Lock()
	entriesCount := len(m.data)
	m.data = make(map[string]*types.CacheEntry)
	m.mu.Unlock()

	m.logger.Info("Memory cache stopped", zap.Int("cleared_entries", entriesCount))

	return nil
}

func (m *MemoryCache) IsRunning() bool {
	return m.getState() == MemoryStateRunning
}

func (m *MemoryCache) getState() MemoryState {
	return m.state.Load().(MemoryState)
}

func (m *MemoryCache) setState(newState MemoryState) bool {
	currentState := m.getState()
	return m.state.CompareAndSwap(currentState, newState)
}

func (m *MemoryCache) transitionState(from, to MemoryState) bool {
	return m.state.CompareAndSwap(from, to)
}

// sweep removes every entry whose age exceeds its TTL and returns how many were dropped.
func (m *MemoryCache) sweep() int {
	now := m.now()

	m.mu.Lock()
	expired := 0
	for key, entry := range m.data {
		if isExpired(entry, now) {
			delete(m.data, key)
			expired++
		}
	}
	m.mu.Unlock()

	if expired > 0 {
		atomic.AddUint64(&m.expirations, uint64(expired))
		m.logger.Debug("Cleanup completed", zap.Int("expired_entries", expired))
	}

	return expired
}

func (m *MemoryCache) startCleanupRoutine() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Debug("Cleanup routine stopped by context")
			return
		case <-m.stopCleanup:
			m.logger.Debug("Cleanup routine stopped by signal")
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func isExpired(entry *types.CacheEntry, now time.Time) bool {
	return now.Sub(entry.CreatedAt) > entry.TTL
}
