package logger

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
)

// Manager owns the process logger. The service name and version are
// attached to every entry.
type Manager struct {
	*ZapWrapper
	output string
	state  atomic.Value
}

// NewManager builds the zap logger described by config. fields are added to
// every entry.
func NewManager(config *types.LoggerConfig, fields ...zap.Field) (*Manager, error) {
	if config == nil {
		return nil, types.ErrLoggerConfigInvalid
	}

	switch config.Type {
	case "", "zap":
	default:
		return nil, types.Errorf(types.ErrLoggerTypeUnknown, "logger type: %s", config.Type)
	}

	opts, err := parseOptions(config)
	if err != nil {
		return nil, err
	}

	zl, err := newZap(config.Level, opts, fields...)
	if err != nil {
		return nil, types.WrapError(err, "failed to create logger")
	}

	m := &Manager{
		ZapWrapper: NewZapWrapper(zl),
		output:     opts.Output,
	}
	m.state.Store(StateStopped)

	return m, nil
}

func (m *Manager) Start() error {
	if !m.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServerAlreadyRunning
	}
	return nil
}

// Stop flushes buffered entries. Syncing a terminal fails on most
// platforms, so only file output reports sync errors.
func (m *Manager) Stop() error {
	if !m.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrServerNotRunning
	}

	if err := m.Sync(); err != nil && m.output == "file" {
		return types.WrapError(err, "failed to flush logger")
	}
	return nil
}

func (m *Manager) IsRunning() bool {
	return m.state.Load().(State) == StateRunning
}
