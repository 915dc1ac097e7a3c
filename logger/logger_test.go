package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saiset-co/b2b-portal/types"
)

func observed(level zapcore.Level) (*ZapWrapper, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewZapWrapper(zap.New(core)), logs
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel("verbose"))
}

func TestZapWrapperLevels(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)

	l.Debug("hidden")
	l.Info("shown", zap.String("key", "value"))
	l.Warn("careful")
	l.Error("broken")

	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
	assert.Equal(t, "value", logs.All()[0].ContextMap()["key"])
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[2].Level)
}

func TestWithAddsFields(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	child := l.With(zap.String("request_id", "abc"))
	child.Info("scoped")
	l.Info("unscoped")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "abc", logs.All()[0].ContextMap()["request_id"])
	assert.NotContains(t, logs.All()[1].ContextMap(), "request_id")
}

func TestErrorWithErrStack(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)
	var stack bytes.Buffer
	l.stackWriter = &stack

	l.ErrorWithErrStack("upstream failed", errors.Wrap(errors.New("timeout"), "fetch order"), zap.Int("status", 502))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "fetch order: timeout", fields["error"])
	assert.Equal(t, "timeout", fields["cause"])
	assert.Equal(t, int64(502), fields["status"])
	assert.Contains(t, stack.String(), `stack for "upstream failed":`)
	assert.Contains(t, stack.String(), "TestErrorWithErrStack logger_test.go:")

	stack.Reset()
	l.ErrorWithErrStack("plain", nil)
	assert.Equal(t, 2, logs.Len())
	assert.Empty(t, stack.String())
}

func TestErrorWithErrStackSkipsForeignStacks(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)
	var stack bytes.Buffer
	l.stackWriter = &stack

	l.ErrorWithErrStack("plain error", os.ErrNotExist)

	require.Equal(t, 1, logs.Len())
	assert.Empty(t, stack.String())
}

func TestNewManager(t *testing.T) {
	_, err := NewManager(nil)
	assert.ErrorIs(t, err, types.ErrLoggerConfigInvalid)

	_, err = NewManager(&types.LoggerConfig{Type: "syslog", Level: "info"})
	assert.ErrorIs(t, err, types.ErrLoggerTypeUnknown)

	m, err := NewManager(&types.LoggerConfig{
		Level:  "error",
		Config: map[string]interface{}{"format": "json", "output": "stderr"},
	})
	require.NoError(t, err)

	assert.False(t, m.IsRunning())
	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	assert.ErrorIs(t, m.Start(), types.ErrServerAlreadyRunning)
	require.NoError(t, m.Stop())
	assert.False(t, m.IsRunning())
	assert.ErrorIs(t, m.Stop(), types.ErrServerNotRunning)
}

func TestManagerWritesBaseFields(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "portal.log")

	m, err := NewManager(&types.LoggerConfig{
		Type:   "zap",
		Level:  "info",
		Config: map[string]interface{}{"format": "json", "output": "file", "file": file},
	}, zap.String("service", "b2b-portal"), zap.String("version", "1.2.3"))
	require.NoError(t, err)
	require.NoError(t, m.Start())

	m.With(zap.String("request_id", "r-1")).Info("written")
	require.NoError(t, m.Stop())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"b2b-portal"`)
	assert.Contains(t, string(data), `"version":"1.2.3"`)
	assert.Contains(t, string(data), `"request_id":"r-1"`)
	assert.Contains(t, string(data), `"msg":"written"`)
}

func TestFileOutputNeedsDirectory(t *testing.T) {
	_, err := newZap("info", &Options{Output: "file"})
	assert.ErrorIs(t, err, types.ErrLogFileIsEmpty)

	_, err = newZap("info", &Options{Output: "file", File: "portal.log"})
	assert.ErrorIs(t, err, types.ErrLogFileWrongFormat)

	file := filepath.Join(t.TempDir(), "logs", "portal.log")
	zl, err := newZap("info", &Options{Format: "json", Output: "file", File: file})
	require.NoError(t, err)
	zl.Info("written")
	assert.NoError(t, zl.Sync())
}
