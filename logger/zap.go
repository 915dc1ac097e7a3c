package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

const modulePath = "github.com/saiset-co/b2b-portal/"

// Options is the `logger.config` block.
type Options struct {
	Format string `json:"format"`
	Output string `json:"output"`
	File   string `json:"file"`
}

// ZapWrapper adapts a zap logger to types.Logger.
type ZapWrapper struct {
	Logger      *zap.Logger
	stackWriter io.Writer
}

func NewZapWrapper(logger *zap.Logger) *ZapWrapper {
	return &ZapWrapper{Logger: logger.WithOptions(zap.AddCallerSkip(1)), stackWriter: os.Stderr}
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapWrapper {
	return &ZapWrapper{Logger: zap.NewNop(), stackWriter: io.Discard}
}

func (z *ZapWrapper) Sync() error {
	return z.Logger.Sync()
}

func (z *ZapWrapper) Error(msg string, fields ...zap.Field) { z.Logger.Error(msg, fields...) }
func (z *ZapWrapper) Warn(msg string, fields ...zap.Field)  { z.Logger.Warn(msg, fields...) }
func (z *ZapWrapper) Info(msg string, fields ...zap.Field)  { z.Logger.Info(msg, fields...) }
func (z *ZapWrapper) Debug(msg string, fields ...zap.Field) { z.Logger.Debug(msg, fields...) }

func (z *ZapWrapper) With(fields ...zap.Field) types.Logger {
	return &ZapWrapper{Logger: z.Logger.With(fields...), stackWriter: z.stackWriter}
}

func (z *ZapWrapper) ErrorWithErrStack(msg string, err error, fields ...zap.Field) {
	if err == nil {
		z.Logger.Error(msg, fields...)
		return
	}

	all := make([]zap.Field, 0, len(fields)+2)
	all = append(all, zap.Error(err), zap.String("cause", errors.Cause(err).Error()))
	all = append(all, fields...)
	z.Logger.Error(msg, all...)

	if frames := portalFrames(err); len(frames) > 0 {
		fmt.Fprintf(z.stackWriter, "stack for %q:\n", msg)
		for _, frame := range frames {
			fmt.Fprintf(z.stackWriter, "  %s\n", frame)
		}
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// portalFrames returns "function file:line" for the frames of the deepest
// pkg/errors stack that belong to this module.
func portalFrames(err error) []string {
	var tracer stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			tracer = st
		}
	}
	if tracer == nil {
		return nil
	}

	var frames []string
	for _, frame := range tracer.StackTrace() {
		full := fmt.Sprintf("%+s", frame)
		if !strings.Contains(full, modulePath) || strings.Contains(full, modulePath+"types.") {
			continue
		}
		frames = append(frames, fmt.Sprintf("%n %s:%d", frame, frame, frame))
	}
	return frames
}

func newZap(level string, opts *Options, fields ...zap.Field) (*zap.Logger, error) {
	var zapConfig zap.Config
	if opts.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.DisableStacktrace = true
	zapConfig.Level = zap.NewAtomicLevelAt(parseLogLevel(level))

	switch opts.Output {
	case "stderr":
		zapConfig.OutputPaths = []string{"stderr"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	case "file":
		if err := ensureLogDir(opts.File); err != nil {
			return nil, err
		}
		zapConfig.OutputPaths = []string{opts.File}
		zapConfig.ErrorOutputPaths = []string{opts.File}
	default:
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	return zapConfig.Build(zap.AddCaller(), zap.Fields(fields...))
}

func parseOptions(config *types.LoggerConfig) (*Options, error) {
	opts := &Options{Format: "json", Output: "stdout"}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, opts); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal logger config")
		}
	}

	return opts, nil
}

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func ensureLogDir(logFile string) error {
	if logFile == "" {
		return types.ErrLogFileIsEmpty
	}

	dir := filepath.Dir(logFile)
	if dir == "." {
		return types.ErrLogFileWrongFormat
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.WrapError(err, "failed to create log directory")
	}
	return nil
}
