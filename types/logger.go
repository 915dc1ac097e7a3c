package types

import (
	"go.uber.org/zap"
)

type LoggerManager interface {
	LifecycleManager
	Logger
}

type Logger interface {
	Error(msg string, fields ...zap.Field)
	// ErrorWithErrStack logs err and prints the portal frames of its
	// pkg/errors stack, when it carries one.
	ErrorWithErrStack(msg string, err error, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	// With returns a child logger that adds fields to every entry, used for
	// request-scoped logging.
	With(fields ...zap.Field) Logger
}
