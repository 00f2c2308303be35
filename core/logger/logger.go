// Package logger provides structured logging for accountguard.
//
// This package wraps Uber's zap logger. It keeps a process-wide Log used by
// the command-line tools, while library components take a *zap.Logger
// through their options and fall back to Log (or a no-op logger) when none is
// given.
//
//	logger.InitLogger("debug") // Options: debug, info, warn, error
//
//	logger.Log.Warn("account locked",
//	    zap.String("email", email),
//	    zap.Time("locked_until", until),
//	)
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log starts as a no-op logger so library code never dereferences nil.
var Log = zap.NewNop()

// New builds a production zap logger at the given level. Unknown levels fall
// back to info.
func New(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func InitLogger(level string) {
	l, err := New(level)
	if err != nil {
		panic(err)
	}
	Log = l
}

// OrDefault returns l, or the package logger when l is nil.
func OrDefault(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return Log
}
