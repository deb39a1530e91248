package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar = newConsole(zapcore.InfoLevel).Sugar()

func newConsole(level zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= level && l < zapcore.WarnLevel
		})),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= level && l >= zapcore.WarnLevel
		})),
	)
	return zap.New(core)
}

// Init replaces the package logger.
// format is "console" (stdout/stderr split, human readable) or "json".
func Init(level string, format string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var l *zap.Logger
	switch strings.ToLower(format) {
	case "", "console":
		l = newConsole(lvl)
	case "json":
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		l, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to build json logger: %w", err)
		}
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	_ = sugar.Sync()
	sugar = l.Sugar()
	return nil
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	_ = sugar.Sync()
}

// Debug logs verbose diagnostics (retry decisions, upstream calls)
func Debug(format string, v ...interface{}) {
	sugar.Debugf(format, v...)
}

// Info logs informational messages to stdout
func Info(format string, v ...interface{}) {
	sugar.Infof(format, v...)
}

// Warn logs warning messages to stderr
func Warn(format string, v ...interface{}) {
	sugar.Warnf(format, v...)
}

// Error logs error messages to stderr
func Error(format string, v ...interface{}) {
	sugar.Errorf(format, v...)
}

// Fatal logs fatal error messages to stderr and exits with status 1
func Fatal(format string, v ...interface{}) {
	sugar.Fatalf(format, v...)
}
