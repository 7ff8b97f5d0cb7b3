// Package logger is the runner-wide log sink: a rotated JSON file plus an
// optional console stream, behind printf-style helpers.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	base    *zap.Logger
	sugar   *zap.SugaredLogger
	logFile *lumberjack.Logger
	mu      sync.Mutex
)

// Options tunes the sink created by InitWithOptions.
type Options struct {
	Level      string    // debug, info, warn, error (default debug)
	Console    io.Writer // mirror human-readable lines here when set
	MaxSizeMB  int       // rotate after this size (default 20)
	MaxBackups int       // rotated files kept (default 5)
	MaxAgeDays int       // days rotated files are kept (default 14)
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	return InitWithOptions(logPath, Options{})
}

// InitWithOptions initializes the global logger with a rotated JSON file at
// logPath and, optionally, a console core.
func InitWithOptions(logPath string, opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	level := zap.NewAtomicLevelAt(zap.DebugLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	logFile = &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    orDefault(opts.MaxSizeMB, 20),
		MaxBackups: orDefault(opts.MaxBackups, 5),
		MaxAge:     orDefault(opts.MaxAgeDays, 14),
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(logFile), level),
	}
	if opts.Console != nil {
		consoleCfg := encCfg
		consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.Lock(zapcore.AddSync(opts.Console)),
			level,
		))
	}

	setLocked(zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)))
	return nil
}

// Replace installs l as the global logger and returns a function restoring
// the previous one. Intended for tests using zaptest/observer.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	defer mu.Unlock()

	prev := base
	setLocked(l)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		setLocked(prev)
	}
}

func setLocked(l *zap.Logger) {
	base = l
	if l == nil {
		sugar = nil
		return
	}
	sugar = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	if base != nil {
		_ = base.Sync()
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	setLocked(nil)
}

// L returns the structured logger. It is a no-op logger until Init is called.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	if base == nil {
		return zap.NewNop()
	}
	return base
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if sugar != nil {
		sugar.Infof(format, v...)
	}
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if sugar != nil {
		sugar.Debugf(format, v...)
	}
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if sugar != nil {
		sugar.Errorf(format, v...)
	}
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if sugar != nil {
		sugar.Warnf(format, v...)
	}
}

// GetWriter returns the underlying log file writer, e.g. for the automation
// server's stdout.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
