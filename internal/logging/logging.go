// Package logging provides the shared zap logger for companion.
// Subsystems obtain named child loggers (gateway, relationship, store, api)
// so log output stays attributable under concurrent chat turns.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	root *zap.Logger = zap.NewNop()
)

// Init builds the process-wide logger. Verbose enables debug level.
// Safe to call once at startup; later Named calls pick up the new root.
func Init(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Development = true
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	mu.Lock()
	root = logger
	mu.Unlock()
	return logger, nil
}

// SetLogger replaces the root logger. Tests use this with zaptest or a nop.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	root = l
	mu.Unlock()
}

// Named returns a child logger for a subsystem.
func Named(subsystem string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(subsystem)
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
