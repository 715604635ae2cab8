// Package logger provides the process-wide structured logger. The core
// never uses log.Print/fmt.Print for business-logic output.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

var instance *zap.Logger

// InitError wraps a logger construction failure.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("logger: %s failed: %v", e.Op, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Init builds the global production logger (JSON encoding, info level).
func Init() error {
	l, err := zap.NewProduction()
	if err != nil {
		return &InitError{Op: "NewProduction", Err: err}
	}
	instance = l
	return nil
}

// InitDevelopment builds the global logger in human-readable console mode,
// for local runs and tests.
func InitDevelopment() error {
	l, err := zap.NewDevelopment()
	if err != nil {
		return &InitError{Op: "NewDevelopment", Err: err}
	}
	instance = l
	return nil
}

// Get returns the global logger, lazily falling back to a production
// logger if Init was never called.
func Get() *zap.Logger {
	if instance == nil {
		instance, _ = zap.NewProduction()
	}
	return instance
}

// MustGet returns the global logger or panics if Init has not run.
func MustGet() *zap.Logger {
	if instance == nil {
		panic("logger: not initialized, call Init() first")
	}
	return instance
}

// Sync flushes buffered log entries. Safe to call with a nil logger.
func Sync() {
	if instance != nil {
		_ = instance.Sync()
	}
}
