package redislite

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Error types for specific failure scenarios
var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClosed indicates the engine has been closed
	ErrClosed = errors.New("engine is closed")
)

// SnapshotError reports a snapshot that could not be loaded. It is never
// fatal: the engine keeps serving whatever was loaded before the failure.
type SnapshotError struct {
	Dir      string
	Filename string
	Err      error
}

// Error implements the error interface
func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot error for %s: %v", filepath.Join(e.Dir, e.Filename), e.Err)
}

// Unwrap returns the wrapped error
func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// ConnectionError represents a failure to bind the listening address
type ConnectionError struct {
	Addr string
	Err  error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error on %s: %v", e.Addr, e.Err)
}

// Unwrap returns the wrapped error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}
