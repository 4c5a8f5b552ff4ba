// Package types provides shared types, interfaces, and errors for the application.
package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for consistent error handling across the application.
// These errors can be checked with errors.Is() for type-safe error handling.
var (
	// Wait errors
	ErrElementTimeout = errors.New("element did not appear before timeout")
	ErrAdTimeout      = errors.New("advertisement still showing at timeout")

	// Page errors
	ErrPageClosed = errors.New("page is closed")

	// Preference store errors
	ErrStoreClosed      = errors.New("preference store is closed")
	ErrUnknownBackend   = errors.New("unknown preference backend")
	ErrInvalidPrefValue = errors.New("invalid preference value")

	// Daemon errors
	ErrAlreadyRunning = errors.New("another ytorigin instance holds the data directory lock")
	ErrTabNotFound    = errors.New("tab not found")
)

// Wait kinds reported by WaitError.
const (
	WaitKindElement = "element"
	WaitKindAd      = "ad"
)

// WaitError describes a bounded wait that ran out of time.
// It implements the error interface and supports error unwrapping.
type WaitError struct {
	Kind     string        // "element" or "ad"
	Selector string        // Selector that was being waited on
	Timeout  time.Duration // Configured deadline
	Err      error         // Underlying sentinel
}

// Error implements the error interface.
func (e *WaitError) Error() string {
	return fmt.Sprintf("timeout: %s %s not satisfied within %s", e.Kind, e.Selector, e.Timeout)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *WaitError) Unwrap() error {
	return e.Err
}

// NewElementTimeoutError creates an error for an element that never appeared.
func NewElementTimeoutError(selector string, timeout time.Duration) *WaitError {
	return &WaitError{
		Kind:     WaitKindElement,
		Selector: selector,
		Timeout:  timeout,
		Err:      ErrElementTimeout,
	}
}

// NewAdTimeoutError creates an error for an ad indicator that never cleared.
func NewAdTimeoutError(selector string, timeout time.Duration) *WaitError {
	return &WaitError{
		Kind:     WaitKindAd,
		Selector: selector,
		Timeout:  timeout,
		Err:      ErrAdTimeout,
	}
}

// StoreError provides detailed information about preference store failures.
type StoreError struct {
	Backend string // "sqlite", "redis", "memory"
	Op      string // "get", "set", "open"
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps a backend failure.
func NewStoreError(backend, op string, err error) *StoreError {
	return &StoreError{Backend: backend, Op: op, Err: err}
}
