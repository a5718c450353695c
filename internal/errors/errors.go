// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrBufferFull          = errors.New("buffer is full")
	ErrTransportClosed     = errors.New("transport is closed")
	ErrControllerClosed    = errors.New("rotation controller is closed")
	ErrInvalidEvent        = errors.New("invalid event")
	ErrSinkClosed          = errors.New("sink is closed")
	ErrWriterClosed        = errors.New("storage writer is closed")
	ErrConnectionLost      = errors.New("connection lost")
	ErrDispatchTimeout     = errors.New("dispatch timed out")
	ErrDiscardedOnShutdown = errors.New("discarded on shutdown")
	ErrSourceClosed        = errors.New("source is closed")
	ErrPublisherClosed     = errors.New("publisher is closed")
	ErrLoggerClosed        = errors.New("logger is closed")
)

// AdmissionError reports entries evicted because a transport buffer was full.
type AdmissionError struct {
	Transport string
	Evicted   int
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("admission error: transport=%s evicted=%d: %v",
		e.Transport, e.Evicted, ErrBufferFull)
}

func (e *AdmissionError) Unwrap() error {
	return ErrBufferFull
}

// DispatchError represents a sink failure for one event of a chunk.
type DispatchError struct {
	Transport string
	ChunkID   uint64
	EventID   string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch error: transport=%s chunk=%d event_id=%s: %v",
		e.Transport, e.ChunkID, e.EventID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsRetryable reports true: a failed dispatch is retried until the retry limit.
func (e *DispatchError) IsRetryable() bool {
	return true
}

// RetryExhaustedError marks an event dropped after its final failed attempt.
type RetryExhaustedError struct {
	EventID  string
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted: event_id=%s attempts=%d: %v",
		e.EventID, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// IsRetryable reports false.
func (e *RetryExhaustedError) IsRetryable() bool {
	return false
}

// FileIOError represents a failed open, write, rename or delete on a log file.
type FileIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("file error: op=%s path=%s: %v", e.Op, e.Path, e.Err)
}

func (e *FileIOError) Unwrap() error {
	return e.Err
}

// ProcessingError represents an error while handling an event from a source.
type ProcessingError struct {
	Source  string
	EventID string
	Err     error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error: source=%s event_id=%s: %v",
		e.Source, e.EventID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ValidationError represents an event validation failure.
type ValidationError struct {
	EventID string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: event_id=%s field=%s: %s",
		e.EventID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidEvent
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	if errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrDispatchTimeout) {
		return true
	}

	return false
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	// Write and upload operations are generally retryable
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// IsRetryable determines if a ProcessingError is retryable.
func (e *ProcessingError) IsRetryable() bool {
	return IsRetryable(e.Err)
}

// IsRetryable determines if a FileIOError is retryable. Writes and renames
// may succeed on the next size check; failed opens of a missing directory will not.
func (e *FileIOError) IsRetryable() bool {
	return e.Op == "write" || e.Op == "rename" || e.Op == "remove" || e.Op == "sync"
}
