package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the identity layer
type ErrorType string

const (
	// Caller errors
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	ErrorTypeSerialization   ErrorType = "serialization"

	// Collaborator errors
	ErrorTypeRepository ErrorType = "repository"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinels for errors.Is checks against the typed errors below
var (
	ErrInvalidArgument          = errors.New("invalid argument")
	ErrSerializationUnsupported = errors.New("serialization unsupported")
)

// ArgumentError reports a precondition failure at the call site.
// It always indicates a caller bug.
type ArgumentError struct {
	Type      ErrorType
	Operation string
	Argument  string
	Reason    string
	Timestamp time.Time
}

// NewArgumentError creates a new argument error
func NewArgumentError(op, arg, reason string) *ArgumentError {
	return &ArgumentError{
		Type:      ErrorTypeInvalidArgument,
		Operation: op,
		Argument:  arg,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid argument %s: %s", e.Operation, e.Argument, e.Reason)
}

// Is matches ErrInvalidArgument
func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// SerializationError is returned when a handle without a stable
// cross-process representation is written to a stream.
type SerializationError struct {
	Type      ErrorType
	Handle    string
	Timestamp time.Time
}

// NewSerializationError creates a new serialization error
func NewSerializationError(handle string) *SerializationError {
	return &SerializationError{
		Type:      ErrorTypeSerialization,
		Handle:    handle,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize transient handle %s", e.Handle)
}

// Is matches ErrSerializationUnsupported
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerializationUnsupported
}

// RepositoryError represents a failure inside a repository implementation
type RepositoryError struct {
	Type       ErrorType
	Operation  string
	Key        string
	Underlying error
	Timestamp  time.Time
}

// NewRepositoryError creates a new repository error
func NewRepositoryError(op, key string, err error) *RepositoryError {
	return &RepositoryError{
		Type:       ErrorTypeRepository,
		Operation:  op,
		Key:        key,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *RepositoryError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("repository %s failed for %s: %v", e.Operation, e.Key, e.Underlying)
	}
	return fmt.Sprintf("repository %s failed: %v", e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *RepositoryError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
