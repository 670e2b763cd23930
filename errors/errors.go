/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrNotFound is returned by backends when an entity does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when creating an entity under a key that is taken
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrBackend is matched by every persistence failure (I/O, corrupt data, encoding)
	ErrBackend = errors.New("backend failure")

	// ErrUnavailable is returned when accessing the data of a record that did not resolve
	ErrUnavailable = errors.New("record unavailable")

	// ErrAllocatorExhausted is the panic value raised when the uid space runs out
	ErrAllocatorExhausted = errors.New("uid allocator exhausted")

	// ErrNoIndexMap is returned when no index map is found for a type
	ErrNoIndexMap = errors.New("no index map found for type")
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyExistsError represents a duplicate key on creation
type AlreadyExistsError struct {
	Type string
	Key  string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Type, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// BackendError wraps a failure of the persistence backend.
// It is never a not-found outcome.
type BackendError struct {
	Op   string
	Type string
	Key  string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Type, e.Err)
	}
	return fmt.Sprintf("%s %s with key %q: %v", e.Op, e.Type, e.Key, e.Err)
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// UnavailableError is returned when a record that did not resolve is accessed
type UnavailableError struct {
	Type string
	Key  string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s with key %q is unavailable", e.Type, e.Key)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(entityType, key string) error {
	return &NotFoundError{Type: entityType, Key: key}
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(entityType, key string) error {
	return &AlreadyExistsError{Type: entityType, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewBackendError creates a new BackendError. A nil err yields nil.
func NewBackendError(op, entityType, key string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Type: entityType, Key: key, Err: err}
}

// NewUnavailableError creates a new UnavailableError
func NewUnavailableError(entityType, key string) error {
	return &UnavailableError{Type: entityType, Key: key}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsBackendFailure checks if an error is a backend failure
func IsBackendFailure(err error) bool {
	return errors.Is(err, ErrBackend)
}

// IsUnavailable checks if an error comes from accessing an unavailable record
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
