// Package repository defines the persistence layer for accounts and the
// error values shared by its implementations.  Handlers never see these
// errors directly; the service layer translates them into API errors.
package repository

import "errors"

// ErrNotFound is returned when no account matches a lookup.
var ErrNotFound = errors.New("account not found")

// ErrConflict is returned when a write would violate a uniqueness
// constraint.  The field-specific errors below wrap it so callers can use
// errors.Is(err, ErrConflict) for any duplicate.
var ErrConflict = errors.New("conflict")

var (
	ErrDuplicateEmail    = &duplicateError{field: "email"}
	ErrDuplicateUsername = &duplicateError{field: "username"}
	ErrDuplicatePhone    = &duplicateError{field: "phone number"}
)

type duplicateError struct{ field string }

func (e *duplicateError) Error() string { return e.field + " already exists" }
func (e *duplicateError) Unwrap() error { return ErrConflict }

// Field names the column that caused the conflict.
func (e *duplicateError) Field() string { return e.field }
