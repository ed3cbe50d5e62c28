package domain

import (
	"errors"
	"strings"
)

// Error kinds. Every error surfaced by the catalogue wraps exactly one of
// these so callers can classify it with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrAsset      = errors.New("image asset gateway failure")
	ErrStore      = errors.New("store failure")
)

// Error is a catalogue error with a client-facing message
type Error struct {
	Kind    error
	Message string
}

// NewError creates an error of the given kind
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// FieldError describes a single invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects per-field input problems
type ValidationError struct {
	Message string
	Fields  []FieldError
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Message: message,
		Fields:  []FieldError{{Field: field, Message: message}},
	}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}

	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
