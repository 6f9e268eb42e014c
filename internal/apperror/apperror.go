// Package apperror defines the error taxonomy shared by every layer.
//
// ERROR CATEGORIES:
// Services and repositories never return HTTP status codes. They return
// errors that wrap one of the sentinels below, and the handler layer maps
// each sentinel to a response (redirect back to the form, 404 page, ...).
//
//	ErrValidation      → field errors shown on the originating form
//	ErrConflict        → a unique constraint rejected the write
//	ErrNotFound        → the id does not resolve to a record
//	ErrUnauthenticated → no valid session; redirect to /login
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// FieldErrors maps a form field name to its messages, in the order the
// rules produced them.
type FieldErrors map[string][]string

// Add appends a message for field.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// First returns the first message recorded for field, or "".
func (f FieldErrors) First(field string) string {
	if msgs := f[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Has reports whether field has at least one message.
func (f FieldErrors) Has(field string) bool {
	return len(f[field]) > 0
}

// Fields returns the field names that carry errors, sorted.
func (f FieldErrors) Fields() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Err returns nil when no field failed, otherwise an *AppError wrapping
// ErrValidation that carries the full set.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	names := f.Fields()
	return &AppError{
		Err:     ErrValidation,
		Message: f.First(names[0]),
		Field:   names[0],
		Fields:  f,
	}
}

type AppError struct {
	Err     error       // sentinel this error belongs to
	Message string      // Human-readable error message
	Field   string      // Optional: field causing the error
	Fields  FieldErrors // Optional: every failing field (validation only)
}

func (e *AppError) Error() string {
	if len(e.Fields) > 1 {
		parts := make([]string, 0, len(e.Fields))
		for _, name := range e.Fields.Fields() {
			parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], "; ")))
		}
		return strings.Join(parts, ", ")
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// FieldErrors returns the per-field messages of e. Errors that name a
// single Field (conflicts, ValidationFailed) are promoted to a one-entry
// set so handlers can treat both the same way.
func (e *AppError) FieldErrors() FieldErrors {
	if len(e.Fields) > 0 {
		return e.Fields
	}
	if e.Field != "" {
		return FieldErrors{e.Field: {e.Message}}
	}
	return nil
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  FieldErrors{field: {message}},
	}
}

// Conflict reports a unique constraint violation on field. message is
// what the user sees next to that field.
func Conflict(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// Unauthenticated is returned when a request carries no valid session.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// AsFieldErrors extracts per-field messages from err when it is a
// validation failure or a conflict bound to a field.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return nil, false
	}
	if !errors.Is(err, ErrValidation) && !errors.Is(err, ErrConflict) {
		return nil, false
	}
	fields := appErr.FieldErrors()
	return fields, len(fields) > 0
}
