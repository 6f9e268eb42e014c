package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Each case checks that errors.Is() identifies the sentinel behind a
// constructor, including through fmt.Errorf("%w") wrapping.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("todo", 42),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("title", "The title field is required."),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("email", "The email has already been taken."),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthenticated wraps ErrUnauthenticated",
			err:       Unauthenticated("login required"),
			target:    ErrUnauthenticated,
			wantMatch: true,
		},
		{
			name:      "wrapped NotFound still matches",
			err:       fmt.Errorf("loading todo: %w", NotFound("todo", 7)),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("todo", 42),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "FieldErrors.Err matches ErrValidation",
			err:       FieldErrors{"body": {"The body field is required."}}.Err(),
			target:    ErrValidation,
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("todo", 42),
			wantMessage: "todo not found with id 42",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "The name field is required."),
			wantMessage: "The name field is required.",
		},
		{
			name:        "Conflict uses custom message",
			err:         Conflict("title", "Todo title should be unique"),
			wantMessage: "Todo title should be unique",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestFieldErrors_EmptyIsNil(t *testing.T) {
	if err := (FieldErrors{}).Err(); err != nil {
		t.Errorf("Err() on empty set = %v, want nil", err)
	}
}

func TestFieldErrors_KeepsOrderPerField(t *testing.T) {
	f := FieldErrors{}
	f.Add("title", "first")
	f.Add("title", "second")
	f.Add("body", "third")

	if got := f.First("title"); got != "first" {
		t.Errorf("First(title) = %q, want %q", got, "first")
	}
	if len(f["title"]) != 2 {
		t.Errorf("title has %d messages, want 2", len(f["title"]))
	}
	if !f.Has("body") || f.Has("name") {
		t.Error("Has() reported the wrong fields")
	}

	err := f.Err()
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Err() = %T, want *AppError", err)
	}
	// Fields are sorted, so "body" is the headline field.
	if appErr.Field != "body" {
		t.Errorf("Field = %q, want %q", appErr.Field, "body")
	}
}

func TestAsFieldErrors(t *testing.T) {
	t.Run("conflict is promoted to a field error", func(t *testing.T) {
		fields, ok := AsFieldErrors(fmt.Errorf("saving: %w", Conflict("email", "taken")))
		if !ok {
			t.Fatal("AsFieldErrors() ok = false, want true")
		}
		if fields.First("email") != "taken" {
			t.Errorf("email = %q, want %q", fields.First("email"), "taken")
		}
	})

	t.Run("not found is not a field error", func(t *testing.T) {
		if _, ok := AsFieldErrors(NotFound("todo", 1)); ok {
			t.Error("AsFieldErrors(NotFound) ok = true, want false")
		}
	})

	t.Run("plain errors are ignored", func(t *testing.T) {
		if _, ok := AsFieldErrors(errors.New("disk full")); ok {
			t.Error("AsFieldErrors(plain) ok = true, want false")
		}
	})
}

func TestUnwrap(t *testing.T) {
	err := NotFound("todo", 1)
	if err.Unwrap() != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), ErrNotFound)
	}
}
