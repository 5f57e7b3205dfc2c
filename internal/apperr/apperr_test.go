package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindMatching(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"validation", Validation("append", "text required"), ErrValidation},
		{"not found", NotFound("accept", "edge %q", "e1"), ErrNotFound},
		{"invalid op", InvalidOperation("edit", "not text"), ErrInvalidOperation},
		{"conflict", Conflict("resolve", errors.New("unique")), ErrConflict},
		{"transient", Transient("query", errors.New("busy")), ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.want)
			}
			if errors.Is(wrapped, ErrTransient) && tt.want != ErrTransient {
				t.Errorf("%v unexpectedly matches ErrTransient", wrapped)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("get", "user %q", "u1"))
	if got := KindOf(err); got != KindNotFound {
		t.Errorf("KindOf = %q, want %q", got, KindNotFound)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestErrorMessage(t *testing.T) {
	err := Transient("list", errors.New("database is locked"))
	want := "list: temporary store failure: database is locked"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
