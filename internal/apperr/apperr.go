// Package apperr defines the typed error taxonomy shared by the domain
// services and mapped to status codes at the request boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindInvalidOperation Kind = "invalid_operation"
	KindConflict         Kind = "conflict"
	KindTransient        Kind = "transient"
)

// Sentinels usable with errors.Is.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrInvalidOperation = &Error{Kind: KindInvalidOperation}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrTransient        = &Error{Kind: KindTransient}
)

// Error is a classified domain error.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input.
func Validation(op, format string, args ...any) error {
	return newf(KindValidation, op, format, args...)
}

// NotFound reports a missing referenced entity.
func NotFound(op, format string, args ...any) error {
	return newf(KindNotFound, op, format, args...)
}

// InvalidOperation reports an illegal transition between valid entities.
func InvalidOperation(op, format string, args ...any) error {
	return newf(KindInvalidOperation, op, format, args...)
}

// Conflict reports a lost race on a uniqueness constraint.
func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Msg: "uniqueness conflict", Err: err}
}

// Transient wraps a retryable store failure.
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Msg: "temporary store failure", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsConflict reports whether err is a uniqueness conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
