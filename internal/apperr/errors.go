// Package apperr defines the error kinds shared by the scheduling packages.
// Every error carries its kind plus the offending field and value so callers
// can explain the failure or refetch and retry.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindSlotUnavailable   Kind = "slot_unavailable"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindStaleState        Kind = "stale_state"
	KindNotFound          Kind = "not_found"
)

type Error struct {
	Kind  Kind
	Field string
	Value string
	Msg   string
	Err   error
}

// Sentinels match any *Error of the same kind through errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrSlotUnavailable   = &Error{Kind: KindSlotUnavailable}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrStaleState        = &Error{Kind: KindStaleState}
	ErrNotFound          = &Error{Kind: KindNotFound}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (%s=%q)", msg, e.Field, e.Value)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Field != "" || t.Msg != "" {
		return t == e
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, field, value, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Value: value, Msg: fmt.Sprintf(format, args...)}
}

func Validation(field, value, format string, args ...any) *Error {
	return newError(KindValidation, field, value, format, args...)
}

func SlotUnavailable(field, value, format string, args ...any) *Error {
	return newError(KindSlotUnavailable, field, value, format, args...)
}

func Conflict(field, value, format string, args ...any) *Error {
	return newError(KindConflict, field, value, format, args...)
}

func InvalidTransition(from, to string) *Error {
	return newError(KindInvalidTransition, "newStatus", to, "cannot move appointment from %s to %s", from, to)
}

func StaleState(field, value, format string, args ...any) *Error {
	return newError(KindStaleState, field, value, format, args...)
}

func NotFound(field, value, format string, args ...any) *Error {
	return newError(KindNotFound, field, value, format, args...)
}

// Wrap attaches a cause while keeping the kind and detail of e.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Detail returns the first *Error in err's chain.
func Detail(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
