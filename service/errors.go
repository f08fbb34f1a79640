package service

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindUnauthenticated
	KindExpired
	KindNotFound
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindExpired:
		return "expired"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage failure"
	}
	return "unknown"
}

// Error is the failure type returned by every service operation. Message is
// safe to show to the caller; Err is for server logs only.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrInvalidInput    = &Error{Kind: KindInvalidInput}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrExpired         = &Error{Kind: KindExpired}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrStorage         = &Error{Kind: KindStorage}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf reports the Kind of err, treating foreign errors as storage failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

func invalid(field, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: fmt.Sprintf(format, args...)}
}

func notFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: "server error", Err: fmt.Errorf("%s: %w", op, err)}
}
