// Package kern implements the scheduler core: tasks, the unified wait/wake
// engine, priority inheritance, the synchronization object family and the
// context-switch simulation they all run under.
package kern

import (
	"errors"
	"fmt"
)

// Code is a kernel status code. Every kernel operation returns one instead
// of panicking; a running kernel must stay live even on malformed input.
type Code int

const (
	OK Code = iota
	BadArg
	Invalid
	InsufficientHeap
	NotReady
	Forbidden
	Timeout
	Unknown
	FS
	Empty
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case BadArg:
		return "BAD_ARG"
	case Invalid:
		return "INVALID"
	case InsufficientHeap:
		return "INSUFFICIENT_HEAP"
	case NotReady:
		return "NOT_READY"
	case Forbidden:
		return "FORBIDDEN"
	case Timeout:
		return "TIMEOUT"
	case FS:
		return "FS"
	case Empty:
		return "EMPTY"
	default:
		return "UNKNOWN"
	}
}

// Error is a structured kernel error carrying the operation that failed,
// the status code and an optional wrapped cause.
type Error struct {
	Op    string
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Op != "" {
		return fmt.Sprintf("kern: %s: %s (%s)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("kern: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError builds a new structured error for op.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError attaches op/code context to an existing error.
func WrapError(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// CodeOf extracts the Code carried by err, or Unknown if err is not a *Error.
func CodeOf(err error) Code {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code
	}
	return Unknown
}
