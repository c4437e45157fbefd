package rtkernel

import "github.com/vrcore/rtkernel/internal/kern"

// ErrorCode is a kernel status code: every kernel operation returns one
// instead of panicking, since a misbehaving task must never take the
// whole core down with it.
type ErrorCode = kern.Code

const (
	OK               = kern.OK
	BadArg           = kern.BadArg
	Invalid          = kern.Invalid
	InsufficientHeap = kern.InsufficientHeap
	NotReady         = kern.NotReady
	Forbidden        = kern.Forbidden
	Timeout          = kern.Timeout
	Unknown          = kern.Unknown
	FS               = kern.FS
	Empty            = kern.Empty
)

// KernelError is a structured kernel error carrying the operation that
// failed, its status code, and an optional wrapped cause.
type KernelError = kern.Error

// NewError builds a new structured error for op.
func NewError(op string, code ErrorCode, msg string) *KernelError {
	return kern.NewError(op, code, msg)
}

// WrapError attaches op/code context to an existing error.
func WrapError(op string, code ErrorCode, inner error) *KernelError {
	return kern.WrapError(op, code, inner)
}

// CodeOf extracts the ErrorCode carried by err, or Unknown if err isn't
// a *KernelError.
func CodeOf(err error) ErrorCode {
	return kern.CodeOf(err)
}

// IsCode reports whether err carries the given status code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
