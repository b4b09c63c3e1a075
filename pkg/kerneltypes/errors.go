package kerneltypes

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a KernelError so callers can recover with errors.Is
// instead of string-matching a message.
type ErrorKind string

const (
	ErrObjectUnknown          ErrorKind = "ObjectUnknown"
	ErrObjectExists           ErrorKind = "ObjectExists"
	ErrResourceAllocation     ErrorKind = "ResourceAllocation"
	ErrNoRouteFound           ErrorKind = "NoRouteFound"
	ErrCredentialsInvalid     ErrorKind = "CredentialsInvalid"
	ErrUnsupportedOperation   ErrorKind = "UnsupportedOperation"
	ErrKernelUnavailable      ErrorKind = "KernelUnavailable"
	ErrIllegalStateTransition ErrorKind = "IllegalStateTransition"
	ErrIOFailure              ErrorKind = "IOFailure"
)

// KernelError is the kernel's single error type. Kind lets callers branch
// on failure category; Cause preserves the wrapped underlying error so
// errors.Is/errors.As still work through it.
type KernelError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *KernelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *KernelError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *KernelError with the same Kind, so
// errors.Is(err, &KernelError{Kind: ErrNoRouteFound}) works without callers
// needing to match Message or Cause.
func (e *KernelError) Is(target error) bool {
	other, ok := target.(*KernelError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// NewKernelError builds a KernelError of the given kind wrapping cause.
func NewKernelError(kind ErrorKind, message string, cause error) *KernelError {
	return &KernelError{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the ErrorKind of err if it is (or wraps) a *KernelError,
// and false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var ke *KernelError
	if !errors.As(err, &ke) {
		return "", false
	}
	return ke.Kind, true
}
