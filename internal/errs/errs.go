// Package errs implements the closed error taxonomy shared by every engine
// in the metadata server: the lock manager, the keyval store, the security
// caches, and the SID cache all return errors constructed here so that
// callers can switch on Kind instead of parsing strings.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the fixed error categories a caller can branch on.
type Kind int

const (
	// Internal covers anything that does not fit a more specific kind.
	Internal Kind = iota
	NotFound
	Exists
	BadArg
	OutOfMemory
	// BufferTooSmall carries the required size in Error.Size. It is not a
	// failure condition for read-style operations; callers retry.
	BufferTooSmall
	BadRange
	Corrupt
	Busy
	Timeout
	CancelledByCaller
	// IoError wraps an error raised by the storage engine collaborator.
	IoError
	AuthFailed
	PolicyUnsatisfied
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case Exists:
		return "Exists"
	case BadArg:
		return "BadArg"
	case OutOfMemory:
		return "OutOfMemory"
	case BufferTooSmall:
		return "BufferTooSmall"
	case BadRange:
		return "BadRange"
	case Corrupt:
		return "Corrupt"
	case Busy:
		return "Busy"
	case Timeout:
		return "Timeout"
	case CancelledByCaller:
		return "CancelledByCaller"
	case IoError:
		return "IoError"
	case AuthFailed:
		return "AuthFailed"
	case PolicyUnsatisfied:
		return "PolicyUnsatisfied"
	default:
		return "Internal"
	}
}

// Error is the structured error value every package in this module returns.
// A human-readable message travels alongside Kind; BufferTooSmall also
// carries the size the caller should retry with.
type Error struct {
	Kind    Kind
	Message string
	// Size is populated only for BufferTooSmall.
	Size int
	cause error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, matching the
// stdlib errors.Is / errors.As conventions used throughout the module.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs a plain taxonomy error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// TooSmall constructs the BufferTooSmall outcome carrying the required size.
func TooSmall(required int) *Error {
	return &Error{Kind: BufferTooSmall, Message: "buffer too small", Size: required}
}

// Wrap translates an error raised by the storage engine collaborator into
// IoError, preserving the underlying diagnostic string and stack via
// github.com/pkg/errors so the original cause survives logging.
func Wrap(cause error, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	return &Error{
		Kind:    IoError,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.WithStack(cause),
	}
}

// Of reports the Kind of err, or Internal if err is not one of ours.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return Internal
	}
	return Internal
}

// IsNotFound is a convenience matcher; NotFound is never logged as an
// error per the taxonomy's recovery policy, only surfaced to callers.
func IsNotFound(err error) bool {
	return Of(err) == NotFound
}
