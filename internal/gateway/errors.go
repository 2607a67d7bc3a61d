package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the gateway core can produce.
// Kinds are part of the management API and MCP surface contracts, so their
// string values are stable.
type ErrorKind string

const (
	// KindValidation indicates bad management input, e.g. a duplicate name or missing URL.
	KindValidation ErrorKind = "validation_error"

	// KindNotFound indicates an unknown backend, tool or mount.
	KindNotFound ErrorKind = "not_found"

	// KindConflict indicates a namespace collision, eg- an effective prefix
	// already owned by another backend.
	KindConflict ErrorKind = "conflict"

	// KindTimeout indicates a backend exceeded its configured timeout.
	KindTimeout ErrorKind = "timeout"

	// KindBackendError indicates the backend responded with an application-level failure.
	KindBackendError ErrorKind = "backend_error"

	// KindTransportError indicates a connection-level failure talking to the backend.
	KindTransportError ErrorKind = "transport_error"

	// KindInternal indicates a registry/manager invariant violation. Treated as a bug signal.
	KindInternal ErrorKind = "internal_error"
)

// Error is a failure with a gateway-level classification attached.
type Error struct {
	Kind ErrorKind
	err  error
}

func (e *Error) Error() string {
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// newError wraps err with the given kind. A nil err yields a nil *Error.
func newError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, err: err}
}

func errValidation(format string, args ...any) error {
	return newError(KindValidation, fmt.Errorf(format, args...))
}

func errNotFound(format string, args ...any) error {
	return newError(KindNotFound, fmt.Errorf(format, args...))
}

func errConflict(format string, args ...any) error {
	return newError(KindConflict, fmt.Errorf(format, args...))
}

func errTimeout(format string, args ...any) error {
	return newError(KindTimeout, fmt.Errorf(format, args...))
}

func errBackend(format string, args ...any) error {
	return newError(KindBackendError, fmt.Errorf(format, args...))
}

func errTransport(format string, args ...any) error {
	return newError(KindTransportError, fmt.Errorf(format, args...))
}

func errInternal(format string, args ...any) error {
	return newError(KindInternal, fmt.Errorf(format, args...))
}

// KindOf returns the classification of err.
// Errors produced outside the gateway core are reported as internal.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
