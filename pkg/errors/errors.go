package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// Kind classifies an error by behavior rather than by Go type.
type Kind string

const (
	// URI errors
	KindInvalidURI          Kind = "INVALID_URI"
	KindURINotForConnection Kind = "URI_NOT_FOR_CONNECTION"

	// Resource errors
	KindNotFound      Kind = "NOT_FOUND"
	KindAlreadyExists Kind = "ALREADY_EXISTS"
	KindNotEmpty      Kind = "NOT_EMPTY"

	// Contract errors
	KindCapabilityUnsupported Kind = "CAPABILITY_UNSUPPORTED"
	KindInvalidQuery          Kind = "INVALID_QUERY"
	KindInvalidConfig         Kind = "INVALID_CONFIG"

	// Auth errors
	KindAuthRequired Kind = "AUTH_REQUIRED"
	KindAuthExpired  Kind = "AUTH_EXPIRED"

	// Infrastructure errors
	KindUpstream  Kind = "UPSTREAM"
	KindIO        Kind = "IO"
	KindCancelled Kind = "CANCELLED"
	KindInternal  Kind = "INTERNAL"
)

// Error is the single error type the data source layer surfaces.
type Error struct {
	Kind       Kind                   `json:"kind"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails adds structured details
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

func newError(kind Kind, message string, status int) *Error {
	return &Error{
		Kind:       kind,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// Constructor functions for the taxonomy

// NewInvalidURI reports a malformed resource URI.
func NewInvalidURI(uri, reason string) *Error {
	e := newError(KindInvalidURI, fmt.Sprintf("invalid resource URI %q: %s", uri, reason), http.StatusBadRequest)
	e.Details = map[string]interface{}{"uri": uri}
	return e
}

// NewURINotForConnection reports a URI routed to the wrong connection.
func NewURINotForConnection(uri, prefix string) *Error {
	e := newError(KindURINotForConnection, fmt.Sprintf("URI %q does not belong to connection with prefix %q", uri, prefix), http.StatusBadRequest)
	e.Details = map[string]interface{}{"uri": uri, "prefix": prefix}
	return e
}

// NewNotFound creates a not found error
func NewNotFound(resource string) *Error {
	return newError(KindNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewAlreadyExists reports a write or move refused because the destination exists.
func NewAlreadyExists(resource string) *Error {
	return newError(KindAlreadyExists, fmt.Sprintf("%s already exists", resource), http.StatusConflict)
}

// NewNotEmpty reports a delete refused on a non-empty directory.
func NewNotEmpty(resource string) *Error {
	return newError(KindNotEmpty, fmt.Sprintf("%s is not empty", resource), http.StatusConflict)
}

// NewCapabilityUnsupported reports an operation outside the provider's declared set.
func NewCapabilityUnsupported(providerType, operation string) *Error {
	e := newError(KindCapabilityUnsupported,
		fmt.Sprintf("provider %q does not support operation %q", providerType, operation),
		http.StatusNotImplemented)
	e.Details = map[string]interface{}{"providerType": providerType, "operation": operation}
	return e
}

// NewInvalidQuery reports a malformed search query.
func NewInvalidQuery(message string) *Error {
	return newError(KindInvalidQuery, message, http.StatusBadRequest)
}

// NewInvalidConfig reports a provider configuration that fails validation.
func NewInvalidConfig(message string) *Error {
	return newError(KindInvalidConfig, message, http.StatusBadRequest)
}

// NewAuthRequired reports missing credentials.
func NewAuthRequired(message string) *Error {
	if message == "" {
		message = "authentication required"
	}
	return newError(KindAuthRequired, message, http.StatusUnauthorized)
}

// NewAuthExpired reports stale credentials with no refresh path.
func NewAuthExpired(message string) *Error {
	if message == "" {
		message = "authentication expired"
	}
	return newError(KindAuthExpired, message, http.StatusUnauthorized)
}

// NewUpstream reports a backend error (HTTP 4xx/5xx, MCP fault).
func NewUpstream(service string, err error) *Error {
	return newError(KindUpstream, fmt.Sprintf("upstream service %q error", service), http.StatusBadGateway).WithCause(err)
}

// NewIO reports a generic filesystem or network failure.
func NewIO(operation string, err error) *Error {
	return newError(KindIO, fmt.Sprintf("i/o operation %q failed", operation), http.StatusInternalServerError).WithCause(err)
}

// NewCancelled reports caller cancellation.
func NewCancelled(operation string) *Error {
	return newError(KindCancelled, fmt.Sprintf("operation %q cancelled", operation), http.StatusRequestTimeout)
}

// NewInternal creates an internal error
func NewInternal(message string) *Error {
	return newError(KindInternal, message, http.StatusInternalServerError)
}

// Helper functions

// GetError extracts *Error from an error chain
func GetError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsKind checks whether an error is of a specific kind
func IsKind(err error, kind Kind) bool {
	e := GetError(err)
	return e != nil && e.Kind == kind
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsInvalidURI checks if an error is an invalid URI error
func IsInvalidURI(err error) bool {
	return IsKind(err, KindInvalidURI)
}

// IsCapabilityUnsupported checks if an error is a capability error
func IsCapabilityUnsupported(err error) bool {
	return IsKind(err, KindCapabilityUnsupported)
}

// IsAuthError checks for either auth kind.
func IsAuthError(err error) bool {
	return IsKind(err, KindAuthRequired) || IsKind(err, KindAuthExpired)
}

// Wrap wraps an error with additional context, preserving its kind.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if e := GetError(err); e != nil {
		e.Message = fmt.Sprintf("%s: %s", message, e.Message)
		return e
	}

	return NewInternal(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
