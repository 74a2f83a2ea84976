package domain

import "fmt"

// DomainError represents a business domain error with a structured error code.
// Codes have the form TM-<AREA>-<NNNN>; the first three digits of the
// numeric part are the HTTP status the error maps to.
type DomainError struct {
	Code    string // Error code (e.g., "TM-CNTR-4001")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// ============================================================================
// Counter Errors (CNTR)
// ============================================================================

var (
	// ErrInvalidAmount indicates an amount that is not an integer in [1,1000].
	ErrInvalidAmount = NewDomainError("TM-CNTR-4001", "invalid amount")

	// ErrInvalidCounterName indicates a counter name outside the allowed charset.
	ErrInvalidCounterName = NewDomainError("TM-CNTR-4002", "invalid counter name")
)

// ============================================================================
// Socket Errors (SOCK)
// ============================================================================

var (
	// ErrUpgradeRequired indicates a request to a socket route without
	// "Upgrade: websocket".
	ErrUpgradeRequired = NewDomainError("TM-SOCK-4260", "Expected Upgrade: websocket")

	// ErrConnectionHeader indicates a Connection header without the upgrade token.
	ErrConnectionHeader = NewDomainError("TM-SOCK-4001", "Expected Connection: upgrade")

	// ErrMissingKey indicates a handshake without Sec-WebSocket-Key.
	ErrMissingKey = NewDomainError("TM-SOCK-4002", "Missing Sec-WebSocket-Key header")

	// ErrTooManyConnections indicates the per-actor admission ceiling was reached.
	ErrTooManyConnections = NewDomainError("TM-SOCK-5030", "Too many connections")

	// ErrSocketClosed indicates a send on a socket that is no longer open.
	ErrSocketClosed = NewDomainError("TM-SOCK-4100", "socket closed")
)

// ============================================================================
// Actor Errors (ACTR)
// ============================================================================

var (
	// ErrActorPassivated indicates the actor instance stopped before the call
	// was accepted. Callers resolve a fresh instance and retry.
	ErrActorPassivated = NewDomainError("TM-ACTR-5030", "actor passivated")

	// ErrActorUnavailable indicates retries against fresh instances were exhausted.
	ErrActorUnavailable = NewDomainError("TM-ACTR-5031", "actor unavailable")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an unexpected internal error.
	ErrInternalServer = NewDomainError("TM-SYS-5000", "internal server error")

	// ErrStorageError indicates a persistence failure.
	ErrStorageError = NewDomainError("TM-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates the service is shutting down or not ready.
	ErrServiceUnavailable = NewDomainError("TM-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request body.
	ErrBadRequest = NewDomainError("TM-SYS-4000", "bad request")

	// ErrRateLimited indicates the client exceeded the request rate.
	ErrRateLimited = NewDomainError("TM-SYS-4290", "rate limit exceeded")

	// ErrNotFound indicates an unknown route or resource.
	ErrNotFound = NewDomainError("TM-SYS-4040", "not found")
)
