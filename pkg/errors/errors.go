package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeGateway represents failures of the external oracle calls
	ErrorTypeGateway ErrorType = "gateway"
	// ErrorTypeGraph represents topic graph errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeSession represents session lookup errors
	ErrorTypeSession ErrorType = "session"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Gateway Errors

// GatewayError is returned when an external oracle call exhausted its retry
// budget or returned content the caller could not parse. The turn that
// produced it is abandoned without graph mutation.
type GatewayError struct {
	*BaseError
	Call     string // "completion" or "classify"
	Attempts int
}

func NewGatewayError(call string, attempts int, err error) *GatewayError {
	return &GatewayError{
		BaseError: NewBaseError(ErrorTypeGateway, fmt.Sprintf("%s call failed after %d attempts", call, attempts), err),
		Call:      call,
		Attempts:  attempts,
	}
}

// IsGatewayError reports whether err is (or wraps) a GatewayError
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// Graph Errors

// InvalidLink is returned when a parent link would violate the tree: the
// child already has a parent, the parent does not exist, or child == parent.
// The resolver's contract makes this a logic error, not a user-facing one.
type InvalidLink struct {
	*BaseError
	NodeID   string
	ParentID string
}

func NewInvalidLink(nodeID, parentID, reason string) *InvalidLink {
	return &InvalidLink{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("cannot link %s under %s: %s", nodeID, parentID, reason), nil),
		NodeID:    nodeID,
		ParentID:  parentID,
	}
}

// IsInvalidLink reports whether err is (or wraps) an InvalidLink
func IsInvalidLink(err error) bool {
	var il *InvalidLink
	return errors.As(err, &il)
}

// Session Errors

// SessionNotFound is returned when a session id has no live session
type SessionNotFound struct {
	*BaseError
	SessionID string
}

func NewSessionNotFound(sessionID string) *SessionNotFound {
	return &SessionNotFound{
		BaseError: NewBaseError(ErrorTypeSession, fmt.Sprintf("session not found: %s", sessionID), nil),
		SessionID: sessionID,
	}
}

// IsSessionNotFound reports whether err is (or wraps) a SessionNotFound
func IsSessionNotFound(err error) bool {
	var sn *SessionNotFound
	return errors.As(err, &sn)
}
