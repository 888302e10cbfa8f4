// Package services provides the application services behind the HTTP API.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. Validation errors map to 400 responses, conflicts
// to 409, not-found sentinels to 404.
var (
	ErrInvalidRequest = errors.New("invalid request")

	// Graph validation errors (400 Bad Request).
	ErrFlowNameRequired    = errors.New("flow name is required")
	ErrNodesRequired       = errors.New("flow must have at least one node")
	ErrTriggerNodeRequired = errors.New("flow must have at least one enabled trigger node")
	ErrUnknownNodeType     = errors.New("unknown node type")
	ErrDuplicateNodeID     = errors.New("duplicate node id")
	ErrDanglingEdge        = errors.New("edge references a node that does not exist")
	ErrInvalidNodeConfig   = errors.New("invalid node configuration")
	ErrInvalidTrigger      = errors.New("invalid trigger configuration")
	ErrFlowNil             = errors.New("flow cannot be nil")

	// Business logic conflicts (409 Conflict).
	ErrAlreadyActive   = errors.New("flow is already active")
	ErrAlreadyInactive = errors.New("flow is already inactive")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFlowNameRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrTriggerNodeRequired) ||
		errors.Is(err, ErrUnknownNodeType) ||
		errors.Is(err, ErrDuplicateNodeID) ||
		errors.Is(err, ErrDanglingEdge) ||
		errors.Is(err, ErrInvalidNodeConfig) ||
		errors.Is(err, ErrInvalidTrigger) ||
		errors.Is(err, ErrFlowNil)
}

// IsConflictError checks if an error should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrAlreadyInactive)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
