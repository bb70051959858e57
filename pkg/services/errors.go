// Package services provides the flow, execution and event operations behind the HTTP API.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/stockflow/pkg/flow"
	"github.com/dukex/stockflow/pkg/persistence"
)

// Client errors (4xx responses).
var (
	// Bad input (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidStatus    = errors.New("invalid flow status")
	ErrInvalidEvent     = errors.New("invalid inventory event")
	ErrFlowNil          = errors.New("flow cannot be nil")
	ErrStoreIDRequired  = errors.New("store ID cannot be empty")
	ErrStoreIDImmutable = errors.New("store ID of a flow cannot change")

	// Unprocessable flow graphs (422 Unprocessable Entity).
	ErrFlowInvalid = errors.New("flow is invalid")

	// Conflicts with the flow state (409 Conflict).
	ErrTriggerNotMatched = flow.ErrTriggerNotMatched

	ErrFlowNotFound      = persistence.ErrFlowNotFound
	ErrExecutionNotFound = persistence.ErrExecutionNotFound
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

// NewRequestError creates a 400 error with context.
func NewRequestError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError lists every problem that keeps a flow from being saved as ACTIVE.
type ValidationError struct {
	Op       string
	FlowID   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrFlowInvalid, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrFlowInvalid
}

// AsValidationError returns the ValidationError in err's chain, if any.
func AsValidationError(err error) (*ValidationError, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr, true
	}

	return nil, false
}

// IsRequestError checks if an error is caused by bad input and should return HTTP 400.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrFlowNil) ||
		errors.Is(err, ErrStoreIDRequired) ||
		errors.Is(err, ErrStoreIDImmutable)
}

// IsValidationError checks if an error reports an invalid flow graph (HTTP 422).
func IsValidationError(err error) bool {
	return errors.Is(err, ErrFlowInvalid)
}

// IsConflictError checks if an error conflicts with the flow definition (HTTP 409).
func IsConflictError(err error) bool {
	return errors.Is(err, ErrTriggerNotMatched)
}
