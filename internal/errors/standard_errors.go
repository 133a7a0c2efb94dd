// Package errors provides standardized error handling across the HTTP, MCP and
// CLI surfaces of the toolkit.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fredcamaral/gomcp-sdk/protocol"
)

// ErrorCode represents semantic error codes for consistent error handling
type ErrorCode string

const (
	// Validation errors
	ErrorCodeValidationError ErrorCode = "VALIDATION_ERROR"
	ErrorCodeRequiredField   ErrorCode = "REQUIRED_FIELD"
	ErrorCodeInvalidValue    ErrorCode = "INVALID_VALUE"

	// Resource errors
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"

	// Dependency and processing errors
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeDatabaseError      ErrorCode = "DATABASE_ERROR"
	ErrorCodeWorkflowFailed     ErrorCode = "WORKFLOW_FAILED"
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents the unified error structure across all protocols
type StandardError struct {
	ErrorInfo ErrorDetails `json:"error"`
	cause     error
}

// Error implements the Go error interface
func (e *StandardError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.ErrorInfo.Message, e.cause)
	}
	return e.ErrorInfo.Message
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so sentinel values compare
// equal to any error of the same kind.
func (e *StandardError) Is(target error) bool {
	var other *StandardError
	if !stderrors.As(target, &other) {
		return false
	}
	return other.ErrorInfo.Code == e.ErrorInfo.Code
}

// ErrorDetails contains the detailed error information
type ErrorDetails struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Details  interface{} `json:"details,omitempty"`
	Protocol string      `json:"protocol,omitempty"`
	TraceID  string      `json:"trace_id,omitempty"`
}

// ValidationDetail provides specific validation error information
type ValidationDetail struct {
	Field  string      `json:"field"`
	Reason string      `json:"reason"`
	Value  interface{} `json:"value,omitempty"`
}

// NewStandardError creates a new standardized error
func NewStandardError(code ErrorCode, message string, details interface{}) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// NewValidationError creates a validation error with field details
func NewValidationError(field, reason string, value interface{}) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeValidationError,
			Message: fmt.Sprintf("Validation failed for field '%s': %s", field, reason),
			Details: ValidationDetail{
				Field:  field,
				Reason: reason,
				Value:  value,
			},
		},
	}
}

// NewRequiredFieldError creates an error for missing required fields
func NewRequiredFieldError(field string) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeRequiredField,
			Message: fmt.Sprintf("Required field '%s' is missing", field),
			Details: ValidationDetail{
				Field:  field,
				Reason: "missing_required_field",
			},
		},
	}
}

// NewNotFoundError creates a not-found error for a resource kind and key
func NewNotFoundError(resource, key string) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeNotFound,
			Message: fmt.Sprintf("%s '%s' not found", resource, key),
			Details: map[string]interface{}{
				"resource": resource,
				"key":      key,
			},
		},
	}
}

// NewDependencyError reports an unavailable collaborator such as the datastore
func NewDependencyError(dependency string, cause error) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeServiceUnavailable,
			Message: fmt.Sprintf("%s is temporarily unavailable", dependency),
			Details: map[string]interface{}{
				"dependency": dependency,
			},
		},
		cause: cause,
	}
}

// NewWorkflowError records the phase a workflow failed in
func NewWorkflowError(phase string, cause error) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeWorkflowFailed,
			Message: fmt.Sprintf("workflow failed during %s", phase),
			Details: map[string]interface{}{
				"phase": phase,
			},
		},
		cause: cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, originalError error) *StandardError {
	details := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if originalError != nil {
		details["original_error"] = originalError.Error()
	}

	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeInternalError,
			Message: message,
			Details: details,
		},
		cause: originalError,
	}
}

// WithTraceID adds a trace ID to the error for debugging
func (e *StandardError) WithTraceID(traceID string) *StandardError {
	e.ErrorInfo.TraceID = traceID
	return e
}

// WithProtocol adds protocol information to the error
func (e *StandardError) WithProtocol(protocolName string) *StandardError {
	e.ErrorInfo.Protocol = protocolName
	return e
}

// FromError converts any error into a StandardError, keeping an existing one
// found anywhere in the chain.
func FromError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError("Request processing failed", err)
}

// ToJSONRPCError converts StandardError to JSON-RPC error format
func (e *StandardError) ToJSONRPCError(id interface{}) *protocol.JSONRPCResponse {
	var rpcCode int
	switch e.ErrorInfo.Code {
	case ErrorCodeValidationError, ErrorCodeRequiredField, ErrorCodeInvalidValue:
		rpcCode = -32602 // Invalid params
	case ErrorCodeNotFound:
		rpcCode = -32601
	case ErrorCodeServiceUnavailable, ErrorCodeDatabaseError:
		rpcCode = -32002
	case ErrorCodeWorkflowFailed:
		rpcCode = -32000
	default:
		rpcCode = -32603 // Internal error
	}

	return &protocol.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &protocol.JSONRPCError{
			Code:    rpcCode,
			Message: e.ErrorInfo.Message,
			Data:    e,
		},
	}
}

// ToHTTPStatus maps StandardError to appropriate HTTP status code
func (e *StandardError) ToHTTPStatus() int {
	switch e.ErrorInfo.Code {
	case ErrorCodeValidationError, ErrorCodeRequiredField, ErrorCodeInvalidValue:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeServiceUnavailable, ErrorCodeDatabaseError:
		return http.StatusServiceUnavailable
	case ErrorCodeWorkflowFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts StandardError to JSON bytes
func (e *StandardError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WriteHTTPError writes StandardError as HTTP response
func (e *StandardError) WriteHTTPError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")

	if e.ErrorInfo.TraceID != "" {
		w.Header().Set("X-Trace-ID", e.ErrorInfo.TraceID)
	}

	w.WriteHeader(e.ToHTTPStatus())

	jsonBytes, _ := e.ToJSON()
	_, _ = w.Write(jsonBytes)
}

// Sentinels for errors.Is comparisons; they match by code only.
var (
	ErrNotFound           = NewStandardError(ErrorCodeNotFound, "resource not found", nil)
	ErrServiceUnavailable = NewStandardError(ErrorCodeServiceUnavailable, "Service temporarily unavailable", nil)
	ErrWorkflowFailed     = NewStandardError(ErrorCodeWorkflowFailed, "workflow failed", nil)
)

// IsValidationError checks if the error is a validation-related error
func IsValidationError(err *StandardError) bool {
	return err.ErrorInfo.Code == ErrorCodeValidationError ||
		err.ErrorInfo.Code == ErrorCodeRequiredField ||
		err.ErrorInfo.Code == ErrorCodeInvalidValue
}

func IsSystemError(err *StandardError) bool {
	return err.ErrorInfo.Code == ErrorCodeInternalError ||
		err.ErrorInfo.Code == ErrorCodeServiceUnavailable ||
		err.ErrorInfo.Code == ErrorCodeDatabaseError ||
		err.ErrorInfo.Code == ErrorCodeWorkflowFailed
}
