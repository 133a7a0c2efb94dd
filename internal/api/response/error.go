// Package response provides standardized HTTP response structures and utilities
// for the BugX API layer.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	bugxerrors "bugx/internal/errors"
)

// ErrorCode represents standardized error codes for the API
type ErrorCode string

const (
	// Client error codes (4xx)
	ErrorCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_ERROR"
	ErrorCodeVersionMismatch  ErrorCode = "VERSION_MISMATCH"

	// Server error codes (5xx)
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error     ErrorDetails `json:"error"`
	Timestamp string       `json:"timestamp"`
	RequestID string       `json:"request_id,omitempty"`
}

// ErrorDetails contains detailed error information
type ErrorDetails struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a standardized success response
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	Message   string      `json:"message,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, statusCode int, code ErrorCode, message string, details ...string) {
	var detail interface{}
	if len(details) > 0 {
		detail = details[0]
	}
	writeError(w, statusCode, ErrorDetails{Code: code, Message: message, Details: detail})
}

// WriteStandardError writes err with the status its code maps to. Errors
// that are not StandardErrors become INTERNAL_ERROR.
func WriteStandardError(w http.ResponseWriter, err error) {
	stdErr := bugxerrors.FromError(err)
	writeError(w, stdErr.ToHTTPStatus(), ErrorDetails{
		Code:    ErrorCode(stdErr.ErrorInfo.Code),
		Message: stdErr.ErrorInfo.Message,
		Details: stdErr.ErrorInfo.Details,
	})
}

func writeError(w http.ResponseWriter, statusCode int, details ErrorDetails) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:     details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: getRequestID(w),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		// Fallback to simple error if JSON encoding fails
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// WriteSuccess writes a standardized 200 response
func WriteSuccess(w http.ResponseWriter, data interface{}, message ...string) {
	WriteStatus(w, http.StatusOK, data, message...)
}

// WriteCreated writes a standardized 201 response
func WriteCreated(w http.ResponseWriter, data interface{}, message ...string) {
	WriteStatus(w, http.StatusCreated, data, message...)
}

// WriteStatus writes a standardized success envelope with statusCode
func WriteStatus(w http.ResponseWriter, statusCode int, data interface{}, message ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := SuccessResponse{
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// WriteBadRequest writes a 400 Bad Request error
func WriteBadRequest(w http.ResponseWriter, message string, details ...string) {
	WriteError(w, http.StatusBadRequest, ErrorCodeBadRequest, message, details...)
}

// WriteNotFound writes a 404 Not Found error
func WriteNotFound(w http.ResponseWriter, message string, details ...string) {
	WriteError(w, http.StatusNotFound, ErrorCodeNotFound, message, details...)
}

// WriteMethodNotAllowed writes a 405 Method Not Allowed error
func WriteMethodNotAllowed(w http.ResponseWriter, message string, details ...string) {
	WriteError(w, http.StatusMethodNotAllowed, ErrorCodeMethodNotAllowed, message, details...)
}

// WriteValidationError writes a 400 validation error
func WriteValidationError(w http.ResponseWriter, message string, details ...string) {
	WriteError(w, http.StatusBadRequest, ErrorCodeValidationFailed, message, details...)
}

// WriteVersionMismatch writes a 400 Version Mismatch error
func WriteVersionMismatch(w http.ResponseWriter, message string, details ...string) {
	WriteError(w, http.StatusBadRequest, ErrorCodeVersionMismatch, message, details...)
}

// WriteServiceUnavailable writes a 503 Service Unavailable error
func WriteServiceUnavailable(w http.ResponseWriter, message string, details ...string) {
	WriteError(w, http.StatusServiceUnavailable, ErrorCodeServiceUnavailable, message, details...)
}

// getRequestID reads the request ID the logging middleware put on the response
func getRequestID(w http.ResponseWriter) string {
	return w.Header().Get("X-Request-ID")
}
