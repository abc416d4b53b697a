// Package errors provides unified error handling for the dreamflow runtime.
// It implements structured error types with machine-readable codes, HTTP
// status mapping for the gateway, and retryable detection for the dataset
// append path.
package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Common Error Constructors ---

// Validation creates a new AppError for an invalid topology or request.
// Topology validation errors are fatal at startup; the process does not start.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeValidation, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// UnknownDataset creates a validation error for a node referencing a dataset
// that is not declared in the topology.
func UnknownDataset(node, dataset string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownDataset, Message: fmt.Sprintf("node %q references undeclared dataset %q", node, dataset),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"node": node, "dataset": dataset},
	}
}

// OrphanDataset creates a validation error for a dataset that has no
// producer and is not marked as an entry point.
func OrphanDataset(dataset string) *AppError {
	return &AppError{
		Code: ErrCodeOrphanDataset, Message: fmt.Sprintf("dataset %q has no producer and is not an entry point", dataset),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"dataset": dataset},
	}
}

// BackendUnavailable creates a retryable AppError for an unreachable log store.
func BackendUnavailable(dataset string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeBackendUnavailable, Message: fmt.Sprintf("log backend for dataset %q is unavailable", dataset),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true, Cause: cause,
		Details: map[string]any{"dataset": dataset},
	}
}

// Processing creates a per-record processing error. It is recovered by the
// node runtime and forwarded to the node's error dataset.
func Processing(stage, message string) *AppError {
	return &AppError{
		Code: ErrCodeProcessing, Message: message,
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"stage": stage},
	}
}

// Timeout creates a new AppError for a gateway request that timed out
// waiting for the pipeline.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// NodeFaulted creates an AppError for a node that stopped after an
// unrecoverable error. The graph keeps running degraded.
func NodeFaulted(node string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeNodeFaulted, Message: fmt.Sprintf("node %q faulted and stopped", node),
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
		Details: map[string]any{"node": node},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// InvalidInput creates a new AppError for invalid request input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// ExternalService creates a retryable AppError for a failed upstream call.
func ExternalService(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("The %s service returned an error.", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
		Details: map[string]any{"service": service},
	}
}
