package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Startup/topology errors (fatal, process does not start)
const (
	// ErrCodeValidation indicates a bad topology or request document.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCodeUnknownDataset indicates a node references an undeclared dataset.
	ErrCodeUnknownDataset ErrorCode = "UNKNOWN_DATASET"
	// ErrCodeOrphanDataset indicates a dataset with no producer and no entry mark.
	ErrCodeOrphanDataset ErrorCode = "ORPHAN_DATASET"
)

// Runtime errors
const (
	// ErrCodeBackendUnavailable indicates the log store cannot be reached (transient).
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	// ErrCodeProcessing indicates a node's logic failed for one record.
	ErrCodeProcessing ErrorCode = "PROCESSING_ERROR"
	// ErrCodeTimeout indicates the gateway deadline elapsed before resolution.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeNodeFaulted indicates a node without an error output raised and stopped.
	ErrCodeNodeFaulted ErrorCode = "NODE_FAULTED"
)

// Request errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the request input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeBackendUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeExternalService:    true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
