package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is used when an event or request is incomplete or malformed
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeUnsupportedEvent is used when the event tag is not c, u or d
	ErrCodeUnsupportedEvent = "ERR_UNSUPPORTED_EVENT"
	// ErrCodeInvalidJSON is used when the body cannot be decoded
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a journal record does not exist
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeNotReplayable is used when a record cannot be replayed
	ErrCodeNotReplayable = "ERR_NOT_REPLAYABLE"
)

// Reconciliation error codes
const (
	// ErrCodeLookup is used when ERP data violates a uniqueness invariant
	ErrCodeLookup = "ERR_LOOKUP"
	// ErrCodeReferenceNotFound is used when a referenced ERP record is missing
	ErrCodeReferenceNotFound = "ERR_REFERENCE_NOT_FOUND"
	// ErrCodeAmbiguousReference is used when a reference matches several records
	ErrCodeAmbiguousReference = "ERR_AMBIGUOUS_REFERENCE"
	// ErrCodeRemoteService is used when the ERP or the clinical system failed
	ErrCodeRemoteService = "ERR_REMOTE_SERVICE"
	// ErrCodeQueueFull is used when the ingest queue of a visit is full
	ErrCodeQueueFull = "ERR_QUEUE_FULL"
	// ErrCodeUnavailable is used while the service is starting or stopping
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Retryable
// failures map to 503 so the sender redelivers; data problems map to 422 so
// it does not.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeUnsupportedEvent: http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeNotReplayable: http.StatusConflict,

	ErrCodeLookup:             http.StatusUnprocessableEntity,
	ErrCodeReferenceNotFound:  http.StatusUnprocessableEntity,
	ErrCodeAmbiguousReference: http.StatusUnprocessableEntity,
	ErrCodeRemoteService:      http.StatusServiceUnavailable,
	ErrCodeQueueFull:          http.StatusServiceUnavailable,
	ErrCodeUnavailable:        http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"VALIDATION":          ErrCodeValidation,
	"UNSUPPORTED_EVENT":   ErrCodeUnsupportedEvent,
	"LOOKUP":              ErrCodeLookup,
	"AMBIGUOUS_REFERENCE": ErrCodeAmbiguousReference,
	"REMOTE_SERVICE":      ErrCodeRemoteService,
	"NOT_REPLAYABLE":      ErrCodeNotReplayable,
	"REFERENCE_NOT_FOUND": ErrCodeReferenceNotFound,
	"NOT_FOUND":           ErrCodeNotFound,
	"INVALID_INPUT":       ErrCodeValidation,
	"INTERNAL_ERROR":      ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
