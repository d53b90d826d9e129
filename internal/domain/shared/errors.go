// Package shared holds the error and de-duplication contracts used across
// the reconciliation domain and its adapters.
package shared

// DomainError is an error with a stable machine-readable code. Codes are
// mapped to HTTP statuses at the edge.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t != nil && e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = NewDomainError("NOT_FOUND", "Resource not found")
