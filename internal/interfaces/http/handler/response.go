package handler

import "github.com/erp/clinicsync/internal/interfaces/http/dto"

// APIResponse represents a generic API response for OpenAPI documentation
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse represents an error API response for OpenAPI documentation
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// IngestErrorResponse is returned when a delivery failed. Data carries the
// journal record so the sender can correlate the failure.
// @Description Failed delivery response
type IngestErrorResponse struct {
	Success bool                `json:"success" example:"false"`
	Data    *dto.IngestResponse `json:"data,omitempty"`
	Error   *dto.ErrorInfo      `json:"error,omitempty"`
}
