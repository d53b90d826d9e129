package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/clinicsync/internal/domain/shared"
	"github.com/erp/clinicsync/internal/infrastructure/scheduler"
	"github.com/erp/clinicsync/internal/interfaces/http/dto"
	"github.com/erp/clinicsync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps an error to a status and error code.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.HandleErrorWithData(c, err, nil)
}

// HandleErrorWithData answers like HandleError and also returns data, the
// journal record of a failed delivery for instance.
func (h *BaseHandler) HandleErrorWithData(c *gin.Context, err error, data any) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code, message := errorCode(err)
	resp := dto.NewErrorResponseWithRequestID(code, message, getRequestID(c))
	resp.Data = data
	c.JSON(dto.GetHTTPStatus(code), resp)
}

// errorCode classifies err. Remote failures and an unavailable queue map to
// 503 codes so the sender retries. Data problems map to 422 codes and will
// fail again until the data changes.
func errorCode(err error) (code, message string) {
	switch {
	case errors.Is(err, scheduler.ErrJobQueueFull):
		return dto.ErrCodeQueueFull, "Ingest queue is full, retry later"
	case errors.Is(err, scheduler.ErrPoolNotRunning),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return dto.ErrCodeUnavailable, "Service is not able to process the request, retry later"
	case errors.Is(err, shared.ErrNotFound):
		return dto.ErrCodeNotFound, "Reconciliation record not found"
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return dto.NormalizeErrorCode(domainErr.Code), err.Error()
	}
	return dto.ErrCodeInternal, "An unexpected error occurred"
}
