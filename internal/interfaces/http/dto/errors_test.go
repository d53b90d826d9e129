package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeUnknown, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnsupportedEvent, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeNotReplayable, http.StatusConflict},
		{ErrCodeLookup, http.StatusUnprocessableEntity},
		{ErrCodeReferenceNotFound, http.StatusUnprocessableEntity},
		{ErrCodeAmbiguousReference, http.StatusUnprocessableEntity},
		{ErrCodeRemoteService, http.StatusServiceUnavailable},
		{ErrCodeQueueFull, http.StatusServiceUnavailable},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{reconciliation.ErrValidation.Code, ErrCodeValidation},
		{reconciliation.ErrUnsupportedEvent.Code, ErrCodeUnsupportedEvent},
		{reconciliation.ErrLookup.Code, ErrCodeLookup},
		{reconciliation.ErrAmbiguousReference.Code, ErrCodeAmbiguousReference},
		{reconciliation.ErrRemoteService.Code, ErrCodeRemoteService},
		{"NOT_REPLAYABLE", ErrCodeNotReplayable},
		{"NOT_FOUND", ErrCodeNotFound},
		{"REFERENCE_NOT_FOUND", ErrCodeReferenceNotFound},
		// API codes pass through unchanged
		{ErrCodeNotFound, ErrCodeNotFound},
		{"CUSTOM_ERROR", "CUSTOM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestErrorCodesAreMapped(t *testing.T) {
	for _, code := range DomainErrorCodeMapping {
		t.Run(code, func(t *testing.T) {
			_, ok := ErrorCodeHTTPStatus[code]
			assert.True(t, ok, "Error code %s should be in ErrorCodeHTTPStatus map", code)
			assert.Contains(t, code, "ERR_")
		})
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID("LOOKUP", "ambiguous record lookup", "req-123")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeLookup, resp.Error.Code)
	assert.Equal(t, "ambiguous record lookup", resp.Error.Message)
	assert.Equal(t, "req-123", resp.Error.RequestID)
	assert.NotZero(t, resp.Error.Timestamp)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "status", Message: "must be one of SUCCEEDED FAILED DUPLICATE"},
	}
	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 1)
}

func TestErrorResponseJSON(t *testing.T) {
	data, err := json.Marshal(NewErrorResponseWithRequestID(ErrCodeNotFound, "record not found", "req-test-123"))
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.False(t, decoded.Success)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrCodeNotFound, decoded.Error.Code)
	assert.Equal(t, "req-test-123", decoded.Error.RequestID)
}

func TestErrorResponseTimestamp(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponseWithRequestID(ErrCodeInternal, "Server error", "")
	after := time.Now()

	assert.False(t, resp.Error.Timestamp.Before(before))
	assert.False(t, resp.Error.Timestamp.After(after))
}

func TestNewSuccessResponseWithMetaPagination(t *testing.T) {
	tests := []struct {
		total         int64
		page          int
		pageSize      int
		expectedPages int
		expectedSize  int
	}{
		{100, 1, 10, 10, 10},
		{101, 1, 10, 11, 10},
		{0, 1, 10, 0, 10},
		{9, 1, 10, 1, 10},
		{11, 1, 10, 2, 10},
		{100, 1, 0, 5, 20},
		{100, 1, -1, 5, 20},
	}

	for _, tt := range tests {
		resp := NewSuccessResponseWithMeta(nil, tt.total, tt.page, tt.pageSize)
		assert.Equal(t, tt.expectedPages, resp.Meta.TotalPages)
		assert.Equal(t, tt.expectedSize, resp.Meta.PageSize)
	}
}

func TestListReconciliationsRequest_Filter(t *testing.T) {
	req := ListReconciliationsRequest{
		ListRequest:    ListRequest{Page: 2, PageSize: 50, OrderBy: "processed_at", OrderDir: "asc"},
		Status:         "FAILED",
		EventType:      "update",
		CorrelationKey: "visit-1",
	}

	f := req.Filter()
	assert.Equal(t, reconciliation.RecordStatusFailed, f.Status)
	assert.Equal(t, reconciliation.EventTypeUpdate, f.EventType)
	assert.Equal(t, "visit-1", f.CorrelationKey)
	assert.Equal(t, 50, f.Offset())
	assert.Equal(t, "processed_at", f.OrderBy)
}

func TestToReconciliationRecordResponse(t *testing.T) {
	record := reconciliation.NewReconciliationRecord("d1", "c")
	record.ID = uuid.MustParse("0b6f3f2e-9f0e-4c1a-8a5e-2f7d8c1b9a10")
	record.EventType = reconciliation.EventTypeCreate
	record.MarkSucceeded(reconciliation.Outcome{Action: reconciliation.ActionOrderCreated, OrderID: 42})

	resp := ToReconciliationRecordResponse(record)
	assert.Equal(t, "0b6f3f2e-9f0e-4c1a-8a5e-2f7d8c1b9a10", resp.ID)
	assert.Equal(t, "create", resp.EventType)
	assert.Equal(t, "SUCCEEDED", resp.Status)
	assert.Equal(t, "ORDER_CREATED", resp.Action)
	require.NotNil(t, resp.OrderID)
	assert.Equal(t, int64(42), *resp.OrderID)
	assert.Nil(t, resp.LineID)
	assert.NotNil(t, resp.ProcessedAt)

	pending := reconciliation.NewReconciliationRecord("d2", "u")
	assert.Nil(t, ToReconciliationRecordResponse(pending).ProcessedAt)
}
