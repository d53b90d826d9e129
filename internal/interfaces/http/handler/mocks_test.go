package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/erp/clinicsync/internal/application/ingest"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/erp/clinicsync/internal/interfaces/http/dto"
	"github.com/erp/clinicsync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type MockIngestService struct {
	mock.Mock
}

func (m *MockIngestService) Ingest(ctx context.Context, d ingest.Delivery) (*ingest.Result, error) {
	args := m.Called(ctx, d)
	result, _ := args.Get(0).(*ingest.Result)
	return result, args.Error(1)
}

func (m *MockIngestService) Record(ctx context.Context, id uuid.UUID) (*reconciliation.ReconciliationRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*reconciliation.ReconciliationRecord)
	return record, args.Error(1)
}

func (m *MockIngestService) Records(ctx context.Context, filter reconciliation.JournalFilter) ([]reconciliation.ReconciliationRecord, int64, error) {
	args := m.Called(ctx, filter)
	records, _ := args.Get(0).([]reconciliation.ReconciliationRecord)
	return records, args.Get(1).(int64), args.Error(2)
}

func (m *MockIngestService) Replay(ctx context.Context, recordID uuid.UUID) (*ingest.Result, error) {
	args := m.Called(ctx, recordID)
	result, _ := args.Get(0).(*ingest.Result)
	return result, args.Error(1)
}

func succeededRecord(deliveryID string) *reconciliation.ReconciliationRecord {
	record := reconciliation.NewReconciliationRecord(deliveryID, "c")
	record.EventType = reconciliation.EventTypeCreate
	record.ResourceType = "ServiceRequest"
	record.CorrelationKey = "visit-1"
	record.MarkSucceeded(reconciliation.Outcome{Action: reconciliation.ActionOrderCreated, OrderID: 42, LineID: 7})
	return record
}

func failedRecord(deliveryID string, err error) *reconciliation.ReconciliationRecord {
	record := reconciliation.NewReconciliationRecord(deliveryID, "c")
	record.EventType = reconciliation.EventTypeCreate
	record.MarkFailed(err)
	return record
}

// testResponse decodes the envelope with typed data
type testResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) testResponse[T] {
	t.Helper()
	var resp testResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}
