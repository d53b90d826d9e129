package handler

import (
	"context"

	"github.com/erp/clinicsync/internal/application/ingest"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/erp/clinicsync/internal/interfaces/http/dto"
	"github.com/erp/clinicsync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Journal reads and replays journal records
type Journal interface {
	Record(ctx context.Context, id uuid.UUID) (*reconciliation.ReconciliationRecord, error)
	Records(ctx context.Context, filter reconciliation.JournalFilter) ([]reconciliation.ReconciliationRecord, int64, error)
	Replay(ctx context.Context, recordID uuid.UUID) (*ingest.Result, error)
}

// ReconciliationHandler exposes the reconciliation journal
type ReconciliationHandler struct {
	BaseHandler
	journal Journal
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(journal Journal) *ReconciliationHandler {
	return &ReconciliationHandler{journal: journal}
}

// List godoc
// @ID           listReconciliations
// @Summary      List reconciliation records
// @Description  Lists journal records, newest first unless order_by or order_dir is set
// @Tags         reconciliations
// @Produce      json
// @Param        page            query int    false "Page number" default(1)
// @Param        page_size       query int    false "Page size" default(20) maximum(100)
// @Param        order_by        query string false "Sort field" Enums(created_at, updated_at, processed_at, status, correlation_key, duration_ms)
// @Param        order_dir       query string false "Sort direction" Enums(asc, desc)
// @Param        status          query string false "Record status" Enums(SUCCEEDED, FAILED, DUPLICATE)
// @Param        event_type      query string false "Event type" Enums(create, update, discontinue)
// @Param        correlation_key query string false "Visit id"
// @Success      200 {object} APIResponse[[]dto.ReconciliationRecordResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations [get]
func (h *ReconciliationHandler) List(c *gin.Context) {
	var req dto.ListReconciliationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := req.Filter()
	records, total, err := h.journal.Records(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]dto.ReconciliationRecordResponse, len(records))
	for i := range records {
		items[i] = dto.ToReconciliationRecordResponse(&records[i])
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	h.SuccessWithMeta(c, items, total, page, filter.Limit())
}

// Get godoc
// @ID           getReconciliation
// @Summary      Get a reconciliation record
// @Tags         reconciliations
// @Produce      json
// @Param        id path string true "Record ID" format(uuid)
// @Success      200 {object} APIResponse[dto.ReconciliationRecordResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id} [get]
func (h *ReconciliationHandler) Get(c *gin.Context) {
	id, ok := h.recordID(c)
	if !ok {
		return
	}
	record, err := h.journal.Record(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToReconciliationRecordResponse(record))
}

// Replay godoc
// @ID           replayReconciliation
// @Summary      Replay a failed delivery
// @Description  Re-runs a FAILED record from its dead-letter bundle, or by fetching the order again
// @Tags         reconciliations
// @Produce      json
// @Param        id path string true "Record ID" format(uuid)
// @Success      200 {object} APIResponse[dto.IngestResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} IngestErrorResponse
// @Failure      503 {object} IngestErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id}/replay [post]
func (h *ReconciliationHandler) Replay(c *gin.Context) {
	id, ok := h.recordID(c)
	if !ok {
		return
	}
	result, err := h.journal.Replay(c.Request.Context(), id)
	if err != nil {
		var data any
		if result != nil && result.Record != nil {
			data = toIngestResponse(result)
		}
		h.HandleErrorWithData(c, err, data)
		return
	}
	h.Success(c, toIngestResponse(result))
}

func (h *ReconciliationHandler) recordID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}
