package dto

import (
	"time"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
)

// ListRequest holds the paging and sort query parameters of a listing
type ListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// IDRequest binds a journal record id path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// ListReconciliationsRequest filters the journal listing
type ListReconciliationsRequest struct {
	ListRequest
	Status         string `form:"status" binding:"omitempty,oneof=SUCCEEDED FAILED DUPLICATE"`
	EventType      string `form:"event_type" binding:"omitempty,oneof=create update discontinue"`
	CorrelationKey string `form:"correlation_key" binding:"omitempty,max=128"`
}

// Filter converts the request to a journal filter
func (r ListReconciliationsRequest) Filter() reconciliation.JournalFilter {
	return reconciliation.JournalFilter{
		Status:         reconciliation.RecordStatus(r.Status),
		EventType:      reconciliation.EventType(r.EventType),
		CorrelationKey: r.CorrelationKey,
		Page:           r.Page,
		PageSize:       r.PageSize,
		OrderBy:        r.OrderBy,
		OrderDir:       r.OrderDir,
	}
}

// ReconciliationRecordResponse is the API form of a journal record
// @Description Journal entry of one processed delivery
type ReconciliationRecordResponse struct {
	ID             string     `json:"id" example:"0b6f3f2e-9f0e-4c1a-8a5e-2f7d8c1b9a10"`
	DeliveryID     string     `json:"delivery_id" example:"7f1c2d9e-delivery"`
	EventType      string     `json:"event_type,omitempty" example:"create"`
	EventTag       string     `json:"event_tag" example:"c"`
	ResourceType   string     `json:"resource_type,omitempty" example:"ServiceRequest"`
	ResourceID     string     `json:"resource_id,omitempty"`
	CorrelationKey string     `json:"correlation_key,omitempty" example:"7d2a9bd4-4c1f-4d6b-8d7a-0b1f5f1f2e22"`
	Status         string     `json:"status" example:"SUCCEEDED"`
	Action         string     `json:"action,omitempty" example:"ORDER_CREATED"`
	OrderID        *int64     `json:"order_id,omitempty" example:"42"`
	LineID         *int64     `json:"line_id,omitempty" example:"7"`
	ErrorCode      string     `json:"error_code,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	DeadLetterKey  string     `json:"dead_letter_key,omitempty"`
	Attempts       int        `json:"attempts" example:"1"`
	DurationMs     int64      `json:"duration_ms" example:"120"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ToReconciliationRecordResponse converts a journal record
func ToReconciliationRecordResponse(r *reconciliation.ReconciliationRecord) ReconciliationRecordResponse {
	resp := ReconciliationRecordResponse{
		ID:             r.ID.String(),
		DeliveryID:     r.DeliveryID,
		EventType:      r.EventType.String(),
		EventTag:       r.EventTag,
		ResourceType:   r.ResourceType,
		ResourceID:     r.ResourceID,
		CorrelationKey: r.CorrelationKey,
		Status:         r.Status.String(),
		Action:         string(r.Action),
		OrderID:        r.OrderID,
		LineID:         r.LineID,
		ErrorCode:      r.ErrorCode,
		ErrorMessage:   r.ErrorMessage,
		DeadLetterKey:  r.DeadLetterKey,
		Attempts:       r.Attempts,
		DurationMs:     r.DurationMs,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if !r.ProcessedAt.IsZero() {
		processedAt := r.ProcessedAt
		resp.ProcessedAt = &processedAt
	}
	return resp
}

// IngestResponse is returned for an accepted delivery
// @Description Result of reconciling one delivery
type IngestResponse struct {
	DeliveryID string                       `json:"delivery_id"`
	Duplicate  bool                         `json:"duplicate"`
	Action     string                       `json:"action" example:"LINE_UPSERTED"`
	Record     ReconciliationRecordResponse `json:"record"`
}
