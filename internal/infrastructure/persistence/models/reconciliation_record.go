package models

import (
	"time"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
)

// ReconciliationRecordModel is the persistence model of one journaled delivery.
type ReconciliationRecordModel struct {
	BaseModel
	DeliveryID     string     `gorm:"type:varchar(128);not null;uniqueIndex"`
	EventType      string     `gorm:"type:varchar(20)"`
	EventTag       string     `gorm:"type:varchar(20);not null"`
	ResourceType   string     `gorm:"type:varchar(50)"`
	ResourceID     string     `gorm:"type:varchar(128)"`
	CorrelationKey string     `gorm:"type:varchar(128);index"`
	Status         string     `gorm:"type:varchar(20);not null;index"`
	Action         string     `gorm:"type:varchar(30)"`
	OrderID        *int64     `gorm:"column:order_id"`
	LineID         *int64     `gorm:"column:line_id"`
	ErrorCode      string     `gorm:"type:varchar(50)"`
	ErrorMessage   string     `gorm:"type:text"`
	DeadLetterKey  string     `gorm:"type:varchar(512)"`
	Attempts       int        `gorm:"not null;default:1"`
	DurationMs     int64      `gorm:"not null;default:0"`
	ProcessedAt    *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (ReconciliationRecordModel) TableName() string {
	return "reconciliation_records"
}

// ToDomain converts the persistence model to a domain record
func (m *ReconciliationRecordModel) ToDomain() *reconciliation.ReconciliationRecord {
	r := &reconciliation.ReconciliationRecord{
		ID:             m.ID,
		DeliveryID:     m.DeliveryID,
		EventType:      reconciliation.EventType(m.EventType),
		EventTag:       m.EventTag,
		ResourceType:   m.ResourceType,
		ResourceID:     m.ResourceID,
		CorrelationKey: m.CorrelationKey,
		Status:         reconciliation.RecordStatus(m.Status),
		Action:         reconciliation.Action(m.Action),
		OrderID:        m.OrderID,
		LineID:         m.LineID,
		ErrorCode:      m.ErrorCode,
		ErrorMessage:   m.ErrorMessage,
		DeadLetterKey:  m.DeadLetterKey,
		Attempts:       m.Attempts,
		DurationMs:     m.DurationMs,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.ProcessedAt != nil {
		r.ProcessedAt = *m.ProcessedAt
	}
	return r
}

// ReconciliationRecordModelFromDomain maps a domain record to its model
func ReconciliationRecordModelFromDomain(r *reconciliation.ReconciliationRecord) *ReconciliationRecordModel {
	m := &ReconciliationRecordModel{
		BaseModel: BaseModel{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
		DeliveryID:     r.DeliveryID,
		EventType:      string(r.EventType),
		EventTag:       r.EventTag,
		ResourceType:   r.ResourceType,
		ResourceID:     r.ResourceID,
		CorrelationKey: r.CorrelationKey,
		Status:         string(r.Status),
		Action:         string(r.Action),
		OrderID:        r.OrderID,
		LineID:         r.LineID,
		ErrorCode:      r.ErrorCode,
		ErrorMessage:   r.ErrorMessage,
		DeadLetterKey:  r.DeadLetterKey,
		Attempts:       r.Attempts,
		DurationMs:     r.DurationMs,
	}
	if !r.ProcessedAt.IsZero() {
		t := r.ProcessedAt
		m.ProcessedAt = &t
	}
	return m
}
