package ingest

import (
	"encoding/json"
	"time"

	"github.com/erp/clinicsync/internal/domain/clinical"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
)

// Delivery is one inbound clinical event notification. Either Bundle is set,
// or ResourceType and ResourceID name the order to fetch.
type Delivery struct {
	// ID identifies the notification for de-duplication. Generated when empty.
	ID           string
	EventTag     string
	ResourceType string
	ResourceID   string
	Bundle       *clinical.Bundle
}

// HasBundle reports whether the delivery carries its bundle inline.
func (d Delivery) HasBundle() bool {
	return d.Bundle != nil
}

// Result is what Ingest and Replay report back for a delivery.
type Result struct {
	Record  *reconciliation.ReconciliationRecord
	Outcome reconciliation.Outcome
	// Duplicate is set when the delivery had already been reconciled
	Duplicate bool
}

// DeadLetter is the archived form of a failed delivery.
type DeadLetter struct {
	DeliveryID     string          `json:"delivery_id"`
	EventTag       string          `json:"event_tag"`
	ResourceType   string          `json:"resource_type,omitempty"`
	ResourceID     string          `json:"resource_id,omitempty"`
	CorrelationKey string          `json:"correlation_key,omitempty"`
	ErrorCode      string          `json:"error_code"`
	ErrorMessage   string          `json:"error_message"`
	FailedAt       time.Time       `json:"failed_at"`
	Bundle         json.RawMessage `json:"bundle"`
}

// Delivery rebuilds the delivery the dead letter was archived from.
func (dl *DeadLetter) Delivery() (Delivery, error) {
	bundle, err := clinical.ParseBundle(dl.Bundle)
	if err != nil {
		return Delivery{}, err
	}
	return Delivery{
		ID:           dl.DeliveryID,
		EventTag:     dl.EventTag,
		ResourceType: dl.ResourceType,
		ResourceID:   dl.ResourceID,
		Bundle:       bundle,
	}, nil
}
