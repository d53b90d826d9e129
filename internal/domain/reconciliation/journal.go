package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Outcome
// ---------------------------------------------------------------------------

// Action is what the engine did for one event.
type Action string

const (
	ActionOrderCreated   Action = "ORDER_CREATED"
	ActionLineUpserted   Action = "LINE_UPSERTED"
	ActionLineDeleted    Action = "LINE_DELETED"
	ActionOrderCancelled Action = "ORDER_CANCELLED"
	ActionNoop           Action = "NOOP"
)

// Outcome summarizes the effect of a dispatched event.
type Outcome struct {
	EventType      EventType
	Kind           OrderKind
	CorrelationKey string
	Action         Action
	PartnerID      PartnerID
	OrderID        OrderID
	LineID         LineID
	// OrderCancelled is set when the event emptied and cancelled the order
	OrderCancelled bool
}

// ---------------------------------------------------------------------------
// Journal
// ---------------------------------------------------------------------------

// RecordStatus is the processing status of a delivery.
type RecordStatus string

const (
	RecordStatusSucceeded RecordStatus = "SUCCEEDED"
	RecordStatusFailed    RecordStatus = "FAILED"
	RecordStatusDuplicate RecordStatus = "DUPLICATE"
)

// IsValid returns true if the status is valid
func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusSucceeded, RecordStatusFailed, RecordStatusDuplicate:
		return true
	default:
		return false
	}
}

// String returns the string representation of RecordStatus
func (s RecordStatus) String() string {
	return string(s)
}

// ReconciliationRecord is the journal entry of one processed delivery.
type ReconciliationRecord struct {
	ID uuid.UUID
	// DeliveryID identifies the inbound delivery, used for de-duplication
	DeliveryID string
	EventType  EventType
	// EventTag is the tag as received
	EventTag       string
	ResourceType   string
	ResourceID     string
	CorrelationKey string
	Status         RecordStatus
	Action         Action
	OrderID        *int64
	LineID         *int64
	ErrorCode      string
	ErrorMessage   string
	// DeadLetterKey locates the archived bundle of a failed delivery
	DeadLetterKey string
	Attempts      int
	DurationMs    int64
	ProcessedAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewReconciliationRecord creates a journal entry for a delivery.
func NewReconciliationRecord(deliveryID, eventTag string) *ReconciliationRecord {
	now := time.Now()
	return &ReconciliationRecord{
		ID:         uuid.New(),
		DeliveryID: deliveryID,
		EventTag:   eventTag,
		Attempts:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MarkSucceeded records a successful outcome.
func (r *ReconciliationRecord) MarkSucceeded(out Outcome) {
	r.Status = RecordStatusSucceeded
	r.Action = out.Action
	r.ErrorCode = ""
	r.ErrorMessage = ""
	if out.OrderID != 0 {
		id := int64(out.OrderID)
		r.OrderID = &id
	}
	if out.LineID != 0 {
		id := int64(out.LineID)
		r.LineID = &id
	}
	r.touch()
}

// MarkFailed records a failure.
func (r *ReconciliationRecord) MarkFailed(err error) {
	r.Status = RecordStatusFailed
	if kind := KindOf(err); kind != nil {
		r.ErrorCode = kind.Code
	} else {
		r.ErrorCode = ErrRemoteService.Code
	}
	r.ErrorMessage = err.Error()
	r.touch()
}

// MarkDuplicate records that the delivery was already processed.
func (r *ReconciliationRecord) MarkDuplicate() {
	r.Status = RecordStatusDuplicate
	r.Action = ActionNoop
	r.touch()
}

func (r *ReconciliationRecord) touch() {
	r.ProcessedAt = time.Now()
	r.UpdatedAt = r.ProcessedAt
}

// JournalFilter narrows journal queries.
type JournalFilter struct {
	Status         RecordStatus
	EventType      EventType
	CorrelationKey string
	Page           int
	PageSize       int
	OrderBy        string
	OrderDir       string
}

// Offset returns the row offset of the filter's page.
func (f JournalFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}

// Limit returns the page size, defaulting to 20 and capped at 100.
func (f JournalFilter) Limit() int {
	switch {
	case f.PageSize <= 0:
		return 20
	case f.PageSize > 100:
		return 100
	default:
		return f.PageSize
	}
}

// JournalRepository persists reconciliation records.
type JournalRepository interface {
	Save(ctx context.Context, record *ReconciliationRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*ReconciliationRecord, error)
	FindByDeliveryID(ctx context.Context, deliveryID string) (*ReconciliationRecord, error)
	FindAll(ctx context.Context, filter JournalFilter) ([]ReconciliationRecord, int64, error)
	// PurgeBefore deletes records processed before cutoff and returns how many were removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
