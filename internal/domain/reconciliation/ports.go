package reconciliation

import (
	"context"
	"time"

	"github.com/erp/clinicsync/internal/domain/clinical"
)

// ---------------------------------------------------------------------------
// ERP models and fields
// ---------------------------------------------------------------------------

const (
	ModelPartner   = "res.partner"
	ModelOrder     = "sale.order"
	ModelOrderLine = "sale.order.line"
	ModelUnit      = "uom.uom"
	ModelProduct   = "product.product"
	ModelExternal  = "ir.model.data"
)

const (
	FieldID = "id"

	FieldPartnerRef     = "ref"
	FieldPartnerName    = "name"
	FieldPartnerStreet  = "street"
	FieldPartnerStreet2 = "street2"
	FieldPartnerCity    = "city"
	FieldPartnerZip     = "zip"
	FieldPartnerComment = "comment"

	FieldOrderRef     = "client_order_ref"
	FieldOrderState   = "state"
	FieldOrderPartner = "partner_id"
	FieldOrderLines   = "order_line"

	FieldLineOrder    = "order_id"
	FieldLineName     = "name"
	FieldLineProduct  = "product_id"
	FieldLineQuantity = "product_uom_qty"
	FieldLineUnit     = "product_uom"

	FieldExternalModel = "model"
	FieldExternalName  = "name"
	FieldExternalResID = "res_id"
)

// ---------------------------------------------------------------------------
// Criteria
// ---------------------------------------------------------------------------

// Operator is a comparison operator supported by the record store.
type Operator string

const (
	OpEqual    Operator = "="
	OpNotEqual Operator = "!="
)

// Criterion is a single (field, operator, value) condition.
type Criterion struct {
	Field    string
	Operator Operator
	Value    any
}

// Criteria is a conjunction of conditions.
type Criteria []Criterion

// Eq returns a field = value condition.
func Eq(field string, value any) Criterion {
	return Criterion{Field: field, Operator: OpEqual, Value: value}
}

// Ne returns a field != value condition.
func Ne(field string, value any) Criterion {
	return Criterion{Field: field, Operator: OpNotEqual, Value: value}
}

// Where builds Criteria from conditions.
func Where(conds ...Criterion) Criteria {
	return Criteria(conds)
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// RecordStore is the ERP persistence port. Every method is a blocking remote
// call; transport failures are reported as ErrRemoteService.
type RecordStore interface {
	// Search returns the ids of records matching criteria.
	Search(ctx context.Context, model string, criteria Criteria) ([]int64, error)
	// SearchRead returns the requested fields of records matching criteria.
	// The id field is always included.
	SearchRead(ctx context.Context, model string, criteria Criteria, fields []string) ([]Record, error)
	// Create creates a record and returns its id.
	Create(ctx context.Context, model string, values map[string]any) (int64, error)
	// Write updates records in place.
	Write(ctx context.Context, model string, ids []int64, values map[string]any) (bool, error)
	// Unlink deletes records.
	Unlink(ctx context.Context, model string, ids []int64) (bool, error)
}

// ObservationSource searches observations in the clinical system.
type ObservationSource interface {
	// SearchObservations returns the observations of the given code recorded
	// for the subject. Order is unspecified.
	SearchObservations(ctx context.Context, subjectRef, code string) ([]clinical.Observation, error)
}

// KeyLocker provides mutual exclusion per correlation key.
type KeyLocker interface {
	// Lock blocks until the key is held or ctx is done. The returned function
	// releases the key.
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
