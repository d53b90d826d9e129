package reconciliation

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// ---------------------------------------------------------------------------
// ERP record identifiers
// ---------------------------------------------------------------------------

// PartnerID is the ERP id of a partner record.
type PartnerID int64

// OrderID is the ERP id of a sale order record.
type OrderID int64

// LineID is the ERP id of a sale order line record.
type LineID int64

// UnitID is the ERP id of a unit of measure.
type UnitID int64

// ProductID is the ERP id of a product.
type ProductID int64

// ---------------------------------------------------------------------------
// Subject / Partner
// ---------------------------------------------------------------------------

// Subject is the patient an event is about, as the ERP should see it.
type Subject struct {
	// ExternalRef is the patient uuid in the medical records system
	ExternalRef string
	// DisplayName is the full name
	DisplayName string
	Street      string
	Street2     string
	City        string
	Zip         string
	// Region holds state and country as free text
	Region string
}

// PartnerValues returns the mutable partner attributes as ERP field values.
func (s Subject) PartnerValues() map[string]any {
	return map[string]any{
		FieldPartnerName:    s.DisplayName,
		FieldPartnerStreet:  s.Street,
		FieldPartnerStreet2: s.Street2,
		FieldPartnerCity:    s.City,
		FieldPartnerZip:     s.Zip,
		FieldPartnerComment: s.Region,
	}
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// OrderState is the lifecycle state of a sale order.
type OrderState string

const (
	// OrderStateDraft is an order still being assembled; the only state the engine mutates
	OrderStateDraft OrderState = "draft"
	// OrderStateSent is a quotation sent to the customer
	OrderStateSent OrderState = "sent"
	// OrderStateConfirmed is a confirmed order, owned by downstream processes
	OrderStateConfirmed OrderState = "sale"
	// OrderStateDone is a locked order
	OrderStateDone OrderState = "done"
	// OrderStateCancelled is terminal
	OrderStateCancelled OrderState = "cancel"
)

// IsTerminal returns true if the engine must never touch the order again.
func (s OrderState) IsTerminal() bool {
	return s == OrderStateCancelled || s == OrderStateDone
}

// String returns the string representation of OrderState
func (s OrderState) String() string {
	return string(s)
}

// Order is the ERP view of a sale order.
type Order struct {
	ID             OrderID
	CorrelationKey string
	PartnerID      PartnerID
	State          OrderState
	LineIDs        []LineID
	Enrichment     string
}

// IsEmpty reports whether the order has no lines.
func (o *Order) IsEmpty() bool {
	return len(o.LineIDs) == 0
}

// Enrichment is the optional measurement attached to an order at creation.
type Enrichment struct {
	Value   string
	Present bool
}

// NoEnrichment is the absent enrichment value.
var NoEnrichment = Enrichment{}

// Resolve returns the value to store, using sentinel when absent.
func (e Enrichment) Resolve(sentinel string) string {
	if !e.Present {
		return sentinel
	}
	return e.Value
}

// ---------------------------------------------------------------------------
// Order lines
// ---------------------------------------------------------------------------

// ItemIdentity identifies one clinical item within an order. It is derived
// from the item description and the ordering provider, so the same clinical
// order always maps to the same line.
type ItemIdentity struct {
	description string
	provider    string
}

// NewItemIdentity builds an identity. Both parts are NFC-normalized and have
// their whitespace collapsed.
func NewItemIdentity(description, provider string) ItemIdentity {
	return ItemIdentity{
		description: canonical(description),
		provider:    canonical(provider),
	}
}

func canonical(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// Description returns the normalized item description.
func (i ItemIdentity) Description() string {
	return i.description
}

// Provider returns the normalized ordering provider.
func (i ItemIdentity) Provider() string {
	return i.provider
}

// IsZero reports whether the identity has no description.
func (i ItemIdentity) IsZero() bool {
	return i.description == ""
}

// Label returns the line label, which doubles as the stored identity key.
// Format: "<description> | Orderer: <provider>".
func (i ItemIdentity) Label() string {
	if i.provider == "" {
		return i.description
	}
	return i.description + " | Orderer: " + i.provider
}

// String returns the label
func (i ItemIdentity) String() string {
	return i.Label()
}

// LineSpec is the desired state of one order line.
type LineSpec struct {
	OrderID   OrderID
	Identity  ItemIdentity
	ProductID ProductID
	Quantity  decimal.Decimal
	UnitID    UnitID
}

// Values returns the ERP field values of the line, without the order id.
func (s LineSpec) Values() map[string]any {
	qty, _ := s.Quantity.Float64()
	return map[string]any{
		FieldLineName:     s.Identity.Label(),
		FieldLineProduct:  int64(s.ProductID),
		FieldLineQuantity: qty,
		FieldLineUnit:     int64(s.UnitID),
	}
}

// OrderItem is the clinical item an event carries, ready for reconciliation.
type OrderItem struct {
	Kind     OrderKind
	Identity ItemIdentity
	// ProductRef is the external id of the ordered product
	ProductRef string
	Quantity   decimal.Decimal
	// UnitRef is the external id of the unit of measure
	UnitRef   string
	Cancelled bool
}
