package reconciliation

import (
	"context"
	"fmt"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
)

// DefaultAbsentSentinel is stored in the enrichment field when no measurement
// was available at order creation.
const DefaultAbsentSentinel = "false"

// OrderReconciler finds, creates and cancels draft sale orders keyed by visit.
type OrderReconciler struct {
	store           reconciliation.RecordStore
	enrichmentField string
	absentSentinel  string
}

// NewOrderReconciler creates an OrderReconciler. enrichmentField names the
// order field receiving the enrichment value; empty disables it.
func NewOrderReconciler(store reconciliation.RecordStore, enrichmentField, absentSentinel string) *OrderReconciler {
	if absentSentinel == "" {
		absentSentinel = DefaultAbsentSentinel
	}
	return &OrderReconciler{
		store:           store,
		enrichmentField: enrichmentField,
		absentSentinel:  absentSentinel,
	}
}

// FindDraftByCorrelationKey returns the draft order of the visit. Orders in
// any other state are invisible to the engine. Several drafts fail with
// ErrLookup.
func (r *OrderReconciler) FindDraftByCorrelationKey(ctx context.Context, key string) (reconciliation.OrderID, bool, error) {
	ids, err := r.store.Search(ctx, reconciliation.ModelOrder, reconciliation.Where(
		reconciliation.Eq(reconciliation.FieldOrderRef, key),
		reconciliation.Eq(reconciliation.FieldOrderState, string(reconciliation.OrderStateDraft)),
	))
	if err != nil {
		return 0, false, err
	}
	switch len(ids) {
	case 0:
		return 0, false, nil
	case 1:
		return reconciliation.OrderID(ids[0]), true, nil
	default:
		return 0, false, reconciliation.NewError(reconciliation.ErrLookup, "order.find_draft",
			fmt.Sprintf("%d draft orders for visit %q", len(ids), key))
	}
}

// Create creates a draft order for the visit. The enrichment field is always
// written, with the absent sentinel when no value is available. Callers must
// have checked FindDraftByCorrelationKey first.
func (r *OrderReconciler) Create(
	ctx context.Context,
	key string,
	partnerID reconciliation.PartnerID,
	enrichment reconciliation.Enrichment,
) (reconciliation.OrderID, error) {
	values := map[string]any{
		reconciliation.FieldOrderRef:     key,
		reconciliation.FieldOrderPartner: int64(partnerID),
		reconciliation.FieldOrderState:   string(reconciliation.OrderStateDraft),
	}
	if r.enrichmentField != "" {
		values[r.enrichmentField] = enrichment.Resolve(r.absentSentinel)
	}
	id, err := r.store.Create(ctx, reconciliation.ModelOrder, values)
	if err != nil {
		return 0, err
	}
	return reconciliation.OrderID(id), nil
}

// Get reads an order.
func (r *OrderReconciler) Get(ctx context.Context, id reconciliation.OrderID) (*reconciliation.Order, error) {
	fields := []string{
		reconciliation.FieldOrderRef,
		reconciliation.FieldOrderState,
		reconciliation.FieldOrderPartner,
		reconciliation.FieldOrderLines,
	}
	if r.enrichmentField != "" {
		fields = append(fields, r.enrichmentField)
	}
	records, err := r.store.SearchRead(ctx, reconciliation.ModelOrder,
		reconciliation.Where(reconciliation.Eq(reconciliation.FieldID, int64(id))), fields)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, reconciliation.NewError(reconciliation.ErrNotFound, "order.get", fmt.Sprintf("order %d", id))
	}

	rec := records[0]
	order := &reconciliation.Order{
		ID:             id,
		CorrelationKey: rec.String(reconciliation.FieldOrderRef),
		State:          reconciliation.OrderState(rec.String(reconciliation.FieldOrderState)),
	}
	if pid, ok := rec.RelationID(reconciliation.FieldOrderPartner); ok {
		order.PartnerID = reconciliation.PartnerID(pid)
	}
	for _, lid := range rec.IDs(reconciliation.FieldOrderLines) {
		order.LineIDs = append(order.LineIDs, reconciliation.LineID(lid))
	}
	if r.enrichmentField != "" {
		order.Enrichment = rec.String(r.enrichmentField)
		if order.Enrichment == "" {
			if b, ok := rec[r.enrichmentField].(bool); ok && !b {
				order.Enrichment = r.absentSentinel
			}
		}
	}
	return order, nil
}

// CancelIfEmpty re-reads the order and cancels it when it is a draft without
// lines. It reports whether the order was cancelled. This is the only path
// through which the engine cancels orders.
func (r *OrderReconciler) CancelIfEmpty(ctx context.Context, id reconciliation.OrderID) (bool, error) {
	order, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if order.State != reconciliation.OrderStateDraft || !order.IsEmpty() {
		return false, nil
	}
	if _, err := r.store.Write(ctx, reconciliation.ModelOrder, []int64{int64(id)}, map[string]any{
		reconciliation.FieldOrderState: string(reconciliation.OrderStateCancelled),
	}); err != nil {
		return false, err
	}
	return true, nil
}
