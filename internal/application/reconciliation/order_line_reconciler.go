package reconciliation

import (
	"context"
	"fmt"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
)

// OrderLineReconciler keeps at most one line per (order, item identity).
type OrderLineReconciler struct {
	store reconciliation.RecordStore
}

// NewOrderLineReconciler creates an OrderLineReconciler
func NewOrderLineReconciler(store reconciliation.RecordStore) *OrderLineReconciler {
	return &OrderLineReconciler{store: store}
}

// Find returns the line of the item within the order.
func (r *OrderLineReconciler) Find(
	ctx context.Context,
	orderID reconciliation.OrderID,
	identity reconciliation.ItemIdentity,
) (reconciliation.LineID, bool, error) {
	ids, err := r.store.Search(ctx, reconciliation.ModelOrderLine, reconciliation.Where(
		reconciliation.Eq(reconciliation.FieldLineOrder, int64(orderID)),
		reconciliation.Eq(reconciliation.FieldLineName, identity.Label()),
	))
	if err != nil {
		return 0, false, err
	}
	switch len(ids) {
	case 0:
		return 0, false, nil
	case 1:
		return reconciliation.LineID(ids[0]), true, nil
	default:
		return 0, false, reconciliation.NewError(reconciliation.ErrLookup, "line.find",
			fmt.Sprintf("%d lines for %q in order %d", len(ids), identity.Label(), orderID))
	}
}

// Upsert updates the quantity, unit and label of the item's line in place,
// or creates the line when the order has none for the item.
func (r *OrderLineReconciler) Upsert(ctx context.Context, spec reconciliation.LineSpec) (reconciliation.LineID, error) {
	if spec.Identity.IsZero() {
		return 0, reconciliation.NewError(reconciliation.ErrValidation, "line.upsert", "item has no description")
	}
	lineID, found, err := r.Find(ctx, spec.OrderID, spec.Identity)
	if err != nil {
		return 0, err
	}

	values := spec.Values()
	if found {
		if _, err := r.store.Write(ctx, reconciliation.ModelOrderLine, []int64{int64(lineID)}, values); err != nil {
			return 0, err
		}
		return lineID, nil
	}

	values[reconciliation.FieldLineOrder] = int64(spec.OrderID)
	id, err := r.store.Create(ctx, reconciliation.ModelOrderLine, values)
	if err != nil {
		return 0, err
	}
	return reconciliation.LineID(id), nil
}

// Delete removes the item's line. It reports false, without error, when the
// order has no such line.
func (r *OrderLineReconciler) Delete(
	ctx context.Context,
	orderID reconciliation.OrderID,
	identity reconciliation.ItemIdentity,
) (bool, error) {
	lineID, found, err := r.Find(ctx, orderID, identity)
	if err != nil || !found {
		return false, err
	}
	return r.store.Unlink(ctx, reconciliation.ModelOrderLine, []int64{int64(lineID)})
}
