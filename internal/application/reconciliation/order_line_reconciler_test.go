package reconciliation

import (
	"context"
	"testing"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLine(orderID reconciliation.OrderID, qty int64) reconciliation.LineSpec {
	return reconciliation.LineSpec{
		OrderID:   orderID,
		Identity:  reconciliation.NewItemIdentity(testHepCName, testOrderer),
		ProductID: 3,
		Quantity:  decimal.NewFromInt(qty),
		UnitID:    4,
	}
}

func TestOrderLineReconciler_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("creates then updates in place", func(t *testing.T) {
		erp := newTestERP()
		lines := NewOrderLineReconciler(erp.store)

		first, err := lines.Upsert(ctx, testLine(10, 1))
		require.NoError(t, err)
		second, err := lines.Upsert(ctx, testLine(10, 3))
		require.NoError(t, err)
		assert.Equal(t, first, second)

		all := erp.lines()
		require.Len(t, all, 1)
		assert.Equal(t, "Hepatitis C test - qualitative | Orderer: Super User (Identifier: admin)",
			all[0].String(reconciliation.FieldLineName))
		assert.Equal(t, 3.0, all[0][reconciliation.FieldLineQuantity])
		assert.Equal(t, int64(10), all[0][reconciliation.FieldLineOrder])
	})

	t.Run("same item in another order is another line", func(t *testing.T) {
		erp := newTestERP()
		lines := NewOrderLineReconciler(erp.store)
		a, err := lines.Upsert(ctx, testLine(10, 1))
		require.NoError(t, err)
		b, err := lines.Upsert(ctx, testLine(11, 1))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("another orderer is another item", func(t *testing.T) {
		erp := newTestERP()
		lines := NewOrderLineReconciler(erp.store)
		_, err := lines.Upsert(ctx, testLine(10, 1))
		require.NoError(t, err)
		other := testLine(10, 1)
		other.Identity = reconciliation.NewItemIdentity(testHepCName, "Dr Other")
		_, err = lines.Upsert(ctx, other)
		require.NoError(t, err)
		assert.Len(t, erp.lines(), 2)
	})

	t.Run("duplicate lines are a lookup error", func(t *testing.T) {
		erp := newTestERP()
		label := reconciliation.NewItemIdentity(testHepCName, testOrderer).Label()
		for i := 0; i < 2; i++ {
			erp.store.seed(reconciliation.ModelOrderLine, map[string]any{
				reconciliation.FieldLineOrder: int64(10), reconciliation.FieldLineName: label,
			})
		}
		_, err := NewOrderLineReconciler(erp.store).Upsert(ctx, testLine(10, 1))
		assert.ErrorIs(t, err, reconciliation.ErrLookup)
	})

	t.Run("item without description is rejected", func(t *testing.T) {
		erp := newTestERP()
		spec := testLine(10, 1)
		spec.Identity = reconciliation.NewItemIdentity("", testOrderer)
		_, err := NewOrderLineReconciler(erp.store).Upsert(ctx, spec)
		assert.ErrorIs(t, err, reconciliation.ErrValidation)
	})
}

func TestOrderLineReconciler_Delete(t *testing.T) {
	ctx := context.Background()
	erp := newTestERP()
	lines := NewOrderLineReconciler(erp.store)
	identity := reconciliation.NewItemIdentity(testHepCName, testOrderer)

	_, err := lines.Upsert(ctx, testLine(10, 1))
	require.NoError(t, err)

	deleted, err := lines.Delete(ctx, 10, identity)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, erp.lines())

	deleted, err = lines.Delete(ctx, 10, identity)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 1, erp.store.count("unlink", reconciliation.ModelOrderLine))
}
