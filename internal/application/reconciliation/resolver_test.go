package reconciliation

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUnitResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("exactly one match returns the record id", func(t *testing.T) {
		erp := newTestERP()
		id, err := NewUnitResolver(erp.store).Resolve(ctx, testTabletRef)
		require.NoError(t, err)
		assert.Equal(t, reconciliation.UnitID(erp.tabletID), id)
	})

	t.Run("module qualified external id", func(t *testing.T) {
		erp := newTestERP()
		id, err := NewUnitResolver(erp.store).Resolve(ctx, testServiceUnit)
		require.NoError(t, err)
		assert.Equal(t, reconciliation.UnitID(erp.unitID), id)
	})

	t.Run("zero matches is not found", func(t *testing.T) {
		erp := newTestERP()
		_, err := NewUnitResolver(erp.store).Resolve(ctx, "unknown-unit")
		assert.ErrorIs(t, err, reconciliation.ErrNotFound)
		assert.NotErrorIs(t, err, reconciliation.ErrAmbiguousReference)
	})

	t.Run("two matches is ambiguous", func(t *testing.T) {
		erp := newTestERP()
		erp.store.seedExternalID(reconciliation.ModelUnit, testTabletRef, erp.unitID)
		_, err := NewUnitResolver(erp.store).Resolve(ctx, testTabletRef)
		assert.ErrorIs(t, err, reconciliation.ErrAmbiguousReference)
	})

	t.Run("external ids of other models do not match", func(t *testing.T) {
		erp := newTestERP()
		_, err := NewUnitResolver(erp.store).Resolve(ctx, testHepCCode)
		assert.ErrorIs(t, err, reconciliation.ErrNotFound)
	})

	t.Run("empty reference is a validation error", func(t *testing.T) {
		erp := newTestERP()
		_, err := NewUnitResolver(erp.store).Resolve(ctx, " ")
		assert.ErrorIs(t, err, reconciliation.ErrValidation)
		assert.Equal(t, 0, erp.store.count("search_read", reconciliation.ModelExternal))
	})
}

func TestUnitResolver_QueriesExternalIDs(t *testing.T) {
	store := new(MockRecordStore)
	store.On("SearchRead", mock.Anything, reconciliation.ModelExternal, reconciliation.Where(
		reconciliation.Eq(reconciliation.FieldExternalModel, reconciliation.ModelUnit),
		reconciliation.Eq(reconciliation.FieldExternalName, "kg-ref"),
	), []string{reconciliation.FieldExternalResID}).
		Return([]reconciliation.Record{{"id": float64(1), "res_id": float64(77)}}, nil)

	id, err := NewUnitResolver(store).Resolve(context.Background(), "kg-ref")
	require.NoError(t, err)
	assert.Equal(t, reconciliation.UnitID(77), id)
	store.AssertExpectations(t)
}

func TestUnitResolver_RemoteFailure(t *testing.T) {
	store := new(MockRecordStore)
	remote := reconciliation.WrapRemote("erp.search_read", errors.New("connection refused"))
	store.On("SearchRead", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, remote)

	_, err := NewUnitResolver(store).Resolve(context.Background(), "kg")
	assert.ErrorIs(t, err, reconciliation.ErrRemoteService)
}

func TestUnitScope_CachesWithinOperation(t *testing.T) {
	erp := newTestERP()
	resolver := NewUnitResolver(erp.store)
	scope := resolver.Scope()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := scope.Resolve(ctx, testTabletRef)
		require.NoError(t, err)
		assert.Equal(t, reconciliation.UnitID(erp.tabletID), id)
	}
	assert.Equal(t, 1, erp.store.count("search_read", reconciliation.ModelExternal))

	// a new scope does not see the previous cache
	_, err := resolver.Scope().Resolve(ctx, testTabletRef)
	require.NoError(t, err)
	assert.Equal(t, 2, erp.store.count("search_read", reconciliation.ModelExternal))
}

func TestUnitScope_DoesNotCacheFailures(t *testing.T) {
	erp := newTestERP()
	scope := NewUnitResolver(erp.store).Scope()
	ctx := context.Background()

	_, err := scope.Resolve(ctx, "late-unit")
	assert.ErrorIs(t, err, reconciliation.ErrNotFound)

	unit := erp.store.seed(reconciliation.ModelUnit, map[string]any{"name": "Late"})
	erp.store.seedExternalID(reconciliation.ModelUnit, "late-unit", unit)
	id, err := scope.Resolve(ctx, "late-unit")
	require.NoError(t, err)
	assert.Equal(t, reconciliation.UnitID(unit), id)
}

func TestProductResolver_Resolve(t *testing.T) {
	erp := newTestERP()
	id, err := NewProductResolver(erp.store).Resolve(context.Background(), testHepCCode)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.ProductID(erp.hepCProduct), id)

	_, err = NewProductResolver(erp.store).Resolve(context.Background(), testTabletRef)
	assert.ErrorIs(t, err, reconciliation.ErrNotFound)
}
