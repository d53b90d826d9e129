package reconciliation

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
)

// FieldExternalModule is the module part of an ERP external id.
const FieldExternalModule = "module"

// ExternalIDResolver resolves external ids ("module.name" or "name") of one
// ERP model to internal record ids through ir.model.data. Exactly one match
// is required.
type ExternalIDResolver struct {
	store reconciliation.RecordStore
	model string
	op    string
}

// NewExternalIDResolver creates a resolver for the given model.
func NewExternalIDResolver(store reconciliation.RecordStore, model, op string) *ExternalIDResolver {
	return &ExternalIDResolver{store: store, model: model, op: op}
}

// Resolve returns the record id the external reference points at.
func (r *ExternalIDResolver) Resolve(ctx context.Context, externalRef string) (int64, error) {
	ref := strings.TrimSpace(externalRef)
	if ref == "" {
		return 0, reconciliation.NewError(reconciliation.ErrValidation, r.op,
			fmt.Sprintf("empty %s reference", r.model))
	}

	criteria := reconciliation.Where(reconciliation.Eq(reconciliation.FieldExternalModel, r.model))
	if module, name, ok := strings.Cut(ref, "."); ok && module != "" && name != "" {
		criteria = append(criteria,
			reconciliation.Eq(FieldExternalModule, module),
			reconciliation.Eq(reconciliation.FieldExternalName, name))
	} else {
		criteria = append(criteria, reconciliation.Eq(reconciliation.FieldExternalName, ref))
	}

	records, err := r.store.SearchRead(ctx, reconciliation.ModelExternal, criteria,
		[]string{reconciliation.FieldExternalResID})
	if err != nil {
		return 0, err
	}

	switch len(records) {
	case 0:
		return 0, reconciliation.NewError(reconciliation.ErrNotFound, r.op,
			fmt.Sprintf("no %s with external id %q", r.model, ref))
	case 1:
		id, ok := records[0].RelationID(reconciliation.FieldExternalResID)
		if !ok || id <= 0 {
			return 0, reconciliation.NewError(reconciliation.ErrNotFound, r.op,
				fmt.Sprintf("external id %q has no %s record", ref, r.model))
		}
		return id, nil
	default:
		return 0, reconciliation.NewError(reconciliation.ErrAmbiguousReference, r.op,
			fmt.Sprintf("%d %s records match external id %q", len(records), r.model, ref))
	}
}

// ---------------------------------------------------------------------------
// Units
// ---------------------------------------------------------------------------

// UnitResolver maps unit of measure external references to ERP unit ids.
type UnitResolver struct {
	ids *ExternalIDResolver
}

// NewUnitResolver creates a UnitResolver
func NewUnitResolver(store reconciliation.RecordStore) *UnitResolver {
	return &UnitResolver{ids: NewExternalIDResolver(store, reconciliation.ModelUnit, "unit.resolve")}
}

// Resolve returns the unit id for an external reference. Zero matches fail
// with ErrNotFound, several with ErrAmbiguousReference.
func (r *UnitResolver) Resolve(ctx context.Context, externalRef string) (reconciliation.UnitID, error) {
	id, err := r.ids.Resolve(ctx, externalRef)
	return reconciliation.UnitID(id), err
}

// Scope returns a resolver that remembers successful resolutions. A scope
// lives for one reconciliation operation and must not be shared.
func (r *UnitResolver) Scope() *UnitScope {
	return &UnitScope{resolver: r, cache: make(map[string]reconciliation.UnitID)}
}

// UnitScope is a UnitResolver with a per-operation cache.
type UnitScope struct {
	resolver *UnitResolver
	cache    map[string]reconciliation.UnitID
}

// Resolve resolves through the cache.
func (s *UnitScope) Resolve(ctx context.Context, externalRef string) (reconciliation.UnitID, error) {
	if id, ok := s.cache[externalRef]; ok {
		return id, nil
	}
	id, err := s.resolver.Resolve(ctx, externalRef)
	if err != nil {
		return 0, err
	}
	s.cache[externalRef] = id
	return id, nil
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// ProductResolver maps clinical concept references to ERP product ids.
type ProductResolver struct {
	ids *ExternalIDResolver
}

// NewProductResolver creates a ProductResolver
func NewProductResolver(store reconciliation.RecordStore) *ProductResolver {
	return &ProductResolver{ids: NewExternalIDResolver(store, reconciliation.ModelProduct, "product.resolve")}
}

// Resolve returns the product id for an external reference.
func (r *ProductResolver) Resolve(ctx context.Context, externalRef string) (reconciliation.ProductID, error) {
	id, err := r.ids.Resolve(ctx, externalRef)
	return reconciliation.ProductID(id), err
}
