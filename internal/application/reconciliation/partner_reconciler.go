package reconciliation

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
)

// PartnerReconciler keeps one ERP partner per clinical subject.
type PartnerReconciler struct {
	store reconciliation.RecordStore
}

// NewPartnerReconciler creates a PartnerReconciler
func NewPartnerReconciler(store reconciliation.RecordStore) *PartnerReconciler {
	return &PartnerReconciler{store: store}
}

// Upsert creates the partner for the subject, or overwrites the mutable
// attributes of the existing one. It performs one search and one create or
// write. More than one partner with the subject's reference is an ErrLookup.
func (p *PartnerReconciler) Upsert(ctx context.Context, subject reconciliation.Subject) (reconciliation.PartnerID, error) {
	if strings.TrimSpace(subject.ExternalRef) == "" {
		return 0, reconciliation.NewError(reconciliation.ErrValidation, "partner.upsert", "subject has no external reference")
	}

	ids, err := p.store.Search(ctx, reconciliation.ModelPartner,
		reconciliation.Where(reconciliation.Eq(reconciliation.FieldPartnerRef, subject.ExternalRef)))
	if err != nil {
		return 0, err
	}

	values := subject.PartnerValues()
	switch len(ids) {
	case 0:
		values[reconciliation.FieldPartnerRef] = subject.ExternalRef
		id, err := p.store.Create(ctx, reconciliation.ModelPartner, values)
		if err != nil {
			return 0, err
		}
		return reconciliation.PartnerID(id), nil
	case 1:
		if _, err := p.store.Write(ctx, reconciliation.ModelPartner, ids, values); err != nil {
			return 0, err
		}
		return reconciliation.PartnerID(ids[0]), nil
	default:
		return 0, reconciliation.NewError(reconciliation.ErrLookup, "partner.upsert",
			fmt.Sprintf("%d partners with ref %q", len(ids), subject.ExternalRef))
	}
}
