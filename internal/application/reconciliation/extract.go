package reconciliation

import (
	"fmt"
	"strings"

	"github.com/erp/clinicsync/internal/domain/clinical"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
)

// Event is a clinical order event with its resources extracted and checked.
type Event struct {
	Type           reconciliation.EventType
	Tag            string
	CorrelationKey string
	Subject        reconciliation.Subject
	Item           reconciliation.OrderItem
}

// ExtractOptions controls how order items are derived from resources.
type ExtractOptions struct {
	// DefaultServiceUnitRef is the unit of test/procedure lines that carry no quantity
	DefaultServiceUnitRef string
	// DefaultServiceQuantity is the quantity of such lines
	DefaultServiceQuantity decimal.Decimal
}

// ExtractEvent parses the event tag and pulls the subject, the visit and the
// ordered item out of the bundle. Any missing piece is an ErrValidation.
func ExtractEvent(tag string, bundle *clinical.Bundle, opts ExtractOptions) (*Event, error) {
	eventType, err := reconciliation.ParseEventType(tag)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, invalid(tag, "", "no bundle")
	}
	res, err := bundle.Resources()
	if err != nil {
		return nil, &reconciliation.Error{Kind: reconciliation.ErrValidation, Op: "extract", EventTag: tag, Err: err}
	}

	if res.Encounter == nil {
		return nil, invalid(tag, "", "bundle has no Encounter")
	}
	visitID := res.Encounter.VisitID()
	if visitID == "" {
		return nil, invalid(tag, "", fmt.Sprintf("encounter %s is not part of a visit", res.Encounter.ID))
	}
	if res.Patient == nil {
		return nil, invalid(tag, visitID, "bundle has no Patient")
	}
	if res.Patient.ID == "" {
		return nil, invalid(tag, visitID, "patient has no id")
	}

	ev := &Event{
		Type:           eventType,
		Tag:            tag,
		CorrelationKey: visitID,
		Subject:        subjectFromPatient(res.Patient),
	}

	switch {
	case res.ServiceRequest != nil:
		ev.Item, err = serviceItem(res.ServiceRequest, opts)
	case res.MedicationRequest != nil:
		ev.Item, err = medicationItem(res.MedicationRequest, res.Medication)
	default:
		return nil, invalid(tag, visitID, "bundle has no ServiceRequest or MedicationRequest")
	}
	if err != nil {
		return nil, reconciliation.WithEvent(err, visitID, tag)
	}
	return ev, nil
}

func invalid(tag, key, detail string) error {
	return &reconciliation.Error{
		Kind:           reconciliation.ErrValidation,
		Op:             "extract",
		CorrelationKey: key,
		EventTag:       tag,
		Detail:         detail,
	}
}

func subjectFromPatient(p *clinical.Patient) reconciliation.Subject {
	s := reconciliation.Subject{
		ExternalRef: p.ID,
		DisplayName: p.DisplayName(),
	}
	if addr := p.PrimaryAddress(); addr != nil {
		if len(addr.Line) > 0 {
			s.Street = addr.Line[0]
		}
		if len(addr.Line) > 1 {
			s.Street2 = strings.Join(addr.Line[1:], ", ")
		}
		s.City = addr.City
		s.Zip = addr.PostalCode
		region := make([]string, 0, 3)
		for _, part := range []string{addr.District, addr.State, addr.Country} {
			if part = strings.TrimSpace(part); part != "" {
				region = append(region, part)
			}
		}
		s.Region = strings.Join(region, ", ")
	}
	return s
}

func serviceItem(sr *clinical.ServiceRequest, opts ExtractOptions) (reconciliation.OrderItem, error) {
	description := sr.Code.DisplayText()
	if description == "" {
		return reconciliation.OrderItem{}, reconciliation.NewError(reconciliation.ErrValidation, "extract",
			fmt.Sprintf("service request %s has no code display", sr.ID))
	}
	item := reconciliation.OrderItem{
		Kind:       reconciliation.OrderKindServiceRequest,
		Identity:   reconciliation.NewItemIdentity(description, sr.Requester.Display),
		ProductRef: sr.Code.LocalCode(),
		Quantity:   opts.DefaultServiceQuantity,
		UnitRef:    opts.DefaultServiceUnitRef,
		Cancelled:  sr.IsCancelled(),
	}
	if item.Quantity.IsZero() {
		item.Quantity = decimal.NewFromInt(1)
	}
	if q := sr.QuantityQty; q.HasValue() {
		item.Quantity = decimal.NewFromFloat(*q.Value)
		if q.Code != "" {
			item.UnitRef = q.Code
		}
	}
	return item, nil
}

// medicationItem requires the bundled Medication; when the request names one
// by reference the ids must agree.
func medicationItem(mr *clinical.MedicationRequest, med *clinical.Medication) (reconciliation.OrderItem, error) {
	if med == nil {
		return reconciliation.OrderItem{}, reconciliation.NewError(reconciliation.ErrValidation, "extract",
			fmt.Sprintf("medication request %s has no Medication", mr.ID))
	}
	if mr.MedicationReference != nil {
		if ref := mr.MedicationReference.ID(); ref != "" && ref != med.ID {
			return reconciliation.OrderItem{}, reconciliation.NewError(reconciliation.ErrValidation, "extract",
				fmt.Sprintf("medication request %s references Medication/%s but bundle carries Medication/%s", mr.ID, ref, med.ID))
		}
	}
	concept := med.Code
	description := concept.DisplayText()
	if description == "" {
		return reconciliation.OrderItem{}, reconciliation.NewError(reconciliation.ErrValidation, "extract",
			fmt.Sprintf("medication of request %s has no display", mr.ID))
	}

	item := reconciliation.OrderItem{
		Kind:       reconciliation.OrderKindMedicationRequest,
		Identity:   reconciliation.NewItemIdentity(description, mr.Requester.Display),
		ProductRef: concept.LocalCode(),
		Cancelled:  mr.IsCancelled(),
	}
	if q := mr.DispenseQuantity(); q.HasValue() {
		item.Quantity = decimal.NewFromFloat(*q.Value)
		item.UnitRef = q.Code
	}
	return item, nil
}

// validateForUpsert checks what a line needs before any write happens.
func validateForUpsert(item reconciliation.OrderItem) error {
	switch {
	case item.ProductRef == "":
		return reconciliation.NewError(reconciliation.ErrValidation, "extract",
			fmt.Sprintf("%s %q has no product code", item.Kind, item.Identity.Description()))
	case item.UnitRef == "":
		return reconciliation.NewError(reconciliation.ErrValidation, "extract",
			fmt.Sprintf("%s %q has no unit of measure", item.Kind, item.Identity.Description()))
	case !item.Quantity.IsPositive():
		return reconciliation.NewError(reconciliation.ErrValidation, "extract",
			fmt.Sprintf("%s %q has no positive quantity", item.Kind, item.Identity.Description()))
	}
	return nil
}
