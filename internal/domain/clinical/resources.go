package clinical

import (
	"strings"
	"time"
)

// Resource type names as they appear in resourceType.
const (
	ResourceTypePatient           = "Patient"
	ResourceTypeEncounter         = "Encounter"
	ResourceTypeServiceRequest    = "ServiceRequest"
	ResourceTypeMedicationRequest = "MedicationRequest"
	ResourceTypeMedication        = "Medication"
	ResourceTypeObservation       = "Observation"
)

// Patient is the subject of care.
type Patient struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id"`
	Meta         *Meta       `json:"meta,omitempty"`
	Active       *bool       `json:"active,omitempty"`
	Name         []HumanName `json:"name,omitempty"`
	Gender       string      `json:"gender,omitempty"`
	BirthDate    string      `json:"birthDate,omitempty"`
	Address      []Address   `json:"address,omitempty"`
}

// DisplayName returns the official name if present, else the first name.
func (p *Patient) DisplayName() string {
	for _, n := range p.Name {
		if n.Use == "official" {
			if full := n.Full(); full != "" {
				return full
			}
		}
	}
	for _, n := range p.Name {
		if full := n.Full(); full != "" {
			return full
		}
	}
	return ""
}

// PrimaryAddress returns the home address, else the first address, else nil.
func (p *Patient) PrimaryAddress() *Address {
	if len(p.Address) == 0 {
		return nil
	}
	for i := range p.Address {
		if p.Address[i].Use == "home" {
			return &p.Address[i]
		}
	}
	return &p.Address[0]
}

// Encounter is a clinical interaction. OpenMRS encounters are part of a
// visit, referenced through PartOf.
type Encounter struct {
	ResourceType string     `json:"resourceType"`
	ID           string     `json:"id"`
	Status       string     `json:"status,omitempty"`
	Subject      Reference  `json:"subject,omitempty"`
	PartOf       *Reference `json:"partOf,omitempty"`
}

// VisitID returns the id of the visit the encounter belongs to.
func (e *Encounter) VisitID() string {
	if e.PartOf == nil {
		return ""
	}
	return e.PartOf.ID()
}

// ServiceRequest statuses that mean the request no longer stands.
var serviceRequestCancelled = map[string]bool{
	"revoked":          true,
	"entered-in-error": true,
}

// ServiceRequest is an order for a test or procedure.
type ServiceRequest struct {
	ResourceType string          `json:"resourceType"`
	ID           string          `json:"id"`
	Status       string          `json:"status,omitempty"`
	Intent       string          `json:"intent,omitempty"`
	Code         CodeableConcept `json:"code,omitempty"`
	QuantityQty  *Quantity       `json:"quantityQuantity,omitempty"`
	Subject      Reference       `json:"subject,omitempty"`
	Encounter    Reference       `json:"encounter,omitempty"`
	Requester    Reference       `json:"requester,omitempty"`
}

// IsCancelled reports whether the request has been revoked.
func (s *ServiceRequest) IsCancelled() bool {
	return serviceRequestCancelled[strings.ToLower(s.Status)]
}

// MedicationRequest statuses that mean the prescription no longer stands.
var medicationRequestCancelled = map[string]bool{
	"cancelled":        true,
	"stopped":          true,
	"entered-in-error": true,
}

// DispenseRequest describes how much of a medication to supply.
type DispenseRequest struct {
	Quantity *Quantity `json:"quantity,omitempty"`
}

// Dosage is a free text dosage instruction.
type Dosage struct {
	Text string `json:"text,omitempty"`
}

// MedicationRequest is a prescription.
type MedicationRequest struct {
	ResourceType              string           `json:"resourceType"`
	ID                        string           `json:"id"`
	Status                    string           `json:"status,omitempty"`
	Intent                    string           `json:"intent,omitempty"`
	MedicationReference       *Reference       `json:"medicationReference,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	Subject                   Reference        `json:"subject,omitempty"`
	Encounter                 Reference        `json:"encounter,omitempty"`
	Requester                 Reference        `json:"requester,omitempty"`
	DosageInstruction         []Dosage         `json:"dosageInstruction,omitempty"`
	DispenseRequest           *DispenseRequest `json:"dispenseRequest,omitempty"`
}

// IsCancelled reports whether the prescription has been cancelled or stopped.
func (m *MedicationRequest) IsCancelled() bool {
	return medicationRequestCancelled[strings.ToLower(m.Status)]
}

// DispenseQuantity returns the quantity to dispense, or nil.
func (m *MedicationRequest) DispenseQuantity() *Quantity {
	if m.DispenseRequest == nil {
		return nil
	}
	return m.DispenseRequest.Quantity
}

// Medication is a drug definition.
type Medication struct {
	ResourceType string          `json:"resourceType"`
	ID           string          `json:"id"`
	Code         CodeableConcept `json:"code,omitempty"`
	Status       string          `json:"status,omitempty"`
}

// Observation is a measurement about a patient.
type Observation struct {
	ResourceType      string          `json:"resourceType"`
	ID                string          `json:"id"`
	Status            string          `json:"status,omitempty"`
	Code              CodeableConcept `json:"code,omitempty"`
	Subject           Reference       `json:"subject,omitempty"`
	EffectiveDateTime string          `json:"effectiveDateTime,omitempty"`
	Issued            string          `json:"issued,omitempty"`
	ValueQuantity     *Quantity       `json:"valueQuantity,omitempty"`
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseDateTime parses a FHIR dateTime, which may be partial.
func ParseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ObservedAt returns the effective time, falling back to the issued time.
func (o *Observation) ObservedAt() (time.Time, bool) {
	if t, ok := ParseDateTime(o.EffectiveDateTime); ok {
		return t, true
	}
	return ParseDateTime(o.Issued)
}
