package clinical

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedBundle is returned when a bundle or one of its entries cannot be decoded.
var ErrMalformedBundle = errors.New("clinical: malformed bundle")

// Bundle is a FHIR Bundle whose entries are decoded lazily.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleEntry is a single entry of a Bundle.
type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

// BundleSearch carries search metadata for an entry.
type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// ParseBundle decodes a Bundle from JSON.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}
	if b.ResourceType != "Bundle" {
		return nil, fmt.Errorf("%w: resourceType %q is not Bundle", ErrMalformedBundle, b.ResourceType)
	}
	return &b, nil
}

// NewBundle builds a collection bundle from already typed resources.
func NewBundle(resources ...any) (*Bundle, error) {
	b := &Bundle{ResourceType: "Bundle", Type: "collection"}
	for _, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
		}
		b.Entry = append(b.Entry, BundleEntry{Resource: raw})
	}
	return b, nil
}

// Resources holds the typed resources relevant to one order event.
type Resources struct {
	Patient           *Patient
	Encounter         *Encounter
	ServiceRequest    *ServiceRequest
	MedicationRequest *MedicationRequest
	Medication        *Medication
	Observations      []Observation
}

type resourceHeader struct {
	ResourceType string `json:"resourceType"`
}

// Resources decodes the entries of the bundle. The first resource of each
// singular type wins; entries of unrelated types are skipped.
func (b *Bundle) Resources() (*Resources, error) {
	res := &Resources{}
	for i, entry := range b.Entry {
		if len(entry.Resource) == 0 {
			continue
		}
		var hdr resourceHeader
		if err := json.Unmarshal(entry.Resource, &hdr); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformedBundle, i, err)
		}
		var err error
		switch hdr.ResourceType {
		case ResourceTypePatient:
			if res.Patient == nil {
				res.Patient = &Patient{}
				err = json.Unmarshal(entry.Resource, res.Patient)
			}
		case ResourceTypeEncounter:
			if res.Encounter == nil {
				res.Encounter = &Encounter{}
				err = json.Unmarshal(entry.Resource, res.Encounter)
			}
		case ResourceTypeServiceRequest:
			if res.ServiceRequest == nil {
				res.ServiceRequest = &ServiceRequest{}
				err = json.Unmarshal(entry.Resource, res.ServiceRequest)
			}
		case ResourceTypeMedicationRequest:
			if res.MedicationRequest == nil {
				res.MedicationRequest = &MedicationRequest{}
				err = json.Unmarshal(entry.Resource, res.MedicationRequest)
			}
		case ResourceTypeMedication:
			if res.Medication == nil {
				res.Medication = &Medication{}
				err = json.Unmarshal(entry.Resource, res.Medication)
			}
		case ResourceTypeObservation:
			var obs Observation
			if err = json.Unmarshal(entry.Resource, &obs); err == nil {
				res.Observations = append(res.Observations, obs)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d (%s): %v", ErrMalformedBundle, i, hdr.ResourceType, err)
		}
	}
	return res, nil
}
