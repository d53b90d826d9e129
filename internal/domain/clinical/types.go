package clinical

import (
	"strings"
	"time"
)

// Coding is a code defined by a terminology system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept is a concept with one or more codings and optional text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// DisplayText returns the human readable name of the concept, preferring the
// free text over the first coding display.
func (c CodeableConcept) DisplayText() string {
	if t := strings.TrimSpace(c.Text); t != "" {
		return t
	}
	for _, coding := range c.Coding {
		if d := strings.TrimSpace(coding.Display); d != "" {
			return d
		}
	}
	return ""
}

// LocalCode returns the code of the first coding without a terminology
// system. OpenMRS emits its own concept uuid this way, next to any mapped
// reference terminologies.
func (c CodeableConcept) LocalCode() string {
	for _, coding := range c.Coding {
		if coding.System == "" && coding.Code != "" {
			return coding.Code
		}
	}
	return ""
}

// HasCode reports whether any coding carries the given code.
func (c CodeableConcept) HasCode(code string) bool {
	for _, coding := range c.Coding {
		if coding.Code == code {
			return true
		}
	}
	return false
}

// Reference points at another resource, e.g. "Patient/5946f880".
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

// ID returns the logical id part of the reference.
// "Encounter/abc" and "http://host/fhir/Encounter/abc" both yield "abc".
func (r Reference) ID() string {
	ref := strings.TrimSpace(r.Reference)
	if ref == "" {
		return ""
	}
	if i := strings.Index(ref, "/_history/"); i >= 0 {
		ref = ref[:i]
	}
	parts := strings.Split(strings.TrimSuffix(ref, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// IsZero reports whether the reference is empty.
func (r Reference) IsZero() bool {
	return r.Reference == "" && r.Display == ""
}

// HumanName is a name of a person.
type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// Full returns the name as "<given...> <family>".
func (n HumanName) Full() string {
	if t := strings.TrimSpace(n.Text); t != "" {
		return t
	}
	parts := make([]string, 0, len(n.Given)+1)
	for _, g := range n.Given {
		if g = strings.TrimSpace(g); g != "" {
			parts = append(parts, g)
		}
	}
	if f := strings.TrimSpace(n.Family); f != "" {
		parts = append(parts, f)
	}
	return strings.Join(parts, " ")
}

// Address is a postal address.
type Address struct {
	Use        string   `json:"use,omitempty"`
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	District   string   `json:"district,omitempty"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Country    string   `json:"country,omitempty"`
}

// Quantity is a measured amount.
type Quantity struct {
	Value  *float64 `json:"value,omitempty"`
	Unit   string   `json:"unit,omitempty"`
	System string   `json:"system,omitempty"`
	Code   string   `json:"code,omitempty"`
}

// HasValue reports whether a numeric value is present.
func (q *Quantity) HasValue() bool {
	return q != nil && q.Value != nil
}

// Meta carries resource metadata.
type Meta struct {
	VersionID   string     `json:"versionId,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}
