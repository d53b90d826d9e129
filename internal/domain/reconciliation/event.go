package reconciliation

import "strings"

// EventType is the kind of change a clinical event reports.
type EventType string

const (
	// EventTypeCreate is a newly placed order
	EventTypeCreate EventType = "create"
	// EventTypeUpdate is a modification of an existing order
	EventTypeUpdate EventType = "update"
	// EventTypeDiscontinue is a discontinued order
	EventTypeDiscontinue EventType = "discontinue"
)

// ParseEventType parses the event tag carried by an inbound delivery.
// Both the single letter wire form ("c", "u", "d") and the long form are
// accepted, case-insensitively.
func ParseEventType(tag string) (EventType, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "c", "create":
		return EventTypeCreate, nil
	case "u", "update":
		return EventTypeUpdate, nil
	case "d", "discontinue":
		return EventTypeDiscontinue, nil
	default:
		return "", &Error{Kind: ErrUnsupportedEvent, Op: "parse_event", EventTag: tag}
	}
}

// IsValid returns true if the event type is one of the known values
func (e EventType) IsValid() bool {
	switch e {
	case EventTypeCreate, EventTypeUpdate, EventTypeDiscontinue:
		return true
	default:
		return false
	}
}

// IsUpsert reports whether the event creates or updates an order line.
func (e EventType) IsUpsert() bool {
	return e == EventTypeCreate || e == EventTypeUpdate
}

// Tag returns the single letter wire form.
func (e EventType) Tag() string {
	switch e {
	case EventTypeCreate:
		return "c"
	case EventTypeUpdate:
		return "u"
	case EventTypeDiscontinue:
		return "d"
	default:
		return ""
	}
}

// String returns the string representation of EventType
func (e EventType) String() string {
	return string(e)
}

// OrderKind is the clinical resource type an order event is about.
type OrderKind string

const (
	OrderKindServiceRequest    OrderKind = "ServiceRequest"
	OrderKindMedicationRequest OrderKind = "MedicationRequest"
)

// ParseOrderKind maps a FHIR resource type name to an OrderKind.
func ParseOrderKind(resourceType string) (OrderKind, bool) {
	switch OrderKind(resourceType) {
	case OrderKindServiceRequest:
		return OrderKindServiceRequest, true
	case OrderKindMedicationRequest:
		return OrderKindMedicationRequest, true
	default:
		return "", false
	}
}

// String returns the string representation of OrderKind
func (k OrderKind) String() string {
	return string(k)
}
