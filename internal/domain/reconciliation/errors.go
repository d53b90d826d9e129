package reconciliation

import (
	"errors"
	"strings"

	"github.com/erp/clinicsync/internal/domain/shared"
)

// Error kinds. Match them with errors.Is against any error returned by the
// engine or its adapters.
var (
	// ErrValidation means the inbound event is incomplete or malformed.
	ErrValidation = shared.NewDomainError("VALIDATION", "invalid clinical event")
	// ErrUnsupportedEvent means the event tag is not create, update or discontinue.
	// It is a validation failure and also matches ErrValidation.
	ErrUnsupportedEvent = shared.NewDomainError("UNSUPPORTED_EVENT", "unsupported event type")
	// ErrLookup means a uniqueness invariant is violated in ERP data.
	ErrLookup = shared.NewDomainError("LOOKUP", "ambiguous record lookup")
	// ErrNotFound means a referenced record does not exist.
	ErrNotFound = shared.NewDomainError("REFERENCE_NOT_FOUND", "referenced record not found")
	// ErrAmbiguousReference means a reference resolved to more than one record.
	ErrAmbiguousReference = shared.NewDomainError("AMBIGUOUS_REFERENCE", "reference matches more than one record")
	// ErrRemoteService means the ERP or the clinical system failed.
	ErrRemoteService = shared.NewDomainError("REMOTE_SERVICE", "remote service failure")
)

// Error is a reconciliation failure with enough context to triage it.
type Error struct {
	// Kind is one of the Err* kinds above
	Kind *shared.DomainError
	// Op is the failing operation, e.g. "order.find_draft"
	Op string
	// CorrelationKey is the visit id of the event, when known
	CorrelationKey string
	// EventTag is the event tag as received
	EventTag string
	// Detail is a human readable description
	Detail string
	// Err is the underlying cause, may be nil
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Message)
	} else {
		b.WriteString("reconciliation failed")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.CorrelationKey != "" {
		b.WriteString(" [visit=")
		b.WriteString(e.CorrelationKey)
		b.WriteString("]")
	}
	if e.EventTag != "" {
		b.WriteString(" [event=")
		b.WriteString(e.EventTag)
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 3)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
		if e.Kind == ErrUnsupportedEvent {
			errs = append(errs, ErrValidation)
		}
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Code returns the code of the error kind.
func (e *Error) Code() string {
	if e.Kind == nil {
		return ""
	}
	return e.Kind.Code
}

// NewError creates an Error of the given kind.
func NewError(kind *shared.DomainError, op, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// WrapRemote wraps a transport failure as a remote service error.
func WrapRemote(op string, err error) *Error {
	return &Error{Kind: ErrRemoteService, Op: op, Err: err}
}

// WithEvent returns err annotated with the event context. Errors that are not
// reconciliation errors are wrapped as remote service errors, since every
// collaborator of the engine is remote.
func WithEvent(err error, correlationKey, eventTag string) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		annotated := *re
		if annotated.CorrelationKey == "" {
			annotated.CorrelationKey = correlationKey
		}
		if annotated.EventTag == "" {
			annotated.EventTag = eventTag
		}
		return &annotated
	}
	return &Error{Kind: ErrRemoteService, CorrelationKey: correlationKey, EventTag: eventTag, Err: err}
}

// KindOf returns the kind of err, or nil if err is not a reconciliation error.
func KindOf(err error) *shared.DomainError {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return nil
}

// IsRetryable reports whether re-delivering the same event may succeed
// without a change in data. Only remote failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRemoteService)
}
