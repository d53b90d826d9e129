package ingest

import (
	"context"
	"time"

	"github.com/erp/clinicsync/internal/domain/clinical"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/erp/clinicsync/internal/infrastructure/scheduler"
)

// EventDispatcher reconciles one clinical event with the ERP.
type EventDispatcher interface {
	CorrelationKey(tag string, bundle *clinical.Bundle) (string, error)
	Dispatch(ctx context.Context, tag string, bundle *clinical.Bundle) (reconciliation.Outcome, error)
}

// BundleFetcher loads the bundle of a reference-only delivery.
type BundleFetcher interface {
	FetchOrderBundle(ctx context.Context, resourceType, id string) (*clinical.Bundle, error)
}

// DeadLetterStore archives the payload of deliveries that cannot succeed
// without a change in data.
type DeadLetterStore interface {
	Put(ctx context.Context, key string, payload []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Executor runs jobs so that jobs sharing a key never overlap.
type Executor interface {
	Do(ctx context.Context, job scheduler.Job) error
}

// Metrics receives pipeline events the dispatcher does not see.
type Metrics interface {
	RecordDuplicate(ctx context.Context, eventType string)
	RecordDeadLetter(ctx context.Context, code string)
}

// KeyFunc builds the archive key of a failed delivery.
type KeyFunc func(at time.Time, correlationKey, deliveryID string) string
