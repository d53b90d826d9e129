package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers delivery ids that were already reconciled so a
// redelivered notification is acknowledged without touching the ERP again.
// Ids are marked only after the delivery succeeded.
type IdempotencyStore interface {
	// MarkProcessed records deliveryID for ttl and reports whether it was new.
	MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, deliveryID string) (bool, error)
	Close() error
}
