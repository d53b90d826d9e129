// Package reconciliation defines the domain model for mirroring clinical
// orders from the medical records system into ERP sale orders.
//
// The package follows the Ports and Adapters pattern. It holds the value types
// of the reconciliation (partners, orders, lines, item identities), the closed
// set of clinical event types, the error taxonomy and the ports the engine
// talks through:
//
//   - RecordStore: generic search/read/create/write/unlink against the ERP
//   - ObservationSource: observation search against the clinical system
//   - KeyLocker: per-correlation-key mutual exclusion
//   - JournalRepository: persistence of processed deliveries
//
// Infrastructure adapters live under internal/infrastructure; the engine that
// drives these ports lives in internal/application/reconciliation.
package reconciliation
