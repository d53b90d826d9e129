package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/clinicsync/internal/domain/clinical"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/erp/clinicsync/internal/domain/shared"
	"github.com/erp/clinicsync/internal/infrastructure/scheduler"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockDispatcher is a mock implementation of EventDispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) CorrelationKey(tag string, bundle *clinical.Bundle) (string, error) {
	args := m.Called(tag, bundle)
	return args.String(0), args.Error(1)
}

func (m *MockDispatcher) Dispatch(ctx context.Context, tag string, bundle *clinical.Bundle) (reconciliation.Outcome, error) {
	args := m.Called(ctx, tag, bundle)
	return args.Get(0).(reconciliation.Outcome), args.Error(1)
}

// MockFetcher is a mock implementation of BundleFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchOrderBundle(ctx context.Context, resourceType, id string) (*clinical.Bundle, error) {
	args := m.Called(ctx, resourceType, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clinical.Bundle), args.Error(1)
}

// inlineExecutor runs jobs on the calling goroutine.
type inlineExecutor struct{}

func (inlineExecutor) Do(ctx context.Context, job scheduler.Job) error {
	return job.Run(ctx)
}

// memJournal is an in-memory JournalRepository with the delivery id
// uniqueness of the real table.
type memJournal struct {
	mu      sync.Mutex
	records map[uuid.UUID]reconciliation.ReconciliationRecord
	saves   int
}

func newMemJournal() *memJournal {
	return &memJournal{records: make(map[uuid.UUID]reconciliation.ReconciliationRecord)}
}

var _ reconciliation.JournalRepository = (*memJournal)(nil)

func (j *memJournal) Save(_ context.Context, record *reconciliation.ReconciliationRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for id, r := range j.records {
		if id != record.ID && r.DeliveryID == record.DeliveryID {
			return fmt.Errorf("duplicate delivery id %s", record.DeliveryID)
		}
	}
	j.records[record.ID] = *record
	j.saves++
	return nil
}

func (j *memJournal) FindByID(_ context.Context, id uuid.UUID) (*reconciliation.ReconciliationRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	r, ok := j.records[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &r, nil
}

func (j *memJournal) FindByDeliveryID(_ context.Context, deliveryID string) (*reconciliation.ReconciliationRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, r := range j.records {
		if r.DeliveryID == deliveryID {
			return &r, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (j *memJournal) FindAll(_ context.Context, _ reconciliation.JournalFilter) ([]reconciliation.ReconciliationRecord, int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]reconciliation.ReconciliationRecord, 0, len(j.records))
	for _, r := range j.records {
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func (j *memJournal) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var n int64
	for id, r := range j.records {
		if r.ProcessedAt.Before(cutoff) {
			delete(j.records, id)
			n++
		}
	}
	return n, nil
}

func (j *memJournal) len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.records)
}

// fakeMetrics counts pipeline events.
type fakeMetrics struct {
	mu          sync.Mutex
	duplicates  int
	deadLetters []string
}

func (m *fakeMetrics) RecordDuplicate(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duplicates++
}

func (m *fakeMetrics) RecordDeadLetter(_ context.Context, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadLetters = append(m.deadLetters, code)
}
