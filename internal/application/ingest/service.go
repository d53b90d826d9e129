// Package ingest runs inbound clinical event deliveries through the
// reconciliation engine: de-duplication, per-visit serialization, the
// journal and the dead-letter archive.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/clinicsync/internal/domain/clinical"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/erp/clinicsync/internal/domain/shared"
	"github.com/erp/clinicsync/internal/infrastructure/logger"
	"github.com/erp/clinicsync/internal/infrastructure/scheduler"
	"github.com/erp/clinicsync/internal/infrastructure/storage"
	"github.com/erp/clinicsync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotReplayable is returned by Replay for records that did not fail or
// whose payload is no longer available.
var ErrNotReplayable = shared.NewDomainError("NOT_REPLAYABLE", "record cannot be replayed")

const persistTimeout = 5 * time.Second

// Options configures the ingest service
type Options struct {
	// LockTTL bounds how long a visit lock is held by one delivery
	LockTTL time.Duration
	// DedupeEnabled turns on the delivery id fast path
	DedupeEnabled bool
	// DedupeTTL is how long a processed delivery id is remembered
	DedupeTTL time.Duration
}

// DefaultOptions returns the default ingest options
func DefaultOptions() Options {
	return Options{
		LockTTL:       2 * time.Minute,
		DedupeEnabled: true,
		DedupeTTL:     24 * time.Hour,
	}
}

// Option customizes a Service
type Option func(*Service)

// WithFetcher enables reference-only deliveries
func WithFetcher(fetcher BundleFetcher) Option {
	return func(s *Service) { s.fetcher = fetcher }
}

// WithIdempotencyStore sets the delivery id store
func WithIdempotencyStore(store shared.IdempotencyStore) Option {
	return func(s *Service) { s.dedupe = store }
}

// WithDeadLetterStore enables archiving of failed deliveries under keys
// built by keyFn. A nil keyFn uses the default dead-letter layout.
func WithDeadLetterStore(store DeadLetterStore, keyFn KeyFunc) Option {
	return func(s *Service) {
		s.deadLetters = store
		if keyFn != nil {
			s.deadLetterKey = keyFn
		}
	}
}

// WithMetrics sets the pipeline metrics recorder
func WithMetrics(metrics Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service accepts deliveries and reconciles them one visit at a time.
type Service struct {
	dispatcher    EventDispatcher
	executor      Executor
	locker        reconciliation.KeyLocker
	journal       reconciliation.JournalRepository
	fetcher       BundleFetcher
	dedupe        shared.IdempotencyStore
	deadLetters   DeadLetterStore
	deadLetterKey KeyFunc
	metrics       Metrics
	opts          Options
	logger        *zap.Logger
	now           func() time.Time
}

// NewService creates the ingest service
func NewService(
	dispatcher EventDispatcher,
	executor Executor,
	locker reconciliation.KeyLocker,
	journal reconciliation.JournalRepository,
	opts Options,
	options ...Option,
) *Service {
	s := &Service{
		dispatcher: dispatcher,
		executor:   executor,
		locker:     locker,
		journal:    journal,
		opts:       opts,
		logger:     zap.NewNop(),
		now:        time.Now,
		deadLetterKey: func(at time.Time, correlationKey, deliveryID string) string {
			return storage.DeadLetterKey(storage.DefaultPrefix, at, correlationKey, deliveryID)
		},
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Ingest reconciles one delivery. The event tag is validated before anything
// else happens. A delivery whose id already succeeded is acknowledged as a
// duplicate without touching the ERP.
func (s *Service) Ingest(ctx context.Context, d Delivery) (*Result, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "ingest", "ingest")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDeliveryID, d.ID,
		telemetry.SpanAttrEventTag, d.EventTag,
		telemetry.SpanAttrResourceType, d.ResourceType,
	)
	ctx, log := logger.WithDeliveryID(ctx, s.logger, d.ID)

	eventType, err := reconciliation.ParseEventType(d.EventTag)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Warn("Rejected delivery", zap.String("event_tag", d.EventTag), zap.Error(err))
		return nil, err
	}
	ctx, log = logger.WithEventType(ctx, log, eventType.String())

	if err := validateDelivery(d); err != nil {
		telemetry.RecordError(span, err)
		log.Warn("Rejected delivery", zap.Error(err))
		return nil, err
	}

	if s.seen(ctx, d.ID, log) {
		return s.duplicate(ctx, d, eventType, log)
	}

	result, err := s.process(ctx, d, eventType, nil, log)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return result, err
}

// Replay re-runs a failed journal record from its archived payload, or by
// fetching its order again when only a reference was delivered.
func (s *Service) Replay(ctx context.Context, recordID uuid.UUID) (*Result, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ingest", "replay")
	defer span.End()

	record, err := s.journal.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status != reconciliation.RecordStatusFailed {
		return nil, fmt.Errorf("%w: record %s is %s", ErrNotReplayable, recordID, record.Status)
	}

	ctx, log := logger.WithDeliveryID(ctx, s.logger, record.DeliveryID)
	d, err := s.replayDelivery(ctx, record)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	eventType, err := reconciliation.ParseEventType(d.EventTag)
	if err != nil {
		return nil, err
	}
	ctx, log = logger.WithEventType(ctx, log, eventType.String())

	record.Attempts++
	log.Info("Replaying delivery", zap.String("record_id", recordID.String()), zap.Int("attempt", record.Attempts))
	result, err := s.process(ctx, d, eventType, record, log)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return result, err
}

func validateDelivery(d Delivery) error {
	if d.ResourceType != "" {
		if _, ok := reconciliation.ParseOrderKind(d.ResourceType); !ok {
			return &reconciliation.Error{
				Kind:     reconciliation.ErrValidation,
				Op:       "ingest.validate",
				EventTag: d.EventTag,
				Detail:   fmt.Sprintf("unsupported resource type %q", d.ResourceType),
			}
		}
	}
	if !d.HasBundle() && (d.ResourceType == "" || d.ResourceID == "") {
		return &reconciliation.Error{
			Kind:     reconciliation.ErrValidation,
			Op:       "ingest.validate",
			EventTag: d.EventTag,
			Detail:   "a bundle or a resource reference is required",
		}
	}
	return nil
}

// process fetches the bundle if needed and runs the delivery on the worker
// that owns its visit. existing is the journal record being replayed.
func (s *Service) process(
	ctx context.Context,
	d Delivery,
	eventType reconciliation.EventType,
	existing *reconciliation.ReconciliationRecord,
	log *zap.Logger,
) (*Result, error) {
	start := s.now()

	if !d.HasBundle() {
		bundle, err := s.fetch(ctx, d)
		if err != nil {
			return s.failEarly(ctx, d, eventType, existing, err, start, log)
		}
		d.Bundle = bundle
	}

	key, err := s.dispatcher.CorrelationKey(d.EventTag, d.Bundle)
	if err != nil {
		return s.failEarly(ctx, d, eventType, existing, err, start, log)
	}
	ctx, log = logger.WithCorrelationKey(ctx, log, key)

	results := make(chan *Result, 1)
	err = s.executor.Do(ctx, scheduler.Job{
		Key: key,
		Run: func(ctx context.Context) error {
			result, err := s.reconcile(ctx, d, eventType, key, existing, start, log)
			results <- result
			return err
		},
	})

	select {
	case result := <-results:
		return result, err
	default:
		if errors.Is(err, scheduler.ErrJobQueueFull) || errors.Is(err, scheduler.ErrPoolNotRunning) {
			log.Warn("Delivery not queued", zap.Error(err))
		}
		return nil, err
	}
}

func (s *Service) fetch(ctx context.Context, d Delivery) (*clinical.Bundle, error) {
	if s.fetcher == nil {
		return nil, &reconciliation.Error{
			Kind:     reconciliation.ErrValidation,
			Op:       "ingest.fetch_bundle",
			EventTag: d.EventTag,
			Detail:   "reference-only deliveries are not enabled",
		}
	}
	bundle, err := s.fetcher.FetchOrderBundle(ctx, d.ResourceType, d.ResourceID)
	if err != nil {
		var re *reconciliation.Error
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, reconciliation.WrapRemote("ingest.fetch_bundle", err)
	}
	return bundle, nil
}

// reconcile runs on the visit's worker.
func (s *Service) reconcile(
	ctx context.Context,
	d Delivery,
	eventType reconciliation.EventType,
	key string,
	existing *reconciliation.ReconciliationRecord,
	start time.Time,
	log *zap.Logger,
) (*Result, error) {
	record, prior := s.recordFor(ctx, d, eventType, existing, log)
	if prior {
		return s.alreadyProcessed(ctx, d, eventType, record, log), nil
	}
	record.CorrelationKey = key

	unlock, err := s.locker.Lock(ctx, key, s.opts.LockTTL)
	if err != nil {
		err = reconciliation.WithEvent(reconciliation.WrapRemote("ingest.lock", err), key, d.EventTag)
		return s.fail(ctx, d, record, reconciliation.Outcome{}, err, start, log)
	}
	defer unlock()

	var (
		out         reconciliation.Outcome
		dispatchErr error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.DispatchLabels(eventType.String(), d.ResourceType), func(ctx context.Context) {
		out, dispatchErr = s.dispatcher.Dispatch(ctx, d.EventTag, d.Bundle)
	})
	if dispatchErr != nil {
		return s.fail(ctx, d, record, out, dispatchErr, start, log)
	}

	record.DurationMs = s.now().Sub(start).Milliseconds()
	if record.ResourceType == "" {
		record.ResourceType = out.Kind.String()
	}
	record.MarkSucceeded(out)
	s.save(ctx, record, log)
	s.markProcessed(ctx, d.ID, log)

	log.Info("Delivery reconciled",
		zap.String("action", string(out.Action)),
		zap.Int("attempt", record.Attempts),
	)
	return &Result{Record: record, Outcome: out}, nil
}

// failEarly journals a delivery that failed before reaching a worker.
func (s *Service) failEarly(
	ctx context.Context,
	d Delivery,
	eventType reconciliation.EventType,
	existing *reconciliation.ReconciliationRecord,
	err error,
	start time.Time,
	log *zap.Logger,
) (*Result, error) {
	err = reconciliation.WithEvent(err, "", d.EventTag)
	record, prior := s.recordFor(ctx, d, eventType, existing, log)
	if prior {
		return s.alreadyProcessed(ctx, d, eventType, record, log), nil
	}
	return s.fail(ctx, d, record, reconciliation.Outcome{}, err, start, log)
}

func (s *Service) fail(
	ctx context.Context,
	d Delivery,
	record *reconciliation.ReconciliationRecord,
	out reconciliation.Outcome,
	err error,
	start time.Time,
	log *zap.Logger,
) (*Result, error) {
	record.DurationMs = s.now().Sub(start).Milliseconds()
	record.MarkFailed(err)
	if !reconciliation.IsRetryable(err) {
		s.archive(ctx, d, record, log)
	}
	s.save(ctx, record, log)

	log.Warn("Delivery failed",
		zap.String("error_code", record.ErrorCode),
		zap.Bool("retryable", reconciliation.IsRetryable(err)),
		zap.String("dead_letter_key", record.DeadLetterKey),
		zap.Error(err),
	)
	return &Result{Record: record, Outcome: out}, err
}

// recordFor returns the journal record to update for d. prior is set when
// the delivery already succeeded.
func (s *Service) recordFor(
	ctx context.Context,
	d Delivery,
	eventType reconciliation.EventType,
	existing *reconciliation.ReconciliationRecord,
	log *zap.Logger,
) (*reconciliation.ReconciliationRecord, bool) {
	record := existing
	if record == nil {
		found, err := s.journal.FindByDeliveryID(ctx, d.ID)
		switch {
		case err == nil:
			if found.Status != reconciliation.RecordStatusFailed {
				return found, true
			}
			found.Attempts++
			record = found
		case errors.Is(err, shared.ErrNotFound):
			record = reconciliation.NewReconciliationRecord(d.ID, d.EventTag)
		default:
			log.Warn("Failed to look up journal record", zap.Error(err))
			record = reconciliation.NewReconciliationRecord(d.ID, d.EventTag)
		}
	}
	record.EventTag = d.EventTag
	record.EventType = eventType
	if d.ResourceType != "" {
		record.ResourceType = d.ResourceType
	}
	if d.ResourceID != "" {
		record.ResourceID = d.ResourceID
	}
	return record, false
}

// duplicate acknowledges a delivery the idempotency store already knows.
func (s *Service) duplicate(ctx context.Context, d Delivery, eventType reconciliation.EventType, log *zap.Logger) (*Result, error) {
	if s.metrics != nil {
		s.metrics.RecordDuplicate(ctx, eventType.String())
	}
	if record, err := s.journal.FindByDeliveryID(ctx, d.ID); err == nil {
		log.Info("Duplicate delivery acknowledged", zap.String("record_id", record.ID.String()))
		return &Result{Record: record, Outcome: reconciliation.Outcome{Action: reconciliation.ActionNoop}, Duplicate: true}, nil
	}

	record := reconciliation.NewReconciliationRecord(d.ID, d.EventTag)
	record.EventType = eventType
	record.ResourceType = d.ResourceType
	record.ResourceID = d.ResourceID
	record.MarkDuplicate()
	s.save(ctx, record, log)
	log.Info("Duplicate delivery acknowledged without journal history")
	return &Result{Record: record, Outcome: reconciliation.Outcome{Action: reconciliation.ActionNoop}, Duplicate: true}, nil
}

func (s *Service) alreadyProcessed(
	ctx context.Context,
	d Delivery,
	eventType reconciliation.EventType,
	record *reconciliation.ReconciliationRecord,
	log *zap.Logger,
) *Result {
	if s.metrics != nil {
		s.metrics.RecordDuplicate(ctx, eventType.String())
	}
	s.markProcessed(ctx, d.ID, log)
	log.Info("Delivery already reconciled", zap.String("record_id", record.ID.String()))
	return &Result{Record: record, Outcome: reconciliation.Outcome{Action: reconciliation.ActionNoop}, Duplicate: true}
}

func (s *Service) seen(ctx context.Context, deliveryID string, log *zap.Logger) bool {
	if !s.opts.DedupeEnabled || s.dedupe == nil {
		return false
	}
	processed, err := s.dedupe.IsProcessed(ctx, deliveryID)
	if err != nil {
		log.Warn("Delivery dedupe check failed, processing anyway", zap.Error(err))
		return false
	}
	return processed
}

func (s *Service) markProcessed(ctx context.Context, deliveryID string, log *zap.Logger) {
	if !s.opts.DedupeEnabled || s.dedupe == nil {
		return
	}
	if _, err := s.dedupe.MarkProcessed(ctx, deliveryID, s.opts.DedupeTTL); err != nil {
		log.Warn("Failed to remember processed delivery", zap.Error(err))
	}
}

// archive stores the failed delivery in the dead-letter store and records
// its key on the journal record.
func (s *Service) archive(ctx context.Context, d Delivery, record *reconciliation.ReconciliationRecord, log *zap.Logger) {
	if s.deadLetters == nil || d.Bundle == nil {
		return
	}
	bundle, err := json.Marshal(d.Bundle)
	if err != nil {
		log.Error("Failed to encode dead letter bundle", zap.Error(err))
		return
	}
	failedAt := s.now()
	payload, err := json.Marshal(DeadLetter{
		DeliveryID:     d.ID,
		EventTag:       d.EventTag,
		ResourceType:   d.ResourceType,
		ResourceID:     d.ResourceID,
		CorrelationKey: record.CorrelationKey,
		ErrorCode:      record.ErrorCode,
		ErrorMessage:   record.ErrorMessage,
		FailedAt:       failedAt.UTC(),
		Bundle:         bundle,
	})
	if err != nil {
		log.Error("Failed to encode dead letter", zap.Error(err))
		return
	}

	key := s.deadLetterKey(failedAt, record.CorrelationKey, d.ID)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.deadLetters.Put(ctx, key, payload); err != nil {
		log.Error("Failed to archive dead letter", zap.String("key", key), zap.Error(err))
		return
	}
	record.DeadLetterKey = key
	if s.metrics != nil {
		s.metrics.RecordDeadLetter(ctx, record.ErrorCode)
	}
}

func (s *Service) save(ctx context.Context, record *reconciliation.ReconciliationRecord, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.journal.Save(ctx, record); err != nil {
		log.Error("Failed to journal delivery",
			zap.String("record_id", record.ID.String()),
			zap.String("status", record.Status.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) replayDelivery(ctx context.Context, record *reconciliation.ReconciliationRecord) (Delivery, error) {
	if record.DeadLetterKey != "" && s.deadLetters != nil {
		payload, err := s.deadLetters.Get(ctx, record.DeadLetterKey)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				return Delivery{}, fmt.Errorf("%w: dead letter %s is gone", ErrNotReplayable, record.DeadLetterKey)
			}
			return Delivery{}, reconciliation.WrapRemote("ingest.load_dead_letter", err)
		}
		var dl DeadLetter
		if err := json.Unmarshal(payload, &dl); err != nil {
			return Delivery{}, fmt.Errorf("%w: dead letter %s is unreadable: %v", ErrNotReplayable, record.DeadLetterKey, err)
		}
		d, err := dl.Delivery()
		if err != nil {
			return Delivery{}, fmt.Errorf("%w: %v", ErrNotReplayable, err)
		}
		d.ID = record.DeliveryID
		return d, nil
	}
	if record.ResourceType != "" && record.ResourceID != "" && s.fetcher != nil {
		return Delivery{
			ID:           record.DeliveryID,
			EventTag:     record.EventTag,
			ResourceType: record.ResourceType,
			ResourceID:   record.ResourceID,
		}, nil
	}
	return Delivery{}, fmt.Errorf("%w: record %s has no archived payload", ErrNotReplayable, record.ID)
}

// Record returns one journal entry.
func (s *Service) Record(ctx context.Context, id uuid.UUID) (*reconciliation.ReconciliationRecord, error) {
	return s.journal.FindByID(ctx, id)
}

// Records lists journal entries matching filter and the total match count.
func (s *Service) Records(ctx context.Context, filter reconciliation.JournalFilter) ([]reconciliation.ReconciliationRecord, int64, error) {
	return s.journal.FindAll(ctx, filter)
}
