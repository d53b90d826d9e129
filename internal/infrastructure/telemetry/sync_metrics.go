package telemetry

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// QueueDepthProvider reports the number of pending jobs per worker queue.
type QueueDepthProvider interface {
	QueueDepths() []int
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// SyncMetrics records the result of every reconciled event and the state of
// the ingest pipeline around it.
type SyncMetrics struct {
	logger *zap.Logger

	eventsTotal      *Counter
	failuresTotal    *Counter
	duplicatesTotal  *Counter
	deadLettersTotal *Counter
	eventDuration    *Histogram
	queueDepth       *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// NewSyncMetrics registers the sync instruments on the given meter.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &SyncMetrics{logger: logger, stopChan: make(chan struct{})}

	var err error
	if m.eventsTotal, err = NewCounter(cfg.Meter,
		"clinicsync_events_total", "Events reconciled into the ERP", "{events}"); err != nil {
		return nil, err
	}
	if m.failuresTotal, err = NewCounter(cfg.Meter,
		"clinicsync_event_failures_total", "Events that failed reconciliation", "{events}"); err != nil {
		return nil, err
	}
	if m.duplicatesTotal, err = NewCounter(cfg.Meter,
		"clinicsync_duplicate_deliveries_total", "Deliveries skipped as already processed", "{deliveries}"); err != nil {
		return nil, err
	}
	if m.deadLettersTotal, err = NewCounter(cfg.Meter,
		"clinicsync_dead_letters_total", "Payloads archived after a non-retryable failure", "{payloads}"); err != nil {
		return nil, err
	}
	if m.eventDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "clinicsync_event_duration_seconds",
		Description: "Time spent reconciling one event",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.queueDepth, err = NewGauge(cfg.Meter,
		"clinicsync_queue_depth", "Pending events per worker queue", "{events}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordOutcome records a successfully reconciled event.
func (m *SyncMetrics) RecordOutcome(ctx context.Context, out reconciliation.Outcome, elapsed time.Duration) {
	m.eventsTotal.Inc(ctx,
		AttrEventType.String(out.EventType.String()),
		AttrOrderKind.String(string(out.Kind)),
		AttrAction.String(string(out.Action)),
	)
	m.eventDuration.RecordDuration(ctx, elapsed,
		AttrEventType.String(out.EventType.String()),
		AttrResult.String("success"),
	)
}

// RecordFailure records a failed event with its error code.
func (m *SyncMetrics) RecordFailure(ctx context.Context, eventType, code string, elapsed time.Duration) {
	m.failuresTotal.Inc(ctx,
		AttrEventType.String(eventType),
		AttrErrorCode.String(code),
	)
	m.eventDuration.RecordDuration(ctx, elapsed,
		AttrEventType.String(eventType),
		AttrResult.String("failure"),
	)
}

// RecordDuplicate records a delivery skipped by the idempotency check.
func (m *SyncMetrics) RecordDuplicate(ctx context.Context, eventType string) {
	m.duplicatesTotal.Inc(ctx, AttrEventType.String(eventType))
}

// RecordDeadLetter records an archived payload.
func (m *SyncMetrics) RecordDeadLetter(ctx context.Context, code string) {
	m.deadLettersTotal.Inc(ctx, AttrErrorCode.String(code))
}

// StartQueueDepthCollection samples queue depths every interval until Stop
// is called or ctx is cancelled. Only the first call starts a collector.
func (m *SyncMetrics) StartQueueDepthCollection(ctx context.Context, provider QueueDepthProvider, interval time.Duration) {
	m.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 15 * time.Second
		}
		go m.runQueueDepthCollection(ctx, provider, interval)
	})
}

func (m *SyncMetrics) runQueueDepthCollection(ctx context.Context, provider QueueDepthProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.collectQueueDepth(ctx, provider)
	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectQueueDepth(ctx, provider)
		}
	}
}

func (m *SyncMetrics) collectQueueDepth(ctx context.Context, provider QueueDepthProvider) {
	for i, depth := range provider.QueueDepths() {
		m.queueDepth.Record(ctx, int64(depth), AttrWorker.String(strconv.Itoa(i)))
	}
}

// Stop stops the periodic collection.
func (m *SyncMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}
