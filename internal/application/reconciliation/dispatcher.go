package reconciliation

import (
	"context"
	"time"

	"github.com/erp/clinicsync/internal/domain/clinical"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/erp/clinicsync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MetricsRecorder receives the result of every dispatched event.
type MetricsRecorder interface {
	RecordOutcome(ctx context.Context, out reconciliation.Outcome, elapsed time.Duration)
	RecordFailure(ctx context.Context, eventType string, code string, elapsed time.Duration)
}

// Options configures the dispatcher.
type Options struct {
	Extract ExtractOptions
	// EnrichmentCode is the observation concept attached to new orders
	EnrichmentCode string
	// EnrichmentField is the order field receiving the observation value
	EnrichmentField string
	// AbsentSentinel is stored when no observation exists
	AbsentSentinel string
}

// Dispatcher is the entry point of the reconciliation engine. Events for the
// same visit must not be dispatched concurrently; callers serialize them.
type Dispatcher struct {
	partners   *PartnerReconciler
	orders     *OrderReconciler
	lines      *OrderLineReconciler
	units      *UnitResolver
	products   *ProductResolver
	enrichment *EnrichmentLookup
	extract    ExtractOptions
	metrics    MetricsRecorder
	logger     *zap.Logger
}

// NewDispatcher wires the reconcilers over the record store and observation source.
func NewDispatcher(
	store reconciliation.RecordStore,
	observations reconciliation.ObservationSource,
	opts Options,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		partners:   NewPartnerReconciler(store),
		orders:     NewOrderReconciler(store, opts.EnrichmentField, opts.AbsentSentinel),
		lines:      NewOrderLineReconciler(store),
		units:      NewUnitResolver(store),
		products:   NewProductResolver(store),
		enrichment: NewEnrichmentLookup(observations, opts.EnrichmentCode),
		extract:    opts.Extract,
		metrics:    metrics,
		logger:     logger,
	}
}

// CorrelationKey extracts the visit id of a bundle without dispatching it.
func (d *Dispatcher) CorrelationKey(tag string, bundle *clinical.Bundle) (string, error) {
	ev, err := ExtractEvent(tag, bundle, d.extract)
	if err != nil {
		return "", err
	}
	return ev.CorrelationKey, nil
}

// Dispatch reconciles one clinical event with the ERP. Re-delivering an
// event that already succeeded leaves the ERP unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, tag string, bundle *clinical.Bundle) (reconciliation.Outcome, error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "dispatch")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrEventTag, tag)

	ev, err := ExtractEvent(tag, bundle, d.extract)
	if err != nil {
		d.fail(ctx, span, tag, err, start)
		return reconciliation.Outcome{}, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCorrelationKey, ev.CorrelationKey,
		telemetry.SpanAttrEventType, ev.Type.String(),
		telemetry.SpanAttrOrderKind, ev.Item.Kind.String(),
	)

	log := d.logger.With(
		zap.String("correlation_key", ev.CorrelationKey),
		zap.String("event_type", ev.Type.String()),
		zap.String("order_kind", ev.Item.Kind.String()),
		zap.String("item", ev.Item.Identity.Label()),
	)

	var out reconciliation.Outcome
	if ev.Type.IsUpsert() && !ev.Item.Cancelled {
		out, err = d.upsert(ctx, ev, log)
	} else {
		out, err = d.remove(ctx, ev, log)
	}
	if err != nil {
		err = reconciliation.WithEvent(err, ev.CorrelationKey, tag)
		d.fail(ctx, span, ev.Type.String(), err, start)
		return out, err
	}

	out.EventType = ev.Type
	out.Kind = ev.Item.Kind
	out.CorrelationKey = ev.CorrelationKey
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAction, string(out.Action),
		telemetry.SpanAttrOrderID, int64(out.OrderID),
		telemetry.SpanAttrLineID, int64(out.LineID),
	)
	telemetry.SetOK(span)
	if d.metrics != nil {
		d.metrics.RecordOutcome(ctx, out, time.Since(start))
	}
	log.Info("clinical event reconciled",
		zap.String("action", string(out.Action)),
		zap.Int64("order_id", int64(out.OrderID)),
		zap.Int64("line_id", int64(out.LineID)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// upsert handles create/update events for items that still stand.
func (d *Dispatcher) upsert(ctx context.Context, ev *Event, log *zap.Logger) (reconciliation.Outcome, error) {
	if err := validateForUpsert(ev.Item); err != nil {
		return reconciliation.Outcome{}, err
	}

	// Read-only references first, so an unresolvable item writes nothing.
	unitID, err := d.units.Scope().Resolve(ctx, ev.Item.UnitRef)
	if err != nil {
		return reconciliation.Outcome{}, err
	}
	productID, err := d.products.Resolve(ctx, ev.Item.ProductRef)
	if err != nil {
		return reconciliation.Outcome{}, err
	}

	partnerID, err := d.partners.Upsert(ctx, ev.Subject)
	if err != nil {
		return reconciliation.Outcome{}, err
	}
	out := reconciliation.Outcome{PartnerID: partnerID, Action: reconciliation.ActionLineUpserted}

	orderID, found, err := d.orders.FindDraftByCorrelationKey(ctx, ev.CorrelationKey)
	if err != nil {
		return out, err
	}
	if !found {
		enrichment, err := d.enrichment.Fetch(ctx, ev.Subject.ExternalRef)
		if err != nil {
			return out, err
		}
		orderID, err = d.orders.Create(ctx, ev.CorrelationKey, partnerID, enrichment)
		if err != nil {
			return out, err
		}
		out.Action = reconciliation.ActionOrderCreated
		log.Debug("draft order created",
			zap.Int64("order_id", int64(orderID)),
			zap.Bool("enriched", enrichment.Present),
		)
	}
	out.OrderID = orderID

	lineID, err := d.lines.Upsert(ctx, reconciliation.LineSpec{
		OrderID:   orderID,
		Identity:  ev.Item.Identity,
		ProductID: productID,
		Quantity:  ev.Item.Quantity,
		UnitID:    unitID,
	})
	if err != nil {
		return out, err
	}
	out.LineID = lineID
	return out, nil
}

// remove handles discontinue events and create/update events for cancelled
// items: the line goes away, then the order is cancelled if it is empty.
func (d *Dispatcher) remove(ctx context.Context, ev *Event, log *zap.Logger) (reconciliation.Outcome, error) {
	out := reconciliation.Outcome{Action: reconciliation.ActionNoop}

	orderID, found, err := d.orders.FindDraftByCorrelationKey(ctx, ev.CorrelationKey)
	if err != nil {
		return out, err
	}
	if !found {
		log.Info("no draft order for visit, nothing to remove")
		return out, nil
	}
	out.OrderID = orderID

	deleted, err := d.lines.Delete(ctx, orderID, ev.Item.Identity)
	if err != nil {
		return out, err
	}
	if deleted {
		out.Action = reconciliation.ActionLineDeleted
	} else {
		log.Debug("order has no line for item", zap.Int64("order_id", int64(orderID)))
	}

	cancelled, err := d.orders.CancelIfEmpty(ctx, orderID)
	if err != nil {
		return out, err
	}
	if cancelled {
		out.Action = reconciliation.ActionOrderCancelled
		out.OrderCancelled = true
	}
	return out, nil
}

func (d *Dispatcher) fail(ctx context.Context, span trace.Span, eventType string, err error, start time.Time) {
	telemetry.RecordError(span, err)
	code := reconciliation.ErrRemoteService.Code
	if kind := reconciliation.KindOf(err); kind != nil {
		code = kind.Code
	}
	if d.metrics != nil {
		d.metrics.RecordFailure(ctx, eventType, code, time.Since(start))
	}
	d.logger.Warn("clinical event not reconciled",
		zap.String("event_type", eventType),
		zap.String("error_code", code),
		zap.Error(err),
	)
}
