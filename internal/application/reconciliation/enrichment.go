package reconciliation

import (
	"context"
	"sort"
	"strings"

	"github.com/erp/clinicsync/internal/domain/clinical"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
)

// EnrichmentLookup fetches the latest measurement of a subject from the
// clinical system. Several observations are expected; the newest wins.
type EnrichmentLookup struct {
	source reconciliation.ObservationSource
	code   string
}

// NewEnrichmentLookup creates an EnrichmentLookup for the observation concept
// code. An empty code disables the lookup.
func NewEnrichmentLookup(source reconciliation.ObservationSource, code string) *EnrichmentLookup {
	return &EnrichmentLookup{source: source, code: code}
}

// Fetch returns the enrichment for a new order of the subject.
func (l *EnrichmentLookup) Fetch(ctx context.Context, subjectRef string) (reconciliation.Enrichment, error) {
	if l == nil || l.source == nil || l.code == "" {
		return reconciliation.NoEnrichment, nil
	}
	value, ok, err := l.FetchLatestValue(ctx, subjectRef, l.code)
	if err != nil || !ok {
		return reconciliation.NoEnrichment, err
	}
	return reconciliation.Enrichment{Value: value, Present: true}, nil
}

// FetchLatestValue returns the most recent value of the measurement kind
// formatted as "<value> <unit>", e.g. "77.0 kg". ok is false when the
// subject has no such observation.
func (l *EnrichmentLookup) FetchLatestValue(ctx context.Context, subjectRef, measurementKind string) (string, bool, error) {
	observations, err := l.source.SearchObservations(ctx, subjectRef, measurementKind)
	if err != nil {
		return "", false, err
	}
	latest := latestQuantity(observations)
	if latest == nil {
		return "", false, nil
	}
	return FormatQuantity(*latest.ValueQuantity), true, nil
}

// latestQuantity returns the newest observation that carries a numeric value.
// Observations without a time sort last.
func latestQuantity(observations []clinical.Observation) *clinical.Observation {
	candidates := make([]clinical.Observation, 0, len(observations))
	for _, o := range observations {
		if o.ValueQuantity.HasValue() && o.Status != "entered-in-error" && o.Status != "cancelled" {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ti, iok := candidates[i].ObservedAt()
		tj, jok := candidates[j].ObservedAt()
		if iok != jok {
			return iok
		}
		return ti.After(tj)
	})
	return &candidates[0]
}

// FormatQuantity renders a quantity with one decimal and its unit.
func FormatQuantity(q clinical.Quantity) string {
	value := decimal.NewFromFloat(*q.Value).StringFixed(1)
	unit := strings.TrimSpace(q.Unit)
	if unit == "" {
		unit = strings.TrimSpace(q.Code)
	}
	if unit == "" {
		return value
	}
	return value + " " + unit
}
