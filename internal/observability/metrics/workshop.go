package metrics

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "garageflow"

// Metrics holds the workshop counters. A nil *Metrics records nothing.
type Metrics struct {
	stockAdjustments  metric.Int64Counter
	stockShortfalls   metric.Int64Counter
	jobTransitions    metric.Int64Counter
	invoicesGenerated metric.Int64Counter
	rateLimitAllowed  metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = meterName
	}
	meter := provider.Meter(name)

	var errs []error
	counter := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description))
		errs = append(errs, err)
		return c
	}

	m := &Metrics{
		stockAdjustments:  counter("garageflow_stock_adjustments_total", "Stock movements written to the ledger."),
		stockShortfalls:   counter("garageflow_stock_shortfalls_total", "Units a clamped decrease could not take."),
		jobTransitions:    counter("garageflow_job_sheet_transitions_total", "Job sheet status changes."),
		invoicesGenerated: counter("garageflow_invoices_generated_total", "Invoices issued when a job sheet completes."),
		rateLimitAllowed:  counter("garageflow_rate_limit_allowed_total", "Writes admitted by the per-garage limiter."),
		rateLimitDenied:   counter("garageflow_rate_limit_denied_total", "Writes rejected by the per-garage limiter."),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// NewNoop returns counters that discard every sample.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordStockAdjustment(ctx context.Context, mode, referenceType string) {
	if m == nil {
		return
	}
	add(ctx, m.stockAdjustments, 1, "mode", mode, "reference_type", referenceType)
}

func (m *Metrics) RecordStockShortfall(ctx context.Context, referenceType string, units int64) {
	if m == nil || units <= 0 {
		return
	}
	add(ctx, m.stockShortfalls, units, "reference_type", referenceType)
}

func (m *Metrics) RecordJobTransition(ctx context.Context, action, to string) {
	if m == nil {
		return
	}
	add(ctx, m.jobTransitions, 1, "action", action, "status", to)
}

func (m *Metrics) RecordInvoiceGenerated(ctx context.Context, garageID string) {
	if m == nil {
		return
	}
	add(ctx, m.invoicesGenerated, 1, "garage_id", garageID)
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, garageID, endpoint string) {
	if m == nil {
		return
	}
	add(ctx, m.rateLimitAllowed, 1, "garage_id", garageID, "endpoint", endpoint)
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, garageID, endpoint, reason string) {
	if m == nil {
		return
	}
	add(ctx, m.rateLimitDenied, 1, "garage_id", garageID, "endpoint", endpoint, "reason", reason)
}

// add records n with the given key/value label pairs.
func add(ctx context.Context, c metric.Int64Counter, n int64, pairs ...string) {
	attrs := make([]attribute.KeyValue, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		attrs = append(attrs, attribute.String(pairs[i], strings.TrimSpace(pairs[i+1])))
	}
	c.Add(ctx, n, metric.WithAttributes(FilterAttributes(attrs...)...))
}

// labelKeys lists the only attribute keys allowed on workshop series.
var labelKeys = map[attribute.Key]bool{
	"garage_id":      true,
	"endpoint":       true,
	"status_code":    true,
	"mode":           true,
	"reference_type": true,
	"action":         true,
	"status":         true,
	"reason":         true,
}

// FilterAttributes drops any attribute whose key is not an allowed label.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	kept := attrs[:0:0]
	for _, attr := range attrs {
		if labelKeys[attr.Key] {
			kept = append(kept, attr)
		}
	}
	return kept
}
