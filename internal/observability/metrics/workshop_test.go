package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesKeepsLowCardinalityKeys(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("garage_id", "123"),
		attribute.String("customer_email", "a@b.c"),
		attribute.String("registration", "AB12 CDE"),
		attribute.String("reference_type", "JOB_SHEET"),
	)

	keys := make([]attribute.Key, 0, len(attrs))
	for _, attr := range attrs {
		keys = append(keys, attr.Key)
	}
	assert.ElementsMatch(t, []attribute.Key{"garage_id", "reference_type"}, keys)
}

func TestRecordersToleratePartialSetup(t *testing.T) {
	ctx := context.Background()

	var missing *Metrics
	assert.NotPanics(t, func() {
		missing.RecordStockAdjustment(ctx, "DECREASE", "JOB_SHEET")
		missing.RecordJobTransition(ctx, "start", "IN_PROGRESS")
		missing.RecordRateLimitDenied(ctx, "1", "/api/bookings", "exhausted")
	})

	noop := NewNoop()
	assert.NotNil(t, noop)
	assert.NotPanics(t, func() {
		noop.RecordStockShortfall(ctx, "MANUAL", 3)
		noop.RecordStockShortfall(ctx, "MANUAL", 0)
		noop.RecordInvoiceGenerated(ctx, "1")
	})
}
