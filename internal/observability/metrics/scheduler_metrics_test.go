package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	reasons := map[string]error{
		SchedulerJobReasonDeadlineExceeded:     fmt.Errorf("sweep: %w", context.DeadlineExceeded),
		SchedulerJobReasonLedgerDrift:          fmt.Errorf("item 12: %w", ErrLedgerDrift),
		SchedulerJobReasonDBLockTimeout:        &pgconn.PgError{Code: "55P03"},
		SchedulerJobReasonSerializationFailure: &pgconn.PgError{Code: "40001"},
		SchedulerJobReasonUniqueViolation:      gorm.ErrDuplicatedKey,
		SchedulerJobReasonUnknown:              errors.New("boom"),
	}
	for want, err := range reasons {
		assert.Equal(t, want, ClassifySchedulerJobReason(err), err.Error())
	}
	assert.Equal(t, SchedulerJobReasonUnknown, ClassifySchedulerJobReason(nil))
}

func TestSchedulerCountersSkipEmptyUpdates(t *testing.T) {
	m := newSchedulerMetrics(prometheus.NewRegistry(), Config{Environment: "test"})

	m.AddBatchProcessed("mark_overdue_invoices", "invoice", 3)
	m.AddBatchProcessed("mark_overdue_invoices", "invoice", 0)
	m.IncJobError("verify_inventory_ledger", nil)
	m.IncJobError("verify_inventory_ledger", ErrLedgerDrift)

	assert.Equal(t, 3.0, promtest.ToFloat64(m.batchProcessed.WithLabelValues("mark_overdue_invoices", "invoice")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.jobErrors.WithLabelValues("verify_inventory_ledger", SchedulerJobReasonLedgerDrift)))
}

func TestSchedulerHistogramsObserve(t *testing.T) {
	m := newSchedulerMetrics(prometheus.NewRegistry(), Config{})

	m.ObserveJobDuration("low_stock_report", 250*time.Millisecond)
	m.ObserveRunLoopLag(-time.Second)

	assert.Equal(t, 1, promtest.CollectAndCount(m.jobDuration))
	assert.Equal(t, 1, promtest.CollectAndCount(m.runLoopLag.(prometheus.Collector)))
}

func TestNilSchedulerMetricsAreSafe(t *testing.T) {
	var m *SchedulerMetrics
	m.IncJobRun("x")
	m.IncJobTimeout("x")
	m.ObserveJobDuration("x", time.Second)
	m.ObserveRunLoopLag(time.Second)
	m.AddBatchProcessed("x", "invoice", 1)
}
