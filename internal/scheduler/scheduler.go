package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	"github.com/smallbiznis/garageflow/internal/auditcontext"
	"github.com/smallbiznis/garageflow/internal/clock"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/garageflow/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/garageflow/internal/observability/metrics"
	"github.com/smallbiznis/garageflow/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobMarkOverdueInvoices   = "mark_overdue_invoices"
	JobVerifyInventoryLedger = "verify_inventory_ledger"
	JobLowStockReport        = "low_stock_report"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log          *zap.Logger
	InvoiceSvc   invoicedomain.Service
	InventorySvc inventorydomain.Service
	GenID        *snowflake.Node
	Clock        clock.Clock
	Locker       *ratelimit.Locker `optional:"true"`
	Config       Config            `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	locker       *ratelimit.Locker
	invoiceSvc   invoicedomain.Service
	inventorySvc inventorydomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.InvoiceSvc == nil || p.InventorySvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		locker:       p.Locker,
		invoiceSvc:   p.InvoiceSvc,
		inventorySvc: p.InventorySvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	ctx, run, owner := s.beginRun(ctx, name, batchSize)
	log := s.logger(ctx)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.withJobLock(ctx, name, fn)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	schedMetrics.AddBatchProcessed(name, jobResource(name), run.processed)
	if owner {
		if err != nil && run.failures == 0 {
			run.failures++
		}
		s.finishRun(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout; the next tick resumes the work.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name  string
		Batch int
		Run   func(context.Context) error
	}{
		{JobMarkOverdueInvoices, s.cfg.MaxInvoiceBatchSize, s.MarkOverdueInvoicesJob},
		{JobVerifyInventoryLedger, s.cfg.MaxLedgerBatchSize, s.VerifyInventoryLedgerJob},
		{JobLowStockReport, s.cfg.MaxLowStockItems, s.LowStockReportJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Batch, s.cfg.JobTimeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// MarkOverdueInvoicesJob moves SENT invoices whose due date has passed to
// OVERDUE, one batch at a time until a short batch comes back.
func (s *Scheduler) MarkOverdueInvoicesJob(ctx context.Context) error {
	ctx, run, owner := s.beginRun(ctx, JobMarkOverdueInvoices, s.cfg.MaxInvoiceBatchSize)
	if owner {
		defer s.finishRun(ctx, run)
	}
	now := s.clock.Now()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		marked, err := s.invoiceSvc.MarkOverdue(ctx, now, s.cfg.MaxInvoiceBatchSize)
		run.processed += marked
		if err != nil {
			s.failed(ctx, run, "scheduler.invoice.overdue.failed", err)
			return err
		}
		if marked < s.cfg.MaxInvoiceBatchSize {
			return nil
		}
	}
}

// VerifyInventoryLedgerJob replays the movement ledger of every active item
// and reports items whose stored quantity no longer matches the replay.
func (s *Scheduler) VerifyInventoryLedgerJob(ctx context.Context) error {
	ctx, run, owner := s.beginRun(ctx, JobVerifyInventoryLedger, s.cfg.MaxLedgerBatchSize)
	if owner {
		defer s.finishRun(ctx, run)
	}
	var (
		afterID snowflake.ID
		jobErr  error
	)

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		reports, err := s.inventorySvc.VerifyLedgers(ctx, afterID, s.cfg.MaxLedgerBatchSize)
		if err != nil {
			s.failed(ctx, run, "scheduler.inventory.verify.failed", err)
			return errors.Join(jobErr, err)
		}
		for _, report := range reports {
			run.processed++
			if report.Consistent {
				continue
			}
			driftErr := fmt.Errorf("%w: item %s", obsmetrics.ErrLedgerDrift, report.ItemID)
			jobErr = errors.Join(jobErr, driftErr)
			s.failed(ctx, run, "inventory.ledger.drift", driftErr,
				zap.String("item_id", report.ItemID.String()),
				zap.String("sku", report.SKU),
				zap.Int64("quantity", report.Quantity),
				zap.Int64("replayed", report.Replayed),
				zap.Int("movements", report.Movements),
				zap.String("first_divergence", divergenceString(report.FirstDivergence)),
			)
		}
		if len(reports) < s.cfg.MaxLedgerBatchSize {
			return jobErr
		}
		afterID = reports[len(reports)-1].ItemID
	}
}

// LowStockReportJob logs every active item at or below its reorder level.
func (s *Scheduler) LowStockReportJob(ctx context.Context) error {
	ctx, run, owner := s.beginRun(ctx, JobLowStockReport, s.cfg.MaxLowStockItems)
	if owner {
		defer s.finishRun(ctx, run)
	}

	items, err := s.inventorySvc.ListLowStock(ctx, s.cfg.MaxLowStockItems)
	if err != nil {
		s.failed(ctx, run, "scheduler.inventory.low_stock.failed", err)
		return err
	}
	for _, item := range items {
		run.processed++
		s.logger(forGarage(ctx, item.GarageID)).Warn("inventory.low_stock",
			zap.String("item_id", item.ID.String()),
			zap.String("sku", item.SKU),
			zap.String("name", item.Name),
			zap.String("status", string(item.Status)),
			zap.Int64("quantity", item.Quantity),
			zap.Int64("reorder_level", item.ReorderLevel),
		)
	}
	return nil
}

func jobResource(job string) string {
	switch job {
	case JobMarkOverdueInvoices:
		return "invoice"
	default:
		return "inventory_item"
	}
}

func divergenceString(id *snowflake.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
