package service

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	invoicedomain "github.com/smallbiznis/garageflow/internal/invoice/domain"
	obslogger "github.com/smallbiznis/garageflow/internal/observability/logger"
	"github.com/smallbiznis/garageflow/internal/observability/metrics"
	"github.com/smallbiznis/garageflow/internal/pricing"
	"github.com/smallbiznis/garageflow/pkg/db"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxNumberAttempts = 8

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     invoicedomain.Repository
	Metrics  *metrics.Metrics    `optional:"true"`
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	repo     invoicedomain.Repository
	metrics  *metrics.Metrics
	auditSvc auditdomain.Service

	// suffix draws the random four digit tail of an invoice number.
	suffix func() int
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,

		clock:    p.Clock,
		repo:     p.Repo,
		metrics:  p.Metrics,
		auditSvc: p.AuditSvc,
		suffix:   func() int { return rand.IntN(10000) },
	}
}

func (s *Service) GenerateForJobSheetTx(ctx context.Context, tx *gorm.DB, in invoicedomain.GenerateInput) (invoicedomain.Invoice, bool, error) {
	if in.GarageID == 0 {
		return invoicedomain.Invoice{}, false, invoicedomain.ErrInvalidGarage
	}
	if in.JobSheetID == 0 || in.BookingID == 0 {
		return invoicedomain.Invoice{}, false, invoicedomain.ErrInvalidID
	}
	if len(in.Lines) == 0 {
		return invoicedomain.Invoice{}, false, invoicedomain.ErrInvalidLines
	}

	existing, err := s.repo.FindByJobSheet(ctx, tx, in.JobSheetID)
	if err != nil {
		return invoicedomain.Invoice{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	quoteLines := make([]pricing.Line, 0, len(in.Lines))
	for _, line := range in.Lines {
		if strings.TrimSpace(line.Name) == "" || line.Price.IsNegative() || line.Duration < 0 {
			return invoicedomain.Invoice{}, false, invoicedomain.ErrInvalidLines
		}
		quoteLines = append(quoteLines, pricing.Line{Price: line.Price, Duration: line.Duration})
	}
	quote := pricing.Quote(quoteLines)

	now := s.clock.Now()
	invoice := invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		GarageID:      in.GarageID,
		JobSheetID:    in.JobSheetID,
		BookingID:     in.BookingID,
		Customer:      in.Customer,
		Vehicle:       in.Vehicle,
		Subtotal:      quote.Subtotal,
		ServiceCharge: quote.ServiceCharge,
		VAT:           quote.VAT,
		TotalAmount:   quote.Total,
		Duration:      quote.Duration,
		Status:        invoicedomain.InvoiceStatusDraft,
		IssuedDate:    now,
		DueDate:       now.AddDate(0, 0, invoicedomain.PaymentTermDays),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, line := range in.Lines {
		invoice.Lines = append(invoice.Lines, invoicedomain.InvoiceLine{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			ServiceID:   strings.TrimSpace(line.ServiceID),
			Name:        strings.TrimSpace(line.Name),
			Description: strings.TrimSpace(line.Description),
			Price:       line.Price.Round(2),
			Duration:    line.Duration,
			Position:    i,
		})
	}

	// Each attempt runs in a savepoint so a number collision does not abort
	// the caller's transaction.
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		invoice.InvoiceNumber = invoicedomain.FormatNumber(now, s.suffix())
		err = tx.Transaction(func(inner *gorm.DB) error {
			return s.repo.Insert(ctx, inner, &invoice)
		})
		if err == nil {
			return invoice, true, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return invoicedomain.Invoice{}, false, err
		}
		obslogger.WithContext(ctx, s.log).Warn("invoice number collision",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Int("attempt", attempt),
		)
	}
	return invoicedomain.Invoice{}, false, invoicedomain.ErrNumberExhausted
}

func (s *Service) RecordGenerated(ctx context.Context, inv invoicedomain.Invoice) {
	s.metrics.RecordInvoiceGenerated(ctx, inv.GarageID.String())
	s.emitAudit(ctx, "invoice.generated", inv, map[string]any{
		"invoice_number": inv.InvoiceNumber,
		"job_sheet_id":   inv.JobSheetID.String(),
		"total_amount":   inv.TotalAmount.StringFixed(2),
	})
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	garageID, err := s.garageIDFromContext(ctx)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	filter := invoicedomain.ListFilter{GarageID: garageID}
	if raw := strings.ToUpper(strings.TrimSpace(req.Status)); raw != "" {
		status := invoicedomain.InvoiceStatus(raw)
		if !status.Valid() {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(req.BookingID); raw != "" {
		bookingID, err := parseID(raw)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		filter.BookingID = &bookingID
	}
	if req.Overdue {
		today := invoicedomain.StartOfDay(s.clock.Now())
		filter.OverdueBefore = &today
	}

	items, total, err := s.repo.List(ctx, s.db, filter, req.Page)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return invoicedomain.ListInvoiceResponse{
		PageInfo: pagination.BuildPageInfo(req.Page, total),
		Invoices: invoices,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	garageID, err := s.garageIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, garageID, invoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if item == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Send(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	return s.transition(ctx, id, invoicedomain.InvoiceStatusSent, "invoice.sent")
}

func (s *Service) MarkPaid(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	return s.transition(ctx, id, invoicedomain.InvoiceStatusPaid, "invoice.paid")
}

func (s *Service) Cancel(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	return s.transition(ctx, id, invoicedomain.InvoiceStatusCancelled, "invoice.cancelled")
}

// MarkOverdue moves sent invoices past their due date to OVERDUE. It runs
// without a garage in context and returns the number of invoices changed.
func (s *Service) MarkOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	candidates, err := s.repo.ListSentDueBefore(ctx, s.db, invoicedomain.StartOfDay(now), limit)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, candidate := range candidates {
		if !invoicedomain.IsOverdue(*candidate, now) {
			continue
		}
		var updated *invoicedomain.Invoice
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv, err := s.repo.FindForUpdate(ctx, tx, candidate.GarageID, candidate.ID)
			if err != nil || inv == nil {
				return err
			}
			if inv.Status != invoicedomain.InvoiceStatusSent {
				return nil
			}
			if err := s.apply(ctx, tx, inv, invoicedomain.InvoiceStatusOverdue, now); err != nil {
				return err
			}
			updated = inv
			return nil
		})
		if err != nil {
			return marked, err
		}
		if updated == nil {
			continue
		}
		marked++
		s.emitAudit(ctx, "invoice.overdue", *updated, map[string]any{
			"due_date": updated.DueDate.Format(time.DateOnly),
		})
	}
	return marked, nil
}

func (s *Service) transition(ctx context.Context, id string, to invoicedomain.InvoiceStatus, action string) (invoicedomain.Invoice, error) {
	garageID, err := s.garageIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	var (
		invoice *invoicedomain.Invoice
		from    invoicedomain.InvoiceStatus
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err = s.repo.FindForUpdate(ctx, tx, garageID, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		from = invoice.Status
		return s.apply(ctx, tx, invoice, to, s.clock.Now())
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.emitAudit(ctx, action, *invoice, map[string]any{
		"from": string(from),
		"to":   string(to),
	})
	return *invoice, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, to invoicedomain.InvoiceStatus, now time.Time) error {
	if !invoicedomain.CanTransition(invoice.Status, to) {
		return invoicedomain.ErrInvalidTransition
	}
	switch to {
	case invoicedomain.InvoiceStatusSent:
		invoice.SentAt = &now
	case invoicedomain.InvoiceStatusPaid:
		invoice.PaidAt = &now
	case invoicedomain.InvoiceStatusCancelled:
		invoice.CancelledAt = &now
	}
	invoice.Status = to
	invoice.UpdatedAt = now
	return s.repo.UpdateStatus(ctx, tx, invoice)
}

func (s *Service) emitAudit(ctx context.Context, action string, invoice invoicedomain.Invoice, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["status"] = string(invoice.Status)
	targetID := invoice.ID.String()
	garageID := invoice.GarageID
	if err := s.auditSvc.AuditLog(ctx, &garageID, "", nil, action, "invoice", &targetID, metadata); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("audit failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) garageIDFromContext(ctx context.Context) (snowflake.ID, error) {
	garageID, ok := garagecontext.GarageIDFromContext(ctx)
	if !ok {
		return 0, invoicedomain.ErrInvalidGarage
	}
	return garageID, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invoicedomain.ErrInvalidID
	}
	return id, nil
}
