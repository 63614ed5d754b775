package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	auditcontext "github.com/smallbiznis/garageflow/internal/auditcontext"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/garageflow/internal/invoice/domain"
	"github.com/smallbiznis/garageflow/internal/jobsheet/domain"
	obslogger "github.com/smallbiznis/garageflow/internal/observability/logger"
	"github.com/smallbiznis/garageflow/internal/observability/metrics"
	"github.com/smallbiznis/garageflow/pkg/db"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	BookingSvc   bookingdomain.Service
	InventorySvc inventorydomain.Service
	InvoiceSvc   invoicedomain.Service
	Metrics      *metrics.Metrics    `optional:"true"`
	AuditSvc     auditdomain.Service `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	bookingSvc   bookingdomain.Service
	inventorySvc inventorydomain.Service
	invoiceSvc   invoicedomain.Service
	metrics      *metrics.Metrics
	auditSvc     auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("jobsheet.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		bookingSvc:   p.BookingSvc,
		inventorySvc: p.InventorySvc,
		invoiceSvc:   p.InvoiceSvc,
		metrics:      p.Metrics,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateJobSheetRequest) (domain.JobSheet, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.JobSheet{}, err
	}
	bookingID, err := snowflake.ParseString(strings.TrimSpace(req.BookingID))
	if err != nil || bookingID == 0 {
		return domain.JobSheet{}, domain.ErrInvalidBooking
	}
	technicianID := strings.TrimSpace(req.TechnicianID)
	if technicianID == "" {
		return domain.JobSheet{}, domain.ErrInvalidTechnician
	}

	now := s.clock.Now()
	sheet := domain.JobSheet{
		ID:           s.genID.Generate(),
		GarageID:     garageID,
		BookingID:    bookingID,
		TechnicianID: technicianID,
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.bookingSvc.FindTx(ctx, tx, garageID, bookingID)
		if err != nil {
			if errors.Is(err, bookingdomain.ErrNotFound) {
				return domain.ErrInvalidBooking
			}
			return err
		}
		if booking.Status.Terminal() {
			return domain.ErrInvalidTransition
		}
		existing, err := s.repo.FindByBooking(ctx, tx, garageID, bookingID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyExists
		}

		sheet.DiagnosisNotes = booking.DiagnosisNotes
		for i, svc := range booking.Services {
			serviceID := svc.ID
			sheet.Checklist = append(sheet.Checklist, domain.ChecklistItem{
				ID:               s.genID.Generate(),
				JobSheetID:       sheet.ID,
				BookingServiceID: &serviceID,
				Name:             svc.Name,
				Position:         i,
			})
		}
		if err := s.repo.Insert(ctx, tx, &sheet); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.JobSheet{}, err
	}

	s.emitAudit(ctx, "jobsheet.created", sheet, map[string]any{
		"booking_id":    sheet.BookingID.String(),
		"technician_id": sheet.TechnicianID,
	})
	return s.reload(ctx, garageID, sheet.ID)
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.JobSheet, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.JobSheet{}, err
	}
	sheetID, err := parseID(id)
	if err != nil {
		return domain.JobSheet{}, err
	}
	return s.reload(ctx, garageID, sheetID)
}

func (s *Service) List(ctx context.Context, req domain.ListJobSheetRequest) (domain.ListJobSheetResponse, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.ListJobSheetResponse{}, err
	}

	filter := domain.ListFilter{
		GarageID:     garageID,
		TechnicianID: strings.TrimSpace(req.TechnicianID),
	}
	if raw := strings.ToUpper(strings.TrimSpace(req.Status)); raw != "" {
		status := domain.Status(raw)
		if !status.Valid() {
			return domain.ListJobSheetResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(req.BookingID); raw != "" {
		bookingID, err := snowflake.ParseString(raw)
		if err != nil || bookingID == 0 {
			return domain.ListJobSheetResponse{}, domain.ErrInvalidBooking
		}
		filter.BookingID = &bookingID
	}

	items, total, err := s.repo.List(ctx, s.db, filter, req.Page)
	if err != nil {
		return domain.ListJobSheetResponse{}, err
	}
	sheets := make([]domain.JobSheet, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		sheets = append(sheets, *item)
	}
	return domain.ListJobSheetResponse{
		PageInfo:  pagination.BuildPageInfo(req.Page, total),
		JobSheets: sheets,
	}, nil
}

// Start begins work and takes the stock the booked services need. Stock is
// deducted at most once per job sheet; shortages come back as warnings.
func (s *Service) Start(ctx context.Context, id, note string) (domain.StartResult, error) {
	var deduction inventorydomain.DeductionResult
	sheet, err := s.act(ctx, id, domain.ActionStart, note, func(tx *gorm.DB, sheet *domain.JobSheet) error {
		if !sheet.InventoryDeducted {
			var booked []bookingdomain.BookingService
			if sheet.Booking != nil {
				booked = sheet.Booking.Services
			}
			result, err := s.deductFor(ctx, tx, sheet, booked)
			if err != nil {
				return err
			}
			deduction = result
			sheet.InventoryDeducted = true
		}
		return s.bookingSvc.MarkInProgressTx(ctx, tx, sheet.GarageID, sheet.BookingID)
	})
	if err != nil {
		return domain.StartResult{}, err
	}

	s.settleDeduction(ctx, sheet, deduction)
	s.emitAudit(ctx, "jobsheet.started", sheet, map[string]any{
		"movements": len(deduction.Adjustments),
		"shortages": len(deduction.Shortages),
	})
	return domain.StartResult{JobSheet: sheet, Shortages: shortagesOf(deduction)}, nil
}

// deductFor takes the stock the given booking services consume, inside tx and
// under a JOB_SHEET reference.
func (s *Service) deductFor(ctx context.Context, tx *gorm.DB, sheet *domain.JobSheet, services []bookingdomain.BookingService) (inventorydomain.DeductionResult, error) {
	consumed := make([]inventorydomain.ServiceConsumption, 0, len(services))
	for _, svc := range services {
		if svc.ServiceID == "" {
			continue
		}
		consumed = append(consumed, inventorydomain.ServiceConsumption{ServiceID: svc.ServiceID})
	}
	if len(consumed) == 0 {
		return inventorydomain.DeductionResult{}, nil
	}
	return s.inventorySvc.DeductForServicesTx(ctx, tx, inventorydomain.DeductionRequest{
		GarageID:    sheet.GarageID,
		JobSheetID:  sheet.ID,
		BookingID:   sheet.BookingID,
		Services:    consumed,
		PerformedBy: actorName(ctx),
	})
}

// settleDeduction runs after the deducting transaction commits: shortages are
// logged, every movement is audited and counted.
func (s *Service) settleDeduction(ctx context.Context, sheet domain.JobSheet, deduction inventorydomain.DeductionResult) {
	if len(deduction.Shortages) > 0 {
		obslogger.WithContext(ctx, s.log).Warn("stock deducted with insufficient quantity",
			zap.String("job_sheet_id", sheet.ID.String()),
			zap.Int("shortages", len(deduction.Shortages)),
		)
	}
	for _, adj := range deduction.Adjustments {
		s.emitInventoryAudit(ctx, sheet, adj)
	}
	s.inventorySvc.RecordAdjustments(ctx, deduction.Adjustments)
}

func shortagesOf(deduction inventorydomain.DeductionResult) []inventorydomain.Shortage {
	if deduction.Shortages == nil {
		return []inventorydomain.Shortage{}
	}
	return deduction.Shortages
}

func (s *Service) Pause(ctx context.Context, id, reason string) (domain.JobSheet, error) {
	if strings.TrimSpace(reason) == "" {
		return domain.JobSheet{}, domain.ErrInvalidReason
	}
	sheet, err := s.act(ctx, id, domain.ActionPause, reason, nil)
	if err != nil {
		return domain.JobSheet{}, err
	}
	s.emitAudit(ctx, "jobsheet.paused", sheet, map[string]any{"reason": strings.TrimSpace(reason)})
	return sheet, nil
}

func (s *Service) Resume(ctx context.Context, id, note string) (domain.JobSheet, error) {
	sheet, err := s.act(ctx, id, domain.ActionResume, note, func(_ *gorm.DB, sheet *domain.JobSheet) error {
		sheet.HaltedBy = ""
		return nil
	})
	if err != nil {
		return domain.JobSheet{}, err
	}
	s.emitAudit(ctx, "jobsheet.resumed", sheet, nil)
	return sheet, nil
}

func (s *Service) Halt(ctx context.Context, id, reason, haltedBy string) (domain.JobSheet, error) {
	if strings.TrimSpace(reason) == "" {
		return domain.JobSheet{}, domain.ErrInvalidReason
	}
	haltedBy = strings.TrimSpace(haltedBy)
	if haltedBy == "" {
		haltedBy = actorName(ctx)
	}
	sheet, err := s.act(ctx, id, domain.ActionHalt, reason, func(_ *gorm.DB, sheet *domain.JobSheet) error {
		sheet.HaltedBy = haltedBy
		return nil
	})
	if err != nil {
		return domain.JobSheet{}, err
	}
	s.emitAudit(ctx, "jobsheet.halted", sheet, map[string]any{
		"reason":    strings.TrimSpace(reason),
		"halted_by": haltedBy,
	})
	return sheet, nil
}

// Complete finishes the job, issues its invoice and completes the booking in
// one transaction.
func (s *Service) Complete(ctx context.Context, id, note string) (domain.CompleteResult, error) {
	var (
		invoice invoicedomain.Invoice
		created bool
	)
	sheet, err := s.act(ctx, id, domain.ActionComplete, note, func(tx *gorm.DB, sheet *domain.JobSheet) error {
		if !sheet.ChecklistComplete() {
			return domain.ErrChecklistIncomplete
		}
		if sheet.Booking == nil {
			return domain.ErrInvalidBooking
		}

		lines := make([]invoicedomain.LineInput, 0, len(sheet.Booking.Services))
		for _, svc := range sheet.Booking.Services {
			lines = append(lines, invoicedomain.LineInput{
				ServiceID:   svc.ServiceID,
				Name:        svc.Name,
				Description: svc.Description,
				Price:       svc.Price,
				Duration:    svc.Duration,
			})
		}
		var err error
		invoice, created, err = s.invoiceSvc.GenerateForJobSheetTx(ctx, tx, invoicedomain.GenerateInput{
			GarageID:   sheet.GarageID,
			JobSheetID: sheet.ID,
			BookingID:  sheet.BookingID,
			Customer:   sheet.Booking.Customer,
			Vehicle:    sheet.Booking.Vehicle,
			Lines:      lines,
		})
		if err != nil {
			return err
		}
		now := s.clock.Now()
		sheet.CompletedAt = &now
		return s.bookingSvc.MarkCompletedTx(ctx, tx, sheet.GarageID, sheet.BookingID)
	})
	if err != nil {
		return domain.CompleteResult{}, err
	}

	if created {
		s.invoiceSvc.RecordGenerated(ctx, invoice)
	}
	s.emitAudit(ctx, "jobsheet.completed", sheet, map[string]any{
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.InvoiceNumber,
	})
	return domain.CompleteResult{JobSheet: sheet, Invoice: invoice}, nil
}

func (s *Service) Cancel(ctx context.Context, id, reason string) (domain.JobSheet, error) {
	if strings.TrimSpace(reason) == "" {
		return domain.JobSheet{}, domain.ErrInvalidReason
	}
	sheet, err := s.act(ctx, id, domain.ActionCancel, reason, nil)
	if err != nil {
		return domain.JobSheet{}, err
	}
	s.emitAudit(ctx, "jobsheet.cancelled", sheet, map[string]any{"reason": strings.TrimSpace(reason)})
	return sheet, nil
}

func (s *Service) SetChecklistItem(ctx context.Context, id, itemID string, done bool) (domain.JobSheet, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.JobSheet{}, err
	}
	sheetID, err := parseID(id)
	if err != nil {
		return domain.JobSheet{}, err
	}
	checklistID, err := parseID(itemID)
	if err != nil {
		return domain.JobSheet{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheet, err := s.repo.FindForUpdate(ctx, tx, garageID, sheetID)
		if err != nil {
			return err
		}
		if sheet == nil {
			return domain.ErrNotFound
		}
		if sheet.Status.Terminal() {
			return domain.ErrInvalidTransition
		}
		for i := range sheet.Checklist {
			item := &sheet.Checklist[i]
			if item.ID != checklistID {
				continue
			}
			item.Done = done
			item.DoneAt = nil
			item.DoneBy = ""
			if done {
				now := s.clock.Now()
				item.DoneAt = &now
				item.DoneBy = actorName(ctx)
			}
			return s.repo.UpdateChecklistItem(ctx, tx, item)
		}
		return domain.ErrNotFound
	})
	if err != nil {
		return domain.JobSheet{}, err
	}
	return s.reload(ctx, garageID, sheetID)
}

func (s *Service) WorkDuration(ctx context.Context, id string, live bool) (domain.WorkDuration, error) {
	sheet, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.WorkDuration{}, err
	}
	var now *time.Time
	if live && !sheet.Status.Terminal() {
		current := s.clock.Now()
		now = &current
	}
	elapsed := domain.CalculateWorkDuration(sheet.TimeLogs, now)
	return domain.WorkDuration{
		Minutes: int64(elapsed / time.Minute),
		Seconds: int64(elapsed / time.Second),
		Live:    now != nil,
	}, nil
}

// act runs one lifecycle action under a row lock: validate the move, let the
// caller apply side effects, then persist the status and its time log.
func (s *Service) act(ctx context.Context, id string, action domain.Action, reason string, apply func(tx *gorm.DB, sheet *domain.JobSheet) error) (domain.JobSheet, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.JobSheet{}, err
	}
	sheetID, err := parseID(id)
	if err != nil {
		return domain.JobSheet{}, err
	}

	var from, to domain.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheet, err := s.repo.FindForUpdate(ctx, tx, garageID, sheetID)
		if err != nil {
			return err
		}
		if sheet == nil {
			return domain.ErrNotFound
		}
		from = sheet.Status
		to, err = domain.Transition(sheet.Status, action)
		if err != nil {
			return err
		}
		if apply != nil {
			if err := apply(tx, sheet); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		entry := domain.TimeLog{
			ID:         s.genID.Generate(),
			JobSheetID: sheet.ID,
			Type:       domain.LogTypeFor(action),
			Timestamp:  now,
			Reason:     strings.TrimSpace(reason),
			Actor:      actorName(ctx),
		}
		if err := s.repo.InsertTimeLog(ctx, tx, &entry); err != nil {
			return err
		}
		sheet.Status = to
		sheet.UpdatedAt = now
		return s.repo.Update(ctx, tx, sheet)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			obslogger.WithContext(ctx, s.log).Info("rejected job sheet action",
				zap.String("job_sheet_id", sheetID.String()),
				zap.String("action", string(action)),
				zap.String("status", string(from)),
			)
		}
		return domain.JobSheet{}, err
	}

	s.metrics.RecordJobTransition(ctx, string(action), string(to))
	return s.reload(ctx, garageID, sheetID)
}

func (s *Service) reload(ctx context.Context, garageID, id snowflake.ID) (domain.JobSheet, error) {
	sheet, err := s.repo.FindByID(ctx, s.db, garageID, id)
	if err != nil {
		return domain.JobSheet{}, err
	}
	if sheet == nil {
		return domain.JobSheet{}, domain.ErrNotFound
	}
	return *sheet, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, sheet domain.JobSheet, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["status"] = string(sheet.Status)
	if sheet.ApprovalStatus != nil {
		metadata["approval_status"] = string(*sheet.ApprovalStatus)
	}
	targetID := sheet.ID.String()
	garageID := sheet.GarageID
	if err := s.auditSvc.AuditLog(ctx, &garageID, "", nil, action, "job_sheet", &targetID, metadata); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("audit failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) emitInventoryAudit(ctx context.Context, sheet domain.JobSheet, adj inventorydomain.AdjustStockResult) {
	if s.auditSvc == nil {
		return
	}
	targetID := adj.Item.ID.String()
	garageID := sheet.GarageID
	metadata := map[string]any{
		"movement_id":        adj.Movement.ID.String(),
		"mode":               string(adj.Movement.Type),
		"quantity":           adj.Movement.Quantity,
		"resulting_quantity": adj.Movement.ResultingQuantity,
		"reference_type":     string(adj.Movement.ReferenceType),
		"job_sheet_id":       sheet.ID.String(),
		"shortfall":          adj.Shortfall,
	}
	if err := s.auditSvc.AuditLog(ctx, &garageID, "", nil, "inventory.adjusted", "inventory_item", &targetID, metadata); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("audit failed", zap.String("action", "inventory.adjusted"), zap.Error(err))
	}
}

func (s *Service) garageID(ctx context.Context) (snowflake.ID, error) {
	garageID, ok := garagecontext.GarageIDFromContext(ctx)
	if !ok {
		return 0, domain.ErrInvalidGarage
	}
	return garageID, nil
}

// actorName identifies who performed an action for time logs and stock
// movements.
func actorName(ctx context.Context) string {
	if actorType, actorID := auditcontext.ActorFromContext(ctx); actorID != "" {
		if actorType == "" {
			return actorID
		}
		return actorType + ":" + actorID
	}
	return string(auditdomain.ActorTypeSystem)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
