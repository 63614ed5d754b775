package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/samber/lo"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	auditcontext "github.com/smallbiznis/garageflow/internal/auditcontext"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/config"
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	"github.com/smallbiznis/garageflow/internal/inventory/domain"
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

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Workshop *config.WorkshopConfigHolder
	Metrics  *metrics.Metrics    `optional:"true"`
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	workshop *config.WorkshopConfigHolder
	metrics  *metrics.Metrics
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("inventory.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		workshop: p.Workshop,
		metrics:  p.Metrics,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) CreateItem(ctx context.Context, req domain.CreateItemRequest) (domain.Item, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.Item{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Item{}, domain.ErrInvalidName
	}
	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		sku = slug.Make(name)
	}
	if sku == "" {
		return domain.Item{}, domain.ErrInvalidSKU
	}
	if req.InitialQuantity < 0 {
		return domain.Item{}, domain.ErrInvalidQuantity
	}
	reorderLevel := s.workshop.Get().DefaultReorderLevel
	if req.ReorderLevel != nil {
		reorderLevel = *req.ReorderLevel
	}
	if reorderLevel < 0 {
		return domain.Item{}, domain.ErrInvalidReorder
	}
	if req.Cost.IsNegative() || req.Price.IsNegative() {
		return domain.Item{}, domain.ErrInvalidPrice
	}

	now := s.clock.Now()
	item := domain.Item{
		ID:           s.genID.Generate(),
		GarageID:     garageID,
		Name:         name,
		SKU:          sku,
		Category:     strings.TrimSpace(req.Category),
		ReorderLevel: reorderLevel,
		Unit:         strings.TrimSpace(req.Unit),
		Cost:         req.Cost.Round(2),
		Price:        req.Price.Round(2),
		Supplier:     strings.TrimSpace(req.Supplier),
		Location:     strings.TrimSpace(req.Location),
		Status:       domain.DeriveStatus(0, reorderLevel),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var opening *domain.AdjustStockResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertItem(ctx, tx, &item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateSKU
			}
			return err
		}
		if req.InitialQuantity == 0 {
			return nil
		}
		// Opening stock goes through the ledger so replay starts from zero.
		result, err := s.adjust(ctx, tx, garageID, domain.AdjustStockRequest{
			ItemID:   item.ID.String(),
			Mode:     domain.MovementSet,
			Quantity: req.InitialQuantity,
			Reason:   "opening stock",
		})
		if err != nil {
			return err
		}
		item = result.Item
		opening = &result
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}

	s.emitAudit(ctx, "inventory.item_created", item, map[string]any{
		"sku":      item.SKU,
		"quantity": item.Quantity,
	})
	if opening != nil {
		s.recordAdjustment(ctx, *opening)
	}
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, id string) (domain.Item, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.Item{}, err
	}
	itemID, err := parseID(id)
	if err != nil {
		return domain.Item{}, err
	}
	item, err := s.repo.FindItem(ctx, s.db, garageID, itemID)
	if err != nil {
		return domain.Item{}, err
	}
	if item == nil {
		return domain.Item{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListItems(ctx context.Context, req domain.ListItemRequest) (domain.ListItemResponse, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.ListItemResponse{}, err
	}

	filter := domain.ListItemFilter{
		Search:    strings.TrimSpace(req.Search),
		Category:  strings.TrimSpace(req.Category),
		SortBy:    strings.TrimSpace(req.SortBy),
		SortOrder: req.SortOrder,
	}
	if raw := strings.ToUpper(strings.TrimSpace(req.Status)); raw != "" {
		status := domain.Status(raw)
		switch status {
		case domain.StatusInStock, domain.StatusLow, domain.StatusOut:
			filter.Status = status
		default:
			return domain.ListItemResponse{}, domain.ErrInvalidStatus
		}
	}
	if !req.IncludeInactive {
		filter.Active = lo.ToPtr(true)
	}

	items, total, err := s.repo.ListItems(ctx, s.db, garageID, filter, req.Page)
	if err != nil {
		return domain.ListItemResponse{}, err
	}

	return domain.ListItemResponse{
		PageInfo: pagination.BuildPageInfo(req.Page, total),
		Items:    lo.FromSlicePtr(items),
	}, nil
}

func (s *Service) DeactivateItem(ctx context.Context, id string) (domain.Item, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.Item{}, err
	}
	itemID, err := parseID(id)
	if err != nil {
		return domain.Item{}, err
	}

	var item domain.Item
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindItemForUpdate(ctx, tx, garageID, itemID)
		if err != nil {
			return err
		}
		if found == nil {
			return domain.ErrNotFound
		}
		now := s.clock.Now()
		if err := s.repo.SetActive(ctx, tx, garageID, itemID, false, now); err != nil {
			return err
		}
		found.Active = false
		found.UpdatedAt = now
		item = *found
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}

	s.emitAudit(ctx, "inventory.item_deactivated", item, nil)
	return item, nil
}

func (s *Service) AdjustStock(ctx context.Context, req domain.AdjustStockRequest) (domain.AdjustStockResult, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.AdjustStockResult{}, err
	}

	var result domain.AdjustStockResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result, err = s.adjust(ctx, tx, garageID, req)
		return err
	})
	if err != nil {
		return domain.AdjustStockResult{}, err
	}

	s.recordAdjustment(ctx, result)
	s.emitAudit(ctx, "inventory.adjusted", result.Item, map[string]any{
		"movement_id":        result.Movement.ID.String(),
		"mode":               string(result.Movement.Type),
		"quantity":           result.Movement.Quantity,
		"resulting_quantity": result.Movement.ResultingQuantity,
		"reference_type":     string(result.Movement.ReferenceType),
		"shortfall":          result.Shortfall,
	})
	return result, nil
}

// AdjustStockTx runs the ledger write inside the caller's transaction. Once
// that transaction commits the caller audits the result and passes it to
// RecordAdjustments.
func (s *Service) AdjustStockTx(ctx context.Context, tx *gorm.DB, garageID snowflake.ID, req domain.AdjustStockRequest) (domain.AdjustStockResult, error) {
	if garageID == 0 {
		return domain.AdjustStockResult{}, domain.ErrInvalidGarage
	}
	return s.adjust(ctx, tx, garageID, req)
}

// RecordAdjustments counts committed ledger writes made through AdjustStockTx
// or DeductForServicesTx.
func (s *Service) RecordAdjustments(ctx context.Context, results []domain.AdjustStockResult) {
	for _, result := range results {
		s.recordAdjustment(ctx, result)
	}
}

// adjust is the single write path for item quantity.
func (s *Service) adjust(ctx context.Context, tx *gorm.DB, garageID snowflake.ID, req domain.AdjustStockRequest) (domain.AdjustStockResult, error) {
	itemID, err := parseID(req.ItemID)
	if err != nil {
		return domain.AdjustStockResult{}, err
	}
	mode := domain.MovementType(strings.ToUpper(strings.TrimSpace(string(req.Mode))))
	switch mode {
	case domain.MovementIncrease, domain.MovementDecrease, domain.MovementSet:
	default:
		return domain.AdjustStockResult{}, domain.ErrInvalidMode
	}
	if req.Quantity < 0 {
		return domain.AdjustStockResult{}, domain.ErrInvalidQuantity
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.AdjustStockResult{}, domain.ErrInvalidReason
	}

	item, err := s.repo.FindItemForUpdate(ctx, tx, garageID, itemID)
	if err != nil {
		return domain.AdjustStockResult{}, err
	}
	if item == nil {
		return domain.AdjustStockResult{}, domain.ErrNotFound
	}
	if !item.Active {
		return domain.AdjustStockResult{}, domain.ErrItemInactive
	}

	outcome, err := item.Apply(mode, req.Quantity)
	if err != nil {
		return domain.AdjustStockResult{}, err
	}

	now := s.clock.Now()
	movement := domain.Movement{
		ID:                s.genID.Generate(),
		GarageID:          garageID,
		ItemID:            item.ID,
		Type:              mode,
		Quantity:          req.Quantity,
		ResultingQuantity: outcome.Resulting,
		ReferenceType:     domain.ResolveReferenceType(req.JobSheetID, req.BookingID, req.System),
		JobSheetID:        nonZero(req.JobSheetID),
		BookingID:         nonZero(req.BookingID),
		Reason:            reason,
		Notes:             strings.TrimSpace(req.Notes),
		PerformedBy:       s.performedBy(ctx, req),
		CreatedAt:         now,
	}
	if serviceID := strings.TrimSpace(req.ServiceID); serviceID != "" {
		movement.ServiceID = &serviceID
	}

	if err := s.repo.UpdateQuantity(ctx, tx, item, now); err != nil {
		return domain.AdjustStockResult{}, err
	}
	if err := s.repo.InsertMovement(ctx, tx, &movement); err != nil {
		return domain.AdjustStockResult{}, err
	}
	item.UpdatedAt = now

	if outcome.Shortfall > 0 {
		obslogger.WithContext(ctx, s.log).Warn("stock decrease clamped at zero",
			zap.String("item_id", item.ID.String()),
			zap.String("sku", item.SKU),
			zap.Int64("requested", req.Quantity),
			zap.Int64("previous", outcome.Previous),
			zap.Int64("shortfall", outcome.Shortfall),
		)
	}

	return domain.AdjustStockResult{
		Item:      *item,
		Movement:  movement,
		Shortfall: outcome.Shortfall,
	}, nil
}

func (s *Service) DeductForServicesTx(ctx context.Context, tx *gorm.DB, req domain.DeductionRequest) (domain.DeductionResult, error) {
	if req.GarageID == 0 {
		return domain.DeductionResult{}, domain.ErrInvalidGarage
	}
	cfg := s.workshop.Get()
	serviceIDs := lo.Map(req.Services, func(svc domain.ServiceConsumption, _ int) string { return svc.ServiceID })

	requirements := consolidateRequirements(cfg, serviceIDs)
	items, err := s.itemsBySKU(ctx, tx, req.GarageID, requirements)
	if err != nil {
		return domain.DeductionResult{}, err
	}
	result := domain.DeductionResult{Shortages: shortages(requirements, items)}

	jobSheetID := req.JobSheetID
	bookingID := req.BookingID
	for _, svc := range req.Services {
		for _, need := range serviceRequirements(cfg, svc.ServiceID) {
			item, ok := items[strings.TrimSpace(need.SKU)]
			if !ok || !item.Active {
				obslogger.WithContext(ctx, s.log).Warn("skipping deduction for unavailable item",
					zap.String("sku", need.SKU),
					zap.String("service_id", svc.ServiceID),
					zap.String("job_sheet_id", jobSheetID.String()),
				)
				continue
			}
			adjusted, err := s.AdjustStockTx(ctx, tx, req.GarageID, domain.AdjustStockRequest{
				ItemID:      item.ID.String(),
				Mode:        domain.MovementDecrease,
				Quantity:    need.Quantity,
				Reason:      fmt.Sprintf("consumed by service %s", svc.ServiceID),
				PerformedBy: req.PerformedBy,
				JobSheetID:  &jobSheetID,
				BookingID:   &bookingID,
				ServiceID:   svc.ServiceID,
			})
			if err != nil {
				return domain.DeductionResult{}, err
			}
			result.Adjustments = append(result.Adjustments, adjusted)
		}
	}
	return result, nil
}

func (s *Service) ListMovements(ctx context.Context, req domain.ListMovementRequest) (domain.ListMovementResponse, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.ListMovementResponse{}, err
	}

	filter := domain.ListMovementFilter{}
	if filter.ItemID, err = parseOptionalID(req.ItemID); err != nil {
		return domain.ListMovementResponse{}, err
	}
	if filter.JobSheetID, err = parseOptionalID(req.JobSheetID); err != nil {
		return domain.ListMovementResponse{}, err
	}
	if filter.BookingID, err = parseOptionalID(req.BookingID); err != nil {
		return domain.ListMovementResponse{}, err
	}
	if raw := strings.ToUpper(strings.TrimSpace(req.ReferenceType)); raw != "" {
		ref := domain.ReferenceType(raw)
		switch ref {
		case domain.ReferenceJobSheet, domain.ReferenceBooking, domain.ReferenceManual, domain.ReferenceSystem:
			filter.ReferenceType = ref
		default:
			return domain.ListMovementResponse{}, domain.ErrInvalidRefType
		}
	}
	if raw := strings.ToUpper(strings.TrimSpace(req.Type)); raw != "" {
		mode := domain.MovementType(raw)
		switch mode {
		case domain.MovementIncrease, domain.MovementDecrease, domain.MovementSet:
			filter.Type = mode
		default:
			return domain.ListMovementResponse{}, domain.ErrInvalidMode
		}
	}

	movements, total, err := s.repo.ListMovements(ctx, s.db, garageID, filter, req.Page)
	if err != nil {
		return domain.ListMovementResponse{}, err
	}
	return domain.ListMovementResponse{
		PageInfo:  pagination.BuildPageInfo(req.Page, total),
		Movements: lo.FromSlicePtr(movements),
	}, nil
}

func (s *Service) RequirementsForServices(ctx context.Context, serviceIDs []string) ([]domain.Requirement, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return nil, err
	}
	requirements := consolidateRequirements(s.workshop.Get(), serviceIDs)
	items, err := s.itemsBySKU(ctx, s.db, garageID, requirements)
	if err != nil {
		return nil, err
	}
	for i := range requirements {
		if item, ok := items[requirements[i].SKU]; ok {
			id := item.ID
			requirements[i].ItemID = &id
			requirements[i].Name = item.Name
		}
	}
	return requirements, nil
}

func (s *Service) CheckAvailability(ctx context.Context, serviceIDs []string) ([]domain.Shortage, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return nil, err
	}
	requirements := consolidateRequirements(s.workshop.Get(), serviceIDs)
	items, err := s.itemsBySKU(ctx, s.db, garageID, requirements)
	if err != nil {
		return nil, err
	}
	return shortages(requirements, items), nil
}

func (s *Service) VerifyLedger(ctx context.Context, itemID string) (domain.LedgerReport, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return domain.LedgerReport{}, err
	}
	return s.verify(ctx, &item)
}

func (s *Service) VerifyLedgers(ctx context.Context, afterID snowflake.ID, limit int) ([]domain.LedgerReport, error) {
	if limit <= 0 {
		limit = 100
	}
	items, err := s.repo.ListItemsAfter(ctx, s.db, afterID, limit)
	if err != nil {
		return nil, err
	}
	reports := make([]domain.LedgerReport, 0, len(items))
	for _, item := range items {
		report, err := s.verify(ctx, item)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *Service) ListLowStock(ctx context.Context, limit int) ([]domain.Item, error) {
	if limit <= 0 {
		limit = 100
	}
	items, err := s.repo.ListLowStock(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}
	return lo.FromSlicePtr(items), nil
}

func (s *Service) verify(ctx context.Context, item *domain.Item) (domain.LedgerReport, error) {
	movements, err := s.repo.ListItemMovements(ctx, s.db, item.ID)
	if err != nil {
		return domain.LedgerReport{}, err
	}
	replayed, divergence := domain.VerifyReplay(0, movements)
	return domain.LedgerReport{
		ItemID:          item.ID,
		SKU:             item.SKU,
		Quantity:        item.Quantity,
		Replayed:        replayed,
		Movements:       len(movements),
		Consistent:      replayed == item.Quantity && divergence == nil,
		FirstDivergence: divergence,
	}, nil
}

func (s *Service) itemsBySKU(ctx context.Context, db *gorm.DB, garageID snowflake.ID, requirements []domain.Requirement) (map[string]*domain.Item, error) {
	skus := lo.Map(requirements, func(req domain.Requirement, _ int) string { return req.SKU })
	items, err := s.repo.FindItemsBySKU(ctx, db, garageID, skus)
	if err != nil {
		return nil, err
	}
	return lo.KeyBy(items, func(item *domain.Item) string { return item.SKU }), nil
}

func (s *Service) recordAdjustment(ctx context.Context, result domain.AdjustStockResult) {
	ref := string(result.Movement.ReferenceType)
	s.metrics.RecordStockAdjustment(ctx, string(result.Movement.Type), ref)
	s.metrics.RecordStockShortfall(ctx, ref, result.Shortfall)
}

func (s *Service) performedBy(ctx context.Context, req domain.AdjustStockRequest) string {
	if by := strings.TrimSpace(req.PerformedBy); by != "" {
		return by
	}
	if actorType, actorID := auditcontext.ActorFromContext(ctx); actorType != "" && actorID != "" {
		return actorType + ":" + actorID
	}
	return string(auditdomain.ActorTypeSystem)
}

func (s *Service) emitAudit(ctx context.Context, action string, item domain.Item, extra map[string]any) {
	if s.auditSvc == nil {
		return
	}
	metadata := map[string]any{
		"sku":    item.SKU,
		"status": string(item.Status),
	}
	for key, value := range extra {
		metadata[key] = value
	}
	targetID := item.ID.String()
	garageID := item.GarageID
	if err := s.auditSvc.AuditLog(ctx, &garageID, "", nil, action, "inventory_item", &targetID, metadata); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("audit failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) garageID(ctx context.Context) (snowflake.ID, error) {
	garageID, ok := garagecontext.GarageIDFromContext(ctx)
	if !ok {
		return 0, domain.ErrInvalidGarage
	}
	return garageID, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func parseOptionalID(raw string) (*snowflake.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func nonZero(id *snowflake.ID) *snowflake.ID {
	if id == nil || *id == 0 {
		return nil
	}
	value := *id
	return &value
}

