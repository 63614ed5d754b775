package service

import (
	"context"
	"strings"

	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	"github.com/smallbiznis/garageflow/internal/jobsheet/domain"
	"github.com/smallbiznis/garageflow/internal/pricing"
	"gorm.io/gorm"
)

// QuoteDiagnosis prices a diagnosis with the same formula invoices use.
func QuoteDiagnosis(services []domain.DiagnosedService) pricing.Breakdown {
	lines := make([]pricing.Line, 0, len(services))
	for _, svc := range services {
		lines = append(lines, pricing.Line{Price: svc.Price, Duration: svc.Duration})
	}
	return pricing.Quote(lines)
}

func (s *Service) SubmitDiagnosis(ctx context.Context, id string, req domain.SubmitDiagnosisRequest) (domain.DiagnosisResult, error) {
	if len(req.Services) == 0 {
		return domain.DiagnosisResult{}, domain.ErrInvalidServices
	}
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		return domain.DiagnosisResult{}, domain.ErrInvalidNotes
	}
	for _, svc := range req.Services {
		if strings.TrimSpace(svc.Name) == "" || svc.Price.IsNegative() || svc.Duration < 0 {
			return domain.DiagnosisResult{}, domain.ErrInvalidServices
		}
	}
	addedBy := strings.TrimSpace(req.TechnicianID)
	if addedBy == "" {
		addedBy = actorName(ctx)
	}

	var services []domain.DiagnosedService
	sheet, err := s.decide(ctx, id, func(tx *gorm.DB, sheet *domain.JobSheet) error {
		if sheet.Status.Terminal() {
			return domain.ErrInvalidTransition
		}
		if sheet.ApprovalStatus != nil && *sheet.ApprovalStatus == domain.ApprovalApproved {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now()
		services = make([]domain.DiagnosedService, 0, len(req.Services))
		for _, in := range req.Services {
			services = append(services, domain.DiagnosedService{
				ID:          s.genID.Generate(),
				JobSheetID:  sheet.ID,
				ServiceID:   strings.TrimSpace(in.ServiceID),
				Name:        strings.TrimSpace(in.Name),
				Description: strings.TrimSpace(in.Description),
				Duration:    in.Duration,
				Price:       in.Price.Round(2),
				AddedBy:     addedBy,
				AddedAt:     now,
			})
		}
		if err := s.repo.ReplaceDiagnosedServices(ctx, tx, sheet.ID, services); err != nil {
			return err
		}

		pending := domain.ApprovalPending
		sheet.ApprovalStatus = &pending
		sheet.DiagnosisNotes = notes
		sheet.ReviewedBy = nil
		sheet.ReviewedAt = nil
		sheet.RejectionReason = ""
		return nil
	})
	if err != nil {
		return domain.DiagnosisResult{}, err
	}

	quote := QuoteDiagnosis(services)
	s.emitAudit(ctx, "jobsheet.diagnosis_submitted", sheet, map[string]any{
		"services":     len(services),
		"total_amount": quote.Total.StringFixed(2),
	})
	return domain.DiagnosisResult{JobSheet: sheet, Quote: quote}, nil
}

// Approve accepts a pending diagnosis. The booking receives copies of the
// diagnosed services and each one joins the job checklist. When the job has
// already started, the stock the new services consume is taken as well.
func (s *Service) Approve(ctx context.Context, id, reviewerID string) (domain.ApprovalResult, error) {
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return domain.ApprovalResult{}, domain.ErrInvalidReviewer
	}

	var deduction inventorydomain.DeductionResult
	sheet, err := s.decide(ctx, id, func(tx *gorm.DB, sheet *domain.JobSheet) error {
		if err := requirePending(sheet); err != nil {
			return err
		}

		inputs := make([]bookingdomain.ServiceInput, 0, len(sheet.DiagnosedServices))
		for _, svc := range sheet.DiagnosedServices {
			inputs = append(inputs, bookingdomain.ServiceInput{
				ServiceID:   svc.ServiceID,
				Name:        svc.Name,
				Description: svc.Description,
				Price:       svc.Price,
				Duration:    svc.Duration,
			})
		}
		added, err := s.bookingSvc.AppendServicesTx(ctx, tx, sheet.GarageID, sheet.BookingID, inputs)
		if err != nil {
			return err
		}

		next := len(sheet.Checklist)
		items := make([]domain.ChecklistItem, 0, len(added))
		for i, svc := range added {
			serviceID := svc.ID
			items = append(items, domain.ChecklistItem{
				ID:               s.genID.Generate(),
				JobSheetID:       sheet.ID,
				BookingServiceID: &serviceID,
				Name:             svc.Name,
				Position:         next + i,
			})
		}
		if err := s.repo.InsertChecklistItems(ctx, tx, items); err != nil {
			return err
		}

		if sheet.InventoryDeducted {
			result, err := s.deductFor(ctx, tx, sheet, added)
			if err != nil {
				return err
			}
			deduction = result
		}

		now := s.clock.Now()
		approved := domain.ApprovalApproved
		sheet.ApprovalStatus = &approved
		sheet.ReviewedBy = &reviewerID
		sheet.ReviewedAt = &now
		return nil
	})
	if err != nil {
		return domain.ApprovalResult{}, err
	}

	s.settleDeduction(ctx, sheet, deduction)
	s.emitAudit(ctx, "jobsheet.approved", sheet, map[string]any{
		"reviewer_id": reviewerID,
		"services":    len(sheet.DiagnosedServices),
		"movements":   len(deduction.Adjustments),
		"shortages":   len(deduction.Shortages),
	})
	return domain.ApprovalResult{JobSheet: sheet, Shortages: shortagesOf(deduction)}, nil
}

func (s *Service) Reject(ctx context.Context, id, reviewerID, reason string) (domain.JobSheet, error) {
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return domain.JobSheet{}, domain.ErrInvalidReviewer
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.JobSheet{}, domain.ErrInvalidReason
	}

	sheet, err := s.decide(ctx, id, func(_ *gorm.DB, sheet *domain.JobSheet) error {
		if err := requirePending(sheet); err != nil {
			return err
		}
		now := s.clock.Now()
		rejected := domain.ApprovalRejected
		sheet.ApprovalStatus = &rejected
		sheet.ReviewedBy = &reviewerID
		sheet.ReviewedAt = &now
		sheet.RejectionReason = reason
		return nil
	})
	if err != nil {
		return domain.JobSheet{}, err
	}

	s.emitAudit(ctx, "jobsheet.rejected", sheet, map[string]any{
		"reviewer_id": reviewerID,
		"reason":      reason,
	})
	return sheet, nil
}

// decide applies an approval-side change under a row lock. Execution status
// is left alone.
func (s *Service) decide(ctx context.Context, id string, apply func(tx *gorm.DB, sheet *domain.JobSheet) error) (domain.JobSheet, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.JobSheet{}, err
	}
	sheetID, err := parseID(id)
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
		if err := apply(tx, sheet); err != nil {
			return err
		}
		sheet.UpdatedAt = s.clock.Now()
		return s.repo.Update(ctx, tx, sheet)
	})
	if err != nil {
		return domain.JobSheet{}, err
	}
	return s.reload(ctx, garageID, sheetID)
}

func requirePending(sheet *domain.JobSheet) error {
	if sheet.Status.Terminal() {
		return domain.ErrInvalidTransition
	}
	if sheet.ApprovalStatus == nil || *sheet.ApprovalStatus != domain.ApprovalPending {
		return domain.ErrInvalidTransition
	}
	return nil
}
