package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/internal/jobsheet/domain"
	"github.com/smallbiznis/garageflow/pkg/db"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// withDetails loads the child collections a job sheet is returned with.
func withDetails(stmt *gorm.DB) *gorm.DB {
	return stmt.
		Preload("Booking").
		Preload("Booking.Services", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, id asc")
		}).
		Preload("DiagnosedServices", func(db *gorm.DB) *gorm.DB {
			return db.Order("added_at asc, id asc")
		}).
		Preload("TimeLogs", func(db *gorm.DB) *gorm.DB {
			return db.Order("logged_at asc, id asc")
		}).
		Preload("Checklist", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, id asc")
		})
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sheet *domain.JobSheet) error {
	return db.WithContext(ctx).Omit("Booking").Create(sheet).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*domain.JobSheet, error) {
	return r.first(db.WithContext(ctx).Where("garage_id = ? AND id = ?", garageID, id))
}

func (r *repo) FindForUpdate(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID) (*domain.JobSheet, error) {
	stmt := tx.WithContext(ctx)
	if db.SupportsRowLocking(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.first(stmt.Where("garage_id = ? AND id = ?", garageID, id))
}

func (r *repo) FindByBooking(ctx context.Context, db *gorm.DB, garageID, bookingID snowflake.ID) (*domain.JobSheet, error) {
	return r.first(db.WithContext(ctx).Where("garage_id = ? AND booking_id = ?", garageID, bookingID))
}

func (r *repo) first(stmt *gorm.DB) (*domain.JobSheet, error) {
	var sheet domain.JobSheet
	if err := withDetails(stmt).First(&sheet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sheet, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Page) ([]*domain.JobSheet, int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.JobSheet{}).
		Where("garage_id = ?", filter.GarageID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.BookingID != nil {
		stmt = stmt.Where("booking_id = ?", *filter.BookingID)
	}
	if filter.TechnicianID != "" {
		stmt = stmt.Where("technician_id = ?", filter.TechnicianID)
	}

	stmt = stmt.Session(&gorm.Session{})
	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	var sheets []*domain.JobSheet
	err := withDetails(stmt).
		Order("created_at desc, id desc").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&sheets).Error
	if err != nil {
		return nil, 0, err
	}
	return sheets, total, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sheet *domain.JobSheet) error {
	return db.WithContext(ctx).Exec(
		`UPDATE job_sheets SET
			status = ?, approval_status = ?, diagnosis_notes = ?, inventory_deducted = ?,
			reviewed_by = ?, reviewed_at = ?, rejection_reason = ?, halted_by = ?,
			completed_at = ?, updated_at = ?
		WHERE garage_id = ? AND id = ?`,
		sheet.Status,
		sheet.ApprovalStatus,
		sheet.DiagnosisNotes,
		sheet.InventoryDeducted,
		sheet.ReviewedBy,
		sheet.ReviewedAt,
		sheet.RejectionReason,
		sheet.HaltedBy,
		sheet.CompletedAt,
		sheet.UpdatedAt,
		sheet.GarageID,
		sheet.ID,
	).Error
}

func (r *repo) InsertTimeLog(ctx context.Context, db *gorm.DB, entry *domain.TimeLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) InsertChecklistItems(ctx context.Context, db *gorm.DB, items []domain.ChecklistItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) UpdateChecklistItem(ctx context.Context, db *gorm.DB, item *domain.ChecklistItem) error {
	return db.WithContext(ctx).Exec(
		`UPDATE job_sheet_checklist_items SET done = ?, done_at = ?, done_by = ? WHERE job_sheet_id = ? AND id = ?`,
		item.Done,
		item.DoneAt,
		item.DoneBy,
		item.JobSheetID,
		item.ID,
	).Error
}

// ReplaceDiagnosedServices swaps the proposal wholesale; a resubmitted
// diagnosis supersedes the rejected one.
func (r *repo) ReplaceDiagnosedServices(ctx context.Context, db *gorm.DB, jobSheetID snowflake.ID, services []domain.DiagnosedService) error {
	stmt := db.WithContext(ctx)
	if err := stmt.Exec(`DELETE FROM job_sheet_diagnosed_services WHERE job_sheet_id = ?`, jobSheetID).Error; err != nil {
		return err
	}
	if len(services) == 0 {
		return nil
	}
	return stmt.Create(&services).Error
}
