package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/internal/invoice/domain"
	"github.com/smallbiznis/garageflow/pkg/db"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.Order("position asc, id asc")
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*domain.Invoice, error) {
	return r.first(db.WithContext(ctx).Where("garage_id = ? AND id = ?", garageID, id))
}

func (r *repo) FindForUpdate(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID) (*domain.Invoice, error) {
	stmt := tx.WithContext(ctx)
	if db.SupportsRowLocking(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.first(stmt.Where("garage_id = ? AND id = ?", garageID, id))
}

func (r *repo) FindByJobSheet(ctx context.Context, db *gorm.DB, jobSheetID snowflake.ID) (*domain.Invoice, error) {
	return r.first(db.WithContext(ctx).Where("job_sheet_id = ?", jobSheetID))
}

func (r *repo) first(stmt *gorm.DB) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := stmt.Preload("Lines", preloadLines).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Page) ([]*domain.Invoice, int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("garage_id = ?", filter.GarageID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.BookingID != nil {
		stmt = stmt.Where("booking_id = ?", *filter.BookingID)
	}
	if filter.OverdueBefore != nil {
		stmt = stmt.Where("status NOT IN ? AND due_date < ?",
			[]domain.InvoiceStatus{domain.InvoiceStatusPaid, domain.InvoiceStatusCancelled},
			*filter.OverdueBefore,
		)
	}

	stmt = stmt.Session(&gorm.Session{})
	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	var invoices []*domain.Invoice
	err := stmt.
		Preload("Lines", preloadLines).
		Order("created_at desc, id desc").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *repo) ListSentDueBefore(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).
		Where("status = ? AND due_date < ?", domain.InvoiceStatusSent, before).
		Order("due_date asc, id asc").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, sent_at = ?, paid_at = ?, cancelled_at = ?, updated_at = ? WHERE id = ?`,
		invoice.Status,
		invoice.SentAt,
		invoice.PaidAt,
		invoice.CancelledAt,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}
