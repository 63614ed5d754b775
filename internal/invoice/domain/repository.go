package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	GarageID  snowflake.ID
	Status    InvoiceStatus
	BookingID *snowflake.ID
	// OverdueBefore selects unsettled invoices due before the given day.
	OverdueBefore *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*Invoice, error)
	FindForUpdate(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*Invoice, error)
	FindByJobSheet(ctx context.Context, db *gorm.DB, jobSheetID snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Page) ([]*Invoice, int64, error)
	ListSentDueBefore(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]*Invoice, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, invoice *Invoice) error
}
