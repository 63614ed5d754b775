package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sheet *JobSheet) error
	FindByID(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*JobSheet, error)
	FindForUpdate(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*JobSheet, error)
	FindByBooking(ctx context.Context, db *gorm.DB, garageID, bookingID snowflake.ID) (*JobSheet, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Page) ([]*JobSheet, int64, error)
	Update(ctx context.Context, db *gorm.DB, sheet *JobSheet) error

	InsertTimeLog(ctx context.Context, db *gorm.DB, entry *TimeLog) error
	InsertChecklistItems(ctx context.Context, db *gorm.DB, items []ChecklistItem) error
	UpdateChecklistItem(ctx context.Context, db *gorm.DB, item *ChecklistItem) error
	ReplaceDiagnosedServices(ctx context.Context, db *gorm.DB, jobSheetID snowflake.ID, services []DiagnosedService) error
}
