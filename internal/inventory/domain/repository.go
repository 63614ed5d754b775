package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListItemFilter struct {
	Search    string
	Category  string
	Status    Status
	Active    *bool
	SortBy    string
	SortOrder string
}

type ListMovementFilter struct {
	ItemID        *snowflake.ID
	JobSheetID    *snowflake.ID
	BookingID     *snowflake.ID
	ReferenceType ReferenceType
	Type          MovementType
}

type Repository interface {
	InsertItem(ctx context.Context, db *gorm.DB, item *Item) error
	FindItem(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*Item, error)
	FindItemForUpdate(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*Item, error)
	FindItemsBySKU(ctx context.Context, db *gorm.DB, garageID snowflake.ID, skus []string) ([]*Item, error)
	ListItems(ctx context.Context, db *gorm.DB, garageID snowflake.ID, filter ListItemFilter, page pagination.Page) ([]*Item, int64, error)
	ListItemsAfter(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*Item, error)
	ListLowStock(ctx context.Context, db *gorm.DB, limit int) ([]*Item, error)
	UpdateQuantity(ctx context.Context, db *gorm.DB, item *Item, now time.Time) error
	SetActive(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID, active bool, now time.Time) error

	InsertMovement(ctx context.Context, db *gorm.DB, movement *Movement) error
	ListMovements(ctx context.Context, db *gorm.DB, garageID snowflake.ID, filter ListMovementFilter, page pagination.Page) ([]*Movement, int64, error)
	ListItemMovements(ctx context.Context, db *gorm.DB, itemID snowflake.ID) ([]Movement, error)
}
