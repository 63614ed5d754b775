package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateItemRequest struct {
	Name            string
	SKU             string
	Category        string
	InitialQuantity int64
	ReorderLevel    *int64
	Unit            string
	Cost            decimal.Decimal
	Price           decimal.Decimal
	Supplier        string
	Location        string
}

type ListItemRequest struct {
	pagination.Page
	Search    string
	Category  string
	Status    string
	SortBy    string
	SortOrder string
	// Deactivated items are hidden unless requested.
	IncludeInactive bool
}

type ListItemResponse struct {
	pagination.PageInfo
	Items []Item `json:"items"`
}

type AdjustStockRequest struct {
	ItemID      string
	Mode        MovementType
	Quantity    int64
	Reason      string
	Notes       string
	PerformedBy string
	JobSheetID  *snowflake.ID
	BookingID   *snowflake.ID
	ServiceID   string
	// System marks automated adjustments that were not asked for by a person.
	System bool
}

type AdjustStockResult struct {
	Item      Item     `json:"item"`
	Movement  Movement `json:"movement"`
	Shortfall int64    `json:"shortfall"`
}

type ListMovementRequest struct {
	pagination.Page
	ItemID        string
	JobSheetID    string
	BookingID     string
	ReferenceType string
	Type          string
}

type ListMovementResponse struct {
	pagination.PageInfo
	Movements []Movement `json:"movements"`
}

// ServiceConsumption is one service on a job whose stock should be taken.
type ServiceConsumption struct {
	ServiceID string
}

type DeductionRequest struct {
	GarageID    snowflake.ID
	JobSheetID  snowflake.ID
	BookingID   snowflake.ID
	Services    []ServiceConsumption
	PerformedBy string
}

type DeductionResult struct {
	Adjustments []AdjustStockResult `json:"adjustments"`
	Shortages   []Shortage          `json:"shortages"`
}

type Service interface {
	CreateItem(ctx context.Context, req CreateItemRequest) (Item, error)
	GetItem(ctx context.Context, id string) (Item, error)
	ListItems(ctx context.Context, req ListItemRequest) (ListItemResponse, error)
	DeactivateItem(ctx context.Context, id string) (Item, error)

	AdjustStock(ctx context.Context, req AdjustStockRequest) (AdjustStockResult, error)
	AdjustStockTx(ctx context.Context, tx *gorm.DB, garageID snowflake.ID, req AdjustStockRequest) (AdjustStockResult, error)
	DeductForServicesTx(ctx context.Context, tx *gorm.DB, req DeductionRequest) (DeductionResult, error)
	RecordAdjustments(ctx context.Context, results []AdjustStockResult)
	ListMovements(ctx context.Context, req ListMovementRequest) (ListMovementResponse, error)

	RequirementsForServices(ctx context.Context, serviceIDs []string) ([]Requirement, error)
	CheckAvailability(ctx context.Context, serviceIDs []string) ([]Shortage, error)

	VerifyLedger(ctx context.Context, itemID string) (LedgerReport, error)
	VerifyLedgers(ctx context.Context, afterID snowflake.ID, limit int) ([]LedgerReport, error)
	ListLowStock(ctx context.Context, limit int) ([]Item, error)
}

var (
	ErrInvalidGarage   = errors.New("invalid_garage")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidSKU      = errors.New("invalid_sku")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidReorder  = errors.New("invalid_reorder_level")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidMode     = errors.New("invalid_mode")
	ErrInvalidReason   = errors.New("invalid_reason")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidSortBy   = errors.New("invalid_sort_by")
	ErrInvalidRefType  = errors.New("invalid_reference_type")
	ErrDuplicateSKU    = errors.New("duplicate_sku")
	ErrItemInactive    = errors.New("item_inactive")
	ErrNotFound        = errors.New("not_found")
)
