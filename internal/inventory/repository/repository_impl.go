package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/internal/inventory/domain"
	"github.com/smallbiznis/garageflow/pkg/db"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var itemSortColumns = map[string]string{
	"name":         "name",
	"sku":          "sku",
	"category":     "category",
	"quantity":     "quantity",
	"reorderLevel": "reorder_level",
	"price":        "price",
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// ItemSortColumn maps an API sort key to its column.
func ItemSortColumn(key string) (string, bool) {
	if strings.TrimSpace(key) == "" {
		return "name", true
	}
	col, ok := itemSortColumns[strings.TrimSpace(key)]
	return col, ok
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.Item) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) FindItem(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*domain.Item, error) {
	return r.findItem(db.WithContext(ctx), garageID, id)
}

func (r *repo) FindItemForUpdate(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID) (*domain.Item, error) {
	stmt := tx.WithContext(ctx)
	if db.SupportsRowLocking(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findItem(stmt, garageID, id)
}

func (r *repo) findItem(stmt *gorm.DB, garageID, id snowflake.ID) (*domain.Item, error) {
	var item domain.Item
	err := stmt.Where("garage_id = ? AND id = ?", garageID, id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) FindItemsBySKU(ctx context.Context, db *gorm.DB, garageID snowflake.ID, skus []string) ([]*domain.Item, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	var items []*domain.Item
	err := db.WithContext(ctx).
		Where("garage_id = ? AND sku IN ?", garageID, skus).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, garageID snowflake.ID, filter domain.ListItemFilter, page pagination.Page) ([]*domain.Item, int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("garage_id = ?", garageID)

	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		stmt = stmt.Where("(LOWER(name) LIKE ? OR LOWER(sku) LIKE ? OR LOWER(supplier) LIKE ?)", like, like, like)
	}
	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}

	stmt = stmt.Session(&gorm.Session{})
	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := ItemSortColumn(filter.SortBy)
	if !ok {
		return nil, 0, domain.ErrInvalidSortBy
	}
	page = page.Normalize()

	var items []*domain.Item
	err := stmt.
		Order(fmt.Sprintf("%s %s, id asc", column, pagination.SortOrder(filter.SortOrder))).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) ListItemsAfter(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*domain.Item, error) {
	var items []*domain.Item
	err := db.WithContext(ctx).
		Where("active = ? AND id > ?", true, afterID).
		Order("id asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListLowStock(ctx context.Context, db *gorm.DB, limit int) ([]*domain.Item, error) {
	var items []*domain.Item
	err := db.WithContext(ctx).
		Where("active = ? AND quantity <= reorder_level", true).
		Order("quantity asc, id asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateQuantity(ctx context.Context, db *gorm.DB, item *domain.Item, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE inventory_items SET quantity = ?, status = ?, updated_at = ? WHERE id = ?`,
		item.Quantity,
		item.Status,
		now,
		item.ID,
	).Error
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID, active bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE inventory_items SET active = ?, updated_at = ? WHERE garage_id = ? AND id = ?`,
		active,
		now,
		garageID,
		id,
	).Error
}

func (r *repo) InsertMovement(ctx context.Context, db *gorm.DB, m *domain.Movement) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO stock_movements (
			id, garage_id, item_id, type, quantity, resulting_quantity, reference_type,
			job_sheet_id, booking_id, service_id, reason, notes, performed_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.GarageID,
		m.ItemID,
		m.Type,
		m.Quantity,
		m.ResultingQuantity,
		m.ReferenceType,
		m.JobSheetID,
		m.BookingID,
		m.ServiceID,
		m.Reason,
		m.Notes,
		m.PerformedBy,
		m.CreatedAt,
	).Error
}

func (r *repo) ListMovements(ctx context.Context, db *gorm.DB, garageID snowflake.ID, filter domain.ListMovementFilter, page pagination.Page) ([]*domain.Movement, int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Movement{}).
		Where("garage_id = ?", garageID)
	if filter.ItemID != nil {
		stmt = stmt.Where("item_id = ?", *filter.ItemID)
	}
	if filter.JobSheetID != nil {
		stmt = stmt.Where("job_sheet_id = ?", *filter.JobSheetID)
	}
	if filter.BookingID != nil {
		stmt = stmt.Where("booking_id = ?", *filter.BookingID)
	}
	if filter.ReferenceType != "" {
		stmt = stmt.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}

	stmt = stmt.Session(&gorm.Session{})
	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	var movements []*domain.Movement
	err := stmt.
		Order("created_at desc, id desc").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&movements).Error
	if err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

func (r *repo) ListItemMovements(ctx context.Context, db *gorm.DB, itemID snowflake.ID) ([]domain.Movement, error) {
	var movements []domain.Movement
	err := db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at asc, id asc").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}
