package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/internal/booking/domain"
	"github.com/smallbiznis/garageflow/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, booking *domain.Booking) error {
	return db.WithContext(ctx).Create(booking).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*domain.Booking, error) {
	return r.find(db.WithContext(ctx), garageID, id)
}

func (r *repo) FindForUpdate(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID) (*domain.Booking, error) {
	stmt := tx.WithContext(ctx)
	if db.SupportsRowLocking(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: clause.CurrentTable}})
	}
	return r.find(stmt, garageID, id)
}

func (r *repo) find(stmt *gorm.DB, garageID, id snowflake.ID) (*domain.Booking, error) {
	var booking domain.Booking
	err := stmt.
		Preload("Services", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, id asc")
		}).
		Where("garage_id = ? AND id = ?", garageID, id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Booking, error) {
	var bookings []*domain.Booking
	stmt := db.WithContext(ctx).
		Preload("Services", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, id asc")
		}).
		Where("garage_id = ?", filter.GarageID)

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Date != "" {
		stmt = stmt.Where("date = ?", filter.Date)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID, status domain.Status, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE bookings SET status = ?, updated_at = ? WHERE garage_id = ? AND id = ?`,
		status,
		now,
		garageID,
		id,
	).Error
}

func (r *repo) InsertServices(ctx context.Context, db *gorm.DB, services []domain.BookingService) error {
	if len(services) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&services).Error
}
