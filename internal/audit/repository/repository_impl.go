package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/garageflow/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.AuditLog{}).
		Where("garage_id = ?", filter.GarageID).
		Scopes(
			equals("action", filter.Action),
			equals("target_type", filter.TargetType),
			equals("target_id", filter.TargetID),
			equals("actor_type", filter.ActorType),
			createdBetween(filter.StartAt, filter.EndAt),
			olderThan(filter.Cursor),
		).
		Order("created_at desc").
		Order("id desc")
	if filter.Limit > 0 {
		// one extra row tells the caller whether another page exists
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var logs []*domain.AuditLog
	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func equals(column, value string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if value == "" {
			return tx
		}
		return tx.Where(column+" = ?", value)
	}
}

func createdBetween(start, end *time.Time) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if start != nil {
			tx = tx.Where("created_at >= ?", start.UTC())
		}
		if end != nil {
			tx = tx.Where("created_at <= ?", end.UTC())
		}
		return tx
	}
}

func olderThan(cursor *domain.AuditCursor) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if cursor == nil {
			return tx
		}
		return tx.Where("created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
}
