package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/internal/vhc/domain"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"gorm.io/gorm"
)

var sortColumns = map[string]string{
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"score":      "score",
	"status":     "status",
	"vehicleId":  "vehicle_id",
	"assignedTo": "assigned_to",
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, response *domain.Response) error {
	return db.WithContext(ctx).Create(response).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*domain.Response, error) {
	var response domain.Response
	err := db.WithContext(ctx).
		Where("garage_id = ? AND id = ?", garageID, id).
		First(&response).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &response, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Page) ([]*domain.Response, int64, error) {
	column := "created_at"
	if key := strings.TrimSpace(filter.SortBy); key != "" {
		col, ok := sortColumns[key]
		if !ok {
			return nil, 0, domain.ErrInvalidSortBy
		}
		column = col
	}

	stmt := db.WithContext(ctx).
		Model(&domain.Response{}).
		Where("garage_id = ?", filter.GarageID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.AssignedTo != "" {
		stmt = stmt.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.VehicleID != "" {
		stmt = stmt.Where("vehicle_id = ?", filter.VehicleID)
	}
	if filter.Powertrain != "" {
		stmt = stmt.Where("powertrain = ?", filter.Powertrain)
	}
	if filter.CreatedBy != "" {
		stmt = stmt.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", *filter.StartAt)
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at < ?", *filter.EndAt)
	}

	stmt = stmt.Session(&gorm.Session{})
	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	var responses []*domain.Response
	err := stmt.
		Order(fmt.Sprintf("%s %s, id desc", column, pagination.SortOrder(filter.SortOrder))).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&responses).Error
	if err != nil {
		return nil, 0, err
	}
	return responses, total, nil
}
