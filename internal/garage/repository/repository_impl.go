package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/internal/garage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, garage *domain.Garage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO garages (id, name, slug, bays, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		garage.ID,
		garage.Name,
		garage.Slug,
		garage.Bays,
		garage.CreatedAt,
		garage.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Garage, error) {
	var garage domain.Garage
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, bays, created_at, updated_at FROM garages WHERE id = ?`,
		id,
	).Scan(&garage).Error
	if err != nil {
		return nil, err
	}
	if garage.ID == 0 {
		return nil, nil
	}
	return &garage, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Garage, error) {
	var garage domain.Garage
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, bays, created_at, updated_at FROM garages WHERE slug = ?`,
		slug,
	).Scan(&garage).Error
	if err != nil {
		return nil, err
	}
	if garage.ID == 0 {
		return nil, nil
	}
	return &garage, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.Garage, error) {
	var garages []*domain.Garage
	if err := db.WithContext(ctx).Model(&domain.Garage{}).Order("name asc").Find(&garages).Error; err != nil {
		return nil, err
	}
	return garages, nil
}
