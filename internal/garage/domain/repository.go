package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, garage *Garage) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Garage, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Garage, error)
	List(ctx context.Context, db *gorm.DB) ([]*Garage, error)
}
