package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, booking *Booking) error
	FindByID(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*Booking, error)
	FindForUpdate(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*Booking, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Booking, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID, status Status, now time.Time) error
	InsertServices(ctx context.Context, db *gorm.DB, services []BookingService) error
}
