package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Garage is the tenant every workshop record belongs to.
type Garage struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Bays      int          `gorm:"not null;default:1" json:"bays"`
	CreatedAt time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"not null" json:"updatedAt"`
}

func (Garage) TableName() string { return "garages" }
