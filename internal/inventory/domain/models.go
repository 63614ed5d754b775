package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Status string

const (
	StatusInStock Status = "IN_STOCK"
	StatusLow     Status = "LOW"
	StatusOut     Status = "OUT"
)

type MovementType string

const (
	MovementIncrease MovementType = "INCREASE"
	MovementDecrease MovementType = "DECREASE"
	MovementSet      MovementType = "SET"
)

type ReferenceType string

const (
	ReferenceJobSheet ReferenceType = "JOB_SHEET"
	ReferenceBooking  ReferenceType = "BOOKING"
	ReferenceManual   ReferenceType = "MANUAL"
	ReferenceSystem   ReferenceType = "SYSTEM"
)

// Item is a stock-keeping unit. Quantity and Status change only through Apply.
type Item struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	GarageID     snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_inventory_items_garage_sku,priority:1" json:"garageId"`
	Name         string          `gorm:"type:text;not null" json:"name"`
	SKU          string          `gorm:"column:sku;type:text;not null;uniqueIndex:ux_inventory_items_garage_sku,priority:2" json:"sku"`
	Category     string          `gorm:"type:text;index" json:"category"`
	Quantity     int64           `gorm:"not null;default:0" json:"quantity"`
	ReorderLevel int64           `gorm:"not null;default:0" json:"reorderLevel"`
	Unit         string          `gorm:"type:text" json:"unit"`
	Cost         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"cost"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	Supplier     string          `gorm:"type:text" json:"supplier"`
	Location     string          `gorm:"type:text" json:"location"`
	Status       Status          `gorm:"type:text;not null;index" json:"status"`
	Active       bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updatedAt"`
}

func (Item) TableName() string { return "inventory_items" }

// AfterFind keeps the status projection in step with the loaded quantity.
func (i *Item) AfterFind(*gorm.DB) error {
	i.Status = DeriveStatus(i.Quantity, i.ReorderLevel)
	return nil
}

// Movement is an append-only stock ledger entry.
type Movement struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	GarageID          snowflake.ID  `gorm:"not null;index" json:"garageId"`
	ItemID            snowflake.ID  `gorm:"not null;index" json:"itemId"`
	Type              MovementType  `gorm:"type:text;not null" json:"type"`
	Quantity          int64         `gorm:"not null" json:"quantity"`
	ResultingQuantity int64         `gorm:"not null" json:"resultingQuantity"`
	ReferenceType     ReferenceType `gorm:"type:text;not null;index" json:"referenceType"`
	JobSheetID        *snowflake.ID `gorm:"index" json:"jobSheetId,omitempty"`
	BookingID         *snowflake.ID `gorm:"index" json:"bookingId,omitempty"`
	ServiceID         *string       `gorm:"type:text" json:"serviceId,omitempty"`
	Reason            string        `gorm:"type:text;not null" json:"reason"`
	Notes             string        `gorm:"type:text" json:"notes,omitempty"`
	PerformedBy       string        `gorm:"type:text;not null" json:"performedBy"`
	CreatedAt         time.Time     `gorm:"not null;index" json:"createdAt"`
}

func (Movement) TableName() string { return "stock_movements" }

// Requirement is the consolidated stock needed for a set of services.
type Requirement struct {
	SKU      string        `json:"sku"`
	ItemID   *snowflake.ID `json:"itemId,omitempty"`
	Name     string        `json:"name,omitempty"`
	Quantity int64         `json:"quantity"`
	Unit     string        `json:"unit"`
}

// Shortage reports an item that cannot cover its requirement.
type Shortage struct {
	SKU       string        `json:"sku"`
	ItemID    *snowflake.ID `json:"itemId,omitempty"`
	Name      string        `json:"name,omitempty"`
	Required  int64         `json:"required"`
	Available int64         `json:"available"`
}

// LedgerReport is the outcome of replaying an item's movements.
type LedgerReport struct {
	ItemID          snowflake.ID  `json:"itemId"`
	SKU             string        `json:"sku"`
	Quantity        int64         `json:"quantity"`
	Replayed        int64         `json:"replayed"`
	Movements       int           `json:"movements"`
	Consistent      bool          `json:"consistent"`
	FirstDivergence *snowflake.ID `json:"firstDivergence,omitempty"`
}
