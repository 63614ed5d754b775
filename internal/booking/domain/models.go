// Package domain contains booking models and lifecycle rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ServiceSource tells a requested service apart from one added after diagnosis.
type ServiceSource string

const (
	SourceBooked    ServiceSource = "booked"
	SourceDiagnosis ServiceSource = "diagnosis"
)

type Customer struct {
	Name  string `gorm:"type:text;not null" json:"name"`
	Phone string `gorm:"type:text" json:"phone"`
	Email string `gorm:"type:text" json:"email"`
}

type Vehicle struct {
	Make    string `gorm:"type:text" json:"make"`
	Model   string `gorm:"type:text" json:"model"`
	Year    int    `json:"year"`
	License string `gorm:"type:text;not null" json:"license"`
}

// Booking is a scheduled service visit. Bookings are never deleted.
type Booking struct {
	ID                snowflake.ID     `gorm:"primaryKey" json:"id"`
	GarageID          snowflake.ID     `gorm:"not null;index" json:"garageId"`
	Customer          Customer         `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	Vehicle           Vehicle          `gorm:"embedded;embeddedPrefix:vehicle_" json:"car"`
	Services          []BookingService `gorm:"foreignKey:BookingID" json:"services"`
	Status            Status           `gorm:"type:text;not null;index" json:"status"`
	RequiresDiagnosis bool             `gorm:"not null;default:false" json:"requiresDiagnosis"`
	DiagnosisNotes    string           `gorm:"type:text" json:"diagnosisNotes,omitempty"`
	Date              string           `gorm:"type:text;not null;index" json:"date"`
	StartTime         string           `gorm:"type:text;not null" json:"startTime"`
	EndTime           string           `gorm:"type:text;not null" json:"endTime"`
	Bay               string           `gorm:"type:text;not null" json:"bay"`
	CreatedAt         time.Time        `gorm:"not null;index" json:"createdAt"`
	UpdatedAt         time.Time        `gorm:"not null" json:"updatedAt"`
}

func (Booking) TableName() string { return "bookings" }

// BookingService is one line of work on a booking, ordered by Position.
type BookingService struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	BookingID   snowflake.ID    `gorm:"not null;index" json:"bookingId"`
	ServiceID   string          `gorm:"type:text" json:"serviceId,omitempty"`
	Name        string          `gorm:"type:text;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	Duration    int             `gorm:"not null;default:0" json:"duration"`
	Source      ServiceSource   `gorm:"type:text;not null" json:"source"`
	Position    int             `gorm:"not null" json:"position"`
	CreatedAt   time.Time       `gorm:"not null" json:"createdAt"`
}

func (BookingService) TableName() string { return "booking_services" }

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	GarageID snowflake.ID
	Status   Status
	Date     string
	Cursor   *Cursor
	Limit    int
}
