package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type ServiceInput struct {
	ServiceID   string          `json:"serviceId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Duration    int             `json:"duration"`
}

type CreateBookingRequest struct {
	ServiceID         string
	ServiceName       string
	ServicePrice      decimal.Decimal
	ServiceDuration   int
	ExtraServices     []ServiceInput
	Customer          Customer
	Car               Vehicle
	Date              string
	StartTime         string
	EndTime           string
	Bay               string
	RequiresDiagnosis bool
	DiagnosisNotes    string
}

type ListBookingRequest struct {
	PageToken string
	PageSize  int
	Status    string
	Date      string
}

type ListBookingResponse struct {
	pagination.CursorInfo
	Bookings []Booking `json:"bookings"`
}

type Service interface {
	Create(ctx context.Context, req CreateBookingRequest) (Booking, error)
	GetByID(ctx context.Context, id string) (Booking, error)
	List(ctx context.Context, req ListBookingRequest) (ListBookingResponse, error)
	UpdateStatus(ctx context.Context, id string, status Status) (Booking, error)

	FindTx(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID) (*Booking, error)
	AppendServicesTx(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID, services []ServiceInput) ([]BookingService, error)
	MarkInProgressTx(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID) error
	MarkCompletedTx(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID) error
}

var (
	ErrInvalidGarage      = errors.New("invalid_garage")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidServiceID   = errors.New("invalid_serviceId")
	ErrInvalidServiceName = errors.New("invalid_serviceName")
	ErrInvalidCustomer    = errors.New("invalid_customer")
	ErrInvalidCar         = errors.New("invalid_car")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidStartTime   = errors.New("invalid_startTime")
	ErrInvalidEndTime     = errors.New("invalid_endTime")
	ErrInvalidBay         = errors.New("invalid_bay")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
	ErrInvalidTransition  = errors.New("invalid_transition")
	ErrNotFound           = errors.New("not_found")
)
