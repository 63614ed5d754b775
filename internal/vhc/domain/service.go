package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/garageflow/pkg/db/pagination"
)

type CreateResponseRequest struct {
	VehicleID  string
	BookingID  string
	Powertrain string
	Status     string
	AssignedTo string
	Notes      string
	Answers    Answers
}

type ListResponseRequest struct {
	pagination.Page
	Status     string
	AssignedTo string
	VehicleID  string
	Powertrain string
	CreatedBy  string
	StartDate  string
	EndDate    string
	SortBy     string
	SortOrder  string
}

type ListResponseResponse struct {
	pagination.PageInfo
	Responses []Response `json:"responses"`
}

type Service interface {
	Create(ctx context.Context, req CreateResponseRequest) (Response, error)
	GetByID(ctx context.Context, id string) (Response, error)
	List(ctx context.Context, req ListResponseRequest) (ListResponseResponse, error)
}

var (
	ErrInvalidGarage     = errors.New("invalid_garage")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidVehicle    = errors.New("invalid_vehicleId")
	ErrInvalidBooking    = errors.New("invalid_bookingId")
	ErrInvalidPowertrain = errors.New("invalid_powertrain")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidAnswers    = errors.New("invalid_answers")
	ErrInvalidDateRange  = errors.New("invalid_date_range")
	ErrInvalidSortBy     = errors.New("invalid_sortBy")
	ErrNotFound          = errors.New("vhc_response_not_found")
)
