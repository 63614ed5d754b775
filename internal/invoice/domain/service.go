package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type LineInput struct {
	ServiceID   string
	Name        string
	Description string
	Price       decimal.Decimal
	Duration    int
}

// GenerateInput carries everything needed to invoice a completed job.
type GenerateInput struct {
	GarageID   snowflake.ID
	JobSheetID snowflake.ID
	BookingID  snowflake.ID
	Customer   bookingdomain.Customer
	Vehicle    bookingdomain.Vehicle
	Lines      []LineInput
}

type ListInvoiceRequest struct {
	pagination.Page
	Status    string
	BookingID string
	Overdue   bool
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	// GenerateForJobSheetTx returns the existing invoice when the job sheet
	// was already invoiced; created reports whether a new one was written.
	GenerateForJobSheetTx(ctx context.Context, tx *gorm.DB, in GenerateInput) (inv Invoice, created bool, err error)
	// RecordGenerated audits and counts a new invoice once its transaction commits.
	RecordGenerated(ctx context.Context, inv Invoice)

	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	Send(ctx context.Context, id string) (Invoice, error)
	MarkPaid(ctx context.Context, id string) (Invoice, error)
	Cancel(ctx context.Context, id string) (Invoice, error)
	MarkOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

var (
	ErrInvalidGarage     = errors.New("invalid_garage")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidLines      = errors.New("invalid_services")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNumberExhausted   = errors.New("invoice_number_exhausted")
	ErrNotFound          = errors.New("not_found")
)
