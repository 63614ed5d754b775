package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/garageflow/internal/invoice/domain"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	"github.com/smallbiznis/garageflow/internal/pricing"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
)

type CreateJobSheetRequest struct {
	BookingID    string
	TechnicianID string
}

type ListJobSheetRequest struct {
	pagination.Page
	Status       string
	BookingID    string
	TechnicianID string
}

type ListJobSheetResponse struct {
	pagination.PageInfo
	JobSheets []JobSheet `json:"jobSheets"`
}

// StartResult carries stock warnings raised while deducting inventory. A
// shortage never blocks the start.
type StartResult struct {
	JobSheet  JobSheet                   `json:"jobSheet"`
	Shortages []inventorydomain.Shortage `json:"shortages"`
}

// ApprovalResult carries stock warnings raised when an approved diagnosis
// adds services to a job that has already taken its stock.
type ApprovalResult struct {
	JobSheet  JobSheet                   `json:"jobSheet"`
	Shortages []inventorydomain.Shortage `json:"shortages"`
}

type CompleteResult struct {
	JobSheet JobSheet              `json:"jobSheet"`
	Invoice  invoicedomain.Invoice `json:"invoice"`
}

type WorkDuration struct {
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
	Live    bool  `json:"live"`
}

type DiagnosedServiceInput struct {
	ServiceID   string          `json:"serviceId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Duration    int             `json:"duration"`
	Price       decimal.Decimal `json:"price"`
}

type SubmitDiagnosisRequest struct {
	Services     []DiagnosedServiceInput
	Notes        string
	TechnicianID string
}

type DiagnosisResult struct {
	JobSheet JobSheet          `json:"jobSheet"`
	Quote    pricing.Breakdown `json:"quote"`
}

type Service interface {
	Create(ctx context.Context, req CreateJobSheetRequest) (JobSheet, error)
	GetByID(ctx context.Context, id string) (JobSheet, error)
	List(ctx context.Context, req ListJobSheetRequest) (ListJobSheetResponse, error)

	Start(ctx context.Context, id, note string) (StartResult, error)
	Pause(ctx context.Context, id, reason string) (JobSheet, error)
	Resume(ctx context.Context, id, note string) (JobSheet, error)
	Halt(ctx context.Context, id, reason, haltedBy string) (JobSheet, error)
	Complete(ctx context.Context, id, note string) (CompleteResult, error)
	Cancel(ctx context.Context, id, reason string) (JobSheet, error)

	SetChecklistItem(ctx context.Context, id, itemID string, done bool) (JobSheet, error)
	WorkDuration(ctx context.Context, id string, live bool) (WorkDuration, error)

	SubmitDiagnosis(ctx context.Context, id string, req SubmitDiagnosisRequest) (DiagnosisResult, error)
	Approve(ctx context.Context, id, reviewerID string) (ApprovalResult, error)
	Reject(ctx context.Context, id, reviewerID, reason string) (JobSheet, error)
}

var (
	ErrInvalidGarage       = errors.New("invalid_garage")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidBooking      = errors.New("invalid_bookingId")
	ErrInvalidTechnician   = errors.New("invalid_technicianId")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidReason       = errors.New("invalid_reason")
	ErrInvalidServices     = errors.New("invalid_services")
	ErrInvalidNotes        = errors.New("invalid_notes")
	ErrInvalidReviewer     = errors.New("invalid_reviewerId")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrChecklistIncomplete = errors.New("checklist_incomplete")
	ErrAlreadyExists       = errors.New("job_sheet_exists")
	ErrNotFound            = errors.New("not_found")
)
