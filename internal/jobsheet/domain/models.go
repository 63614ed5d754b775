// Package domain holds the job sheet model and its lifecycle rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPaused     Status = "PAUSED"
	StatusHalted     Status = "HALTED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPaused, StatusHalted, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ApprovalStatus is unset until a diagnosis is submitted.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// JobSheet is the unit of technician work for one booking.
type JobSheet struct {
	ID                snowflake.ID           `gorm:"primaryKey" json:"id"`
	GarageID          snowflake.ID           `gorm:"not null;index" json:"garageId"`
	BookingID         snowflake.ID           `gorm:"not null;uniqueIndex:ux_job_sheets_booking" json:"bookingId"`
	Booking           *bookingdomain.Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
	TechnicianID      string                 `gorm:"type:text;not null;index" json:"technicianId"`
	Status            Status                 `gorm:"type:text;not null;index" json:"status"`
	ApprovalStatus    *ApprovalStatus        `gorm:"type:text" json:"approvalStatus"`
	DiagnosisNotes    string                 `gorm:"type:text" json:"diagnosisNotes,omitempty"`
	InventoryDeducted bool                   `gorm:"not null;default:false" json:"inventoryDeducted"`
	DiagnosedServices []DiagnosedService     `gorm:"foreignKey:JobSheetID" json:"diagnosedServices"`
	TimeLogs          []TimeLog              `gorm:"foreignKey:JobSheetID" json:"timeLogs"`
	Checklist         []ChecklistItem        `gorm:"foreignKey:JobSheetID" json:"checklist"`
	ReviewedBy        *string                `gorm:"type:text" json:"reviewedBy,omitempty"`
	ReviewedAt        *time.Time             `json:"reviewedAt,omitempty"`
	RejectionReason   string                 `gorm:"type:text" json:"rejectionReason,omitempty"`
	HaltedBy          string                 `gorm:"type:text" json:"haltedBy,omitempty"`
	CompletedAt       *time.Time             `json:"completedAt,omitempty"`
	CreatedAt         time.Time              `gorm:"not null;index" json:"createdAt"`
	UpdatedAt         time.Time              `gorm:"not null" json:"updatedAt"`
}

func (JobSheet) TableName() string { return "job_sheets" }

// DiagnosedService is a manually priced snapshot proposed by the technician.
type DiagnosedService struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	JobSheetID  snowflake.ID    `gorm:"not null;index" json:"jobSheetId"`
	ServiceID   string          `gorm:"type:text" json:"serviceId,omitempty"`
	Name        string          `gorm:"type:text;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Duration    int             `gorm:"not null;default:0" json:"duration"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	AddedBy     string          `gorm:"type:text;not null" json:"addedBy"`
	AddedAt     time.Time       `gorm:"not null" json:"addedAt"`
}

func (DiagnosedService) TableName() string { return "job_sheet_diagnosed_services" }

type TimeLogType string

const (
	LogStart    TimeLogType = "start"
	LogPause    TimeLogType = "pause"
	LogResume   TimeLogType = "resume"
	LogHalt     TimeLogType = "halt"
	LogComplete TimeLogType = "complete"
	LogCancel   TimeLogType = "cancel"
)

type TimeLog struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	JobSheetID snowflake.ID `gorm:"not null;index" json:"jobSheetId"`
	Type       TimeLogType  `gorm:"type:text;not null" json:"type"`
	Timestamp  time.Time    `gorm:"column:logged_at;not null" json:"timestamp"`
	Reason     string       `gorm:"type:text" json:"reason,omitempty"`
	Actor      string       `gorm:"type:text;not null" json:"actor"`
}

func (TimeLog) TableName() string { return "job_sheet_time_logs" }

// ChecklistItem tracks one service that must be done before completion.
type ChecklistItem struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	JobSheetID       snowflake.ID  `gorm:"not null;index" json:"jobSheetId"`
	BookingServiceID *snowflake.ID `json:"bookingServiceId,omitempty"`
	Name             string        `gorm:"type:text;not null" json:"name"`
	Done             bool          `gorm:"not null;default:false" json:"done"`
	DoneAt           *time.Time    `json:"doneAt,omitempty"`
	DoneBy           string        `gorm:"type:text" json:"doneBy,omitempty"`
	Position         int           `gorm:"not null" json:"position"`
}

func (ChecklistItem) TableName() string { return "job_sheet_checklist_items" }

// ChecklistComplete reports whether every checklist item is done.
func (j JobSheet) ChecklistComplete() bool {
	for _, item := range j.Checklist {
		if !item.Done {
			return false
		}
	}
	return true
}

type ListFilter struct {
	GarageID     snowflake.ID
	Status       Status
	BookingID    *snowflake.ID
	TechnicianID string
}
