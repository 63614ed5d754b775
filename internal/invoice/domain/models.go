// Package domain contains persistence models for invoicing.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// PaymentTermDays is the gap between issue and due date.
const PaymentTermDays = 30

// Invoice is issued once per completed job sheet. Customer and vehicle are
// copied so the invoice survives later booking edits.
type Invoice struct {
	ID            snowflake.ID           `gorm:"primaryKey" json:"id"`
	GarageID      snowflake.ID           `gorm:"not null;index" json:"garageId"`
	InvoiceNumber string                 `gorm:"type:text;not null;uniqueIndex:ux_invoices_number" json:"invoiceNumber"`
	JobSheetID    snowflake.ID           `gorm:"not null;uniqueIndex:ux_invoices_job_sheet" json:"jobSheetId"`
	BookingID     snowflake.ID           `gorm:"not null;index" json:"bookingId"`
	Customer      bookingdomain.Customer `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	Vehicle       bookingdomain.Vehicle  `gorm:"embedded;embeddedPrefix:vehicle_" json:"car"`
	Lines         []InvoiceLine          `gorm:"foreignKey:InvoiceID" json:"services"`
	Subtotal      decimal.Decimal        `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ServiceCharge decimal.Decimal        `gorm:"type:numeric(12,2);not null" json:"serviceCharge"`
	VAT           decimal.Decimal        `gorm:"column:vat;type:numeric(12,2);not null" json:"vat"`
	TotalAmount   decimal.Decimal        `gorm:"type:numeric(12,2);not null" json:"totalAmount"`
	Duration      int                    `gorm:"not null;default:0" json:"duration"`
	Status        InvoiceStatus          `gorm:"type:text;not null;index" json:"status"`
	IssuedDate    time.Time              `gorm:"not null" json:"issuedDate"`
	DueDate       time.Time              `gorm:"not null;index" json:"dueDate"`
	SentAt        *time.Time             `json:"sentAt,omitempty"`
	PaidAt        *time.Time             `json:"paidAt,omitempty"`
	CancelledAt   *time.Time             `json:"cancelledAt,omitempty"`
	CreatedAt     time.Time              `gorm:"not null;index" json:"createdAt"`
	UpdatedAt     time.Time              `gorm:"not null" json:"updatedAt"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceLine is a snapshot of one service on the job.
type InvoiceLine struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoiceId"`
	ServiceID   string          `gorm:"type:text" json:"serviceId,omitempty"`
	Name        string          `gorm:"type:text;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Duration    int             `gorm:"not null;default:0" json:"duration"`
	Position    int             `gorm:"not null" json:"position"`
}

// TableName sets the database table name.
func (InvoiceLine) TableName() string { return "invoice_lines" }

var transitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
}

func CanTransition(from, to InvoiceStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// IsOverdue reports whether an unsettled invoice is past its due date. Dates
// are compared by calendar day in UTC.
func IsOverdue(inv Invoice, today time.Time) bool {
	if inv.Status == InvoiceStatusPaid || inv.Status == InvoiceStatusCancelled {
		return false
	}
	return StartOfDay(today).After(StartOfDay(inv.DueDate))
}

// FormatNumber renders INV-YYMMDD-NNNN.
func FormatNumber(issued time.Time, suffix int) string {
	return fmt.Sprintf("INV-%s-%04d", issued.UTC().Format("060102"), suffix%10000)
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
