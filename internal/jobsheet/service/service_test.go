package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	auditrepository "github.com/smallbiznis/garageflow/internal/audit/repository"
	auditservice "github.com/smallbiznis/garageflow/internal/audit/service"
	"github.com/smallbiznis/garageflow/internal/auditcontext"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
	bookingrepository "github.com/smallbiznis/garageflow/internal/booking/repository"
	bookingservice "github.com/smallbiznis/garageflow/internal/booking/service"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/config"
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	inventoryrepository "github.com/smallbiznis/garageflow/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/garageflow/internal/inventory/service"
	invoicedomain "github.com/smallbiznis/garageflow/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/garageflow/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/garageflow/internal/invoice/service"
	"github.com/smallbiznis/garageflow/internal/jobsheet/domain"
	"github.com/smallbiznis/garageflow/internal/jobsheet/repository"
	"github.com/smallbiznis/garageflow/internal/observability/metrics"
	"github.com/smallbiznis/garageflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testGarageID = snowflake.ID(5150)

type fixture struct {
	ctx       context.Context
	clk       *clock.FakeClock
	sheets    domain.Service
	bookings  bookingdomain.Service
	inventory inventorydomain.Service
	invoices  invoicedomain.Service
	audit     auditdomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t,
		&bookingdomain.Booking{}, &bookingdomain.BookingService{},
		&domain.JobSheet{}, &domain.DiagnosedService{}, &domain.TimeLog{}, &domain.ChecklistItem{},
		&inventorydomain.Item{}, &inventorydomain.Movement{},
		&invoicedomain.Invoice{}, &invoicedomain.InvoiceLine{},
		&auditdomain.AuditLog{},
	)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 7, 14, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	m := metrics.NewNoop()

	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepository.Provide()})
	bookings := bookingservice.New(bookingservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: bookingrepository.Provide(), AuditSvc: audit})
	inventory := inventoryservice.New(inventoryservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: inventoryrepository.Provide(),
		Workshop: config.NewStaticWorkshopConfigHolder(config.DefaultWorkshopConfig()),
		Metrics:  m, AuditSvc: audit,
	})
	invoices := invoiceservice.NewService(invoiceservice.ServiceParam{DB: db, Log: log, GenID: node, Clock: clk, Repo: invoicerepository.Provide(), Metrics: m, AuditSvc: audit})
	sheets := New(Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: repository.Provide(),
		BookingSvc: bookings, InventorySvc: inventory, InvoiceSvc: invoices,
		Metrics: m, AuditSvc: audit,
	})

	ctx := garagecontext.WithGarageID(context.Background(), testGarageID)
	ctx = auditcontext.WithActor(ctx, "user", "tech-1")
	return fixture{ctx: ctx, clk: clk, sheets: sheets, bookings: bookings, inventory: inventory, invoices: invoices, audit: audit}
}

func (f fixture) booking(t *testing.T, serviceID, name string, price decimal.Decimal) bookingdomain.Booking {
	t.Helper()
	booking, err := f.bookings.Create(f.ctx, bookingdomain.CreateBookingRequest{
		ServiceID:    serviceID,
		ServiceName:  name,
		ServicePrice: price,
		Customer:     bookingdomain.Customer{Name: "Tom Ellis", Email: "tom@example.com"},
		Car:          bookingdomain.Vehicle{Make: "Ford", Model: "Focus", Year: 2017, License: "YX17 ABC"},
		Date:         "2026-07-14",
		StartTime:    "09:00",
		EndTime:      "11:00",
		Bay:          "1",
	})
	require.NoError(t, err)
	return booking
}

func (f fixture) stock(t *testing.T, sku string, qty int64) inventorydomain.Item {
	t.Helper()
	reorder := int64(2)
	item, err := f.inventory.CreateItem(f.ctx, inventorydomain.CreateItemRequest{
		Name: sku, SKU: sku, InitialQuantity: qty, ReorderLevel: &reorder,
	})
	require.NoError(t, err)
	return item
}

func (f fixture) quantity(t *testing.T, item inventorydomain.Item) int64 {
	t.Helper()
	loaded, err := f.inventory.GetItem(f.ctx, item.ID.String())
	require.NoError(t, err)
	return loaded.Quantity
}

func TestStartDeductsInventoryOnce(t *testing.T) {
	f := newFixture(t)
	oil := f.stock(t, "engine-oil-5w30", 10)
	filter := f.stock(t, "oil-filter", 3)
	booking := f.booking(t, "oil-change", "Oil change", decimal.RequireFromString("49.99"))

	sheet, err := f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: booking.ID.String(), TechnicianID: "tech-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, sheet.Status)
	assert.Nil(t, sheet.ApprovalStatus)
	require.Len(t, sheet.Checklist, 1)

	started, err := f.sheets.Start(f.ctx, sheet.ID.String(), "bay ready")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, started.JobSheet.Status)
	assert.True(t, started.JobSheet.InventoryDeducted)
	assert.Empty(t, started.Shortages)
	assert.Equal(t, int64(5), f.quantity(t, oil))
	assert.Equal(t, int64(2), f.quantity(t, filter))

	_, err = f.sheets.Start(f.ctx, sheet.ID.String(), "again")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, int64(5), f.quantity(t, oil))
	assert.Equal(t, int64(2), f.quantity(t, filter))

	moves, err := f.inventory.ListMovements(f.ctx, inventorydomain.ListMovementRequest{JobSheetID: sheet.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), moves.Total)
	for _, m := range moves.Movements {
		assert.Equal(t, inventorydomain.ReferenceJobSheet, m.ReferenceType)
		assert.Equal(t, "user:tech-1", m.PerformedBy)
	}

	loadedBooking, err := f.bookings.GetByID(f.ctx, booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, bookingdomain.StatusInProgress, loadedBooking.Status)
}

func TestStartWarnsOnShortageWithoutBlocking(t *testing.T) {
	f := newFixture(t)
	oil := f.stock(t, "engine-oil-5w30", 3)
	booking := f.booking(t, "oil-change", "Oil change", decimal.NewFromInt(40))
	sheet, err := f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: booking.ID.String(), TechnicianID: "tech-1"})
	require.NoError(t, err)

	started, err := f.sheets.Start(f.ctx, sheet.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, started.JobSheet.Status)
	require.Len(t, started.Shortages, 2)
	assert.Equal(t, "engine-oil-5w30", started.Shortages[0].SKU)
	assert.Equal(t, int64(3), started.Shortages[0].Available)
	assert.Equal(t, "oil-filter", started.Shortages[1].SKU)
	assert.Equal(t, int64(0), f.quantity(t, oil))
}

func TestDiagnosisApprovalAndInvoiceTotalsAgree(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, "inspection", "Brake inspection", decimal.Zero)
	sheet, err := f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: booking.ID.String(), TechnicianID: "tech-1"})
	require.NoError(t, err)

	diagnosis, err := f.sheets.SubmitDiagnosis(f.ctx, sheet.ID.String(), domain.SubmitDiagnosisRequest{
		Notes: "Front pads worn to 2mm, fluid contaminated",
		Services: []domain.DiagnosedServiceInput{
			{Name: "Front brake pads", Price: decimal.NewFromInt(50), Duration: 60},
			{Name: "Brake fluid flush", Price: decimal.NewFromInt(30), Duration: 30},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "114.00", diagnosis.Quote.Total.StringFixed(2))
	require.NotNil(t, diagnosis.JobSheet.ApprovalStatus)
	assert.Equal(t, domain.ApprovalPending, *diagnosis.JobSheet.ApprovalStatus)
	assert.Equal(t, "user:tech-1", diagnosis.JobSheet.DiagnosedServices[0].AddedBy)

	approval, err := f.sheets.Approve(f.ctx, sheet.ID.String(), "manager-7")
	require.NoError(t, err)
	assert.Empty(t, approval.Shortages)
	approved := approval.JobSheet
	assert.Equal(t, domain.ApprovalApproved, *approved.ApprovalStatus)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, "manager-7", *approved.ReviewedBy)
	require.Len(t, approved.Checklist, 3)
	require.NotNil(t, approved.Booking)
	require.Len(t, approved.Booking.Services, 3)
	assert.Equal(t, bookingdomain.SourceDiagnosis, approved.Booking.Services[2].Source)

	_, err = f.sheets.Start(f.ctx, sheet.ID.String(), "")
	require.NoError(t, err)

	_, err = f.sheets.Complete(f.ctx, sheet.ID.String(), "done")
	assert.ErrorIs(t, err, domain.ErrChecklistIncomplete)

	for _, item := range approved.Checklist {
		_, err := f.sheets.SetChecklistItem(f.ctx, sheet.ID.String(), item.ID.String(), true)
		require.NoError(t, err)
	}

	done, err := f.sheets.Complete(f.ctx, sheet.ID.String(), "done")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.JobSheet.Status)
	require.NotNil(t, done.JobSheet.CompletedAt)
	assert.True(t, diagnosis.Quote.Total.Equal(done.Invoice.TotalAmount))
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, done.Invoice.Status)
	assert.Equal(t, "Tom Ellis", done.Invoice.Customer.Name)

	loadedBooking, err := f.bookings.GetByID(f.ctx, booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, bookingdomain.StatusCompleted, loadedBooking.Status)

	_, err = f.sheets.Complete(f.ctx, sheet.ID.String(), "twice")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	invoices, err := f.invoices.List(f.ctx, invoicedomain.ListInvoiceRequest{})
	require.NoError(t, err)
	assert.Len(t, invoices.Invoices, 1)

	logs, err := f.audit.List(f.ctx, auditdomain.ListAuditLogRequest{Action: "invoice.generated"})
	require.NoError(t, err)
	assert.Len(t, logs.AuditLogs, 1)
}

func TestApproveAfterStartDeductsAddedServices(t *testing.T) {
	f := newFixture(t)
	oil := f.stock(t, "engine-oil-5w30", 10)
	filter := f.stock(t, "oil-filter", 3)
	pads := f.stock(t, "brake-pad-set-front", 10)
	cleaner := f.stock(t, "brake-cleaner", 4)
	booking := f.booking(t, "oil-change", "Oil change", decimal.NewFromInt(40))
	sheet, err := f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: booking.ID.String(), TechnicianID: "tech-1"})
	require.NoError(t, err)

	_, err = f.sheets.Start(f.ctx, sheet.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.quantity(t, oil))
	assert.Equal(t, int64(2), f.quantity(t, filter))

	_, err = f.sheets.SubmitDiagnosis(f.ctx, sheet.ID.String(), domain.SubmitDiagnosisRequest{
		Notes: "Front pads worn to 2mm",
		Services: []domain.DiagnosedServiceInput{
			{ServiceID: "brake-pads-front", Name: "Front brake pads", Price: decimal.NewFromInt(50), Duration: 60},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.quantity(t, pads))

	approval, err := f.sheets.Approve(f.ctx, sheet.ID.String(), "manager-7")
	require.NoError(t, err)
	assert.Empty(t, approval.Shortages)
	assert.Equal(t, int64(9), f.quantity(t, pads))
	assert.Equal(t, int64(3), f.quantity(t, cleaner))
	assert.Equal(t, int64(5), f.quantity(t, oil))

	moves, err := f.inventory.ListMovements(f.ctx, inventorydomain.ListMovementRequest{JobSheetID: sheet.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(4), moves.Total)
	for _, m := range moves.Movements {
		assert.Equal(t, inventorydomain.ReferenceJobSheet, m.ReferenceType)
	}

	for _, item := range approval.JobSheet.Checklist {
		_, err := f.sheets.SetChecklistItem(f.ctx, sheet.ID.String(), item.ID.String(), true)
		require.NoError(t, err)
	}
	done, err := f.sheets.Complete(f.ctx, sheet.ID.String(), "done")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.JobSheet.Status)
	assert.Equal(t, int64(9), f.quantity(t, pads))
	assert.Equal(t, int64(3), f.quantity(t, cleaner))
}

func TestApproveAfterStartReportsShortages(t *testing.T) {
	f := newFixture(t)
	f.stock(t, "engine-oil-5w30", 10)
	f.stock(t, "oil-filter", 3)
	pads := f.stock(t, "brake-pad-set-front", 10)
	booking := f.booking(t, "oil-change", "Oil change", decimal.NewFromInt(40))
	sheet, err := f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: booking.ID.String(), TechnicianID: "tech-1"})
	require.NoError(t, err)
	_, err = f.sheets.Start(f.ctx, sheet.ID.String(), "")
	require.NoError(t, err)

	_, err = f.sheets.SubmitDiagnosis(f.ctx, sheet.ID.String(), domain.SubmitDiagnosisRequest{
		Notes:    "Front pads worn",
		Services: []domain.DiagnosedServiceInput{{ServiceID: "brake-pads-front", Name: "Front brake pads", Price: decimal.NewFromInt(50)}},
	})
	require.NoError(t, err)

	approval, err := f.sheets.Approve(f.ctx, sheet.ID.String(), "manager-7")
	require.NoError(t, err)
	require.Len(t, approval.Shortages, 1)
	assert.Equal(t, "brake-cleaner", approval.Shortages[0].SKU)
	assert.Equal(t, int64(9), f.quantity(t, pads))
}

func TestApproveBeforeStartLeavesStockForStart(t *testing.T) {
	f := newFixture(t)
	pads := f.stock(t, "brake-pad-set-front", 10)
	cleaner := f.stock(t, "brake-cleaner", 4)
	booking := f.booking(t, "inspection", "Brake inspection", decimal.Zero)
	sheet, err := f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: booking.ID.String(), TechnicianID: "tech-1"})
	require.NoError(t, err)

	_, err = f.sheets.SubmitDiagnosis(f.ctx, sheet.ID.String(), domain.SubmitDiagnosisRequest{
		Notes:    "Front pads worn",
		Services: []domain.DiagnosedServiceInput{{ServiceID: "brake-pads-front", Name: "Front brake pads", Price: decimal.NewFromInt(50)}},
	})
	require.NoError(t, err)
	_, err = f.sheets.Approve(f.ctx, sheet.ID.String(), "manager-7")
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.quantity(t, pads))

	_, err = f.sheets.Start(f.ctx, sheet.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(9), f.quantity(t, pads))
	assert.Equal(t, int64(3), f.quantity(t, cleaner))
}

func TestDiagnosisRejectAndResubmit(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, "inspection", "Noise check", decimal.Zero)
	sheet, err := f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: booking.ID.String(), TechnicianID: "tech-1"})
	require.NoError(t, err)

	_, err = f.sheets.Approve(f.ctx, sheet.ID.String(), "manager-7")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.sheets.SubmitDiagnosis(f.ctx, sheet.ID.String(), domain.SubmitDiagnosisRequest{Notes: "rattle"})
	assert.ErrorIs(t, err, domain.ErrInvalidServices)
	_, err = f.sheets.SubmitDiagnosis(f.ctx, sheet.ID.String(), domain.SubmitDiagnosisRequest{
		Services: []domain.DiagnosedServiceInput{{Name: "Exhaust bracket", Price: decimal.NewFromInt(25)}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidNotes)

	_, err = f.sheets.SubmitDiagnosis(f.ctx, sheet.ID.String(), domain.SubmitDiagnosisRequest{
		Notes:    "Loose heat shield",
		Services: []domain.DiagnosedServiceInput{{Name: "Heat shield refit", Price: decimal.NewFromInt(120)}},
	})
	require.NoError(t, err)

	_, err = f.sheets.Reject(f.ctx, sheet.ID.String(), "manager-7", "")
	assert.ErrorIs(t, err, domain.ErrInvalidReason)

	rejected, err := f.sheets.Reject(f.ctx, sheet.ID.String(), "manager-7", "Customer declined price")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalRejected, *rejected.ApprovalStatus)
	assert.Equal(t, "Customer declined price", rejected.RejectionReason)
	assert.Len(t, rejected.Booking.Services, 1)

	resubmitted, err := f.sheets.SubmitDiagnosis(f.ctx, sheet.ID.String(), domain.SubmitDiagnosisRequest{
		Notes:    "Loose heat shield, clamp only",
		Services: []domain.DiagnosedServiceInput{{Name: "Heat shield clamp", Price: decimal.NewFromInt(35)}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPending, *resubmitted.JobSheet.ApprovalStatus)
	require.Len(t, resubmitted.JobSheet.DiagnosedServices, 1)
	assert.Equal(t, "Heat shield clamp", resubmitted.JobSheet.DiagnosedServices[0].Name)
	assert.Empty(t, resubmitted.JobSheet.RejectionReason)

	_, err = f.sheets.Approve(f.ctx, sheet.ID.String(), "manager-7")
	require.NoError(t, err)
	_, err = f.sheets.SubmitDiagnosis(f.ctx, sheet.ID.String(), domain.SubmitDiagnosisRequest{
		Notes:    "more",
		Services: []domain.DiagnosedServiceInput{{Name: "Extra", Price: decimal.NewFromInt(1)}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPauseHaltResumeAndDuration(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, "inspection", "MOT prep", decimal.NewFromInt(30))
	sheet, err := f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: booking.ID.String(), TechnicianID: "tech-1"})
	require.NoError(t, err)
	id := sheet.ID.String()

	_, err = f.sheets.Start(f.ctx, id, "")
	require.NoError(t, err)
	f.clk.Advance(30 * time.Minute)

	_, err = f.sheets.Pause(f.ctx, id, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidReason)
	paused, err := f.sheets.Pause(f.ctx, id, "lunch")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, paused.Status)
	f.clk.Advance(10 * time.Minute)

	_, err = f.sheets.Resume(f.ctx, id, "")
	require.NoError(t, err)
	f.clk.Advance(20 * time.Minute)

	halted, err := f.sheets.Halt(f.ctx, id, "waiting on parts", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHalted, halted.Status)
	assert.Equal(t, "user:tech-1", halted.HaltedBy)
	f.clk.Advance(5 * time.Minute)

	_, err = f.sheets.Complete(f.ctx, id, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	resumed, err := f.sheets.Resume(f.ctx, id, "parts arrived")
	require.NoError(t, err)
	assert.Empty(t, resumed.HaltedBy)
	require.Len(t, resumed.TimeLogs, 5)
	f.clk.Advance(15 * time.Minute)

	stored, err := f.sheets.WorkDuration(f.ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, int64(50), stored.Minutes)
	assert.False(t, stored.Live)

	live, err := f.sheets.WorkDuration(f.ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, int64(65), live.Minutes)
	assert.True(t, live.Live)

	_, err = f.sheets.Cancel(f.ctx, id, "")
	assert.ErrorIs(t, err, domain.ErrInvalidReason)
	cancelled, err := f.sheets.Cancel(f.ctx, id, "customer collected car")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	_, err = f.sheets.SetChecklistItem(f.ctx, id, cancelled.Checklist[0].ID.String(), true)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCreateJobSheetGuards(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, "inspection", "Check", decimal.Zero)

	_, err := f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: booking.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidTechnician)
	_, err = f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: "123", TechnicianID: "tech-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidBooking)

	_, err = f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: booking.ID.String(), TechnicianID: "tech-1"})
	require.NoError(t, err)
	_, err = f.sheets.Create(f.ctx, domain.CreateJobSheetRequest{BookingID: booking.ID.String(), TechnicianID: "tech-2"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	list, err := f.sheets.List(f.ctx, domain.ListJobSheetRequest{TechnicianID: "tech-1"})
	require.NoError(t, err)
	require.Len(t, list.JobSheets, 1)
	require.NotNil(t, list.JobSheets[0].Booking)
	assert.Equal(t, "Tom Ellis", list.JobSheets[0].Booking.Customer.Name)

	_, err = f.sheets.List(f.ctx, domain.ListJobSheetRequest{Status: "sleeping"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
