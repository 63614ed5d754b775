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
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	"github.com/smallbiznis/garageflow/internal/testutil"
	"github.com/smallbiznis/garageflow/internal/vhc/domain"
	"github.com/smallbiznis/garageflow/internal/vhc/repository"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	ctx      context.Context
	clk      *clock.FakeClock
	svc      domain.Service
	bookings bookingdomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t, &domain.Response{}, &bookingdomain.Booking{}, &bookingdomain.BookingService{}, &auditdomain.AuditLog{})
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepository.Provide()})
	bookings := bookingservice.New(bookingservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: bookingrepository.Provide(), AuditSvc: audit})
	svc := New(Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: repository.Provide(), BookingSvc: bookings, AuditSvc: audit})

	ctx := garagecontext.WithGarageID(context.Background(), snowflake.ID(77))
	ctx = auditcontext.WithActor(ctx, "user", "tech-9")
	return fixture{ctx: ctx, clk: clk, svc: svc, bookings: bookings}
}

func TestCreateScoresAnswers(t *testing.T) {
	f := newFixture(t)
	booking, err := f.bookings.Create(f.ctx, bookingdomain.CreateBookingRequest{
		ServiceID: "inspection", ServiceName: "Health check", ServicePrice: decimal.Zero,
		Customer: bookingdomain.Customer{Name: "Ana Silva", Phone: "07700900123"},
		Car:      bookingdomain.Vehicle{Make: "Nissan", Model: "Leaf", Year: 2021, License: "EV21 LFE"},
		Date:     "2026-05-04", StartTime: "10:00", EndTime: "10:30", Bay: "2",
	})
	require.NoError(t, err)

	response, err := f.svc.Create(f.ctx, domain.CreateResponseRequest{
		VehicleID:  "EV21LFE",
		BookingID:  booking.ID.String(),
		Powertrain: "Electric",
		Status:     "completed",
		AssignedTo: "tech-9",
		Answers: domain.Answers{
			"tyres":        {"front_left": domain.AnswerGood, "front_right": domain.AnswerAdvisory},
			"high_voltage": {"battery_health": domain.AnswerGood, "charging_port": domain.AnswerGood},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PowertrainElectric, response.Powertrain)
	assert.Equal(t, domain.StatusCompleted, response.Status)
	assert.Equal(t, "user:tech-9", response.CreatedBy)
	assert.Equal(t, 87.5, response.Score)
	assert.Equal(t, domain.RatingGreen, response.Rating)
	require.NotNil(t, response.BookingID)

	loaded, err := f.svc.GetByID(f.ctx, response.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerAdvisory, loaded.Answers.Data()["tyres"]["front_right"])
	assert.NotEmpty(t, loaded.Sections.Data())
	assert.Equal(t, 87.5, loaded.Score)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		req  domain.CreateResponseRequest
		err  error
	}{
		{"missing vehicle", domain.CreateResponseRequest{Powertrain: "petrol"}, domain.ErrInvalidVehicle},
		{"bad powertrain", domain.CreateResponseRequest{VehicleID: "v1", Powertrain: "steam"}, domain.ErrInvalidPowertrain},
		{"bad status", domain.CreateResponseRequest{VehicleID: "v1", Powertrain: "petrol", Status: "archived"}, domain.ErrInvalidStatus},
		{"completed without answers", domain.CreateResponseRequest{VehicleID: "v1", Powertrain: "petrol", Status: "completed"}, domain.ErrInvalidAnswers},
		{"exhaust on electric", domain.CreateResponseRequest{VehicleID: "v1", Powertrain: "electric", Answers: domain.Answers{"exhaust": {"system": domain.AnswerGood}}}, domain.ErrInvalidAnswers},
		{"unknown booking", domain.CreateResponseRequest{VehicleID: "v1", Powertrain: "petrol", BookingID: "998877"}, domain.ErrInvalidBooking},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(f.ctx, tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	draft, err := f.svc.Create(f.ctx, domain.CreateResponseRequest{VehicleID: "v1", Powertrain: "petrol"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, draft.Status)
	assert.Equal(t, domain.RatingNone, draft.Rating)

	_, err = f.svc.GetByID(f.ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.GetByID(f.ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListFiltersAndSorts(t *testing.T) {
	f := newFixture(t)
	create := func(vehicle, powertrain, assigned string, answers domain.Answers) domain.Response {
		r, err := f.svc.Create(f.ctx, domain.CreateResponseRequest{
			VehicleID: vehicle, Powertrain: powertrain, AssignedTo: assigned, Status: "in_progress", Answers: answers,
		})
		require.NoError(t, err)
		return r
	}

	create("car-1", "petrol", "tech-1", domain.Answers{"brakes": {"front_pads": domain.AnswerUrgent}})
	f.clk.Advance(24 * time.Hour)
	create("car-2", "diesel", "tech-2", domain.Answers{"brakes": {"front_pads": domain.AnswerGood}})
	f.clk.Advance(24 * time.Hour)
	create("car-3", "diesel", "tech-1", domain.Answers{"brakes": {"front_pads": domain.AnswerAdvisory}})

	all, err := f.svc.List(f.ctx, domain.ListResponseRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Equal(t, "car-3", all.Responses[0].VehicleID)

	diesel, err := f.svc.List(f.ctx, domain.ListResponseRequest{Powertrain: "diesel", AssignedTo: "tech-1"})
	require.NoError(t, err)
	require.Len(t, diesel.Responses, 1)
	assert.Equal(t, "car-3", diesel.Responses[0].VehicleID)

	byScore, err := f.svc.List(f.ctx, domain.ListResponseRequest{SortBy: "score", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"car-1", "car-3", "car-2"}, []string{
		byScore.Responses[0].VehicleID, byScore.Responses[1].VehicleID, byScore.Responses[2].VehicleID,
	})

	ranged, err := f.svc.List(f.ctx, domain.ListResponseRequest{StartDate: "2026-05-05", EndDate: "2026-05-05"})
	require.NoError(t, err)
	require.Len(t, ranged.Responses, 1)
	assert.Equal(t, "car-2", ranged.Responses[0].VehicleID)

	paged, err := f.svc.List(f.ctx, domain.ListResponseRequest{Page: pagination.Page{Page: 2, Limit: 2}, CreatedBy: "user:tech-9"})
	require.NoError(t, err)
	assert.Len(t, paged.Responses, 1)
	assert.False(t, paged.HasMore)

	_, err = f.svc.List(f.ctx, domain.ListResponseRequest{SortBy: "colour"})
	assert.ErrorIs(t, err, domain.ErrInvalidSortBy)
	_, err = f.svc.List(f.ctx, domain.ListResponseRequest{StartDate: "2026-05-06", EndDate: "2026-05-04"})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
	_, err = f.svc.List(f.ctx, domain.ListResponseRequest{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
