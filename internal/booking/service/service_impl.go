package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	"github.com/smallbiznis/garageflow/internal/booking/domain"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	obslogger "github.com/smallbiznis/garageflow/internal/observability/logger"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("booking.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateBookingRequest) (domain.Booking, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := validateCreate(&req); err != nil {
		return domain.Booking{}, err
	}

	now := s.clock.Now()
	booking := domain.Booking{
		ID:                s.genID.Generate(),
		GarageID:          garageID,
		Customer:          req.Customer,
		Vehicle:           req.Car,
		Status:            domain.StatusPending,
		RequiresDiagnosis: req.RequiresDiagnosis,
		DiagnosisNotes:    strings.TrimSpace(req.DiagnosisNotes),
		Date:              req.Date,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Bay:               req.Bay,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	inputs := append([]domain.ServiceInput{{
		ServiceID: req.ServiceID,
		Name:      req.ServiceName,
		Price:     req.ServicePrice,
		Duration:  req.ServiceDuration,
	}}, req.ExtraServices...)
	booking.Services, err = s.buildServices(booking.ID, inputs, domain.SourceBooked, 0, now)
	if err != nil {
		return domain.Booking{}, err
	}

	if err := s.repo.Insert(ctx, s.db, &booking); err != nil {
		return domain.Booking{}, err
	}

	s.emitAudit(ctx, "booking.created", booking, map[string]any{
		"date":       booking.Date,
		"bay":        booking.Bay,
		"service_id": req.ServiceID,
	})
	return booking, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Booking, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.Booking{}, err
	}
	bookingID, err := parseID(id)
	if err != nil {
		return domain.Booking{}, err
	}
	booking, err := s.repo.FindByID(ctx, s.db, garageID, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if booking == nil {
		return domain.Booking{}, domain.ErrNotFound
	}
	return *booking, nil
}

func (s *Service) List(ctx context.Context, req domain.ListBookingRequest) (domain.ListBookingResponse, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.ListBookingResponse{}, err
	}

	filter := domain.ListFilter{GarageID: garageID}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(strings.ToLower(raw))
		if !status.Valid() {
			return domain.ListBookingResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if date := strings.TrimSpace(req.Date); date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return domain.ListBookingResponse{}, domain.ErrInvalidDate
		}
		filter.Date = date
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := decodeCursor(token)
		if err != nil {
			return domain.ListBookingResponse{}, err
		}
		filter.Cursor = cursor
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultLimit
	}
	if pageSize > pagination.MaxLimit {
		pageSize = pagination.MaxLimit
	}
	filter.Limit = pageSize

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListBookingResponse{}, err
	}

	items, info := pagination.BuildCursorInfo(items, pageSize, func(item *domain.Booking) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	bookings := make([]domain.Booking, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		bookings = append(bookings, *item)
	}
	return domain.ListBookingResponse{CursorInfo: info, Bookings: bookings}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.Status) (domain.Booking, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.Booking{}, err
	}
	bookingID, err := parseID(id)
	if err != nil {
		return domain.Booking{}, err
	}
	status = domain.Status(strings.ToLower(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return domain.Booking{}, domain.ErrInvalidStatus
	}

	var (
		booking *domain.Booking
		from    domain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err = s.repo.FindForUpdate(ctx, tx, garageID, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return domain.ErrNotFound
		}
		from = booking.Status
		return s.transition(ctx, tx, booking, status)
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.emitAudit(ctx, "booking.status_changed", *booking, map[string]any{
		"from": string(from),
		"to":   string(status),
	})
	return *booking, nil
}

func (s *Service) FindTx(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID) (*domain.Booking, error) {
	booking, err := s.repo.FindForUpdate(ctx, tx, garageID, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrNotFound
	}
	return booking, nil
}

// AppendServicesTx adds diagnosed services after the existing ones. The
// booking receives copies; later changes to the source do not propagate.
func (s *Service) AppendServicesTx(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID, inputs []domain.ServiceInput) ([]domain.BookingService, error) {
	booking, err := s.FindTx(ctx, tx, garageID, id)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}

	next := 0
	for _, svc := range booking.Services {
		if svc.Position >= next {
			next = svc.Position + 1
		}
	}
	services, err := s.buildServices(booking.ID, inputs, domain.SourceDiagnosis, next, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertServices(ctx, tx, services); err != nil {
		return nil, err
	}
	return services, nil
}

// MarkInProgressTx confirms a pending booking on the way, since work may start
// on a booking that was never explicitly confirmed.
func (s *Service) MarkInProgressTx(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID) error {
	booking, err := s.FindTx(ctx, tx, garageID, id)
	if err != nil {
		return err
	}
	switch booking.Status {
	case domain.StatusInProgress:
		return nil
	case domain.StatusPending:
		if err := s.transition(ctx, tx, booking, domain.StatusConfirmed); err != nil {
			return err
		}
	}
	return s.transition(ctx, tx, booking, domain.StatusInProgress)
}

func (s *Service) MarkCompletedTx(ctx context.Context, tx *gorm.DB, garageID, id snowflake.ID) error {
	booking, err := s.FindTx(ctx, tx, garageID, id)
	if err != nil {
		return err
	}
	if booking.Status == domain.StatusCompleted {
		return nil
	}
	return s.transition(ctx, tx, booking, domain.StatusCompleted)
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, booking *domain.Booking, to domain.Status) error {
	if !domain.CanTransition(booking.Status, to) {
		return domain.ErrInvalidTransition
	}
	now := s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, tx, booking.GarageID, booking.ID, to, now); err != nil {
		return err
	}
	booking.Status = to
	booking.UpdatedAt = now
	return nil
}

func (s *Service) buildServices(bookingID snowflake.ID, inputs []domain.ServiceInput, source domain.ServiceSource, start int, now time.Time) ([]domain.BookingService, error) {
	services := make([]domain.BookingService, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, domain.ErrInvalidServiceName
		}
		if in.Price.IsNegative() || in.Duration < 0 {
			return nil, domain.ErrInvalidPrice
		}
		services = append(services, domain.BookingService{
			ID:          s.genID.Generate(),
			BookingID:   bookingID,
			ServiceID:   strings.TrimSpace(in.ServiceID),
			Name:        name,
			Description: strings.TrimSpace(in.Description),
			Price:       in.Price.Round(2),
			Duration:    in.Duration,
			Source:      source,
			Position:    start + i,
			CreatedAt:   now,
		})
	}
	return services, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, booking domain.Booking, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["status"] = string(booking.Status)
	targetID := booking.ID.String()
	garageID := booking.GarageID
	if err := s.auditSvc.AuditLog(ctx, &garageID, "", nil, action, "booking", &targetID, metadata); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("audit failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) garageID(ctx context.Context) (snowflake.ID, error) {
	garageID, ok := garagecontext.GarageIDFromContext(ctx)
	if !ok {
		return 0, domain.ErrInvalidGarage
	}
	return garageID, nil
}

// validateCreate trims the request in place and reports the first missing
// required field.
func validateCreate(req *domain.CreateBookingRequest) error {
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ServiceName = strings.TrimSpace(req.ServiceName)
	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	req.Customer.Phone = strings.TrimSpace(req.Customer.Phone)
	req.Customer.Email = strings.TrimSpace(req.Customer.Email)
	req.Car.Make = strings.TrimSpace(req.Car.Make)
	req.Car.Model = strings.TrimSpace(req.Car.Model)
	req.Car.License = strings.ToUpper(strings.TrimSpace(req.Car.License))
	req.Date = strings.TrimSpace(req.Date)
	req.StartTime = strings.TrimSpace(req.StartTime)
	req.EndTime = strings.TrimSpace(req.EndTime)
	req.Bay = strings.TrimSpace(req.Bay)

	switch {
	case req.ServiceID == "":
		return domain.ErrInvalidServiceID
	case req.ServiceName == "":
		return domain.ErrInvalidServiceName
	case req.Customer.Name == "" || (req.Customer.Phone == "" && req.Customer.Email == ""):
		return domain.ErrInvalidCustomer
	case req.Car.License == "":
		return domain.ErrInvalidCar
	case req.Date == "":
		return domain.ErrInvalidDate
	case req.StartTime == "":
		return domain.ErrInvalidStartTime
	case req.EndTime == "":
		return domain.ErrInvalidEndTime
	case req.Bay == "":
		return domain.ErrInvalidBay
	}

	if _, err := time.Parse(dateLayout, req.Date); err != nil {
		return domain.ErrInvalidDate
	}
	start, err := time.Parse(timeLayout, req.StartTime)
	if err != nil {
		return domain.ErrInvalidStartTime
	}
	end, err := time.Parse(timeLayout, req.EndTime)
	if err != nil || !end.After(start) {
		return domain.ErrInvalidEndTime
	}
	if req.ServicePrice.IsNegative() || req.ServiceDuration < 0 {
		return domain.ErrInvalidPrice
	}
	return nil
}

func decodeCursor(token string) (*domain.Cursor, error) {
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidPageToken
	}
	return &domain.Cursor{ID: id, CreatedAt: createdAt}, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
