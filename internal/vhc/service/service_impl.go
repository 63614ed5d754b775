package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	"github.com/smallbiznis/garageflow/internal/auditcontext"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	obslogger "github.com/smallbiznis/garageflow/internal/observability/logger"
	"github.com/smallbiznis/garageflow/internal/vhc/domain"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	BookingSvc bookingdomain.Service `optional:"true"`
	AuditSvc   auditdomain.Service   `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	bookingSvc bookingdomain.Service
	auditSvc   auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("vhc.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		bookingSvc: p.BookingSvc,
		auditSvc:   p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateResponseRequest) (domain.Response, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.Response{}, err
	}

	vehicleID := strings.TrimSpace(req.VehicleID)
	if vehicleID == "" {
		return domain.Response{}, domain.ErrInvalidVehicle
	}
	powertrain := domain.Powertrain(strings.ToLower(strings.TrimSpace(req.Powertrain)))
	if !powertrain.Valid() {
		return domain.Response{}, domain.ErrInvalidPowertrain
	}
	status := domain.StatusDraft
	if raw := strings.ToLower(strings.TrimSpace(req.Status)); raw != "" {
		status = domain.Status(raw)
		if !status.Valid() {
			return domain.Response{}, domain.ErrInvalidStatus
		}
	}

	answers := req.Answers
	if answers == nil {
		answers = domain.Answers{}
	}
	summary, err := domain.Score(powertrain, answers)
	if err != nil {
		return domain.Response{}, err
	}
	if (status == domain.StatusCompleted || status == domain.StatusReviewed) && !summary.Scored {
		return domain.Response{}, domain.ErrInvalidAnswers
	}

	var bookingID *snowflake.ID
	if raw := strings.TrimSpace(req.BookingID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return domain.Response{}, domain.ErrInvalidBooking
		}
		if s.bookingSvc != nil {
			if _, err := s.bookingSvc.GetByID(ctx, raw); err != nil {
				if errors.Is(err, bookingdomain.ErrNotFound) {
					return domain.Response{}, domain.ErrInvalidBooking
				}
				return domain.Response{}, err
			}
		}
		bookingID = &id
	}

	now := s.clock.Now()
	response := domain.Response{
		ID:         s.genID.Generate(),
		GarageID:   garageID,
		VehicleID:  vehicleID,
		BookingID:  bookingID,
		Powertrain: powertrain,
		Status:     status,
		AssignedTo: strings.TrimSpace(req.AssignedTo),
		CreatedBy:  actorName(ctx),
		Notes:      strings.TrimSpace(req.Notes),
		Answers:    datatypes.NewJSONType(answers),
		Sections:   datatypes.NewJSONType(summary.Sections),
		Score:      summary.Score,
		Rating:     summary.Rating,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, &response); err != nil {
		return domain.Response{}, err
	}

	if s.auditSvc != nil {
		targetID := response.ID.String()
		metadata := map[string]any{
			"vehicle_id": response.VehicleID,
			"powertrain": string(response.Powertrain),
			"status":     string(response.Status),
			"score":      response.Score,
			"rating":     string(response.Rating),
		}
		if err := s.auditSvc.AuditLog(ctx, &garageID, "", nil, "vhc.response_created", "vhc_response", &targetID, metadata); err != nil {
			obslogger.WithContext(ctx, s.log).Warn("audit failed", zap.String("action", "vhc.response_created"), zap.Error(err))
		}
	}
	return response, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Response, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.Response{}, err
	}
	responseID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || responseID == 0 {
		return domain.Response{}, domain.ErrInvalidID
	}
	response, err := s.repo.FindByID(ctx, s.db, garageID, responseID)
	if err != nil {
		return domain.Response{}, err
	}
	if response == nil {
		return domain.Response{}, domain.ErrNotFound
	}
	return *response, nil
}

func (s *Service) List(ctx context.Context, req domain.ListResponseRequest) (domain.ListResponseResponse, error) {
	garageID, err := s.garageID(ctx)
	if err != nil {
		return domain.ListResponseResponse{}, err
	}

	filter := domain.ListFilter{
		GarageID:   garageID,
		AssignedTo: strings.TrimSpace(req.AssignedTo),
		VehicleID:  strings.TrimSpace(req.VehicleID),
		CreatedBy:  strings.TrimSpace(req.CreatedBy),
		SortBy:     strings.TrimSpace(req.SortBy),
		SortOrder:  req.SortOrder,
	}
	if raw := strings.ToLower(strings.TrimSpace(req.Status)); raw != "" {
		status := domain.Status(raw)
		if !status.Valid() {
			return domain.ListResponseResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if raw := strings.ToLower(strings.TrimSpace(req.Powertrain)); raw != "" {
		powertrain := domain.Powertrain(raw)
		if !powertrain.Valid() {
			return domain.ListResponseResponse{}, domain.ErrInvalidPowertrain
		}
		filter.Powertrain = powertrain
	}
	filter.StartAt, filter.EndAt, err = parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return domain.ListResponseResponse{}, err
	}

	items, total, err := s.repo.List(ctx, s.db, filter, req.Page)
	if err != nil {
		return domain.ListResponseResponse{}, err
	}
	return domain.ListResponseResponse{
		PageInfo:  pagination.BuildPageInfo(req.Page, total),
		Responses: lo.FromSlicePtr(items),
	}, nil
}

// parseDateRange turns inclusive calendar days into a half-open UTC range.
func parseDateRange(startRaw, endRaw string) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if raw := strings.TrimSpace(startRaw); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, nil, domain.ErrInvalidDateRange
		}
		start = &t
	}
	if raw := strings.TrimSpace(endRaw); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, nil, domain.ErrInvalidDateRange
		}
		t = t.AddDate(0, 0, 1)
		end = &t
	}
	if start != nil && end != nil && !start.Before(*end) {
		return nil, nil, domain.ErrInvalidDateRange
	}
	return start, end, nil
}

func (s *Service) garageID(ctx context.Context) (snowflake.ID, error) {
	garageID, ok := garagecontext.GarageIDFromContext(ctx)
	if !ok {
		return 0, domain.ErrInvalidGarage
	}
	return garageID, nil
}

func actorName(ctx context.Context) string {
	if actorType, actorID := auditcontext.ActorFromContext(ctx); actorID != "" {
		if actorType == "" {
			return actorID
		}
		return actorType + ":" + actorID
	}
	return string(auditdomain.ActorTypeSystem)
}
