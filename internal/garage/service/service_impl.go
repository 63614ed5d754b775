package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/garage/domain"
	"github.com/smallbiznis/garageflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
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
		log:      p.Log.Named("garage.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateGarageRequest) (domain.Garage, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Garage{}, domain.ErrInvalidName
	}
	bays := req.Bays
	if bays == 0 {
		bays = 1
	}
	if bays < 0 {
		return domain.Garage{}, domain.ErrInvalidBays
	}

	now := s.clock.Now()
	garage := domain.Garage{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		Bays:      bays,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &garage); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Garage{}, domain.ErrSlugTaken
		}
		return domain.Garage{}, err
	}

	if s.auditSvc != nil {
		targetID := garage.ID.String()
		_ = s.auditSvc.AuditLog(ctx, &garage.ID, "", nil, "garage.created", "garage", &targetID, map[string]any{
			"slug": garage.Slug,
		})
	}
	return garage, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Garage, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return domain.Garage{}, domain.ErrInvalidID
	}
	garage, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return domain.Garage{}, err
	}
	if garage == nil {
		return domain.Garage{}, domain.ErrNotFound
	}
	return *garage, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Garage, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Garage, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}
