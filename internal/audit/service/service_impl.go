package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	auditcontext "github.com/smallbiznis/garageflow/internal/auditcontext"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	obslogger "github.com/smallbiznis/garageflow/internal/observability/logger"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"github.com/smallbiznis/garageflow/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
	unknownTarget   = "unknown"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// AuditLog appends one entry. Garage and actor fall back to the values the
// request middleware placed on ctx.
func (s *Service) AuditLog(ctx context.Context, garageID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	entry := &auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		GarageID:   garageFor(ctx, garageID),
		Action:     action,
		TargetType: orDefault(strings.TrimSpace(targetType), unknownTarget),
		TargetID:   trimmed(targetID),
		Metadata:   requestMetadata(ctx, metadata),
		IPAddress:  nonEmpty(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:  nonEmpty(auditcontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.clock.Now(),
	}
	entry.ActorType, entry.ActorID = actorFor(ctx, strings.TrimSpace(actorType), actorID)

	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("audit insert failed",
			zap.String("action", action),
			zap.String("target_type", entry.TargetType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	garageID, ok := garagecontext.GarageIDFromContext(ctx)
	if !ok {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidGarage
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	cursor, err := decodePageToken(req.PageToken)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	pageSize := clampPageSize(req.PageSize)

	rows, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		GarageID:   garageID,
		Action:     strings.TrimSpace(req.Action),
		TargetType: strings.TrimSpace(req.TargetType),
		TargetID:   strings.TrimSpace(req.TargetID),
		ActorType:  strings.TrimSpace(req.ActorType),
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	rows, info := pagination.BuildCursorInfo(rows, pageSize, encodePageToken)

	resp := auditdomain.ListAuditLogResponse{
		CursorInfo: info,
		AuditLogs:  make([]auditdomain.AuditLog, 0, len(rows)),
	}
	for _, row := range rows {
		if row != nil {
			resp.AuditLogs = append(resp.AuditLogs, *row)
		}
	}
	return resp, nil
}

func decodePageToken(token string) (*auditdomain.AuditCursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, auditdomain.ErrInvalidPageToken
	}
	return &auditdomain.AuditCursor{ID: id, CreatedAt: createdAt}, nil
}

func encodePageToken(row *auditdomain.AuditLog) string {
	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        row.ID.String(),
		CreatedAt: row.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return ""
	}
	return token
}

func clampPageSize(size int) int {
	switch {
	case size <= 0:
		return defaultPageSize
	case size > maxPageSize:
		return maxPageSize
	default:
		return size
	}
}

func requestMetadata(ctx context.Context, metadata map[string]any) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for key, value := range metadata {
		if key != "" {
			out[key] = value
		}
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		out["request_id"] = requestID
	}
	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		out["correlation_id"] = cid
	}
	return out
}

func garageFor(ctx context.Context, explicit *snowflake.ID) *snowflake.ID {
	if explicit != nil && *explicit != 0 {
		return explicit
	}
	if id, ok := garagecontext.GarageIDFromContext(ctx); ok {
		return &id
	}
	return nil
}

func actorFor(ctx context.Context, actorType string, actorID *string) (string, *string) {
	if actorType != "" {
		return actorType, trimmed(actorID)
	}
	ctxType, ctxID := auditcontext.ActorFromContext(ctx)
	if ctxType == "" {
		return string(auditdomain.ActorTypeSystem), trimmed(actorID)
	}
	if id := trimmed(actorID); id != nil {
		return ctxType, id
	}
	return ctxType, nonEmpty(ctxID)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	return nonEmpty(strings.TrimSpace(*value))
}

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
