package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	"github.com/smallbiznis/garageflow/internal/audit/repository"
	auditcontext "github.com/smallbiznis/garageflow/internal/auditcontext"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	"github.com/smallbiznis/garageflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	db := testutil.NewDB(t, &auditdomain.AuditLog{})
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Clock: clk,
		Repo:  repository.Provide(),
	}), clk
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	svc, _ := newTestService(t)
	garageID := snowflake.ID(10)
	ctx := garagecontext.WithGarageID(context.Background(), garageID)
	ctx = auditcontext.WithActor(ctx, "user", "42")
	ctx = auditcontext.WithRequestID(ctx, "req-1")

	target := "99"
	require.NoError(t, svc.AuditLog(ctx, nil, "", nil, "inventory.adjusted", "inventory_item", &target, map[string]any{"mode": "DECREASE"}))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "42", *entry.ActorID)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, "DECREASE", entry.Metadata["mode"])
}

func TestAuditLogRequiresAction(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.AuditLog(context.Background(), nil, "", nil, " ", "x", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginatesWithCursor(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := garagecontext.WithGarageID(context.Background(), snowflake.ID(10))
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, nil, "system", nil, "jobsheet.started", "job_sheet", nil, nil))
		clk.Advance(time.Minute)
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
}

func TestListRejectsMissingGarage(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidGarage)
}

func TestListFiltersByActionAndTimeRange(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := garagecontext.WithGarageID(context.Background(), snowflake.ID(10))

	require.NoError(t, svc.AuditLog(ctx, nil, "", nil, "booking.created", "booking", nil, nil))
	clk.Advance(time.Hour)
	require.NoError(t, svc.AuditLog(ctx, nil, "", nil, "booking.cancelled", "booking", nil, nil))
	clk.Advance(time.Hour)
	require.NoError(t, svc.AuditLog(ctx, nil, "", nil, "booking.created", "booking", nil, nil))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "booking.created"})
	require.NoError(t, err)
	assert.Len(t, resp.AuditLogs, 2)

	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	resp, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "booking.cancelled", resp.AuditLogs[0].Action)
	assert.Equal(t, "system", resp.AuditLogs[0].ActorType)
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := garagecontext.WithGarageID(context.Background(), snowflake.ID(10))

	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{PageToken: "not-a-token"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}

func TestAuditLogDefaultsTargetType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := garagecontext.WithGarageID(context.Background(), snowflake.ID(10))
	blank := "  "

	require.NoError(t, svc.AuditLog(ctx, nil, "user", &blank, "garage.updated", "", &blank, nil))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "unknown", resp.AuditLogs[0].TargetType)
	assert.Nil(t, resp.AuditLogs[0].TargetID)
	assert.Nil(t, resp.AuditLogs[0].ActorID)
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, defaultPageSize, clampPageSize(0))
	assert.Equal(t, 10, clampPageSize(10))
	assert.Equal(t, maxPageSize, clampPageSize(1000))
}
