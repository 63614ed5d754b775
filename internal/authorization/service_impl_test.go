package authorization

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := newEnforcer(nil)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestRolePermissions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	garage := snowflake.ID(9)

	tech := auth.Principal{Subject: "t1", GarageID: garage, Role: auth.RoleTechnician}
	reviewer := auth.Principal{Subject: "r1", GarageID: garage, Role: auth.RoleReviewer}
	manager := auth.Principal{Subject: "m1", GarageID: garage, Role: auth.RoleManager}

	assert.NoError(t, svc.Authorize(ctx, tech, ObjectJobSheet, ActionJobSheetWork))
	assert.NoError(t, svc.Authorize(ctx, tech, ObjectDiagnosis, ActionDiagnosisSubmit))
	assert.ErrorIs(t, svc.Authorize(ctx, tech, ObjectDiagnosis, ActionDiagnosisDecide), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, tech, ObjectStockMovement, ActionStockMovementCreate), ErrForbidden)

	assert.NoError(t, svc.Authorize(ctx, reviewer, ObjectDiagnosis, ActionDiagnosisDecide))
	assert.ErrorIs(t, svc.Authorize(ctx, reviewer, ObjectInvoice, ActionInvoiceManage), ErrForbidden)

	assert.NoError(t, svc.Authorize(ctx, manager, ObjectInvoice, ActionInvoiceManage))
	assert.NoError(t, svc.Authorize(ctx, manager, ObjectAuditLog, ActionAuditLogView))
}

func TestRoleChangeReplacesGrouping(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	p := auth.Principal{Subject: "u1", GarageID: 3, Role: auth.RoleManager}
	require.NoError(t, svc.Authorize(ctx, p, ObjectInvoice, ActionInvoiceManage))

	p.Role = auth.RoleTechnician
	assert.ErrorIs(t, svc.Authorize(ctx, p, ObjectInvoice, ActionInvoiceManage), ErrForbidden)
}

func TestRolesAreScopedToGarage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Authorize(ctx, auth.Principal{Subject: "u2", GarageID: 1, Role: auth.RoleOwner}, ObjectInvoice, ActionInvoiceManage))
	assert.ErrorIs(t, svc.Authorize(ctx, auth.Principal{Subject: "u2", GarageID: 2, Role: auth.RoleTechnician}, ObjectInvoice, ActionInvoiceManage), ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	assert.ErrorIs(t, svc.Authorize(ctx, auth.Principal{GarageID: 1, Role: auth.RoleOwner}, ObjectVHC, ActionVHCView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, auth.Principal{Subject: "a", Role: auth.RoleOwner}, ObjectVHC, ActionVHCView), ErrInvalidGarage)
	assert.ErrorIs(t, svc.Authorize(ctx, auth.Principal{Subject: "a", GarageID: 1, Role: auth.RoleOwner}, "", ActionVHCView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, auth.Principal{Subject: "a", GarageID: 1, Role: auth.RoleOwner}, ObjectVHC, ""), ErrInvalidAction)
}
