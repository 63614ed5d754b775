package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	"github.com/smallbiznis/garageflow/internal/auth"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectBooking       = "booking"
	ObjectJobSheet      = "job_sheet"
	ObjectDiagnosis     = "diagnosis"
	ObjectInventory     = "inventory"
	ObjectStockMovement = "stock_movement"
	ObjectInvoice       = "invoice"
	ObjectVHC           = "vhc"
	ObjectAuditLog      = "audit_log"
)

const (
	ActionBookingView   = "booking.view"
	ActionBookingCreate = "booking.create"
	ActionBookingUpdate = "booking.update"

	ActionJobSheetView   = "job_sheet.view"
	ActionJobSheetCreate = "job_sheet.create"
	ActionJobSheetWork   = "job_sheet.work"
	ActionJobSheetCancel = "job_sheet.cancel"

	ActionDiagnosisSubmit = "diagnosis.submit"
	ActionDiagnosisDecide = "diagnosis.decide"

	ActionInventoryView   = "inventory.view"
	ActionInventoryManage = "inventory.manage"

	ActionStockMovementView   = "stock_movement.view"
	ActionStockMovementCreate = "stock_movement.create"

	ActionInvoiceView   = "invoice.view"
	ActionInvoiceManage = "invoice.manage"

	ActionVHCView   = "vhc.view"
	ActionVHCCreate = "vhc.create"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	return newEnforcer(adapter)
}

// newEnforcer builds an enforcer with the role policies seeded. A nil adapter
// keeps policies in memory only.
func newEnforcer(adapter persist.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if adapter != nil {
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, principal auth.Principal, object string, action string) error {
	subject := subjectFor(principal)
	if subject == "" || !principal.Role.Valid() {
		return ErrInvalidActor
	}
	if principal.GarageID == 0 {
		return ErrInvalidGarage
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	domain := fmt.Sprintf("garage:%s", principal.GarageID.String())
	roleName := fmt.Sprintf("role:%s", principal.Role)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, principal, object, action)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role per subject and garage, matching the
// role carried by the caller's token.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, principal auth.Principal, object string, action string) {
	s.log.Info("authorization denied",
		zap.String("subject", principal.Subject),
		zap.String("role", string(principal.Role)),
		zap.String("action", action),
	)
	if s.auditSvc == nil {
		return
	}
	garageID := principal.GarageID
	actorID := principal.Subject
	targetID := "capability"
	if err := s.auditSvc.AuditLog(ctx, &garageID, string(auditdomain.ActorTypeUser), &actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"role":   string(principal.Role),
	}); err != nil {
		s.log.Warn("audit failed", zap.String("action", "authorization.denied"), zap.Error(err))
	}
}

func subjectFor(p auth.Principal) string {
	subject := strings.TrimSpace(p.Subject)
	if subject == "" {
		return ""
	}
	if p.Role == auth.RoleSystem {
		return "system:" + subject
	}
	return "user:" + subject
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	technician := [][2]string{
		{ObjectBooking, ActionBookingView},
		{ObjectJobSheet, ActionJobSheetView},
		{ObjectJobSheet, ActionJobSheetWork},
		{ObjectDiagnosis, ActionDiagnosisSubmit},
		{ObjectInventory, ActionInventoryView},
		{ObjectStockMovement, ActionStockMovementView},
		{ObjectInvoice, ActionInvoiceView},
		{ObjectVHC, ActionVHCView},
		{ObjectVHC, ActionVHCCreate},
	}
	reviewer := append([][2]string{
		{ObjectDiagnosis, ActionDiagnosisDecide},
	}, technician...)
	manager := append([][2]string{
		{ObjectBooking, ActionBookingCreate},
		{ObjectBooking, ActionBookingUpdate},
		{ObjectJobSheet, ActionJobSheetCreate},
		{ObjectJobSheet, ActionJobSheetCancel},
		{ObjectInventory, ActionInventoryManage},
		{ObjectStockMovement, ActionStockMovementCreate},
		{ObjectInvoice, ActionInvoiceManage},
		{ObjectAuditLog, ActionAuditLogView},
	}, reviewer...)

	grants := map[string][][2]string{
		"role:technician": technician,
		"role:reviewer":   reviewer,
		"role:manager":    manager,
		"role:owner":      manager,
		"role:system":     manager,
	}
	for role, perms := range grants {
		for _, perm := range perms {
			if _, err := enforcer.AddPolicy(role, perm[0], perm[1]); err != nil {
				return err
			}
		}
	}
	return nil
}
