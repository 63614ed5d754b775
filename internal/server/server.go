package server

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/garageflow/internal/audit"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	"github.com/smallbiznis/garageflow/internal/auth"
	"github.com/smallbiznis/garageflow/internal/authorization"
	"github.com/smallbiznis/garageflow/internal/booking"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
	"github.com/smallbiznis/garageflow/internal/config"
	"github.com/smallbiznis/garageflow/internal/garage"
	garagedomain "github.com/smallbiznis/garageflow/internal/garage/domain"
	"github.com/smallbiznis/garageflow/internal/inventory"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	"github.com/smallbiznis/garageflow/internal/invoice"
	invoicedomain "github.com/smallbiznis/garageflow/internal/invoice/domain"
	"github.com/smallbiznis/garageflow/internal/jobsheet"
	jobsheetdomain "github.com/smallbiznis/garageflow/internal/jobsheet/domain"
	"github.com/smallbiznis/garageflow/internal/observability"
	obsmiddleware "github.com/smallbiznis/garageflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/garageflow/internal/observability/metrics"
	obstracing "github.com/smallbiznis/garageflow/internal/observability/tracing"
	"github.com/smallbiznis/garageflow/internal/ratelimit"
	"github.com/smallbiznis/garageflow/internal/vhc"
	vhcdomain "github.com/smallbiznis/garageflow/internal/vhc/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	auth.Module,
	authorization.Module,
	audit.Module,
	garage.Module,
	booking.Module,
	inventory.Module,
	invoice.Module,
	jobsheet.Module,
	vhc.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	registerJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

// registerJSONFieldNames makes binding errors name fields the way clients
// send them.
func registerJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return field.Name
	})
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	tokens       *auth.TokenService
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	garageSvc    garagedomain.Service
	bookingSvc   bookingdomain.Service
	jobSheetSvc  jobsheetdomain.Service
	inventorySvc inventorydomain.Service
	invoiceSvc   invoicedomain.Service
	vhcSvc       vhcdomain.Service
	obsMetrics   *obsmetrics.Metrics
	writeLimiter *ratelimit.WriteLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Tokens       *auth.TokenService
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	GarageSvc    garagedomain.Service
	BookingSvc   bookingdomain.Service
	JobSheetSvc  jobsheetdomain.Service
	InventorySvc inventorydomain.Service
	InvoiceSvc   invoicedomain.Service
	VHCSvc       vhcdomain.Service
	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
	WriteLimiter *ratelimit.WriteLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		tokens:       p.Tokens,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		garageSvc:    p.GarageSvc,
		bookingSvc:   p.BookingSvc,
		jobSheetSvc:  p.JobSheetSvc,
		inventorySvc: p.InventorySvc,
		invoiceSvc:   p.InvoiceSvc,
		vhcSvc:       p.VHCSvc,
		obsMetrics:   p.ObsMetrics,
		writeLimiter: p.WriteLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())
	write := s.WriteRateLimit()

	// -------- Garages & Bookings --------
	garages := api.Group("/garages/:garageId", s.GaragePathGuard())
	{
		garages.GET("", s.GetGarage)
		garages.GET("/bookings", s.authorize(authorization.ObjectBooking, authorization.ActionBookingView), s.ListBookings)
		garages.POST("/bookings", s.authorize(authorization.ObjectBooking, authorization.ActionBookingCreate), write, s.CreateBooking)
		garages.GET("/bookings/:id", s.authorize(authorization.ObjectBooking, authorization.ActionBookingView), s.GetBookingByID)
		garages.POST("/bookings/:id/status", s.authorize(authorization.ObjectBooking, authorization.ActionBookingUpdate), write, s.UpdateBookingStatus)
	}

	// -------- Job Sheets --------
	jobs := api.Group("/job-sheet")
	{
		jobs.GET("", s.authorize(authorization.ObjectJobSheet, authorization.ActionJobSheetView), s.ListJobSheets)
		jobs.POST("", s.authorize(authorization.ObjectJobSheet, authorization.ActionJobSheetCreate), write, s.CreateJobSheet)
		jobs.GET("/:id", s.authorize(authorization.ObjectJobSheet, authorization.ActionJobSheetView), s.GetJobSheetByID)
		jobs.GET("/:id/duration", s.authorize(authorization.ObjectJobSheet, authorization.ActionJobSheetView), s.GetJobSheetDuration)
		jobs.POST("/:id/start", s.authorize(authorization.ObjectJobSheet, authorization.ActionJobSheetWork), write, s.StartJobSheet)
		jobs.POST("/:id/pause", s.authorize(authorization.ObjectJobSheet, authorization.ActionJobSheetWork), write, s.PauseJobSheet)
		jobs.POST("/:id/resume", s.authorize(authorization.ObjectJobSheet, authorization.ActionJobSheetWork), write, s.ResumeJobSheet)
		jobs.POST("/:id/halt", s.authorize(authorization.ObjectJobSheet, authorization.ActionJobSheetWork), write, s.HaltJobSheet)
		jobs.POST("/:id/complete", s.authorize(authorization.ObjectJobSheet, authorization.ActionJobSheetWork), write, s.CompleteJobSheet)
		jobs.POST("/:id/cancel", s.authorize(authorization.ObjectJobSheet, authorization.ActionJobSheetCancel), write, s.CancelJobSheet)
		jobs.PUT("/:id/checklist/:itemId", s.authorize(authorization.ObjectJobSheet, authorization.ActionJobSheetWork), write, s.SetJobSheetChecklistItem)
		jobs.POST("/:id/diagnosis", s.authorize(authorization.ObjectDiagnosis, authorization.ActionDiagnosisSubmit), write, s.SubmitJobSheetDiagnosis)
		jobs.POST("/:id/approve", s.authorize(authorization.ObjectDiagnosis, authorization.ActionDiagnosisDecide), write, s.ApproveJobSheetDiagnosis)
		jobs.POST("/:id/reject", s.authorize(authorization.ObjectDiagnosis, authorization.ActionDiagnosisDecide), write, s.RejectJobSheetDiagnosis)
	}

	// -------- Inventory --------
	inventory := api.Group("/inventory")
	{
		inventory.GET("", s.authorize(authorization.ObjectInventory, authorization.ActionInventoryView), s.ListInventoryItems)
		inventory.POST("", s.authorize(authorization.ObjectInventory, authorization.ActionInventoryManage), write, s.CreateInventoryItem)
		inventory.POST("/availability", s.authorize(authorization.ObjectInventory, authorization.ActionInventoryView), s.CheckInventoryAvailability)
		inventory.GET("/:id", s.authorize(authorization.ObjectInventory, authorization.ActionInventoryView), s.GetInventoryItem)
		inventory.POST("/:id/deactivate", s.authorize(authorization.ObjectInventory, authorization.ActionInventoryManage), write, s.DeactivateInventoryItem)
		inventory.GET("/:id/movements", s.authorize(authorization.ObjectStockMovement, authorization.ActionStockMovementView), s.ListInventoryItemMovements)
		inventory.GET("/:id/verify", s.authorize(authorization.ObjectInventory, authorization.ActionInventoryView), s.VerifyInventoryItemLedger)
	}

	// -------- Stock Movements --------
	api.GET("/stock-movement", s.authorize(authorization.ObjectStockMovement, authorization.ActionStockMovementView), s.ListStockMovements)
	api.POST("/stock-movement", s.authorize(authorization.ObjectStockMovement, authorization.ActionStockMovementCreate), write, s.CreateStockMovement)

	// -------- Invoices --------
	invoices := api.Group("/invoices")
	{
		invoices.GET("", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListInvoices)
		invoices.GET("/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoiceByID)
		invoices.POST("/:id/send", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceManage), write, s.SendInvoice)
		invoices.POST("/:id/pay", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceManage), write, s.MarkInvoicePaid)
		invoices.POST("/:id/cancel", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceManage), write, s.CancelInvoice)
	}

	// -------- Vehicle Health Checks --------
	api.GET("/vhc/responses", s.authorize(authorization.ObjectVHC, authorization.ActionVHCView), s.ListVHCResponses)
	api.POST("/vhc/responses", s.authorize(authorization.ObjectVHC, authorization.ActionVHCCreate), write, s.CreateVHCResponse)
	api.GET("/vhc/responses/:id", s.authorize(authorization.ObjectVHC, authorization.ActionVHCView), s.GetVHCResponse)

	// -------- Audit --------
	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
