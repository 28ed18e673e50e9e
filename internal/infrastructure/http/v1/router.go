// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/security"
	"stockledger/internal/domain/audit"
	"stockledger/internal/engine"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Engine provides the inventory ledger services
	Engine *engine.Engine

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Auditor records successful mutations and serves GET /audit; nil
	// disables the trail
	Auditor audit.Trail

	// HealthChecks are probed by /health/ready
	HealthChecks map[string]handlers.HealthCheck

	// CORSOrigins is the browser allowlist; empty with AllowAllOrigins unset
	// disables CORS headers
	CORSOrigins     []string
	AllowAllOrigins bool

	// Development enables gin debug mode
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if c, ok := corsConfig(cfg); ok {
		router.Use(cors.New(c))
	}
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator)) // 1. Validate JWT
		protected.Use(middleware.Scope())                // 2. Resolve access scope for domain layer

		registerInventoryRoutes(protected.Group("/inventory"), cfg)
	}

	return router
}

func corsConfig(cfg RouterConfig) (cors.Config, bool) {
	if len(cfg.CORSOrigins) == 0 && !cfg.AllowAllOrigins {
		return cors.Config{}, false
	}
	c := cors.DefaultConfig()
	if cfg.AllowAllOrigins {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORSOrigins
	}
	c.AddAllowHeaders("Authorization", middleware.HeaderRequestID, middleware.HeaderTraceID)
	c.AddExposeHeaders("Content-Disposition", middleware.HeaderRequestID, middleware.HeaderTraceID)
	c.MaxAge = 12 * time.Hour
	return c, true
}

// registerInventoryRoutes registers the ledger, document intake, period and
// reporting endpoints.
func registerInventoryRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	var auditor audit.Auditor
	var auditReader audit.Reader
	if cfg.Auditor != nil {
		auditor, auditReader = cfg.Auditor, cfg.Auditor
	}
	base := handlers.NewBaseHandler(auditor)
	eng := cfg.Engine

	record := middleware.RequirePermission(security.PermissionRecordEvents)
	read := middleware.RequirePermission(security.PermissionReadReports)
	closePeriod := middleware.RequirePermission(security.PermissionClosePeriod)
	readOrClose := middleware.RequireAnyPermission(security.PermissionReadReports, security.PermissionClosePeriod)

	events := handlers.NewEventsHandler(base, eng.Recorder)
	rg.POST("/events", record, events.Record)

	docs := handlers.NewDocumentsHandler(base, eng.Documents)
	{
		rg.POST("/goods-receipts/announce", record, docs.AnnounceReceipt)
		rg.POST("/goods-receipts/post", record, docs.PostReceipt)
		rg.POST("/orders/deplete", record, docs.Deplete)
		rg.POST("/waste", record, docs.Waste)
		rg.POST("/transfers/dispatch", record, docs.DispatchTransfer)
		rg.POST("/transfers/receive", record, docs.ReceiveTransfer)
		rg.POST("/stocktakes/open", record, docs.OpenStocktake)
		rg.POST("/stocktakes/finalize", record, docs.FinalizeStocktake)
	}

	periods := handlers.NewPeriodsHandler(base, eng.Periods, eng.Valuation)
	{
		g := rg.Group("/periods")
		g.POST("", record, periods.Ensure)
		g.GET("", read, periods.List)
		g.GET("/:id", read, periods.Get)
		g.GET("/:id/preclose", readOrClose, periods.Preclose)
		g.POST("/:id/close", closePeriod, periods.Close)
		g.GET("/:id/history", read, periods.History)
		g.GET("/:id/valuation", read, periods.Valuation)
		g.GET("/:id/movements", read, periods.Movements)
	}

	journals := handlers.NewJournalsHandler(base, eng.Poster)
	rg.GET("/journals", read, journals.List)

	auditLog := handlers.NewAuditHandler(base, auditReader)
	rg.GET("/audit", read, auditLog.History)
}
