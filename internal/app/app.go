// Package app wires the budget engine's stores, services and HTTP routes.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"famledger/internal/cache"
	"famledger/internal/database"
	_ "famledger/internal/docs" // Import swagger docs
	"famledger/internal/handlers"
	"famledger/internal/middleware"
	"famledger/internal/repository"
	"famledger/internal/services"
)

// Options tunes the engine.
type Options struct {
	SweepConcurrency   int
	AggregationTimeout time.Duration
	CacheSize          int
	CacheTTL           time.Duration
	MaintenanceAPIKey  string
}

// App holds the engine's services.
type App struct {
	DB          *gorm.DB
	Cache       *services.ActiveBudgetCache
	Invalidator *services.CacheInvalidator
	Generator   *services.PeriodGenerator
	Sweeper     *services.Sweeper
	Budgets     services.BudgetServicer
	Maintenance services.MaintenanceServicer
	Audit       services.AuditServicer

	maintenanceKey string
}

// New builds the engine on db. Observers receive every scope change in
// addition to the local cache invalidator.
func New(db *gorm.DB, opts Options, observers ...services.ScopeObserver) *App {
	if opts.CacheSize < 1 {
		opts.CacheSize = 1024
	}

	budgetStore := repository.NewBudgetStore(db)
	ledgerStore := repository.NewLedgerStore(db)
	spend := repository.NewSpendAggregator(db)
	audit := services.NewAuditService(db)

	activeCache := cache.NewLRUCache[*services.ActiveBudgets](opts.CacheSize, opts.CacheTTL)
	invalidator := services.NewCacheInvalidator(activeCache)
	observers = append([]services.ScopeObserver{invalidator}, observers...)

	generator := services.NewPeriodGenerator(budgetStore, ledgerStore, spend, audit, opts.AggregationTimeout, observers...)
	sweeper := services.NewSweeper(budgetStore, generator, opts.SweepConcurrency)

	return &App{
		DB:          db,
		Cache:       activeCache,
		Invalidator: invalidator,
		Generator:   generator,
		Sweeper:     sweeper,
		Budgets: services.NewBudgetService(services.BudgetServiceDeps{
			Budgets:            budgetStore,
			Ledger:             ledgerStore,
			Spend:              spend,
			Directory:          repository.NewDirectory(db),
			Periods:            generator,
			Cache:              activeCache,
			Observers:          observers,
			AggregationTimeout: opts.AggregationTimeout,
		}),
		Maintenance:    services.NewMaintenanceService(generator, ledgerStore, sweeper),
		Audit:          audit,
		maintenanceKey: opts.MaintenanceAPIKey,
	}
}

// Router builds the HTTP API.
func (a *App) Router() *gin.Engine {
	budgetHandler := handlers.NewBudgetHandler(a.Budgets, a.Audit)
	maintenanceHandler := handlers.NewMaintenanceHandler(a.Maintenance, a.Audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/api/health", a.health)

	v1 := router.Group("/api/v1")

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	budgets := protected.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("/active", budgetHandler.GetActiveBudgets)
	budgets.GET("/rollover-history", budgetHandler.GetRolloverHistory)
	budgets.PUT("/:id/category-budgets", budgetHandler.UpdateCategoryBudgets)

	protected.GET("/families/:id/custodial-budgets", budgetHandler.GetCustodialBudgets)

	maintenance := v1.Group("/maintenance")
	maintenance.Use(middleware.MaintenanceAuthMiddleware(a.maintenanceKey))
	maintenance.POST("/close-and-advance", maintenanceHandler.CloseAndAdvance)
	maintenance.POST("/sweep", maintenanceHandler.Sweep)
	maintenance.POST("/reconcile", maintenanceHandler.Reconcile)

	return router
}

// health reports whether the database is reachable.
func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := database.Ping(ctx, a.DB); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
