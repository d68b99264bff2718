package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/infrastructure/auth"
	"github.com/stockledger/backend/internal/infrastructure/cache"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/event"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
	"github.com/stockledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
	"github.com/stockledger/backend/internal/interfaces/http/handler"
	"github.com/stockledger/backend/internal/interfaces/http/middleware"
	"github.com/stockledger/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting stock ledger backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing is optional; a disabled provider is a no-op.
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// The guard rejects any query on ledger tables that lacks a tenant
	// predicate. Repositories always scope explicitly; this is the net
	// underneath them.
	tenant.EnableGuard(db.DB)

	// Idempotency store for reservation and posting replays
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	)
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Collaborator read models and transactional scope
	txScope := persistence.NewGormTransactionScope(db.DB)
	productRegistry := persistence.NewGormProductRegistry(db.DB)
	locationResolver := persistence.NewGormLocationResolver(db.DB)

	// Event bus with the structured audit trail subscribed
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditLogHandler(log))

	// Application services
	ledgerService := inventoryapp.NewLedgerService(txScope, productRegistry)
	ledgerService.SetLocationResolver(locationResolver)
	ledgerService.SetEventPublisher(eventBus)

	reservationService := inventoryapp.NewReservationService(txScope, productRegistry)
	reservationService.SetIdempotencyStore(idempotencyStore)
	reservationService.SetEventPublisher(eventBus)

	stockTakeService := inventoryapp.NewStockTakeService(txScope, productRegistry)
	stockTakeService.SetEventPublisher(eventBus)

	adjustmentService := inventoryapp.NewAdjustmentService(txScope, productRegistry)
	adjustmentService.SetIdempotencyStore(idempotencyStore)
	adjustmentService.SetEventPublisher(eventBus)

	// JWT verification (tokens are minted by the identity service)
	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP handlers
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	reservationHandler := handler.NewReservationHandler(reservationService)
	stockTakeHandler := handler.NewStockTakeHandler(stockTakeService)
	adjustmentHandler := handler.NewAdjustmentHandler(adjustmentService)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.GET("/health", healthHandler(db))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		Logger:     log,
	}))

	// Lot registry, receipts, balances and the ledger itself
	ledgerRoutes := router.NewDomainGroup("ledger", "/inventory")
	ledgerRoutes.POST("/lots", ledgerHandler.RegisterLot)
	ledgerRoutes.GET("/lots", ledgerHandler.ListLots)
	ledgerRoutes.GET("/lots/expiring", ledgerHandler.ListExpiringLots)
	ledgerRoutes.POST("/receipts", ledgerHandler.ReceiveStock)
	ledgerRoutes.GET("/levels", ledgerHandler.ListLevels)
	ledgerRoutes.GET("/levels/lookup", ledgerHandler.GetLevel)
	ledgerRoutes.GET("/levels/audit", ledgerHandler.AuditLevel)
	ledgerRoutes.GET("/moves", ledgerHandler.ListMoves)

	// FEFO reservations
	reservationRoutes := router.NewDomainGroup("reservations", "/reservations")
	reservationRoutes.POST("", reservationHandler.Reserve)
	reservationRoutes.GET("", reservationHandler.List)
	reservationRoutes.GET("/:id", reservationHandler.Get)
	reservationRoutes.DELETE("/:id", reservationHandler.Release)

	// Stock take workflow
	stockTakeRoutes := router.NewDomainGroup("stock-takes", "/stock-takes")
	stockTakeRoutes.POST("", stockTakeHandler.Create)
	stockTakeRoutes.GET("", stockTakeHandler.List)
	stockTakeRoutes.GET("/:id", stockTakeHandler.Get)
	stockTakeRoutes.POST("/:id/begin", stockTakeHandler.BeginCounting)
	stockTakeRoutes.POST("/:id/counts", stockTakeHandler.SubmitCounts)
	stockTakeRoutes.PUT("/:id/lines/:line_id/count", stockTakeHandler.RecordCount)
	stockTakeRoutes.POST("/:id/finalize", stockTakeHandler.Finalize)
	stockTakeRoutes.POST("/:id/cancel", stockTakeHandler.Cancel)

	// Adjustment and scrap documents
	adjustmentRoutes := router.NewDomainGroup("adjustments", "/adjustments")
	adjustmentRoutes.POST("", adjustmentHandler.CreateDraft)
	adjustmentRoutes.POST("/:id/lines", adjustmentHandler.AddLines)
	adjustmentRoutes.GET("", adjustmentHandler.List)
	adjustmentRoutes.GET("/:id", adjustmentHandler.Get)
	adjustmentRoutes.GET("/:id/summary", adjustmentHandler.Summarize)
	adjustmentRoutes.POST("/:id/post", adjustmentHandler.Post)
	adjustmentRoutes.POST("/:id/cancel", adjustmentHandler.Cancel)

	r.Register(ledgerRoutes).
		Register(reservationRoutes).
		Register(stockTakeRoutes).
		Register(adjustmentRoutes)

	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports process and database health
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			reqLog := logger.GetGinLogger(c)
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
