package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/kokitones-gif/redrive-backend-sub000/api/swagger"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/handler"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/middleware"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/models"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/repository"
	"github.com/kokitones-gif/redrive-backend-sub000/internal/service"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/cache"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/config"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/database"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/jobs"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/logger"
	corsmiddleware "github.com/kokitones-gif/redrive-backend-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/kokitones-gif/redrive-backend-sub000/pkg/middleware/requestid"
	"github.com/kokitones-gif/redrive-backend-sub000/pkg/storage"
)

// @title ReDrive API
// @version 0.1.0
// @description Driving lesson availability and booking engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Redis is an accelerator, not a dependency: availability resolution
	// falls back to the ledger when the cache is down.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, availability caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	capacityRepo := repository.NewSlotCapacityRepository(db)
	policyRepo := repository.NewWeekdayPolicyRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	availabilityService := service.NewAvailabilityService(capacityRepo, bookingRepo, policyRepo, cacheRepo, metricsService, validate, logr, cfg.Scheduling)
	policyService := service.NewWeekdayPolicyService(policyRepo, capacityRepo, cacheRepo, validate, logr, cfg.Scheduling)
	bookingService := service.NewBookingService(bookingRepo, capacityRepo, policyRepo, cacheRepo, metricsService, validate, logr, cfg.Scheduling)
	instructorService := service.NewInstructorService(instructorRepo, logr)

	var exportArchive *service.ExportArchive
	if cfg.Exports.Enabled {
		exportStore, err := storage.NewFileStore(cfg.Exports.Dir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export store", "error", err)
		}
		exportArchive = &service.ExportArchive{
			Store:  exportStore,
			Signer: storage.NewSigner(cfg.Exports.SignSecret, cfg.Exports.LinkTTL),
			TTL:    cfg.Exports.LinkTTL,
		}
	}
	exportService := service.NewExportService(bookingRepo, exportArchive, logr)

	sweeper := jobs.NewSweeper("booking-completion", func(ctx context.Context) error {
		_, err := bookingService.CompleteElapsed(ctx)
		return err
	}, jobs.SweeperConfig{Interval: cfg.Scheduling.CompletionSweepInterval, Logger: logr})

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	sweeper.Start(rootCtx)
	defer sweeper.Stop()

	if exportArchive != nil {
		exportCleanup := jobs.NewSweeper("export-cleanup", exportService.PurgeExpired,
			jobs.SweeperConfig{Interval: cfg.Exports.LinkTTL, Logger: logr})
		exportCleanup.Start(rootCtx)
		defer exportCleanup.Stop()
	}

	authHandler := handler.NewAuthHandler(authService)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService)
	policyHandler := handler.NewWeekdayPolicyHandler(policyService)
	bookingHandler := handler.NewBookingHandler(bookingService, exportService)
	instructorHandler := handler.NewInstructorHandler(instructorService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	protected.GET("/instructors", instructorHandler.List)
	protected.GET("/instructors/:instructorId", instructorHandler.Get)

	protected.GET("/instructors/:instructorId/availability", availabilityHandler.GetRange)
	protected.GET("/instructors/:instructorId/calendar", availabilityHandler.Calendar)
	protected.PUT("/instructors/:instructorId/availability",
		middleware.RBAC(string(models.RoleAdmin), "SELF"), availabilityHandler.SetSlot)

	protected.GET("/instructors/:instructorId/weekday-policy", policyHandler.Get)
	protected.PUT("/instructors/:instructorId/weekday-policy",
		middleware.RBAC(string(models.RoleAdmin), "SELF"), policyHandler.Set)

	protected.GET("/bookings", bookingHandler.List)
	protected.POST("/bookings", middleware.RequireRoles(models.RoleStudent), bookingHandler.Create)
	protected.PATCH("/bookings/:id", bookingHandler.Patch)
	if cfg.Exports.Enabled {
		protected.GET("/bookings/export",
			middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), bookingHandler.Export)
		// The signed token is the credential here, so no JWT middleware.
		api.GET("/bookings/export/download", bookingHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	rootCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
