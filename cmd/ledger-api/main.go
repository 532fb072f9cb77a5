package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/driving-school-ledger/api/swagger"
	"github.com/noah-isme/driving-school-ledger/internal/handler"
	internalmiddleware "github.com/noah-isme/driving-school-ledger/internal/middleware"
	"github.com/noah-isme/driving-school-ledger/internal/repository"
	"github.com/noah-isme/driving-school-ledger/internal/service"
	"github.com/noah-isme/driving-school-ledger/pkg/cache"
	"github.com/noah-isme/driving-school-ledger/pkg/config"
	"github.com/noah-isme/driving-school-ledger/pkg/database"
	"github.com/noah-isme/driving-school-ledger/pkg/export"
	"github.com/noah-isme/driving-school-ledger/pkg/logger"
	corsmiddleware "github.com/noah-isme/driving-school-ledger/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/driving-school-ledger/pkg/middleware/requestid"
)

// @title Driving School Tuition Ledger API
// @version 1.0.0
// @description Installment scheduling, payment settlement and financial summaries for driving-school enrollments.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Idempotency.Enabled {
		redisClient, err = cache.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, idempotent replay disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	location := cfg.Ledger.Location()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	installmentRepo := repository.NewInstallmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	transactor := database.NewTransactor(db, database.IsolationLevel(cfg.Ledger.TxIsolation))
	scheduler := service.NewInstallmentScheduler(cfg.Ledger.SingleDueDays)
	ledgerSvc := service.NewLedgerService(transactor, enrollmentRepo, installmentRepo, paymentRepo, scheduler, metrics, validate, logr, service.LedgerConfig{
		DefaultInstallments: cfg.Ledger.DefaultInstallments,
		Location:            location,
	})
	summarySvc := service.NewSummaryService(enrollmentRepo, installmentRepo, paymentRepo, location, logr)
	exportSvc := service.NewExportService(logr, export.NewCSVExporter(), export.NewPDFExporter(), export.NewXLSXExporter())
	reportSvc := service.NewReportService(summarySvc, service.NewReportViewBuilder(cfg.Reports.MaxRows), exportSvc, validate, logr)
	idempotencySvc := service.NewIdempotencyService(cacheRepo, metrics, cfg.Idempotency.TTL, logr, cfg.Idempotency.Enabled && redisClient != nil)
	tokens := service.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Routes{
		Ledger:    handler.NewLedgerHandler(ledgerSvc, idempotencySvc),
		Summaries: handler.NewSummaryHandler(summarySvc),
		Reports:   handler.NewReportHandler(reportSvc),
		Auth:      internalmiddleware.JWT(tokens),
		Audit: func(action, resource string) gin.HandlerFunc {
			return internalmiddleware.Audit(auditRepo, logr, action, resource)
		},
		Logger: logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "tx_isolation", cfg.Ledger.TxIsolation)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
