package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/cache"
	"github.com/erp/reconciler/internal/infrastructure/config"
	"github.com/erp/reconciler/internal/infrastructure/lock"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/infrastructure/persistence"
	"github.com/erp/reconciler/internal/infrastructure/scheduler"
	"github.com/erp/reconciler/internal/infrastructure/telemetry"
	"github.com/erp/reconciler/internal/interfaces/http/handler"
	"github.com/erp/reconciler/internal/interfaces/http/middleware"
	"github.com/erp/reconciler/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			PO Reconciler API
//	@version		1.0
//	@description	Purchase-order and acceptance reconciliation ledger.
//	@BasePath		/api/v1

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// multipartOverhead is the body allowance on top of the upload size limit
const multipartOverhead = 1 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting PO reconciler",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel),
		logger.WithSlowThreshold(cfg.Database.SlowThreshold),
		logger.WithLargeResultThreshold(cfg.Database.LargeResultRows),
	)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	locker, redisClient, err := lock.NewFactory(cfg.Redis, cfg.Reconciliation,
		lock.WithLogger(log),
		lock.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create()
	if err != nil {
		log.Fatal("Failed to create pass lock", zap.Error(err))
	}
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, version, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, version, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Tracing shutdown failed", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, tracerProvider, telemetry.DBTracingConfig{
		DBName:         cfg.Database.DBName,
		SlowThreshold:  cfg.Database.SlowThreshold,
		QueryVariables: cfg.Telemetry.TraceSQLVariables,
	}); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	metrics, err := telemetry.NewReconciliationMetrics(meterProvider.Meter("reconciler"))
	if err != nil {
		log.Fatal("Failed to register reconciliation metrics", zap.Error(err))
	}

	scope := persistence.NewGormTransactionScope(db.DB).WithChunkSize(cfg.Reconciliation.ChunkSize)
	service := reconciliation.NewService(scope, locker, log,
		reconciliation.WithResolverCache(cache.NewResolverCache(cache.WithResolverCacheLogger(log))),
		reconciliation.WithMetrics(metrics),
		reconciliation.WithFetchLimit(cfg.Reconciliation.FetchLimit),
		reconciliation.WithDefaultUploader(cfg.Reconciliation.DefaultUploader),
	)
	reports := reconciliation.NewReportService(
		persistence.NewGormReportRepository(db.DB),
		persistence.NewGormMergedPORepository(db.DB),
		log,
	)

	uploadHandler := handler.NewUploadHandler(service, cfg.HTTP.MaxUploadSize)
	uploadKeys := cache.NewUploadKeyStore(redisClient)
	if closer, ok := uploadKeys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}
	uploadHandler.SetUploadKeyStore(uploadKeys, cfg.Reconciliation.UploadKeyTTL)
	mergeHandler := handler.NewMergeHandler(service)

	// Merge jobs and the sweep
	var jobs *scheduler.Scheduler
	var sweep *scheduler.SweepTrigger
	if cfg.Scheduler.Enabled {
		jobs = scheduler.NewScheduler(cfg.Scheduler, scheduler.NewMergeExecutor(service, log), log)
		if err := jobs.Start(ctx); err != nil {
			log.Fatal("Failed to start merge scheduler", zap.Error(err))
		}
		uploadHandler.SetMergeQueue(jobs, cfg.Reconciliation.MergeAfterUpload)
		mergeHandler.SetMergeQueue(jobs)

		if cfg.Scheduler.SweepEnabled {
			sweep, err = scheduler.NewSweepTrigger(cfg.Scheduler, jobs, log)
			if err != nil {
				log.Fatal("Invalid sweep schedule", zap.Error(err))
			}
			sweep.Start()
		}
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version)
	systemHandler.AddCheck("database", handler.PingerFunc(func(ctx context.Context) error {
		sqlDB, err := db.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}))
	if redisClient != nil {
		systemHandler.AddCheck("redis", handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: the request id must exist before the span and the
	// logger read it, and recovery must wrap everything after it.
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, tracerProvider)...)
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Secure(cfg.App.Env == "production"))
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.HTTPMetrics(meterProvider, log))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxUploadSize + multipartOverhead))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	router.RegisterAPI(r, router.Handlers{
		Upload:     uploadHandler,
		Merge:      mergeHandler,
		Resolution: handler.NewResolutionHandler(service),
		Ledger:     handler.NewLedgerHandler(reports),
		System:     systemHandler,
	})
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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if sweep != nil {
		if err := sweep.Stop(shutdownCtx); err != nil {
			log.Warn("Sweep trigger did not stop cleanly", zap.Error(err))
		}
	}
	if jobs != nil {
		if err := jobs.Stop(shutdownCtx); err != nil {
			log.Warn("Merge scheduler did not stop cleanly", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
