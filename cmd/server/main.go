package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/erp/clinicsync/docs"
	"github.com/erp/clinicsync/internal/application/ingest"
	recon "github.com/erp/clinicsync/internal/application/reconciliation"
	"github.com/erp/clinicsync/internal/infrastructure/cache"
	"github.com/erp/clinicsync/internal/infrastructure/config"
	"github.com/erp/clinicsync/internal/infrastructure/erp"
	"github.com/erp/clinicsync/internal/infrastructure/fhirclient"
	"github.com/erp/clinicsync/internal/infrastructure/keylock"
	"github.com/erp/clinicsync/internal/infrastructure/logger"
	"github.com/erp/clinicsync/internal/infrastructure/migration"
	"github.com/erp/clinicsync/internal/infrastructure/persistence"
	"github.com/erp/clinicsync/internal/infrastructure/scheduler"
	"github.com/erp/clinicsync/internal/infrastructure/storage"
	"github.com/erp/clinicsync/internal/infrastructure/telemetry"
	"github.com/erp/clinicsync/internal/interfaces/http/handler"
	"github.com/erp/clinicsync/internal/interfaces/http/middleware"
	"github.com/erp/clinicsync/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

//	@title			Clinic Sync API
//	@version		1.0
//	@description	Reconciles clinical order events from a FHIR server into ERP sale orders.

//	@contact.name	Integration Team
//	@contact.url	https://github.com/erp/clinicsync

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Service token with the "events" scope. Format: "Bearer {token}"

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	// Mirror logs to the collector when enabled
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log := telemetry.Bridge(baseLog, logProvider, serviceName)
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Clinic Sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing, metrics and profiling
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       serviceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeAddress,
		ApplicationName: serviceName,
		ProfileTypes:    cfg.Telemetry.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Telemetry.ProfilingEnabled && cfg.Telemetry.SpanProfiles {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles unavailable", zap.Error(err))
		}
	}

	// Journal database
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(logger.NewGormLogger(log,
			logger.MapGormLogLevel(cfg.Database.LogLevel),
			logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))),
		persistence.WithTracing(telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        cfg.Database.Driver,
		}, log),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := prepareSchema(db, &cfg.Database, log); err != nil {
		log.Fatal("Failed to prepare journal schema", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))
	journal := persistence.NewGormJournalRepository(db.DB)

	// Redis backs delivery de-duplication and visit locks across instances
	redisClient, err := cache.Connect(ctx, cache.RedisConfig{
		Enabled:       cfg.Redis.Enabled,
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		AllowFallback: cfg.Redis.AllowFallback,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis", zap.Error(err))
			}
		}()
	}
	idempotency := cache.NewIdempotencyStore(redisClient)
	defer func() {
		if err := idempotency.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()
	locker := keylock.New(redisClient, log)

	deadLetters, s3Store, err := newDeadLetterStore(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize dead-letter storage", zap.Error(err))
	}

	// Upstream clients
	erpClient, err := erp.NewClient(&erp.Config{
		BaseURL:        cfg.ERP.URL,
		Database:       cfg.ERP.Database,
		Username:       cfg.ERP.Username,
		Password:       cfg.ERP.Password,
		TimeoutSeconds: cfg.ERP.TimeoutSeconds,
	})
	if err != nil {
		log.Fatal("Failed to create ERP client", zap.Error(err))
	}
	recordStore := erp.NewStore(erpClient, erp.NewSessionProvider(erpClient, 0), log)

	fhir, err := fhirclient.NewClient(&fhirclient.Config{
		BaseURL:             cfg.FHIR.URL,
		Username:            cfg.FHIR.Username,
		Password:            cfg.FHIR.Password,
		TimeoutSeconds:      cfg.FHIR.TimeoutSeconds,
		ObservationPageSize: cfg.FHIR.ObservationPageSize,
	})
	if err != nil {
		log.Fatal("Failed to create FHIR client", zap.Error(err))
	}

	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  meterProvider.Meter("clinicsync.sync"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to register sync metrics", zap.Error(err))
	}

	serviceQuantity, err := decimal.NewFromString(cfg.Reconciliation.DefaultServiceQuantity)
	if err != nil {
		log.Fatal("Invalid default service quantity", zap.Error(err))
	}
	dispatcher := recon.NewDispatcher(recordStore, fhir, recon.Options{
		Extract: recon.ExtractOptions{
			DefaultServiceUnitRef:  cfg.Reconciliation.DefaultServiceUnitRef,
			DefaultServiceQuantity: serviceQuantity,
		},
		EnrichmentCode:  cfg.Reconciliation.EnrichmentCode,
		EnrichmentField: cfg.Reconciliation.EnrichmentField,
		AbsentSentinel:  cfg.Reconciliation.AbsentSentinel,
	}, syncMetrics, log)

	// Keyed worker pool serializes deliveries per visit
	pool, err := scheduler.NewKeyedPool(scheduler.PoolConfig{
		Workers:    cfg.Pipeline.Workers,
		QueueSize:  cfg.Pipeline.QueueSize,
		JobTimeout: cfg.Pipeline.JobTimeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to create worker pool", zap.Error(err))
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatal("Failed to start worker pool", zap.Error(err))
	}
	log.Info("Worker pool started",
		zap.Int("workers", cfg.Pipeline.Workers),
		zap.Int("queue_size", cfg.Pipeline.QueueSize),
	)

	collectCtx, stopCollect := context.WithCancel(ctx)
	defer stopCollect()
	if meterProvider.IsEnabled() {
		syncMetrics.StartQueueDepthCollection(collectCtx, pool, cfg.Telemetry.QueueDepthInterval)
	}

	prefix := cfg.Storage.Prefix
	ingestService := ingest.NewService(dispatcher, pool, locker, journal,
		ingest.Options{
			LockTTL:       cfg.Pipeline.LockTTL,
			DedupeEnabled: cfg.Pipeline.DedupeEnabled,
			DedupeTTL:     cfg.Pipeline.DedupeTTL,
		},
		ingest.WithFetcher(fhir),
		ingest.WithIdempotencyStore(idempotency),
		ingest.WithDeadLetterStore(deadLetters, func(at time.Time, correlationKey, deliveryID string) string {
			return storage.DeadLetterKey(prefix, at, correlationKey, deliveryID)
		}),
		ingest.WithMetrics(syncMetrics),
		ingest.WithLogger(log),
	)

	var retention *scheduler.RetentionTrigger
	if cfg.Retention.Enabled {
		retention, err = scheduler.NewRetentionTrigger(scheduler.RetentionConfig{
			Enabled:       cfg.Retention.Enabled,
			Schedule:      cfg.Retention.Schedule,
			RetentionDays: cfg.Retention.RetentionDays,
			CheckInterval: cfg.Retention.CheckInterval,
		}, journal, log)
		if err != nil {
			log.Fatal("Failed to create retention trigger", zap.Error(err))
		}
		if err := retention.Start(ctx); err != nil {
			log.Fatal("Failed to start retention trigger", zap.Error(err))
		}
		log.Info("Journal retention started",
			zap.String("schedule", cfg.Retention.Schedule),
			zap.Int("retention_days", cfg.Retention.RetentionDays),
		)
	}

	// Initialize HTTP handlers
	eventHandler := handler.NewEventHandler(ingestService)
	reconciliationHandler := handler.NewReconciliationHandler(ingestService)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.Telemetry.ServiceVersion,
		readinessChecks(db, redisClient, s3Store)...)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.DeliveryID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: serviceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Enabled:       cfg.Telemetry.MetricsEnabled,
	}))
	profilingCfg := middleware.DefaultProfilingConfig()
	profilingCfg.Enabled = cfg.Telemetry.ProfilingEnabled
	engine.Use(middleware.ProfilingWithConfig(profilingCfg))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	// Probes stay outside the authenticated API group
	router.RegisterProbes(engine, systemHandler)

	var ingressAuth gin.HandlerFunc
	if cfg.Ingress.AuthEnabled {
		ingressAuth = middleware.IngressAuth(middleware.IngressAuthConfig{
			Secret: []byte(cfg.Ingress.JWTSecret),
			Issuer: cfg.Ingress.Issuer,
			Logger: log,
		})
	}

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
		}, ingressAuth),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	var routerOpts []router.RouterOption
	if ingressAuth != nil {
		routerOpts = append(routerOpts, router.WithAPIMiddleware(ingressAuth))
	} else {
		log.Warn("Ingress authentication disabled")
	}
	r := router.NewRouter(engine, routerOpts...)
	r.Register(router.EventRoutes(eventHandler))
	r.Register(router.ReconciliationRoutes(reconciliationHandler))
	r.Register(router.SystemRoutes(systemHandler))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("base_path", r.BasePath()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Drain accepted deliveries before closing their dependencies
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping worker pool", zap.Error(err))
	}
	if retention != nil {
		if err := retention.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping retention trigger", zap.Error(err))
		}
	}
	stopCollect()
	syncMetrics.Stop()

	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		baseLog.Error("Error shutting down log exporter", zap.Error(err))
	}
}

// prepareSchema creates the sqlite journal table, or applies the embedded
// migrations on postgres when asked to.
func prepareSchema(db *persistence.Database, cfg *config.DatabaseConfig, log *zap.Logger) error {
	if cfg.Driver != "postgres" {
		return db.EnsureSchema()
	}
	if !cfg.MigrateOnStart {
		return nil
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, "", log)
	if err != nil {
		return err
	}
	return m.Up()
}

// newDeadLetterStore returns the S3 archive when storage is enabled and an
// in-process archive otherwise. The S3 store is also returned for readiness.
func newDeadLetterStore(
	ctx context.Context,
	cfg *config.StorageConfig,
	log *zap.Logger,
) (ingest.DeadLetterStore, *storage.S3DeadLetterStore, error) {
	if !cfg.Enabled {
		log.Warn("Object storage disabled, dead letters are kept in memory")
		return storage.NewMemoryDeadLetterStore(), nil, nil
	}
	store, err := storage.NewS3DeadLetterStore(ctx, cfg, storage.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

func readinessChecks(
	db *persistence.Database,
	redisClient *redis.Client,
	s3Store *storage.S3DeadLetterStore,
) []handler.ReadinessCheck {
	checks := []handler.ReadinessCheck{{
		Name:  "database",
		Check: func(context.Context) error { return db.Ping() },
	}}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	if s3Store != nil {
		checks = append(checks, handler.ReadinessCheck{
			Name:  "storage",
			Check: s3Store.Ping,
		})
	}
	return checks
}
