package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/viagem-certa/service-trip/internal/application"
	"github.com/viagem-certa/service-trip/internal/config"
	"github.com/viagem-certa/service-trip/internal/database"
	"github.com/viagem-certa/service-trip/internal/estimate"
	tripEvents "github.com/viagem-certa/service-trip/internal/events"
	"github.com/viagem-certa/service-trip/internal/handler"
	"github.com/viagem-certa/service-trip/internal/health"
	"github.com/viagem-certa/service-trip/internal/kafka"
	"github.com/viagem-certa/service-trip/internal/logger"
	"github.com/viagem-certa/service-trip/internal/middleware"
	"github.com/viagem-certa/service-trip/internal/repository"
	"go.uber.org/zap"
)

const serviceName = "service-trip"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("geocoder", cfg.EstimateConfig.Provider),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.TripModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(db, cfg.MigrationsPath, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize Redis for the geocode and route caches
	var rdb *redis.Client
	if cfg.RedisConfig.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer func() { _ = rdb.Close() }()
	}

	// Initialize the estimation pipeline
	estimator, err := buildEstimator(cfg, rdb, log)
	if err != nil {
		log.Fatal("failed to build estimator", zap.Error(err))
	}

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize application service
	tripRepo := repository.NewGormTripRepository(db)
	tripService := application.NewTripService(
		tripRepo,
		estimator,
		kafkaProducer,
		log,
		cfg.EstimateConfig.InlineTimeout,
	)

	// Initialize and start the estimate backfill consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "trip-estimate-backfill"
	backfillConsumer := tripEvents.NewEstimateBackfillConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		tripService,
		log,
	)
	defer func() { _ = backfillConsumer.Close() }()

	go func() {
		log.Info("starting estimate backfill consumer")
		if err := backfillConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("estimate backfill consumer error", zap.Error(err))
		}
	}()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check and metrics routes
	checks := map[string]health.Checker{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	health.NewHandler(serviceName, checks).RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Register routes
	handler.NewEstimateHandler(tripService).RegisterRoutes(&router.RouterGroup)
	handler.NewLiveEstimateHandler(estimator, log,
		estimate.WithDebounce(cfg.EstimateConfig.Debounce),
		estimate.WithDisplayDuration(cfg.EstimateConfig.DisplayDuration),
		estimate.WithTimeout(cfg.EstimateConfig.RunTimeout),
	).RegisterRoutes(&router.RouterGroup)
	handler.NewTripHandler(tripService).RegisterRoutes(&router.RouterGroup)
	handler.NewAdminTripHandler(tripService).RegisterRoutes(&router.RouterGroup)

	// Create HTTP server. WriteTimeout stays above the inline estimate budget.
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.EstimateConfig.InlineTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
