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
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/fleetcab/cab-dispatch/internal/api/handlers"
	"github.com/fleetcab/cab-dispatch/internal/api/routes"
	"github.com/fleetcab/cab-dispatch/internal/config"
	"github.com/fleetcab/cab-dispatch/internal/realtime"
	"github.com/fleetcab/cab-dispatch/internal/service/dispatch"
	"github.com/fleetcab/cab-dispatch/internal/service/roadnet"
	"github.com/fleetcab/cab-dispatch/internal/storage/postgres"
	"github.com/fleetcab/cab-dispatch/pkg/cache"
	"github.com/fleetcab/cab-dispatch/pkg/database"
	"github.com/fleetcab/cab-dispatch/pkg/logger"
	"github.com/fleetcab/cab-dispatch/pkg/monitoring"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting FleetCab Dispatch Engine",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
	)

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
		LogLevel:   cfg.NewRelic.LogLevel,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized successfully",
			logger.String("app_name", cfg.NewRelic.AppName),
			logger.Bool("enabled", true))
	} else {
		appLogger.Info("New Relic APM disabled")
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cache.Config{
		Host:        cfg.Redis.Host,
		Port:        cfg.Redis.Port,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		MaxRetries:  cfg.Redis.MaxRetries,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
		ReadTimeout: cfg.Redis.ReadTimeout,
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
	}
	defer cache.Close(redisClient)

	appLogger.Info("Connected to Redis successfully")

	// Initialize PostgreSQL
	postgresDB, err := database.NewPostgresDB(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConnections,
		MaxIdle:  cfg.Database.MaxIdleConns,
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
	}
	defer postgresDB.Close()

	appLogger.Info("Connected to PostgreSQL successfully")

	vehicleRepo := postgres.NewVehicleRepo(postgresDB)
	tripRepo := postgres.NewTripRepo(postgresDB)
	riderRepo := postgres.NewRiderRepo(postgresDB)

	// Road network provider. The artifact is loaded lazily on the first
	// allocation so startup does not block on a large read.
	roadNetwork := roadnet.NewProvider(roadnet.Config{
		Path:        cfg.Dispatch.GraphPath,
		ReloadAfter: cfg.Dispatch.GraphReload,
	}, appLogger)

	// Realtime hub
	hub := realtime.NewHub(appLogger)

	// Dispatch coordinator
	coordinator := dispatch.NewCoordinator(
		vehicleRepo,
		tripRepo,
		riderRepo,
		roadNetwork,
		hub,
		appLogger,
		dispatch.Config{SearchRadiusKM: cfg.Dispatch.SearchRadiusKM},
	)

	// Location reports arriving over WebSocket flow into the coordinator.
	hub.SetLocationSink(coordinator)
	go hub.Run()

	// Initialize handlers with dependencies
	h := handlers.NewHandlers(coordinator, vehicleRepo, riderRepo, redisClient, hub, appLogger, nrApp, cfg)

	// Initialize Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Setup all routes
	var nrApplication *newrelic.Application
	if nrApp.IsEnabled() {
		nrApplication = nrApp.Application
	}
	routes.SetupRoutes(router, h, nrApplication)

	appLogger.Info("Routes configured successfully")

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	appLogger.Info("Server stopped gracefully")
}
