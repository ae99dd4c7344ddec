package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/paddock-market/internal/config"
	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/handler"
	"github.com/paddock-market/internal/kafka"
	"github.com/paddock-market/internal/memstore"
	"github.com/paddock-market/internal/postgres"
	"github.com/paddock-market/internal/redis"
	"github.com/paddock-market/internal/service"
	"github.com/paddock-market/internal/websocket"
	"github.com/paddock-market/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	catalogPath := flag.String("catalog", "", "Optional catalog file to seed riders and constructors")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Environment variables referenced by the config file may live in .env
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", "error", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger, cfg.Server.AllowedOrigins...)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize storage
	var (
		store  service.Store
		checks = map[string]handler.Pinger{}
	)
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		store = memstore.New()
	default:
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer postgresRepo.Close()
		logger.Info("connected to PostgreSQL")

		// Run database migrations
		if err := postgresRepo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		store = postgresRepo
		checks["postgres"] = postgresRepo
	}

	// Initialize the standings cache; scores are computed from storage without it
	var cache service.StandingsCache
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn("failed to connect to Redis, continuing without standings cache", "error", err)
	} else {
		standingsCache := redis.NewStandingsCache(redisClient, logger)
		defer standingsCache.Close()
		cache = standingsCache
		checks["redis"] = standingsCache
		logger.Info("connected to Redis")
	}

	// Initialize services
	scoringService := service.NewScoringService(store, cache, &cfg.Standings, wsHub, logger)
	catalogService := service.NewCatalogService(store, scoringService, logger)
	teamService := service.NewTeamService(store, cfg, scoringService, logger)
	marketService := service.NewMarketService(store, wsHub, logger)

	// Seed the catalog
	if *catalogPath != "" {
		if err := seedCatalog(ctx, catalogService, *catalogPath); err != nil {
			logger.Error("failed to seed catalog", "path", *catalogPath, "error", err)
			os.Exit(1)
		}
	}

	// Initialize pricing worker
	pricingWorker := worker.NewPricingWorker(marketService, cfg.SportNames(), &cfg.Pricing, logger)
	if cfg.Pricing.Enabled {
		if err := pricingWorker.Start(ctx); err != nil {
			logger.Error("failed to start pricing worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for bulk points imports
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, catalogService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(handler.Services{
		Catalog: catalogService,
		Scoring: scoringService,
		Teams:   teamService,
		Market:  marketService,
	}, wsHub, cfg.Server.AdminToken, logger)
	for name, p := range checks {
		httpHandler.AddReadinessCheck(name, p)
	}
	if cfg.Server.AdminToken == "" {
		logger.Warn("no admin token configured, administrative endpoints are disabled")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop pricing worker, letting an in-flight run finish
	if err := pricingWorker.Stop(); err != nil {
		logger.Error("failed to stop pricing worker", "error", err)
	}

	// Stop WebSocket hub
	wsHub.Stop()

	logger.Info("server stopped")
}

func seedCatalog(ctx context.Context, catalog *service.CatalogService, path string) error {
	file, err := config.LoadCatalog(path)
	if err != nil {
		return err
	}
	for _, sc := range file.Sports {
		constructors, riders := sc.Entities()
		if err := catalog.Seed(ctx, domain.SystemActor, sc.Sport, constructors, riders); err != nil {
			return fmt.Errorf("seeding %s: %w", sc.Sport, err)
		}
	}
	return nil
}
