package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/afbrilian/mincommerce-sub000/internal/auth"
	"github.com/afbrilian/mincommerce-sub000/internal/cache"
	"github.com/afbrilian/mincommerce-sub000/internal/config"
	"github.com/afbrilian/mincommerce-sub000/internal/handler"
	"github.com/afbrilian/mincommerce-sub000/internal/queue"
	"github.com/afbrilian/mincommerce-sub000/internal/repository"
	"github.com/afbrilian/mincommerce-sub000/internal/service"
	"github.com/afbrilian/mincommerce-sub000/internal/validator"
	"github.com/afbrilian/mincommerce-sub000/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// One Redis client serves both the status cache and the queue backend.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	statusCache := cache.NewWithClient(rdb, cfg.Cache.SaleTTL(), cfg.Cache.PurchaseStatusTTL())
	if err := statusCache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// Queue backends are registered by name and selected from configuration.
	factory := queue.NewFactory()
	factory.Register("redis", func() (queue.Queue, error) {
		return queue.NewRedisQueue(rdb, queue.RedisOptions{
			MaxAttempts:       cfg.Queue.MaxAttempts,
			InitialBackoff:    cfg.Queue.InitialBackoff(),
			Retention:         cfg.Queue.JobRetention(),
			VisibilityTimeout: cfg.Queue.VisibilityTimeout(),
		}), nil
	}, true)

	q, err := factory.Open(cfg.Queue.Backend)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open queue backend")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "MinCommerce Flash Sale API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator
	validate := validator.New()

	// Initialize components (layered architecture)
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL())

	userRepo := repository.NewUserRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	stockRepo := repository.NewStockRepository(pool)
	saleRepo := repository.NewSaleRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)

	authService := service.NewAuthService(userRepo, tokens, cfg.Auth.AdminEmails)
	saleService := service.NewSaleService(saleRepo, productRepo, stockRepo, statusCache)
	purchaseService := service.NewPurchaseService(q, statusCache, saleService,
		cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window(), cfg.Worker.AvgServiceTime())
	statsService := service.NewStatsService(saleRepo, productRepo, stockRepo, orderRepo)

	authHandler := handler.NewAuthHandler(authService, validate)
	saleHandler := handler.NewSaleHandler(saleService)
	purchaseHandler := handler.NewPurchaseHandler(purchaseService)
	adminHandler := handler.NewAdminHandler(saleService, statsService, validate)
	healthHandler := handler.NewHealthHandler(pool, statusCache)

	// Health routes
	app.Get("/health", healthHandler.Check)
	app.Get("/health/ready", healthHandler.Ready)
	app.Get("/health/live", healthHandler.Live)

	// Auth routes
	app.Post("/auth/login", authHandler.Login)
	app.Post("/auth/verify", authHandler.Verify)

	// Public sale status
	app.Get("/flash-sale/status", saleHandler.Status)

	// Purchase routes (authenticated user)
	app.Post("/purchase", tokens.RequireUser(), purchaseHandler.Purchase)
	app.Get("/purchase/status", tokens.RequireUser(), purchaseHandler.Status)
	app.Get("/purchase/job/:jobId", tokens.RequireUser(), purchaseHandler.Job)

	// Admin routes
	app.Post("/admin/flash-sale", tokens.RequireAdmin(), adminHandler.UpsertSale)
	app.Get("/admin/flash-sale/:id", tokens.RequireAdmin(), adminHandler.GetSale)
	app.Get("/admin/flash-sale/:id/stats", tokens.RequireAdmin(), adminHandler.GetStats)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close backends AFTER server shutdown (even if shutdown timed out)
	if err := q.Close(); err != nil {
		log.Error().Err(err).Msg("error closing queue")
	}
	if err := statusCache.Close(); err != nil {
		log.Error().Err(err).Msg("error closing redis client")
	}
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
