package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/afbrilian/mincommerce-sub000/internal/cache"
	"github.com/afbrilian/mincommerce-sub000/internal/config"
	"github.com/afbrilian/mincommerce-sub000/internal/queue"
	"github.com/afbrilian/mincommerce-sub000/internal/repository"
	"github.com/afbrilian/mincommerce-sub000/internal/worker"
	"github.com/afbrilian/mincommerce-sub000/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	statusCache := cache.NewWithClient(rdb, cfg.Cache.SaleTTL(), cfg.Cache.PurchaseStatusTTL())
	if err := statusCache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

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

	saleRepo := repository.NewSaleRepository(pool)
	stockRepo := repository.NewStockRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)

	purchaseWorker := worker.NewPurchaseWorker(pool, saleRepo, stockRepo, orderRepo,
		statusCache, cfg.Worker.Timeout())
	if err := purchaseWorker.Register(q, cfg.Worker.Concurrency); err != nil {
		log.Fatal().Err(err).Msg("failed to start purchase workers")
	}

	log.Info().
		Int("concurrency", cfg.Worker.Concurrency).
		Str("backend", cfg.Queue.Backend).
		Msg("purchase worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal, draining workers")

	// Close waits for in-flight jobs; each one reaches a terminal state.
	if err := q.Close(); err != nil {
		log.Error().Err(err).Msg("error closing queue")
	}
	if err := statusCache.Close(); err != nil {
		log.Error().Err(err).Msg("error closing redis client")
	}
	pool.Close()
	log.Info().Msg("worker stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
