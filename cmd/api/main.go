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
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/loyalty-ledger/internal/activity"
	"github.com/fairyhunter13/loyalty-ledger/internal/config"
	"github.com/fairyhunter13/loyalty-ledger/internal/handler"
	"github.com/fairyhunter13/loyalty-ledger/internal/repository"
	"github.com/fairyhunter13/loyalty-ledger/internal/service"
	"github.com/fairyhunter13/loyalty-ledger/internal/validator"
	"github.com/fairyhunter13/loyalty-ledger/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.ConnectRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	// Repositories
	repos := service.Repositories{
		Accounts:     repository.NewAccountRepository(pool),
		Rewards:      repository.NewRewardRepository(pool),
		Requests:     repository.NewRedeemRequestRepository(pool),
		Vouchers:     repository.NewVoucherRepository(pool),
		Transactions: repository.NewTransactionRepository(pool),
	}
	activityRepo := repository.NewActivityRepository(pool)
	repos.Activities = activityRepo

	// Activity sinks: log always, queue or direct insert, kafka when enabled
	recorders := activity.Multi{activity.NewLogRecorder()}

	var riverClient *river.Client[pgx.Tx]
	if cfg.Queue.Enabled {
		riverClient = startQueue(ctx, pool, cfg.Queue.MaxWorkers, activityRepo)
		recorders = append(recorders, activity.NewQueueRecorder(riverClient))
	} else {
		recorders = append(recorders, activity.NewStoreRecorder(activityRepo))
	}

	var publisher *activity.KafkaPublisher
	if cfg.Kafka.Enabled {
		publisher = activity.NewKafkaPublisher(activity.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		recorders = append(recorders, publisher)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing activities to kafka")
	}

	// Services
	clock := service.SystemClock{}
	ledgerService := service.NewLedgerService(pool, repos, recorders, clock)
	catalogService := service.NewCatalogService(repos, recorders, clock)
	redemptionService := service.NewRedemptionService(pool, repos, recorders, clock)
	statsService := service.NewStatsService(repos)

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Loyalty Ledger",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // 1MB
	})

	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	validate := validator.New()

	health := handler.NewHealthHandler(pool)
	if cfg.Kafka.Enabled {
		health.WithCheck("kafka", handler.PingFunc(activity.PingBrokers(cfg.Kafka.Brokers)))
	}

	handler.RegisterRoutes(app, handler.Handlers{
		Accounts:    handler.NewAccountHandler(ledgerService, statsService, validate),
		Rewards:     handler.NewRewardHandler(catalogService, validate),
		Redemptions: handler.NewRedemptionHandler(redemptionService, validate),
		Health:      health,
	})

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

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Drain sinks before the pool goes away; queued jobs still need it
	if riverClient != nil {
		if err := riverClient.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error stopping job queue")
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("error closing kafka writer")
		}
	}

	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("server stopped")
}

// startQueue migrates the River tables and starts workers that persist activities.
func startQueue(ctx context.Context, pool *pgxpool.Pool, maxWorkers int, store activity.Store) *river.Client[pgx.Tx] {
	driver := riverpgxv5.New(pool)

	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create queue migrator")
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate queue tables")
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, activity.NewWorker(store))

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create queue client")
	}
	if err := client.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start queue workers")
	}

	log.Info().Int("max_workers", maxWorkers).Msg("activity queue started")
	return client
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
