package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apihttp "github.com/spec-kit/dispute-engine/internal/api/http"
	"github.com/spec-kit/dispute-engine/internal/api/http/handlers"
	"github.com/spec-kit/dispute-engine/internal/auth"
	"github.com/spec-kit/dispute-engine/internal/bridge"
	"github.com/spec-kit/dispute-engine/internal/config"
	"github.com/spec-kit/dispute-engine/internal/directory"
	"github.com/spec-kit/dispute-engine/internal/events"
	"github.com/spec-kit/dispute-engine/internal/observability"
	"github.com/spec-kit/dispute-engine/internal/persistence"
	"github.com/spec-kit/dispute-engine/internal/repository"
	"github.com/spec-kit/dispute-engine/internal/service"
	"github.com/spec-kit/dispute-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	postgres, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer postgres.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, postgres.PoolHandle(), logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := postgres.PoolHandle()
	disputeRepo := repository.NewDisputeRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	evidenceRepo := repository.NewEvidenceRepository(pool)
	offerRepo := repository.NewOfferRepository(pool)
	jobs := directory.NewPgJobDirectory(pool)

	dispatcher := events.NewInMemoryDispatcher()
	paymentBridge := bridge.NewLoggingBridge(logger)
	emitter := bridge.NewEmitter(paymentBridge, redis, cfg.Engine.IdempotencyTTL(), logger)

	disputeService := service.NewDisputeService(service.DisputeDependencies{
		DisputeRepo:  disputeRepo,
		MessageRepo:  messageRepo,
		EvidenceRepo: evidenceRepo,
		OfferRepo:    offerRepo,
		Jobs:         jobs,
		Dispatcher:   dispatcher,
	})
	settlementService := service.NewSettlementService(service.SettlementDependencies{
		DisputeService: disputeService,
		DisputeRepo:    disputeRepo,
		OfferRepo:      offerRepo,
		Emitter:        emitter,
		Dispatcher:     dispatcher,
		DefaultTTL:     cfg.Engine.DefaultOfferTTL(),
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService, logger)

	escalateAfter := time.Duration(cfg.Engine.EscalateAfterDays) * 24 * time.Hour
	sweeper := worker.NewSweeper(settlementService, disputeService, cfg.Engine.SweepInterval(), escalateAfter, logger)
	go sweeper.Run(ctx)

	retryWorker := worker.NewSettlementRetryWorker(emitter, cfg.Engine.SweepInterval(), logger)
	go retryWorker.Run(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})

	apihttp.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	apihttp.RegisterRoutes(app, apihttp.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, postgres, redis),
		Disputes:       handlers.NewDisputesHandler(disputeService),
		Offers:         handlers.NewOffersHandler(settlementService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
