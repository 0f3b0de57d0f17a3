package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/user-directory/internal/api/http"
	"github.com/spec-kit/user-directory/internal/api/http/handlers"
	"github.com/spec-kit/user-directory/internal/auth"
	"github.com/spec-kit/user-directory/internal/config"
	"github.com/spec-kit/user-directory/internal/events"
	"github.com/spec-kit/user-directory/internal/observability"
	"github.com/spec-kit/user-directory/internal/persistence"
	"github.com/spec-kit/user-directory/internal/repository"
	"github.com/spec-kit/user-directory/internal/service"
	"github.com/spec-kit/user-directory/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	userService := service.NewUserService(*cfg, service.UserDependencies{
		UserRepo:   userRepo,
		Validator:  service.NewValidator(),
		Dispatcher: dispatcher,
		Cache:      redis.Client,
		Logger:     logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
		Redis:      redis.Client,
		Logger:     logger,
	})
	auditService := service.NewAuditService(dispatcher, logger, cfg.Audit)
	worker.StartAuditWorker(auditService)

	if err := authService.EnsureBootstrapAdmin(ctx); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
