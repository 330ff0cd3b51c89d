package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/ibistek-uty/incubation-api/internal/api/http"
	"github.com/ibistek-uty/incubation-api/internal/api/http/handlers"
	"github.com/ibistek-uty/incubation-api/internal/auth"
	"github.com/ibistek-uty/incubation-api/internal/config"
	"github.com/ibistek-uty/incubation-api/internal/events"
	"github.com/ibistek-uty/incubation-api/internal/observability"
	"github.com/ibistek-uty/incubation-api/internal/persistence"
	"github.com/ibistek-uty/incubation-api/internal/repository"
	"github.com/ibistek-uty/incubation-api/internal/service"
	"github.com/ibistek-uty/incubation-api/internal/worker"
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

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(dispatcher, logger)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)

	codec := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL(), nil)
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:          userRepo,
		PasswordResetRepo: resetRepo,
		TokenCodec:        codec,
		Dispatcher:        dispatcher,
		BcryptCost:        cfg.Auth.BcryptCost,
		ResetTTL:          cfg.Auth.ResetTTL(),
	})
	userService := service.NewUserService(userRepo, dispatcher, cfg.Auth.BcryptCost)
	gate := auth.NewGate(codec)

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		CORSOrigin:  cfg.App.CORSOrigin,
		Timeout:     cfg.App.RequestTimeout(),
		Development: cfg.App.Env == "development",
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
		APIPrefix:   cfg.App.APIPrefix,
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:        handlers.NewAuthHandler(authService, codec.TTL()),
		Users:       handlers.NewUsersHandler(userService),
		Gate:        gate,
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
