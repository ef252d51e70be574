package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/user-access-service/internal/api/http"
	"github.com/spec-kit/user-access-service/internal/api/http/handlers"
	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/config"
	"github.com/spec-kit/user-access-service/internal/events"
	"github.com/spec-kit/user-access-service/internal/observability"
	"github.com/spec-kit/user-access-service/internal/persistence"
	"github.com/spec-kit/user-access-service/internal/repository"
	"github.com/spec-kit/user-access-service/internal/service"
	"github.com/spec-kit/user-access-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}
	revocations := auth.NewRedisRevocationStore(redis.Client, cfg.Redis.Timeout())
	metrics := observability.NewMetrics()

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	userService := service.NewUserService(userRepo, dispatcher, logger, cfg.Auth.BcryptCost)
	authService := service.NewAuthService(service.AuthDependencies{
		Identities:    userRepo,
		Verifier:      auth.BcryptVerifier{},
		Tokens:        tokens,
		Revocations:   revocations,
		Dispatcher:    dispatcher,
		Logger:        logger,
		RevokeTimeout: cfg.Redis.Timeout(),
	})

	if cfg.Auth.AdminEmail != "" {
		if err := userService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Fatal("failed to bootstrap admin", zap.Error(err))
		}
	}

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout(), httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		Auth:          handlers.NewAuthHandler(authService),
		Users:         handlers.NewUsersHandler(userService, authService),
		Authenticator: auth.NewAuthenticator(tokens, revocations, metrics, logger),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
