package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userhub/accounts/internal/api"
	"github.com/userhub/accounts/internal/auth"
	"github.com/userhub/accounts/internal/cache"
	"github.com/userhub/accounts/internal/config"
	"github.com/userhub/accounts/internal/db"
	"github.com/userhub/accounts/internal/health"
	"github.com/userhub/accounts/internal/logger"
	"github.com/userhub/accounts/internal/metrics"
	"github.com/userhub/accounts/internal/users"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logger.SetDefault(logger.New(&logger.Config{
		Output:   os.Stdout,
		Level:    logger.ParseLevel(cfg.LogLevel),
		Redactor: logger.DefaultRedactor(),
	}))
	log := logger.Default().WithComponent("server")

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Error(ctx, "failed to connect to database", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		log.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	if err != nil {
		log.Error(ctx, "failed to create token signer", err)
		os.Exit(1)
	}

	m := metrics.Default()
	userRepo := db.NewUserRepository(database)
	tokenRepo := db.NewTokenRepository(database)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	authService := auth.NewService(userRepo, tokenRepo, hasher, signer).WithMetrics(m)

	// Redis is optional; without it profiles are read from the database.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		profileCache, err := cache.New(cfg.RedisAddr)
		if err != nil {
			log.Warn(ctx, "redis unavailable, profile cache disabled", map[string]interface{}{
				"addr":  cfg.RedisAddr,
				"error": err.Error(),
			})
		} else {
			defer profileCache.Close()
			redisClient = profileCache.Client()
			authService.WithProfileCache(profileCache, cfg.ProfileCacheTTL)
		}
	}

	userService := users.NewService(userRepo, tokenRepo, hasher).WithProfileInvalidator(authService)

	checker := health.NewChecker(&health.CheckerConfig{
		DB:      database.DB,
		Redis:   redisClient,
		Version: cfg.Version,
		Timeout: 5 * time.Second,
	})

	janitor := auth.NewJanitor(tokenRepo, cfg.TokenCleanupInterval).WithMetrics(m)
	janitor.Start()

	router := api.NewRouter(api.Deps{
		AuthHandlers:   auth.NewHandlers(authService),
		UserHandlers:   users.NewHandlers(userService),
		HealthHandlers: health.NewHandler(checker),
		Signer:         signer,
		Metrics:        m,
		Logger:         logger.Default().WithComponent("http"),
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting server", map[string]interface{}{
			"addr":    cfg.ServerAddr,
			"version": cfg.Version,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-stop:
		log.Info(ctx, "shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case err := <-serverErr:
		if err != nil {
			log.Error(ctx, "server failed", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", err)
		exitCode = 1
	}
	if err := janitor.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "token janitor shutdown failed", err)
		exitCode = 1
	}

	log.Info(ctx, "server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
