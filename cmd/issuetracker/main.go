package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"finitefield.org/issuetracker-web/internal/authclient"
	"finitefield.org/issuetracker-web/internal/authform"
	"finitefield.org/issuetracker-web/internal/home"
	"finitefield.org/issuetracker-web/internal/httpserver"
	"finitefield.org/issuetracker-web/internal/i18n"
	"finitefield.org/issuetracker-web/internal/inflight"
	"finitefield.org/issuetracker-web/internal/platform/config"
	"finitefield.org/issuetracker-web/internal/platform/observability"
	"finitefield.org/issuetracker-web/internal/session"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", invalid.Fields())
		} else {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		}
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("issuetracker-web").With(zap.String("environment", cfg.Server.Environment))
	ctx = observability.WithLogger(ctx, logger)

	metrics := observability.NewMetrics()

	client, err := authclient.New(cfg.AuthAPI.BaseURL,
		authclient.WithTimeout(cfg.AuthAPI.Timeout),
		authclient.WithObserver(metrics),
	)
	if err != nil {
		logger.Fatal("failed to initialise auth client", zap.Error(err))
	}

	guard, closeGuard := buildGuard(ctx, cfg.Redis, logger)
	defer closeGuard()

	controller, err := authform.NewController(authform.ControllerDeps{
		Submitter: client,
		Guard:     guard,
		Metrics:   metrics,
	})
	if err != nil {
		logger.Fatal("failed to initialise auth controller", zap.Error(err))
	}

	hashKey := cfg.Session.HashKey
	if len(hashKey) == 0 {
		// Only reachable in the local environment; sessions do not survive restarts.
		logger.Warn("session hash key not set; generating an ephemeral key")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	sessions, err := session.NewManager(session.Config{
		CookieName:       cfg.Session.CookieName,
		HashKey:          hashKey,
		BlockKey:         cfg.Session.BlockKey,
		CookieSecure:     cfg.Session.CookieSecure,
		Lifetime:         cfg.Session.Lifetime,
		RememberLifetime: cfg.Session.RememberLifetime,
		IdleTimeout:      cfg.Session.IdleTimeout,
	})
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}

	bundle, err := i18n.Default(cfg.I18n.DefaultLocale)
	if err != nil {
		logger.Fatal("failed to load translations", zap.Error(err))
	}
	content, err := home.Default(cfg.I18n.DefaultLocale)
	if err != nil {
		logger.Fatal("failed to load home content", zap.Error(err))
	}

	flavor := authform.FlavorUnified
	if cfg.AuthAPI.LegacyLogin() {
		flavor = authform.FlavorLegacy
	}

	server, err := httpserver.New(httpserver.Config{
		Address:      cfg.Server.Address,
		Environment:  cfg.Server.Environment,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		Logger:       logger,
		Metrics:      metrics,
		Sessions:     sessions,
		Auth:         controller,
		LoginFlavor:  flavor,
		Translations: bundle,
		Home:         content,
	})
	if err != nil {
		logger.Fatal("failed to build http server", zap.Error(err))
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(
		zap.String("addr", server.Addr),
		zap.String("auth_api", cfg.AuthAPI.BaseURL),
		zap.String("login_flavor", string(flavor)),
	)
	go func() {
		serverLogger.Info("issuetracker web listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildGuard shares in-flight holds through Redis when configured and falls
// back to a process-local guard otherwise.
func buildGuard(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (inflight.Guard, func()) {
	if cfg.Addr == "" {
		logger.Info("redis not configured; using in-memory submission guard")
		return inflight.NewMemoryGuard(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// The guard fails open on backend errors, so startup continues.
		logger.Warn("redis ping failed", zap.String("addr", cfg.Addr), zap.Error(err))
	}

	closeFn := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis close error", zap.Error(err))
		}
	}
	return inflight.NewRedisGuard(rdb, cfg.InFlightTTL), closeFn
}
