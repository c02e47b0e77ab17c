// Package main is the entry point for the CappyChat reconciliation API.
//
// It loads configuration, connects the user store (Firestore, or the
// in-memory store for local development), builds the sweep lock (Redis when
// configured, in-process otherwise), wires the webhook processor and bulk
// sweeper, and serves HTTP with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cloudfirestore "cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/CyberBoyAyush/cappychat/internal/api/handlers"
	"github.com/CyberBoyAyush/cappychat/internal/billing"
	"github.com/CyberBoyAyush/cappychat/internal/config"
	"github.com/CyberBoyAyush/cappychat/internal/core"
	"github.com/CyberBoyAyush/cappychat/internal/lock"
	"github.com/CyberBoyAyush/cappychat/internal/reconcile"
	"github.com/CyberBoyAyush/cappychat/internal/store"
	fsstore "github.com/CyberBoyAyush/cappychat/internal/store/firestore"
)

// sweepLockKey is the Redis key guarding bulk sweeps across instances.
const sweepLockKey = "cappychat:sweep:lock"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("cappychat reconciliation API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	// User store: Firestore in real deployments, in-memory for local runs.
	var (
		prefStore store.PreferenceStore
		revoker   store.SessionRevoker
		closers   []func() error
	)
	if cfg.Firestore.UseMemoryStore || cfg.Firestore.ProjectID == "" {
		logger.Warn("using in-memory user store; data will not persist")
		mem := store.NewMemory()
		prefStore = mem
		revoker = mem
	} else {
		var opts []option.ClientOption
		if cfg.Firestore.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Firestore.CredentialsFile))
		}
		client, err := cloudfirestore.NewClient(ctx, cfg.Firestore.ProjectID, opts...)
		if err != nil {
			return fmt.Errorf("connecting to firestore: %w", err)
		}
		closers = append(closers, client.Close)

		fs, err := fsstore.New(client, fsstore.Config{
			UsersCollection:    cfg.Firestore.UsersCollection,
			SessionsCollection: cfg.Firestore.SessionsCollection,
		})
		if err != nil {
			return fmt.Errorf("building firestore store: %w", err)
		}
		prefStore = fs
		revoker = fs
	}

	// Circuit breaker in front of the store.
	resilient := store.NewResilient(prefStore)

	// Sweep lock: Redis for cross-instance exclusion, in-process fallback.
	var guard lock.SweepLock
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password.Unmask(),
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, rdb.Close)
		guard = lock.NewRedis(rdb, sweepLockKey, cfg.Redis.LockTTL)
	} else {
		logger.Warn("no redis configured; sweep lock only guards this instance")
		guard = lock.NewLocal()
	}

	catalog := billing.NewStaticTierCatalog()
	processor := billing.NewProcessor(resilient, catalog, cfg.Billing.RetryThreshold, logger)
	sweeper := reconcile.NewSweeper(
		resilient,
		revoker,
		catalog,
		guard,
		cfg.Sweep.PeriodDays,
		cfg.Sweep.PageSize,
		cfg.Sweep.Budget,
		logger,
	)

	webhookHandler := handlers.NewWebhookHandler(handlers.StripeVerifier{}, processor, cfg.Billing.WebhookSecret, logger)
	adminHandler := handlers.NewAdminHandler(sweeper, resilient, cfg.Security.AdminKey, logger)
	resetHandler := handlers.NewResetHandler(sweeper, cfg.Security.AdminKey, logger)

	srv, err := core.NewServer(logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.RouteRegistrars = append(srv.RouteRegistrars,
		webhookHandler.RegisterRoutes,
		adminHandler.RegisterRoutes,
		resetHandler.RegisterRoutes,
	)
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger, closers)
}

// runHTTPServer serves HTTP until a shutdown signal or server error, then
// drains in-flight requests and closes backend clients.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger, closers []func() error) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("backend client close error", "error", err)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured JSON logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
