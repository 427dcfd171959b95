// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/hibiken/asynq"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/app"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/auth"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/cache"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/config"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/export"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/handler"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/notify"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// ── 1. Configuration and logging ─────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := app.NewLogger(cfg)

	// ── 2. Storage ───────────────────────────────────────────────────────
	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer stores.Close()
	log.Info("store ready", "backend", cfg.Store)

	// ── 3. Optional Redis-backed notifier and analytics cache ────────────
	var (
		notifier  service.Notifier = notify.Nop{}
		snapshots service.SnapshotCache
	)
	if cfg.Redis.Addr != "" {
		client := asynq.NewClient(app.RedisOpt(cfg.Redis))
		defer client.Close()
		notifier = notify.NewQueue(client)

		rdb, err := app.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		snapshots = cache.NewAnalytics(rdb, cfg.AnalyticsCacheTTL)
		log.Info("redis enabled", "addr", cfg.Redis.Addr)
	} else {
		log.Warn("REDIS_ADDR not set, notifications and analytics cache disabled")
	}

	// ── 4. Wire up layers ────────────────────────────────────────────────
	policy, err := auth.NewPolicy(cfg.AdminRoles).WithGrants(cfg.RoleGrants)
	if err != nil {
		return fmt.Errorf("role grants: %w", err)
	}

	regOpts := []service.Option{
		service.WithPolicy(service.Policy{AllowAdminOverbook: cfg.AdminOverbook}),
		service.WithNotifier(notifier),
		service.WithLogger(log),
	}
	if snapshots != nil {
		regOpts = append(regOpts, service.WithCache(snapshots))
	}

	router := handler.NewRouter(handler.Deps{
		Events:        service.NewEventService(stores.Events, stores.Registrations, stores.Users),
		Registrations: service.NewRegistrationService(stores.Registrations, regOpts...),
		Analytics:     service.NewAnalyticsService(stores.Events, stores.Registrations, stores.Users, snapshots),
		Exporter:      export.New(cfg.ExportLocation(), cfg.ExportXLSX),
		Policy:        policy,
		JWTSecret:     cfg.JWTSecret,
		CORSOrigins:   cfg.CORSOrigins,
		Log:           log,
	})

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
