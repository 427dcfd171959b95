// Command worker consumes registration notice tasks from Redis and hands
// the rendered messages to the mailer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/app"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/config"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/notify"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := app.NewLogger(cfg).With("component", "worker")

	if cfg.Redis.Addr == "" {
		return errors.New("REDIS_ADDR is required for the worker")
	}
	if cfg.Store == "memory" {
		return errors.New("the worker needs STORE=postgres to resolve users and events")
	}

	stores, err := app.OpenStores(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer stores.Close()

	srv := asynq.NewServer(app.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{notify.QueueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("task failed", "type", task.Type(), "error", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(notify.TypeRegistrationNotice,
		notify.NewHandler(stores.Users, stores.Events, notify.LogMailer{Log: log}, log))

	log.Info("worker started", "redis", cfg.Redis.Addr, "queue", notify.QueueName)
	// Run blocks until SIGINT or SIGTERM and drains in-flight tasks.
	if err := srv.Run(mux); err != nil {
		return fmt.Errorf("asynq server: %w", err)
	}
	return nil
}
