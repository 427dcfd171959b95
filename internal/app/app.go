// Package app holds the wiring shared by the API server and the worker.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/config"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/database"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/repository"
)

// NewLogger returns a JSON logger in production and a text logger
// otherwise, and installs it as the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	log := slog.New(h).With("env", cfg.Environment)
	slog.SetDefault(log)
	return log
}

// Stores bundles the repository views used by the services.
type Stores struct {
	Events        repository.EventStore
	Users         repository.UserDirectory
	Registrations repository.RegistrationStore
	close         func()
}

// Close releases the underlying connections.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects the configured backend and applies the schema when
// MIGRATE is set. The in-memory backend is filled from SEED_USERS_FILE.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	if cfg.Store == "memory" {
		m := repository.NewMemory()
		if cfg.SeedUsersFile != "" {
			n, err := SeedUsers(m, cfg.SeedUsersFile)
			if err != nil {
				return nil, err
			}
			slog.Info("user directory seeded", "users", n, "file", cfg.SeedUsersFile)
		}
		return &Stores{Events: m.Events(), Users: m.Users(), Registrations: m.Registrations()}, nil
	}

	pool, err := database.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("schema applied")
	}
	return &Stores{
		Events:        repository.NewEventRepository(pool),
		Users:         repository.NewUserRepository(pool),
		Registrations: repository.NewRegistrationRepository(pool),
		close:         pool.Close,
	}, nil
}

// SeedUsers loads a JSON array of users from path into m and returns how
// many were added.
func SeedUsers(m *repository.Memory, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed users: %w", err)
	}
	var users []model.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return 0, fmt.Errorf("decode seed users %s: %w", path, err)
	}
	for i, u := range users {
		if u.ID == "" {
			return 0, fmt.Errorf("seed user %d has no id", i)
		}
		m.PutUser(u)
	}
	return len(users), nil
}

// RedisOpt returns the asynq connection options for cfg.
func RedisOpt(cfg config.Redis) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// NewRedis opens and pings a go-redis client.
func NewRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
