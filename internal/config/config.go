// Package config loads application settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingJWTSecret is returned when JWT_SECRET is not configured.
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Migrate  bool
}

// DSN builds a libpq-compatible connection string.
func (c Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Redis holds the connection settings shared by the task queue and the
// analytics cache. An empty Addr disables both.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Config is the full application configuration.
type Config struct {
	Port              string
	Environment       string
	Store             string
	DB                Database
	Redis             Redis
	JWTSecret         string
	AdminRoles        []string
	RoleGrants        map[string][]string
	AdminOverbook     bool
	AnalyticsCacheTTL time.Duration
	ExportXLSX        bool
	ExportTimezone    string
	CORSOrigins       []string
	SeedUsersFile     string
}

// Load reads the configuration. A .env file in the working directory is
// loaded first if present; real environment variables take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("STORE", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "eventbooking")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("MIGRATE", false)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ADMIN_ROLES", "admin,event_manager")
	v.SetDefault("ROLE_GRANTS", "")
	v.SetDefault("ADMIN_OVERBOOK", false)
	v.SetDefault("ANALYTICS_CACHE_TTL", "60s")
	v.SetDefault("EXPORT_XLSX", true)
	v.SetDefault("EXPORT_TIMEZONE", "UTC")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	grants, err := parseGrants(v.GetString("ROLE_GRANTS"))
	if err != nil {
		return nil, fmt.Errorf("ROLE_GRANTS: %w", err)
	}

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		Store:       strings.ToLower(v.GetString("STORE")),
		DB: Database{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			Migrate:  v.GetBool("MIGRATE"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWTSecret:         v.GetString("JWT_SECRET"),
		AdminRoles:        splitList(v.GetString("ADMIN_ROLES")),
		RoleGrants:        grants,
		AdminOverbook:     v.GetBool("ADMIN_OVERBOOK"),
		AnalyticsCacheTTL: v.GetDuration("ANALYTICS_CACHE_TTL"),
		ExportXLSX:        v.GetBool("EXPORT_XLSX"),
		ExportTimezone:    v.GetString("EXPORT_TIMEZONE"),
		CORSOrigins:       splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		SeedUsersFile:     v.GetString("SEED_USERS_FILE"),
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	if cfg.Store != "postgres" && cfg.Store != "memory" {
		return nil, fmt.Errorf("STORE must be postgres or memory, got %q", cfg.Store)
	}
	if _, err := time.LoadLocation(cfg.ExportTimezone); err != nil {
		return nil, fmt.Errorf("EXPORT_TIMEZONE: %w", err)
	}
	return cfg, nil
}

// ExportLocation returns the time zone used to render export timestamps.
func (c *Config) ExportLocation() *time.Location {
	loc, err := time.LoadLocation(c.ExportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// parseGrants reads "role=cap,cap;role=cap" into a role to capabilities map.
func parseGrants(raw string) (map[string][]string, error) {
	grants := make(map[string][]string)
	for _, entry := range strings.Split(raw, ";") {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		role, caps, ok := strings.Cut(entry, "=")
		role = strings.TrimSpace(role)
		if !ok || role == "" {
			return nil, fmt.Errorf("entry %q must look like role=capability,...", entry)
		}
		grants[role] = append(grants[role], splitList(caps)...)
	}
	return grants, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
