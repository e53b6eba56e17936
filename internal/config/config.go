// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port           string        `env:"PORT" envDefault:"8000"`
	DatabaseURL    string        `env:"DATABASE_URL" envDefault:"calendar.db"`
	SecretKey      string        `env:"SECRET_KEY"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"60m"`
	BcryptCost     int           `env:"BCRYPT_COST" envDefault:"12"`

	FrontendURL string   `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	BackendURL  string   `env:"BACKEND_URL" envDefault:"http://localhost:8000"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GitHubClientID     string        `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string        `env:"GITHUB_CLIENT_SECRET"`
	OAuthStateTTL      time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	LoginRate  float64 `env:"LOGIN_RATE" envDefault:"1"`
	LoginBurst int     `env:"LOGIN_BURST" envDefault:"5"`
	// TrustProxy reads client addresses from forwarding headers.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	OTelEndpoint string     `env:"OTEL_ENDPOINT"`
	LogLevel     slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and then parses the environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse builds a Config from the current environment and validates it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.FrontendURL}
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe default.
func (c Config) Validate() error {
	var errs []error
	switch {
	case c.SecretKey == "":
		errs = append(errs, errors.New("SECRET_KEY is required"))
	case len(c.SecretKey) < 32:
		errs = append(errs, errors.New("SECRET_KEY must be at least 32 characters for HMAC-SHA256 security"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.OAuthStateTTL <= 0 {
		errs = append(errs, errors.New("OAUTH_STATE_TTL must be positive"))
	}
	if c.LoginRate <= 0 || c.LoginBurst < 1 {
		errs = append(errs, errors.New("LOGIN_RATE must be positive and LOGIN_BURST at least 1"))
	}
	return errors.Join(errs...)
}

// UsesPostgres reports whether DatabaseURL names a PostgreSQL server
// rather than a SQLite file.
func (c Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// GoogleEnabled reports whether Google login is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// GitHubEnabled reports whether GitHub login is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// CallbackURL is the redirect URL registered with a provider.
func (c Config) CallbackURL(provider string) string {
	return c.BackendURL + "/auth/" + provider + "/callback"
}
