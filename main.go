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

	"github.com/urfave/cli/v2"

	"github.com/msomdec/calendar-api/internal/config"
	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/handler"
	"github.com/msomdec/calendar-api/internal/oauth"
	"github.com/msomdec/calendar-api/internal/repository/postgres"
	"github.com/msomdec/calendar-api/internal/repository/redis"
	"github.com/msomdec/calendar-api/internal/repository/sqlite"
	"github.com/msomdec/calendar-api/internal/service"
	"github.com/msomdec/calendar-api/internal/telemetry"
)

func main() {
	app := &cli.App{
		Name:  "calendar-api",
		Usage: "Personal calendar HTTP API.",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Apply migrations and start the HTTP server.",
		Action: func(c *cli.Context) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			return serve(c.Context, cfg)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations and exit.",
		Action: func(c *cli.Context) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			store, err := openStore(c.Context, cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Migrate(c.Context)
		},
	}
}

// setup loads configuration and installs the default logger.
func setup() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	logOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config) (domain.Store, error) {
	if cfg.UsesPostgres() {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		slog.Info("using postgres store")
		return db, nil
	}

	db, err := sqlite.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	slog.Info("using sqlite store", "path", cfg.DatabaseURL)
	return db, nil
}

func serve(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	states := store.OAuthStates()
	if cfg.RedisAddr != "" {
		rdb, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		states = redis.NewStateStore(rdb)
		slog.Info("oauth states kept in redis", "addr", cfg.RedisAddr)
	}

	tokens := service.NewTokenService(cfg.SecretKey, cfg.AccessTokenTTL)
	eventService := service.NewEventService(store.Events())
	limiter := service.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst)
	defer limiter.Stop()

	providers := oauthProviders(cfg)
	slog.Info("oauth providers configured", "providers", providers.Names())

	router := handler.NewRouter(handler.Deps{
		Auth:        service.NewAuthService(store.Users(), tokens, cfg.BcryptCost),
		Events:      eventService,
		Calendar:    service.NewCalendarService(eventService),
		OAuth:       service.NewOAuthService(providers, states, store.Users(), tokens, cfg.OAuthStateTTL),
		Limiter:     limiter,
		DB:          store,
		Tracer:      telemetry.Tracer(),
		FrontendURL: cfg.FrontendURL,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// oauthProviders registers only the providers with credentials configured.
func oauthProviders(cfg config.Config) *oauth.Registry {
	var providers []oauth.Provider
	if cfg.GoogleEnabled() {
		providers = append(providers, oauth.NewGoogle(oauth.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.CallbackURL("google"),
		}))
	}
	if cfg.GitHubEnabled() {
		providers = append(providers, oauth.NewGitHub(oauth.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.CallbackURL("github"),
		}))
	}
	return oauth.NewRegistry(providers...)
}
