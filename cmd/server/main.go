// Command server runs the keyportal HTTP server: the API key resolution
// endpoint and the login-gated profile page.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"

	"github.com/SebastienMelki/keyportal/internal/apikey"
	"github.com/SebastienMelki/keyportal/internal/gateway"
	"github.com/SebastienMelki/keyportal/internal/identity"
	"github.com/SebastienMelki/keyportal/internal/nats"
	"github.com/SebastienMelki/keyportal/internal/observability"
	"github.com/SebastienMelki/keyportal/internal/profile"
	"github.com/SebastienMelki/keyportal/internal/tokenfetch"
)

// Config holds all server configuration.
type Config struct {
	// LogLevel is the log level (debug, info, warn, error)
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LogFormat is the log format (json, text)
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP gateway configuration
	Gateway gateway.Config `envPrefix:""`

	// Key-management service configuration
	APIKey apikey.Config `envPrefix:""`

	// Identity header configuration
	Identity identity.Config `envPrefix:""`

	// Profile page configuration
	Profile profile.Config `envPrefix:""`

	// Token endpoint used by the profile page
	TokenFetch tokenfetch.Config `envPrefix:""`

	// NATS configuration
	NATS nats.Config `envPrefix:""`
}

func main() {
	loadDotEnv()

	// Load configuration from environment
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting keyportal server",
		"log_level", cfg.LogLevel,
		"http_addr", cfg.Gateway.Addr,
		"authapi_base_url", cfg.APIKey.BaseURL,
		"nats_enabled", cfg.NATS.Enabled,
	)

	if missing := cfg.APIKey.Missing(); len(missing) > 0 {
		logger.Warn("key-management settings are not set, resolution will fail upstream", "missing", missing)
	}
	if cfg.Profile.WidgetURL == "" {
		logger.Warn("RETOOL_APP_URL is not set, the profile page will not embed the widget")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Metrics
	obs, err := observability.New("keyportal")
	if err != nil {
		logger.Error("failed to initialize observability", "error", err)
		os.Exit(1)
	}

	// Key events are optional
	var (
		natsClient *nats.Client
		publisher  apikey.EventPublisher
	)
	if cfg.NATS.Enabled {
		natsClient, err = nats.NewClient(cfg.NATS, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()

		streamMgr := nats.NewStreamManager(natsClient.JetStream(), cfg.NATS.Stream, logger)
		if _, err := streamMgr.EnsureStream(ctx); err != nil {
			logger.Error("failed to ensure stream", "error", err)
			os.Exit(1)
		}

		publisher = nats.NewPublisher(natsClient.JetStream(), cfg.NATS.Stream.Name, cfg.NATS.PublishTimeout, logger)
	}

	server, err := gateway.NewServer(cfg.Gateway, obs.Metrics(), logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	if natsClient != nil {
		server.AddReadinessCheck("nats", natsClient)
	}

	obs.RegisterRoutes(server.Mux())

	if err := mountRoutes(cfg, server, publisher, obs.Metrics(), logger); err != nil {
		logger.Error("failed to mount routes", "error", err)
		os.Exit(1)
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if natsClient != nil {
		if err := natsClient.Drain(); err != nil {
			logger.Error("NATS drain error", "error", err)
		}
	}

	if err := obs.Shutdown(context.Background()); err != nil {
		logger.Error("observability shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

// mountRoutes registers the resolution endpoint and the profile pages on
// server. The profile view reaches the endpoint through cfg.TokenFetch.
func mountRoutes(cfg Config, server *gateway.Server, publisher apikey.EventPublisher, metrics *observability.Metrics, logger *slog.Logger) error {
	mux := server.Mux()

	keys := apikey.New(cfg.APIKey, publisher, metrics, logger)
	keys.RegisterRoutes(mux, server.APIMiddleware()...)

	fetcher := tokenfetch.New(cfg.TokenFetch, nil, logger)
	profileHandler, err := profile.NewHandler(cfg.Profile, fetcher, metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create profile handler: %w", err)
	}
	profileHandler.RegisterRoutes(mux, identity.NewHeaderProvider(cfg.Identity))

	return nil
}

// setupLogger creates a logger based on configuration.
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
