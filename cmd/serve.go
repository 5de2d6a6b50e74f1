package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"pride/internal/audit"
	"pride/internal/config"
	"pride/internal/crypto"
	"pride/internal/forecast"
	"pride/internal/notify"
	"pride/internal/repository"
	"pride/internal/server"
	"pride/internal/service"
	"pride/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, found, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = logger.Sync() // Flushes buffer, if any
		}()

		if !found {
			logger.Warn("Config file not found, using defaults", zap.String("path", configPath))
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret must be set")
		}

		store, err := repository.OpenCredentialStore(cfg, crypto.NewPasswordHasher(), logger)
		if err != nil {
			logger.Error("Credential store unavailable", zap.String("backend", cfg.Credentials.Backend), zap.Error(err))
			return err
		}
		defer store.Close()

		auditLog, err := audit.Open(cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer auditLog.Close()

		notifier, err := notify.New(cfg, logger)
		if err != nil {
			logger.Warn("Notifications disabled", zap.Error(err))
			notifier = notify.Nop{}
		}

		forecasts, modelHealth, err := newForecastService(cfg, logger)
		if err != nil {
			return err
		}

		sessions := session.NewManager([]byte(cfg.Auth.JWTSecret), cfg.TokenTTL())

		srv := server.NewServer(server.Deps{
			Config:      cfg,
			Sessions:    sessions,
			Auth:        service.NewAuthService(store, sessions, auditLog, notifier, cfg.Auth.AllowRegistration, logger),
			Datasets:    service.NewDatasetService(auditLog, notifier, logger),
			Forecasts:   forecasts,
			Audit:       auditLog,
			ModelHealth: modelHealth,
			Logger:      logger,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			logger.Error("Server stopped with error", zap.Error(err))
			return err
		}
		logger.Info("Server exited")
		return nil
	},
}

// newForecastService prefers the remote model service, then a local model
// file. Without either, only the yearly trend is available.
func newForecastService(cfg *config.Config, logger *zap.Logger) (*forecast.Service, func(context.Context) error, error) {
	trend, err := forecast.FitTrend(cfg.Forecast.History)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case cfg.Forecast.ServiceURL != "":
		client := forecast.NewClient(cfg.Forecast.ServiceURL, cfg.ForecastTimeout())
		logger.Info("Using remote model service", zap.String("url", cfg.Forecast.ServiceURL))
		health := func(ctx context.Context) error {
			_, err := client.HealthCheck(ctx)
			return err
		}
		return forecast.NewService(client, client, trend), health, nil
	case cfg.Forecast.ModelPath != "":
		model, err := forecast.LoadLinearModel(cfg.Forecast.ModelPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using local model file", zap.String("path", cfg.Forecast.ModelPath))
		return forecast.NewService(model, model, trend), nil, nil
	default:
		logger.Warn("No forecast model configured; component forecasts are unavailable")
		return forecast.NewService(nil, nil, trend), nil, nil
	}
}
