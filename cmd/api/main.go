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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/medreport/internal/config"
	"github.com/bryanwahyu/medreport/internal/infra/httpserver"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "medreport",
		Short:         "Medical dataset analysis dashboard API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	// path config.yaml
	defaultPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultPath, "path to config.yaml (env CONFIG_PATH)")

	rootCmd.AddCommand(
		&cobra.Command{Use: "serve", Short: "Start the HTTP server", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Create the report store schema", RunE: runMigrate},
		&cobra.Command{Use: "config", Short: "Print the effective configuration", RunE: runConfig},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config load error: %w", err)
	}
	return cfg, newLogger(cfg), nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Log.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "medreport").Logger()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(cmd.Context())

	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(logger)

	handler := httpserver.NewRouter(a.dashboard, a.sessions, httpserver.Options{
		Logger:       logger,
		MaxUpload:    cfg.MaxUploadBytes(),
		SessionTTL:   cfg.Session.TTL,
		SecureCookie: cfg.Server.SecureCookie,
		CORSOrigins:  cfg.Server.CORSOrigins,
		RatePerSec:   cfg.Server.RateLimit.RequestsPerSecond,
		RateBurst:    cfg.Server.RateLimit.Burst,
		Checkers:     a.checkers,
		Readiness:    a.checkers["database"],
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("database", cfg.Database.Driver).Str("storage", cfg.Storage.Backend).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(cmd.Context())
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()
	logger.Info().Str("driver", cfg.Database.Driver).Msg("schema up to date")
	return nil
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := cfg.Dump()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
