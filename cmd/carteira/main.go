package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"carteira/internal/auth"
	"carteira/internal/cli"
	"carteira/internal/config"
	apphttp "carteira/internal/http"
	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/metrics"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateServer)

	m := metrics.New()
	res := cli.OpenBackend(context.Background(), logger, cfg, m.StorageRecovered)

	opts := []ledger.Option{
		ledger.WithObserver(m),
		ledger.WithLogger(logger.WithComponent(log.ComponentLedger)),
	}
	if res.Publisher != nil {
		opts = append(opts, ledger.WithPublisher(res.Publisher))
	}
	svc := ledger.NewService(res.Repository, ledger.SystemClock{Location: cfg.Location()}, opts...)

	users := auth.NewDirectory(cfg.UsersFile, auth.WithDirectoryLogger(logger))
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:  svc,
		Users:   users,
		Tokens:  auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Metrics: m,
		Logger:  logger,
		Ready: func(ctx context.Context) error {
			_, err := res.Repository.ListUsers(ctx)
			return err
		},
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting carteira server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.Publisher != nil,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
