package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/backend"
	"carteira/internal/cli"
	"carteira/internal/config"
	"carteira/internal/log"
	"carteira/internal/metrics"
	"carteira/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)
	if err := run(logger, cfg); err != nil {
		os.Exit(1)
	}
}

func run(logger *log.Logger, cfg *config.Config) error {
	logger.Info("Starting carteira-worker", log.FieldOperation, log.OpStartup)

	m := metrics.New()

	// the worker only reads the ledger; events come from the broker below
	readCfg := *cfg
	readCfg.AMQPURL = ""
	res := cli.OpenBackend(context.Background(), logger, &readCfg, m.StorageRecovered)
	defer res.Cleanup()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		return err
	}
	sink, err := backend.NewFactory(logger).CreateSink(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize export sink", log.FieldError, err)
		return err
	}
	defer sink.Cleanup()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return err
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(res.Repository, sink.Sink, m, logger)

	var metricsSrv *http.Server
	if cfg.WorkerMetricsAddr != "" {
		metricsSrv = &http.Server{
			Addr:              cfg.WorkerMetricsAddr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics listener failed", log.FieldError, err)
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
	})

	// reports whose event was lost are caught up before consuming
	logger.Info("Performing startup sync check...")
	if err := exportWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- amqpClient.ConsumeReportSubmitted(runCtx, exportWorker.HandleReportSubmitted)
		cancel()
	}()

	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := exportWorker.StartupSyncCheck(runCtx); err != nil {
					logger.Error("Periodic sync failed", log.FieldError, err)
				}
			}
		}
	}()

	<-runCtx.Done()
	if ctx.Err() == nil {
		// the consumer gave up on its own, not because of a signal
		err := <-consumeErr
		if err == nil {
			err = errors.New("consumer stopped")
		}
		logger.Error("Message consumption failed", log.FieldError, err)
		return err
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
	return nil
}
