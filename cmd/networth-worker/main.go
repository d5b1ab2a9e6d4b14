package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"networth/internal/amqp"
	"networth/internal/cli"
	"networth/internal/log"
	"networth/internal/storage"
	"networth/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout, log.ComponentWorker)

	logger.Info("Starting networth-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	backups := worker.NewBackupWorker(repo, cfg.BackupDir)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Catch up on changes made while the worker was down.
	if path, err := backups.Backup(ctx); err != nil {
		logger.Error("Startup backup failed", "error", err)
	} else {
		logger.Info("Startup backup written", "file", path)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeEntryChanges(gctx, backups.HandleChangeMessage)
	})
	g.Go(func() error {
		return backups.RunPeriodic(gctx, cfg.BackupInterval)
	})

	logger.Info("Worker started",
		"backup_dir", cfg.BackupDir,
		"backup_interval", cfg.BackupInterval.String(),
		"queue", cfg.AMQPQueue)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}
