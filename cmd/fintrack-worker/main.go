package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	msheet "fintrack/internal/sheets/memory"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentWorker, (*config.Config).ValidateWorker)
	logger.Info("Starting fintrack-worker", log.FieldOperation, log.OpStartup)

	journal, err := newJournal(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize journal", log.FieldError, err, log.FieldBackend, cfg.JournalBackend)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	batcher := worker.NewBatcher(journal, worker.BatcherConfig{
		BatchSize:     cfg.SyncBatchSize,
		FlushInterval: cfg.SyncInterval,
	}, logger)
	// The batcher drains on Stop, so it runs on its own context.
	if err := batcher.Start(context.Background()); err != nil {
		logger.Error("Failed to start journal batcher", log.FieldError, err)
		os.Exit(1)
	}
	exporter := worker.NewExporter(batcher, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := batcher.Stop(ctx); err != nil {
			logger.Error("Journal batcher stop error", log.FieldError, err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
	})

	// Each handler blocks until its row is flushed; one consumer slot per
	// batch row lets a batch fill before the interval elapses.
	err = amqpClient.ConsumeTransactionEvents(ctx, cfg.SyncBatchSize, exporter.HandleEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped", log.FieldOperation, log.OpShutdown)
}

func newJournal(cfg *config.Config, logger *log.Logger) (sheets.JournalWriter, error) {
	if cfg.JournalBackend == "memory" {
		logger.Warn("Using in-memory journal; exported rows are not persisted", log.FieldBackend, "memory")
		return msheet.New(cfg.GoogleSheetName), nil
	}
	journal, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return journal, nil
}
