package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"inoff/internal/cli"
	"inoff/internal/core"
	"inoff/internal/services"
	"inoff/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting topup-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// The top-up worker writes directly to the ledger; events are left
	// to the API process.
	ledger := services.NewLedgerService(sqliteRepo, nil)
	ledger.SetAmounts(
		core.Money{Cents: cfg.DefaultBudgetCents},
		core.Money{Cents: cfg.DailyTopUpCents},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := ledger.EnsureBudget(ctx); err != nil {
		logger.Error("Failed to ensure budget", "error", err)
		os.Exit(1)
	}

	topUpWorker := worker.NewTopUpWorker(ledger, cfg.TopUpCheckInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return topUpWorker.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
