package worker

import (
	"context"
	"log/slog"
	"time"
)

// BudgetTopUpper applies the once-per-day budget top-up.
type BudgetTopUpper interface {
	TopUpDaily(ctx context.Context, now time.Time) (bool, error)
}

// TopUpWorker periodically checks whether the daily top-up is due.
type TopUpWorker struct {
	ledger   BudgetTopUpper
	interval time.Duration
}

func NewTopUpWorker(ledger BudgetTopUpper, interval time.Duration) *TopUpWorker {
	return &TopUpWorker{ledger: ledger, interval: interval}
}

// Run checks immediately and then on every tick until ctx is cancelled.
// The ledger enforces the once-per-day rule, so frequent checks are safe.
func (w *TopUpWorker) Run(ctx context.Context) error {
	w.check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *TopUpWorker) check(ctx context.Context) {
	applied, err := w.ledger.TopUpDaily(ctx, time.Now())
	if err != nil {
		slog.ErrorContext(ctx, "Top-up check failed", "error", err)
		return
	}
	if applied {
		slog.InfoContext(ctx, "Daily top-up applied")
	}
}
