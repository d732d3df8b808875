package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTopUpper struct {
	calls atomic.Int64
	err   error
}

func (f *fakeTopUpper) TopUpDaily(ctx context.Context, now time.Time) (bool, error) {
	f.calls.Add(1)
	return f.err == nil, f.err
}

func TestTopUpWorkerChecksImmediately(t *testing.T) {
	ledger := &fakeTopUpper{}
	w := NewTopUpWorker(ledger, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for ledger.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no top-up check before first tick")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestTopUpWorkerKeepsRunningOnError(t *testing.T) {
	ledger := &fakeTopUpper{err: errors.New("db locked")}
	w := NewTopUpWorker(ledger, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if ledger.calls.Load() < 2 {
		t.Fatalf("expected retries after error, got %d calls", ledger.calls.Load())
	}
}
