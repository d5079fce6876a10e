package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"taskdesk/internal/logger"
)

type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshWorker keeps the local snapshot in step with upstream. Each
// cycle retries with exponential backoff until maxRetryElapsed runs out;
// a cycle that still fails is dropped and the next tick starts fresh.
type RefreshWorker struct {
	service         Refresher
	interval        time.Duration
	maxRetryElapsed time.Duration
}

func NewRefreshWorker(service Refresher, interval, maxRetryElapsed time.Duration) *RefreshWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxRetryElapsed <= 0 {
		maxRetryElapsed = 2 * time.Minute
	}
	return &RefreshWorker{
		service:         service,
		interval:        interval,
		maxRetryElapsed: maxRetryElapsed,
	}
}

func (w *RefreshWorker) Start(ctx context.Context) {
	// sync once at startup so the first view isn't empty
	w.refreshWithRetry(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Info("Worker: snapshot refresh starting", zap.Time("started_at", time.Now()))
			w.refreshWithRetry(ctx)
		case <-ctx.Done():
			logger.Info("Worker: snapshot refresh stopping")
			return
		}
	}
}

func (w *RefreshWorker) refreshWithRetry(ctx context.Context) {
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = w.maxRetryElapsed

	attempt := 0
	operation := func() error {
		attempt++
		return w.service.Refresh(ctx)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("Worker: refresh failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("next_in", next),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		logger.Error("Worker: refresh cycle abandoned", err,
			zap.Int("attempts", attempt),
			zap.Duration("ms", time.Since(start)))
		return
	}

	logger.Info("Worker: refresh cycle finished",
		zap.Int("attempts", attempt),
		zap.Duration("ms", time.Since(start)))
}
