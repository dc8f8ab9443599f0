package workers

import (
	"context"
	"log/slog"
	"time"
)

// TypingExpirer drops typing indicators nobody refreshed in time.
type TypingExpirer interface {
	ExpireTyping(ctx context.Context) int
}

// TypingExpiryWorker sweeps stale typing indicators on a fixed interval
type TypingExpiryWorker struct {
	log      *slog.Logger
	expirer  TypingExpirer
	interval time.Duration
}

func NewTypingExpiryWorker(log *slog.Logger, expirer TypingExpirer, interval time.Duration) *TypingExpiryWorker {
	return &TypingExpiryWorker{log: log, expirer: expirer, interval: interval}
}

func (w *TypingExpiryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting typing expiry worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := w.expirer.ExpireTyping(ctx); n > 0 {
				w.log.Debug("Typing indicators expired", "count", n)
			}
		}
	}
}
