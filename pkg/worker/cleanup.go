package worker

import (
	"context"
	"time"
)

type OutboxCleanupWorker struct {
	processor *OutboxProcessor
	interval  time.Duration
}

func NewOutboxCleanupWorker(processor *OutboxProcessor, interval time.Duration) *OutboxCleanupWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &OutboxCleanupWorker{
		processor: processor,
		interval:  interval,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.processor.Cleanup(ctx); err != nil {
				w.processor.logger.Error(err, "Outbox cleanup failed")
			}
		}
	}
}
