// Package sweeper periodically requeues messages whose lease expired and
// routes delivery-exhausted messages to their DLQ.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/glennschmidt/fcgiq/internal/localqueue/metrics"
	"github.com/glennschmidt/fcgiq/internal/localqueue/store"
)

type Sweeper struct {
	store    store.Store
	interval time.Duration
	stopCh   chan struct{}
}

func New(store store.Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped", "reason", "context cancelled")
			return

		case <-s.stopCh:
			slog.Info("sweeper stopped", "reason", "stop signal")
			return

		case <-ticker.C:
			start := time.Now()
			requeued, dlqd, err := s.store.Sweeper(ctx)
			metrics.SweeperDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.SweeperErrors.Inc()
				slog.Error("sweeper run failed", "error", err)
				continue
			}
			if requeued > 0 || dlqd > 0 {
				slog.Info("sweeper run complete", "requeued", requeued, "dlqd", dlqd)
			}
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
}
