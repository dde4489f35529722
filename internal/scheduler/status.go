package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Refresher interface {
	Refresh(ctx context.Context) ([]byte, error)
}

// StatusRunner keeps the server status cache warm.
type StatusRunner struct {
	refresher Refresher
	interval  time.Duration
	logger    *slog.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewStatusRunner(refresher Refresher, interval time.Duration, logger *slog.Logger) *StatusRunner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatusRunner{
		refresher: refresher,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Run refreshes immediately and then on every tick until ctx is done or Stop
// is called.
func (r *StatusRunner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.refresh(ctx)
	for {
		select {
		case <-ticker.C:
			r.refresh(ctx)
		case <-ctx.Done():
			return nil
		case <-r.stopCh:
			return nil
		}
	}
}

func (r *StatusRunner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *StatusRunner) refresh(ctx context.Context) {
	if _, err := r.refresher.Refresh(ctx); err != nil {
		r.logger.Warn("server status refresh failed", "error", err)
		return
	}
	r.logger.Debug("server status refreshed")
}
