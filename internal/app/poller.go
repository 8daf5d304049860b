package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/five82/periscope/internal/api"
	"github.com/five82/periscope/internal/state"
)

const (
	defaultHealthInterval = 5 * time.Second
	maxBackoff            = 30 * time.Second
)

// HealthChecker pings the backend.
type HealthChecker interface {
	Health(ctx context.Context) (api.Health, error)
}

// StartHealthPoller launches a background goroutine that pings the backend
// and records the result in store. After a failure the next ping is delayed
// by calculateBackoff. It returns immediately; the goroutine exits when ctx
// is cancelled.
func StartHealthPoller(ctx context.Context, store *state.HealthStore, checker HealthChecker, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("health")

	go func() {
		timer := time.NewTimer(0)
		defer timer.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			if err := pingHealth(ctx, store, checker); err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				logger.Warn("health ping failed",
					zap.Error(err),
					zap.Int("failures", failures))
			} else {
				if failures > 0 {
					logger.Info("backend reachable again", zap.Int("after_failures", failures))
				}
				failures = 0
			}
			timer.Reset(calculateBackoff(failures, interval))
		}
	}()
}

func pingHealth(ctx context.Context, store *state.HealthStore, checker HealthChecker) error {
	health, err := checker.Health(ctx)
	if err != nil {
		if ctx.Err() == nil {
			store.Update(nil, err)
		}
		return err
	}
	store.Update(&health, nil)
	return nil
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
