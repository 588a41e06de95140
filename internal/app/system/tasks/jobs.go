// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	tokenstore "github.com/dalemusser/prayerodyssey/internal/app/store/tokens"
	"go.uber.org/zap"
)

// Job is a unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // per run; zero means 30s
	Run      func(ctx context.Context) error
}

// TokenSweepJob creates a job that removes push tokens older than the
// registry's max age from every user. Registration also sweeps, so this
// only matters for users who stopped opening the app.
func TokenSweepJob(tokens *tokenstore.Store, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "push-token-sweep",
		Interval: interval,
		Timeout:  5 * time.Minute,
		Run: func(ctx context.Context) error {
			users, removed, err := tokens.SweepAll(ctx)
			if removed > 0 {
				logger.Info("swept stale push tokens",
					zap.Int("users", users),
					zap.Int("removed", removed),
					zap.Duration("max_age", tokens.Policy().MaxAge))
			}
			return err
		},
	}
}
