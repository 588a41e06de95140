// internal/app/system/workers/periodic.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/prayerodyssey/internal/app/system/tasks"
	"go.uber.org/zap"
)

const defaultJobTimeout = 30 * time.Second

// Periodic runs one job on a ticker until stopped.
type Periodic struct {
	job    tasks.Job
	log    *zap.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPeriodic creates a worker for job. Nothing runs until Start.
func NewPeriodic(job tasks.Job, logger *zap.Logger) *Periodic {
	return &Periodic{
		job:    job,
		log:    logger.With(zap.String("job", job.Name)),
		stopCh: make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *Periodic) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("worker started", zap.Duration("interval", w.job.Interval))
}

// Stop signals the worker to stop and waits for a run in progress.
func (w *Periodic) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("worker stopped")
}

func (w *Periodic) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.once()
		}
	}
}

func (w *Periodic) once() {
	timeout := w.job.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop aborts a long run instead of waiting it out.
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	if err := w.job.Run(ctx); err != nil {
		w.log.Error("job failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	w.log.Debug("job done", zap.Duration("took", time.Since(start)))
}
