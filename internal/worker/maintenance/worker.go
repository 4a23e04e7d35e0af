// Package maintenance reclaims expired cooldown entries from the
// persistent stores so they do not grow without bound.
package maintenance

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/moderation/cooldown"
	"github.com/venlyx/sentinel/internal/setup"
)

// DefaultInterval is how often the worker sweeps between runs.
const DefaultInterval = 15 * time.Minute

// Worker periodically sweeps the reminder and lockout cooldown stores.
// Pending captcha challenges are never swept; they are cleared only by
// success, exhaustion, or an administrator.
type Worker struct {
	trackers []*cooldown.Tracker
	logger   *zap.Logger
}

// New creates a maintenance worker over the app's cooldown stores.
func New(app *setup.App, logger *zap.Logger) *Worker {
	return &Worker{
		trackers: []*cooldown.Tracker{
			cooldown.NewTracker(app.Stores.Reminder,
				cooldown.DomainReminder, cooldown.ReminderDuration, logger),
			cooldown.NewTracker(app.Stores.Lockout,
				cooldown.DomainVerificationLockout, cooldown.LockoutDuration, logger),
		},
		logger: logger.Named("maintenance"),
	}
}

// Start begins the sweep loop. It blocks until the context is
// cancelled.
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	w.logger.Info("Maintenance worker started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("Maintenance worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce sweeps every tracked store a single time, in parallel.
func (w *Worker) RunOnce(ctx context.Context) {
	start := time.Now()
	p := pool.New().WithContext(ctx)

	for _, tracker := range w.trackers {
		p.Go(func(ctx context.Context) error {
			removed, err := tracker.Sweep(ctx)
			if err != nil {
				w.logger.Error("Sweep failed",
					zap.String("domain", string(tracker.Domain())),
					zap.Error(err))

				return err
			}

			if removed > 0 {
				w.logger.Info("Sweep completed",
					zap.String("domain", string(tracker.Domain())),
					zap.Int("removed", removed))
			}

			return nil
		})
	}

	// Errors are already logged per domain.
	_ = p.Wait()

	w.logger.Debug("Sweep cycle finished", zap.Duration("duration", time.Since(start)))
}
