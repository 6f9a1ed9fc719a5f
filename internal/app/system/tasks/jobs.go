// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/recruithub/internal/app/committees"
	"go.uber.org/zap"
)

// Job is a named unit of periodic work. Timeout bounds a single run; zero
// means DefaultTimeout.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// DefaultTimeout bounds a job run when the job does not set one.
const DefaultTimeout = 2 * time.Minute

// ReminderSweeper sends due feedback reminders. *committees.Orchestrator implements it.
type ReminderSweeper interface {
	SweepReminders(ctx context.Context) (committees.SweepResult, error)
}

// TokenExpirer marks lapsed feedback tokens expired. *feedbacktokens.Store implements it.
type TokenExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// ReminderSweepJob creates a job that reminds pending reviewers of committees
// whose feedback deadline is approaching.
func ReminderSweepJob(sweeper ReminderSweeper, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "feedback-reminder-sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			res, err := sweeper.SweepReminders(ctx)
			if err != nil {
				return err
			}
			if res.Sent > 0 || res.Failed > 0 {
				logger.Info("feedback reminders sent",
					zap.Int("committees", res.Committees),
					zap.Int("sent", res.Sent),
					zap.Int("failed", res.Failed))
			}
			return nil
		},
	}
}

// TokenExpiryJob creates a job that marks lapsed feedback links expired.
// Verification already rejects them; this keeps stored statuses accurate.
func TokenExpiryJob(expirer TokenExpirer, logger *zap.Logger) Job {
	return Job{
		Name:     "feedback-token-expiry",
		Interval: 1 * time.Hour,
		Timeout:  30 * time.Second,
		Run: func(ctx context.Context) error {
			count, err := expirer.ExpireStale(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("expired stale feedback tokens", zap.Int64("count", count))
			}
			return nil
		},
	}
}
