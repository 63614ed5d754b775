package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const lockKeyPrefix = "scheduler:"

// withJobLock runs fn while holding the cluster-wide lock for job. Without a
// configured locker every replica runs every job; the jobs are idempotent.
func (s *Scheduler) withJobLock(ctx context.Context, job string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	lease, acquired, err := s.locker.TryLock(ctx, lockKeyPrefix+job, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", job, err)
	}
	if !acquired {
		s.logger(ctx).Debug("scheduler.job.skipped", zap.String("reason", "lock_held"))
		return nil
	}
	defer func() {
		// The job context may already be done; release on a fresh one.
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger(ctx).Warn("scheduler.lock.release_failed", zap.Error(err))
		}
	}()

	return fn(ctx)
}
