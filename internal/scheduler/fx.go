package scheduler

import (
	"context"

	"github.com/smallbiznis/garageflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module runs the background sweeps for the lifetime of the process.
var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig, New),
	fx.Invoke(register),
)

func register(lc fx.Lifecycle, cfg config.Config, s *Scheduler) {
	if !cfg.Scheduler.Enabled {
		s.log.Info("scheduler disabled")
		return
	}

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.log.Info("scheduler started", zap.Duration("interval", s.cfg.RunInterval))
			go func() {
				defer close(done)
				s.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(shutdown context.Context) error {
			stop()
			select {
			case <-done:
			case <-shutdown.Done():
				return shutdown.Err()
			}
			return nil
		},
	})
}
