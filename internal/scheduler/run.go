package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/garageflow/internal/observability/context"
	obslogger "github.com/smallbiznis/garageflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/garageflow/internal/observability/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// jobRun is one execution of a job. Jobs invoked from runJob share the run
// started there; jobs invoked directly start their own.
type jobRun struct {
	job       string
	id        string
	batch     int
	started   time.Time
	processed int
	failures  int
}

type jobRunKey struct{}

func runFrom(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

// beginRun returns the run already on ctx, or starts one. owner reports
// whether the caller started it and so must call finishRun.
func (s *Scheduler) beginRun(ctx context.Context, job string, batch int) (context.Context, *jobRun, bool) {
	if run := runFrom(ctx); run != nil {
		return ctx, run, false
	}
	run := &jobRun{
		job:     job,
		id:      s.genID.Generate().String(),
		batch:   batch,
		started: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")

	s.logger(ctx).Info("scheduler.job.start", zap.Int("batch_size", batch))
	return ctx, run, true
}

func (s *Scheduler) finishRun(ctx context.Context, run *jobRun) {
	level := zapcore.InfoLevel
	if run.failures > 0 {
		level = zapcore.WarnLevel
	}
	if ce := s.logger(ctx).Check(level, "scheduler.job.finish"); ce != nil {
		ce.Write(
			zap.Duration("elapsed", s.clock.Now().Sub(run.started)),
			zap.Int("processed", run.processed),
			zap.Int("failures", run.failures),
		)
	}
}

// failed counts err against the run and logs it under event.
func (s *Scheduler) failed(ctx context.Context, run *jobRun, event string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	if run != nil {
		run.failures++
	}
	s.logger(ctx).Error(event, append([]zap.Field{
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Error(err),
	}, fields...)...)
}

// logger carries the request-style context fields plus the job and run id.
func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	log := obslogger.WithContext(ctx, s.log)
	if run := runFrom(ctx); run != nil {
		log = log.With(zap.String("job", run.job), zap.String("run_id", run.id))
	}
	return log
}

func forGarage(ctx context.Context, garageID snowflake.ID) context.Context {
	if garageID == 0 {
		return ctx
	}
	return obscontext.WithGarageID(ctx, garageID.String())
}
