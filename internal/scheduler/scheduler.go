package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/royalti/internal/clock"
	obscontext "github.com/smallbiznis/royalti/internal/observability/context"
	obslogger "github.com/smallbiznis/royalti/internal/observability/logger"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Config    Config
	Queue     *Queue
	Processor reportdomain.Processor
}

// Scheduler runs report jobs from the queue on a fixed pool of workers and
// periodically sweeps the database for jobs the queue lost.
type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	queue     *Queue
	processor reportdomain.Processor
	wg        sync.WaitGroup
}

func New(p Params) *Scheduler {
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		clock:     p.Clock,
		queue:     p.Queue,
		processor: p.Processor,
	}
}

// Start launches the workers and the sweep loop. They stop when ctx is
// cancelled; Wait blocks until they have.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func(worker int) {
			defer s.wg.Done()
			s.work(ctx, worker)
		}(i)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunForever(ctx)
	}()
}

func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) work(ctx context.Context, worker int) {
	log := s.log.With(zap.Int("worker", worker))
	for {
		jobID, ok := s.queue.take(ctx)
		if !ok {
			return
		}
		if err := s.runJob(ctx, jobID); err != nil {
			log.Warn("report job failed", zap.String("job_id", jobID.String()), zap.Error(err))
		}
	}
}

func (s *Scheduler) runJob(parent context.Context, jobID snowflake.ID) (err error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()
	ctx = obscontext.WithActor(ctx, obscontext.ActorTypeSystem, "scheduler")
	ctx = obscontext.WithJobID(ctx, jobID.String())

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("report job panicked: %v", r)
			obslogger.WithContext(ctx, s.log).Error("report job panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	err = s.processor.Process(ctx, jobID)
	if errors.Is(err, context.DeadlineExceeded) {
		obslogger.WithContext(ctx, s.log).Warn("report job timed out", zap.Duration("timeout", s.cfg.JobTimeout))
	}
	return err
}

// RunOnce fails stuck jobs and queues every pending one.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx = obscontext.WithActor(ctx, obscontext.ActorTypeSystem, "scheduler")
	result, err := s.processor.Recover(ctx, s.clock.Now().Add(-s.cfg.StuckAfter))
	if err != nil {
		return err
	}

	var queueErr error
	queued := 0
	for _, jobID := range result.Requeued {
		if err := s.queue.Enqueue(ctx, jobID); err != nil {
			queueErr = err
			break
		}
		queued++
	}
	if result.Failed > 0 || queued > 0 {
		s.log.Info("recovery sweep finished",
			zap.Int("failed_stuck", result.Failed),
			zap.Int("queued", queued),
			zap.Int("queue_depth", s.queue.Len()),
		)
	}
	if errors.Is(queueErr, ErrQueueFull) {
		s.log.Warn("ingest queue full, remaining pending jobs wait for the next sweep")
		return nil
	}
	return queueErr
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("recovery sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
