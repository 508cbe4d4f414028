package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/smallbiznis/royalti/internal/observability/metrics"
)

var ErrQueueFull = errors.New("ingest_queue_full")

// Queue is a bounded in-process job queue. A job id is held at most once
// until a worker takes it.
type Queue struct {
	jobs    chan snowflake.ID
	mu      sync.Mutex
	queued  map[snowflake.ID]struct{}
	metrics *obsmetrics.IngestMetrics
}

func NewQueue(cfg Config, metrics *obsmetrics.IngestMetrics) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		jobs:    make(chan snowflake.ID, cfg.QueueSize),
		queued:  make(map[snowflake.ID]struct{}),
		metrics: metrics,
	}
}

// Enqueue never blocks. A full queue returns ErrQueueFull; the job stays
// pending in the database for the next recovery sweep.
func (q *Queue) Enqueue(ctx context.Context, jobID snowflake.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[jobID]; ok {
		return nil
	}
	select {
	case q.jobs <- jobID:
		q.queued[jobID] = struct{}{}
		q.metrics.SetQueueDepth(len(q.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// take blocks until a job is available or ctx is done.
func (q *Queue) take(ctx context.Context) (snowflake.ID, bool) {
	select {
	case <-ctx.Done():
		return 0, false
	case jobID := <-q.jobs:
		q.mu.Lock()
		delete(q.queued, jobID)
		q.metrics.SetQueueDepth(len(q.jobs))
		q.mu.Unlock()
		return jobID, true
	}
}

func (q *Queue) Len() int {
	return len(q.jobs)
}
