// Package async runs pipeline submissions on a bounded worker pool.
// Stages inside one run stay sequential; concurrency lives here,
// across runs.
package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/glassboxhq/glassbox/internal/entity"
	"github.com/glassboxhq/glassbox/internal/pipeline"
)

// Job is one queued document submission. Done, when non-nil, receives
// the finished run exactly once.
type Job struct {
	Request pipeline.Request
	Done    chan<- *entity.PipelineRun
}

type RunQueue struct {
	orch    *pipeline.Orchestrator
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*RunQueue)

func WithWorkers(n int) Option {
	return func(q *RunQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *RunQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithRunTimeout(d time.Duration) Option {
	return func(q *RunQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewRunQueue(orch *pipeline.Orchestrator, logger *slog.Logger, opts ...Option) *RunQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &RunQueue{
		orch:    orch,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *RunQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					run, err := q.orch.Process(ctx, job.Request)
					cancel()

					if err != nil {
						q.logger.Error("queue.run.failed", "worker_id", workerID, "path", job.Request.FilePath, "error", err)
					} else {
						q.logger.Info("queue.run.done", "worker_id", workerID, "run_id", run.ID, "status", run.Status)
					}
					if job.Done != nil {
						job.Done <- run
					}
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue queues a submission. A full queue blocks the caller rather
// than dropping the job.
func (q *RunQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.rejected", "path", job.Request.FilePath)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueued", "path", job.Request.FilePath)
	default:
		q.logger.Warn("queue.full", "path", job.Request.FilePath)
		q.ch <- job
	}
	return nil
}

// Shutdown stops intake and drains in-flight jobs, bounded by ctx.
func (q *RunQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
