package generators

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
)

var (
	ErrQueueFull    = errors.New("queue is full")
	ErrQueueStopped = errors.New("queue is stopped")
)

// Job is a unit of media work, such as narrating a segment or waiting for
// a generated file to become ready.
type Job struct {
	ID        string
	Run       func(ctx context.Context) error
	CreatedAt time.Time
}

// Queue runs media jobs on a bounded pool of workers.
type Queue struct {
	jobs        chan *Job
	stopMu      sync.RWMutex
	stopped     bool
	workerCount *atomic.Int32
	maxWorkers  int
	wg          sync.WaitGroup
	logger      *zap.Logger
}

// NewQueue creates a queue sized by cfg.
func NewQueue(cfg config.QueueConfig, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.MaxQueueSize
	if size <= 0 {
		size = 1
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		jobs:        make(chan *Job, size),
		workerCount: atomic.NewInt32(0),
		maxWorkers:  workers,
		logger:      logger.Named("queue"),
	}
}

// Start starts the queue workers. They exit when ctx is done or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.maxWorkers; i++ {
		q.wg.Add(1)
		q.workerCount.Inc()
		go q.worker(ctx)
	}
}

// Stop stops accepting jobs and waits for workers to drain the queue.
func (q *Queue) Stop() {
	q.stopMu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.jobs)
	}
	q.stopMu.Unlock()
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	defer q.workerCount.Dec()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.process(ctx, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, job *Job) {
	log := q.logger.With(zap.String("job_id", job.ID))
	startTime := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Warn("job failed", zap.Error(err), zap.Duration("elapsed", time.Since(startTime)))
		return
	}
	log.Debug("job done",
		zap.Duration("waited", startTime.Sub(job.CreatedAt)),
		zap.Duration("elapsed", time.Since(startTime)))
}

// Enqueue adds a job without blocking.
func (q *Queue) Enqueue(job *Job) error {
	if job == nil || job.Run == nil {
		return fmt.Errorf("job has nothing to run")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	q.stopMu.RLock()
	defer q.stopMu.RUnlock()
	if q.stopped {
		return ErrQueueStopped
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Size returns the number of jobs waiting for a worker.
func (q *Queue) Size() int {
	return len(q.jobs)
}

// Workers returns the number of running workers.
func (q *Queue) Workers() int {
	return int(q.workerCount.Load())
}
