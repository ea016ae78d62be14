package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolStopped = errors.New("worker pool stopped")
	ErrQueueFull   = errors.New("worker queue full")
)

// Job is a single fire-and-forget write against the task store.
type Job struct {
	Name   string
	TaskID string
	Run    func(ctx context.Context) error
}

// Result reports how a job went. Failed jobs are never retried.
type Result struct {
	Job  Job
	Err  error
	Took time.Duration
}

type Pool struct {
	logger   *zap.Logger
	count    int
	jobs     chan Job
	onResult func(Result)
	wg       sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewPool(logger *zap.Logger, count, queue int) *Pool {
	if count <= 0 {
		count = 1
	}
	if queue < 0 {
		queue = 0
	}
	return &Pool{
		logger: logger,
		count:  count,
		jobs:   make(chan Job, queue),
	}
}

// OnResult registers a callback invoked from the worker goroutine after each
// job. It must be set before Start.
func (p *Pool) OnResult(fn func(Result)) {
	p.onResult = fn
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("workers", p.count))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit queues a job without waiting. A full queue rejects it with
// ErrQueueFull.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new jobs, lets the workers drain the queue and waits for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.logger.Info("Stopping worker pool...")
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.process(ctx, id, job)
	}
}

func (p *Pool) process(ctx context.Context, workerID int, job Job) {
	// Запись уже отправлена - не отменяем её вместе с контекстом пула
	start := time.Now()
	err := job.Run(context.WithoutCancel(ctx))
	res := Result{Job: job, Err: err, Took: time.Since(start)}

	if err != nil {
		p.logger.Error("write failed",
			zap.Int("worker", workerID),
			zap.String("job", job.Name),
			zap.String("task_id", job.TaskID),
			zap.Error(err),
		)
	} else {
		p.logger.Debug("write done",
			zap.Int("worker", workerID),
			zap.String("job", job.Name),
			zap.String("task_id", job.TaskID),
			zap.Duration("took", res.Took),
		)
	}

	if p.onResult != nil {
		p.onResult(res)
	}
}
