package scanner

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// JobFunc processes one definition.
type JobFunc func(ctx context.Context, id uuid.UUID) error

// WorkerPool fans definition IDs out to a fixed number of worker goroutines
// and waits for all of them to finish.
type WorkerPool struct {
	// workerCount is the number of concurrent workers to start
	workerCount int

	// logger for structured logging
	logger *slog.Logger

	// errorHandler is called when a job fails
	// If nil, errors are only logged
	errorHandler func(id uuid.UUID, err error)
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 4,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	return &WorkerPool{
		workerCount: workerCount,
		logger:      logger,
	}
}

// SetErrorHandler allows setting a custom error handler for job failures
func (p *WorkerPool) SetErrorHandler(handler func(id uuid.UUID, err error)) {
	p.errorHandler = handler
}

// WorkerCount returns the number of workers Run starts.
func (p *WorkerPool) WorkerCount() int {
	return p.workerCount
}

// Run processes every id with fn and returns once all jobs have finished.
// Cancelling ctx stops workers from picking up further ids; jobs already
// running receive the cancelled context.
func (p *WorkerPool) Run(ctx context.Context, ids []uuid.UUID, fn JobFunc) {
	if len(ids) == 0 {
		return
	}

	jobs := make(chan uuid.UUID)
	workers := min(p.workerCount, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, jobs, fn, &wg)
	}

feed:
	for _, id := range ids {
		select {
		case <-ctx.Done():
			p.logger.Debug("context cancelled, not dispatching remaining jobs")
			break feed
		case jobs <- id:
		}
	}
	close(jobs)

	wg.Wait()
}

func (p *WorkerPool) worker(
	ctx context.Context,
	workerID int,
	jobs <-chan uuid.UUID,
	fn JobFunc,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	p.logger.Debug("starting worker", "worker_id", workerID)

	for id := range jobs {
		if err := fn(ctx, id); err != nil {
			p.logger.Error("job failed",
				"worker_id", workerID,
				"definition_id", id,
				"error", err)
			if p.errorHandler != nil {
				p.errorHandler(id, err)
			}
		}
	}

	p.logger.Debug("stopping worker", "worker_id", workerID)
}
