// Package worker defines worker contracts for asynchronous area analysis.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/dachtraufe/traufe/internal/domain/model"
	"github.com/dachtraufe/traufe/pkg/logger"
	"github.com/dachtraufe/traufe/pkg/metrics"
)

// Default worker configuration constants. Analysis jobs download and
// convert whole map tiles, so the pool stays at one worker per CPU
// rather than oversubscribing.
const (
	metricsUpdateInterval = 5 * time.Second
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = model.Job

// Processor runs the analysis pipeline for one job and returns its
// result summary.
type Processor interface {
	Process(ctx context.Context, job Job) (*model.Summary, error)
}

// Tracker records job state transitions.
type Tracker interface {
	Update(ctx context.Context, id string, fn func(*model.Job)) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining jobs before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing analysis jobs.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	tracker   Tracker
	name      string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, processor Processor, tracker Tracker, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		processor: processor,
		tracker:   tracker,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	jobChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob runs a single job through the pipeline and records its
// state transitions.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.tracker.Update(ctx, job.ID, func(j *model.Job) {
		j.State = model.JobRunning
		j.StartedAt = time.Now()
	}); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "tracker_error")
		return fmt.Errorf("start job %s: %w", job.ID, err)
	}

	summary, err := w.processor.Process(ctx, job)
	elapsed := time.Since(start)

	if err != nil {
		metrics.RecordPipelineError()
		metrics.RecordWorkerError()
		metrics.RecordJobFailed()
		metrics.RecordErrorByComponent("worker", "pipeline_error")
		metrics.RecordErrorByType("pipeline_error", "high")
		w.logger.Error(ctx, "analysis failed for job",
			logger.String("jobID", job.ID),
			logger.Error(err),
		)

		if uerr := w.tracker.Update(ctx, job.ID, func(j *model.Job) {
			j.State = model.JobFailed
			j.Error = err.Error()
			j.FinishedAt = time.Now()
		}); uerr != nil {
			w.logger.Error(ctx, "failed to record job failure", logger.Error(uerr))
		}
		return fmt.Errorf("analysis failed for job %s: %w", job.ID, err)
	}

	if err := w.tracker.Update(ctx, job.ID, func(j *model.Job) {
		j.State = model.JobDone
		j.Summary = summary
		j.FinishedAt = time.Now()
	}); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "tracker_error")
		return fmt.Errorf("finish job %s: %w", job.ID, err)
	}

	metrics.RecordJobCompleted()
	metrics.RecordJobDuration(float64(elapsed.Milliseconds()))
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processor Processor
	tracker   Tracker

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Metrics tracking
	processedCount    int64
	lastProcessedTime time.Time

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, processor Processor, tracker Tracker) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             queue,
		processor:         processor,
		tracker:           tracker,
		shutdown:          make(chan struct{}),
		done:              make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			processor,
			tracker,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerIdleCount(0)
	metrics.UpdateWorkerJobsPerSecond(0.0)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}

	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater starts a background goroutine that updates worker metrics.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

// updateMetrics updates worker-related metrics.
func (p *Pool) updateMetrics() {
	now := time.Now()
	timeDiff := now.Sub(p.lastProcessedTime).Seconds()
	if timeDiff > 0 {
		metrics.UpdateWorkerJobsPerSecond(float64(p.processedCount) / timeDiff)
	}

	p.processedCount = 0
	p.lastProcessedTime = now
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, worker := range p.workers {
		select {
		case <-worker.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new jobs
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
