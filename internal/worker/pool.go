// Package worker fans extraction jobs out over a fixed set of browser sessions.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"yareviews/pkg/logger"
	"yareviews/pkg/models"
)

// Job is one organisation to extract
type Job struct {
	OrgID int64
	Mode  models.Mode
}

// JobResult is the outcome of one job
type JobResult struct {
	Job      Job
	Result   models.Result
	Skipped  bool
	Error    error
	Duration time.Duration
}

// Extractor runs extractions on a browser session it owns
type Extractor interface {
	RunExtraction(ctx context.Context, orgID int64, mode models.Mode) models.Result
	Close() error
}

// ResultStorage persists results
type ResultStorage interface {
	IsSaved(orgID int64) bool
	SaveResult(orgID int64, result models.Result) error
}

// ExtractorFactory builds the extractor a worker keeps for its lifetime
type ExtractorFactory func(workerID int) Extractor

// Config configures a WorkerPool
type Config struct {
	NumWorkers int
	// Timeout bounds a single job; zero means no limit
	Timeout time.Duration
	// Storage receives every result when set
	Storage ResultStorage
	// SkipExisting skips jobs whose result is already in Storage
	SkipExisting bool
	Logger       logger.Logger
}

// WorkerPool runs jobs on a fixed set of workers, each with its own
// extractor. Extractors are never shared, so each browser session serves
// one extraction at a time.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan JobResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	newExtract  ExtractorFactory
	cfg         Config
	logger      logger.Logger

	mu         sync.Mutex
	extractors []Extractor
	stopOnce   sync.Once
}

// NewWorkerPool creates a new worker pool bound to ctx
func NewWorkerPool(ctx context.Context, factory ExtractorFactory, cfg Config) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  cfg.NumWorkers,
		jobQueue:    make(chan Job, cfg.NumWorkers*2),
		resultQueue: make(chan JobResult, cfg.NumWorkers),
		ctx:         ctx,
		cancel:      cancel,
		newExtract:  factory,
		cfg:         cfg,
		logger:      log,
	}
}

// Start launches the workers. Extractors are created lazily by each worker.
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop waits for queued jobs to finish, then closes every extractor and the
// result channel. It is safe to call more than once.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		wp.logger.Info("Stopping worker pool...")

		close(wp.jobQueue)
		wp.wg.Wait()
		close(wp.resultQueue)

		wp.mu.Lock()
		for _, ex := range wp.extractors {
			if err := ex.Close(); err != nil {
				wp.logger.WithError(err).Warn("Failed to close extractor")
			}
		}
		wp.extractors = nil
		wp.mu.Unlock()

		wp.cancel()
		wp.logger.Info("Worker pool stopped")
	})
}

// Submit adds a job to the queue
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"org_id": job.OrgID,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the channel results are delivered on
func (wp *WorkerPool) Results() <-chan JobResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.DebugWithFields("Worker started", map[string]interface{}{
		"worker_id": id,
	})

	var ex Extractor
	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("Worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		var result JobResult
		if wp.skip(job) {
			wp.logger.DebugWithFields("Result already saved", map[string]interface{}{
				"worker_id": id,
				"org_id":    job.OrgID,
			})
			result = JobResult{Job: job, Skipped: true}
		} else {
			if ex == nil {
				ex = wp.newExtract(id)
				wp.mu.Lock()
				wp.extractors = append(wp.extractors, ex)
				wp.mu.Unlock()
			}
			result = wp.processJob(ex, job, id)
		}

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("Worker stopping - context cancelled while sending result", map[string]interface{}{
				"worker_id": id,
			})
			return
		}
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

func (wp *WorkerPool) skip(job Job) bool {
	return wp.cfg.SkipExisting && wp.cfg.Storage != nil && wp.cfg.Storage.IsSaved(job.OrgID)
}

func (wp *WorkerPool) processJob(ex Extractor, job Job, workerID int) JobResult {
	start := time.Now()
	result := JobResult{Job: job}

	ctx := wp.ctx
	if wp.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.cfg.Timeout)
		defer cancel()
	}

	result.Result = ex.RunExtraction(ctx, job.OrgID, job.Mode)
	result.Duration = time.Since(start)

	if wp.cfg.Storage != nil {
		if err := wp.cfg.Storage.SaveResult(job.OrgID, result.Result); err != nil {
			result.Error = fmt.Errorf("save failed: %w", err)
			wp.logger.ErrorWithFields("Worker failed to save result", map[string]interface{}{
				"worker_id": workerID,
				"org_id":    job.OrgID,
				"error":     err.Error(),
			})
		}
	}

	return result
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

// GetActiveWorkers returns the number of workers
func (wp *WorkerPool) GetActiveWorkers() int {
	return wp.numWorkers
}
