package backtest

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/strategy"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// WorkerPool runs independent backtests in parallel. Each job gets its own
// Engine, so runs share no mutable state.
type WorkerPool struct {
	workerCount int
	jobQueue    chan BacktestJob
	resultQueue chan JobResult
	opts        []Option
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// BacktestJob is one configuration to replay over one bar series.
type BacktestJob struct {
	ID       string
	Index    int
	Settings *config.StrategySettings
	Bars     []types.Bar
	Signal   strategy.SignalGenerator // nil builds one from Settings.Signal
}

// JobResult is the outcome of a job.
type JobResult struct {
	ID       string
	Index    int
	Result   *BacktestResult
	Summary  Summary
	Duration time.Duration
	Error    error
}

// NewWorkerPool creates a pool bound to ctx. workerCount <= 0 uses every CPU.
// opts are applied to every engine the pool builds.
func NewWorkerPool(ctx context.Context, workerCount, jobBufferSize int, opts ...Option) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		workerCount: workerCount,
		jobQueue:    make(chan BacktestJob, jobBufferSize),
		resultQueue: make(chan JobResult, jobBufferSize),
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the worker pool
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop closes the job queue, waits for workers and closes the results.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// SubmitJob submits a backtest job to the pool
func (wp *WorkerPool) SubmitJob(job BacktestJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Results returns the channel of completed jobs.
func (wp *WorkerPool) Results() <-chan JobResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}

			result := wp.processJob(job)

			select {
			case wp.resultQueue <- result:
			case <-wp.ctx.Done():
				return
			}

		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processJob(job BacktestJob) JobResult {
	startTime := time.Now()
	result := JobResult{ID: job.ID, Index: job.Index}

	engine, err := NewEngine(job.Settings, job.Signal, wp.opts...)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(startTime)
		return result
	}

	res, err := engine.Run(job.Bars)
	if err != nil {
		result.Error = err
	} else {
		result.Result = res
		result.Summary = Summarize(res)
	}
	result.Duration = time.Since(startTime)
	return result
}

// RunBatch runs jobs on a fresh pool and returns results in job order.
// Jobs not started before ctx is cancelled carry ctx.Err().
func RunBatch(ctx context.Context, jobs []BacktestJob, workers int, progress *ProgressTracker, opts ...Option) []JobResult {
	results := make([]JobResult, len(jobs))
	for i := range jobs {
		jobs[i].Index = i
		results[i] = JobResult{ID: jobs[i].ID, Index: i, Error: context.Canceled}
	}

	pool := NewWorkerPool(ctx, workers, len(jobs), opts...)
	pool.Start()

	submitted := 0
	for _, job := range jobs {
		if err := pool.SubmitJob(job); err != nil {
			break
		}
		submitted++
	}

	go pool.Stop()
	for res := range pool.Results() {
		results[res.Index] = res
		if progress != nil {
			progress.Increment()
		}
	}
	if err := ctx.Err(); err != nil {
		for i := submitted; i < len(jobs); i++ {
			results[i].Error = err
		}
	}
	return results
}

// ProgressTracker tracks the progress of batch processing
type ProgressTracker struct {
	total     int
	completed int
	startTime time.Time
	mutex     sync.RWMutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
	}
}

// Increment increments the completion count
func (pt *ProgressTracker) Increment() {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	pt.completed++
}

// GetProgress returns completed, total, percent and elapsed time.
func (pt *ProgressTracker) GetProgress() (int, int, float64, time.Duration) {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	elapsed := time.Since(pt.startTime)
	progress := 0.0
	if pt.total > 0 {
		progress = float64(pt.completed) / float64(pt.total) * 100
	}
	return pt.completed, pt.total, progress, elapsed
}

// EstimateTimeRemaining estimates the remaining time based on current progress
func (pt *ProgressTracker) EstimateTimeRemaining() time.Duration {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	if pt.completed == 0 {
		return 0
	}

	elapsed := time.Since(pt.startTime)
	avgTimePerItem := elapsed / time.Duration(pt.completed)
	remaining := pt.total - pt.completed

	return avgTimePerItem * time.Duration(remaining)
}
