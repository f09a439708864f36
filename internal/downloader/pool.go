package downloader

import (
	"context"
	"sort"
	"sync"

	"shopfiles/pkg/logger"
	"shopfiles/pkg/models"
)

// DownloadJob is one asset of a page to fetch
type DownloadJob struct {
	// Index keeps the listing order when results arrive out of order
	Index       int
	Page        int
	Descriptor  models.AssetDescriptor
	URL         string
	Destination string
}

// DownloadResult pairs a job with its outcome
type DownloadResult struct {
	Job     DownloadJob
	Outcome models.DownloadOutcome
}

// AssetFetcher downloads one asset. Implemented by *Fetcher.
type AssetFetcher interface {
	Fetch(ctx context.Context, sourceURL, dest string, maxAttempts int) models.DownloadOutcome
}

// WorkerPool runs downloads with a fixed number of workers. Every submitted
// job yields exactly one result, even after the context is cancelled.
type WorkerPool struct {
	numWorkers  int
	maxAttempts int
	jobQueue    chan DownloadJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     AssetFetcher
	logger      logger.Logger
	stopOnce    sync.Once
}

// NewWorkerPool creates a new download worker pool
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	fetcher AssetFetcher,
	maxAttempts int,
	log logger.Logger,
) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		maxAttempts: maxAttempts,
		jobQueue:    make(chan DownloadJob, numWorkers*2),
		resultQueue: make(chan DownloadResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for in-flight jobs and closes Results
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobQueue)
		wp.wg.Wait()
		close(wp.resultQueue)
		wp.cancel()
		wp.logger.Debug("Worker pool stopped")
	})
}

// Submit adds a job to the queue, blocking while it is full. Jobs are
// accepted even after cancellation. It must not be called after Stop.
func (wp *WorkerPool) Submit(job DownloadJob) {
	wp.jobQueue <- job
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		wp.logger.DebugWithFields("Worker processing job", map[string]interface{}{
			"worker_id": id,
			"page":      job.Page,
			"url":       job.URL,
		})

		// the fetcher turns a cancelled context into a failed outcome, so
		// queued jobs still drain with one result each
		outcome := wp.fetcher.Fetch(wp.ctx, job.URL, job.Destination, wp.maxAttempts)
		wp.resultQueue <- DownloadResult{Job: job, Outcome: outcome}
	}
}

// RunJobs downloads jobs with n workers and returns the results in job
// order. onResult, if set, is called from the calling goroutine as each
// result arrives.
func RunJobs(ctx context.Context, n int, fetcher AssetFetcher, maxAttempts int, jobs []DownloadJob, onResult func(DownloadResult), log logger.Logger) []DownloadResult {
	pool := NewWorkerPool(ctx, n, fetcher, maxAttempts, log)
	pool.Start()

	go func() {
		for _, job := range jobs {
			pool.Submit(job)
		}
		pool.Stop()
	}()

	results := make([]DownloadResult, 0, len(jobs))
	for r := range pool.Results() {
		if onResult != nil {
			onResult(r)
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Job.Index < results[j].Job.Index })
	return results
}
