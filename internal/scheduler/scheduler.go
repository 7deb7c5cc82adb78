package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/temirov/ghmigrate/internal/batch"
	"github.com/temirov/ghmigrate/internal/migration"
)

const (
	defaultMaxParallelConstant      = 10
	batchStartedMessageConstant     = "Batch dispatch started"
	batchFinishedMessageConstant    = "Batch dispatch finished"
	logFieldJobCountConstant        = "job_count"
	logFieldMaxParallelConstant     = "max_parallel"
	logFieldPeakConcurrencyConstant = "peak_concurrency"
)

// JobRunner executes one migration job and returns its terminal result.
type JobRunner func(executionContext context.Context, descriptor batch.JobDescriptor) migration.JobResult

// Options bounds the scheduler's worker pool.
type Options struct {
	MaxParallel int
}

// Scheduler dispatches jobs concurrently through a channel semaphore. A slow
// or failing job never prevents the remaining jobs from running.
type Scheduler struct {
	logger          *zap.Logger
	maxParallel     int
	activeWorkers   atomic.Int64
	peakConcurrency atomic.Int64
}

// NewScheduler constructs a Scheduler with the provided bound. Non-positive
// bounds fall back to the default.
func NewScheduler(logger *zap.Logger, options Options) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxParallel := options.MaxParallel
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallelConstant
	}
	return &Scheduler{logger: logger, maxParallel: maxParallel}
}

// MaxParallel reports the effective worker bound.
func (schedulerInstance *Scheduler) MaxParallel() int {
	return schedulerInstance.maxParallel
}

// PeakConcurrency reports the highest number of jobs observed in flight at
// once across all RunBatch calls.
func (schedulerInstance *Scheduler) PeakConcurrency() int {
	return int(schedulerInstance.peakConcurrency.Load())
}

// RunBatch runs every descriptor through runJob and returns one result per
// descriptor, indexed identically to the input slice regardless of the order
// in which jobs finish.
func (schedulerInstance *Scheduler) RunBatch(executionContext context.Context, descriptors []batch.JobDescriptor, runJob JobRunner) []migration.JobResult {
	schedulerInstance.logger.Info(
		batchStartedMessageConstant,
		zap.Int(logFieldJobCountConstant, len(descriptors)),
		zap.Int(logFieldMaxParallelConstant, schedulerInstance.maxParallel),
	)

	results := make([]migration.JobResult, len(descriptors))
	semaphore := make(chan struct{}, schedulerInstance.maxParallel)
	var waitGroup sync.WaitGroup

	for descriptorIndex, descriptor := range descriptors {
		waitGroup.Add(1)
		semaphore <- struct{}{}

		go func(resultIndex int, jobDescriptor batch.JobDescriptor) {
			defer waitGroup.Done()
			defer func() { <-semaphore }()

			activeCount := schedulerInstance.activeWorkers.Add(1)
			schedulerInstance.recordPeak(activeCount)
			defer schedulerInstance.activeWorkers.Add(-1)

			results[resultIndex] = runJob(executionContext, jobDescriptor)
		}(descriptorIndex, descriptor)
	}

	waitGroup.Wait()

	schedulerInstance.logger.Info(
		batchFinishedMessageConstant,
		zap.Int(logFieldJobCountConstant, len(descriptors)),
		zap.Int(logFieldPeakConcurrencyConstant, schedulerInstance.PeakConcurrency()),
	)

	return results
}

func (schedulerInstance *Scheduler) recordPeak(activeCount int64) {
	for {
		observedPeak := schedulerInstance.peakConcurrency.Load()
		if activeCount <= observedPeak {
			return
		}
		if schedulerInstance.peakConcurrency.CompareAndSwap(observedPeak, activeCount) {
			return
		}
	}
}
