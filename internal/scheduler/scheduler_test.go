package scheduler_test

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/ghmigrate/internal/batch"
	"github.com/temirov/ghmigrate/internal/migration"
	"github.com/temirov/ghmigrate/internal/scheduler"
)

func makeDescriptors(descriptorCount int) []batch.JobDescriptor {
	descriptors := make([]batch.JobDescriptor, 0, descriptorCount)
	for descriptorIndex := 0; descriptorIndex < descriptorCount; descriptorIndex++ {
		repositorySlug := fmt.Sprintf("repo-%03d", descriptorIndex)
		descriptors = append(descriptors, batch.JobDescriptor{
			ProjectKey:              "PSS",
			RepositorySlug:          repositorySlug,
			DestinationOrganization: "pru-pss",
			PipelineType:            batch.PipelineTypePlatformJenkins,
			CorrelationID:           batch.DeriveCorrelationID("PSS", repositorySlug),
		})
	}
	return descriptors
}

func TestSchedulerDefaultsMaxParallel(testInstance *testing.T) {
	schedulerInstance := scheduler.NewScheduler(zap.NewNop(), scheduler.Options{})
	require.Equal(testInstance, 10, schedulerInstance.MaxParallel())

	schedulerInstance = scheduler.NewScheduler(zap.NewNop(), scheduler.Options{MaxParallel: -3})
	require.Equal(testInstance, 10, schedulerInstance.MaxParallel())
}

func TestSchedulerNeverExceedsMaxParallel(testInstance *testing.T) {
	const maxParallel = 4
	schedulerInstance := scheduler.NewScheduler(zap.NewNop(), scheduler.Options{MaxParallel: maxParallel})

	descriptors := makeDescriptors(40)
	results := schedulerInstance.RunBatch(context.Background(), descriptors, func(executionContext context.Context, descriptor batch.JobDescriptor) migration.JobResult {
		time.Sleep(2 * time.Millisecond)
		return migration.JobResult{Descriptor: descriptor, Status: migration.JobStatusSucceeded}
	})

	require.Len(testInstance, results, len(descriptors))
	require.LessOrEqual(testInstance, schedulerInstance.PeakConcurrency(), maxParallel)
	require.Positive(testInstance, schedulerInstance.PeakConcurrency())
}

func TestSchedulerPreservesSubmissionOrder(testInstance *testing.T) {
	schedulerInstance := scheduler.NewScheduler(zap.NewNop(), scheduler.Options{MaxParallel: 8})

	descriptors := makeDescriptors(24)
	results := schedulerInstance.RunBatch(context.Background(), descriptors, func(executionContext context.Context, descriptor batch.JobDescriptor) migration.JobResult {
		// Early submissions sleep longest so completion order inverts.
		descriptorIndex, parseError := strconv.Atoi(strings.TrimPrefix(descriptor.RepositorySlug, "repo-"))
		require.NoError(testInstance, parseError)
		time.Sleep(time.Duration(24-descriptorIndex) * time.Millisecond)
		return migration.JobResult{Descriptor: descriptor, Status: migration.JobStatusSucceeded}
	})

	require.Len(testInstance, results, len(descriptors))
	for resultIndex, result := range results {
		require.Equal(testInstance, descriptors[resultIndex].CorrelationID, result.Descriptor.CorrelationID)
	}
}

func TestSchedulerRunsEveryJobExactlyOnce(testInstance *testing.T) {
	schedulerInstance := scheduler.NewScheduler(zap.NewNop(), scheduler.Options{MaxParallel: 3})

	descriptors := makeDescriptors(17)
	var executionLock sync.Mutex
	executionCounts := map[string]int{}

	results := schedulerInstance.RunBatch(context.Background(), descriptors, func(executionContext context.Context, descriptor batch.JobDescriptor) migration.JobResult {
		executionLock.Lock()
		executionCounts[descriptor.CorrelationID]++
		executionLock.Unlock()
		return migration.JobResult{Descriptor: descriptor, Status: migration.JobStatusFailed}
	})

	require.Len(testInstance, results, len(descriptors))
	require.Len(testInstance, executionCounts, len(descriptors))
	for _, executionCount := range executionCounts {
		require.Equal(testInstance, 1, executionCount)
	}
}

func TestSchedulerContinuesPastFailures(testInstance *testing.T) {
	schedulerInstance := scheduler.NewScheduler(zap.NewNop(), scheduler.Options{MaxParallel: 2})

	descriptors := makeDescriptors(6)
	results := schedulerInstance.RunBatch(context.Background(), descriptors, func(executionContext context.Context, descriptor batch.JobDescriptor) migration.JobResult {
		if descriptor.RepositorySlug == "repo-000" {
			return migration.JobResult{Descriptor: descriptor, Status: migration.JobStatusErrored}
		}
		return migration.JobResult{Descriptor: descriptor, Status: migration.JobStatusSucceeded}
	})

	require.Equal(testInstance, migration.JobStatusErrored, results[0].Status)
	for _, result := range results[1:] {
		require.Equal(testInstance, migration.JobStatusSucceeded, result.Status)
	}
}
