package orchestrate_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/ghmigrate/internal/artifacts"
	"github.com/temirov/ghmigrate/internal/batch"
	"github.com/temirov/ghmigrate/internal/credentials"
	"github.com/temirov/ghmigrate/internal/migration"
	"github.com/temirov/ghmigrate/internal/orchestrate"
	"github.com/temirov/ghmigrate/internal/scheduler"
)

const manifestTemplateConstant = `jobs:
%s`

const manifestJobTemplateConstant = `  - project_key: PSS
    repository_name: %s
    destination_organization: pru-pss
    pipeline_type: Platform_Jenkins
`

type stubBroker struct {
	acquireError error
	acquireCount int
	lock         sync.Mutex
}

func (broker *stubBroker) Acquire() (*credentials.Bundle, error) {
	broker.lock.Lock()
	broker.acquireCount++
	broker.lock.Unlock()
	if broker.acquireError != nil {
		return nil, broker.acquireError
	}
	return &credentials.Bundle{
		SourceUsername:   "svc-migrator",
		SourcePassword:   "secret",
		DestinationToken: "token",
		TransportKeyPath: "/tmp/key",
	}, nil
}

type stubExecutor struct {
	statusBySlug map[string]migration.JobStatus
}

func (executor *stubExecutor) Run(executionContext context.Context, descriptor batch.JobDescriptor, bundle *credentials.Bundle) migration.JobResult {
	status := migration.JobStatusSucceeded
	if overridden, exists := executor.statusBySlug[descriptor.RepositorySlug]; exists {
		status = overridden
	}
	return migration.JobResult{
		Descriptor: descriptor,
		Status:     status,
		Transcript: "transcript for " + descriptor.RepositorySlug,
	}
}

type stubPublisher struct {
	publishError error
	published    []string
	lock         sync.Mutex
}

func (publisher *stubPublisher) Publish(descriptor batch.JobDescriptor, result migration.JobResult) (artifacts.ArtifactReference, error) {
	publisher.lock.Lock()
	defer publisher.lock.Unlock()
	if publisher.publishError != nil {
		return artifacts.ArtifactReference{}, publisher.publishError
	}
	publisher.published = append(publisher.published, descriptor.CorrelationID)
	return artifacts.ArtifactReference{CorrelationID: descriptor.CorrelationID}, nil
}

func writeManifest(testInstance *testing.T, repositorySlugs ...string) string {
	jobEntries := ""
	for _, repositorySlug := range repositorySlugs {
		jobEntries += fmt.Sprintf(manifestJobTemplateConstant, repositorySlug)
	}
	manifestPath := filepath.Join(testInstance.TempDir(), "manifest.yaml")
	manifestContents := fmt.Sprintf(manifestTemplateConstant, jobEntries)
	require.NoError(testInstance, os.WriteFile(manifestPath, []byte(manifestContents), 0o644))
	return manifestPath
}

func makeService(testInstance *testing.T, broker orchestrate.CredentialBroker, executor orchestrate.JobExecutor, publisher orchestrate.ArtifactPublisher) *orchestrate.Service {
	service, creationError := orchestrate.NewService(orchestrate.ServiceDependencies{
		Logger:    zap.NewNop(),
		Broker:    broker,
		Executor:  executor,
		Scheduler: scheduler.NewScheduler(zap.NewNop(), scheduler.Options{MaxParallel: 2}),
		Publisher: publisher,
	})
	require.NoError(testInstance, creationError)
	return service
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	_, creationError := orchestrate.NewService(orchestrate.ServiceDependencies{})
	require.ErrorIs(testInstance, creationError, orchestrate.ErrExecutorNotConfigured)

	_, creationError = orchestrate.NewService(orchestrate.ServiceDependencies{Executor: &stubExecutor{}})
	require.ErrorIs(testInstance, creationError, orchestrate.ErrBrokerNotConfigured)

	_, creationError = orchestrate.NewService(orchestrate.ServiceDependencies{Executor: &stubExecutor{}, Broker: &stubBroker{}})
	require.ErrorIs(testInstance, creationError, orchestrate.ErrPublisherNotConfigured)
}

func TestServiceRunPublishesOneArtifactPerJob(testInstance *testing.T) {
	broker := &stubBroker{}
	publisher := &stubPublisher{}
	executor := &stubExecutor{statusBySlug: map[string]migration.JobStatus{
		"beta": migration.JobStatusFailed,
	}}
	service := makeService(testInstance, broker, executor, publisher)

	manifestPath := writeManifest(testInstance, "alpha", "beta", "gamma")
	batchReport, runError := service.Run(context.Background(), manifestPath)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, 3, batchReport.Total)
	require.Equal(testInstance, 2, batchReport.Succeeded)
	require.Equal(testInstance, 1, batchReport.Failed)
	require.True(testInstance, batchReport.BatchFailed())
	require.Len(testInstance, publisher.published, 3)
	require.Equal(testInstance, 3, broker.acquireCount)
}

func TestServiceRunPreservesManifestOrder(testInstance *testing.T) {
	service := makeService(testInstance, &stubBroker{}, &stubExecutor{}, &stubPublisher{})

	manifestPath := writeManifest(testInstance, "zeta", "alpha", "omega")
	batchReport, runError := service.Run(context.Background(), manifestPath)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, "zeta", batchReport.Results[0].Descriptor.RepositorySlug)
	require.Equal(testInstance, "alpha", batchReport.Results[1].Descriptor.RepositorySlug)
	require.Equal(testInstance, "omega", batchReport.Results[2].Descriptor.RepositorySlug)
}

func TestServiceRunAbortsOnValidationFailureBeforeAcquiringCredentials(testInstance *testing.T) {
	broker := &stubBroker{}
	service := makeService(testInstance, broker, &stubExecutor{}, &stubPublisher{})

	manifestPath := filepath.Join(testInstance.TempDir(), "manifest.yaml")
	manifestContents := "jobs:\n  - project_key: \"\"\n    repository_name: alpha\n    destination_organization: pru-pss\n    pipeline_type: Platform_Jenkins\n"
	require.NoError(testInstance, os.WriteFile(manifestPath, []byte(manifestContents), 0o644))

	_, runError := service.Run(context.Background(), manifestPath)

	var validationError batch.ValidationError
	require.ErrorAs(testInstance, runError, &validationError)
	require.Zero(testInstance, broker.acquireCount)
}

func TestServiceRunClassifiesCredentialFailureAsErrored(testInstance *testing.T) {
	broker := &stubBroker{acquireError: credentials.MissingCredentialError{VariableName: credentials.EnvSourcePassword}}
	publisher := &stubPublisher{}
	service := makeService(testInstance, broker, &stubExecutor{}, publisher)

	manifestPath := writeManifest(testInstance, "alpha", "beta")
	batchReport, runError := service.Run(context.Background(), manifestPath)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, 2, batchReport.Errored)
	require.True(testInstance, batchReport.BatchFailed())
	require.Len(testInstance, publisher.published, 2)
}

func TestServiceRunToleratesPublishFailures(testInstance *testing.T) {
	publisher := &stubPublisher{publishError: errors.New("disk full")}
	service := makeService(testInstance, &stubBroker{}, &stubExecutor{}, publisher)

	manifestPath := writeManifest(testInstance, "alpha")
	batchReport, runError := service.Run(context.Background(), manifestPath)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, 1, batchReport.Succeeded)
	require.False(testInstance, batchReport.BatchFailed())
}

func TestServiceRunReportsMissingManifest(testInstance *testing.T) {
	service := makeService(testInstance, &stubBroker{}, &stubExecutor{}, &stubPublisher{})

	_, runError := service.Run(context.Background(), filepath.Join(testInstance.TempDir(), "absent.yaml"))
	require.Error(testInstance, runError)
}

func TestServiceRunWithSlowAndFailingJobs(testInstance *testing.T) {
	slowExecutor := &slowFailingExecutor{}
	publisher := &stubPublisher{}
	service, creationError := orchestrate.NewService(orchestrate.ServiceDependencies{
		Logger:    zap.NewNop(),
		Broker:    &stubBroker{},
		Executor:  slowExecutor,
		Scheduler: scheduler.NewScheduler(zap.NewNop(), scheduler.Options{MaxParallel: 1}),
		Publisher: publisher,
	})
	require.NoError(testInstance, creationError)

	manifestPath := writeManifest(testInstance, "slow-success", "fast-failure")
	batchReport, runError := service.Run(context.Background(), manifestPath)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, 1, batchReport.Succeeded)
	require.Equal(testInstance, 1, batchReport.Failed)
	require.Equal(testInstance, "slow-success", batchReport.Results[0].Descriptor.RepositorySlug)
	require.Equal(testInstance, migration.JobStatusFailed, batchReport.Results[1].Status)
	require.Len(testInstance, publisher.published, 2)
}

type slowFailingExecutor struct{}

func (executor *slowFailingExecutor) Run(executionContext context.Context, descriptor batch.JobDescriptor, bundle *credentials.Bundle) migration.JobResult {
	if descriptor.RepositorySlug == "slow-success" {
		time.Sleep(20 * time.Millisecond)
		return migration.JobResult{Descriptor: descriptor, Status: migration.JobStatusSucceeded}
	}
	return migration.JobResult{Descriptor: descriptor, Status: migration.JobStatusFailed, FailureReason: "error marker present in migration output"}
}
