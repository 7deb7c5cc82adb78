package orchestrate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/ghmigrate/internal/artifacts"
	"github.com/temirov/ghmigrate/internal/batch"
	"github.com/temirov/ghmigrate/internal/credentials"
	"github.com/temirov/ghmigrate/internal/migration"
	"github.com/temirov/ghmigrate/internal/report"
	"github.com/temirov/ghmigrate/internal/scheduler"
)

const (
	manifestLoadErrorTemplateConstant = "manifest could not be loaded: %w"
	validationErrorTemplateConstant   = "manifest rejected: %w"
	batchValidatedMessageConstant     = "Batch validated"
	batchSummaryMessageConstant       = "Batch completed"
	artifactWarningMessageConstant    = "Artifact publication failed"
	credentialFailureReasonTemplate   = "credential acquisition failed: %v"
	executorNotConfiguredMessage      = "migration executor not configured"
	brokerNotConfiguredMessage        = "credential broker not configured"
	publisherNotConfiguredMessage     = "artifact publisher not configured"
	logFieldJobCountConstant          = "job_count"
	logFieldManifestPathConstant      = "manifest"
	logFieldSummaryConstant           = "summary"
	logFieldPublishedCountConstant    = "published_count"
	logFieldCorrelationIDConstant     = "correlation_id"
)

// Construction errors for Service.
var (
	ErrExecutorNotConfigured  = errors.New(executorNotConfiguredMessage)
	ErrBrokerNotConfigured    = errors.New(brokerNotConfiguredMessage)
	ErrPublisherNotConfigured = errors.New(publisherNotConfiguredMessage)
)

// CredentialBroker yields one fresh credential bundle per migration job.
type CredentialBroker interface {
	Acquire() (*credentials.Bundle, error)
}

// JobExecutor runs a single migration job to a terminal result.
type JobExecutor interface {
	Run(executionContext context.Context, descriptor batch.JobDescriptor, bundle *credentials.Bundle) migration.JobResult
}

// ArtifactPublisher persists a job transcript.
type ArtifactPublisher interface {
	Publish(descriptor batch.JobDescriptor, result migration.JobResult) (artifacts.ArtifactReference, error)
}

// ServiceDependencies bundles the collaborators a Service requires.
type ServiceDependencies struct {
	Logger    *zap.Logger
	Broker    CredentialBroker
	Executor  JobExecutor
	Scheduler *scheduler.Scheduler
	Publisher ArtifactPublisher
}

// Service drives a whole migration batch from manifest to report.
type Service struct {
	logger    *zap.Logger
	broker    CredentialBroker
	executor  JobExecutor
	scheduler *scheduler.Scheduler
	publisher ArtifactPublisher
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if dependencies.Broker == nil {
		return nil, ErrBrokerNotConfigured
	}
	if dependencies.Publisher == nil {
		return nil, ErrPublisherNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	schedulerInstance := dependencies.Scheduler
	if schedulerInstance == nil {
		schedulerInstance = scheduler.NewScheduler(logger, scheduler.Options{})
	}
	return &Service{
		logger:    logger,
		broker:    dependencies.Broker,
		executor:  dependencies.Executor,
		scheduler: schedulerInstance,
		publisher: dependencies.Publisher,
	}, nil
}

// Run loads and validates the manifest, migrates every job, publishes one
// artifact per job, and returns the aggregated report. Validation failures
// abort before any credential is acquired or any job starts.
func (service *Service) Run(executionContext context.Context, manifestPath string) (report.BatchReport, error) {
	manifest, loadError := batch.LoadManifest(manifestPath)
	if loadError != nil {
		return report.BatchReport{}, fmt.Errorf(manifestLoadErrorTemplateConstant, loadError)
	}

	descriptors, validationError := batch.ValidateBatch(manifest.Jobs)
	if validationError != nil {
		return report.BatchReport{}, fmt.Errorf(validationErrorTemplateConstant, validationError)
	}

	service.logger.Info(
		batchValidatedMessageConstant,
		zap.String(logFieldManifestPathConstant, manifestPath),
		zap.Int(logFieldJobCountConstant, len(descriptors)),
	)

	results := service.scheduler.RunBatch(executionContext, descriptors, service.runSingleJob)

	publishedCount := 0
	for _, result := range results {
		if _, publishError := service.publisher.Publish(result.Descriptor, result); publishError != nil {
			service.logger.Warn(
				artifactWarningMessageConstant,
				zap.String(logFieldCorrelationIDConstant, result.Descriptor.CorrelationID),
				zap.Error(publishError),
			)
			continue
		}
		publishedCount++
	}

	batchReport := report.Aggregate(results)

	service.logger.Info(
		batchSummaryMessageConstant,
		zap.String(logFieldSummaryConstant, batchReport.Summary()),
		zap.Int(logFieldPublishedCountConstant, publishedCount),
	)

	return batchReport, nil
}

// runSingleJob acquires a fresh bundle for the job and delegates to the
// executor. A bundle that cannot be acquired yields an errored result rather
// than aborting the batch.
func (service *Service) runSingleJob(executionContext context.Context, descriptor batch.JobDescriptor) migration.JobResult {
	bundle, acquisitionError := service.broker.Acquire()
	if acquisitionError != nil {
		return migration.JobResult{
			Descriptor:    descriptor,
			Status:        migration.JobStatusErrored,
			FailureReason: fmt.Sprintf(credentialFailureReasonTemplate, acquisitionError),
		}
	}

	return service.executor.Run(executionContext, descriptor, bundle)
}
