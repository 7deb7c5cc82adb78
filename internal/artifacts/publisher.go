package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/ghmigrate/internal/batch"
	"github.com/temirov/ghmigrate/internal/migration"
)

const (
	defaultRetentionDaysConstant     = 30
	artifactFileNameTemplateConstant = "%s.log"
	artifactHeaderTemplateConstant   = "correlation_id: %s\nproject: %s\nrepository: %s\nstatus: %s\nduration: %s\nretention_days: %d\npublished_at: %s\n\n"
	artifactDirectoryPermissions     = 0o755
	artifactFilePermissions          = 0o644
	directoryNotConfiguredMessage    = "artifacts directory not configured"
	artifactPublishedMessageConstant = "Artifact published"
	logFieldCorrelationIDConstant    = "correlation_id"
	logFieldArtifactPathConstant     = "artifact_path"
)

// ErrDirectoryNotConfigured indicates the publisher was built without a
// destination directory.
var ErrDirectoryNotConfigured = errors.New(directoryNotConfiguredMessage)

// PublishFailure wraps the cause of an artifact write that did not complete.
// Publishing failures never change the status of the migrated job.
type PublishFailure struct {
	CorrelationID string
	Cause         error
}

// Error describes the failed publication.
func (failure PublishFailure) Error() string {
	return fmt.Sprintf("artifact publication for %s failed: %v", failure.CorrelationID, failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure PublishFailure) Unwrap() error {
	return failure.Cause
}

// ArtifactReference locates a published transcript.
type ArtifactReference struct {
	CorrelationID string
	Path          string
	RetentionDays int
}

// PublisherOptions configures where and how long transcripts live.
type PublisherOptions struct {
	Directory     string
	RetentionDays int
}

// Publisher writes one transcript file per job under a flat directory, named
// by the job's correlation identifier.
type Publisher struct {
	logger  *zap.Logger
	options PublisherOptions
	clock   func() time.Time
}

// NewPublisher constructs a Publisher rooted at the configured directory.
func NewPublisher(logger *zap.Logger, options PublisherOptions) (*Publisher, error) {
	if len(options.Directory) == 0 {
		return nil, ErrDirectoryNotConfigured
	}
	if options.RetentionDays <= 0 {
		options.RetentionDays = defaultRetentionDaysConstant
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{logger: logger, options: options, clock: time.Now}, nil
}

// Publish persists the result's transcript regardless of the job's status.
func (publisher *Publisher) Publish(descriptor batch.JobDescriptor, result migration.JobResult) (ArtifactReference, error) {
	if directoryError := os.MkdirAll(publisher.options.Directory, artifactDirectoryPermissions); directoryError != nil {
		return ArtifactReference{}, PublishFailure{CorrelationID: descriptor.CorrelationID, Cause: directoryError}
	}

	artifactFileName := fmt.Sprintf(artifactFileNameTemplateConstant, descriptor.CorrelationID)
	artifactPath := filepath.Join(publisher.options.Directory, artifactFileName)

	artifactHeader := fmt.Sprintf(
		artifactHeaderTemplateConstant,
		descriptor.CorrelationID,
		descriptor.ProjectKey,
		descriptor.RepositorySlug,
		string(result.Status),
		result.Duration,
		publisher.options.RetentionDays,
		publisher.clock().UTC().Format(time.RFC3339),
	)

	artifactContents := artifactHeader + result.Transcript
	if writeError := os.WriteFile(artifactPath, []byte(artifactContents), artifactFilePermissions); writeError != nil {
		return ArtifactReference{}, PublishFailure{CorrelationID: descriptor.CorrelationID, Cause: writeError}
	}

	publisher.logger.Debug(
		artifactPublishedMessageConstant,
		zap.String(logFieldCorrelationIDConstant, descriptor.CorrelationID),
		zap.String(logFieldArtifactPathConstant, artifactPath),
	)

	return ArtifactReference{
		CorrelationID: descriptor.CorrelationID,
		Path:          artifactPath,
		RetentionDays: publisher.options.RetentionDays,
	}, nil
}
