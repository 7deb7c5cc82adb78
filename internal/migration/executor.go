package migration

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/ghmigrate/internal/batch"
	"github.com/temirov/ghmigrate/internal/credentials"
	"github.com/temirov/ghmigrate/internal/execshell"
)

const (
	bbs2ghExtensionNameConstant          = "bbs2gh"
	migrateRepoSubcommandConstant        = "migrate-repo"
	bbsServerURLFlagConstant             = "--bbs-server-url"
	bbsProjectFlagConstant               = "--bbs-project"
	bbsRepoFlagConstant                  = "--bbs-repo"
	archivePathFlagConstant              = "--archive-path"
	githubOrgFlagConstant                = "--github-org"
	githubRepoFlagConstant               = "--github-repo"
	transportStrictHostKeyOptionConstant = "StrictHostKeyChecking=no"
	transportOptionFlagConstant          = "-o"
	transportIdentityFlagConstant        = "-i"
	remoteTargetTemplateConstant         = "%s@%s"
	remoteCopySourceTemplateConstant     = "%s@%s:%s"
	stageArchiveCommandTemplateConstant  = "dzdo cat %s > %s"
	removeArchiveCommandTemplateConstant = "rm %s"
	sharedHomeMountPathConstant          = "/apps/bitbucket/bitbucket/shared"
	stagingDirectoryConstant             = "/mnt/bbmigration"
	errorMarkerConstant                  = "[ERROR]"
	exportCompletedSentinelConstant      = "Export completed"
	archivePathPatternConstant           = `BITBUCKET_SHARED_HOME(\S+)`
	defaultJobTimeoutConstant            = 30 * time.Minute
	timeoutReasonTemplateConstant        = "job exceeded deadline of %s"
	exportStartFailureReasonConstant     = "export invocation could not start"
	stagingFailureReasonConstant         = "archive staging on the source host could not complete"
	downloadFailureReasonConstant        = "archive download could not complete"
	cleanupFailureReasonConstant         = "staged archive could not be removed from the source host"
	importStartFailureReasonConstant     = "import invocation could not start"
	archivePathMissingReasonConstant     = "export output did not announce an archive path"
	markerDetectedReasonConstant         = "error marker present in migration output"
	nonZeroExitReasonTemplateConstant    = "migration command exited with code %d"
	shellNotConfiguredMessageConstant    = "shell executor not configured"
	brokerNotConfiguredMessageConstant   = "credential bundle not supplied"
	jobStartedMessageConstant            = "Migration job started"
	jobFinishedMessageConstant           = "Migration job finished"
	logFieldCorrelationIDConstant        = "correlation_id"
	logFieldJobStatusConstant            = "status"
	logFieldJobDurationConstant          = "duration"
	transcriptSeparatorConstant          = "\n"
)

var archivePathPattern = regexp.MustCompile(archivePathPatternConstant)

// Package errors surfaced during executor construction.
var (
	ErrShellNotConfigured = errors.New(shellNotConfiguredMessageConstant)
	ErrBundleNotSupplied  = errors.New(brokerNotConfiguredMessageConstant)
)

// ShellRunner is the minimal surface the executor requires from execshell.
type ShellRunner interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteSSH(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteSCP(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ExecutorOptions configures the external migration invocation.
type ExecutorOptions struct {
	SourceServerURL  string
	SourceServerHost string
	SourceSSHUser    string
	WorkingDirectory string
	JobTimeout       time.Duration
}

// Executor runs one migration job end-to-end and classifies its outcome.
type Executor struct {
	logger  *zap.Logger
	shell   ShellRunner
	options ExecutorOptions
}

// NewExecutor constructs an Executor around the provided shell runner.
func NewExecutor(logger *zap.Logger, shell ShellRunner, options ExecutorOptions) (*Executor, error) {
	if shell == nil {
		return nil, ErrShellNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.JobTimeout <= 0 {
		options.JobTimeout = defaultJobTimeoutConstant
	}
	return &Executor{logger: logger, shell: shell, options: options}, nil
}

// Run migrates one repository. The returned result is always populated; the
// bundle is scrubbed before Run returns on every exit path.
func (executor *Executor) Run(executionContext context.Context, descriptor batch.JobDescriptor, bundle *credentials.Bundle) JobResult {
	startTime := time.Now()

	executor.logger.Info(
		jobStartedMessageConstant,
		zap.String(logFieldCorrelationIDConstant, descriptor.CorrelationID),
	)

	result := executor.runStages(executionContext, descriptor, bundle)
	result.Duration = time.Since(startTime)

	executor.logger.Info(
		jobFinishedMessageConstant,
		zap.String(logFieldCorrelationIDConstant, descriptor.CorrelationID),
		zap.String(logFieldJobStatusConstant, string(result.Status)),
		zap.Duration(logFieldJobDurationConstant, result.Duration),
	)

	return result
}

func (executor *Executor) runStages(executionContext context.Context, descriptor batch.JobDescriptor, bundle *credentials.Bundle) JobResult {
	if bundle == nil {
		return JobResult{
			Descriptor:    descriptor,
			Status:        JobStatusErrored,
			FailureReason: ErrBundleNotSupplied.Error(),
		}
	}
	defer bundle.Scrub()

	jobContext, cancelJob := context.WithTimeout(executionContext, executor.options.JobTimeout)
	defer cancelJob()

	redactor := credentials.NewRedactor(bundle)
	var transcriptBuilder strings.Builder

	finish := func(status JobStatus, failureReason string) JobResult {
		transcript := redactor.Redact(transcriptBuilder.String())
		return JobResult{
			Descriptor:    descriptor,
			Status:        status,
			Transcript:    transcript,
			LogExcerpt:    buildLogExcerpt(transcript),
			FailureReason: failureReason,
		}
	}

	credentialEnvironment := map[string]string{
		credentials.EnvSourceUsername:   bundle.SourceUsername,
		credentials.EnvSourcePassword:   bundle.SourcePassword,
		credentials.EnvDestinationToken: bundle.DestinationToken,
	}

	exportResult, exportError := executor.shell.ExecuteGitHubCLI(jobContext, execshell.CommandDetails{
		Arguments: []string{
			bbs2ghExtensionNameConstant,
			migrateRepoSubcommandConstant,
			bbsServerURLFlagConstant, executor.options.SourceServerURL,
			bbsProjectFlagConstant, descriptor.ProjectKey,
			bbsRepoFlagConstant, descriptor.RepositorySlug,
		},
		WorkingDirectory:     executor.options.WorkingDirectory,
		EnvironmentVariables: credentialEnvironment,
	})
	appendExecutionOutput(&transcriptBuilder, exportResult)

	if stageStatus, stageReason, terminal := classifyStageError(jobContext, exportError, exportStartFailureReasonConstant); terminal {
		return finish(stageStatus, stageReason)
	}

	archivePath, archivePathFound := extractArchivePath(exportResult.StandardOutput)
	if !archivePathFound {
		return finish(JobStatusErrored, archivePathMissingReasonConstant)
	}

	// The exported archive lives under the shared home and is only readable
	// with privilege escalation, so it is staged into a world-readable
	// scratch directory on the source host before the copy and removed after.
	localArchiveName := path.Base(archivePath)
	remoteTarget := fmt.Sprintf(remoteTargetTemplateConstant, executor.options.SourceSSHUser, executor.options.SourceServerHost)
	stagedArchivePath := path.Join(stagingDirectoryConstant, localArchiveName)
	transportOptions := []string{
		transportOptionFlagConstant, transportStrictHostKeyOptionConstant,
		transportIdentityFlagConstant, bundle.TransportKeyPath,
	}

	stagingResult, stagingError := executor.shell.ExecuteSSH(jobContext, execshell.CommandDetails{
		Arguments: append(append([]string{}, transportOptions...),
			remoteTarget,
			fmt.Sprintf(stageArchiveCommandTemplateConstant, sharedHomeMountPathConstant+archivePath, stagedArchivePath),
		),
		WorkingDirectory: executor.options.WorkingDirectory,
	})
	appendExecutionOutput(&transcriptBuilder, stagingResult)

	if stageStatus, stageReason, terminal := classifyStageError(jobContext, stagingError, stagingFailureReasonConstant); terminal {
		return finish(stageStatus, stageReason)
	}

	downloadResult, downloadError := executor.shell.ExecuteSCP(jobContext, execshell.CommandDetails{
		Arguments: append(append([]string{}, transportOptions...),
			fmt.Sprintf(remoteCopySourceTemplateConstant, executor.options.SourceSSHUser, executor.options.SourceServerHost, stagedArchivePath),
			localArchiveName,
		),
		WorkingDirectory: executor.options.WorkingDirectory,
	})
	appendExecutionOutput(&transcriptBuilder, downloadResult)

	if stageStatus, stageReason, terminal := classifyStageError(jobContext, downloadError, downloadFailureReasonConstant); terminal {
		return finish(stageStatus, stageReason)
	}

	cleanupResult, cleanupError := executor.shell.ExecuteSSH(jobContext, execshell.CommandDetails{
		Arguments: append(append([]string{}, transportOptions...),
			remoteTarget,
			fmt.Sprintf(removeArchiveCommandTemplateConstant, stagedArchivePath),
		),
		WorkingDirectory: executor.options.WorkingDirectory,
	})
	appendExecutionOutput(&transcriptBuilder, cleanupResult)

	if stageStatus, stageReason, terminal := classifyStageError(jobContext, cleanupError, cleanupFailureReasonConstant); terminal {
		return finish(stageStatus, stageReason)
	}

	importResult, importError := executor.shell.ExecuteGitHubCLI(jobContext, execshell.CommandDetails{
		Arguments: []string{
			bbs2ghExtensionNameConstant,
			migrateRepoSubcommandConstant,
			archivePathFlagConstant, localArchiveName,
			githubOrgFlagConstant, descriptor.DestinationOrganization,
			githubRepoFlagConstant, descriptor.TargetRepositoryName(),
			bbsServerURLFlagConstant, executor.options.SourceServerURL,
			bbsProjectFlagConstant, descriptor.ProjectKey,
			bbsRepoFlagConstant, descriptor.RepositorySlug,
		},
		WorkingDirectory:     executor.options.WorkingDirectory,
		EnvironmentVariables: credentialEnvironment,
	})
	appendExecutionOutput(&transcriptBuilder, importResult)

	if stageStatus, stageReason, terminal := classifyStageError(jobContext, importError, importStartFailureReasonConstant); terminal {
		return finish(stageStatus, stageReason)
	}

	// Marker scanning is authoritative over exit codes: the extension may
	// exit zero while reporting a partial failure in its output.
	if strings.Contains(transcriptBuilder.String(), errorMarkerConstant) {
		return finish(JobStatusFailed, markerDetectedReasonConstant)
	}

	return finish(JobStatusSucceeded, "")
}

// classifyStageError maps a stage error onto the job taxonomy. A non-zero
// exit is Failed when the marker scan has not yet run; a command that never
// started, or a deadline expiry, is Errored.
func classifyStageError(jobContext context.Context, stageError error, startFailureReason string) (JobStatus, string, bool) {
	if stageError == nil {
		return JobStatusSucceeded, "", false
	}

	if deadlineError := jobContext.Err(); errors.Is(deadlineError, context.DeadlineExceeded) {
		return JobStatusErrored, fmt.Sprintf(timeoutReasonTemplateConstant, deadlineError), true
	}

	var commandFailure execshell.CommandFailedError
	if errors.As(stageError, &commandFailure) {
		return JobStatusFailed, fmt.Sprintf(nonZeroExitReasonTemplateConstant, commandFailure.Result.ExitCode), true
	}

	return JobStatusErrored, startFailureReason, true
}

// appendExecutionOutput prefers the interleaved combined stream so the
// transcript reflects the order the external command emitted its lines.
func appendExecutionOutput(transcriptBuilder *strings.Builder, executionResult execshell.ExecutionResult) {
	if len(executionResult.CombinedOutput) > 0 {
		transcriptBuilder.WriteString(executionResult.CombinedOutput)
		transcriptBuilder.WriteString(transcriptSeparatorConstant)
		return
	}
	if len(executionResult.StandardOutput) > 0 {
		transcriptBuilder.WriteString(executionResult.StandardOutput)
		transcriptBuilder.WriteString(transcriptSeparatorConstant)
	}
	if len(executionResult.StandardError) > 0 {
		transcriptBuilder.WriteString(executionResult.StandardError)
		transcriptBuilder.WriteString(transcriptSeparatorConstant)
	}
}

// extractArchivePath locates the exported archive location announced by the
// extension after its export phase.
func extractArchivePath(exportOutput string) (string, bool) {
	if !strings.Contains(exportOutput, exportCompletedSentinelConstant) {
		return "", false
	}
	matchGroups := archivePathPattern.FindStringSubmatch(exportOutput)
	if len(matchGroups) < 2 {
		return "", false
	}
	return matchGroups[1], true
}
