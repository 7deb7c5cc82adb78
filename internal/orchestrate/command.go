package orchestrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ghmigrate/internal/artifacts"
	"github.com/temirov/ghmigrate/internal/credentials"
	"github.com/temirov/ghmigrate/internal/execshell"
	"github.com/temirov/ghmigrate/internal/migration"
	"github.com/temirov/ghmigrate/internal/scheduler"
)

const (
	commandUseConstant                    = "migrate"
	commandShortDescriptionConstant       = "Migrate a batch of Bitbucket Server repositories to GitHub"
	commandLongDescriptionConstant        = "migrate validates a job manifest, runs each repository migration through the GitHub bbs2gh extension with bounded parallelism, publishes one transcript artifact per job, and reports the batch outcome."
	manifestFlagNameConstant              = "manifest"
	manifestFlagUsageConstant             = "Path to the YAML or JSON job manifest"
	maxParallelFlagNameConstant           = "max-parallel"
	maxParallelFlagUsageConstant          = "Upper bound on concurrently running migrations"
	jobTimeoutFlagNameConstant            = "job-timeout"
	jobTimeoutFlagUsageConstant           = "Per-job deadline after which the migration is classified as errored"
	artifactsDirectoryFlagNameConstant    = "artifacts-dir"
	artifactsDirectoryFlagUsageConstant   = "Directory receiving one transcript artifact per job"
	retentionDaysFlagNameConstant         = "retention-days"
	retentionDaysFlagUsageConstant        = "Retention period recorded on published artifacts"
	sourceServerURLFlagNameConstant       = "bbs-server-url"
	sourceServerURLFlagUsageConstant      = "Bitbucket Server base URL"
	sourceServerHostFlagNameConstant      = "bbs-server-host"
	sourceServerHostFlagUsageConstant     = "Bitbucket Server host used for archive download"
	sourceSSHUserFlagNameConstant         = "bbs-ssh-user"
	sourceSSHUserFlagUsageConstant        = "SSH user for archive download"
	manifestMissingMessageConstant        = "manifest path not provided"
	sourceServerURLMissingMessage         = "bitbucket server url not provided"
	batchFailedMessageConstant            = "one or more migration jobs did not succeed"
	shellCreationErrorTemplateConstant    = "unable to construct shell executor: %w"
	executorCreationErrorTemplateConstant = "unable to construct migration executor: %w"
	publisherCreationErrorTemplate        = "unable to construct artifact publisher: %w"
	serviceCreationErrorTemplateConstant  = "unable to construct migration service: %w"
)

// Command errors surfaced to the CLI shell.
var (
	ErrManifestNotProvided      = errors.New(manifestMissingMessageConstant)
	ErrSourceServerNotProvided  = errors.New(sourceServerURLMissingMessage)
	ErrBatchContainedFailedJobs = errors.New(batchFailedMessageConstant)
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs a batch service from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (*Service, error)

type commandOptions struct {
	configuration CommandConfiguration
}

// CommandBuilder assembles the migrate Cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	ServiceProvider       ServiceProvider
	Broker                CredentialBroker
	Executor              JobExecutor
	Publisher             ArtifactPublisher
}

// Build constructs the migrate command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runMigrate,
	}

	command.Flags().String(manifestFlagNameConstant, "", manifestFlagUsageConstant)
	command.Flags().Int(maxParallelFlagNameConstant, defaultMaxParallelConstant, maxParallelFlagUsageConstant)
	command.Flags().Duration(jobTimeoutFlagNameConstant, defaultJobTimeoutConstant, jobTimeoutFlagUsageConstant)
	command.Flags().String(artifactsDirectoryFlagNameConstant, defaultArtifactsDirectoryConstant, artifactsDirectoryFlagUsageConstant)
	command.Flags().Int(retentionDaysFlagNameConstant, defaultRetentionDaysConstant, retentionDaysFlagUsageConstant)
	command.Flags().String(sourceServerURLFlagNameConstant, "", sourceServerURLFlagUsageConstant)
	command.Flags().String(sourceServerHostFlagNameConstant, "", sourceServerHostFlagUsageConstant)
	command.Flags().String(sourceSSHUserFlagNameConstant, "", sourceSSHUserFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) runMigrate(command *cobra.Command, arguments []string) error {
	options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()

	service, serviceError := builder.resolveService(logger, options.configuration)
	if serviceError != nil {
		return serviceError
	}

	batchReport, runError := service.Run(command.Context(), options.configuration.ManifestPath)
	if runError != nil {
		return runError
	}

	fmt.Fprintln(command.OutOrStdout(), batchReport.Summary())

	if batchReport.BatchFailed() {
		return ErrBatchContainedFailedJobs
	}

	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) (commandOptions, error) {
	configuration := builder.resolveConfiguration()

	if command != nil {
		flagSet := command.Flags()
		if flagSet.Changed(manifestFlagNameConstant) {
			flagValue, _ := flagSet.GetString(manifestFlagNameConstant)
			configuration.ManifestPath = strings.TrimSpace(flagValue)
		}
		if flagSet.Changed(maxParallelFlagNameConstant) {
			configuration.MaxParallel, _ = flagSet.GetInt(maxParallelFlagNameConstant)
		}
		if flagSet.Changed(jobTimeoutFlagNameConstant) {
			configuration.JobTimeout, _ = flagSet.GetDuration(jobTimeoutFlagNameConstant)
		}
		if flagSet.Changed(artifactsDirectoryFlagNameConstant) {
			flagValue, _ := flagSet.GetString(artifactsDirectoryFlagNameConstant)
			configuration.ArtifactsDirectory = strings.TrimSpace(flagValue)
		}
		if flagSet.Changed(retentionDaysFlagNameConstant) {
			configuration.RetentionDays, _ = flagSet.GetInt(retentionDaysFlagNameConstant)
		}
		if flagSet.Changed(sourceServerURLFlagNameConstant) {
			flagValue, _ := flagSet.GetString(sourceServerURLFlagNameConstant)
			configuration.SourceServerURL = strings.TrimSpace(flagValue)
		}
		if flagSet.Changed(sourceServerHostFlagNameConstant) {
			flagValue, _ := flagSet.GetString(sourceServerHostFlagNameConstant)
			configuration.SourceServerHost = strings.TrimSpace(flagValue)
		}
		if flagSet.Changed(sourceSSHUserFlagNameConstant) {
			flagValue, _ := flagSet.GetString(sourceSSHUserFlagNameConstant)
			configuration.SourceSSHUser = strings.TrimSpace(flagValue)
		}
	}

	configuration = configuration.Sanitize()

	if len(configuration.ManifestPath) == 0 {
		return commandOptions{}, ErrManifestNotProvided
	}
	if len(configuration.SourceServerURL) == 0 {
		return commandOptions{}, ErrSourceServerNotProvided
	}

	return commandOptions{configuration: configuration}, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveService(logger *zap.Logger, configuration CommandConfiguration) (*Service, error) {
	executor, executorError := builder.resolveExecutor(logger, configuration)
	if executorError != nil {
		return nil, executorError
	}

	publisher, publisherError := builder.resolvePublisher(logger, configuration)
	if publisherError != nil {
		return nil, publisherError
	}

	dependencies := ServiceDependencies{
		Logger:    logger,
		Broker:    builder.resolveBroker(),
		Executor:  executor,
		Scheduler: scheduler.NewScheduler(logger, scheduler.Options{MaxParallel: configuration.MaxParallel}),
		Publisher: publisher,
	}

	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}

	service, serviceError := NewService(dependencies)
	if serviceError != nil {
		return nil, fmt.Errorf(serviceCreationErrorTemplateConstant, serviceError)
	}
	return service, nil
}

func (builder *CommandBuilder) resolveBroker() CredentialBroker {
	if builder.Broker != nil {
		return builder.Broker
	}
	return credentials.NewBroker(nil)
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger, configuration CommandConfiguration) (JobExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	shellExecutor, shellError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if shellError != nil {
		return nil, fmt.Errorf(shellCreationErrorTemplateConstant, shellError)
	}

	executor, executorError := migration.NewExecutor(logger, shellExecutor, migration.ExecutorOptions{
		SourceServerURL:  configuration.SourceServerURL,
		SourceServerHost: configuration.SourceServerHost,
		SourceSSHUser:    configuration.SourceSSHUser,
		WorkingDirectory: configuration.WorkingDirectory,
		JobTimeout:       configuration.JobTimeout,
	})
	if executorError != nil {
		return nil, fmt.Errorf(executorCreationErrorTemplateConstant, executorError)
	}
	return executor, nil
}

func (builder *CommandBuilder) resolvePublisher(logger *zap.Logger, configuration CommandConfiguration) (ArtifactPublisher, error) {
	if builder.Publisher != nil {
		return builder.Publisher, nil
	}

	publisher, publisherError := artifacts.NewPublisher(logger, artifacts.PublisherOptions{
		Directory:     configuration.ArtifactsDirectory,
		RetentionDays: configuration.RetentionDays,
	})
	if publisherError != nil {
		return nil, fmt.Errorf(publisherCreationErrorTemplate, publisherError)
	}
	return publisher, nil
}
