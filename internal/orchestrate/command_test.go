package orchestrate_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/ghmigrate/internal/migration"
	"github.com/temirov/ghmigrate/internal/orchestrate"
)

func buildCommand(testInstance *testing.T, builder *orchestrate.CommandBuilder) (*cobra.Command, *bytes.Buffer) {
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(outputBuffer)
	command.SetContext(context.Background())

	return command, outputBuffer
}

func TestCommandRequiresManifest(testInstance *testing.T) {
	builder := &orchestrate.CommandBuilder{
		LoggerProvider: zap.NewNop,
		Broker:         &stubBroker{},
		Executor:       &stubExecutor{},
		Publisher:      &stubPublisher{},
	}

	command, _ := buildCommand(testInstance, builder)
	command.SetArgs([]string{"--bbs-server-url", "https://bitbucket.example.internal"})

	executionError := command.Execute()
	require.ErrorIs(testInstance, executionError, orchestrate.ErrManifestNotProvided)
}

func TestCommandRequiresSourceServerURL(testInstance *testing.T) {
	builder := &orchestrate.CommandBuilder{
		LoggerProvider: zap.NewNop,
		Broker:         &stubBroker{},
		Executor:       &stubExecutor{},
		Publisher:      &stubPublisher{},
	}

	command, _ := buildCommand(testInstance, builder)
	command.SetArgs([]string{"--manifest", "jobs.yaml"})

	executionError := command.Execute()
	require.ErrorIs(testInstance, executionError, orchestrate.ErrSourceServerNotProvided)
}

func TestCommandPrintsSummaryOnSuccess(testInstance *testing.T) {
	manifestPath := writeManifest(testInstance, "alpha", "beta")

	builder := &orchestrate.CommandBuilder{
		LoggerProvider: zap.NewNop,
		Broker:         &stubBroker{},
		Executor:       &stubExecutor{},
		Publisher:      &stubPublisher{},
	}

	command, outputBuffer := buildCommand(testInstance, builder)
	command.SetArgs([]string{
		"--manifest", manifestPath,
		"--bbs-server-url", "https://bitbucket.example.internal",
	})

	executionError := command.Execute()
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, outputBuffer.String(), "total=2 succeeded=2 failed=0 errored=0")
}

func TestCommandReturnsErrorWhenBatchFails(testInstance *testing.T) {
	manifestPath := writeManifest(testInstance, "alpha", "beta")

	builder := &orchestrate.CommandBuilder{
		LoggerProvider: zap.NewNop,
		Broker:         &stubBroker{},
		Executor: &stubExecutor{statusBySlug: map[string]migration.JobStatus{
			"beta": migration.JobStatusErrored,
		}},
		Publisher: &stubPublisher{},
	}

	command, outputBuffer := buildCommand(testInstance, builder)
	command.SetArgs([]string{
		"--manifest", manifestPath,
		"--bbs-server-url", "https://bitbucket.example.internal",
	})

	executionError := command.Execute()
	require.ErrorIs(testInstance, executionError, orchestrate.ErrBatchContainedFailedJobs)
	require.Contains(testInstance, outputBuffer.String(), "errored=1")
}

func TestCommandHonorsConfigurationProvider(testInstance *testing.T) {
	manifestPath := writeManifest(testInstance, "alpha")

	builder := &orchestrate.CommandBuilder{
		LoggerProvider: zap.NewNop,
		Broker:         &stubBroker{},
		Executor:       &stubExecutor{},
		Publisher:      &stubPublisher{},
		ConfigurationProvider: func() orchestrate.CommandConfiguration {
			configuration := orchestrate.DefaultCommandConfiguration()
			configuration.ManifestPath = manifestPath
			configuration.SourceServerURL = "https://bitbucket.example.internal"
			return configuration
		},
	}

	command, outputBuffer := buildCommand(testInstance, builder)
	command.SetArgs(nil)

	executionError := command.Execute()
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, outputBuffer.String(), "succeeded=1")
}
