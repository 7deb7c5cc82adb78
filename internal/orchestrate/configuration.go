package orchestrate

import (
	"strings"
	"time"
)

const (
	defaultMaxParallelConstant        = 10
	defaultJobTimeoutConstant         = 30 * time.Minute
	defaultRetentionDaysConstant      = 30
	defaultArtifactsDirectoryConstant = "migration-artifacts"
)

// CommandConfiguration captures persisted configuration for batch migration.
type CommandConfiguration struct {
	ManifestPath       string        `mapstructure:"manifest"`
	MaxParallel        int           `mapstructure:"max_parallel"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"`
	ArtifactsDirectory string        `mapstructure:"artifacts_dir"`
	RetentionDays      int           `mapstructure:"retention_days"`
	SourceServerURL    string        `mapstructure:"bbs_server_url"`
	SourceServerHost   string        `mapstructure:"bbs_server_host"`
	SourceSSHUser      string        `mapstructure:"bbs_ssh_user"`
	WorkingDirectory   string        `mapstructure:"working_dir"`
}

// DefaultCommandConfiguration returns baseline configuration values for batch migration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		MaxParallel:        defaultMaxParallelConstant,
		JobTimeout:         defaultJobTimeoutConstant,
		ArtifactsDirectory: defaultArtifactsDirectoryConstant,
		RetentionDays:      defaultRetentionDaysConstant,
	}
}

// DefaultConfigurationValues exposes baseline values keyed for the
// configuration loader under the provided section prefix.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKeyPrefix + ".max_parallel":   defaults.MaxParallel,
		configurationKeyPrefix + ".job_timeout":    defaults.JobTimeout.String(),
		configurationKeyPrefix + ".artifacts_dir":  defaults.ArtifactsDirectory,
		configurationKeyPrefix + ".retention_days": defaults.RetentionDays,
	}
}

// Sanitize trims configured values and restores defaults for unusable entries.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.ManifestPath = strings.TrimSpace(configuration.ManifestPath)
	sanitized.ArtifactsDirectory = strings.TrimSpace(configuration.ArtifactsDirectory)
	sanitized.SourceServerURL = strings.TrimSpace(configuration.SourceServerURL)
	sanitized.SourceServerHost = strings.TrimSpace(configuration.SourceServerHost)
	sanitized.SourceSSHUser = strings.TrimSpace(configuration.SourceSSHUser)
	sanitized.WorkingDirectory = strings.TrimSpace(configuration.WorkingDirectory)

	if sanitized.MaxParallel <= 0 {
		sanitized.MaxParallel = defaultMaxParallelConstant
	}
	if sanitized.JobTimeout <= 0 {
		sanitized.JobTimeout = defaultJobTimeoutConstant
	}
	if sanitized.RetentionDays <= 0 {
		sanitized.RetentionDays = defaultRetentionDaysConstant
	}
	if len(sanitized.ArtifactsDirectory) == 0 {
		sanitized.ArtifactsDirectory = defaultArtifactsDirectoryConstant
	}

	return sanitized
}
