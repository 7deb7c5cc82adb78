package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment variable names consulted when acquiring credentials.
const (
	EnvSourceUsername   = "BBS_USERNAME"
	EnvSourcePassword   = "BBS_PASSWORD"
	EnvDestinationToken = "GH_PAT"
	EnvGitHubCLIToken   = "GH_TOKEN"
	EnvGitHubToken      = "GITHUB_TOKEN"
	EnvTransportKeyPath = "BBS_SSH_KEY_PATH"
)

const (
	missingCredentialErrorTemplateConstant = "environment variable %s is not set"
	emptyStringConstant                    = ""
)

var destinationTokenPreference = []string{
	EnvDestinationToken,
	EnvGitHubCLIToken,
	EnvGitHubToken,
}

// Bundle holds the secrets one migration job needs. A bundle belongs to a
// single job and must be scrubbed when that job completes.
type Bundle struct {
	SourceUsername   string
	SourcePassword   string
	DestinationToken string
	TransportKeyPath string
}

// Scrub clears all secret material from the bundle.
func (bundle *Bundle) Scrub() {
	if bundle == nil {
		return
	}
	bundle.SourceUsername = emptyStringConstant
	bundle.SourcePassword = emptyStringConstant
	bundle.DestinationToken = emptyStringConstant
	bundle.TransportKeyPath = emptyStringConstant
}

// MissingCredentialError identifies the environment variable a job could not
// resolve during acquisition.
type MissingCredentialError struct {
	VariableName string
}

// Error describes the missing environment variable.
func (missingError MissingCredentialError) Error() string {
	return fmt.Sprintf(missingCredentialErrorTemplateConstant, missingError.VariableName)
}

// EnvironmentLookup resolves environment variables; it matches os.LookupEnv.
type EnvironmentLookup func(variableName string) (string, bool)

// Broker acquires credential bundles scoped to individual jobs.
type Broker struct {
	lookup EnvironmentLookup
}

var errLookupNotConfigured = errors.New("environment lookup not configured")

// NewBroker constructs a Broker reading from the supplied lookup. A nil
// lookup falls back to the process environment.
func NewBroker(lookup EnvironmentLookup) *Broker {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Broker{lookup: lookup}
}

// Acquire resolves a fresh bundle for one job. Each call returns independent
// copies so scrubbing one job's bundle never affects a sibling job.
func (broker *Broker) Acquire() (*Bundle, error) {
	if broker == nil || broker.lookup == nil {
		return nil, errLookupNotConfigured
	}

	sourceUsername, usernameError := broker.requireValue(EnvSourceUsername)
	if usernameError != nil {
		return nil, usernameError
	}

	sourcePassword, passwordError := broker.requireValue(EnvSourcePassword)
	if passwordError != nil {
		return nil, passwordError
	}

	destinationToken, tokenError := broker.resolveDestinationToken()
	if tokenError != nil {
		return nil, tokenError
	}

	transportKeyPath, transportError := broker.requireValue(EnvTransportKeyPath)
	if transportError != nil {
		return nil, transportError
	}

	return &Bundle{
		SourceUsername:   sourceUsername,
		SourcePassword:   sourcePassword,
		DestinationToken: destinationToken,
		TransportKeyPath: transportKeyPath,
	}, nil
}

func (broker *Broker) requireValue(variableName string) (string, error) {
	value, exists := broker.lookup(variableName)
	trimmedValue := strings.TrimSpace(value)
	if !exists || len(trimmedValue) == 0 {
		return emptyStringConstant, MissingCredentialError{VariableName: variableName}
	}
	return trimmedValue, nil
}

func (broker *Broker) resolveDestinationToken() (string, error) {
	for _, variableName := range destinationTokenPreference {
		value, exists := broker.lookup(variableName)
		trimmedValue := strings.TrimSpace(value)
		if exists && len(trimmedValue) > 0 {
			return trimmedValue, nil
		}
	}
	return emptyStringConstant, MissingCredentialError{VariableName: EnvDestinationToken}
}
