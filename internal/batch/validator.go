package batch

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	projectKeyFieldNameConstant         = "project_key"
	repositorySlugFieldNameConstant     = "repository_slug"
	destinationOrgFieldNameConstant     = "destination_organization"
	pipelineTypeFieldNameConstant       = "pipeline_type"
	requiredValueMessageConstant        = "value required"
	malformedIdentifierMessageConstant  = "identifier contains unsupported characters"
	unknownPipelineTypeMessageConstant  = "unknown pipeline type"
	validationErrorTemplateConstant     = "job %d: %s: %s"
	identifierCharsetPatternConstant    = `^[A-Za-z0-9._-]+$`
	organizationCharsetPatternConstant  = `^[A-Za-z0-9-]+$`
	emptyBatchMessageConstant           = "batch contains no jobs"
	duplicateCorrelationMessageConstant = "duplicate source repository in batch"
)

var (
	identifierPattern   = regexp.MustCompile(identifierCharsetPatternConstant)
	organizationPattern = regexp.MustCompile(organizationCharsetPatternConstant)
)

// RawJob carries unvalidated job fields decoded from a batch manifest.
type RawJob struct {
	ProjectKey              string `yaml:"project_key" json:"project_key"`
	RepositoryName          string `yaml:"repository_name" json:"repository_name"`
	DestinationOrganization string `yaml:"destination_organization" json:"destination_organization"`
	PipelineType            string `yaml:"pipeline_type" json:"pipeline_type"`
	DisplayName             string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
}

// ValidationError identifies the first invalid descriptor in a batch.
type ValidationError struct {
	JobIndex  int
	FieldName string
	Message   string
}

// Error describes the invalid job field.
func (validationError ValidationError) Error() string {
	return fmt.Sprintf(validationErrorTemplateConstant, validationError.JobIndex, validationError.FieldName, validationError.Message)
}

// ValidateBatch validates every raw job up front and returns immutable
// descriptors in manifest order. Any invalid job rejects the whole batch
// before a single job executes.
func ValidateBatch(rawJobs []RawJob) ([]JobDescriptor, error) {
	if len(rawJobs) == 0 {
		return nil, ValidationError{JobIndex: 0, FieldName: projectKeyFieldNameConstant, Message: emptyBatchMessageConstant}
	}

	descriptors := make([]JobDescriptor, 0, len(rawJobs))
	seenCorrelationIdentifiers := make(map[string]struct{}, len(rawJobs))

	for jobIndex, rawJob := range rawJobs {
		descriptor, validationError := validateJob(jobIndex, rawJob)
		if validationError != nil {
			return nil, validationError
		}

		if _, duplicated := seenCorrelationIdentifiers[descriptor.CorrelationID]; duplicated {
			return nil, ValidationError{JobIndex: jobIndex, FieldName: repositorySlugFieldNameConstant, Message: duplicateCorrelationMessageConstant}
		}
		seenCorrelationIdentifiers[descriptor.CorrelationID] = struct{}{}

		descriptors = append(descriptors, descriptor)
	}

	return descriptors, nil
}

func validateJob(jobIndex int, rawJob RawJob) (JobDescriptor, error) {
	projectKey := strings.TrimSpace(rawJob.ProjectKey)
	if len(projectKey) == 0 {
		return JobDescriptor{}, ValidationError{JobIndex: jobIndex, FieldName: projectKeyFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if !identifierPattern.MatchString(projectKey) {
		return JobDescriptor{}, ValidationError{JobIndex: jobIndex, FieldName: projectKeyFieldNameConstant, Message: malformedIdentifierMessageConstant}
	}

	repositorySlug := normalizeRepositorySlug(rawJob.RepositoryName)
	if len(repositorySlug) == 0 {
		return JobDescriptor{}, ValidationError{JobIndex: jobIndex, FieldName: repositorySlugFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if !identifierPattern.MatchString(repositorySlug) {
		return JobDescriptor{}, ValidationError{JobIndex: jobIndex, FieldName: repositorySlugFieldNameConstant, Message: malformedIdentifierMessageConstant}
	}

	destinationOrganization := strings.TrimSpace(rawJob.DestinationOrganization)
	if len(destinationOrganization) == 0 {
		return JobDescriptor{}, ValidationError{JobIndex: jobIndex, FieldName: destinationOrgFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if !organizationPattern.MatchString(destinationOrganization) {
		return JobDescriptor{}, ValidationError{JobIndex: jobIndex, FieldName: destinationOrgFieldNameConstant, Message: malformedIdentifierMessageConstant}
	}

	pipelineType := PipelineType(strings.TrimSpace(rawJob.PipelineType))
	if !pipelineType.IsKnown() {
		return JobDescriptor{}, ValidationError{JobIndex: jobIndex, FieldName: pipelineTypeFieldNameConstant, Message: unknownPipelineTypeMessageConstant}
	}

	return JobDescriptor{
		ProjectKey:              projectKey,
		RepositorySlug:          repositorySlug,
		DestinationOrganization: destinationOrganization,
		PipelineType:            pipelineType,
		DisplayName:             strings.TrimSpace(rawJob.DisplayName),
		CorrelationID:           DeriveCorrelationID(projectKey, repositorySlug),
	}, nil
}
