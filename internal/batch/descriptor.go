package batch

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	pipelineTypePlatformJenkinsStringConstant = "Platform_Jenkins"
	pipelineTypeOldJenkinsStringConstant      = "Old_Jenkins"
	pipelineTypeBothJenkinsStringConstant     = "Both_Jenkins"
	correlationNamespaceStringConstant        = "8c4f1c2e-74ab-5d88-9f3a-6be1c1a0d9f4"
	correlationSeedTemplateConstant           = "%s/%s"
	spaceStringConstant                       = " "
	hyphenStringConstant                      = "-"
	organizationPrefixTrimConstant            = "pru-"
	targetNameTemplateConstant                = "%s-%s"
)

// PipelineType enumerates the CI pipeline families a migrated repository may use.
type PipelineType string

// Supported pipeline type enumerations.
const (
	PipelineTypePlatformJenkins PipelineType = PipelineType(pipelineTypePlatformJenkinsStringConstant)
	PipelineTypeOldJenkins      PipelineType = PipelineType(pipelineTypeOldJenkinsStringConstant)
	PipelineTypeBothJenkins     PipelineType = PipelineType(pipelineTypeBothJenkinsStringConstant)
)

var knownPipelineTypes = map[PipelineType]struct{}{
	PipelineTypePlatformJenkins: {},
	PipelineTypeOldJenkins:      {},
	PipelineTypeBothJenkins:     {},
}

// IsKnown reports whether the pipeline type belongs to the supported set.
func (pipelineType PipelineType) IsKnown() bool {
	_, exists := knownPipelineTypes[pipelineType]
	return exists
}

var correlationNamespace = uuid.MustParse(correlationNamespaceStringConstant)

// JobDescriptor describes one repository migration job. Descriptors are
// immutable once produced by ValidateBatch.
type JobDescriptor struct {
	ProjectKey              string
	RepositorySlug          string
	DestinationOrganization string
	PipelineType            PipelineType
	DisplayName             string
	CorrelationID           string
}

// TargetRepositoryName derives the destination repository name from the
// organization, the repository slug, and the optional display name.
func (descriptor JobDescriptor) TargetRepositoryName() string {
	namePrefix := strings.TrimPrefix(strings.ToLower(descriptor.DestinationOrganization), organizationPrefixTrimConstant)

	baseName := descriptor.RepositorySlug
	if len(strings.TrimSpace(descriptor.DisplayName)) > 0 {
		baseName = descriptor.DisplayName
	}
	baseName = strings.ReplaceAll(strings.TrimSpace(baseName), spaceStringConstant, hyphenStringConstant)

	return strings.ToLower(fmt.Sprintf(targetNameTemplateConstant, namePrefix, baseName))
}

// DeriveCorrelationID produces a deterministic identifier for the source
// project key and repository slug so repeated runs name artifacts identically.
func DeriveCorrelationID(projectKey string, repositorySlug string) string {
	correlationSeed := fmt.Sprintf(correlationSeedTemplateConstant, strings.ToUpper(strings.TrimSpace(projectKey)), normalizeRepositorySlug(repositorySlug))
	return uuid.NewSHA1(correlationNamespace, []byte(correlationSeed)).String()
}

// normalizeRepositorySlug lowercases the slug and replaces spaces with hyphens.
func normalizeRepositorySlug(repositorySlug string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(repositorySlug), spaceStringConstant, hyphenStringConstant))
}
