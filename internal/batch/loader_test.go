package batch_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghmigrate/internal/batch"
)

const (
	testYAMLManifestContentConstant = `jobs:
  - project_key: PSS
    repository_name: repo-one
    destination_organization: pru-pss
    pipeline_type: Platform_Jenkins
  - project_key: PSS
    repository_name: repo-two
    destination_organization: pru-pss
    pipeline_type: Old_Jenkins
    display_name: Renamed Repo
`
	testJSONManifestContentConstant = `{"jobs":[{"project_key":"PSS","repository_name":"repo-one","destination_organization":"pru-pss","pipeline_type":"Both_Jenkins"}]}`
)

func writeManifestFile(testInstance *testing.T, fileName string, contents string) string {
	manifestPath := filepath.Join(testInstance.TempDir(), fileName)
	require.NoError(testInstance, os.WriteFile(manifestPath, []byte(contents), 0o600))
	return manifestPath
}

func TestLoadManifestDecodesYAML(testInstance *testing.T) {
	manifestPath := writeManifestFile(testInstance, "batch.yaml", testYAMLManifestContentConstant)

	manifest, loadError := batch.LoadManifest(manifestPath)
	require.NoError(testInstance, loadError)
	require.Len(testInstance, manifest.Jobs, 2)
	require.Equal(testInstance, "repo-one", manifest.Jobs[0].RepositoryName)
	require.Equal(testInstance, "Renamed Repo", manifest.Jobs[1].DisplayName)
}

func TestLoadManifestDecodesJSON(testInstance *testing.T) {
	manifestPath := writeManifestFile(testInstance, "batch.json", testJSONManifestContentConstant)

	manifest, loadError := batch.LoadManifest(manifestPath)
	require.NoError(testInstance, loadError)
	require.Len(testInstance, manifest.Jobs, 1)
	require.Equal(testInstance, "Both_Jenkins", manifest.Jobs[0].PipelineType)
}

func TestLoadManifestReportsMissingFile(testInstance *testing.T) {
	_, loadError := batch.LoadManifest(filepath.Join(testInstance.TempDir(), "absent.yaml"))
	require.Error(testInstance, loadError)
}

func TestLoadManifestReportsMalformedContent(testInstance *testing.T) {
	manifestPath := writeManifestFile(testInstance, "broken.yaml", "jobs: [1, 2")
	_, loadError := batch.LoadManifest(manifestPath)
	require.Error(testInstance, loadError)
}
