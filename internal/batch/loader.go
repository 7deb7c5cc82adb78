package batch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	manifestReadErrorTemplateConstant   = "unable to read batch manifest %s: %w"
	manifestDecodeErrorTemplateConstant = "unable to decode batch manifest %s: %w"
)

// Manifest is the on-disk batch description submitted for one run.
type Manifest struct {
	Jobs []RawJob `yaml:"jobs" json:"jobs"`
}

// LoadManifest reads an ordered batch manifest from a YAML or JSON file.
func LoadManifest(manifestPath string) (Manifest, error) {
	manifestContents, readError := os.ReadFile(manifestPath)
	if readError != nil {
		return Manifest{}, fmt.Errorf(manifestReadErrorTemplateConstant, manifestPath, readError)
	}

	var manifest Manifest
	if decodeError := yaml.Unmarshal(manifestContents, &manifest); decodeError != nil {
		return Manifest{}, fmt.Errorf(manifestDecodeErrorTemplateConstant, manifestPath, decodeError)
	}

	return manifest, nil
}
