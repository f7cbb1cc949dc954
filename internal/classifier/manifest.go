package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultClasses are the class ids of the four-class training scheme.
var DefaultClasses = []int{0, 1, 2, 3}

// ManifestEntry describes one model to preload.
type ManifestEntry struct {
	Name     string  `yaml:"name"`
	Strategy string  `yaml:"strategy"`
	Format   Format  `yaml:"format"`
	Path     string  `yaml:"path"`
	Accuracy float64 `yaml:"accuracy"`
	Classes  []int   `yaml:"classes"`
	// Features is the ONNX input width; defaults to the strategy's length.
	Features int `yaml:"features"`

	InputName         string  `yaml:"input_name"`
	LabelOutput       string  `yaml:"label_output"`
	ProbabilityOutput *string `yaml:"probability_output"`
}

// Manifest is the YAML document listing the available models.
type Manifest struct {
	Models []ManifestEntry `yaml:"models"`
}

// StrategyName returns the configured strategy, or the name's prefix before
// the first underscore (COLOR_RF uses COLOR).
func (e ManifestEntry) StrategyName() string {
	if s := strings.TrimSpace(e.Strategy); s != "" {
		return strings.ToUpper(s)
	}
	prefix, _, _ := strings.Cut(e.Name, "_")
	return strings.ToUpper(prefix)
}

func (e ManifestEntry) probabilityOutput() string {
	if e.ProbabilityOutput == nil {
		return "probabilities"
	}
	return *e.ProbabilityOutput
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes a manifest and fills in defaults.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	seen := make(map[string]bool, len(m.Models))
	for i := range m.Models {
		e := &m.Models[i]
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			return nil, fmt.Errorf("manifest entry %d has no name", i)
		}
		if seen[strings.ToUpper(e.Name)] {
			return nil, fmt.Errorf("duplicate model name %q", e.Name)
		}
		seen[strings.ToUpper(e.Name)] = true

		if e.Path == "" {
			return nil, fmt.Errorf("model %s has no path", e.Name)
		}
		if e.Format == "" {
			e.Format = FormatFromPath(e.Path)
		}
		if len(e.Classes) == 0 {
			e.Classes = DefaultClasses
		}
		if e.InputName == "" {
			e.InputName = "float_input"
		}
		if e.LabelOutput == "" {
			e.LabelOutput = "label"
		}
	}
	return &m, nil
}
