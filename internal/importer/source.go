package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/scenesync/internal/protocol"
)

// Manifest is the object list another authoring tool exported for one level.
// Names are the foreign tool's and have not been sanitized.
type Manifest struct {
	Level   string           `yaml:"level"`
	Objects []ManifestObject `yaml:"objects"`
}

// ManifestObject is one exported object.
type ManifestObject struct {
	Name      string             `yaml:"name"`
	Asset     string             `yaml:"asset"`
	Transform protocol.Transform `yaml:"transform,omitempty"`
}

// Validate checks that the manifest names a level usable as a file name and
// that every object can be given a name.
func (m *Manifest) Validate() error {
	if m.Level == "" {
		return errors.New("manifest level must not be empty")
	}
	if filepath.Base(m.Level) != m.Level || m.Level == "." || m.Level == ".." {
		return fmt.Errorf("manifest level %q must not contain path separators", m.Level)
	}
	for i, o := range m.Objects {
		if o.Name == "" && o.Asset == "" {
			return fmt.Errorf("manifest %q: object %d has neither name nor asset", m.Level, i)
		}
	}
	return nil
}

// Source loads manifests from a format-specific location.
//
// Precondition: path must exist and hold the layout the format expects.
// Postcondition: returns at least one validated Manifest, or a non-nil error.
type Source interface {
	Load(path string) ([]*Manifest, error)
}

// YAMLSource reads manifests written as YAML. A path may name one manifest
// file or a directory whose *.yaml and *.yml files are each a manifest.
type YAMLSource struct{}

// NewYAMLSource returns a YAMLSource.
func NewYAMLSource() *YAMLSource {
	return &YAMLSource{}
}

// Load implements Source. Directory entries are read in lexicographic order.
func (s *YAMLSource) Load(path string) ([]*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		m, err := loadManifest(path)
		if err != nil {
			return nil, err
		}
		return []*Manifest{m}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest directory %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		files = append(files, filepath.Join(path, name))
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no manifests found in %s", path)
	}

	out := make([]*Manifest, 0, len(files))
	for _, f := range files {
		m, err := loadManifest(f)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validating manifest %s: %w", path, err)
	}
	return &m, nil
}
