package graph

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/skillsenselab/dreamflow/util"
	"github.com/skillsenselab/dreamflow/validation"
)

// TopologyLoader loads topology definitions by name.
type TopologyLoader interface {
	Load(name string) (*Topology, error)
}

// FileTopologyLoader loads topologies from YAML files on disk.
type FileTopologyLoader struct {
	dirs []string
}

// NewFileTopologyLoader creates a loader that searches the given
// directories for topology YAML files.
func NewFileTopologyLoader(dirs ...string) TopologyLoader {
	return &FileTopologyLoader{dirs: dirs}
}

// Load searches for a topology YAML file by name across configured
// directories, trying {name}.yaml and {name}.yml in each.
func (l *FileTopologyLoader) Load(name string) (*Topology, error) {
	for _, dir := range l.dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			t, err := LoadTopologyFile(filepath.Join(dir, name+ext))
			if err == nil {
				return t, nil
			}
		}
	}
	return nil, fmt.Errorf("graph: topology %q not found in %v", name, l.dirs)
}

// LoadTopologyFile reads and parses one topology YAML file.
func LoadTopologyFile(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTopology(data)
}

// ParseTopology parses a topology document and checks its struct-level
// constraints. Cross-reference validation happens in Build.
func ParseTopology(data []byte) (*Topology, error) {
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("graph: parsing topology: %w", err)
	}
	if err := validation.Validate(&t); err != nil {
		return nil, err
	}
	t.applyDefaults()
	return &t, nil
}

func (t *Topology) applyDefaults() {
	for i := range t.Nodes {
		if t.Nodes[i].CPU == 0 {
			t.Nodes[i].CPU = t.NodeDefaults.CPU
		}
	}
	for i := range t.Datasets {
		t.Datasets[i].Backend = util.Coalesce(t.Datasets[i].Backend, BackendMemory)
		t.Datasets[i].Topic = util.Coalesce(t.Datasets[i].Topic, t.Datasets[i].Name)
	}
}
