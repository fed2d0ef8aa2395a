package model

import (
	"gopkg.in/yaml.v3"
)

// LineageSnapshot is the diff-friendly structured dump of one model's
// dependency neighborhood: its direct dependencies, its transitive model
// lineage, and the grouped refresh order a REFRESH would follow.
type LineageSnapshot struct {
	Model         string     `yaml:"model"`
	Dependencies  []string   `yaml:"dependencies,omitempty"`
	Lineage       []string   `yaml:"lineage,omitempty"`
	RefreshOrder  []string   `yaml:"refresh_order,omitempty"`
	RefreshGroups [][]string `yaml:"refresh_groups,omitempty"`
}

// Snapshot assembles the LineageSnapshot for name from r.
func Snapshot(r *Registry, name string) *LineageSnapshot {
	return &LineageSnapshot{
		Model:         name,
		Dependencies:  r.DependenciesOf(name),
		Lineage:       r.LineageFor(name),
		RefreshOrder:  r.RefreshOrder(name),
		RefreshGroups: r.RefreshGroups(name),
	}
}

// ExportLineageYAML renders Snapshot(r, name) as YAML.
func ExportLineageYAML(r *Registry, name string) ([]byte, error) {
	return yaml.Marshal(Snapshot(r, name))
}
