package model

import (
	"sort"
	"sync"
	"time"

	"github.com/zhukovaskychina/grizzly/errs"
)

// Registry owns every known Model, its dependency DAG, and the single
// coarse mutex guarding both; operations take a full lock rather than
// fine-grained per-model locks.
type Registry struct {
	mu     sync.Mutex
	models map[string]*Model
	dag    *DAG
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{
		models: map[string]*Model{},
		dag:    NewDAG(),
	}
}

// AddModel registers a new model, extracting its FROM/JOIN dependencies
// from sqlText and rejecting the insert with a CircularModelDependency
// error if doing so would close a cycle; a rejected insert leaves the
// registry exactly as it was before the call.
func (r *Registry) AddModel(name, sqlText string) (*Model, error) {
	deps, err := ExtractDependencies(sqlText)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[name]; exists {
		return nil, errs.New(errs.ModelAlreadyExists, "model %q already exists", name)
	}
	if err := r.dag.Add(name, deps); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m := &Model{
		Name:         name,
		SQLText:      sqlText,
		Dependencies: deps,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.models[name] = m
	return m, nil
}

// RemoveModel drops name from both the model map and the dependency DAG.
func (r *Registry) RemoveModel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.models, name)
	r.dag.Remove(name)
}

// Get returns the named model, if registered.
func (r *Registry) Get(name string) (*Model, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[name]
	return m, ok
}

// Names returns every registered model name, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.models))
	for n := range r.models {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// MarkRefreshed records the outcome of a successful refresh; the caller
// is responsible for computing elapsed, this just stamps the latest
// observation.
func (r *Registry) MarkRefreshed(name string, rowCount int64, elapsedMS int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[name]
	if !ok {
		return
	}
	m.LastRunTimestamp = time.Now().UTC()
	m.RowCount = rowCount
	m.ExecutionTimeMS = elapsedMS
	m.UpdatedAt = m.LastRunTimestamp
}

// DependenciesOf returns name's direct dependency list (models and plain
// tables alike), in declared order.
func (r *Registry) DependenciesOf(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[name]
	if !ok {
		return nil
	}
	return append([]string(nil), m.Dependencies...)
}

// LineageFor returns name's transitive model dependencies -- the set
// SHOW LINEAGE FOR MODEL lists. Only dependencies that are themselves
// registered models are included; plain table dependencies are omitted
// since they have no further lineage to report.
func (r *Registry) LineageFor(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := map[string]bool{name: true}
	var out []string
	var walk func(n string)
	walk = func(n string) {
		m, ok := r.models[n]
		if !ok {
			return
		}
		for _, dep := range m.Dependencies {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if _, isModel := r.models[dep]; isModel {
				out = append(out, dep)
				walk(dep)
			}
		}
	}
	walk(name)
	return out
}

// RefreshOrder returns the topological execution order REFRESH MODEL
// name must follow: name's full upstream model set plus name itself,
// ordered dependency-first.
func (r *Registry) RefreshOrder(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := map[string]bool{name: true}
	var collect func(n string)
	collect = func(n string) {
		m, ok := r.models[n]
		if !ok {
			return
		}
		for _, dep := range m.Dependencies {
			if _, isModel := r.models[dep]; isModel && !members[dep] {
				members[dep] = true
				collect(dep)
			}
		}
	}
	collect(name)

	var order []string
	for _, n := range r.dag.TopoOrder() {
		if members[n] {
			order = append(order, n)
		}
	}
	return order
}

// RefreshGroups returns the same members as RefreshOrder, grouped by
// dependency depth: groups are sets of models with no inter-group edges,
// so members of one group may be refreshed concurrently.
func (r *Registry) RefreshGroups(name string) [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := map[string]bool{name: true}
	var collect func(n string)
	collect = func(n string) {
		m, ok := r.models[n]
		if !ok {
			return
		}
		for _, dep := range m.Dependencies {
			if _, isModel := r.models[dep]; isModel && !members[dep] {
				members[dep] = true
				collect(dep)
			}
		}
	}
	collect(name)

	var groups [][]string
	for _, g := range r.dag.Groups() {
		var filtered []string
		for _, n := range g {
			if members[n] {
				filtered = append(filtered, n)
			}
		}
		if len(filtered) > 0 {
			groups = append(groups, filtered)
		}
	}
	return groups
}
