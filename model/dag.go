package model

import (
	"sort"

	"github.com/zhukovaskychina/grizzly/errs"
)

// color values for the three-color DFS cycle check.
type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS stack ("visiting")
	black              // fully explored ("done")
)

// DAG is the model dependency graph: nodes are model names, edges point
// from a model to the tables/models its SQL reads from.
// Only models are tracked as nodes; a dependency naming a plain table
// that is not itself a model is a leaf with no outgoing edges.
type DAG struct {
	edges map[string][]string // model -> its Dependencies, in declared order

	// order/groups cache the last computed topological sort; invalidated
	// (set nil) on every Add/Remove.
	order  []string
	groups [][]string
}

// NewDAG creates an empty dependency graph.
func NewDAG() *DAG {
	return &DAG{edges: map[string][]string{}}
}

// Add inserts or replaces name's dependency edges, then verifies the
// graph is still acyclic before committing -- on a would-be cycle the DAG
// is left unchanged and a CircularModelDependency error naming the cycle
// is returned.
func (d *DAG) Add(name string, deps []string) error {
	prev, existed := d.edges[name]
	d.edges[name] = deps
	if cyc := d.findCycle(); cyc != nil {
		if existed {
			d.edges[name] = prev
		} else {
			delete(d.edges, name)
		}
		return errs.New(errs.CircularModelDependency, "circular model dependency: %v", cyc)
	}
	d.invalidate()
	return nil
}

// Remove deletes name from the graph.
func (d *DAG) Remove(name string) {
	delete(d.edges, name)
	d.invalidate()
}

func (d *DAG) invalidate() {
	d.order = nil
	d.groups = nil
}

// findCycle runs a three-color DFS, returning the cycle (in the order it
// closed) if one exists, walking nodes in sorted order for deterministic
// error messages across runs.
func (d *DAG) findCycle() []string {
	colors := map[string]color{}
	var stack []string
	var cyc []string

	names := make([]string, 0, len(d.edges))
	for n := range d.edges {
		names = append(names, n)
	}
	sort.Strings(names)

	var visit func(n string) bool
	visit = func(n string) bool {
		colors[n] = gray
		stack = append(stack, n)
		deps := append([]string(nil), d.edges[n]...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch colors[dep] {
			case white:
				if _, isModel := d.edges[dep]; isModel {
					if visit(dep) {
						return true
					}
				}
			case gray:
				// Found the back edge: the cycle is the stack slice from
				// dep's first occurrence through n, plus dep again.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				cyc = append(append([]string{}, stack[start:]...), dep)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		colors[n] = black
		return false
	}

	for _, n := range names {
		if colors[n] == white {
			if visit(n) {
				return cyc
			}
		}
	}
	return nil
}

// TopoOrder returns every model name in dependency-first order (a model
// always appears after everything it depends on), used to drive `REFRESH
// MODEL` fan-out and full-database rebuild.
func (d *DAG) TopoOrder() []string {
	if d.order != nil {
		return d.order
	}
	d.computeOrder()
	return d.order
}

// Groups returns models grouped by longest-path-from-root distance:
// group 0 has no dependencies among tracked models, group 1 depends only
// on group 0, and so on. Models within a group have no dependency
// relationship to each other and so are safe to refresh concurrently.
func (d *DAG) Groups() [][]string {
	if d.groups != nil {
		return d.groups
	}
	d.computeOrder()
	return d.groups
}

func (d *DAG) computeOrder() {
	depth := map[string]int{}
	names := make([]string, 0, len(d.edges))
	for n := range d.edges {
		names = append(names, n)
	}
	sort.Strings(names)

	var depthOf func(n string) int
	visiting := map[string]bool{}
	depthOf = func(n string) int {
		if v, ok := depth[n]; ok {
			return v
		}
		visiting[n] = true
		max := -1
		for _, dep := range d.edges[n] {
			if _, isModel := d.edges[dep]; !isModel {
				continue
			}
			if visiting[dep] {
				continue // cycles are rejected at Add time
			}
			if dd := depthOf(dep); dd > max {
				max = dd
			}
		}
		depth[n] = max + 1
		visiting[n] = false
		return depth[n]
	}

	maxDepth := -1
	for _, n := range names {
		dd := depthOf(n)
		if dd > maxDepth {
			maxDepth = dd
		}
	}

	groups := make([][]string, maxDepth+1)
	for _, n := range names {
		g := depth[n]
		groups[g] = append(groups[g], n)
	}

	var order []string
	for _, g := range groups {
		order = append(order, g...)
	}
	d.order = order
	d.groups = groups
}
