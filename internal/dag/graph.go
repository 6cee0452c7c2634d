// Package dag models one dataset run as a graph of tasks and executes it:
// every table is downloaded then loaded, and the dataset's dbt models run once
// all tables are loaded.
package dag

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// Task is a unit of work in a Graph.
type Task struct {
	ID  string
	Run func(ctx context.Context) error
}

// Graph is a set of tasks and the dependencies between them.
type Graph struct {
	ID string

	tasks      map[string]Task
	order      []string
	upstream   map[string][]string
	downstream map[string][]string
}

// New returns an empty graph.
func New(id string) *Graph {
	return &Graph{
		ID:         id,
		tasks:      map[string]Task{},
		upstream:   map[string][]string{},
		downstream: map[string][]string{},
	}
}

// Add adds t. Task IDs are unique within a graph.
func (g *Graph) Add(t Task) error {
	if t.ID == "" {
		return fmt.Errorf("dag %s: task id must not be empty", g.ID)
	}
	if t.Run == nil {
		return fmt.Errorf("dag %s: task %s has no Run func", g.ID, t.ID)
	}
	if _, dup := g.tasks[t.ID]; dup {
		return fmt.Errorf("dag %s: duplicate task %s", g.ID, t.ID)
	}
	g.tasks[t.ID] = t
	g.order = append(g.order, t.ID)
	return nil
}

// Then records that task to runs only after task from succeeded.
func (g *Graph) Then(from, to string) error {
	for _, id := range []string{from, to} {
		if _, ok := g.tasks[id]; !ok {
			return fmt.Errorf("dag %s: unknown task %s", g.ID, id)
		}
	}
	if slices.Contains(g.downstream[from], to) {
		return nil
	}
	g.downstream[from] = append(g.downstream[from], to)
	g.upstream[to] = append(g.upstream[to], from)
	return nil
}

// Tasks returns task IDs in insertion order.
func (g *Graph) Tasks() []string {
	return slices.Clone(g.order)
}

// Upstream returns the direct dependencies of id, sorted.
func (g *Graph) Upstream(id string) []string {
	up := slices.Clone(g.upstream[id])
	sort.Strings(up)
	return up
}

// Downstream returns the direct dependents of id, sorted.
func (g *Graph) Downstream(id string) []string {
	down := slices.Clone(g.downstream[id])
	sort.Strings(down)
	return down
}

// Validate reports a dependency cycle, if any.
func (g *Graph) Validate() error {
	_, err := g.TopoOrder()
	return err
}

// TopoOrder returns task IDs so that every task follows its upstreams. Ties
// keep insertion order.
func (g *Graph) TopoOrder() ([]string, error) {
	pending := make(map[string]int, len(g.order))
	for _, id := range g.order {
		pending[id] = len(g.upstream[id])
	}
	var ready, out []string
	for _, id := range g.order {
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for _, d := range g.downstream[id] {
			pending[d]--
			if pending[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(out) != len(g.order) {
		var stuck []string
		for _, id := range g.order {
			if pending[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("dag %s: dependency cycle among %v", g.ID, stuck)
	}
	return out, nil
}
