package workflow

import (
	"fmt"

	"github.com/gammazero/toposort"
)

// TopologicalOrder returns the workflow's task ids sorted so every task
// appears after all of its upstream tasks. Tasks without edges keep their
// definition order at the end. Fails when the graph has a cycle.
func (w *Config) TopologicalOrder() ([]string, error) {
	edges := make([]toposort.Edge, 0, len(w.Tasks))
	for i := range w.Tasks {
		t := &w.Tasks[i]
		for _, dep := range t.DependsOn {
			edges = append(edges, toposort.Edge{dep, t.ID})
		}
	}
	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("task graph has a cycle: %w", err)
	}
	order := make([]string, 0, len(w.Tasks))
	placed := make(map[string]struct{}, len(w.Tasks))
	for _, node := range sorted {
		id, ok := node.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected node type %T in task graph", node)
		}
		order = append(order, id)
		placed[id] = struct{}{}
	}
	// Isolated tasks never show up in the edge list.
	for i := range w.Tasks {
		if _, ok := placed[w.Tasks[i].ID]; !ok {
			order = append(order, w.Tasks[i].ID)
		}
	}
	return order, nil
}
