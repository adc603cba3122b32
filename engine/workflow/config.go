package workflow

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrNotFound     = errors.New("workflow not found")
	ErrTaskNotFound = errors.New("task not found in workflow")
)

// TaskConfig is one node of a workflow graph.
type TaskConfig struct {
	ID string `yaml:"id" validate:"required"`
	// DependsOn lists the task's direct upstream tasks.
	DependsOn []string `yaml:"depends_on"`
	Pool      string   `yaml:"pool"`
	Queue     string   `yaml:"queue"`
}

// Config is a workflow definition: an identifier plus its task graph.
type Config struct {
	ID          string       `yaml:"id" validate:"required"`
	Description string       `yaml:"description"`
	Tasks       []TaskConfig `yaml:"tasks" validate:"required,dive"`

	downstream map[string][]string
	upstream   map[string][]string
}

// Validate checks the task graph for duplicate ids, unknown dependencies and
// cycles, and indexes the edges for traversal.
func (w *Config) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workflow id is required")
	}
	seen := make(map[string]struct{}, len(w.Tasks))
	for i := range w.Tasks {
		id := w.Tasks[i].ID
		if id == "" {
			return fmt.Errorf("workflow %s: task id is required", w.ID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("workflow %s: duplicate task id %q", w.ID, id)
		}
		seen[id] = struct{}{}
	}
	w.upstream = make(map[string][]string, len(w.Tasks))
	w.downstream = make(map[string][]string, len(w.Tasks))
	for i := range w.Tasks {
		t := &w.Tasks[i]
		for _, dep := range t.DependsOn {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("workflow %s: task %q depends on unknown task %q", w.ID, t.ID, dep)
			}
			w.upstream[t.ID] = append(w.upstream[t.ID], dep)
			w.downstream[dep] = append(w.downstream[dep], t.ID)
		}
	}
	if _, err := w.TopologicalOrder(); err != nil {
		return fmt.Errorf("workflow %s: %w", w.ID, err)
	}
	return nil
}

// HasTask reports whether the workflow graph contains the task id.
func (w *Config) HasTask(taskID string) bool {
	return slices.ContainsFunc(w.Tasks, func(t TaskConfig) bool { return t.ID == taskID })
}

// TaskIDs returns the ids of all tasks in definition order.
func (w *Config) TaskIDs() []string {
	ids := make([]string, len(w.Tasks))
	for i := range w.Tasks {
		ids[i] = w.Tasks[i].ID
	}
	return ids
}

// Ancestors returns every transitive upstream task of taskID, excluding
// taskID itself.
func (w *Config) Ancestors(taskID string) []string {
	return w.walk(taskID, w.upstream)
}

// Descendants returns every transitive downstream task of taskID, excluding
// taskID itself.
func (w *Config) Descendants(taskID string) []string {
	return w.walk(taskID, w.downstream)
}

func (w *Config) walk(taskID string, edges map[string][]string) []string {
	var out []string
	visited := map[string]struct{}{taskID: {}}
	queue := slices.Clone(edges[taskID])
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		out = append(out, id)
		queue = append(queue, edges[id]...)
	}
	return out
}
