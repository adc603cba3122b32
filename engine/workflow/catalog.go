package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"github.com/airtide/airtide/pkg/logger"
)

// Catalog resolves workflow ids to their definitions. It is passed explicitly
// into everything that needs graph access so tests can substitute their own.
type Catalog interface {
	Find(workflowID string) (*Config, error)
	List() []*Config
}

type catalog struct {
	workflows []*Config
	byID      map[string]*Config
}

// NewCatalog indexes the given workflow definitions. Each definition must
// already be validated.
func NewCatalog(workflows []*Config) Catalog {
	byID := make(map[string]*Config, len(workflows))
	for _, wf := range workflows {
		byID[wf.ID] = wf
	}
	return &catalog{workflows: workflows, byID: byID}
}

func (c *catalog) Find(workflowID string) (*Config, error) {
	if wf, ok := c.byID[workflowID]; ok {
		return wf, nil
	}
	return nil, fmt.Errorf("workflow %q: %w", workflowID, ErrNotFound)
}

func (c *catalog) List() []*Config {
	return c.workflows
}

// LoadCatalog reads every *.yaml / *.yml file in dir as a workflow definition
// and returns an indexed catalog.
func LoadCatalog(ctx context.Context, dir string) (Catalog, error) {
	log := logger.FromContext(ctx)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog dir %s: %w", dir, err)
	}
	var workflows []*Config
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		wf, err := loadConfigFile(path)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
		log.Debug("Loaded workflow definition", "workflow_id", wf.ID, "tasks", len(wf.Tasks))
	}
	log.Info("Workflow catalog loaded", "dir", dir, "workflows", len(workflows))
	return NewCatalog(workflows), nil
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file %s: %w", path, err)
	}
	var wf Config
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parsing workflow file %s: %w", path, err)
	}
	if err := validator.New().Struct(&wf); err != nil {
		return nil, fmt.Errorf("validating workflow file %s: %w", path, err)
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("validating workflow file %s: %w", path, err)
	}
	return &wf, nil
}
