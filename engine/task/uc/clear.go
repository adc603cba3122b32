package uc

import (
	"context"
	"fmt"

	"github.com/airtide/airtide/engine/core"
	"github.com/airtide/airtide/engine/task"
	"github.com/airtide/airtide/engine/workflow"
	"github.com/airtide/airtide/pkg/logger"
)

// ClearInput selects the instances of one workflow to reset back to the
// unset state. TaskIDs narrows the selection; a nil slice covers every task.
// OnlyFailed and OnlyRunning narrow by current state and compose as a union
// when both are set.
type ClearInput struct {
	WorkflowID  string
	TaskIDs     []string
	LogicalDate task.TimeRange
	OnlyFailed  bool
	OnlyRunning bool
	ResetRuns   bool
	DryRun      bool
}

type Clear struct {
	taskRepo task.Repository
	catalog  workflow.Catalog
}

func NewClear(taskRepo task.Repository, catalog workflow.Catalog) *Clear {
	return &Clear{taskRepo: taskRepo, catalog: catalog}
}

func (uc *Clear) Execute(ctx context.Context, input *ClearInput) ([]task.Reference, error) {
	if _, err := uc.catalog.Find(input.WorkflowID); err != nil {
		return nil, err
	}
	refs, err := uc.taskRepo.ListReferences(
		ctx,
		input.WorkflowID,
		input.TaskIDs,
		input.LogicalDate,
		clearStates(input),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve instances to clear: %w", err)
	}
	if input.DryRun || len(refs) == 0 {
		return refs, nil
	}
	err = uc.taskRepo.WithTransaction(ctx, func(repo task.Repository) error {
		if err := repo.UpdateInstancesState(ctx, referenceKeys(refs), nil); err != nil {
			return err
		}
		if input.ResetRuns {
			return repo.UpdateRunsState(ctx, input.WorkflowID, referenceRunIDs(refs), core.RunStatusQueued)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clear task instances: %w", err)
	}
	logger.FromContext(ctx).Info("cleared task instances",
		"workflow_id", input.WorkflowID,
		"count", len(refs),
		"reset_runs", input.ResetRuns,
	)
	return refs, nil
}

// clearStates maps the only_failed/only_running switches onto a state
// filter. Neither switch means no state restriction at all.
func clearStates(input *ClearInput) []*core.StatusType {
	if !input.OnlyFailed && !input.OnlyRunning {
		return nil
	}
	var states []*core.StatusType
	if input.OnlyFailed {
		failed := core.StatusFailed
		upstreamFailed := core.StatusUpstreamFailed
		states = append(states, &failed, &upstreamFailed)
	}
	if input.OnlyRunning {
		running := core.StatusRunning
		states = append(states, &running)
	}
	return states
}

func referenceKeys(refs []task.Reference) []task.Key {
	keys := make([]task.Key, len(refs))
	for i, ref := range refs {
		keys[i] = ref.Key()
	}
	return keys
}

func referenceRunIDs(refs []task.Reference) []string {
	seen := make(map[string]struct{}, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.RunID]; ok {
			continue
		}
		seen[ref.RunID] = struct{}{}
		ids = append(ids, ref.RunID)
	}
	return ids
}
