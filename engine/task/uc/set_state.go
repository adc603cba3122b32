package uc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/airtide/airtide/engine/core"
	"github.com/airtide/airtide/engine/task"
	"github.com/airtide/airtide/engine/workflow"
	"github.com/airtide/airtide/pkg/logger"
)

// SetStateInput addresses one anchor instance and describes how far the new
// state propagates. The anchor run is named either by RunID or by
// LogicalDate, never both. Upstream and Downstream widen the task set along
// the dependency graph; Future and Past widen the run set along the logical
// timeline, each side inclusive of the anchor run.
type SetStateInput struct {
	WorkflowID  string
	TaskID      string
	RunID       string
	LogicalDate *time.Time
	NewState    core.StatusType
	Upstream    bool
	Downstream  bool
	Future      bool
	Past        bool
	DryRun      bool
}

type SetState struct {
	taskRepo task.Repository
	catalog  workflow.Catalog
}

func NewSetState(taskRepo task.Repository, catalog workflow.Catalog) *SetState {
	return &SetState{taskRepo: taskRepo, catalog: catalog}
}

func (uc *SetState) Execute(ctx context.Context, input *SetStateInput) ([]task.Reference, error) {
	if err := uc.validateInput(input); err != nil {
		return nil, err
	}
	wf, err := uc.catalog.Find(input.WorkflowID)
	if err != nil {
		return nil, err
	}
	if !wf.HasTask(input.TaskID) {
		return nil, fmt.Errorf("task %q in workflow %q: %w",
			input.TaskID, input.WorkflowID, workflow.ErrTaskNotFound)
	}
	anchor, err := uc.resolveAnchorRun(ctx, input)
	if err != nil {
		return nil, err
	}
	if _, err := uc.taskRepo.GetInstance(ctx, task.Key{
		WorkflowID: input.WorkflowID,
		TaskID:     input.TaskID,
		RunID:      anchor.RunID,
	}); err != nil {
		return nil, fmt.Errorf("anchor instance for task %q in run %q: %w",
			input.TaskID, anchor.RunID, err)
	}
	refs, err := uc.taskRepo.ListReferences(
		ctx,
		input.WorkflowID,
		cascadeTaskSet(wf, input),
		cascadeTimeline(anchor.LogicalDate, input),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve affected instances: %w", err)
	}
	sortReferences(wf, refs)
	if input.DryRun || len(refs) == 0 {
		return refs, nil
	}
	err = uc.taskRepo.WithTransaction(ctx, func(repo task.Repository) error {
		return repo.UpdateInstancesState(ctx, referenceKeys(refs), &input.NewState)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set task instance state: %w", err)
	}
	logger.FromContext(ctx).Info("set task instance state",
		"workflow_id", input.WorkflowID,
		"task_id", input.TaskID,
		"new_state", input.NewState,
		"count", len(refs),
	)
	return refs, nil
}

func (uc *SetState) validateInput(input *SetStateInput) error {
	if (input.RunID == "") == (input.LogicalDate == nil) {
		return fmt.Errorf("%w: exactly one of run_id or logical_date must be set", ErrInvalidInput)
	}
	if !input.NewState.IsValid() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidInput, input.NewState)
	}
	return nil
}

func (uc *SetState) resolveAnchorRun(ctx context.Context, input *SetStateInput) (*workflow.Run, error) {
	if input.RunID != "" {
		run, err := uc.taskRepo.GetRun(ctx, input.WorkflowID, input.RunID)
		if err != nil {
			return nil, fmt.Errorf("anchor run %q: %w", input.RunID, err)
		}
		return run, nil
	}
	run, err := uc.taskRepo.GetRunByLogicalDate(ctx, input.WorkflowID, *input.LogicalDate)
	if err != nil {
		return nil, fmt.Errorf("anchor run at %s: %w",
			input.LogicalDate.Format(time.RFC3339), err)
	}
	return run, nil
}

// cascadeTaskSet is the anchor task plus its transitive dependencies in the
// requested directions. The anchor always belongs to the set.
func cascadeTaskSet(wf *workflow.Config, input *SetStateInput) []string {
	tasks := []string{input.TaskID}
	if input.Upstream {
		tasks = append(tasks, wf.Ancestors(input.TaskID)...)
	}
	if input.Downstream {
		tasks = append(tasks, wf.Descendants(input.TaskID)...)
	}
	return tasks
}

// cascadeTimeline translates the future/past switches into a logical-date
// range anchored on the resolved run. Without either switch the range pins
// the anchor run exactly.
func cascadeTimeline(anchorDate time.Time, input *SetStateInput) task.TimeRange {
	var rng task.TimeRange
	if !input.Future {
		date := anchorDate
		rng.LTE = &date
	}
	if !input.Past {
		date := anchorDate
		rng.GTE = &date
	}
	return rng
}

// sortReferences orders the cascade result by run timeline first, then by
// dependency order within each run so upstream tasks come before the tasks
// that wait on them.
func sortReferences(wf *workflow.Config, refs []task.Reference) {
	order, err := wf.TopologicalOrder()
	if err != nil {
		return
	}
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	sort.SliceStable(refs, func(i, j int) bool {
		if !refs[i].LogicalDate.Equal(refs[j].LogicalDate) {
			return refs[i].LogicalDate.Before(refs[j].LogicalDate)
		}
		if rank[refs[i].TaskID] != rank[refs[j].TaskID] {
			return rank[refs[i].TaskID] < rank[refs[j].TaskID]
		}
		return refs[i].Attempt < refs[j].Attempt
	})
}
