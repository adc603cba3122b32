package uc

import (
	"context"
	"fmt"

	"github.com/airtide/airtide/engine/task"
)

// BatchInput is the body-driven variant of ListInput: identity is expressed
// as collections instead of path segments, so a single request can span
// multiple workflows. Batch results are never paginated.
type BatchInput struct {
	WorkflowIDs []string
	LogicalDate task.TimeRange
	StartedAt   task.TimeRange
	EndedAt     task.TimeRange
	Duration    task.FloatRange
	States      []string
	Pools       []string
	Queues      []string
}

type ListBatch struct {
	taskRepo task.Repository
}

func NewListBatch(taskRepo task.Repository) *ListBatch {
	return &ListBatch{taskRepo: taskRepo}
}

func (uc *ListBatch) Execute(ctx context.Context, input *BatchInput) (*ListOutput, error) {
	if err := validateRanges(input); err != nil {
		return nil, err
	}
	filter := &task.ListFilter{
		WorkflowIDs: input.WorkflowIDs,
		LogicalDate: input.LogicalDate,
		StartedAt:   input.StartedAt,
		EndedAt:     input.EndedAt,
		Duration:    input.Duration,
		States:      task.NormalizeStates(input.States),
		Pools:       input.Pools,
		Queues:      input.Queues,
	}
	rows, total, err := uc.taskRepo.ListRows(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list task instances: %w", err)
	}
	return &ListOutput{Rows: rows, TotalEntries: total}, nil
}

// validateRanges rejects ranges whose lower bound exceeds the upper bound.
// Either bound alone is always valid.
func validateRanges(input *BatchInput) error {
	for _, r := range []struct {
		name string
		rng  task.TimeRange
	}{
		{"logical_date", input.LogicalDate},
		{"started_at", input.StartedAt},
		{"ended_at", input.EndedAt},
	} {
		if r.rng.GTE != nil && r.rng.LTE != nil && r.rng.GTE.After(*r.rng.LTE) {
			return fmt.Errorf("%w: %s range lower bound is after upper bound", ErrInvalidInput, r.name)
		}
	}
	d := input.Duration
	if d.GTE != nil && d.LTE != nil && *d.GTE > *d.LTE {
		return fmt.Errorf("%w: duration range lower bound exceeds upper bound", ErrInvalidInput)
	}
	return nil
}
