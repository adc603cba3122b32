package uc

import (
	"context"
	"fmt"

	"github.com/airtide/airtide/engine/task"
)

// ListLimits bounds pagination for list queries. Zero values fall back to
// the package defaults.
type ListLimits struct {
	DefaultPageSize int
	MaxPageSize     int
}

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

func (l ListLimits) normalize() ListLimits {
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = defaultPageSize
	}
	if l.MaxPageSize <= 0 {
		l.MaxPageSize = maxPageSize
	}
	return l
}

// ListInput carries the raw query surface of a list request. State entries
// are tokens as received from the caller and get normalized before hitting
// the repository.
type ListInput struct {
	WorkflowID  string
	RunID       string
	WorkflowIDs []string
	LogicalDate task.TimeRange
	StartedAt   task.TimeRange
	EndedAt     task.TimeRange
	Duration    task.FloatRange
	States      []string
	Pools       []string
	Queues      []string
	Offset      int
	Limit       int
}

type ListOutput struct {
	Rows         []*task.Row
	TotalEntries int64
}

type ListInstances struct {
	taskRepo task.Repository
	limits   ListLimits
}

func NewListInstances(taskRepo task.Repository, limits ListLimits) *ListInstances {
	return &ListInstances{taskRepo: taskRepo, limits: limits.normalize()}
}

func (uc *ListInstances) Execute(ctx context.Context, input *ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = uc.limits.DefaultPageSize
	}
	if limit > uc.limits.MaxPageSize {
		limit = uc.limits.MaxPageSize
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}
	filter := &task.ListFilter{
		WorkflowID:  input.WorkflowID,
		RunID:       input.RunID,
		WorkflowIDs: input.WorkflowIDs,
		LogicalDate: input.LogicalDate,
		StartedAt:   input.StartedAt,
		EndedAt:     input.EndedAt,
		Duration:    input.Duration,
		States:      task.NormalizeStates(input.States),
		Pools:       input.Pools,
		Queues:      input.Queues,
		Offset:      offset,
		Limit:       limit,
	}
	rows, total, err := uc.taskRepo.ListRows(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list task instances: %w", err)
	}
	return &ListOutput{Rows: rows, TotalEntries: total}, nil
}
