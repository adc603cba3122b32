package uc

import (
	"context"
	"fmt"

	"github.com/airtide/airtide/engine/task"
)

type GetInstance struct {
	taskRepo task.Repository
}

func NewGetInstance(taskRepo task.Repository) *GetInstance {
	return &GetInstance{taskRepo: taskRepo}
}

func (uc *GetInstance) Execute(ctx context.Context, key task.Key) (*task.Row, error) {
	row, err := uc.taskRepo.GetRow(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get task instance %s: %w", key.String(), err)
	}
	return row, nil
}
