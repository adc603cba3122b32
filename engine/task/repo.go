package task

import (
	"context"
	"errors"
	"time"

	"github.com/airtide/airtide/engine/core"
	"github.com/airtide/airtide/engine/workflow"
)

var (
	ErrInstanceNotFound = errors.New("task instance not found")
	ErrRunNotFound      = errors.New("dag run not found")
)

// Repository is the storage surface for task instances and their owning runs.
// Mutating methods called through WithTransaction are atomic as a group.
type Repository interface {
	// GetRow returns one instance with its run fields and optional side
	// joins. Returns ErrInstanceNotFound when the key does not resolve.
	GetRow(ctx context.Context, key Key) (*Row, error)

	// ListRows executes the composed filter: the total count is taken on the
	// filtered base relation before the optional side joins are added, then
	// the requested page is expanded with those joins.
	ListRows(ctx context.Context, filter *ListFilter) ([]*Row, int64, error)

	// GetInstance is a direct key lookup with no joins, used for anchor
	// existence checks.
	GetInstance(ctx context.Context, key Key) (*Instance, error)

	GetRun(ctx context.Context, workflowID, runID string) (*workflow.Run, error)
	GetRunByLogicalDate(ctx context.Context, workflowID string, logicalDate time.Time) (*workflow.Run, error)

	// ListReferences resolves instance identities for a workflow, optionally
	// restricted to a task subset, a logical-date range and a state subset.
	// A nil taskIDs selects every task; states follows ListFilter semantics.
	ListReferences(
		ctx context.Context,
		workflowID string,
		taskIDs []string,
		logicalDate TimeRange,
		states []*core.StatusType,
	) ([]Reference, error)

	// UpdateInstancesState writes state to every keyed instance; a nil state
	// resets them to the unset sentinel.
	UpdateInstancesState(ctx context.Context, keys []Key, state *core.StatusType) error

	// UpdateRunsState moves the named runs of a workflow to the given state.
	UpdateRunsState(ctx context.Context, workflowID string, runIDs []string, state core.RunStatusType) error

	// WithTransaction runs fn against a transaction-scoped repository,
	// committing on nil error and rolling back otherwise.
	WithTransaction(ctx context.Context, fn func(Repository) error) error
}
