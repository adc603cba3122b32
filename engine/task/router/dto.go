package tkrouter

import (
	"time"

	"github.com/airtide/airtide/engine/task"
	"github.com/airtide/airtide/engine/task/uc"
)

// BatchRequest is the JSON body of the batch list endpoint. Every field is
// optional; absent collections apply no constraint while present-but-empty
// collections match nothing.
type BatchRequest struct {
	WorkflowIDs    []string   `json:"workflow_ids"`
	LogicalDateGTE *time.Time `json:"logical_date_gte"`
	LogicalDateLTE *time.Time `json:"logical_date_lte"`
	StartedAtGTE   *time.Time `json:"started_at_gte"`
	StartedAtLTE   *time.Time `json:"started_at_lte"`
	EndedAtGTE     *time.Time `json:"ended_at_gte"`
	EndedAtLTE     *time.Time `json:"ended_at_lte"`
	DurationGTE    *float64   `json:"duration_gte"`
	DurationLTE    *float64   `json:"duration_lte"`
	States         []string   `json:"states"`
	Pools          []string   `json:"pools"`
	Queues         []string   `json:"queues"`
}

func (r *BatchRequest) toInput() *uc.BatchInput {
	return &uc.BatchInput{
		WorkflowIDs: r.WorkflowIDs,
		LogicalDate: task.TimeRange{GTE: r.LogicalDateGTE, LTE: r.LogicalDateLTE},
		StartedAt:   task.TimeRange{GTE: r.StartedAtGTE, LTE: r.StartedAtLTE},
		EndedAt:     task.TimeRange{GTE: r.EndedAtGTE, LTE: r.EndedAtLTE},
		Duration:    task.FloatRange{GTE: r.DurationGTE, LTE: r.DurationLTE},
		States:      r.States,
		Pools:       r.Pools,
		Queues:      r.Queues,
	}
}

// ClearRequest is the JSON body of the clear endpoint.
type ClearRequest struct {
	TaskIDs        []string   `json:"task_ids"`
	LogicalDateGTE *time.Time `json:"logical_date_gte"`
	LogicalDateLTE *time.Time `json:"logical_date_lte"`
	OnlyFailed     bool       `json:"only_failed"`
	OnlyRunning    bool       `json:"only_running"`
	ResetDagRuns   bool       `json:"reset_dag_runs"`
	DryRun         bool       `json:"dry_run"`
}

func (r *ClearRequest) toInput(workflowID string) *uc.ClearInput {
	return &uc.ClearInput{
		WorkflowID:  workflowID,
		TaskIDs:     r.TaskIDs,
		LogicalDate: task.TimeRange{GTE: r.LogicalDateGTE, LTE: r.LogicalDateLTE},
		OnlyFailed:  r.OnlyFailed,
		OnlyRunning: r.OnlyRunning,
		ResetRuns:   r.ResetDagRuns,
		DryRun:      r.DryRun,
	}
}

// SetStateRequest is the JSON body of the set-state endpoint. The anchor run
// is named by run_id or logical_date, never both.
type SetStateRequest struct {
	TaskID      string     `json:"task_id"      binding:"required"`
	RunID       string     `json:"run_id"`
	LogicalDate *time.Time `json:"logical_date"`
	NewState    string     `json:"new_state"    binding:"required"`
	Upstream    bool       `json:"include_upstream"`
	Downstream  bool       `json:"include_downstream"`
	Future      bool       `json:"include_future"`
	Past        bool       `json:"include_past"`
	DryRun      bool       `json:"dry_run"`
}

// ListResponse pairs one page of rows with the pre-join total.
type ListResponse struct {
	TaskInstances []*task.Row `json:"task_instances"`
	TotalEntries  int64       `json:"total_entries"`
}

func newListResponse(out *uc.ListOutput) *ListResponse {
	rows := out.Rows
	if rows == nil {
		rows = []*task.Row{}
	}
	return &ListResponse{TaskInstances: rows, TotalEntries: out.TotalEntries}
}

// ReferencesResponse reports the instances a mutation affected, or would
// affect on a dry run.
type ReferencesResponse struct {
	TaskInstances []task.Reference `json:"task_instances"`
	TotalEntries  int              `json:"total_entries"`
}

func newReferencesResponse(refs []task.Reference) *ReferencesResponse {
	if refs == nil {
		refs = []task.Reference{}
	}
	return &ReferencesResponse{TaskInstances: refs, TotalEntries: len(refs)}
}
