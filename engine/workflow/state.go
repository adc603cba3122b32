package workflow

import (
	"time"

	"github.com/airtide/airtide/engine/core"
)

// Run is one scheduled or triggered execution of a workflow. Runs are ordered
// by LogicalDate; the past/future cascade directions walk that ordering.
type Run struct {
	WorkflowID  string             `json:"workflow_id"  db:"workflow_id"`
	RunID       string             `json:"run_id"       db:"run_id"`
	LogicalDate time.Time          `json:"logical_date" db:"logical_date"`
	State       core.RunStatusType `json:"state"        db:"state"`
	CreatedAt   time.Time          `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"   db:"updated_at"`
}
