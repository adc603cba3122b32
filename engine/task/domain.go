package task

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/airtide/airtide/engine/core"
)

// -----------------------------------------------------------------------------
// Instance - one task's execution record within one run
// -----------------------------------------------------------------------------

// Key is the full identity of a task instance.
type Key struct {
	WorkflowID string `json:"workflow_id"`
	TaskID     string `json:"task_id"`
	RunID      string `json:"run_id"`
	Attempt    int    `json:"attempt"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%d", k.WorkflowID, k.RunID, k.TaskID, k.Attempt)
}

// Instance is a task instance record. State is nil while no state has been
// recorded (stored as SQL NULL); clearing an instance returns it to that
// sentinel, it never deletes the row.
type Instance struct {
	WorkflowID string           `json:"workflow_id"          db:"workflow_id"`
	TaskID     string           `json:"task_id"              db:"task_id"`
	RunID      string           `json:"run_id"               db:"run_id"`
	Attempt    int              `json:"attempt"              db:"attempt"`
	State      *core.StatusType `json:"state"                db:"state"`
	Pool       string           `json:"pool"                 db:"pool"`
	Queue      string           `json:"queue"                db:"queue"`
	StartedAt  *time.Time       `json:"started_at,omitempty" db:"started_at"`
	EndedAt    *time.Time       `json:"ended_at,omitempty"   db:"ended_at"`
	Duration   *float64         `json:"duration,omitempty"   db:"duration"`
	CreatedAt  time.Time        `json:"created_at"           db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"           db:"updated_at"`
}

func (i *Instance) Key() Key {
	return Key{WorkflowID: i.WorkflowID, TaskID: i.TaskID, RunID: i.RunID, Attempt: i.Attempt}
}

// Reference identifies a resolved instance in mutation responses. It carries
// identity fields only, not the instance payload.
type Reference struct {
	WorkflowID  string    `json:"workflow_id"  db:"workflow_id"`
	TaskID      string    `json:"task_id"      db:"task_id"`
	RunID       string    `json:"run_id"       db:"run_id"`
	Attempt     int       `json:"attempt"      db:"attempt"`
	LogicalDate time.Time `json:"logical_date" db:"logical_date"`
}

func (r Reference) Key() Key {
	return Key{WorkflowID: r.WorkflowID, TaskID: r.TaskID, RunID: r.RunID, Attempt: r.Attempt}
}

// -----------------------------------------------------------------------------
// Side-join records
// -----------------------------------------------------------------------------

// SlaMiss records a service-level-agreement violation for one task at one
// logical date. Read-only here.
type SlaMiss struct {
	WorkflowID       string    `json:"workflow_id"  db:"workflow_id"`
	TaskID           string    `json:"task_id"      db:"task_id"`
	LogicalDate      time.Time `json:"logical_date" db:"logical_date"`
	Description      string    `json:"description"  db:"description"`
	NotificationSent bool      `json:"notification_sent" db:"notification_sent"`
	Timestamp        time.Time `json:"timestamp"    db:"timestamp"`
}

// RenderedFields is the snapshot of templated field values captured when the
// instance was rendered. Read-only here.
type RenderedFields struct {
	WorkflowID  string         `json:"workflow_id"  db:"workflow_id"`
	TaskID      string         `json:"task_id"      db:"task_id"`
	LogicalDate time.Time      `json:"logical_date" db:"logical_date"`
	Fields      map[string]any `json:"fields"       db:"fields"`
}

// Row is one element of a read result: the instance, its run-derived fields
// and the optional side-join records (at most one each).
type Row struct {
	Instance
	LogicalDate time.Time          `json:"logical_date"`
	RunState    core.RunStatusType `json:"run_state"`
	SlaMiss     *SlaMiss           `json:"sla_miss,omitempty"`
	Rendered    *RenderedFields    `json:"rendered_fields,omitempty"`
}

// -----------------------------------------------------------------------------
// RowDB - flat scan target for the joined read queries
// -----------------------------------------------------------------------------

// RowDB is the database-facing shape of Row. Side-join columns are nullable;
// a non-null sla_logical_date / rtf_logical_date marks presence of the
// corresponding record.
type RowDB struct {
	WorkflowID string         `db:"workflow_id"`
	TaskID     string         `db:"task_id"`
	RunID      string         `db:"run_id"`
	Attempt    int            `db:"attempt"`
	StateRaw   sql.NullString `db:"state"`
	Pool       string         `db:"pool"`
	Queue      string         `db:"queue"`
	StartedAt  sql.NullTime   `db:"started_at"`
	EndedAt    sql.NullTime   `db:"ended_at"`
	Duration   sql.NullFloat64 `db:"duration"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`

	LogicalDate time.Time `db:"logical_date"`
	RunState    string    `db:"run_state"`

	SlaLogicalDate      sql.NullTime   `db:"sla_logical_date"`
	SlaDescription      sql.NullString `db:"sla_description"`
	SlaNotificationSent sql.NullBool   `db:"sla_notification_sent"`
	SlaTimestamp        sql.NullTime   `db:"sla_timestamp"`

	RtfLogicalDate sql.NullTime `db:"rtf_logical_date"`
	RtfFieldsRaw   []byte       `db:"rtf_fields"`
}

// ToRow converts the flat scan row into the domain Row.
func (rdb *RowDB) ToRow() (*Row, error) {
	row := &Row{
		Instance: Instance{
			WorkflowID: rdb.WorkflowID,
			TaskID:     rdb.TaskID,
			RunID:      rdb.RunID,
			Attempt:    rdb.Attempt,
			Pool:       rdb.Pool,
			Queue:      rdb.Queue,
			CreatedAt:  rdb.CreatedAt,
			UpdatedAt:  rdb.UpdatedAt,
		},
		LogicalDate: rdb.LogicalDate,
		RunState:    core.RunStatusType(rdb.RunState),
	}
	if rdb.StateRaw.Valid {
		state := core.StatusType(rdb.StateRaw.String)
		row.State = &state
	}
	if rdb.StartedAt.Valid {
		row.StartedAt = &rdb.StartedAt.Time
	}
	if rdb.EndedAt.Valid {
		row.EndedAt = &rdb.EndedAt.Time
	}
	if rdb.Duration.Valid {
		row.Duration = &rdb.Duration.Float64
	}
	if rdb.SlaLogicalDate.Valid {
		row.SlaMiss = &SlaMiss{
			WorkflowID:       rdb.WorkflowID,
			TaskID:           rdb.TaskID,
			LogicalDate:      rdb.SlaLogicalDate.Time,
			Description:      rdb.SlaDescription.String,
			NotificationSent: rdb.SlaNotificationSent.Bool,
			Timestamp:        rdb.SlaTimestamp.Time,
		}
	}
	if rdb.RtfLogicalDate.Valid {
		rendered := &RenderedFields{
			WorkflowID:  rdb.WorkflowID,
			TaskID:      rdb.TaskID,
			LogicalDate: rdb.RtfLogicalDate.Time,
		}
		if len(rdb.RtfFieldsRaw) > 0 {
			if err := json.Unmarshal(rdb.RtfFieldsRaw, &rendered.Fields); err != nil {
				return nil, fmt.Errorf("unmarshaling rendered fields: %w", err)
			}
		}
		row.Rendered = rendered
	}
	return row, nil
}

// InstanceDB is the database-facing shape of a bare Instance (no joins).
type InstanceDB struct {
	WorkflowID string          `db:"workflow_id"`
	TaskID     string          `db:"task_id"`
	RunID      string          `db:"run_id"`
	Attempt    int             `db:"attempt"`
	StateRaw   sql.NullString  `db:"state"`
	Pool       string          `db:"pool"`
	Queue      string          `db:"queue"`
	StartedAt  sql.NullTime    `db:"started_at"`
	EndedAt    sql.NullTime    `db:"ended_at"`
	Duration   sql.NullFloat64 `db:"duration"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

func (idb *InstanceDB) ToInstance() *Instance {
	inst := &Instance{
		WorkflowID: idb.WorkflowID,
		TaskID:     idb.TaskID,
		RunID:      idb.RunID,
		Attempt:    idb.Attempt,
		Pool:       idb.Pool,
		Queue:      idb.Queue,
		CreatedAt:  idb.CreatedAt,
		UpdatedAt:  idb.UpdatedAt,
	}
	if idb.StateRaw.Valid {
		state := core.StatusType(idb.StateRaw.String)
		inst.State = &state
	}
	if idb.StartedAt.Valid {
		inst.StartedAt = &idb.StartedAt.Time
	}
	if idb.EndedAt.Valid {
		inst.EndedAt = &idb.EndedAt.Time
	}
	if idb.Duration.Valid {
		inst.Duration = &idb.Duration.Float64
	}
	return inst
}
