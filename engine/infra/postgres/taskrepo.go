package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/airtide/airtide/engine/core"
	"github.com/airtide/airtide/engine/task"
	"github.com/airtide/airtide/engine/workflow"
	"github.com/airtide/airtide/pkg/logger"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var rowColumns = []string{
	"ti.workflow_id",
	"ti.task_id",
	"ti.run_id",
	"ti.attempt",
	"ti.state",
	"ti.pool",
	"ti.queue",
	"ti.started_at",
	"ti.ended_at",
	"ti.duration",
	"ti.created_at",
	"ti.updated_at",
	"dr.logical_date",
	"dr.state AS run_state",
	"sm.logical_date AS sla_logical_date",
	"sm.description AS sla_description",
	"sm.notification_sent AS sla_notification_sent",
	"sm.timestamp AS sla_timestamp",
	"rtf.logical_date AS rtf_logical_date",
	"rtf.fields AS rtf_fields",
}

const instanceColumnsSQL = "workflow_id, task_id, run_id, attempt, state, pool, queue, " +
	"started_at, ended_at, duration, created_at, updated_at"

const runColumnsSQL = "workflow_id, run_id, logical_date, state, created_at, updated_at"

const (
	slaJoin = "sla_misses AS sm ON sm.workflow_id = ti.workflow_id " +
		"AND sm.task_id = ti.task_id AND sm.logical_date = dr.logical_date"
	rtfJoin = "rendered_fields AS rtf ON rtf.workflow_id = ti.workflow_id " +
		"AND rtf.task_id = ti.task_id AND rtf.logical_date = dr.logical_date"
)

// DB is the minimal database interface TaskRepo depends on (pgxpool or pgxmock).
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// runner is the query surface shared by the pool and an open transaction.
type runner interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TaskRepo implements task.Repository backed by a pgx-compatible pool.
type TaskRepo struct {
	db DB
}

func NewTaskRepo(db DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// baseRelation builds the filtered TaskInstance INNER JOIN Run relation.
// The optional side joins are added only after the relation is counted.
func baseRelation(filter *task.ListFilter) squirrel.SelectBuilder {
	sb := squirrel.Select().
		From("task_instances AS ti").
		Join("dag_runs AS dr ON dr.workflow_id = ti.workflow_id AND dr.run_id = ti.run_id").
		PlaceholderFormat(squirrel.Dollar)
	if filter == nil {
		return sb
	}
	if filter.WorkflowID != "" && filter.WorkflowID != task.WildcardID {
		sb = sb.Where(squirrel.Eq{"ti.workflow_id": filter.WorkflowID})
	}
	if filter.RunID != "" && filter.RunID != task.WildcardID {
		sb = sb.Where(squirrel.Eq{"ti.run_id": filter.RunID})
	}
	sb = applyArrayFilter(sb, "ti.workflow_id", filter.WorkflowIDs)
	sb = applyRangeFilter(sb, "dr.logical_date", filter.LogicalDate.GTE, filter.LogicalDate.LTE)
	sb = applyRangeFilter(sb, "ti.started_at", filter.StartedAt.GTE, filter.StartedAt.LTE)
	sb = applyRangeFilter(sb, "ti.ended_at", filter.EndedAt.GTE, filter.EndedAt.LTE)
	sb = applyRangeFilter(sb, "ti.duration", filter.Duration.GTE, filter.Duration.LTE)
	sb = applyStateFilter(sb, "ti.state", filter.States)
	sb = applyArrayFilter(sb, "ti.pool", filter.Pools)
	sb = applyArrayFilter(sb, "ti.queue", filter.Queues)
	return sb
}

// ListRows counts the filtered base relation first, then expands the
// requested page with the optional SLA-miss and rendered-fields joins.
func (r *TaskRepo) ListRows(ctx context.Context, filter *task.ListFilter) ([]*task.Row, int64, error) {
	return r.listRowsWith(ctx, r.db, filter)
}

func (r *TaskRepo) listRowsWith(ctx context.Context, q runner, filter *task.ListFilter) ([]*task.Row, int64, error) {
	base := baseRelation(filter)

	countSQL, countArgs, err := base.Column("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building count query: %w", err)
	}
	var total int64
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting instances: %w", err)
	}

	page := base.Columns(rowColumns...).
		LeftJoin(slaJoin).
		LeftJoin(rtfJoin).
		OrderBy("dr.logical_date", "ti.workflow_id", "ti.run_id", "ti.task_id", "ti.attempt")
	if filter != nil && filter.Limit > 0 {
		if filter.Offset > 0 {
			page = page.Offset(uint64(filter.Offset))
		}
		page = page.Limit(uint64(filter.Limit))
	}
	pageSQL, pageArgs, err := page.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building list query: %w", err)
	}
	var rowsDB []*task.RowDB
	if err := pgxscan.Select(ctx, q, &rowsDB, pageSQL, pageArgs...); err != nil {
		return nil, 0, fmt.Errorf("scanning instances: %w", err)
	}
	rows := make([]*task.Row, 0, len(rowsDB))
	for _, rdb := range rowsDB {
		row, err := rdb.ToRow()
		if err != nil {
			return nil, 0, fmt.Errorf("converting instance row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, total, nil
}

// GetRow returns one instance with run fields and side joins.
func (r *TaskRepo) GetRow(ctx context.Context, key task.Key) (*task.Row, error) {
	return r.getRowWith(ctx, r.db, key)
}

func (r *TaskRepo) getRowWith(ctx context.Context, q runner, key task.Key) (*task.Row, error) {
	sb := squirrel.Select(rowColumns...).
		From("task_instances AS ti").
		Join("dag_runs AS dr ON dr.workflow_id = ti.workflow_id AND dr.run_id = ti.run_id").
		LeftJoin(slaJoin).
		LeftJoin(rtfJoin).
		Where(squirrel.Eq{
			"ti.workflow_id": key.WorkflowID,
			"ti.task_id":     key.TaskID,
			"ti.run_id":      key.RunID,
			"ti.attempt":     key.Attempt,
		}).
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get query: %w", err)
	}
	var rowDB task.RowDB
	if err := pgxscan.Get(ctx, q, &rowDB, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("instance %s: %w", key, task.ErrInstanceNotFound)
		}
		return nil, fmt.Errorf("scanning instance: %w", err)
	}
	return rowDB.ToRow()
}

// GetInstance performs a bare key lookup with no joins.
func (r *TaskRepo) GetInstance(ctx context.Context, key task.Key) (*task.Instance, error) {
	return r.getInstanceWith(ctx, r.db, key)
}

func (r *TaskRepo) getInstanceWith(ctx context.Context, q runner, key task.Key) (*task.Instance, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM task_instances WHERE workflow_id = $1 AND task_id = $2 AND run_id = $3 AND attempt = $4",
		instanceColumnsSQL,
	)
	var instDB task.InstanceDB
	if err := pgxscan.Get(ctx, q, &instDB, query, key.WorkflowID, key.TaskID, key.RunID, key.Attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("instance %s: %w", key, task.ErrInstanceNotFound)
		}
		return nil, fmt.Errorf("scanning instance: %w", err)
	}
	return instDB.ToInstance(), nil
}

func (r *TaskRepo) GetRun(ctx context.Context, workflowID, runID string) (*workflow.Run, error) {
	return r.getRunWith(ctx, r.db, workflowID, runID)
}

func (r *TaskRepo) getRunWith(ctx context.Context, q runner, workflowID, runID string) (*workflow.Run, error) {
	query := fmt.Sprintf("SELECT %s FROM dag_runs WHERE workflow_id = $1 AND run_id = $2", runColumnsSQL)
	var run workflow.Run
	if err := pgxscan.Get(ctx, q, &run, query, workflowID, runID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run %s/%s: %w", workflowID, runID, task.ErrRunNotFound)
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	return &run, nil
}

func (r *TaskRepo) GetRunByLogicalDate(
	ctx context.Context,
	workflowID string,
	logicalDate time.Time,
) (*workflow.Run, error) {
	return r.getRunByLogicalDateWith(ctx, r.db, workflowID, logicalDate)
}

func (r *TaskRepo) getRunByLogicalDateWith(
	ctx context.Context,
	q runner,
	workflowID string,
	logicalDate time.Time,
) (*workflow.Run, error) {
	query := fmt.Sprintf("SELECT %s FROM dag_runs WHERE workflow_id = $1 AND logical_date = $2", runColumnsSQL)
	var run workflow.Run
	if err := pgxscan.Get(ctx, q, &run, query, workflowID, logicalDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf(
				"run for workflow %s at %s: %w",
				workflowID, logicalDate.Format(time.RFC3339), task.ErrRunNotFound,
			)
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	return &run, nil
}

// ListReferences resolves instance identities for a workflow without loading
// full instance payloads.
func (r *TaskRepo) ListReferences(
	ctx context.Context,
	workflowID string,
	taskIDs []string,
	logicalDate task.TimeRange,
	states []*core.StatusType,
) ([]task.Reference, error) {
	return r.listReferencesWith(ctx, r.db, workflowID, taskIDs, logicalDate, states)
}

func (r *TaskRepo) listReferencesWith(
	ctx context.Context,
	q runner,
	workflowID string,
	taskIDs []string,
	logicalDate task.TimeRange,
	states []*core.StatusType,
) ([]task.Reference, error) {
	sb := squirrel.Select("ti.workflow_id", "ti.task_id", "ti.run_id", "ti.attempt", "dr.logical_date").
		From("task_instances AS ti").
		Join("dag_runs AS dr ON dr.workflow_id = ti.workflow_id AND dr.run_id = ti.run_id").
		Where(squirrel.Eq{"ti.workflow_id": workflowID}).
		PlaceholderFormat(squirrel.Dollar)
	sb = applyArrayFilter(sb, "ti.task_id", taskIDs)
	sb = applyRangeFilter(sb, "dr.logical_date", logicalDate.GTE, logicalDate.LTE)
	sb = applyStateFilter(sb, "ti.state", states)
	sb = sb.OrderBy("dr.logical_date", "ti.task_id", "ti.attempt")
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building references query: %w", err)
	}
	var refs []task.Reference
	if err := pgxscan.Select(ctx, q, &refs, sql, args...); err != nil {
		return nil, fmt.Errorf("scanning references: %w", err)
	}
	return refs, nil
}

// UpdateInstancesState writes state to every keyed instance; nil resets to
// the unset sentinel.
func (r *TaskRepo) UpdateInstancesState(ctx context.Context, keys []task.Key, state *core.StatusType) error {
	return r.updateInstancesStateWith(ctx, r.db, keys, state)
}

func (r *TaskRepo) updateInstancesStateWith(
	ctx context.Context,
	q runner,
	keys []task.Key,
	state *core.StatusType,
) error {
	if len(keys) == 0 {
		return nil
	}
	var stateValue any
	if state != nil {
		stateValue = *state
	}
	conds := make(squirrel.Or, 0, len(keys))
	for _, key := range keys {
		conds = append(conds, squirrel.Eq{
			"workflow_id": key.WorkflowID,
			"task_id":     key.TaskID,
			"run_id":      key.RunID,
			"attempt":     key.Attempt,
		})
	}
	sql, args, err := squirrel.Update("task_instances").
		Set("state", stateValue).
		Set("updated_at", squirrel.Expr("now()")).
		Where(conds).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building instance update: %w", err)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("updating instance state: %w", err)
	}
	if tag.RowsAffected() != int64(len(keys)) {
		return fmt.Errorf(
			"updating instance state: expected %d rows, affected %d",
			len(keys), tag.RowsAffected(),
		)
	}
	return nil
}

// UpdateRunsState moves the named runs of a workflow to the given state.
func (r *TaskRepo) UpdateRunsState(
	ctx context.Context,
	workflowID string,
	runIDs []string,
	state core.RunStatusType,
) error {
	return r.updateRunsStateWith(ctx, r.db, workflowID, runIDs, state)
}

func (r *TaskRepo) updateRunsStateWith(
	ctx context.Context,
	q runner,
	workflowID string,
	runIDs []string,
	state core.RunStatusType,
) error {
	if len(runIDs) == 0 {
		return nil
	}
	sql, args, err := squirrel.Update("dag_runs").
		Set("state", state).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"workflow_id": workflowID, "run_id": runIDs}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building run update: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("updating run state: %w", err)
	}
	return nil
}

// WithTransaction provides a tx-scoped repository to the callback.
func (r *TaskRepo) WithTransaction(ctx context.Context, fn func(task.Repository) error) (err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("beginning transaction: %w", beginErr)
	}
	log := logger.FromContext(ctx)
	repoTx := &taskRepoTx{parent: r, tx: tx}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error("Failed to rollback transaction", "error", rbErr)
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error("Failed to rollback transaction", "error", rbErr)
			}
		} else {
			if cErr := tx.Commit(ctx); cErr != nil {
				log.Error("Failed to commit transaction", "error", cErr)
				err = fmt.Errorf("commit transaction: %w", cErr)
			}
		}
	}()
	err = fn(repoTx)
	return err
}

type taskRepoTx struct {
	parent *TaskRepo
	tx     pgx.Tx
}

func (t *taskRepoTx) GetRow(ctx context.Context, key task.Key) (*task.Row, error) {
	return t.parent.getRowWith(ctx, t.tx, key)
}

func (t *taskRepoTx) ListRows(ctx context.Context, filter *task.ListFilter) ([]*task.Row, int64, error) {
	return t.parent.listRowsWith(ctx, t.tx, filter)
}

func (t *taskRepoTx) GetInstance(ctx context.Context, key task.Key) (*task.Instance, error) {
	return t.parent.getInstanceWith(ctx, t.tx, key)
}

func (t *taskRepoTx) GetRun(ctx context.Context, workflowID, runID string) (*workflow.Run, error) {
	return t.parent.getRunWith(ctx, t.tx, workflowID, runID)
}

func (t *taskRepoTx) GetRunByLogicalDate(
	ctx context.Context,
	workflowID string,
	logicalDate time.Time,
) (*workflow.Run, error) {
	return t.parent.getRunByLogicalDateWith(ctx, t.tx, workflowID, logicalDate)
}

func (t *taskRepoTx) ListReferences(
	ctx context.Context,
	workflowID string,
	taskIDs []string,
	logicalDate task.TimeRange,
	states []*core.StatusType,
) ([]task.Reference, error) {
	return t.parent.listReferencesWith(ctx, t.tx, workflowID, taskIDs, logicalDate, states)
}

func (t *taskRepoTx) UpdateInstancesState(ctx context.Context, keys []task.Key, state *core.StatusType) error {
	return t.parent.updateInstancesStateWith(ctx, t.tx, keys, state)
}

func (t *taskRepoTx) UpdateRunsState(
	ctx context.Context,
	workflowID string,
	runIDs []string,
	state core.RunStatusType,
) error {
	return t.parent.updateRunsStateWith(ctx, t.tx, workflowID, runIDs, state)
}

func (t *taskRepoTx) WithTransaction(_ context.Context, fn func(task.Repository) error) error {
	return fn(t)
}
