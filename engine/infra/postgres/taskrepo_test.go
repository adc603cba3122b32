package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airtide/airtide/engine/core"
	"github.com/airtide/airtide/engine/task"
)

var rowColumnNames = []string{
	"workflow_id", "task_id", "run_id", "attempt", "state", "pool", "queue",
	"started_at", "ended_at", "duration", "created_at", "updated_at",
	"logical_date", "run_state",
	"sla_logical_date", "sla_description", "sla_notification_sent", "sla_timestamp",
	"rtf_logical_date", "rtf_fields",
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *TaskRepo) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, NewTaskRepo(mockPool)
}

func TestTaskRepo_ListRows(t *testing.T) {
	logicalDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	t.Run("Should count the base relation before joining side tables", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		ctx := context.Background()
		mockPool.ExpectQuery(`SELECT COUNT\(\*\) FROM task_instances AS ti JOIN dag_runs`).
			WithArgs("etl").
			WillReturnRows(mockPool.NewRows([]string{"count"}).AddRow(int64(7)))
		rows := mockPool.NewRows(rowColumnNames).
			AddRow("etl", "extract", "r1", 0, nil, "default", "default",
				nil, nil, nil, now, now,
				logicalDate, "RUNNING",
				nil, nil, nil, nil,
				nil, nil).
			AddRow("etl", "load", "r1", 0, "FAILED", "default", "default",
				now, now, 12.5, now, now,
				logicalDate, "RUNNING",
				logicalDate, "missed", true, now,
				logicalDate, []byte(`{"sql":"SELECT 1"}`))
		mockPool.ExpectQuery(`LEFT JOIN sla_misses .+ LEFT JOIN rendered_fields`).
			WithArgs("etl").
			WillReturnRows(rows)
		result, total, err := repo.ListRows(ctx, &task.ListFilter{WorkflowID: "etl", Limit: 25})
		require.NoError(t, err)
		assert.Equal(t, int64(7), total)
		require.Len(t, result, 2)
		assert.Nil(t, result[0].State)
		assert.Nil(t, result[0].SlaMiss)
		require.NotNil(t, result[1].State)
		assert.Equal(t, core.StatusFailed, *result[1].State)
		require.NotNil(t, result[1].SlaMiss)
		assert.Equal(t, "missed", result[1].SlaMiss.Description)
		require.NotNil(t, result[1].Rendered)
		assert.Equal(t, "SELECT 1", result[1].Rendered.Fields["sql"])
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should omit pagination when no limit is set", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(`SELECT COUNT\(\*\)`).
			WillReturnRows(mockPool.NewRows([]string{"count"}).AddRow(int64(0)))
		mockPool.ExpectQuery(`SELECT ti\.workflow_id`).
			WillReturnRows(mockPool.NewRows(rowColumnNames))
		_, total, err := repo.ListRows(context.Background(), &task.ListFilter{})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestTaskRepo_GetRow(t *testing.T) {
	t.Run("Should map a missing instance to ErrInstanceNotFound", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(`SELECT ti\.workflow_id`).
			WithArgs(0, "r1", "extract", "etl").
			WillReturnError(pgx.ErrNoRows)
		_, err := repo.GetRow(context.Background(), task.Key{
			WorkflowID: "etl", TaskID: "extract", RunID: "r1",
		})
		assert.ErrorIs(t, err, task.ErrInstanceNotFound)
	})
}

func TestTaskRepo_GetInstance(t *testing.T) {
	now := time.Now()
	t.Run("Should fetch one instance by key with no joins", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		rows := mockPool.NewRows([]string{
			"workflow_id", "task_id", "run_id", "attempt", "state", "pool", "queue",
			"started_at", "ended_at", "duration", "created_at", "updated_at",
		}).AddRow("etl", "extract", "r1", 0, "SUCCESS", "default", "default",
			now, now, 3.0, now, now)
		mockPool.ExpectQuery(`SELECT .+ FROM task_instances WHERE workflow_id = \$1`).
			WithArgs("etl", "extract", "r1", 0).
			WillReturnRows(rows)
		inst, err := repo.GetInstance(context.Background(), task.Key{
			WorkflowID: "etl", TaskID: "extract", RunID: "r1",
		})
		require.NoError(t, err)
		require.NotNil(t, inst.State)
		assert.Equal(t, core.StatusSuccess, *inst.State)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestTaskRepo_GetRun(t *testing.T) {
	logicalDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	runRows := func(p pgxmock.PgxPoolIface) *pgxmock.Rows {
		return p.NewRows([]string{
			"workflow_id", "run_id", "logical_date", "state", "created_at", "updated_at",
		}).AddRow("etl", "r1", logicalDate, "RUNNING", now, now)
	}
	t.Run("Should fetch a run by id", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(`FROM dag_runs WHERE workflow_id = \$1 AND run_id = \$2`).
			WithArgs("etl", "r1").
			WillReturnRows(runRows(mockPool))
		run, err := repo.GetRun(context.Background(), "etl", "r1")
		require.NoError(t, err)
		assert.Equal(t, core.RunStatusRunning, run.State)
		assert.True(t, run.LogicalDate.Equal(logicalDate))
	})
	t.Run("Should fetch a run by logical date", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(`FROM dag_runs WHERE workflow_id = \$1 AND logical_date = \$2`).
			WithArgs("etl", logicalDate).
			WillReturnRows(runRows(mockPool))
		run, err := repo.GetRunByLogicalDate(context.Background(), "etl", logicalDate)
		require.NoError(t, err)
		assert.Equal(t, "r1", run.RunID)
	})
	t.Run("Should map a missing run to ErrRunNotFound", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(`FROM dag_runs`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)
		_, err := repo.GetRun(context.Background(), "etl", "r9")
		assert.ErrorIs(t, err, task.ErrRunNotFound)
	})
}

func TestTaskRepo_ListReferences(t *testing.T) {
	logicalDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t.Run("Should resolve identities ordered by date and task", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		rows := mockPool.NewRows([]string{
			"workflow_id", "task_id", "run_id", "attempt", "logical_date",
		}).
			AddRow("etl", "extract", "r1", 0, logicalDate).
			AddRow("etl", "load", "r1", 0, logicalDate)
		mockPool.ExpectQuery(`ORDER BY dr\.logical_date, ti\.task_id, ti\.attempt`).
			WithArgs("etl", "extract", "load").
			WillReturnRows(rows)
		refs, err := repo.ListReferences(
			context.Background(), "etl", []string{"extract", "load"}, task.TimeRange{}, nil,
		)
		require.NoError(t, err)
		require.Len(t, refs, 2)
		assert.Equal(t, "extract", refs[0].TaskID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestTaskRepo_UpdateInstancesState(t *testing.T) {
	keys := []task.Key{
		{WorkflowID: "etl", TaskID: "extract", RunID: "r1"},
		{WorkflowID: "etl", TaskID: "load", RunID: "r1"},
	}
	t.Run("Should reset state to NULL for nil state", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectExec(`UPDATE task_instances SET state = \$1, updated_at = now\(\)`).
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))
		err := repo.UpdateInstancesState(context.Background(), keys, nil)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should fail when fewer rows are affected than keyed", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectExec(`UPDATE task_instances`).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		err := repo.UpdateInstancesState(context.Background(), keys, nil)
		assert.Error(t, err)
	})
	t.Run("Should no-op on an empty key set", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		err := repo.UpdateInstancesState(context.Background(), nil, nil)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestTaskRepo_WithTransaction(t *testing.T) {
	t.Run("Should commit when the callback succeeds", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectBegin()
		mockPool.ExpectExec(`UPDATE dag_runs SET state = \$1`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()
		err := repo.WithTransaction(context.Background(), func(txRepo task.Repository) error {
			return txRepo.UpdateRunsState(context.Background(), "etl", []string{"r1"}, core.RunStatusQueued)
		})
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should roll back when the callback fails", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectBegin()
		mockPool.ExpectRollback()
		wantErr := errors.New("boom")
		err := repo.WithTransaction(context.Background(), func(task.Repository) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
