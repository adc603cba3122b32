package postgres

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airtide/airtide/engine/core"
	"github.com/airtide/airtide/engine/task"
)

func baseSelect() squirrel.SelectBuilder {
	return squirrel.Select("1").From("t").PlaceholderFormat(squirrel.Dollar)
}

func TestApplyArrayFilter(t *testing.T) {
	t.Run("Should apply no constraint for a nil slice", func(t *testing.T) {
		sql, args, err := applyArrayFilter(baseSelect(), "c", nil).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1 FROM t", sql)
		assert.Empty(t, args)
	})
	t.Run("Should match nothing for an empty slice", func(t *testing.T) {
		sql, _, err := applyArrayFilter(baseSelect(), "c", []string{}).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "(1=0)")
	})
	t.Run("Should render an IN clause for values", func(t *testing.T) {
		sql, args, err := applyArrayFilter(baseSelect(), "c", []string{"a", "b"}).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "c IN ($1,$2)")
		assert.Equal(t, []any{"a", "b"}, args)
	})
}

func TestApplyRangeFilter(t *testing.T) {
	lo := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	t.Run("Should apply no constraint when both bounds are absent", func(t *testing.T) {
		sql, _, err := applyRangeFilter[time.Time](baseSelect(), "c", nil, nil).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1 FROM t", sql)
	})
	t.Run("Should apply an inclusive lower bound alone", func(t *testing.T) {
		sql, args, err := applyRangeFilter(baseSelect(), "c", &lo, nil).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "c >= $1")
		assert.NotContains(t, sql, "<=")
		assert.Equal(t, []any{lo}, args)
	})
	t.Run("Should apply an inclusive upper bound alone", func(t *testing.T) {
		sql, args, err := applyRangeFilter[time.Time](baseSelect(), "c", nil, &hi).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "c <= $1")
		assert.Equal(t, []any{hi}, args)
	})
	t.Run("Should apply both bounds together", func(t *testing.T) {
		sql, args, err := applyRangeFilter(baseSelect(), "c", &lo, &hi).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "c >= $1")
		assert.Contains(t, sql, "c <= $2")
		assert.Equal(t, []any{lo, hi}, args)
	})
	t.Run("Should work for float bounds", func(t *testing.T) {
		min := 1.5
		sql, args, err := applyRangeFilter(baseSelect(), "duration", &min, nil).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "duration >= $1")
		assert.Equal(t, []any{1.5}, args)
	})
}

func TestApplyStateFilter(t *testing.T) {
	t.Run("Should apply no constraint for a nil set", func(t *testing.T) {
		sql, _, err := applyStateFilter(baseSelect(), "state", nil).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1 FROM t", sql)
	})
	t.Run("Should match nothing for an empty set", func(t *testing.T) {
		sql, _, err := applyStateFilter(baseSelect(), "state", []*core.StatusType{}).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "(1=0)")
	})
	t.Run("Should match the unset sentinel with IS NULL", func(t *testing.T) {
		failed := core.StatusFailed
		sql, args, err := applyStateFilter(baseSelect(), "state", []*core.StatusType{&failed, nil}).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "state = $1")
		assert.Contains(t, sql, "state IS NULL")
		assert.Equal(t, []any{core.StatusFailed}, args)
	})
}

func TestBaseRelation(t *testing.T) {
	t.Run("Should skip identity constraints for the wildcard", func(t *testing.T) {
		sql, args, err := baseRelation(&task.ListFilter{
			WorkflowID: task.WildcardID,
			RunID:      task.WildcardID,
		}).Column("COUNT(*)").ToSql()
		require.NoError(t, err)
		assert.NotContains(t, sql, "WHERE")
		assert.Empty(t, args)
	})
	t.Run("Should constrain both identity columns when given", func(t *testing.T) {
		sql, args, err := baseRelation(&task.ListFilter{
			WorkflowID: "etl",
			RunID:      "r1",
		}).Column("COUNT(*)").ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "ti.workflow_id = $1")
		assert.Contains(t, sql, "ti.run_id = $2")
		assert.Equal(t, []any{"etl", "r1"}, args)
	})
	t.Run("Should join runs but never the side tables", func(t *testing.T) {
		sql, _, err := baseRelation(&task.ListFilter{}).Column("COUNT(*)").ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "JOIN dag_runs")
		assert.NotContains(t, sql, "sla_misses")
		assert.NotContains(t, sql, "rendered_fields")
	})
}
