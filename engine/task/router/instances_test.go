package tkrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airtide/airtide/engine/core"
	"github.com/airtide/airtide/engine/task"
	"github.com/airtide/airtide/engine/task/uc"
	"github.com/airtide/airtide/engine/workflow"
)

type stubRepo struct {
	rows  []*task.Row
	total int64
	refs  []task.Reference

	lastFilter *task.ListFilter
	mutated    bool
}

func (s *stubRepo) GetRow(_ context.Context, key task.Key) (*task.Row, error) {
	for _, row := range s.rows {
		if row.Key() == key {
			return row, nil
		}
	}
	return nil, task.ErrInstanceNotFound
}

func (s *stubRepo) ListRows(_ context.Context, filter *task.ListFilter) ([]*task.Row, int64, error) {
	s.lastFilter = filter
	return s.rows, s.total, nil
}

func (s *stubRepo) GetInstance(_ context.Context, key task.Key) (*task.Instance, error) {
	row, err := s.GetRow(context.Background(), key)
	if err != nil {
		return nil, err
	}
	return &row.Instance, nil
}

func (s *stubRepo) GetRun(_ context.Context, workflowID, runID string) (*workflow.Run, error) {
	return &workflow.Run{WorkflowID: workflowID, RunID: runID}, nil
}

func (s *stubRepo) GetRunByLogicalDate(
	_ context.Context,
	workflowID string,
	logicalDate time.Time,
) (*workflow.Run, error) {
	return &workflow.Run{WorkflowID: workflowID, LogicalDate: logicalDate}, nil
}

func (s *stubRepo) ListReferences(
	_ context.Context, _ string, _ []string, _ task.TimeRange, _ []*core.StatusType,
) ([]task.Reference, error) {
	return s.refs, nil
}

func (s *stubRepo) UpdateInstancesState(_ context.Context, _ []task.Key, _ *core.StatusType) error {
	s.mutated = true
	return nil
}

func (s *stubRepo) UpdateRunsState(_ context.Context, _ string, _ []string, _ core.RunStatusType) error {
	return nil
}

func (s *stubRepo) WithTransaction(_ context.Context, fn func(task.Repository) error) error {
	return fn(s)
}

func newTestRouter(t *testing.T, repo *stubRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	wf := &workflow.Config{
		ID: "etl",
		Tasks: []workflow.TaskConfig{
			{ID: "extract"},
			{ID: "load", DependsOn: []string{"extract"}},
		},
	}
	require.NoError(t, wf.Validate())
	catalog := workflow.NewCatalog([]*workflow.Config{wf})
	engine := gin.New()
	Register(engine.Group("/api/v1"), NewHandlers(repo, catalog, uc.ListLimits{}))
	return engine
}

func doRequest(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestListInstancesEndpoint(t *testing.T) {
	t.Run("Should return the page with the pre-join total", func(t *testing.T) {
		state := core.StatusSuccess
		repo := &stubRepo{
			rows: []*task.Row{{
				Instance: task.Instance{
					WorkflowID: "etl", TaskID: "extract", RunID: "r1", State: &state,
				},
				RunState: core.RunStatusRunning,
			}},
			total: 42,
		}
		rec := doRequest(newTestRouter(t, repo), http.MethodGet,
			"/api/v1/workflows/etl/runs/r1/instances?limit=5", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data ListResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(42), resp.Data.TotalEntries)
		require.Len(t, resp.Data.TaskInstances, 1)
		assert.Equal(t, "extract", resp.Data.TaskInstances[0].TaskID)
		assert.Equal(t, 5, repo.lastFilter.Limit)
	})
	t.Run("Should pass wildcard identities through to the filter", func(t *testing.T) {
		repo := &stubRepo{}
		rec := doRequest(newTestRouter(t, repo), http.MethodGet,
			"/api/v1/workflows/~/runs/~/instances", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, task.WildcardID, repo.lastFilter.WorkflowID)
		assert.Equal(t, task.WildcardID, repo.lastFilter.RunID)
	})
	t.Run("Should reject a malformed timestamp", func(t *testing.T) {
		rec := doRequest(newTestRouter(t, &stubRepo{}), http.MethodGet,
			"/api/v1/workflows/etl/runs/r1/instances?logical_date_gte=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("Should repeat query params into array filters", func(t *testing.T) {
		repo := &stubRepo{}
		rec := doRequest(newTestRouter(t, repo), http.MethodGet,
			"/api/v1/workflows/etl/runs/r1/instances?state=FAILED&state=none&pool=batch", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, repo.lastFilter.States, 2)
		assert.Nil(t, repo.lastFilter.States[1])
		assert.Equal(t, []string{"batch"}, repo.lastFilter.Pools)
	})
}

func TestGetInstanceEndpoint(t *testing.T) {
	t.Run("Should return 404 for an unknown instance", func(t *testing.T) {
		rec := doRequest(newTestRouter(t, &stubRepo{}), http.MethodGet,
			"/api/v1/workflows/etl/runs/r1/instances/extract", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("Should select an attempt through the query string", func(t *testing.T) {
		repo := &stubRepo{rows: []*task.Row{{
			Instance: task.Instance{WorkflowID: "etl", TaskID: "extract", RunID: "r1", Attempt: 2},
		}}}
		rec := doRequest(newTestRouter(t, repo), http.MethodGet,
			"/api/v1/workflows/etl/runs/r1/instances/extract?attempt=2", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBatchListEndpoint(t *testing.T) {
	t.Run("Should reject an inverted range with 400", func(t *testing.T) {
		rec := doRequest(newTestRouter(t, &stubRepo{}), http.MethodPost,
			"/api/v1/instances/list", map[string]any{
				"logical_date_gte": "2024-03-02T00:00:00Z",
				"logical_date_lte": "2024-03-01T00:00:00Z",
			})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("Should accept workflow id collections", func(t *testing.T) {
		repo := &stubRepo{}
		rec := doRequest(newTestRouter(t, repo), http.MethodPost,
			"/api/v1/instances/list", map[string]any{"workflow_ids": []string{"etl", "reporting"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"etl", "reporting"}, repo.lastFilter.WorkflowIDs)
		assert.Zero(t, repo.lastFilter.Limit)
	})
}

func TestClearEndpoint(t *testing.T) {
	t.Run("Should return 404 for an unknown workflow", func(t *testing.T) {
		rec := doRequest(newTestRouter(t, &stubRepo{}), http.MethodPost,
			"/api/v1/workflows/missing/instances/clear", map[string]any{})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("Should report affected references without mutating on dry run", func(t *testing.T) {
		repo := &stubRepo{refs: []task.Reference{
			{WorkflowID: "etl", TaskID: "extract", RunID: "r1"},
		}}
		rec := doRequest(newTestRouter(t, repo), http.MethodPost,
			"/api/v1/workflows/etl/instances/clear", map[string]any{"dry_run": true})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data ReferencesResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Data.TotalEntries)
		assert.False(t, repo.mutated)
	})
}

func TestSetStateEndpoint(t *testing.T) {
	t.Run("Should reject a body without new_state", func(t *testing.T) {
		rec := doRequest(newTestRouter(t, &stubRepo{}), http.MethodPost,
			"/api/v1/workflows/etl/instances/state", map[string]any{
				"task_id": "extract",
				"run_id":  "r1",
			})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("Should apply the new state to the resolved cascade", func(t *testing.T) {
		repo := &stubRepo{
			rows: []*task.Row{{
				Instance: task.Instance{WorkflowID: "etl", TaskID: "extract", RunID: "r1"},
			}},
			refs: []task.Reference{{WorkflowID: "etl", TaskID: "extract", RunID: "r1"}},
		}
		rec := doRequest(newTestRouter(t, repo), http.MethodPost,
			"/api/v1/workflows/etl/instances/state", map[string]any{
				"task_id":   "extract",
				"run_id":    "r1",
				"new_state": "SUCCESS",
			})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, repo.mutated)
	})
}
