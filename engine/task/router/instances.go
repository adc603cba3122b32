package tkrouter

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/airtide/airtide/engine/core"
	"github.com/airtide/airtide/engine/infra/server/router"
	"github.com/airtide/airtide/engine/task"
	"github.com/airtide/airtide/engine/task/uc"
	"github.com/airtide/airtide/engine/workflow"
)

// Handlers carries the dependencies the task-instance endpoints need. Use
// cases are constructed per request, mirroring how cheap they are to build.
type Handlers struct {
	taskRepo task.Repository
	catalog  workflow.Catalog
	limits   uc.ListLimits
}

func NewHandlers(taskRepo task.Repository, catalog workflow.Catalog, limits uc.ListLimits) *Handlers {
	return &Handlers{taskRepo: taskRepo, catalog: catalog, limits: limits}
}

// getInstance retrieves one task instance with its run fields and optional
// SLA and rendered-fields joins.
func (h *Handlers) getInstance(c *gin.Context) {
	attempt, err := router.QueryInt(c, "attempt", 0)
	if err != nil {
		respondError(c, router.BadRequest(err, "invalid attempt"))
		return
	}
	key := task.Key{
		WorkflowID: c.Param("workflow_id"),
		RunID:      c.Param("run_id"),
		TaskID:     c.Param("task_id"),
		Attempt:    attempt,
	}
	row, err := uc.NewGetInstance(h.taskRepo).Execute(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	router.RespondOK(c, "task instance retrieved", row)
}

// listInstances lists the instances of one workflow run. Both path segments
// accept the "~" wildcard to widen the selection.
func (h *Handlers) listInstances(c *gin.Context) {
	input, reqErr := parseListQuery(c)
	if reqErr != nil {
		respondError(c, reqErr)
		return
	}
	out, err := uc.NewListInstances(h.taskRepo, h.limits).Execute(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	router.RespondOK(c, "task instances listed", newListResponse(out))
}

// listBatch lists instances across workflows from a JSON filter body,
// without pagination.
func (h *Handlers) listBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, router.BadRequest(err, "invalid request body"))
		return
	}
	out, err := uc.NewListBatch(h.taskRepo).Execute(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	router.RespondOK(c, "task instances listed", newListResponse(out))
}

// clearInstances resets the selected instances of a workflow to the unset
// state, reporting the affected set.
func (h *Handlers) clearInstances(c *gin.Context) {
	var req ClearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, router.BadRequest(err, "invalid request body"))
		return
	}
	refs, err := uc.NewClear(h.taskRepo, h.catalog).
		Execute(c.Request.Context(), req.toInput(c.Param("workflow_id")))
	if err != nil {
		respondError(c, err)
		return
	}
	router.RespondOK(c, "task instances cleared", newReferencesResponse(refs))
}

// setInstancesState moves an anchor instance and its requested cascade to a
// new state.
func (h *Handlers) setInstancesState(c *gin.Context) {
	var req SetStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, router.BadRequest(err, "invalid request body"))
		return
	}
	refs, err := uc.NewSetState(h.taskRepo, h.catalog).Execute(c.Request.Context(), &uc.SetStateInput{
		WorkflowID:  c.Param("workflow_id"),
		TaskID:      req.TaskID,
		RunID:       req.RunID,
		LogicalDate: req.LogicalDate,
		NewState:    core.StatusType(req.NewState),
		Upstream:    req.Upstream,
		Downstream:  req.Downstream,
		Future:      req.Future,
		Past:        req.Past,
		DryRun:      req.DryRun,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	router.RespondOK(c, "task instance state updated", newReferencesResponse(refs))
}

func parseListQuery(c *gin.Context) (*uc.ListInput, *router.RequestError) {
	input := &uc.ListInput{
		WorkflowID: c.Param("workflow_id"),
		RunID:      c.Param("run_id"),
		States:     router.QueryList(c, "state"),
		Pools:      router.QueryList(c, "pool"),
		Queues:     router.QueryList(c, "queue"),
	}
	var err error
	if input.LogicalDate.GTE, err = router.QueryTime(c, "logical_date_gte"); err != nil {
		return nil, router.BadRequest(err, "invalid query")
	}
	if input.LogicalDate.LTE, err = router.QueryTime(c, "logical_date_lte"); err != nil {
		return nil, router.BadRequest(err, "invalid query")
	}
	if input.StartedAt.GTE, err = router.QueryTime(c, "started_at_gte"); err != nil {
		return nil, router.BadRequest(err, "invalid query")
	}
	if input.StartedAt.LTE, err = router.QueryTime(c, "started_at_lte"); err != nil {
		return nil, router.BadRequest(err, "invalid query")
	}
	if input.EndedAt.GTE, err = router.QueryTime(c, "ended_at_gte"); err != nil {
		return nil, router.BadRequest(err, "invalid query")
	}
	if input.EndedAt.LTE, err = router.QueryTime(c, "ended_at_lte"); err != nil {
		return nil, router.BadRequest(err, "invalid query")
	}
	if input.Duration.GTE, err = router.QueryFloat(c, "duration_gte"); err != nil {
		return nil, router.BadRequest(err, "invalid query")
	}
	if input.Duration.LTE, err = router.QueryFloat(c, "duration_lte"); err != nil {
		return nil, router.BadRequest(err, "invalid query")
	}
	if input.Offset, err = router.QueryInt(c, "offset", 0); err != nil {
		return nil, router.BadRequest(err, "invalid query")
	}
	if input.Limit, err = router.QueryInt(c, "limit", 0); err != nil {
		return nil, router.BadRequest(err, "invalid query")
	}
	return input, nil
}

// respondError maps domain errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	var reqErr *router.RequestError
	if errors.As(err, &reqErr) {
		router.RespondWithError(c, reqErr.StatusCode, reqErr)
		return
	}
	switch {
	case errors.Is(err, workflow.ErrNotFound),
		errors.Is(err, workflow.ErrTaskNotFound),
		errors.Is(err, task.ErrInstanceNotFound),
		errors.Is(err, task.ErrRunNotFound):
		reqErr := router.NotFound(err, "%s", err)
		router.RespondWithError(c, reqErr.StatusCode, reqErr)
	case errors.Is(err, uc.ErrInvalidInput):
		reqErr := router.BadRequest(err, "%s", err)
		router.RespondWithError(c, reqErr.StatusCode, reqErr)
	default:
		router.RespondWithServerError(c, router.ErrInternalCode, "internal error", err)
	}
}
