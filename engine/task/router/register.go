package tkrouter

import (
	"github.com/gin-gonic/gin"
)

func Register(apiBase *gin.RouterGroup, h *Handlers) {
	instancesGroup := apiBase.Group("/instances")
	{
		// POST /instances/list
		// Batch list across workflows, unpaginated
		instancesGroup.POST("/list", h.listBatch)
	}
	workflowsGroup := apiBase.Group("/workflows/:workflow_id")
	{
		runsGroup := workflowsGroup.Group("/runs/:run_id")
		{
			// GET /workflows/:workflow_id/runs/:run_id/instances
			// List instances for a run; "~" widens either id
			runsGroup.GET("/instances", h.listInstances)

			// GET /workflows/:workflow_id/runs/:run_id/instances/:task_id
			// Get one instance; ?attempt= selects a retry
			runsGroup.GET("/instances/:task_id", h.getInstance)
		}
		// POST /workflows/:workflow_id/instances/clear
		// Reset selected instances to the unset state
		workflowsGroup.POST("/instances/clear", h.clearInstances)

		// POST /workflows/:workflow_id/instances/state
		// Move an anchor instance and its cascade to a new state
		workflowsGroup.POST("/instances/state", h.setInstancesState)
	}
}
