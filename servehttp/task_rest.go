package servehttp

import (
	"net/http"

	"conveyor/domain/engine"
	"conveyor/session"

	"github.com/gin-gonic/gin"
)

// RegisterWorkflowTasksHandler exposes the task inbox: PENDING rows assigned
// to the session actor across all instances of the tenant.
func RegisterWorkflowTasksHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/workflow-tasks", middleWares...)

	g.GET("", handleQueryMyPendingTasks)
}

func handleQueryMyPendingTasks(c *gin.Context) {
	tasks, err := engine.QueryMyPendingTasksFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, tasks)
}
