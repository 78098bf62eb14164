package servehttp

import (
	"net/http"

	"conveyor/bizerror"
	"conveyor/domain"
	"conveyor/domain/engine"
	"conveyor/misc"
	"conveyor/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterWorkflowInstancesHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/workflow-instances", middleWares...)

	handler := &workflowInstanceHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleStartWorkflow)
	g.GET("", handler.handleQueryInstances)
	g.GET(":instanceId", handler.handleDetailInstance)

	g.POST(":instanceId/actions", handler.handleExecuteStep)
	g.POST(":instanceId/approval", handler.handleApproveTask)
	g.POST(":instanceId/rejection", handler.handleRejectTask)
	g.POST(":instanceId/delegation", handler.handleDelegateTask)
	g.POST(":instanceId/completion", handler.handleCompleteTask)
	g.POST(":instanceId/cancellation", handler.handleCancelWorkflow)
}

type workflowInstanceHandler struct {
	validator *validator.Validate
}

func bindInstanceID(c *gin.Context) (types.ID, bool) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return 0, false
	}
	return id, true
}

func (h *workflowInstanceHandler) handleStartWorkflow(c *gin.Context) {
	creation := engine.InstanceCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := engine.StartWorkflowFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *workflowInstanceHandler) handleQueryInstances(c *gin.Context) {
	query := domain.WorkflowInstanceQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	instances, err := engine.QueryWorkflowInstancesFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, instances)
}

func (h *workflowInstanceHandler) handleDetailInstance(c *gin.Context) {
	id, ok := bindInstanceID(c)
	if !ok {
		return
	}

	detail, err := engine.DetailWorkflowInstanceFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *workflowInstanceHandler) handleExecuteStep(c *gin.Context) {
	id, ok := bindInstanceID(c)
	if !ok {
		return
	}

	request := engine.TaskActionRequest{}
	err := c.ShouldBindBodyWith(&request, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(request); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	instance, err := engine.ExecuteStepFunc(id, &request, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, instance)
}

func (h *workflowInstanceHandler) handleApproveTask(c *gin.Context) {
	id, ok := bindInstanceID(c)
	if !ok {
		return
	}

	request := engine.ApprovalRequest{}
	if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	instance, err := engine.ApproveTaskFunc(id, &request, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, instance)
}

func (h *workflowInstanceHandler) handleRejectTask(c *gin.Context) {
	id, ok := bindInstanceID(c)
	if !ok {
		return
	}

	request := engine.RejectionRequest{}
	err := c.ShouldBindBodyWith(&request, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(request); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	instance, err := engine.RejectTaskFunc(id, &request, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, instance)
}

func (h *workflowInstanceHandler) handleDelegateTask(c *gin.Context) {
	id, ok := bindInstanceID(c)
	if !ok {
		return
	}

	request := engine.DelegationRequest{}
	err := c.ShouldBindBodyWith(&request, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(request); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	instance, err := engine.DelegateTaskFunc(id, &request, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, instance)
}

func (h *workflowInstanceHandler) handleCompleteTask(c *gin.Context) {
	id, ok := bindInstanceID(c)
	if !ok {
		return
	}

	request := engine.CompletionRequest{}
	if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	instance, err := engine.CompleteTaskFunc(id, &request, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, instance)
}

func (h *workflowInstanceHandler) handleCancelWorkflow(c *gin.Context) {
	id, ok := bindInstanceID(c)
	if !ok {
		return
	}

	request := engine.CancellationRequest{}
	if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	instance, err := engine.CancelWorkflowFunc(id, &request, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, instance)
}
