package servehttp

import (
	"net/http"

	"conveyor/bizerror"
	"conveyor/domain"
	"conveyor/domain/flow"
	"conveyor/misc"
	"conveyor/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterWorkflowDefinitionsHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/workflow-definitions", middleWares...)

	handler := &workflowDefinitionHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateDefinition)
	g.GET("", handler.handleQueryDefinitions)
	g.GET(":definitionId", handler.handleDetailDefinition)
	g.PUT(":definitionId", handler.handleUpdateDefinitionBase)
	g.DELETE(":definitionId", handler.handleDeleteDefinition)
	g.PUT(":definitionId/status", handler.handleUpdateDefinitionStatus)

	g.POST(":definitionId/steps", handler.handleAddSteps)
	g.POST(":definitionId/transitions", handler.handleAddTransitions)
	g.DELETE(":definitionId/transitions", handler.handleDeleteTransitions)
}

type workflowDefinitionHandler struct {
	validator *validator.Validate
}

func bindDefinitionID(c *gin.Context) (types.ID, bool) {
	id, err := types.ParseID(c.Param("definitionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("definitionId") + "'"})
		return 0, false
	}
	return id, true
}

func (h *workflowDefinitionHandler) handleQueryDefinitions(c *gin.Context) {
	query := domain.WorkflowDefinitionQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	definitions, err := flow.QueryWorkflowDefinitionsFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, definitions)
}

func (h *workflowDefinitionHandler) handleCreateDefinition(c *gin.Context) {
	creation := flow.WorkflowDefinitionCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := flow.CreateWorkflowDefinitionFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *workflowDefinitionHandler) handleDetailDefinition(c *gin.Context) {
	id, ok := bindDefinitionID(c)
	if !ok {
		return
	}

	detail, err := flow.DetailWorkflowDefinitionFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *workflowDefinitionHandler) handleUpdateDefinitionBase(c *gin.Context) {
	id, ok := bindDefinitionID(c)
	if !ok {
		return
	}

	updating := flow.WorkflowDefinitionBaseUpdation{}
	err := c.ShouldBindBodyWith(&updating, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(updating); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	definition, err := flow.UpdateWorkflowDefinitionBaseFunc(id, &updating, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, definition)
}

func (h *workflowDefinitionHandler) handleUpdateDefinitionStatus(c *gin.Context) {
	id, ok := bindDefinitionID(c)
	if !ok {
		return
	}

	updating := flow.WorkflowDefinitionStatusUpdating{}
	err := c.ShouldBindBodyWith(&updating, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(updating); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	if err := flow.UpdateDefinitionStatusFunc(id, &updating, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (h *workflowDefinitionHandler) handleDeleteDefinition(c *gin.Context) {
	id, ok := bindDefinitionID(c)
	if !ok {
		return
	}

	if err := flow.DeleteWorkflowDefinitionFunc(id, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (h *workflowDefinitionHandler) handleAddSteps(c *gin.Context) {
	id, ok := bindDefinitionID(c)
	if !ok {
		return
	}

	var creations []flow.StepCreation
	err := c.ShouldBindBodyWith(&creations, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	for _, creation := range creations {
		if err = h.validator.Struct(creation); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
	}

	if err := flow.AddWorkflowStepsFunc(id, creations, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (h *workflowDefinitionHandler) handleAddTransitions(c *gin.Context) {
	id, ok := bindDefinitionID(c)
	if !ok {
		return
	}

	var creations []flow.TransitionCreation
	err := c.ShouldBindBodyWith(&creations, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	for _, creation := range creations {
		if err = h.validator.Struct(creation); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
	}

	if err := flow.AddWorkflowTransitionsFunc(id, creations, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (h *workflowDefinitionHandler) handleDeleteTransitions(c *gin.Context) {
	id, ok := bindDefinitionID(c)
	if !ok {
		return
	}

	var deletions []flow.TransitionDeletion
	err := c.ShouldBindBodyWith(&deletions, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	for _, deletion := range deletions {
		if err = h.validator.Struct(deletion); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
	}

	if err := flow.DeleteWorkflowTransitionsFunc(id, deletions, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}
