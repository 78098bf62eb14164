package flow

import (
	"conveyor/domain"

	"github.com/fundwit/go-commons/types"
)

type WorkflowDefinitionCreation struct {
	Code     string                  `json:"code"     binding:"required"`
	Name     string                  `json:"name"     binding:"required"`
	Category domain.WorkflowCategory `json:"category" binding:"required"`

	TriggerType   domain.TriggerType `json:"triggerType"`
	TriggerConfig string             `json:"triggerConfig"`

	Steps       []StepCreation       `json:"steps"       binding:"dive"`
	Transitions []TransitionCreation `json:"transitions" binding:"dive"`
}

type WorkflowDefinitionBaseUpdation struct {
	Name          string             `json:"name" binding:"required"`
	TriggerType   domain.TriggerType `json:"triggerType"`
	TriggerConfig string             `json:"triggerConfig"`
}

type WorkflowDefinitionStatusUpdating struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

type StepCreation struct {
	Code string          `json:"code" binding:"required"`
	Name string          `json:"name" binding:"required"`
	Type domain.StepType `json:"type" binding:"required,oneof=START APPROVAL TASK DECISION NOTIFICATION END"`

	AssigneeType       domain.AssigneeType `json:"assigneeType" binding:"omitempty,oneof=USER ROLE DEPARTMENT DYNAMIC"`
	AssigneeID         types.ID            `json:"assigneeId"`
	AssigneeExpression string              `json:"assigneeExpression"`

	SlaHours         int      `json:"slaHours"`
	EscalationUserID types.ID `json:"escalationUserId"`

	Config     string `json:"config"`
	IsRequired bool   `json:"isRequired"`
}

// TransitionCreation references steps by code: on creation the step ids are
// not yet known to the caller.
type TransitionCreation struct {
	FromStepCode string `json:"fromStepCode" binding:"required"`
	ToStepCode   string `json:"toStepCode"   binding:"required"`

	ConditionType domain.ConditionType `json:"conditionType" binding:"omitempty,oneof=ALWAYS APPROVED REJECTED EXPRESSION"`
	Condition     string               `json:"condition"`
	Label         string               `json:"label"`
}

type TransitionDeletion struct {
	FromStepCode string `json:"fromStepCode" binding:"required"`
	ToStepCode   string `json:"toStepCode"   binding:"required"`
}
