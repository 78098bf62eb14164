package domain

import (
	"conveyor/common"

	"github.com/fundwit/go-commons/types"
)

type WorkflowCategory string

const (
	CategoryPurchase   WorkflowCategory = "PURCHASE"
	CategoryPayment    WorkflowCategory = "PAYMENT"
	CategoryHR         WorkflowCategory = "HR"
	CategoryProduction WorkflowCategory = "PRODUCTION"
	CategorySales      WorkflowCategory = "SALES"
	CategoryGeneral    WorkflowCategory = "GENERAL"
)

type TriggerType string

const (
	TriggerManual    TriggerType = "MANUAL"
	TriggerAutomatic TriggerType = "AUTOMATIC"
	TriggerScheduled TriggerType = "SCHEDULED"
)

type StepType string

const (
	StepStart        StepType = "START"
	StepApproval     StepType = "APPROVAL"
	StepTask         StepType = "TASK"
	StepDecision     StepType = "DECISION"
	StepNotification StepType = "NOTIFICATION"
	StepEnd          StepType = "END"
)

type AssigneeType string

const (
	AssigneeUser       AssigneeType = "USER"
	AssigneeRole       AssigneeType = "ROLE"
	AssigneeDepartment AssigneeType = "DEPARTMENT"
	AssigneeDynamic    AssigneeType = "DYNAMIC"
)

type ConditionType string

const (
	ConditionAlways     ConditionType = "ALWAYS"
	ConditionApproved   ConditionType = "APPROVED"
	ConditionRejected   ConditionType = "REJECTED"
	ConditionExpression ConditionType = "EXPRESSION"
)

// WorkflowDefinition is a reusable process template owning an ordered set of
// steps and a set of conditionally guarded transitions between them.
type WorkflowDefinition struct {
	ID       types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TenantID types.ID `json:"tenantId"`

	Code     string           `json:"code"`
	Name     string           `json:"name"`
	Category WorkflowCategory `json:"category"`

	TriggerType   TriggerType `json:"triggerType"`
	TriggerConfig string      `json:"triggerConfig" sql:"type:TEXT"`

	IsActive   bool             `json:"isActive"`
	CreateTime common.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

// WorkflowStep is a node in the definition graph. Its type determines which
// actions are valid against it.
type WorkflowStep struct {
	ID           types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DefinitionID types.ID `json:"definitionId"`

	Code string   `json:"code"`
	Name string   `json:"name"`
	Type StepType `json:"type"`

	AssigneeType       AssigneeType `json:"assigneeType"`
	AssigneeID         types.ID     `json:"assigneeId"`
	AssigneeExpression string       `json:"assigneeExpression"`

	SlaHours         int      `json:"slaHours"`
	EscalationUserID types.ID `json:"escalationUserId"`

	Config     string `json:"config" sql:"type:TEXT"`
	IsRequired bool   `json:"isRequired"`

	// Sequence keeps a stable, explicit step order within a definition.
	Sequence   int              `json:"sequence"`
	CreateTime common.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

// WorkflowTransition is a directed edge between two steps of one definition.
// Sequence fixes the resolution order among edges leaving the same step.
type WorkflowTransition struct {
	ID           types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DefinitionID types.ID `json:"definitionId"`

	FromStepID types.ID `json:"fromStepId"`
	ToStepID   types.ID `json:"toStepId"`

	ConditionType ConditionType `json:"conditionType"`
	Condition     string        `json:"condition" sql:"type:TEXT"`
	Label         string        `json:"label"`

	Sequence   int              `json:"sequence"`
	CreateTime common.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type WorkflowDefinitionDetail struct {
	WorkflowDefinition

	Steps       []WorkflowStep       `json:"steps"`
	Transitions []WorkflowTransition `json:"transitions"`
}

type WorkflowDefinitionQuery struct {
	Name     string           `json:"name" form:"name"`
	Category WorkflowCategory `json:"category" form:"category"`
}
