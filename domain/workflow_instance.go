package domain

import (
	"conveyor/common"

	"github.com/fundwit/go-commons/types"
)

type InstanceStatus string

const (
	InstanceInProgress InstanceStatus = "IN_PROGRESS"
	InstanceCompleted  InstanceStatus = "COMPLETED"
	InstanceCancelled  InstanceStatus = "CANCELLED"
	InstanceRejected   InstanceStatus = "REJECTED"
)

func (s InstanceStatus) IsTerminal() bool {
	return s == InstanceCompleted || s == InstanceCancelled || s == InstanceRejected
}

type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskCancelled TaskStatus = "CANCELLED"
)

type TaskAction string

const (
	ActionApproved  TaskAction = "APPROVED"
	ActionRejected  TaskAction = "REJECTED"
	ActionCompleted TaskAction = "COMPLETED"
	ActionDelegated TaskAction = "DELEGATED"
)

// WorkflowInstance is one execution of a definition, bound to a business
// entity. It is created IN_PROGRESS and becomes terminal exactly once.
type WorkflowInstance struct {
	ID       types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TenantID types.ID `json:"tenantId"`

	DefinitionID types.ID       `json:"definitionId"`
	Code         string         `json:"code"`
	Status       InstanceStatus `json:"status"`

	// CurrentStepID is zero only before the first task opens or when the
	// instance stalled with no resolvable transition.
	CurrentStepID types.ID `json:"currentStepId"`

	EntityType string   `json:"entityType"`
	EntityID   types.ID `json:"entityId"`

	Data ContextData `json:"data" sql:"type:TEXT"`

	StartedBy types.ID         `json:"startedBy"`
	StartTime common.Timestamp `json:"startTime" sql:"type:DATETIME(6) NOT NULL"`
	EndTime   common.Timestamp `json:"endTime" sql:"type:DATETIME(6)"`

	CancelledBy  types.ID         `json:"cancelledBy"`
	CancelTime   common.Timestamp `json:"cancelTime" sql:"type:DATETIME(6)"`
	CancelReason string           `json:"cancelReason"`
}

// WorkflowStepHistory records one visit to one step within one instance.
// An open row (status PENDING) is the inbox item a human actor sees; a closed
// row is the permanent audit record of the visit.
type WorkflowStepHistory struct {
	ID       types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TenantID types.ID `json:"tenantId"`

	InstanceID types.ID `json:"instanceId"`
	StepID     types.ID `json:"stepId"`
	StepCode   string   `json:"stepCode"`
	StepName   string   `json:"stepName"`
	StepType   StepType `json:"stepType"`

	Status TaskStatus `json:"status"`
	Action TaskAction `json:"action"`

	AssignedTo types.ID         `json:"assignedTo"`
	DueTime    common.Timestamp `json:"dueTime" sql:"type:DATETIME(6)"`

	CompletedBy  types.ID         `json:"completedBy"`
	CompleteTime common.Timestamp `json:"completeTime" sql:"type:DATETIME(6)"`
	Comments     string           `json:"comments" sql:"type:TEXT"`

	Data ContextData `json:"data" sql:"type:TEXT"`

	BeginTime common.Timestamp `json:"beginTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (h *WorkflowStepHistory) TableName() string {
	return "workflow_step_histories"
}

// InstanceCodeRecord allocates human readable per-tenant sequential codes.
type InstanceCodeRecord struct {
	TenantID types.ID `json:"tenantId" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	NextNum  int      `json:"nextNum"`
}

type WorkflowInstanceDetail struct {
	WorkflowInstance

	Histories []WorkflowStepHistory `json:"histories"`
}

type WorkflowInstanceQuery struct {
	DefinitionID types.ID       `json:"definitionId" form:"definitionId"`
	Status       InstanceStatus `json:"status" form:"status"`
	EntityType   string         `json:"entityType" form:"entityType"`
	EntityID     types.ID       `json:"entityId" form:"entityId"`
}
