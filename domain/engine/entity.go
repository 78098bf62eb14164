package engine

import (
	"conveyor/domain"

	"github.com/fundwit/go-commons/types"
)

type InstanceCreation struct {
	DefinitionID types.ID `json:"definitionId" binding:"required"`

	EntityType string   `json:"entityType"`
	EntityID   types.ID `json:"entityId"`

	Data domain.ContextData `json:"data"`
}

// TaskActionRequest is the generic advance request carrying an explicit action.
type TaskActionRequest struct {
	Action   domain.TaskAction `json:"action" binding:"required,oneof=APPROVED REJECTED COMPLETED DELEGATED"`
	Comments string            `json:"comments"`

	DelegateTo types.ID           `json:"delegateTo"`
	Data       domain.ContextData `json:"data"`
}

type ApprovalRequest struct {
	Comments string             `json:"comments"`
	Data     domain.ContextData `json:"data"`
}

type RejectionRequest struct {
	Reason string             `json:"reason" binding:"required"`
	Data   domain.ContextData `json:"data"`
}

type DelegationRequest struct {
	ToUserID types.ID `json:"toUserId" binding:"required"`
	Comments string   `json:"comments"`
}

type CompletionRequest struct {
	Comments string             `json:"comments"`
	Data     domain.ContextData `json:"data"`
}

type CancellationRequest struct {
	Reason string `json:"reason"`
}
