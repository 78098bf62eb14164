package engine

import (
	"time"

	"conveyor/common"
	"conveyor/domain"
	"conveyor/domain/graph"

	"github.com/fundwit/go-commons/types"
)

// ActiveEvaluator is the injected expression strategy shared by EXPRESSION
// conditions and DYNAMIC assignees. The default refuses every expression.
var ActiveEvaluator graph.Evaluator = graph.UnsupportedEvaluator{}

// DirectoryLookupFunc resolves ROLE and DEPARTMENT assignees to a concrete
// actor. Directory integration is a deployment concern; the default resolves
// to the configured id itself so the task still lands in an inbox.
var DirectoryLookupFunc = func(assigneeType domain.AssigneeType, assigneeID types.ID, data domain.ContextData) (types.ID, error) {
	return assigneeID, nil
}

// ResolveAssignment computes (assignedTo, dueTime) for a task about to open.
// dueTime is now + slaHours when an SLA is configured, zero otherwise.
// No side effects; called once per opened task.
func ResolveAssignment(step domain.WorkflowStep, now common.Timestamp, data domain.ContextData) (types.ID, common.Timestamp, error) {
	var assignedTo types.ID
	var err error
	switch step.AssigneeType {
	case domain.AssigneeUser:
		assignedTo = step.AssigneeID
	case domain.AssigneeRole, domain.AssigneeDepartment:
		assignedTo, err = DirectoryLookupFunc(step.AssigneeType, step.AssigneeID, data)
	case domain.AssigneeDynamic:
		assignedTo, err = ActiveEvaluator.EvaluateAssignee(step.AssigneeExpression, data)
	default:
		assignedTo = step.AssigneeID
	}
	if err != nil {
		return 0, common.Timestamp{}, err
	}

	dueTime := common.Timestamp{}
	if step.SlaHours > 0 {
		dueTime = common.Timestamp(now.Time().Add(time.Duration(step.SlaHours) * time.Hour))
	}
	return assignedTo, dueTime, nil
}
