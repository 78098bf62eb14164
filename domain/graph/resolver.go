package graph

import (
	"conveyor/bizerror"
	"conveyor/domain"

	"github.com/fundwit/go-commons/types"
)

// Evaluator is the pluggable strategy for the expression language used by
// EXPRESSION conditions and DYNAMIC assignees. The engine does not define the
// language; deployments inject an implementation.
type Evaluator interface {
	EvaluateCondition(expression string, data domain.ContextData) (bool, error)
	EvaluateAssignee(expression string, data domain.ContextData) (types.ID, error)
}

// UnsupportedEvaluator refuses every expression. It is the default: no
// expression grammar is guessed on behalf of the deployment.
type UnsupportedEvaluator struct {
}

func (e UnsupportedEvaluator) EvaluateCondition(expression string, data domain.ContextData) (bool, error) {
	return false, bizerror.ErrExpressionNotSupported
}

func (e UnsupportedEvaluator) EvaluateAssignee(expression string, data domain.ContextData) (types.ID, error) {
	return 0, bizerror.ErrExpressionNotSupported
}

// Resolve picks the transition out of a step for a submitted action.
// Priority: a condition exactly matching the action, then ALWAYS, then
// EXPRESSION edges evaluated against the instance context, each group walked
// in the stable edge order.
//
// A step with no outgoing edges resolves to nil with no error: the caller
// decides how to surface the stalled instance. Edges that exist but all fail
// to match resolve loudly with ErrNoMatchingTransition; there is deliberately
// no fallback to the first defined edge, which would silently route e.g. a
// REJECTED action down an unrelated edge.
func Resolve(outgoing []domain.WorkflowTransition, action domain.TaskAction, data domain.ContextData, evaluator Evaluator) (*domain.WorkflowTransition, error) {
	if len(outgoing) == 0 {
		return nil, nil
	}

	for i := range outgoing {
		t := outgoing[i]
		if (t.ConditionType == domain.ConditionApproved && action == domain.ActionApproved) ||
			(t.ConditionType == domain.ConditionRejected && action == domain.ActionRejected) {
			return &t, nil
		}
	}
	for i := range outgoing {
		t := outgoing[i]
		if t.ConditionType == domain.ConditionAlways {
			return &t, nil
		}
	}
	for i := range outgoing {
		t := outgoing[i]
		if t.ConditionType == domain.ConditionExpression {
			matched, err := evaluator.EvaluateCondition(t.Condition, data)
			if err != nil {
				return nil, err
			}
			if matched {
				return &t, nil
			}
		}
	}
	return nil, bizerror.ErrNoMatchingTransition
}
