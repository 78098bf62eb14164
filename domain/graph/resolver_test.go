package graph_test

import (
	"errors"

	"conveyor/bizerror"
	"conveyor/domain"
	"conveyor/domain/graph"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type scriptedEvaluator struct {
	results map[string]bool
	err     error
}

func (e scriptedEvaluator) EvaluateCondition(expression string, data domain.ContextData) (bool, error) {
	if e.err != nil {
		return false, e.err
	}
	return e.results[expression], nil
}

func (e scriptedEvaluator) EvaluateAssignee(expression string, data domain.ContextData) (types.ID, error) {
	return 0, bizerror.ErrExpressionNotSupported
}

var _ = Describe("Resolve", func() {
	var evaluator graph.Evaluator

	BeforeEach(func() {
		evaluator = graph.UnsupportedEvaluator{}
	})

	It("should resolve to nil without error when the step has no outgoing edges", func() {
		t, err := graph.Resolve(nil, domain.ActionCompleted, nil, evaluator)
		Expect(err).To(BeNil())
		Expect(t).To(BeNil())
	})

	It("should prefer the edge matching the submitted action over ALWAYS", func() {
		outgoing := []domain.WorkflowTransition{
			{ID: 1, ConditionType: domain.ConditionAlways, Sequence: 1},
			{ID: 2, ConditionType: domain.ConditionApproved, Sequence: 2},
			{ID: 3, ConditionType: domain.ConditionRejected, Sequence: 3},
		}

		t, err := graph.Resolve(outgoing, domain.ActionApproved, nil, evaluator)
		Expect(err).To(BeNil())
		Expect(t.ID).To(Equal(types.ID(2)))

		t, err = graph.Resolve(outgoing, domain.ActionRejected, nil, evaluator)
		Expect(err).To(BeNil())
		Expect(t.ID).To(Equal(types.ID(3)))
	})

	It("should fall through to ALWAYS for actions without a matching edge", func() {
		outgoing := []domain.WorkflowTransition{
			{ID: 1, ConditionType: domain.ConditionApproved, Sequence: 1},
			{ID: 2, ConditionType: domain.ConditionAlways, Sequence: 2},
		}
		t, err := graph.Resolve(outgoing, domain.ActionCompleted, nil, evaluator)
		Expect(err).To(BeNil())
		Expect(t.ID).To(Equal(types.ID(2)))
	})

	It("should evaluate EXPRESSION edges in order and pick the first match", func() {
		outgoing := []domain.WorkflowTransition{
			{ID: 1, ConditionType: domain.ConditionExpression, Condition: "amount > 10000", Sequence: 1},
			{ID: 2, ConditionType: domain.ConditionExpression, Condition: "amount > 100", Sequence: 2},
		}
		t, err := graph.Resolve(outgoing, domain.ActionCompleted, domain.ContextData{"amount": 500},
			scriptedEvaluator{results: map[string]bool{"amount > 100": true}})
		Expect(err).To(BeNil())
		Expect(t.ID).To(Equal(types.ID(2)))
	})

	It("should propagate evaluator failures", func() {
		boom := errors.New("bad expression")
		outgoing := []domain.WorkflowTransition{
			{ID: 1, ConditionType: domain.ConditionExpression, Condition: "x", Sequence: 1},
		}
		_, err := graph.Resolve(outgoing, domain.ActionCompleted, nil, scriptedEvaluator{err: boom})
		Expect(err).To(Equal(boom))
	})

	It("should refuse EXPRESSION edges with the default evaluator", func() {
		outgoing := []domain.WorkflowTransition{
			{ID: 1, ConditionType: domain.ConditionExpression, Condition: "x", Sequence: 1},
		}
		_, err := graph.Resolve(outgoing, domain.ActionCompleted, nil, evaluator)
		Expect(err).To(Equal(bizerror.ErrExpressionNotSupported))
	})

	It("should fail loudly when edges exist but none match", func() {
		outgoing := []domain.WorkflowTransition{
			{ID: 1, ConditionType: domain.ConditionApproved, Sequence: 1},
		}
		_, err := graph.Resolve(outgoing, domain.ActionRejected, nil, evaluator)
		Expect(err).To(Equal(bizerror.ErrNoMatchingTransition))
	})
})
