package graph_test

import (
	"conveyor/bizerror"
	"conveyor/domain"
	"conveyor/domain/graph"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Graph", func() {
	var (
		start, approval, end domain.WorkflowStep
	)

	BeforeEach(func() {
		start = domain.WorkflowStep{ID: 1, Code: "start", Type: domain.StepStart, Sequence: 10001}
		approval = domain.WorkflowStep{ID: 2, Code: "manager-approval", Type: domain.StepApproval, Sequence: 10002}
		end = domain.WorkflowStep{ID: 3, Code: "end", Type: domain.StepEnd, Sequence: 10003}
	})

	Describe("NewGraph", func() {
		It("should index steps and keep outgoing edges in sequence order", func() {
			g := graph.NewGraph(
				[]domain.WorkflowStep{start, approval, end},
				[]domain.WorkflowTransition{
					{ID: 102, FromStepID: 2, ToStepID: 3, ConditionType: domain.ConditionApproved, Sequence: 10002},
					{ID: 101, FromStepID: 2, ToStepID: 3, ConditionType: domain.ConditionRejected, Sequence: 10001},
					{ID: 100, FromStepID: 1, ToStepID: 2, ConditionType: domain.ConditionAlways, Sequence: 10001},
				})

			Expect(len(g.Steps)).To(Equal(3))
			found, ok := g.FindStep(2)
			Expect(ok).To(BeTrue())
			Expect(found.Code).To(Equal("manager-approval"))

			edges := g.OutgoingTransitions(2)
			Expect(len(edges)).To(Equal(2))
			Expect(edges[0].ConditionType).To(Equal(domain.ConditionRejected))
			Expect(edges[1].ConditionType).To(Equal(domain.ConditionApproved))
		})
	})

	Describe("FindStart", func() {
		It("should return the unique START step", func() {
			g := graph.NewGraph([]domain.WorkflowStep{start, approval, end}, nil)
			s, found := g.FindStart()
			Expect(found).To(BeTrue())
			Expect(s.ID).To(Equal(start.ID))
		})

		It("should report absence and ambiguity as not found", func() {
			g := graph.NewGraph([]domain.WorkflowStep{approval, end}, nil)
			_, found := g.FindStart()
			Expect(found).To(BeFalse())

			secondStart := domain.WorkflowStep{ID: 4, Code: "start2", Type: domain.StepStart}
			g = graph.NewGraph([]domain.WorkflowStep{start, secondStart, end}, nil)
			_, found = g.FindStart()
			Expect(found).To(BeFalse())
		})
	})

	Describe("Validate", func() {
		It("should accept a well formed graph with a rework cycle", func() {
			task := domain.WorkflowStep{ID: 5, Code: "fix", Type: domain.StepTask}
			g := graph.NewGraph(
				[]domain.WorkflowStep{start, approval, task, end},
				[]domain.WorkflowTransition{
					{ID: 100, FromStepID: 1, ToStepID: 2, ConditionType: domain.ConditionAlways, Sequence: 1},
					{ID: 101, FromStepID: 2, ToStepID: 3, ConditionType: domain.ConditionApproved, Sequence: 2},
					{ID: 102, FromStepID: 2, ToStepID: 5, ConditionType: domain.ConditionRejected, Sequence: 3},
					{ID: 103, FromStepID: 5, ToStepID: 2, ConditionType: domain.ConditionAlways, Sequence: 4},
				})
			Expect(g.Validate()).To(BeNil())
		})

		It("should reject a graph without a unique START", func() {
			g := graph.NewGraph([]domain.WorkflowStep{approval, end}, nil)
			Expect(g.Validate()).To(MatchError(bizerror.ErrInvalidGraph))
		})

		It("should reject a graph without an END", func() {
			g := graph.NewGraph(
				[]domain.WorkflowStep{start, approval},
				[]domain.WorkflowTransition{
					{ID: 100, FromStepID: 1, ToStepID: 2, ConditionType: domain.ConditionAlways, Sequence: 1},
				})
			Expect(g.Validate()).To(MatchError(bizerror.ErrInvalidGraph))
		})

		It("should reject incoming edges on START and outgoing edges on END", func() {
			g := graph.NewGraph(
				[]domain.WorkflowStep{start, approval, end},
				[]domain.WorkflowTransition{
					{ID: 100, FromStepID: 1, ToStepID: 2, ConditionType: domain.ConditionAlways, Sequence: 1},
					{ID: 101, FromStepID: 2, ToStepID: 1, ConditionType: domain.ConditionAlways, Sequence: 2},
					{ID: 102, FromStepID: 2, ToStepID: 3, ConditionType: domain.ConditionAlways, Sequence: 3},
				})
			Expect(g.Validate()).To(MatchError(bizerror.ErrInvalidGraph))

			g = graph.NewGraph(
				[]domain.WorkflowStep{start, approval, end},
				[]domain.WorkflowTransition{
					{ID: 100, FromStepID: 1, ToStepID: 3, ConditionType: domain.ConditionAlways, Sequence: 1},
					{ID: 101, FromStepID: 3, ToStepID: 2, ConditionType: domain.ConditionAlways, Sequence: 2},
				})
			Expect(g.Validate()).To(MatchError(bizerror.ErrInvalidGraph))
		})

		It("should reject edges pointing at unknown steps", func() {
			g := graph.NewGraph(
				[]domain.WorkflowStep{start, approval, end},
				[]domain.WorkflowTransition{
					{ID: 100, FromStepID: 1, ToStepID: 2, ConditionType: domain.ConditionAlways, Sequence: 1},
					{ID: 101, FromStepID: 2, ToStepID: 99, ConditionType: domain.ConditionAlways, Sequence: 2},
				})
			Expect(g.Validate()).To(MatchError(bizerror.ErrInvalidGraph))
		})

		It("should reject steps unreachable from START", func() {
			orphan := domain.WorkflowStep{ID: 6, Code: "orphan", Type: domain.StepTask}
			g := graph.NewGraph(
				[]domain.WorkflowStep{start, approval, orphan, end},
				[]domain.WorkflowTransition{
					{ID: 100, FromStepID: 1, ToStepID: 2, ConditionType: domain.ConditionAlways, Sequence: 1},
					{ID: 101, FromStepID: 2, ToStepID: 3, ConditionType: domain.ConditionAlways, Sequence: 2},
				})
			Expect(g.Validate()).To(MatchError(bizerror.ErrInvalidGraph))
		})
	})
})
