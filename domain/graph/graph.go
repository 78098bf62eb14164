package graph

import (
	"fmt"
	"sort"

	"conveyor/bizerror"
	"conveyor/domain"

	"github.com/fundwit/go-commons/types"
)

// Graph is a stateless view of one definition: an arena of steps indexed by id
// plus an ordered adjacency list of transitions. Cycles are legal (rework
// loops); the structure is never a tree.
type Graph struct {
	Steps    map[types.ID]domain.WorkflowStep
	Outgoing map[types.ID][]domain.WorkflowTransition
	Incoming map[types.ID]int
}

func NewGraph(steps []domain.WorkflowStep, transitions []domain.WorkflowTransition) *Graph {
	g := &Graph{
		Steps:    map[types.ID]domain.WorkflowStep{},
		Outgoing: map[types.ID][]domain.WorkflowTransition{},
		Incoming: map[types.ID]int{},
	}
	for _, s := range steps {
		g.Steps[s.ID] = s
	}
	for _, t := range transitions {
		g.Outgoing[t.FromStepID] = append(g.Outgoing[t.FromStepID], t)
		g.Incoming[t.ToStepID] = g.Incoming[t.ToStepID] + 1
	}
	for stepID := range g.Outgoing {
		edges := g.Outgoing[stepID]
		sort.SliceStable(edges, func(i, j int) bool {
			return edges[i].Sequence < edges[j].Sequence
		})
		g.Outgoing[stepID] = edges
	}
	return g
}

func (g *Graph) FindStep(id types.ID) (domain.WorkflowStep, bool) {
	s, found := g.Steps[id]
	return s, found
}

// FindStart returns the unique START step, or false when absent or ambiguous.
func (g *Graph) FindStart() (domain.WorkflowStep, bool) {
	found := false
	start := domain.WorkflowStep{}
	for _, s := range g.Steps {
		if s.Type == domain.StepStart {
			if found {
				return domain.WorkflowStep{}, false
			}
			start = s
			found = true
		}
	}
	return start, found
}

// OutgoingTransitions returns the edges leaving a step in their stable order.
func (g *Graph) OutgoingTransitions(stepID types.ID) []domain.WorkflowTransition {
	return g.Outgoing[stepID]
}

// Validate enforces the structural invariants of a complete definition graph:
// exactly one START with no incoming edges, at least one END with no outgoing
// edges, every other step reachable from START, and edges pointing at known steps.
func (g *Graph) Validate() error {
	startCount, endCount := 0, 0
	var start domain.WorkflowStep
	for _, s := range g.Steps {
		switch s.Type {
		case domain.StepStart:
			startCount++
			start = s
		case domain.StepEnd:
			endCount++
		}
	}
	if startCount != 1 {
		return fmt.Errorf("%w: expected exactly one START step, found %d", bizerror.ErrInvalidGraph, startCount)
	}
	if endCount == 0 {
		return fmt.Errorf("%w: no END step", bizerror.ErrInvalidGraph)
	}
	if g.Incoming[start.ID] > 0 {
		return fmt.Errorf("%w: START step has incoming transitions", bizerror.ErrInvalidGraph)
	}

	for from, edges := range g.Outgoing {
		if _, found := g.Steps[from]; !found {
			return fmt.Errorf("%w: transition from unknown step %s", bizerror.ErrInvalidGraph, from.String())
		}
		for _, t := range edges {
			if _, found := g.Steps[t.ToStepID]; !found {
				return fmt.Errorf("%w: transition to unknown step %s", bizerror.ErrInvalidGraph, t.ToStepID.String())
			}
			fromStep := g.Steps[from]
			if fromStep.Type == domain.StepEnd {
				return fmt.Errorf("%w: END step has outgoing transitions", bizerror.ErrInvalidGraph)
			}
		}
	}

	reachable := map[types.ID]bool{start.ID: true}
	queue := []types.ID{start.ID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, t := range g.Outgoing[current] {
			if !reachable[t.ToStepID] {
				reachable[t.ToStepID] = true
				queue = append(queue, t.ToStepID)
			}
		}
	}
	for id, s := range g.Steps {
		if !reachable[id] {
			return fmt.Errorf("%w: step %s is not reachable from START", bizerror.ErrInvalidGraph, s.Code)
		}
	}
	return nil
}
