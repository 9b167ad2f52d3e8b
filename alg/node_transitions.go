package alg

import (
	"fmt"

	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/model"
)

func (p *Problem) newNodeTransition(kind TransitionKind, n model.NodeID) *Transition {
	t := &Transition{kind: kind, order: p.nextOrder, node: n, hasNode: true}
	p.nextOrder++
	return t
}

func nodeVarName(t *Transition, suffix string) string {
	return fmt.Sprintf("%s(%s).%s", t.kind, t.node, suffix)
}

// nodeAction allocates the timing of an optional node action lasting d
// when active is 1, starting at 0 otherwise.
func (p *Problem) nodeAction(t *Transition, active *cp.IntVar, d int) {
	s := p.solver
	t.start = p.timeVar(nodeVarName(t, "start"))
	t.end = p.timeVar(nodeVarName(t, "end"))
	t.duration = s.NewIntVar(nodeVarName(t, "duration"), 0, d)
	s.Post(cp.Scale(active, d, t.duration))
	s.Post(cp.Plus(t.start, t.duration, t.end))
	s.Post(cp.ZeroUnless(active, t.start))
}

// newShutdownableNode keeps an online node online or shuts it down.
func newShutdownableNode(p *Problem, n model.NodeID, d int) *Transition {
	s := p.solver
	t := p.newNodeTransition(ShutdownableNode, n)
	t.state = s.NewBoolVar(nodeVarName(t, "state"))
	off := s.NewBoolVar(nodeVarName(t, "off"))
	s.Post(cp.Plus(t.state, off, p.one))
	p.nodeAction(t, off, d)
	return t
}

// newBootableNode keeps an offline node offline or boots it.
func newBootableNode(p *Problem, n model.NodeID, d int) *Transition {
	t := p.newNodeTransition(BootableNode, n)
	t.state = p.solver.NewBoolVar(nodeVarName(t, "state"))
	p.nodeAction(t, t.state, d)
	return t
}

// nodeLink ties a node transition to the slices around the node: a node
// hosting a d-slice is online, the d-slices on a booting node start once it
// booted, and what leaves a node going offline is done before the shutdown
// starts.
type nodeLink struct {
	idx        int
	t          *Transition
	hosters    []*cp.IntVar
	dStarts    []*cp.IntVar
	departures []*cp.IntVar
}

func (l *nodeLink) Vars() []*cp.IntVar {
	vars := []*cp.IntVar{l.t.state, l.t.start, l.t.end}
	vars = append(vars, l.hosters...)
	vars = append(vars, l.dStarts...)
	return append(vars, l.departures...)
}

func (l *nodeLink) Propagate() error {
	state := l.t.state
	for i, h := range l.hosters {
		if !h.IsInstantiated() || h.Value() != l.idx {
			continue
		}
		if err := state.InstantiateTo(1); err != nil {
			return err
		}
		if l.t.kind == BootableNode {
			if err := l.dStarts[i].UpdateLB(l.t.end.LB()); err != nil {
				return err
			}
			if err := l.t.end.UpdateUB(l.dStarts[i].UB()); err != nil {
				return err
			}
		}
	}

	if state.UB() != 0 {
		return nil
	}
	for _, h := range l.hosters {
		if err := h.RemoveValue(l.idx); err != nil {
			return err
		}
	}
	if l.t.kind == ShutdownableNode {
		for _, dep := range l.departures {
			if err := dep.UpdateUB(l.t.start.UB()); err != nil {
				return err
			}
			if err := l.t.start.UpdateLB(dep.LB()); err != nil {
				return err
			}
		}
	}
	return nil
}
