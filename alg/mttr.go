package alg

import (
	"github.com/amsen20/reconf/internal/cp"
)

// Objective installs the cost variable and the search strategy of a problem.
type Objective interface {
	Name() string
	Inject(p *Problem) error
}

// MinMTTR minimises the sum of the end dates of every action.
type MinMTTR struct {
	cost     *cp.IntVar
	costCstr cp.Propagator
	posted   bool
	sequence *cp.Sequence
}

func NewMinMTTR() *MinMTTR {
	return &MinMTTR{}
}

func (m *MinMTTR) Name() string {
	return "MinMTTR"
}

func (m *MinMTTR) Cost() *cp.IntVar {
	return m.cost
}

// Phase returns the name of the search phase in use.
func (m *MinMTTR) Phase() string {
	if m.sequence == nil {
		return ""
	}
	return m.sequence.Current()
}

func (m *MinMTTR) Inject(p *Problem) error {
	s := p.solver
	transitions := p.Transitions()

	ends := make([]*cp.IntVar, 0, len(transitions))
	for _, t := range transitions {
		ends = append(ends, t.end)
	}
	m.cost = s.NewIntVar("globalCost", 0, p.horizon*len(ends))
	m.costCstr = cp.Sum(ends, m.cost)
	s.SetObjective(m.cost)

	var (
		states     []*cp.IntVar
		bootStarts []*cp.IntVar
		downStarts []*cp.IntVar
		keep       = make(map[int]int)
	)
	for _, t := range p.NodeTransitions() {
		states = append(states, t.state)
		if t.kind == BootableNode {
			keep[t.state.ID()] = 0
			bootStarts = append(bootStarts, t.start)
		} else {
			keep[t.state.ID()] = 1
			downStarts = append(downStarts, t.start)
		}
	}
	keepState := cp.ValueFunc(func(v *cp.IntVar) int {
		if want := keep[v.ID()]; v.Contains(want) {
			return want
		}
		return v.LB()
	})

	scheduling := newStableNodeFirst(p)
	m.sequence = s.NewSequence(
		cp.Phase{Name: "placement", Strategy: newWorstFit(p)},
		cp.Phase{Name: "nodeStates", Strategy: &cp.IntStrategy{Vars: states, Var: s.InputOrder(), Value: keepState}},
		cp.Phase{Name: "nodeBoots", Strategy: &cp.IntStrategy{Vars: bootStarts, Var: cp.SmallestLB, Value: cp.MinValue}},
		cp.Phase{Name: "barrier", OnEnter: scheduling.invalidate},
		cp.Phase{Name: "vmScheduling", Strategy: scheduling, OnEnter: m.postCostConstraint(s)},
		cp.Phase{Name: "nodeShutdowns", Strategy: &cp.IntStrategy{Vars: downStarts, Var: cp.SmallestLB, Value: cp.MinValue}},
		cp.Phase{Name: "cost", Strategy: &cp.IntStrategy{Vars: []*cp.IntVar{p.end, m.cost}, Var: s.InputOrder(), Value: cp.MinValue}},
	)
	s.SetStrategy(m.sequence)

	params := p.params
	if params.Restarts && len(p.vms) > 0 {
		s.SetRestarts(cp.NewGeometricRestarts(2*len(p.vms), 1.5, params.MaxRestarts))
	}
	return nil
}

// postCostConstraint links the cost to the ends the first time the VM
// scheduling starts. The constraint stays posted afterwards.
func (m *MinMTTR) postCostConstraint(s *cp.Solver) func() {
	return func() {
		if m.posted {
			return
		}
		m.posted = true
		s.PostLazy(m.costCstr)
	}
}
