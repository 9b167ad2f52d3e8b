package alg

import (
	"github.com/amsen20/reconf/internal/cp"
)

// stableNodeFirst schedules the VM actions once the placement is known.
// It starts with the arrivals on nodes nothing leaves, as they never wait,
// then the moving VMs, then the staying ones, and finally any start left,
// the smallest lower bound first. Every start is set to its lower bound.
type stableNodeFirst struct {
	p      *Problem
	starts []*cp.IntVar

	valid   bool
	leaves  []int
	ins     [][]*Transition
	moving  []*Transition
	staying []*Transition
}

func newStableNodeFirst(p *Problem) *stableNodeFirst {
	st := &stableNodeFirst{p: p}
	for _, t := range p.VMTransitions() {
		if !t.start.IsInstantiated() {
			st.starts = append(st.starts, t.start)
		}
	}
	return st
}

// invalidate drops the cached placement, it is computed again on the next
// decision.
func (st *stableNodeFirst) invalidate() {
	st.valid = false
}

func (st *stableNodeFirst) cache() {
	nbNodes := len(st.p.nodes)
	st.leaves = make([]int, nbNodes)
	st.ins = make([][]*Transition, nbNodes)
	st.moving = st.moving[:0]
	st.staying = st.staying[:0]

	for _, t := range st.p.VMTransitions() {
		cs, ds := t.cSlice, t.dSlice
		stays := false
		if ds != nil && ds.hoster.IsInstantiated() {
			dst := ds.hoster.Value()
			if cs != nil && cs.hoster.Value() == dst {
				stays = true
				st.staying = append(st.staying, t)
			} else {
				st.ins[dst] = append(st.ins[dst], t)
				if cs != nil {
					st.moving = append(st.moving, t)
				}
			}
		}
		if cs != nil && !stays {
			st.leaves[cs.hoster.Value()]++
		}
	}
	st.valid = true
}

func (st *stableNodeFirst) Next() (cp.Decision, bool) {
	if !st.valid {
		st.cache()
	}

	for n, ins := range st.ins {
		if st.leaves[n] > 0 {
			continue
		}
		for _, t := range ins {
			if !t.start.IsInstantiated() {
				return earliest(t.start), true
			}
		}
	}

	for _, t := range st.moving {
		if !t.start.IsInstantiated() {
			return earliest(t.start), true
		}
	}

	var first *cp.IntVar
	for _, t := range st.staying {
		if !t.start.IsInstantiated() && (first == nil || t.start.LB() < first.LB()) {
			first = t.start
		}
	}
	if first != nil {
		return earliest(first), true
	}

	if v := cp.SmallestLB.Select(st.starts); v != nil {
		return earliest(v), true
	}
	return cp.Decision{}, false
}

func earliest(v *cp.IntVar) cp.Decision {
	return cp.Decision{Var: v, Value: v.LB(), Op: cp.Assign}
}
