package alg

import (
	"github.com/amsen20/reconf/internal/constraint"
	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/model"
)

type injector func(p *Problem, c constraint.SatConstraint) error

func handledWhileBuilding(*Problem, constraint.SatConstraint) error {
	return nil
}

var injectors = map[constraint.Kind]injector{
	constraint.RUNNING:                  handledWhileBuilding,
	constraint.READY:                    handledWhileBuilding,
	constraint.SLEEPING:                 handledWhileBuilding,
	constraint.KILLED:                   handledWhileBuilding,
	constraint.ONLINE:                   handledWhileBuilding,
	constraint.OFFLINE:                  handledWhileBuilding,
	constraint.ROOT:                     handledWhileBuilding,
	constraint.SINGLE_RESOURCE_CAPACITY: handledWhileBuilding,
	constraint.PRESERVE:                 handledWhileBuilding,
	constraint.BAN:                      injectBan,
	constraint.FENCE:                    injectFence,
	constraint.SPREAD:                   injectSpread,
	constraint.MAX_ONLINE:               injectMaxOnline,
	constraint.QUARANTINE:               injectQuarantine,
}

func (p *Problem) injectConstraints() error {
	for _, c := range p.cstrs {
		inject, ok := injectors[c.Kind()]
		if !ok {
			return configErrorf("unsupported constraint %s", c.Name())
		}
		if err := inject(p, c); err != nil {
			return err
		}
	}
	return nil
}

// hosters returns the d-slice hosters of the VMs running at the end.
func (p *Problem) hosters(vms []model.VMID) []*Transition {
	var ts []*Transition
	for _, vm := range vms {
		if t := p.VMTransition(vm); t != nil && t.dSlice != nil {
			ts = append(ts, t)
		}
	}
	return ts
}

func injectBan(p *Problem, c constraint.SatConstraint) error {
	for _, t := range p.hosters(c.InvolvedVMs()) {
		for _, n := range c.InvolvedNodes() {
			if b, ok := p.nodeIdx[n]; ok {
				if err := t.dSlice.hoster.RemoveValue(b); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func injectFence(p *Problem, c constraint.SatConstraint) error {
	allowed := make(map[int]bool)
	for _, n := range c.InvolvedNodes() {
		if b, ok := p.nodeIdx[n]; ok {
			allowed[b] = true
		}
	}
	for _, t := range p.hosters(c.InvolvedVMs()) {
		for b := range p.nodes {
			if allowed[b] {
				continue
			}
			if err := t.dSlice.hoster.RemoveValue(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// injectSpread forbids two VMs on the same node at the end. When
// continuous, a VM only arrives on the node of another one once it left.
func injectSpread(p *Problem, c constraint.SatConstraint) error {
	ts := p.hosters(c.InvolvedVMs())
	if len(ts) < 2 {
		return nil
	}
	vars := make([]*cp.IntVar, len(ts))
	for i, t := range ts {
		vars[i] = t.dSlice.hoster
	}
	p.solver.Post(cp.AllDifferent(vars))

	if !c.IsContinuous() {
		return nil
	}
	for _, arriving := range ts {
		for _, leaving := range ts {
			if arriving == leaving || leaving.cSlice == nil {
				continue
			}
			p.solver.Post(&arriveAfterLeave{arriving: arriving, leaving: leaving})
		}
	}
	return nil
}

type arriveAfterLeave struct {
	arriving *Transition
	leaving  *Transition
}

func (a *arriveAfterLeave) Vars() []*cp.IntVar {
	return []*cp.IntVar{a.arriving.dSlice.hoster, a.arriving.dSlice.start, a.leaving.cSlice.end}
}

func (a *arriveAfterLeave) Propagate() error {
	h := a.arriving.dSlice.hoster
	src := a.leaving.cSlice.hoster.Value()
	if !h.IsInstantiated() || h.Value() != src {
		return nil
	}
	if cs := a.arriving.cSlice; cs != nil && cs.hoster.Value() == src {
		// already there
		return nil
	}
	start, end := a.arriving.dSlice.start, a.leaving.cSlice.end
	if err := start.UpdateLB(end.LB()); err != nil {
		return err
	}
	return end.UpdateUB(start.UB())
}

func injectMaxOnline(p *Problem, c constraint.SatConstraint) error {
	mo := c.(*constraint.MaxOnline)
	var states []*cp.IntVar
	for _, n := range mo.InvolvedNodes() {
		if t := p.NodeTransition(n); t != nil {
			states = append(states, t.state)
		}
	}
	if len(states) == 0 {
		return nil
	}
	if mo.Amount < 0 {
		return cp.ErrContradiction
	}
	count := p.solver.NewIntVar("maxOnline", 0, mo.Amount)
	p.solver.Post(cp.Sum(states, count))
	return nil
}

// injectQuarantine pins the VMs of the quarantined nodes on their host and
// bans every other VM from these nodes.
func injectQuarantine(p *Problem, c constraint.SatConstraint) error {
	zone := make(map[int]bool)
	for _, n := range c.InvolvedNodes() {
		if b, ok := p.nodeIdx[n]; ok {
			zone[b] = true
		}
	}
	if len(zone) == 0 {
		return nil
	}
	for _, t := range p.VMTransitions() {
		if t.dSlice == nil {
			continue
		}
		if t.hasNode && zone[p.nodeIdx[t.node]] {
			if err := t.dSlice.hoster.InstantiateTo(p.nodeIdx[t.node]); err != nil {
				return err
			}
			continue
		}
		for b := range zone {
			if err := t.dSlice.hoster.RemoveValue(b); err != nil {
				return err
			}
		}
	}
	return nil
}
