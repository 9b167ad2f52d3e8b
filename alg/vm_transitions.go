package alg

import (
	"fmt"

	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/model"
)

func (p *Problem) newVMTransition(kind TransitionKind, vm model.VMID) *Transition {
	t := &Transition{kind: kind, order: p.nextOrder, vm: vm}
	p.nextOrder++
	if host, ok := p.src.Mapping().VMLocation(vm); ok {
		t.node, t.hasNode = host, true
	}
	return t
}

func (p *Problem) varName(t *Transition, suffix string) string {
	return fmt.Sprintf("%s(%s).%s", t.kind, t.vm, suffix)
}

func (p *Problem) stay(t *Transition) {
	t.start, t.end, t.duration = p.zero, p.zero, p.zero
}

// currentHost is the constant hoster of a c-slice.
func (p *Problem) currentHost(t *Transition) *cp.IntVar {
	return p.solver.NewConst(p.varName(t, "cHost"), p.nodeIdx[t.node])
}

// demandingSlice allocates a d-slice starting at start on a free hoster.
func (p *Problem) demandingSlice(t *Transition, start *cp.IntVar, hoster *cp.IntVar) *Slice {
	dur := p.timeVar(p.varName(t, "dDuration"))
	p.solver.Post(cp.Plus(start, dur, p.horizonEnd))
	return &Slice{subject: t.vm, start: start, end: p.horizonEnd, duration: dur, hoster: hoster}
}

// consumingSlice allocates a c-slice on the current host ending at end.
func (p *Problem) consumingSlice(t *Transition, end *cp.IntVar) *Slice {
	return &Slice{subject: t.vm, start: p.zero, end: end, duration: end, hoster: p.currentHost(t)}
}

// timedAction allocates start and end with a fixed duration d.
func (p *Problem) timedAction(t *Transition, d int) {
	t.start = p.solver.NewIntVar(p.varName(t, "start"), 0, p.horizon-d)
	t.end = p.timeVar(p.varName(t, "end"))
	t.duration = p.solver.NewConst(p.varName(t, "duration"), d)
	p.solver.Post(cp.OffsetEq(t.start, d, t.end))
}

func newStayRunning(p *Problem, vm model.VMID) *Transition {
	t := p.newVMTransition(StayRunning, vm)
	p.stay(t)
	hoster := p.currentHost(t)
	t.cSlice = &Slice{subject: vm, start: p.zero, end: p.zero, duration: p.zero, hoster: hoster}
	t.dSlice = &Slice{subject: vm, start: p.zero, end: p.horizonEnd, duration: p.horizonEnd, hoster: hoster}
	return t
}

func newStayReady(p *Problem, vm model.VMID) *Transition {
	t := p.newVMTransition(StayReady, vm)
	p.stay(t)
	return t
}

func newStaySleeping(p *Problem, vm model.VMID) *Transition {
	t := p.newVMTransition(StaySleeping, vm)
	p.stay(t)
	return t
}

// newRelocate lets a running VM stay or migrate. The migration lasts d when
// the VM moves, nothing happens otherwise.
func newRelocate(p *Problem, vm model.VMID, d int) *Transition {
	s := p.solver
	t := p.newVMTransition(Relocate, vm)

	cEnd := p.timeVar(p.varName(t, "cEnd"))
	t.cSlice = p.consumingSlice(t, cEnd)

	dStart := p.timeVar(p.varName(t, "dStart"))
	t.dSlice = p.demandingSlice(t, dStart, p.hosterVar(p.varName(t, "dHost")))

	move := s.NewBoolVar(p.varName(t, "move"))
	s.Post(cp.ReifNotEqual(t.dSlice.hoster, p.nodeIdx[t.node], move))
	dur := s.NewIntVar(p.varName(t, "duration"), 0, d)
	s.Post(cp.Scale(move, d, dur))
	s.Post(cp.Plus(dStart, dur, cEnd))
	s.Post(cp.ZeroUnless(move, dStart))

	t.start, t.end, t.duration, t.state = dStart, cEnd, dur, move
	return t
}

// arrival is shared by boot and resume: the d-slice starts with the action.
func arrival(p *Problem, kind TransitionKind, vm model.VMID, d int) *Transition {
	t := p.newVMTransition(kind, vm)
	p.timedAction(t, d)
	t.dSlice = p.demandingSlice(t, t.start, p.hosterVar(p.varName(t, "dHost")))
	return t
}

func newBootVM(p *Problem, vm model.VMID, d int) *Transition {
	return arrival(p, BootVMTransition, vm, d)
}

func newResumeVM(p *Problem, vm model.VMID, d int) *Transition {
	return arrival(p, ResumeVMTransition, vm, d)
}

// departure is shared by shutdown and suspend: the c-slice ends with the
// action.
func departure(p *Problem, kind TransitionKind, vm model.VMID, d int) *Transition {
	t := p.newVMTransition(kind, vm)
	p.timedAction(t, d)
	t.cSlice = p.consumingSlice(t, t.end)
	return t
}

func newShutdownVM(p *Problem, vm model.VMID, d int) *Transition {
	return departure(p, ShutdownVMTransition, vm, d)
}

func newSuspendVM(p *Problem, vm model.VMID, d int) *Transition {
	return departure(p, SuspendVMTransition, vm, d)
}

// newKillVM releases the resources of a running VM at the end of the action.
func newKillVM(p *Problem, vm model.VMID, d int) *Transition {
	if p.src.Mapping().IsRunning(vm) {
		return departure(p, KillVMTransition, vm, d)
	}
	t := p.newVMTransition(KillVMTransition, vm)
	p.timedAction(t, d)
	return t
}

func newForgeVM(p *Problem, vm model.VMID, d int) *Transition {
	t := p.newVMTransition(ForgeVMTransition, vm)
	p.timedAction(t, d)
	return t
}
