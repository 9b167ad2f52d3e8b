package alg

import (
	"fmt"

	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/plan"
)

type TransitionKind int

const (
	StayRunning TransitionKind = iota
	StayReady
	StaySleeping
	Relocate
	BootVMTransition
	ShutdownVMTransition
	SuspendVMTransition
	ResumeVMTransition
	ForgeVMTransition
	KillVMTransition
	BootableNode
	ShutdownableNode
)

var transitionNames = map[TransitionKind]string{
	StayRunning:          "stayRunning",
	StayReady:            "stayReady",
	StaySleeping:         "staySleeping",
	Relocate:             "relocatable",
	BootVMTransition:     "bootVM",
	ShutdownVMTransition: "shutdownVM",
	SuspendVMTransition:  "suspendVM",
	ResumeVMTransition:   "resumeVM",
	ForgeVMTransition:    "forgeVM",
	KillVMTransition:     "killVM",
	BootableNode:         "bootableNode",
	ShutdownableNode:     "shutdownableNode",
}

func (k TransitionKind) String() string {
	return transitionNames[k]
}

func (k TransitionKind) IsNodeTransition() bool {
	return k == BootableNode || k == ShutdownableNode
}

// Transition models how a VM or a node goes from its current state to its
// next one. Start, End and Duration are always set; slices are nil when the
// element does not use resources in that phase.
type Transition struct {
	kind  TransitionKind
	order int

	vm model.VMID
	// host of the VM in the source model, or the node of a node transition
	node    model.NodeID
	hasNode bool

	start    *cp.IntVar
	end      *cp.IntVar
	duration *cp.IntVar

	cSlice *Slice
	dSlice *Slice

	// Relocate: 1 when the VM moves. Node transitions: 1 when the node is
	// online at the end.
	state *cp.IntVar
}

func (t *Transition) Kind() TransitionKind { return t.kind }
func (t *Transition) VM() model.VMID       { return t.vm }
func (t *Transition) Start() *cp.IntVar    { return t.start }
func (t *Transition) End() *cp.IntVar      { return t.end }
func (t *Transition) Duration() *cp.IntVar { return t.duration }
func (t *Transition) CSlice() *Slice       { return t.cSlice }
func (t *Transition) DSlice() *Slice       { return t.dSlice }
func (t *Transition) State() *cp.IntVar    { return t.state }

// Node returns the current host of a VM, or the node of a node transition.
func (t *Transition) Node() (model.NodeID, bool) {
	return t.node, t.hasNode
}

func (t *Transition) String() string {
	if t.kind.IsNodeTransition() {
		return fmt.Sprintf("%s(%s)", t.kind, t.node)
	}
	return fmt.Sprintf("%s(%s)", t.kind, t.vm)
}

type actionMaker func(p *Problem, t *Transition, sol *cp.Solution) (plan.Action, bool)

func noAction(*Problem, *Transition, *cp.Solution) (plan.Action, bool) {
	return plan.Action{}, false
}

func vmAction(kind plan.ActionKind, node, dst func(p *Problem, t *Transition, sol *cp.Solution) model.NodeID) actionMaker {
	return func(p *Problem, t *Transition, sol *cp.Solution) (plan.Action, bool) {
		a := plan.Action{
			Kind:  kind,
			VM:    t.vm,
			Start: sol.Value(t.start),
			End:   sol.Value(t.end),
		}
		if node != nil {
			a.Node = node(p, t, sol)
		}
		if dst != nil {
			a.Dst = dst(p, t, sol)
		}
		return a, true
	}
}

func sourceNode(_ *Problem, t *Transition, _ *cp.Solution) model.NodeID {
	return t.node
}

func chosenNode(p *Problem, t *Transition, sol *cp.Solution) model.NodeID {
	return p.nodes[sol.Value(t.dSlice.hoster)]
}

var actionMakers = map[TransitionKind]actionMaker{
	StayRunning:  noAction,
	StayReady:    noAction,
	StaySleeping: noAction,
	Relocate: func(p *Problem, t *Transition, sol *cp.Solution) (plan.Action, bool) {
		if sol.Value(t.state) == 0 {
			return plan.Action{}, false
		}
		return vmAction(plan.MigrateVM, sourceNode, chosenNode)(p, t, sol)
	},
	BootVMTransition:     vmAction(plan.BootVM, chosenNode, nil),
	ShutdownVMTransition: vmAction(plan.ShutdownVM, sourceNode, nil),
	SuspendVMTransition:  vmAction(plan.SuspendVM, sourceNode, sourceNode),
	ResumeVMTransition:   vmAction(plan.ResumeVM, sourceNode, chosenNode),
	ForgeVMTransition:    vmAction(plan.ForgeVM, nil, nil),
	KillVMTransition:     vmAction(plan.KillVM, sourceNode, nil),
	BootableNode: func(p *Problem, t *Transition, sol *cp.Solution) (plan.Action, bool) {
		if sol.Value(t.state) == 0 {
			return plan.Action{}, false
		}
		return nodeAction(plan.BootNode, t, sol), true
	},
	ShutdownableNode: func(p *Problem, t *Transition, sol *cp.Solution) (plan.Action, bool) {
		if sol.Value(t.state) == 1 {
			return plan.Action{}, false
		}
		return nodeAction(plan.ShutdownNode, t, sol), true
	},
}

func nodeAction(kind plan.ActionKind, t *Transition, sol *cp.Solution) plan.Action {
	return plan.Action{
		Kind:  kind,
		Node:  t.node,
		Start: sol.Value(t.start),
		End:   sol.Value(t.end),
	}
}

// InsertActions adds the action of the transition to the plan. It returns
// false when the transition has nothing to do in the solution.
func (t *Transition) InsertActions(p *Problem, sol *cp.Solution, pl *plan.ReconfigurationPlan) (bool, error) {
	maker, ok := actionMakers[t.kind]
	if !ok {
		return false, inconsistencyErrorf("no action for transition kind %d", t.kind)
	}
	a, ok := maker(p, t, sol)
	if !ok {
		return false, nil
	}
	if !pl.Add(a) {
		return false, inconsistencyErrorf("plan rejected %s from %s", a, t)
	}
	return true, nil
}
