package alg

import (
	"math/rand"

	"github.com/amsen20/reconf/internal/constraint"
	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/amsen20/reconf/logging"
	"github.com/pkg/errors"
)

var log = logging.Get()

// Problem holds the variables and constraints describing every possible
// reconfiguration of a source model.
type Problem struct {
	params Parameters
	src    *model.Model
	cstrs  []constraint.SatConstraint
	solver *cp.Solver
	rnd    *rand.Rand

	nodes   []model.NodeID
	nodeIdx map[model.NodeID]int
	vms     []model.VMID
	vmIdx   map[model.VMID]int

	horizon    int
	zero       *cp.IntVar
	one        *cp.IntVar
	horizonEnd *cp.IntVar
	end        *cp.IntVar

	nextState  map[model.VMID]model.VMState
	nodeState  map[model.NodeID]model.NodeState
	root       map[model.VMID]bool
	manageable map[model.VMID]bool
	durations  map[model.VMID]int

	nodeDurations map[model.NodeID]int
	// raised by Preserve constraints
	demands map[model.VMID][]int

	// indexed like vms and nodes, nil when nothing has to be modelled
	vmTransitions   []*Transition
	nodeTransitions []*Transition
	nextOrder       int

	dims       []string
	capacities [][]int
	packing    *VectorPacking

	objective  Objective
	infeasible bool
}

// NewProblem builds the model of the reconfiguration. A problem proven
// infeasible while building is returned without error, see Infeasible.
func NewProblem(params Parameters, inst Instance) (*Problem, error) {
	if inst.Model == nil {
		return nil, configErrorf("no model")
	}
	if params.Durations == nil {
		return nil, configErrorf("no duration evaluators")
	}
	p := &Problem{
		params:    params,
		src:       inst.Model,
		cstrs:     inst.Constraints,
		solver:    cp.NewSolver(),
		rnd:       rand.New(rand.NewSource(params.Seed)),
		nodeIdx:   make(map[model.NodeID]int),
		vmIdx:     make(map[model.VMID]int),
		nextState: make(map[model.VMID]model.VMState),
		nodeState: make(map[model.NodeID]model.NodeState),
		root:      make(map[model.VMID]bool),
		durations: make(map[model.VMID]int),
		objective: inst.Objective,
	}
	if p.objective == nil {
		p.objective = NewMinMTTR()
	}

	p.nodes = p.src.Nodes()
	for i, n := range p.nodes {
		p.nodeIdx[n] = i
	}
	p.vms = p.src.VMs()
	for i, vm := range p.vms {
		p.vmIdx[vm] = i
	}

	steps := []func() error{
		p.collectStates,
		p.collectManageable,
		p.computeDurations,
		p.makeVariables,
		p.makeNodeTransitions,
		p.makeVMTransitions,
		p.makePacking,
		p.makeScheduling,
		p.injectConstraints,
		p.linkEnds,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			if errors.Is(err, cp.ErrContradiction) {
				p.infeasible = true
				return p, nil
			}
			return nil, err
		}
		if p.infeasible {
			return p, nil
		}
	}
	if err := p.objective.Inject(p); err != nil {
		if errors.Is(err, cp.ErrContradiction) {
			p.infeasible = true
			return p, nil
		}
		return nil, err
	}
	return p, nil
}

func (p *Problem) Solver() *cp.Solver             { return p.solver }
func (p *Problem) SourceModel() *model.Model      { return p.src }
func (p *Problem) Horizon() int                   { return p.horizon }
func (p *Problem) End() *cp.IntVar                { return p.end }
func (p *Problem) Nodes() []model.NodeID          { return p.nodes }
func (p *Problem) VMs() []model.VMID              { return p.vms }
func (p *Problem) Packing() *VectorPacking        { return p.packing }
func (p *Problem) Parameters() Parameters         { return p.params }
func (p *Problem) Rand() *rand.Rand               { return p.rnd }
func (p *Problem) Infeasible() bool               { return p.infeasible }
func (p *Problem) VMTransitions() []*Transition   { return compact(p.vmTransitions) }
func (p *Problem) NodeTransitions() []*Transition { return compact(p.nodeTransitions) }

func (p *Problem) NodeIndex(n model.NodeID) (int, bool) {
	i, ok := p.nodeIdx[n]
	return i, ok
}

func (p *Problem) VMTransition(vm model.VMID) *Transition {
	i, ok := p.vmIdx[vm]
	if !ok {
		return nil
	}
	return p.vmTransitions[i]
}

func (p *Problem) NodeTransition(n model.NodeID) *Transition {
	i, ok := p.nodeIdx[n]
	if !ok {
		return nil
	}
	return p.nodeTransitions[i]
}

// Transitions lists every transition in creation order.
func (p *Problem) Transitions() []*Transition {
	return append(p.NodeTransitions(), p.VMTransitions()...)
}

func compact(ts []*Transition) []*Transition {
	res := make([]*Transition, 0, len(ts))
	for _, t := range ts {
		if t != nil {
			res = append(res, t)
		}
	}
	return res
}

func (p *Problem) timeVar(name string) *cp.IntVar {
	return p.solver.NewIntVar(name, 0, p.horizon)
}

func (p *Problem) hosterVar(name string) *cp.IntVar {
	return p.solver.NewRangeEnumVar(name, 0, len(p.nodes)-1)
}

// collectStates reads the state constraints. Asking two states for the same
// element is a configuration error.
func (p *Problem) collectStates() error {
	m := p.src.Mapping()
	for _, vm := range p.vms {
		p.nextState[vm] = m.VMState(vm)
	}
	for _, n := range p.nodes {
		if m.IsOnline(n) {
			p.nodeState[n] = model.ONLINE
		} else {
			p.nodeState[n] = model.OFFLINE
		}
	}

	vmStates := map[constraint.Kind]model.VMState{
		constraint.RUNNING:  model.RUNNING,
		constraint.READY:    model.READY,
		constraint.SLEEPING: model.SLEEPING,
		constraint.KILLED:   model.KILLED,
	}
	asked := make(map[model.VMID]constraint.Kind)
	forced := make(map[model.NodeID]constraint.Kind)
	for _, c := range p.cstrs {
		switch c.Kind() {
		case constraint.RUNNING, constraint.READY, constraint.SLEEPING, constraint.KILLED:
			for _, vm := range c.InvolvedVMs() {
				if _, ok := p.vmIdx[vm]; !ok {
					return configErrorf("%s: unknown VM %s", c.Name(), vm)
				}
				if prev, ok := asked[vm]; ok && prev != c.Kind() {
					return configErrorf("VM %s can not be both %s and %s", vm, prev, c.Kind())
				}
				asked[vm] = c.Kind()
				p.nextState[vm] = vmStates[c.Kind()]
			}
		case constraint.ONLINE, constraint.OFFLINE:
			for _, n := range c.InvolvedNodes() {
				if _, ok := p.nodeIdx[n]; !ok {
					return configErrorf("%s: unknown node %s", c.Name(), n)
				}
				if prev, ok := forced[n]; ok && prev != c.Kind() {
					return configErrorf("node %s can not be both online and offline", n)
				}
				forced[n] = c.Kind()
			}
		case constraint.ROOT:
			for _, vm := range c.InvolvedVMs() {
				p.root[vm] = true
			}
		}
	}
	for n, k := range forced {
		if k == constraint.ONLINE {
			p.nodeState[n] = model.ONLINE
		} else {
			p.nodeState[n] = model.OFFLINE
		}
	}
	for vm := range p.root {
		if p.nextState[vm] != m.VMState(vm) {
			return configErrorf("root VM %s can not change its state", vm)
		}
	}
	return nil
}

// collectManageable restricts the VMs allowed to move in repair mode.
func (p *Problem) collectManageable() error {
	if !p.params.RepairMode {
		return nil
	}
	m := p.src.Mapping()
	p.manageable = make(map[model.VMID]bool)
	for _, c := range p.cstrs {
		if c.IsSatisfied(p.src) {
			continue
		}
		for _, vm := range c.InvolvedVMs() {
			p.manageable[vm] = true
		}
		for _, n := range c.InvolvedNodes() {
			for _, vm := range m.RunningVMsOn(n) {
				p.manageable[vm] = true
			}
		}
	}
	for _, n := range p.src.OverloadedNodes() {
		for _, vm := range m.RunningVMsOn(n) {
			p.manageable[vm] = true
		}
	}
	for n, s := range p.nodeState {
		if s == model.OFFLINE && m.IsOnline(n) {
			for _, vm := range m.RunningVMsOn(n) {
				p.manageable[vm] = true
			}
		}
	}
	log.Debug().Msgf("repair mode: %d manageable VMs out of %d", len(p.manageable), len(p.vms))
	return nil
}

func (p *Problem) isManageable(vm model.VMID) bool {
	return !p.root[vm] && (p.manageable == nil || p.manageable[vm])
}

// vmTransitionKind picks the transition of a VM from its current and next
// states.
func (p *Problem) vmTransitionKind(vm model.VMID) (TransitionKind, bool, error) {
	cur := p.src.Mapping().VMState(vm)
	next := p.nextState[vm]
	switch {
	case cur == model.RUNNING && next == model.RUNNING:
		if p.isManageable(vm) {
			return Relocate, true, nil
		}
		return StayRunning, true, nil
	case cur == model.READY && next == model.READY:
		return StayReady, true, nil
	case cur == model.SLEEPING && next == model.SLEEPING:
		return StaySleeping, true, nil
	case cur == model.READY && next == model.RUNNING:
		return BootVMTransition, true, nil
	case cur == model.RUNNING && next == model.READY:
		return ShutdownVMTransition, true, nil
	case cur == model.RUNNING && next == model.SLEEPING:
		return SuspendVMTransition, true, nil
	case cur == model.SLEEPING && next == model.RUNNING:
		return ResumeVMTransition, true, nil
	case cur == model.INIT && next == model.READY:
		return ForgeVMTransition, true, nil
	case cur == model.INIT && (next == model.INIT || next == model.KILLED):
		return 0, false, nil
	case next == model.KILLED:
		return KillVMTransition, true, nil
	}
	return 0, false, configErrorf("VM %s can not go from %s to %s", vm, cur, next)
}

var transitionActions = map[TransitionKind]plan.ActionKind{
	Relocate:             plan.MigrateVM,
	BootVMTransition:     plan.BootVM,
	ShutdownVMTransition: plan.ShutdownVM,
	SuspendVMTransition:  plan.SuspendVM,
	ResumeVMTransition:   plan.ResumeVM,
	ForgeVMTransition:    plan.ForgeVM,
	KillVMTransition:     plan.KillVM,
}

// computeDurations evaluates the duration of every candidate action and
// derives the horizon when none is given.
func (p *Problem) computeDurations() error {
	total := 0
	mandatory := 0
	for _, vm := range p.vms {
		kind, ok, err := p.vmTransitionKind(vm)
		if err != nil {
			return err
		}
		action, timed := transitionActions[kind]
		if !ok || !timed {
			continue
		}
		d, err := p.params.Durations.Evaluate(p.src, action, int(vm))
		if err != nil {
			return configErrorf("%v", err)
		}
		p.durations[vm] = d
		total += d
		if kind != Relocate && d > mandatory {
			mandatory = d
		}
	}

	p.nodeDurations = make(map[model.NodeID]int, len(p.nodes))
	for _, n := range p.nodes {
		action := plan.ShutdownNode
		if p.src.Mapping().IsOffline(n) {
			action = plan.BootNode
		}
		d, err := p.params.Durations.Evaluate(p.src, action, int(n))
		if err != nil {
			return configErrorf("%v", err)
		}
		p.nodeDurations[n] = d
		total += d
		if p.nodeState[n] != p.currentNodeState(n) && d > mandatory {
			mandatory = d
		}
	}

	p.horizon = p.params.Horizon
	if p.horizon <= 0 {
		p.horizon = total
	}
	if mandatory > p.horizon {
		return configErrorf("horizon %d is shorter than a mandatory action lasting %d", p.horizon, mandatory)
	}
	return nil
}

func (p *Problem) currentNodeState(n model.NodeID) model.NodeState {
	if p.src.Mapping().IsOnline(n) {
		return model.ONLINE
	}
	return model.OFFLINE
}

func (p *Problem) makeVariables() error {
	s := p.solver
	p.zero = s.NewConst("zero", 0)
	p.one = s.NewConst("one", 1)
	p.horizonEnd = s.NewConst("horizon", p.horizon)
	p.end = s.NewIntVar("end", 0, p.horizon)

	for _, vm := range p.vms {
		kind, ok, _ := p.vmTransitionKind(vm)
		if ok && (kind == Relocate || kind == BootVMTransition || kind == ResumeVMTransition) && len(p.nodes) == 0 {
			log.Debug().Msgf("no node can host %s", vm)
			p.infeasible = true
		}
	}
	return nil
}

func (p *Problem) makeNodeTransitions() error {
	p.nodeTransitions = make([]*Transition, len(p.nodes))
	for i, n := range p.nodes {
		var t *Transition
		if p.src.Mapping().IsOnline(n) {
			t = newShutdownableNode(p, n, p.nodeDurations[n])
		} else {
			t = newBootableNode(p, n, p.nodeDurations[n])
		}
		online := 0
		if p.nodeState[n] == model.ONLINE {
			online = 1
		}
		if p.nodeState[n] != p.currentNodeState(n) || p.hasForcedState(n) {
			if err := t.state.InstantiateTo(online); err != nil {
				return err
			}
		}
		p.nodeTransitions[i] = t
	}
	return nil
}

func (p *Problem) hasForcedState(n model.NodeID) bool {
	for _, c := range p.cstrs {
		if c.Kind() != constraint.ONLINE && c.Kind() != constraint.OFFLINE {
			continue
		}
		for _, m := range c.InvolvedNodes() {
			if m == n {
				return true
			}
		}
	}
	return false
}

var vmMakers = map[TransitionKind]func(p *Problem, vm model.VMID, d int) *Transition{
	StayRunning:          func(p *Problem, vm model.VMID, _ int) *Transition { return newStayRunning(p, vm) },
	StayReady:            func(p *Problem, vm model.VMID, _ int) *Transition { return newStayReady(p, vm) },
	StaySleeping:         func(p *Problem, vm model.VMID, _ int) *Transition { return newStaySleeping(p, vm) },
	Relocate:             newRelocate,
	BootVMTransition:     newBootVM,
	ShutdownVMTransition: newShutdownVM,
	SuspendVMTransition:  newSuspendVM,
	ResumeVMTransition:   newResumeVM,
	ForgeVMTransition:    newForgeVM,
	KillVMTransition:     newKillVM,
}

func (p *Problem) makeVMTransitions() error {
	p.vmTransitions = make([]*Transition, len(p.vms))
	for i, vm := range p.vms {
		kind, ok, err := p.vmTransitionKind(vm)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		t := vmMakers[kind](p, vm, p.durations[vm])
		p.vmTransitions[i] = t

		// a VM sleeping at the end keeps its host online
		if kind == StaySleeping || kind == SuspendVMTransition {
			if err := p.NodeTransition(t.node).state.InstantiateTo(1); err != nil {
				return err
			}
		}
	}
	return nil
}

// makePacking posts the vector packing over the d-slices. A capacity
// restricted by a SingleResourceCapacity constraint is lowered, a demand
// guaranteed by a Preserve constraint is raised.
func (p *Problem) makePacking() error {
	for _, rc := range p.src.Resources() {
		p.dims = append(p.dims, rc.Name())
		caps := make([]int, len(p.nodes))
		for b, n := range p.nodes {
			caps[b] = rc.Capacity(n)
		}
		p.capacities = append(p.capacities, caps)
	}
	for _, c := range p.cstrs {
		src, ok := c.(*constraint.SingleResourceCapacity)
		if !ok {
			continue
		}
		d := p.dimension(src.Resource)
		if d < 0 {
			return configErrorf("%s: unknown resource %q", c.Name(), src.Resource)
		}
		for _, n := range src.InvolvedNodes() {
			if b, ok := p.nodeIdx[n]; ok && src.Amount < p.capacities[d][b] {
				p.capacities[d][b] = src.Amount
			}
		}
	}

	if err := p.collectDemands(); err != nil {
		return err
	}

	var items []*cp.IntVar
	sizes := make([][]int, len(p.dims))
	for _, t := range p.VMTransitions() {
		if t.dSlice == nil {
			continue
		}
		items = append(items, t.dSlice.hoster)
		for d, size := range p.sizes(t.vm) {
			sizes[d] = append(sizes[d], size)
		}
	}
	p.packing = NewVectorPacking(p.solver, p.dims, items, sizes, p.capacities)
	p.solver.Post(p.packing)
	return nil
}

func (p *Problem) dimension(name string) int {
	for d, dim := range p.dims {
		if dim == name {
			return d
		}
	}
	return -1
}

func (p *Problem) collectDemands() error {
	p.demands = make(map[model.VMID][]int)
	for _, c := range p.cstrs {
		pr, ok := c.(*constraint.Preserve)
		if !ok {
			continue
		}
		d := p.dimension(pr.Resource)
		if d < 0 {
			return configErrorf("%s: unknown resource %q", c.Name(), pr.Resource)
		}
		if pr.Amount < 0 {
			return configErrorf("%s: negative amount %d", c.Name(), pr.Amount)
		}
		for _, vm := range pr.InvolvedVMs() {
			if _, ok := p.vmIdx[vm]; !ok {
				continue
			}
			demand := p.sizes(vm)
			demand[d] = pr.Demand(demand[d])
			p.demands[vm] = demand
		}
	}
	return nil
}

// sizes returns a fresh copy of what the VM is accounted for on its host.
func (p *Problem) sizes(vm model.VMID) []int {
	if demand, ok := p.demands[vm]; ok {
		return append([]int(nil), demand...)
	}
	return p.src.Consumptions(vm)
}

// makeScheduling posts one time-table per node along with the link between
// the node state and the slices around it.
func (p *Problem) makeScheduling() error {
	links := make([]*nodeLink, len(p.nodes))
	schedules := make([]*nodeSchedule, len(p.nodes))
	for i, t := range p.nodeTransitions {
		links[i] = &nodeLink{idx: i, t: t}
		caps := make([]int, len(p.dims))
		for d := range p.dims {
			caps[d] = p.capacities[d][i]
		}
		schedules[i] = &nodeSchedule{idx: i, horizon: p.horizon, caps: caps}
	}

	for _, t := range p.VMTransitions() {
		item := scheduledItem{t: t, sizes: p.sizes(t.vm)}
		if t.dSlice != nil {
			h := t.dSlice.hoster
			for b, ok := h.LB(), true; ok; b, ok = h.NextValue(b) {
				links[b].hosters = append(links[b].hosters, h)
				links[b].dStarts = append(links[b].dStarts, t.dSlice.start)
				schedules[b].arriving = append(schedules[b].arriving, item)
			}
		}
		if t.cSlice != nil {
			b := t.cSlice.hoster.Value()
			schedules[b].leaving = append(schedules[b].leaving, item)
		}
		if t.hasNode && t.kind != StayRunning && t.kind != StaySleeping {
			b := p.nodeIdx[t.node]
			links[b].departures = append(links[b].departures, t.end)
		}
	}

	for i := range p.nodes {
		p.solver.Post(links[i])
		if len(p.dims) > 0 && len(schedules[i].arriving) > 0 {
			p.solver.Post(schedules[i])
		}
	}
	return nil
}

// linkEnds bounds the end of every action by the end of the plan.
func (p *Problem) linkEnds() error {
	for _, t := range p.Transitions() {
		p.solver.Post(cp.LessEq(t.end, 0, p.end))
	}
	return nil
}
