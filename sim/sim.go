// Package sim replays a scenario of VM arrivals, departures and node
// maintenance requests, and compares the plans of the solver with a
// first-fit placement.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/constraint"
	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/model/testing_tool"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/amsen20/reconf/internal/utils"
	"github.com/amsen20/reconf/logging"
	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/pkg/errors"
)

type Frame struct {
	NewVMs       []*testing_tool.VMDesc `json:"new_vms"`
	DeletedVMs   []string               `json:"delete_vms"`
	OfflineNodes []string               `json:"offline_nodes"`
}

type Scenario struct {
	Nodes  []*testing_tool.NodeDesc `json:"nodes"`
	Frames []*Frame                 `json:"frames"`
}

// Report has one entry per frame in every series.
type Report struct {
	Algorithm  string    `json:"algorithm"`
	Usage      []float64 `json:"usage"`
	Actions    []int     `json:"actions"`
	Cost       []int     `json:"cost"`
	Unplaced   []int     `json:"unplaced"`
	Overloaded []int     `json:"overloaded"`
	Online     []int     `json:"online"`
}

type Algorithm int

const (
	FIRST_FIT Algorithm = iota
	MIN_MTTR
)

func (a Algorithm) String() string {
	if a == MIN_MTTR {
		return "minMTTR"
	}
	return "firstFit"
}

func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "firstFit", "first_fit":
		return FIRST_FIT, nil
	case "minMTTR", "min_mttr":
		return MIN_MTTR, nil
	}
	return FIRST_FIT, fmt.Errorf("unknown algorithm %q", s)
}

var log = logging.Get()

func LoadScenario(path string) (*Scenario, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read scenario")
	}
	scenario := &Scenario{}
	if err := json.Unmarshal(bytes, scenario); err != nil {
		return nil, errors.Wrapf(err, "could not parse scenario %s", path)
	}
	return scenario, nil
}

// Run replays the scenario with the given algorithm.
func Run(ctx context.Context, scenario *Scenario, algorithm Algorithm, params alg.Parameters) (*Report, error) {
	builder := testing_tool.New()
	builder.ImportNodes(scenario.Nodes)
	m := builder.Model()

	report := &Report{Algorithm: algorithm.String()}
	for ind, frame := range scenario.Frames {
		log.Info().Msgf("processing frame: %d, new VMs: %d", ind, len(frame.NewVMs))

		for _, vm := range builder.VMs(frame.DeletedVMs...) {
			m.Mapping().Remove(vm)
		}
		for _, desc := range frame.NewVMs {
			desc.State = model.READY
			desc.Host = ""
		}
		builder.ImportVMs(frame.NewVMs)

		offline := builder.Nodes(frame.OfflineNodes...)
		var actions []plan.Action
		cost := 0
		switch algorithm {
		case FIRST_FIT:
			actions = firstFit(m, offline)
			cost = len(actions)
		case MIN_MTTR:
			res, err := solveFrame(ctx, params, m, offline)
			if err != nil {
				return nil, errors.Wrapf(err, "frame %d", ind)
			}
			if res.Plan != nil {
				actions = res.Plan.Actions()
				cost = res.Objective
			}
		}
		for _, action := range actions {
			if !action.Apply(m) {
				return nil, fmt.Errorf("frame %d: action %s is not applicable", ind, action)
			}
		}

		report.Actions = append(report.Actions, len(actions))
		report.Cost = append(report.Cost, cost)
		report.Unplaced = append(report.Unplaced, len(m.Mapping().ReadyVMs()))
		report.Overloaded = append(report.Overloaded, len(m.OverloadedNodes()))
		report.Online = append(report.Online, len(m.Mapping().OnlineNodes()))
		report.Usage = append(report.Usage, usage(m))
	}
	return report, nil
}

// solveFrame asks every ready VM to run and the requested nodes to go
// offline. Without plan, the frame does nothing.
func solveFrame(ctx context.Context, params alg.Parameters, m *model.Model, offline []model.NodeID) (*alg.Result, error) {
	var cstrs []constraint.SatConstraint
	if ready := m.Mapping().ReadyVMs(); len(ready) > 0 {
		cstrs = append(cstrs, constraint.NewRunning(ready...))
	}
	if len(offline) > 0 {
		cstrs = append(cstrs, constraint.NewOffline(offline...))
	}
	if params.Durations != nil {
		params.Durations = params.Durations.Clone()
	}
	res, err := alg.Solve(ctx, params, alg.Instance{Model: m.Clone(), Constraints: cstrs})
	if err != nil {
		return nil, err
	}
	if res.Status != cp.Optimal && res.Status != cp.Feasible {
		log.Warn().Msgf("no plan for the frame: %s", res.Status)
	}
	return res, nil
}

// usage averages the usage ratio of the online nodes.
func usage(m *model.Model) float64 {
	online := m.Mapping().OnlineNodes()
	if len(online) == 0 || len(m.Resources()) == 0 {
		return 0
	}
	total := 0.0
	for _, n := range online {
		total += utils.UsageRatio(m.Load(n), m.CapacityVector(n))
	}
	return total / float64(len(online))
}

func largestFirst(m *model.Model) *binaryheap.Heap {
	return binaryheap.NewWith(func(a, b interface{}) int {
		va, vb := a.(model.VMID), b.(model.VMID)
		ca, cb := m.Consumptions(va), m.Consumptions(vb)
		for i := range ca {
			if ca[i] != cb[i] {
				return cb[i] - ca[i]
			}
		}
		return int(va) - int(vb)
	})
}

// firstFit evacuates the nodes to turn off, then places the ready VMs, the
// largest first, on the first online node with room. It never fixes
// overloaded nodes. The actions are computed on a copy of src.
func firstFit(src *model.Model, offline []model.NodeID) []plan.Action {
	m := src.Clone()
	var actions []plan.Action
	leaving := utils.SliceToMap(offline, func(n model.NodeID) int { return int(n) })

	apply := func(action plan.Action) bool {
		if !action.Apply(m) {
			return false
		}
		actions = append(actions, action)
		return true
	}
	target := func(vm model.VMID) (model.NodeID, bool) {
		need := m.ConsumptionVector(vm)
		for _, n := range m.Mapping().OnlineNodes() {
			if leaving[int(n)] {
				continue
			}
			if need == nil || utils.LEThan(need, utils.SubVec(m.CapacityVector(n), m.Load(n))) {
				return n, true
			}
		}
		return 0, false
	}

	for _, n := range offline {
		if !m.Mapping().IsOnline(n) {
			continue
		}
		heap := largestFirst(m)
		for _, vm := range m.Mapping().RunningVMsOn(n) {
			heap.Push(vm)
		}
		for !heap.Empty() {
			value, _ := heap.Pop()
			vm := value.(model.VMID)
			if dst, ok := target(vm); ok {
				apply(plan.Action{Kind: plan.MigrateVM, VM: vm, Node: n, Dst: dst})
			}
		}
		// fails while VMs remain
		apply(plan.Action{Kind: plan.ShutdownNode, Node: n})
	}

	heap := largestFirst(m)
	for _, vm := range m.Mapping().ReadyVMs() {
		heap.Push(vm)
	}
	for !heap.Empty() {
		value, _ := heap.Pop()
		vm := value.(model.VMID)
		if n, ok := target(vm); ok {
			apply(plan.Action{Kind: plan.BootVM, VM: vm, Node: n})
		}
	}

	return actions
}
