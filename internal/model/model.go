package model

import (
	"fmt"
	"sort"

	"github.com/amsen20/reconf/internal/utils"
	"gonum.org/v1/gonum/mat"
)

// Model is a snapshot of a datacenter: the mapping, the resource
// dimensions and the attributes of its elements.
type Model struct {
	mapping    *Mapping
	resources  []*ShareableResource
	attributes *Attributes

	// VMs known to the model, including the ones out of the mapping
	declared map[VMID]bool
}

func NewModel() *Model {
	return &Model{
		mapping:    NewMapping(),
		attributes: NewAttributes(),
		declared:   make(map[VMID]bool),
	}
}

func (m *Model) Mapping() *Mapping { return m.mapping }

func (m *Model) Attributes() *Attributes { return m.attributes }

// AddResource registers a dimension. Dimensions keep their insertion order,
// the first one drives the worst-fit placement.
func (m *Model) AddResource(rc *ShareableResource) bool {
	if m.Resource(rc.Name()) != nil {
		return false
	}
	m.resources = append(m.resources, rc)
	return true
}

func (m *Model) Resource(name string) *ShareableResource {
	for _, rc := range m.resources {
		if rc.Name() == name {
			return rc
		}
	}
	return nil
}

func (m *Model) Resources() []*ShareableResource {
	return m.resources
}

// DeclareVM makes a VM known without placing it. A declared VM that is not
// in the mapping is in the INIT state.
func (m *Model) DeclareVM(vm VMID) {
	m.declared[vm] = true
}

// VMs lists the declared VMs and the ones of the mapping.
func (m *Model) VMs() []VMID {
	set := make(map[VMID]bool, len(m.declared))
	for vm := range m.declared {
		set[vm] = true
	}
	for _, vm := range m.mapping.AllVMs() {
		set[vm] = true
	}
	vms := make([]VMID, 0, len(set))
	for vm := range set {
		vms = append(vms, vm)
	}
	sortVMs(vms)
	return vms
}

func (m *Model) Nodes() []NodeID {
	return m.mapping.AllNodes()
}

func (m *Model) ContainsVM(vm VMID) bool {
	return m.declared[vm] || m.mapping.ContainsVM(vm)
}

// Capacities lists the capacity of a node for every dimension.
func (m *Model) Capacities(n NodeID) []int {
	values := make([]int, len(m.resources))
	for i, rc := range m.resources {
		values[i] = rc.Capacity(n)
	}
	return values
}

func (m *Model) Consumptions(vm VMID) []int {
	values := make([]int, len(m.resources))
	for i, rc := range m.resources {
		values[i] = rc.Consumption(vm)
	}
	return values
}

// CapacityVector is nil when the model has no dimension.
func (m *Model) CapacityVector(n NodeID) *mat.VecDense {
	if len(m.resources) == 0 {
		return nil
	}
	return utils.IntVec(m.Capacities(n))
}

func (m *Model) ConsumptionVector(vm VMID) *mat.VecDense {
	if len(m.resources) == 0 {
		return nil
	}
	return utils.IntVec(m.Consumptions(vm))
}

// Load sums the consumption of the VMs running on a node. Sleeping VMs do
// not consume resources.
func (m *Model) Load(n NodeID) *mat.VecDense {
	if len(m.resources) == 0 {
		return nil
	}
	load := mat.NewVecDense(len(m.resources), nil)
	for _, vm := range m.mapping.RunningVMsOn(n) {
		utils.SAddVec(load, m.ConsumptionVector(vm))
	}
	return load
}

func (m *Model) Overloaded(n NodeID) bool {
	if len(m.resources) == 0 {
		return false
	}
	return !utils.LEThan(m.Load(n), m.CapacityVector(n))
}

func (m *Model) OverloadedNodes() []NodeID {
	var nodes []NodeID
	for _, n := range m.mapping.OnlineNodes() {
		if m.Overloaded(n) {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (m *Model) Clone() *Model {
	ret := &Model{
		mapping:    m.mapping.Clone(),
		attributes: m.attributes.Clone(),
		declared:   make(map[VMID]bool, len(m.declared)),
	}
	for _, rc := range m.resources {
		ret.resources = append(ret.resources, rc.Clone())
	}
	for vm := range m.declared {
		ret.declared[vm] = true
	}
	return ret
}

func (m *Model) Display() string {
	repr := ""

	repr += "RESOURCES:\n"
	for _, rc := range m.resources {
		repr += rc.String() + "\n"
	}

	repr += "\nNODES:\n"
	for _, n := range m.mapping.AllNodes() {
		state := "online"
		if m.mapping.IsOffline(n) {
			state = "offline"
		}
		nodeDesc := fmt.Sprintf("{%s %s %v}: ", n, state, m.Capacities(n))
		for _, vm := range m.mapping.RunningVMsOn(n) {
			nodeDesc += fmt.Sprintf("{%s %v} || ", vm, m.Consumptions(vm))
		}
		for _, vm := range m.mapping.SleepingVMsOn(n) {
			nodeDesc += fmt.Sprintf("(%s) || ", vm)
		}
		repr += nodeDesc + "\n"
	}

	ready := m.mapping.ReadyVMs()
	if len(ready) > 0 {
		repr += fmt.Sprintf("READY: %v\n", ready)
	}

	var pending []VMID
	for vm := range m.declared {
		if !m.mapping.ContainsVM(vm) {
			pending = append(pending, vm)
		}
	}
	if len(pending) > 0 {
		sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
		repr += fmt.Sprintf("INIT: %v\n", pending)
	}

	return repr
}
