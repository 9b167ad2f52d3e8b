package model

import (
	"fmt"
	"sort"
)

// ShareableResource is one dimension of the packing, such as cpu or memory.
// Amounts not set explicitly fall back to the defaults.
type ShareableResource struct {
	name           string
	defCapacity    int
	defConsumption int

	capacities   map[NodeID]int
	consumptions map[VMID]int
}

func NewShareableResource(name string, defCapacity, defConsumption int) *ShareableResource {
	return &ShareableResource{
		name:           name,
		defCapacity:    defCapacity,
		defConsumption: defConsumption,
		capacities:     make(map[NodeID]int),
		consumptions:   make(map[VMID]int),
	}
}

func (r *ShareableResource) Name() string { return r.name }

func (r *ShareableResource) DefaultCapacity() int    { return r.defCapacity }
func (r *ShareableResource) DefaultConsumption() int { return r.defConsumption }

func (r *ShareableResource) SetCapacity(n NodeID, amount int) *ShareableResource {
	r.capacities[n] = amount
	return r
}

func (r *ShareableResource) SetConsumption(vm VMID, amount int) *ShareableResource {
	r.consumptions[vm] = amount
	return r
}

func (r *ShareableResource) Capacity(n NodeID) int {
	if c, ok := r.capacities[n]; ok {
		return c
	}
	return r.defCapacity
}

func (r *ShareableResource) Consumption(vm VMID) int {
	if c, ok := r.consumptions[vm]; ok {
		return c
	}
	return r.defConsumption
}

// DefinedNodes lists the nodes with an explicit capacity.
func (r *ShareableResource) DefinedNodes() []NodeID {
	nodes := make([]NodeID, 0, len(r.capacities))
	for n := range r.capacities {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// DefinedVMs lists the VMs with an explicit consumption.
func (r *ShareableResource) DefinedVMs() []VMID {
	vms := make([]VMID, 0, len(r.consumptions))
	for vm := range r.consumptions {
		vms = append(vms, vm)
	}
	sortVMs(vms)
	return vms
}

func (r *ShareableResource) Clone() *ShareableResource {
	ret := NewShareableResource(r.name, r.defCapacity, r.defConsumption)
	for n, c := range r.capacities {
		ret.capacities[n] = c
	}
	for vm, c := range r.consumptions {
		ret.consumptions[vm] = c
	}
	return ret
}

func (r *ShareableResource) String() string {
	return fmt.Sprintf("rc:%s<%d,%d>", r.name, r.defCapacity, r.defConsumption)
}
