package constraint

import "github.com/amsen20/reconf/internal/model"

// Ban forbids the VMs from running on the nodes.
type Ban struct{ base }

func NewBan(vms []model.VMID, nodes []model.NodeID) *Ban {
	return &Ban{newBase(BAN, vms, nodes)}
}

func (c *Ban) IsSatisfied(m *model.Model) bool {
	banned := make(map[model.NodeID]bool, len(c.nodes))
	for _, n := range c.nodes {
		banned[n] = true
	}
	return allVMs(c.vms, func(vm model.VMID) bool {
		host, ok := m.Mapping().VMLocation(vm)
		return !ok || !m.Mapping().IsRunning(vm) || !banned[host]
	})
}

// Fence restricts the VMs to the nodes when they run.
type Fence struct{ base }

func NewFence(vms []model.VMID, nodes []model.NodeID) *Fence {
	return &Fence{newBase(FENCE, vms, nodes)}
}

func (c *Fence) IsSatisfied(m *model.Model) bool {
	allowed := make(map[model.NodeID]bool, len(c.nodes))
	for _, n := range c.nodes {
		allowed[n] = true
	}
	return allVMs(c.vms, func(vm model.VMID) bool {
		host, ok := m.Mapping().VMLocation(vm)
		return !ok || !m.Mapping().IsRunning(vm) || allowed[host]
	})
}

// Spread keeps the running VMs on distinct nodes. When continuous, a VM
// never arrives on a node before the others have left it.
type Spread struct{ base }

func NewSpread(vms ...model.VMID) *Spread {
	c := &Spread{newBase(SPREAD, vms, nil)}
	c.continuous = true
	return c
}

func (c *Spread) SetContinuous(b bool) bool {
	c.continuous = b
	return true
}

func (c *Spread) IsSatisfied(m *model.Model) bool {
	used := make(map[model.NodeID]bool)
	for _, vm := range c.vms {
		if !m.Mapping().IsRunning(vm) {
			continue
		}
		host, _ := m.Mapping().VMLocation(vm)
		if used[host] {
			return false
		}
		used[host] = true
	}
	return true
}

// SingleResourceCapacity caps the amount of a resource used on each node.
type SingleResourceCapacity struct {
	base
	Resource string
	Amount   int
}

func NewSingleResourceCapacity(nodes []model.NodeID, rc string, amount int) *SingleResourceCapacity {
	return &SingleResourceCapacity{base: newBase(SINGLE_RESOURCE_CAPACITY, nil, nodes), Resource: rc, Amount: amount}
}

func (c *SingleResourceCapacity) IsSatisfied(m *model.Model) bool {
	rc := m.Resource(c.Resource)
	if rc == nil {
		return false
	}
	for _, n := range c.nodes {
		used := 0
		for _, vm := range m.Mapping().RunningVMsOn(n) {
			used += rc.Consumption(vm)
		}
		if used > c.Amount {
			return false
		}
	}
	return true
}

// MaxOnline caps the number of online nodes among the given ones.
type MaxOnline struct {
	base
	Amount int
}

func NewMaxOnline(nodes []model.NodeID, amount int) *MaxOnline {
	return &MaxOnline{base: newBase(MAX_ONLINE, nil, nodes), Amount: amount}
}

func (c *MaxOnline) IsSatisfied(m *model.Model) bool {
	online := 0
	for _, n := range c.nodes {
		if m.Mapping().IsOnline(n) {
			online++
		}
	}
	return online <= c.Amount
}

// Preserve guarantees at least Amount of a resource to each VM while it
// runs. A VM consuming less is accounted for Amount on its final host.
type Preserve struct {
	base
	Resource string
	Amount   int
}

func NewPreserve(vms []model.VMID, rc string, amount int) *Preserve {
	return &Preserve{base: newBase(PRESERVE, vms, nil), Resource: rc, Amount: amount}
}

// Demand is the amount of the resource the VM is accounted for.
func (c *Preserve) Demand(consumption int) int {
	if consumption < c.Amount {
		return c.Amount
	}
	return consumption
}

func (c *Preserve) IsSatisfied(m *model.Model) bool {
	rc := m.Resource(c.Resource)
	if rc == nil || c.Amount < 0 {
		return false
	}
	preserved := make(map[model.VMID]bool, len(c.vms))
	hosts := make(map[model.NodeID]bool)
	for _, vm := range c.vms {
		preserved[vm] = true
		if host, ok := m.Mapping().VMLocation(vm); ok && m.Mapping().IsRunning(vm) {
			hosts[host] = true
		}
	}
	for n := range hosts {
		used := 0
		for _, vm := range m.Mapping().RunningVMsOn(n) {
			if preserved[vm] {
				used += c.Demand(rc.Consumption(vm))
			} else {
				used += rc.Consumption(vm)
			}
		}
		if used > rc.Capacity(n) {
			return false
		}
	}
	return true
}

// Quarantine isolates the nodes: their running VMs can not leave them and
// no VM from outside can arrive. It is continuous only.
type Quarantine struct{ base }

func NewQuarantine(nodes ...model.NodeID) *Quarantine {
	c := &Quarantine{newBase(QUARANTINE, nil, nodes)}
	c.continuous = true
	return c
}

func (c *Quarantine) SetContinuous(b bool) bool {
	return b
}

// IsSatisfied always holds on a single model, the restriction is on plans.
func (c *Quarantine) IsSatisfied(m *model.Model) bool {
	return true
}
