package constraint

import "github.com/amsen20/reconf/internal/model"

// Running asks the VMs to be running at the end of the reconfiguration.
type Running struct{ base }

func NewRunning(vms ...model.VMID) *Running {
	return &Running{newBase(RUNNING, vms, nil)}
}

func (c *Running) IsSatisfied(m *model.Model) bool {
	return allVMs(c.vms, m.Mapping().IsRunning)
}

type Ready struct{ base }

func NewReady(vms ...model.VMID) *Ready {
	return &Ready{newBase(READY, vms, nil)}
}

func (c *Ready) IsSatisfied(m *model.Model) bool {
	return allVMs(c.vms, m.Mapping().IsReady)
}

type Sleeping struct{ base }

func NewSleeping(vms ...model.VMID) *Sleeping {
	return &Sleeping{newBase(SLEEPING, vms, nil)}
}

func (c *Sleeping) IsSatisfied(m *model.Model) bool {
	return allVMs(c.vms, m.Mapping().IsSleeping)
}

// Killed asks the VMs to leave the mapping.
type Killed struct{ base }

func NewKilled(vms ...model.VMID) *Killed {
	return &Killed{newBase(KILLED, vms, nil)}
}

func (c *Killed) IsSatisfied(m *model.Model) bool {
	return allVMs(c.vms, func(vm model.VMID) bool { return !m.Mapping().ContainsVM(vm) })
}

type Online struct{ base }

func NewOnline(nodes ...model.NodeID) *Online {
	return &Online{newBase(ONLINE, nil, nodes)}
}

func (c *Online) IsSatisfied(m *model.Model) bool {
	for _, n := range c.nodes {
		if !m.Mapping().IsOnline(n) {
			return false
		}
	}
	return true
}

type Offline struct{ base }

func NewOffline(nodes ...model.NodeID) *Offline {
	return &Offline{newBase(OFFLINE, nil, nodes)}
}

func (c *Offline) IsSatisfied(m *model.Model) bool {
	for _, n := range c.nodes {
		if !m.Mapping().IsOffline(n) {
			return false
		}
	}
	return true
}

// Root forbids any action on the VMs. It is continuous only.
type Root struct{ base }

func NewRoot(vms ...model.VMID) *Root {
	c := &Root{newBase(ROOT, vms, nil)}
	c.continuous = true
	return c
}

func (c *Root) SetContinuous(b bool) bool {
	return b
}

// IsSatisfied always holds on a single model, the restriction is on plans.
func (c *Root) IsSatisfied(m *model.Model) bool {
	return true
}
