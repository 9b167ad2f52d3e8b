package model

import (
	"sort"
)

// Mapping holds the state of every node and VM, and where running and
// sleeping VMs are hosted.
type Mapping struct {
	nodes map[NodeID]NodeState
	vms   map[VMID]VMState
	hosts map[VMID]NodeID
}

func NewMapping() *Mapping {
	return &Mapping{
		nodes: make(map[NodeID]NodeState),
		vms:   make(map[VMID]VMState),
		hosts: make(map[VMID]NodeID),
	}
}

func (m *Mapping) AddOnlineNode(n NodeID) {
	m.nodes[n] = ONLINE
}

// AddOfflineNode fails when the node still hosts VMs.
func (m *Mapping) AddOfflineNode(n NodeID) bool {
	if len(m.hosted(n)) > 0 {
		return false
	}
	m.nodes[n] = OFFLINE
	return true
}

// AddRunningVM places (or moves) a VM on an online node.
func (m *Mapping) AddRunningVM(vm VMID, n NodeID) bool {
	return m.host(vm, n, RUNNING)
}

func (m *Mapping) AddSleepingVM(vm VMID, n NodeID) bool {
	return m.host(vm, n, SLEEPING)
}

func (m *Mapping) host(vm VMID, n NodeID, state VMState) bool {
	if s, ok := m.nodes[n]; !ok || s != ONLINE {
		return false
	}
	m.vms[vm] = state
	m.hosts[vm] = n
	return true
}

func (m *Mapping) AddReadyVM(vm VMID) {
	m.vms[vm] = READY
	delete(m.hosts, vm)
}

// Remove takes a VM out of the mapping.
func (m *Mapping) Remove(vm VMID) bool {
	if _, ok := m.vms[vm]; !ok {
		return false
	}
	delete(m.vms, vm)
	delete(m.hosts, vm)
	return true
}

// RemoveNode fails when the node still hosts VMs.
func (m *Mapping) RemoveNode(n NodeID) bool {
	if len(m.hosted(n)) > 0 {
		return false
	}
	delete(m.nodes, n)
	return true
}

func (m *Mapping) ContainsNode(n NodeID) bool {
	_, ok := m.nodes[n]
	return ok
}

func (m *Mapping) ContainsVM(vm VMID) bool {
	_, ok := m.vms[vm]
	return ok
}

func (m *Mapping) IsOnline(n NodeID) bool {
	s, ok := m.nodes[n]
	return ok && s == ONLINE
}

func (m *Mapping) IsOffline(n NodeID) bool {
	s, ok := m.nodes[n]
	return ok && s == OFFLINE
}

// VMState returns INIT for a VM absent from the mapping.
func (m *Mapping) VMState(vm VMID) VMState {
	if s, ok := m.vms[vm]; ok {
		return s
	}
	return INIT
}

func (m *Mapping) IsRunning(vm VMID) bool  { return m.VMState(vm) == RUNNING }
func (m *Mapping) IsSleeping(vm VMID) bool { return m.VMState(vm) == SLEEPING }
func (m *Mapping) IsReady(vm VMID) bool    { return m.VMState(vm) == READY }

// VMLocation returns the host of a running or sleeping VM.
func (m *Mapping) VMLocation(vm VMID) (NodeID, bool) {
	n, ok := m.hosts[vm]
	return n, ok
}

func (m *Mapping) hosted(n NodeID) []VMID {
	var vms []VMID
	for vm, host := range m.hosts {
		if host == n {
			vms = append(vms, vm)
		}
	}
	sortVMs(vms)
	return vms
}

func (m *Mapping) filterVMs(keep func(vm VMID) bool) []VMID {
	var vms []VMID
	for vm := range m.vms {
		if keep(vm) {
			vms = append(vms, vm)
		}
	}
	sortVMs(vms)
	return vms
}

func (m *Mapping) RunningVMsOn(n NodeID) []VMID {
	return m.filterVMs(func(vm VMID) bool { return m.vms[vm] == RUNNING && m.hosts[vm] == n })
}

func (m *Mapping) SleepingVMsOn(n NodeID) []VMID {
	return m.filterVMs(func(vm VMID) bool { return m.vms[vm] == SLEEPING && m.hosts[vm] == n })
}

func (m *Mapping) RunningVMs() []VMID {
	return m.filterVMs(func(vm VMID) bool { return m.vms[vm] == RUNNING })
}

func (m *Mapping) SleepingVMs() []VMID {
	return m.filterVMs(func(vm VMID) bool { return m.vms[vm] == SLEEPING })
}

func (m *Mapping) ReadyVMs() []VMID {
	return m.filterVMs(func(vm VMID) bool { return m.vms[vm] == READY })
}

func (m *Mapping) AllVMs() []VMID {
	return m.filterVMs(func(VMID) bool { return true })
}

func (m *Mapping) filterNodes(state NodeState, all bool) []NodeID {
	var nodes []NodeID
	for n, s := range m.nodes {
		if all || s == state {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

func (m *Mapping) OnlineNodes() []NodeID  { return m.filterNodes(ONLINE, false) }
func (m *Mapping) OfflineNodes() []NodeID { return m.filterNodes(OFFLINE, false) }
func (m *Mapping) AllNodes() []NodeID     { return m.filterNodes(ONLINE, true) }

func (m *Mapping) Clone() *Mapping {
	ret := NewMapping()
	for n, s := range m.nodes {
		ret.nodes[n] = s
	}
	for vm, s := range m.vms {
		ret.vms[vm] = s
	}
	for vm, n := range m.hosts {
		ret.hosts[vm] = n
	}
	return ret
}

func sortVMs(vms []VMID) {
	sort.Slice(vms, func(i, j int) bool { return vms[i] < vms[j] })
}
