package model

// Attributes stores integer attributes on VMs and nodes, for example
// per action durations.
type Attributes struct {
	vms   map[VMID]map[string]int
	nodes map[NodeID]map[string]int
}

func NewAttributes() *Attributes {
	return &Attributes{
		vms:   make(map[VMID]map[string]int),
		nodes: make(map[NodeID]map[string]int),
	}
}

func (a *Attributes) PutVM(vm VMID, key string, value int) {
	if a.vms[vm] == nil {
		a.vms[vm] = make(map[string]int)
	}
	a.vms[vm][key] = value
}

func (a *Attributes) PutNode(n NodeID, key string, value int) {
	if a.nodes[n] == nil {
		a.nodes[n] = make(map[string]int)
	}
	a.nodes[n][key] = value
}

func (a *Attributes) GetVM(vm VMID, key string) (int, bool) {
	v, ok := a.vms[vm][key]
	return v, ok
}

func (a *Attributes) GetNode(n NodeID, key string) (int, bool) {
	v, ok := a.nodes[n][key]
	return v, ok
}

func (a *Attributes) VMKeys(vm VMID) map[string]int {
	return a.vms[vm]
}

func (a *Attributes) NodeKeys(n NodeID) map[string]int {
	return a.nodes[n]
}

func (a *Attributes) Clone() *Attributes {
	ret := NewAttributes()
	for vm, kv := range a.vms {
		for k, v := range kv {
			ret.PutVM(vm, k, v)
		}
	}
	for n, kv := range a.nodes {
		for k, v := range kv {
			ret.PutNode(n, k, v)
		}
	}
	return ret
}
