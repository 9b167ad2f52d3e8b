// Because it is a testing package, no errors are returned,
// all problems cause a panic.

package testing_tool

import (
	"fmt"

	"github.com/amsen20/reconf/internal/model"
)

const (
	CPU    = "cpu"
	Memory = "mem"
)

type NodeDesc struct {
	Name    string
	Cpu     int
	Memory  int
	Offline bool
}

// VMDesc describes a VM. An empty Host with the RUNNING or SLEEPING state is
// a mistake, a VM without State is only declared.
type VMDesc struct {
	Name   string
	Cpu    int
	Memory int
	State  model.VMState
	Host   string
}

type Builder struct {
	model     *model.Model
	cpu       *model.ShareableResource
	mem       *model.ShareableResource
	nodes     map[string]model.NodeID
	vms       map[string]model.VMID
	nodeName  map[model.NodeID]string
	vmName    map[model.VMID]string
	lastVMId  int
	lastNodId int
}

func New() *Builder {
	builder := &Builder{
		model:    model.NewModel(),
		cpu:      model.NewShareableResource(CPU, 0, 0),
		mem:      model.NewShareableResource(Memory, 0, 0),
		nodes:    make(map[string]model.NodeID),
		vms:      make(map[string]model.VMID),
		nodeName: make(map[model.NodeID]string),
		vmName:   make(map[model.VMID]string),
	}
	builder.model.AddResource(builder.cpu)
	builder.model.AddResource(builder.mem)
	return builder
}

func (builder *Builder) ImportNodes(nodesDesc []*NodeDesc) {
	for _, nodeDesc := range nodesDesc {
		if _, ok := builder.nodes[nodeDesc.Name]; ok {
			panic(fmt.Sprintf("there is already a node named %s", nodeDesc.Name))
		}
		id := model.NodeID(builder.lastNodId)
		builder.lastNodId += 1

		builder.nodes[nodeDesc.Name] = id
		builder.nodeName[id] = nodeDesc.Name
		builder.cpu.SetCapacity(id, nodeDesc.Cpu)
		builder.mem.SetCapacity(id, nodeDesc.Memory)
		if nodeDesc.Offline {
			builder.model.Mapping().AddOfflineNode(id)
		} else {
			builder.model.Mapping().AddOnlineNode(id)
		}
	}
}

func (builder *Builder) ImportVMs(vmsDesc []*VMDesc) {
	for _, vmDesc := range vmsDesc {
		if _, ok := builder.vms[vmDesc.Name]; ok {
			panic(fmt.Sprintf("there is already a VM named %s", vmDesc.Name))
		}
		id := model.VMID(builder.lastVMId)
		builder.lastVMId += 1

		builder.vms[vmDesc.Name] = id
		builder.vmName[id] = vmDesc.Name
		builder.cpu.SetConsumption(id, vmDesc.Cpu)
		builder.mem.SetConsumption(id, vmDesc.Memory)

		mapping := builder.model.Mapping()
		var ok bool
		switch vmDesc.State {
		case model.RUNNING:
			ok = mapping.AddRunningVM(id, builder.Node(vmDesc.Host))
		case model.SLEEPING:
			ok = mapping.AddSleepingVM(id, builder.Node(vmDesc.Host))
		case model.READY:
			mapping.AddReadyVM(id)
			ok = true
		default:
			builder.model.DeclareVM(id)
			ok = true
		}
		if !ok {
			panic(fmt.Sprintf("could not place %s on %s", vmDesc.Name, vmDesc.Host))
		}
	}
}

func (builder *Builder) Model() *model.Model {
	return builder.model
}

func (builder *Builder) Node(name string) model.NodeID {
	id, ok := builder.nodes[name]
	if !ok {
		panic(fmt.Sprintf("there is no node named %s", name))
	}
	return id
}

func (builder *Builder) VM(name string) model.VMID {
	id, ok := builder.vms[name]
	if !ok {
		panic(fmt.Sprintf("there is no VM named %s", name))
	}
	return id
}

func (builder *Builder) VMs(names ...string) []model.VMID {
	ids := make([]model.VMID, 0, len(names))
	for _, name := range names {
		ids = append(ids, builder.VM(name))
	}
	return ids
}

func (builder *Builder) Nodes(names ...string) []model.NodeID {
	ids := make([]model.NodeID, 0, len(names))
	for _, name := range names {
		ids = append(ids, builder.Node(name))
	}
	return ids
}

// Expect panics unless every node of want runs exactly the listed VMs.
// Nodes missing from want are not checked.
func (builder *Builder) Expect(got *model.Model, want map[string][]string) {
	for nodeName, wantVMs := range want {
		node := builder.Node(nodeName)
		gotVMs := make([]string, 0)
		for _, vm := range got.Mapping().RunningVMsOn(node) {
			gotVMs = append(gotVMs, builder.vmName[vm])
		}

		wantSorted := append([]string{}, wantVMs...)
		sortNames(wantSorted)
		sortNames(gotVMs)
		if len(gotVMs) != len(wantSorted) {
			panic(fmt.Errorf("node %s runs %v, wanted %v", nodeName, gotVMs, wantSorted))
		}
		for i := range wantSorted {
			if gotVMs[i] != wantSorted[i] {
				panic(fmt.Errorf("node %s runs %v, wanted %v", nodeName, gotVMs, wantSorted))
			}
		}
	}
}
