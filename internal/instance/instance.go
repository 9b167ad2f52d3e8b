// Package instance reads and writes problem instances. Files are YAML, JSON
// being accepted as a subset of it.
package instance

import (
	"bytes"
	"os"
	"sort"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/constraint"
	"github.com/amsen20/reconf/internal/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type ResourceDesc struct {
	Name               string `yaml:"name" json:"name"`
	DefaultCapacity    int    `yaml:"default_capacity,omitempty" json:"default_capacity,omitempty"`
	DefaultConsumption int    `yaml:"default_consumption,omitempty" json:"default_consumption,omitempty"`
}

type NodeDesc struct {
	ID         int            `yaml:"id" json:"id"`
	Offline    bool           `yaml:"offline,omitempty" json:"offline,omitempty"`
	Capacities map[string]int `yaml:"capacities,omitempty" json:"capacities,omitempty"`
	Attributes map[string]int `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

type VMDesc struct {
	ID           int            `yaml:"id" json:"id"`
	State        string         `yaml:"state" json:"state"`
	Host         *int           `yaml:"host,omitempty" json:"host,omitempty"`
	Consumptions map[string]int `yaml:"consumptions,omitempty" json:"consumptions,omitempty"`
	Attributes   map[string]int `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// ConstraintDesc is a constraint by kind. Resource and Amount are only read
// by the kinds that need them.
type ConstraintDesc struct {
	Kind       string `yaml:"kind" json:"kind"`
	VMs        []int  `yaml:"vms,omitempty" json:"vms,omitempty"`
	Nodes      []int  `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	Resource   string `yaml:"resource,omitempty" json:"resource,omitempty"`
	Amount     int    `yaml:"amount,omitempty" json:"amount,omitempty"`
	Continuous *bool  `yaml:"continuous,omitempty" json:"continuous,omitempty"`
}

type Instance struct {
	Resources   []ResourceDesc   `yaml:"resources" json:"resources"`
	Nodes       []NodeDesc       `yaml:"nodes" json:"nodes"`
	VMs         []VMDesc         `yaml:"vms" json:"vms"`
	Constraints []ConstraintDesc `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Objective   string           `yaml:"objective,omitempty" json:"objective,omitempty"`
}

func Load(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read instance %s", path)
	}
	return Parse(data)
}

// Parse decodes an instance, rejecting unknown fields.
func Parse(data []byte) (*Instance, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	inst := &Instance{}
	if err := decoder.Decode(inst); err != nil {
		return nil, errors.Wrap(err, "could not decode instance")
	}
	return inst, nil
}

func (inst *Instance) Marshal() ([]byte, error) {
	return yaml.Marshal(inst)
}

// Build creates the model and the constraints of the instance.
func (inst *Instance) Build() (alg.Instance, error) {
	m := model.NewModel()
	resources := make(map[string]*model.ShareableResource, len(inst.Resources))
	for _, rd := range inst.Resources {
		rc := model.NewShareableResource(rd.Name, rd.DefaultCapacity, rd.DefaultConsumption)
		if !m.AddResource(rc) {
			return alg.Instance{}, errors.Errorf("resource %s is declared twice", rd.Name)
		}
		resources[rd.Name] = rc
	}
	resource := func(name string) (*model.ShareableResource, error) {
		rc, ok := resources[name]
		if !ok {
			return nil, errors.Errorf("unknown resource %s", name)
		}
		return rc, nil
	}

	mapping := m.Mapping()
	for _, nd := range inst.Nodes {
		n := model.NodeID(nd.ID)
		if mapping.ContainsNode(n) {
			return alg.Instance{}, errors.Errorf("node %s is declared twice", n)
		}
		mapping.AddOnlineNode(n)
		for name, amount := range nd.Capacities {
			rc, err := resource(name)
			if err != nil {
				return alg.Instance{}, errors.Wrapf(err, "node %s", n)
			}
			rc.SetCapacity(n, amount)
		}
		for k, v := range nd.Attributes {
			m.Attributes().PutNode(n, k, v)
		}
	}

	for _, vd := range inst.VMs {
		vm := model.VMID(vd.ID)
		if m.ContainsVM(vm) {
			return alg.Instance{}, errors.Errorf("VM %s is declared twice", vm)
		}
		state, err := model.ParseVMState(vd.State)
		if err != nil {
			return alg.Instance{}, errors.Wrapf(err, "VM %s", vm)
		}
		if err := place(mapping, vm, state, vd.Host); err != nil {
			return alg.Instance{}, err
		}
		m.DeclareVM(vm)
		for name, amount := range vd.Consumptions {
			rc, err := resource(name)
			if err != nil {
				return alg.Instance{}, errors.Wrapf(err, "VM %s", vm)
			}
			rc.SetConsumption(vm, amount)
		}
		for k, v := range vd.Attributes {
			m.Attributes().PutVM(vm, k, v)
		}
	}

	for _, nd := range inst.Nodes {
		if nd.Offline && !mapping.AddOfflineNode(model.NodeID(nd.ID)) {
			return alg.Instance{}, errors.Errorf("offline node %s hosts VMs", model.NodeID(nd.ID))
		}
	}

	res := alg.Instance{Model: m}
	for i, cd := range inst.Constraints {
		c, err := cd.build()
		if err != nil {
			return alg.Instance{}, errors.Wrapf(err, "constraint %d", i)
		}
		res.Constraints = append(res.Constraints, c)
	}

	switch inst.Objective {
	case "", "minMTTR":
		res.Objective = alg.NewMinMTTR()
	default:
		return alg.Instance{}, errors.Errorf("unknown objective %s", inst.Objective)
	}
	return res, nil
}

func place(mapping *model.Mapping, vm model.VMID, state model.VMState, host *int) error {
	switch state {
	case model.RUNNING, model.SLEEPING:
		if host == nil {
			return errors.Errorf("%s VM %s has no host", state, vm)
		}
		var ok bool
		if state == model.RUNNING {
			ok = mapping.AddRunningVM(vm, model.NodeID(*host))
		} else {
			ok = mapping.AddSleepingVM(vm, model.NodeID(*host))
		}
		if !ok {
			return errors.Errorf("VM %s can not be hosted on %s", vm, model.NodeID(*host))
		}
	case model.READY:
		mapping.AddReadyVM(vm)
	case model.INIT:
	default:
		return errors.Errorf("VM %s can not start %s", vm, state)
	}
	return nil
}

func (cd ConstraintDesc) build() (constraint.SatConstraint, error) {
	kind, err := constraint.ParseKind(cd.Kind)
	if err != nil {
		return nil, err
	}
	vms := make([]model.VMID, 0, len(cd.VMs))
	for _, id := range cd.VMs {
		vms = append(vms, model.VMID(id))
	}
	nodes := make([]model.NodeID, 0, len(cd.Nodes))
	for _, id := range cd.Nodes {
		nodes = append(nodes, model.NodeID(id))
	}

	var c constraint.SatConstraint
	switch kind {
	case constraint.RUNNING:
		c = constraint.NewRunning(vms...)
	case constraint.READY:
		c = constraint.NewReady(vms...)
	case constraint.SLEEPING:
		c = constraint.NewSleeping(vms...)
	case constraint.KILLED:
		c = constraint.NewKilled(vms...)
	case constraint.ONLINE:
		c = constraint.NewOnline(nodes...)
	case constraint.OFFLINE:
		c = constraint.NewOffline(nodes...)
	case constraint.ROOT:
		c = constraint.NewRoot(vms...)
	case constraint.BAN:
		c = constraint.NewBan(vms, nodes)
	case constraint.FENCE:
		c = constraint.NewFence(vms, nodes)
	case constraint.SPREAD:
		c = constraint.NewSpread(vms...)
	case constraint.SINGLE_RESOURCE_CAPACITY:
		c = constraint.NewSingleResourceCapacity(nodes, cd.Resource, cd.Amount)
	case constraint.MAX_ONLINE:
		c = constraint.NewMaxOnline(nodes, cd.Amount)
	case constraint.PRESERVE:
		if cd.Amount < 0 {
			return nil, errors.Errorf("preserve: negative amount %d", cd.Amount)
		}
		c = constraint.NewPreserve(vms, cd.Resource, cd.Amount)
	case constraint.QUARANTINE:
		c = constraint.NewQuarantine(nodes...)
	}
	if cd.Continuous != nil && !c.SetContinuous(*cd.Continuous) {
		return nil, errors.Errorf("%s does not support continuous=%t", c.Name(), *cd.Continuous)
	}
	return c, nil
}

// FromModel describes a model and its constraints. Capacities and
// consumptions equal to the resource defaults are left out.
func FromModel(m *model.Model, cstrs []constraint.SatConstraint) *Instance {
	inst := &Instance{}
	for _, rc := range m.Resources() {
		inst.Resources = append(inst.Resources, ResourceDesc{
			Name:               rc.Name(),
			DefaultCapacity:    rc.DefaultCapacity(),
			DefaultConsumption: rc.DefaultConsumption(),
		})
	}

	mapping := m.Mapping()
	for _, n := range m.Nodes() {
		nd := NodeDesc{ID: int(n), Offline: mapping.IsOffline(n)}
		for _, rc := range m.Resources() {
			if c := rc.Capacity(n); c != rc.DefaultCapacity() {
				if nd.Capacities == nil {
					nd.Capacities = make(map[string]int)
				}
				nd.Capacities[rc.Name()] = c
			}
		}
		nd.Attributes = copyAttributes(m.Attributes().NodeKeys(n))
		inst.Nodes = append(inst.Nodes, nd)
	}

	for _, vm := range m.VMs() {
		state := mapping.VMState(vm)
		vd := VMDesc{ID: int(vm), State: state.String()}
		if host, ok := mapping.VMLocation(vm); ok {
			h := int(host)
			vd.Host = &h
		}
		for _, rc := range m.Resources() {
			if c := rc.Consumption(vm); c != rc.DefaultConsumption() {
				if vd.Consumptions == nil {
					vd.Consumptions = make(map[string]int)
				}
				vd.Consumptions[rc.Name()] = c
			}
		}
		vd.Attributes = copyAttributes(m.Attributes().VMKeys(vm))
		inst.VMs = append(inst.VMs, vd)
	}

	for _, c := range cstrs {
		inst.Constraints = append(inst.Constraints, describe(c))
	}
	return inst
}

func copyAttributes(attrs map[string]int) map[string]int {
	if len(attrs) == 0 {
		return nil
	}
	res := make(map[string]int, len(attrs))
	for k, v := range attrs {
		res[k] = v
	}
	return res
}

func describe(c constraint.SatConstraint) ConstraintDesc {
	cd := ConstraintDesc{Kind: c.Kind().String()}
	for _, vm := range c.InvolvedVMs() {
		cd.VMs = append(cd.VMs, int(vm))
	}
	for _, n := range c.InvolvedNodes() {
		cd.Nodes = append(cd.Nodes, int(n))
	}
	sort.Ints(cd.VMs)
	sort.Ints(cd.Nodes)
	switch v := c.(type) {
	case *constraint.SingleResourceCapacity:
		cd.Resource = v.Resource
		cd.Amount = v.Amount
	case *constraint.MaxOnline:
		cd.Amount = v.Amount
	case *constraint.Preserve:
		cd.Resource = v.Resource
		cd.Amount = v.Amount
	case *constraint.Spread:
		continuous := v.IsContinuous()
		cd.Continuous = &continuous
	}
	return cd
}
