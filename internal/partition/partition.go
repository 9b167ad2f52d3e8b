// Package partition splits a reconfiguration problem into independent
// sub-problems and solves them concurrently.
package partition

import (
	"fmt"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/constraint"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/logging"
	"github.com/pkg/errors"
)

var log = logging.Get()

// Part is one sub-problem. Its model only holds its own nodes and VMs.
type Part struct {
	Name     string
	Instance alg.Instance
}

type Splitter interface {
	Split(inst alg.Instance) ([]Part, error)
}

// FixedSize groups the nodes by chunks of Size, in increasing id order.
// Hosted VMs follow their host, the other ones are spread round-robin.
// A constraint must fit entirely in one part unless it has a splitter.
type FixedSize struct {
	Size int
}

func NewFixedSize(size int) *FixedSize {
	return &FixedSize{Size: size}
}

func (f *FixedSize) Split(inst alg.Instance) ([]Part, error) {
	if f.Size <= 0 {
		return nil, errors.Errorf("invalid partition size %d", f.Size)
	}
	src := inst.Model
	mapping := src.Mapping()
	nodes := src.Nodes()

	nbParts := (len(nodes) + f.Size - 1) / f.Size
	if nbParts <= 1 {
		return []Part{{Name: "part-0", Instance: alg.Instance{Model: src, Constraints: inst.Constraints}}}, nil
	}

	nodeParts := make([][]model.NodeID, nbParts)
	partOfNode := make(map[model.NodeID]int, len(nodes))
	for i, n := range nodes {
		nodeParts[i/f.Size] = append(nodeParts[i/f.Size], n)
		partOfNode[n] = i / f.Size
	}

	vmParts := make([][]model.VMID, nbParts)
	partOfVM := make(map[model.VMID]int)
	next := 0
	for _, vm := range src.VMs() {
		part := next
		if host, ok := mapping.VMLocation(vm); ok {
			part = partOfNode[host]
		} else {
			next = (next + 1) % nbParts
		}
		vmParts[part] = append(vmParts[part], vm)
		partOfVM[vm] = part
	}

	cstrParts := make([][]constraint.SatConstraint, nbParts)
	for _, c := range inst.Constraints {
		if split, ok := splitters[c.Kind()]; ok {
			pieces, err := split(c, partOfNode, partOfVM)
			if err != nil {
				return nil, err
			}
			for part, piece := range pieces {
				cstrParts[part] = append(cstrParts[part], piece)
			}
			continue
		}
		part, err := locate(c, partOfNode, partOfVM)
		if err != nil {
			return nil, err
		}
		if part < 0 {
			log.Debug().Msgf("%s involves nothing, ignored", c)
			continue
		}
		cstrParts[part] = append(cstrParts[part], c)
	}

	parts := make([]Part, nbParts)
	for i := range parts {
		parts[i] = Part{
			Name: fmt.Sprintf("part-%d", i),
			Instance: alg.Instance{
				Model:       subModel(src, nodeParts[i], vmParts[i]),
				Constraints: cstrParts[i],
			},
		}
	}
	log.Info().Msgf("split %d nodes and %d VMs into %d parts", len(nodes), len(src.VMs()), nbParts)
	return parts, nil
}

// locate returns the part of every element of the constraint, or -1 when
// the constraint has no element.
func locate(c constraint.SatConstraint, partOfNode map[model.NodeID]int, partOfVM map[model.VMID]int) (int, error) {
	part := -1
	check := func(p int, ok bool, what fmt.Stringer) error {
		if !ok {
			return errors.Errorf("%s: unknown element %s", c.Name(), what)
		}
		if part >= 0 && part != p {
			return errors.Errorf("%s spans the parts %d and %d", c.Name(), part, p)
		}
		part = p
		return nil
	}
	for _, n := range c.InvolvedNodes() {
		p, ok := partOfNode[n]
		if err := check(p, ok, n); err != nil {
			return -1, err
		}
	}
	for _, vm := range c.InvolvedVMs() {
		p, ok := partOfVM[vm]
		if err := check(p, ok, vm); err != nil {
			return -1, err
		}
	}
	return part, nil
}

// splitter restricts a constraint to each part holding some of its
// elements.
type splitter func(c constraint.SatConstraint, partOfNode map[model.NodeID]int, partOfVM map[model.VMID]int) (map[int]constraint.SatConstraint, error)

var splitters = map[constraint.Kind]splitter{
	constraint.QUARANTINE: splitQuarantine,
	constraint.PRESERVE:   splitPreserve,
}

func splitQuarantine(c constraint.SatConstraint, partOfNode map[model.NodeID]int, _ map[model.VMID]int) (map[int]constraint.SatConstraint, error) {
	nodes := make(map[int][]model.NodeID)
	for _, n := range c.InvolvedNodes() {
		part, ok := partOfNode[n]
		if !ok {
			return nil, errors.Errorf("%s: unknown element %s", c.Name(), n)
		}
		nodes[part] = append(nodes[part], n)
	}
	res := make(map[int]constraint.SatConstraint, len(nodes))
	for part, ns := range nodes {
		res[part] = constraint.NewQuarantine(ns...)
	}
	return res, nil
}

func splitPreserve(c constraint.SatConstraint, _ map[model.NodeID]int, partOfVM map[model.VMID]int) (map[int]constraint.SatConstraint, error) {
	pr := c.(*constraint.Preserve)
	vms := make(map[int][]model.VMID)
	for _, vm := range pr.InvolvedVMs() {
		part, ok := partOfVM[vm]
		if !ok {
			return nil, errors.Errorf("%s: unknown element %s", c.Name(), vm)
		}
		vms[part] = append(vms[part], vm)
	}
	res := make(map[int]constraint.SatConstraint, len(vms))
	for part, group := range vms {
		res[part] = constraint.NewPreserve(group, pr.Resource, pr.Amount)
	}
	return res, nil
}

func subModel(src *model.Model, nodes []model.NodeID, vms []model.VMID) *model.Model {
	m := model.NewModel()
	for _, rc := range src.Resources() {
		m.AddResource(rc.Clone())
	}

	srcMapping := src.Mapping()
	mapping := m.Mapping()
	attrs := m.Attributes()
	for _, n := range nodes {
		mapping.AddOnlineNode(n)
		for k, v := range src.Attributes().NodeKeys(n) {
			attrs.PutNode(n, k, v)
		}
	}
	for _, vm := range vms {
		host, _ := srcMapping.VMLocation(vm)
		switch srcMapping.VMState(vm) {
		case model.RUNNING:
			mapping.AddRunningVM(vm, host)
		case model.SLEEPING:
			mapping.AddSleepingVM(vm, host)
		case model.READY:
			mapping.AddReadyVM(vm)
		default:
			m.DeclareVM(vm)
		}
		for k, v := range src.Attributes().VMKeys(vm) {
			attrs.PutVM(vm, k, v)
		}
	}
	// nodes go offline once their VMs are placed
	for _, n := range nodes {
		if srcMapping.IsOffline(n) {
			mapping.AddOfflineNode(n)
		}
	}
	return m
}
