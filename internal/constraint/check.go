package constraint

import (
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/pkg/errors"
)

// CheckPlan verifies that a plan is applicable and that its result
// satisfies the constraints. Continuous constraints are checked along the
// plan as well.
func CheckPlan(p *plan.ReconfigurationPlan, cstrs []SatConstraint) error {
	res, err := p.Result()
	if err != nil {
		return errors.Wrap(err, "plan is not applicable")
	}
	for _, c := range cstrs {
		if !c.IsSatisfied(res) {
			return errors.Errorf("%s is not satisfied by the resulting model", c.Name())
		}
		if !c.IsContinuous() {
			continue
		}
		if err := checkContinuous(p, c); err != nil {
			return err
		}
	}
	return nil
}

func checkContinuous(p *plan.ReconfigurationPlan, c SatConstraint) error {
	switch c.Kind() {
	case ROOT:
		for _, vm := range c.InvolvedVMs() {
			if a, ok := p.ActionOnVM(vm); ok {
				return errors.Errorf("root VM %s is the subject of %s", vm, a)
			}
		}
	case SPREAD:
		return checkContinuousSpread(p, c.InvolvedVMs())
	case QUARANTINE:
		return checkQuarantine(p, c.InvolvedNodes())
	}
	return nil
}

// checkQuarantine rejects any VM crossing the border of the nodes.
func checkQuarantine(p *plan.ReconfigurationPlan, nodes []model.NodeID) error {
	zone := make(map[model.NodeID]bool, len(nodes))
	for _, n := range nodes {
		zone[n] = true
	}
	for _, a := range p.Actions() {
		switch a.Kind {
		case plan.MigrateVM, plan.ResumeVM:
			if a.Node != a.Dst && (zone[a.Node] || zone[a.Dst]) {
				return errors.Errorf("%s crosses the quarantine", a)
			}
		case plan.BootVM:
			if zone[a.Node] {
				return errors.Errorf("%s arrives in the quarantine", a)
			}
		}
	}
	return nil
}

// checkContinuousSpread makes sure a VM only arrives on a node once every
// other VM of the group hosted there left.
func checkContinuousSpread(p *plan.ReconfigurationPlan, vms []model.VMID) error {
	src := p.Origin().Mapping()
	for _, vm := range vms {
		a, ok := p.ActionOnVM(vm)
		if !ok {
			continue
		}
		var dst model.NodeID
		switch a.Kind {
		case plan.MigrateVM, plan.ResumeVM:
			dst = a.Dst
		case plan.BootVM:
			dst = a.Node
		default:
			continue
		}
		for _, other := range vms {
			if other == vm || !src.IsRunning(other) {
				continue
			}
			if host, _ := src.VMLocation(other); host != dst {
				continue
			}
			leave, ok := p.ActionOnVM(other)
			if !ok || leave.Kind == plan.BootVM || leave.End > a.Start {
				return errors.Errorf("%s arrives on %s at %d while %s is still there", vm, dst, a.Start, other)
			}
		}
	}
	return nil
}
