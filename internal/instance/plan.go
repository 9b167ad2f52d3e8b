package instance

import (
	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/plan"
	"gopkg.in/yaml.v3"
)

type ActionDesc struct {
	Kind  string `yaml:"kind" json:"kind"`
	VM    *int   `yaml:"vm,omitempty" json:"vm,omitempty"`
	Node  *int   `yaml:"node,omitempty" json:"node,omitempty"`
	Dst   *int   `yaml:"dst,omitempty" json:"dst,omitempty"`
	Start int    `yaml:"start" json:"start"`
	End   int    `yaml:"end" json:"end"`
}

// PlanDesc is the printable outcome of a solve.
type PlanDesc struct {
	Status     string       `yaml:"status" json:"status"`
	Objective  int          `yaml:"objective" json:"objective"`
	Duration   int          `yaml:"duration" json:"duration"`
	Actions    []ActionDesc `yaml:"actions" json:"actions"`
	Nodes      int          `yaml:"search_nodes" json:"search_nodes"`
	Backtracks int          `yaml:"backtracks" json:"backtracks"`
	Restarts   int          `yaml:"restarts" json:"restarts"`
	Solutions  int          `yaml:"solutions" json:"solutions"`
	SolveMs    int64        `yaml:"solve_ms" json:"solve_ms"`
}

func DescribeResult(res *alg.Result) *PlanDesc {
	desc := &PlanDesc{
		Status:     res.Status.String(),
		Objective:  res.Objective,
		Nodes:      res.Stats.Nodes,
		Backtracks: res.Stats.Backtracks,
		Restarts:   res.Stats.Restarts,
		Solutions:  len(res.Stats.Solutions),
		SolveMs:    res.Stats.SolveDuration.Milliseconds(),
		Actions:    []ActionDesc{},
	}
	if res.Plan == nil {
		return desc
	}
	desc.Duration = res.Plan.Duration()
	for _, a := range res.Plan.Actions() {
		desc.Actions = append(desc.Actions, describeAction(a))
	}
	return desc
}

func describeAction(a plan.Action) ActionDesc {
	ad := ActionDesc{Kind: a.Kind.String(), Start: a.Start, End: a.End}
	intPtr := func(v int) *int { return &v }
	if a.Kind.IsNodeAction() {
		ad.Node = intPtr(int(a.Node))
		return ad
	}
	ad.VM = intPtr(int(a.VM))
	switch a.Kind {
	case plan.ForgeVM:
	case plan.MigrateVM, plan.ResumeVM, plan.SuspendVM:
		ad.Node = intPtr(int(a.Node))
		ad.Dst = intPtr(int(a.Dst))
	default:
		ad.Node = intPtr(int(a.Node))
	}
	return ad
}

func (desc *PlanDesc) Marshal() ([]byte, error) {
	return yaml.Marshal(desc)
}
