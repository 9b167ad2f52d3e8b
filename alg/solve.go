package alg

import (
	"context"
	"time"

	"github.com/amsen20/reconf/internal/constraint"
	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/amsen20/reconf/statistics"
)

// Instance is what to reconfigure: a source model, the constraints to
// satisfy and the objective, MinMTTR when nil.
type Instance struct {
	Model       *model.Model
	Constraints []constraint.SatConstraint
	Objective   Objective
}

type Statistics struct {
	NbNodes       int
	NbVMs         int
	NbConstraints int
	Horizon       int
	BuildDuration time.Duration
	SolveDuration time.Duration
	Nodes         int
	Backtracks    int
	Fails         int
	Restarts      int
	Solutions     []cp.SolutionStat
	LimitReached  bool
}

type Result struct {
	Plan      *plan.ReconfigurationPlan
	Status    cp.Status
	Objective int
	Stats     Statistics
}

// Solve computes a reconfiguration plan. The status tells whether the plan
// is optimal, only feasible because a limit was reached, or why there is
// none.
func Solve(ctx context.Context, params Parameters, inst Instance) (*Result, error) {
	started := time.Now()
	p, err := NewProblem(params, inst)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Status: cp.Infeasible,
		Stats: Statistics{
			NbNodes:       len(p.nodes),
			NbVMs:         len(p.vms),
			NbConstraints: len(inst.Constraints),
			Horizon:       p.horizon,
			BuildDuration: time.Since(started),
		},
	}
	statistics.Change("problems", 1)

	if p.infeasible {
		log.Info().Msgf("problem with %d nodes and %d VMs is infeasible", len(p.nodes), len(p.vms))
		statistics.Change("infeasible", 1)
		return res, nil
	}

	s := p.solver
	s.SetLimits(cp.Limits{
		Time:          params.TimeLimit,
		Backtracks:    params.MaxBacktracks,
		FirstSolution: !params.Optimize,
	})
	out := s.Solve(ctx)

	res.Status = out.Status
	res.Objective = out.Objective
	res.Stats.SolveDuration = out.Stats.Duration
	res.Stats.Nodes = out.Stats.Nodes
	res.Stats.Backtracks = out.Stats.Backtracks
	res.Stats.Fails = out.Stats.Fails
	res.Stats.Restarts = out.Stats.Restarts
	res.Stats.Solutions = out.Stats.Solutions
	res.Stats.LimitReached = out.Stats.Limit

	statistics.Change("nodes", out.Stats.Nodes)
	statistics.Change("backtracks", out.Stats.Backtracks)
	statistics.Change("restarts", out.Stats.Restarts)
	statistics.Change("solutions", len(out.Stats.Solutions))

	if out.Solution == nil {
		log.Info().Msgf("no plan: %s after %d nodes and %d backtracks", out.Status, out.Stats.Nodes, out.Stats.Backtracks)
		if out.Status == cp.Infeasible {
			statistics.Change("infeasible", 1)
		}
		return res, nil
	}

	res.Plan, err = p.decode(out.Solution)
	if err != nil {
		return nil, err
	}
	statistics.Change("actions", res.Plan.Size())
	log.Info().Msgf(
		"%s plan with %d actions, cost %d, duration %d (%d nodes, %d backtracks, %d restarts, %v)",
		out.Status, res.Plan.Size(), out.Objective, res.Plan.Duration(),
		out.Stats.Nodes, out.Stats.Backtracks, out.Stats.Restarts, out.Stats.Duration,
	)
	return res, nil
}
