package partition

import (
	"context"
	"runtime"
	"time"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/plan"
	"golang.org/x/sync/errgroup"
)

// Result is the merged result along with the result of every part, in the
// order of the parts.
type Result struct {
	alg.Result
	Parts []*alg.Result
}

// Solve splits the instance and solves the parts.
func Solve(ctx context.Context, params alg.Parameters, inst alg.Instance, splitter Splitter, workers int) (*Result, error) {
	parts, err := splitter.Split(inst)
	if err != nil {
		return nil, err
	}
	return SolveParts(ctx, params, inst.Model, parts, workers)
}

// SolveParts runs one solver per part on at most workers goroutines,
// runtime.NumCPU() when workers is not positive, and merges the plans over
// origin. The merged result is infeasible as soon as one part is, unknown
// when a part ended without a solution, optimal when every part is.
func SolveParts(ctx context.Context, params alg.Parameters, origin *model.Model, parts []Part, workers int) (*Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	started := time.Now()

	results := make([]*alg.Result, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range parts {
		i := i
		g.Go(func() error {
			partParams := params
			if params.Durations != nil {
				partParams.Durations = params.Durations.Clone()
			}
			res, err := alg.Solve(gctx, partParams, alg.Instance{
				Model:       parts[i].Instance.Model,
				Constraints: parts[i].Instance.Constraints,
			})
			if err != nil {
				log.Err(err).Msgf("%s could not be solved", parts[i].Name)
				return err
			}
			log.Debug().Msgf("%s: %s", parts[i].Name, res.Status)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := merge(origin, results)
	if err != nil {
		return nil, err
	}
	merged.Stats.SolveDuration = time.Since(started)
	return merged, nil
}

func merge(origin *model.Model, results []*alg.Result) (*Result, error) {
	res := &Result{Parts: results}
	res.Status = cp.Optimal
	for _, r := range results {
		switch {
		case r.Status == cp.Infeasible:
			res.Status = cp.Infeasible
		case r.Status == cp.Unknown && res.Status != cp.Infeasible:
			res.Status = cp.Unknown
		case r.Status == cp.Feasible && res.Status == cp.Optimal:
			res.Status = cp.Feasible
		}
		res.Objective += r.Objective
		res.Stats.NbNodes += r.Stats.NbNodes
		res.Stats.NbVMs += r.Stats.NbVMs
		res.Stats.NbConstraints += r.Stats.NbConstraints
		res.Stats.Nodes += r.Stats.Nodes
		res.Stats.Backtracks += r.Stats.Backtracks
		res.Stats.Fails += r.Stats.Fails
		res.Stats.Restarts += r.Stats.Restarts
		res.Stats.LimitReached = res.Stats.LimitReached || r.Stats.LimitReached
		if r.Stats.Horizon > res.Stats.Horizon {
			res.Stats.Horizon = r.Stats.Horizon
		}
		if r.Stats.BuildDuration > res.Stats.BuildDuration {
			res.Stats.BuildDuration = r.Stats.BuildDuration
		}
	}
	if res.Status == cp.Infeasible || res.Status == cp.Unknown {
		return res, nil
	}

	res.Plan = plan.NewReconfigurationPlan(origin)
	for _, r := range results {
		for _, a := range r.Plan.Actions() {
			if !res.Plan.Add(a) {
				return nil, &alg.InconsistencyError{Reason: "two parts act on the subject of " + a.String()}
			}
		}
	}
	return res, nil
}
