package cp

import (
	"context"
	"math"
	"time"
)

type Status int

const (
	Unknown Status = iota
	Feasible
	Optimal
	Infeasible
)

func (st Status) String() string {
	switch st {
	case Feasible:
		return "FEASIBLE"
	case Optimal:
		return "OPTIMAL"
	case Infeasible:
		return "INFEASIBLE"
	}
	return "UNKNOWN"
}

// Limits bounds the search. Zero values mean no limit.
type Limits struct {
	Time       time.Duration
	Backtracks int
	Nodes      int
	// FirstSolution stops at the first solution even with an objective.
	FirstSolution bool
}

// RestartPolicy restarts the search from the root once the number of
// backtracks since the last restart reaches the cutoff. The cutoff starts at
// Base and is multiplied by Factor after each restart.
type RestartPolicy struct {
	Base   int
	Factor float64
	// Max caps the number of restarts, negative means unbounded.
	Max int

	cutoff float64
}

func NewGeometricRestarts(base int, factor float64, max int) *RestartPolicy {
	if base < 1 {
		base = 1
	}
	if factor < 1 {
		factor = 1
	}
	return &RestartPolicy{Base: base, Factor: factor, Max: max}
}

type SolutionStat struct {
	Objective  int
	Elapsed    time.Duration
	Nodes      int
	Backtracks int
}

type Stats struct {
	Nodes      int
	Backtracks int
	Fails      int
	Restarts   int
	Solutions  []SolutionStat
	Duration   time.Duration
	// Limit is set when a limit interrupted the search.
	Limit bool
}

// Solution is a snapshot of every variable of the solver.
type Solution struct {
	values []int
}

// Value returns the value of v in the solution, its lower bound when v was
// not instantiated.
func (sol *Solution) Value(v *IntVar) int {
	return sol.values[v.id]
}

type Result struct {
	Status    Status
	Solution  *Solution
	Objective int
	Stats     Stats
}

func (s *Solver) snapshot() *Solution {
	sol := &Solution{values: make([]int, len(s.vars))}
	for i, v := range s.vars {
		sol.values[i] = v.lb
	}
	return sol
}

// completion fixes whatever the user strategy left open.
func (s *Solver) completion() Strategy {
	return &IntStrategy{Vars: s.vars, Var: s.InputOrder(), Value: MinValue}
}

// Solve explores the search tree with binary branching. With an objective
// every solution tightens the upper bound of the objective to best-1.
func (s *Solver) Solve(ctx context.Context) (res Result) {
	start := time.Now()
	res.Status = Unknown
	defer func() {
		s.stats.Duration = time.Since(start)
		res.Stats = s.stats
	}()

	var deadline time.Time
	if s.limits.Time > 0 {
		deadline = start.Add(s.limits.Time)
	}
	if s.restart != nil {
		s.restart.cutoff = float64(s.restart.Base)
	}

	phases := []Phase{{Name: "completion", Strategy: s.completion()}}
	if s.strategy != nil {
		phases = append([]Phase{{Name: "user", Strategy: s.strategy}}, phases...)
	}
	strategy := s.NewSequence(phases...)

	exhausted := false
	if err := s.Propagate(); err != nil {
		exhausted = true
	}

	for !exhausted {
		if s.limitReached(ctx, deadline) {
			s.stats.Limit = true
			break
		}
		if s.restartDue() {
			s.doRestart()
			if err := s.Propagate(); err != nil {
				exhausted = true
				break
			}
		}

		d, ok := strategy.Next()
		if len(s.queue) > 0 {
			// a phase hook posted something, reach the fixpoint first
			if err := s.Propagate(); err != nil {
				exhausted = !s.backtrack()
			}
			continue
		}

		if !ok {
			sol := s.snapshot()
			res.Solution = sol
			stat := SolutionStat{
				Elapsed:    time.Since(start),
				Nodes:      s.stats.Nodes,
				Backtracks: s.stats.Backtracks,
			}
			if s.objective == nil {
				s.stats.Solutions = append(s.stats.Solutions, stat)
				res.Status = Feasible
				return res
			}
			res.Objective = sol.Value(s.objective)
			stat.Objective = res.Objective
			s.stats.Solutions = append(s.stats.Solutions, stat)
			if s.limits.FirstSolution {
				res.Status = Feasible
				return res
			}
			s.bound = res.Objective - 1
			s.hasBound = true
			exhausted = !s.backtrack()
			continue
		}

		d = d.normalize()
		s.stats.Nodes++
		s.trail.push()
		s.stack = append(s.stack, d)
		err := d.apply()
		if err == nil {
			err = s.Propagate()
		}
		if err != nil {
			exhausted = !s.backtrack()
		}
	}

	switch {
	case exhausted && res.Solution == nil:
		res.Status = Infeasible
	case exhausted:
		res.Status = Optimal
	case res.Solution != nil:
		res.Status = Feasible
	}
	return res
}

// backtrack pops decisions until one can be refuted in its parent world.
func (s *Solver) backtrack() bool {
	for len(s.stack) > 0 {
		last := len(s.stack) - 1
		d := s.stack[last]
		s.stack = s.stack[:last]
		s.clearQueue()
		s.trail.pop()
		s.stats.Backtracks++
		s.sinceReset++
		if err := d.refute(); err != nil {
			continue
		}
		if err := s.Propagate(); err != nil {
			continue
		}
		return true
	}
	return false
}

func (s *Solver) restartDue() bool {
	r := s.restart
	if r == nil || len(s.stack) == 0 {
		return false
	}
	if r.Max >= 0 && s.stats.Restarts >= r.Max {
		return false
	}
	return float64(s.sinceReset) >= r.cutoff
}

func (s *Solver) doRestart() {
	s.clearQueue()
	for len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
		s.trail.pop()
	}
	s.stats.Restarts++
	s.sinceReset = 0
	s.restart.cutoff = math.Ceil(s.restart.cutoff * s.restart.Factor)
}

func (s *Solver) limitReached(ctx context.Context, deadline time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	if !deadline.IsZero() && time.Now().After(deadline) {
		return true
	}
	if s.limits.Backtracks > 0 && s.stats.Backtracks >= s.limits.Backtracks {
		return true
	}
	if s.limits.Nodes > 0 && s.stats.Nodes >= s.limits.Nodes {
		return true
	}
	return false
}
