package cp

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrContradiction is returned by domain operations and propagators when a
// domain becomes empty.
var ErrContradiction = errors.New("cp: contradiction")

// Propagator filters the domains of its variables. Propagate must be
// idempotent once it reached its fixpoint.
type Propagator interface {
	Vars() []*IntVar
	Propagate() error
}

type propRecord struct {
	p      Propagator
	queued bool
}

// Solver owns variables, propagators and the search state.
type Solver struct {
	vars  []*IntVar
	props []*propRecord
	queue []int

	trail trail

	strategy  Strategy
	objective *IntVar
	bound     int
	hasBound  bool

	restart *RestartPolicy
	limits  Limits

	stack      []Decision
	stats      Stats
	sinceReset int
}

func NewSolver() *Solver {
	return &Solver{}
}

func (s *Solver) newVar(name string, lb, ub int) *IntVar {
	v := &IntVar{
		s:     s,
		id:    len(s.vars),
		name:  name,
		lb:    lb,
		ub:    ub,
		size:  ub - lb + 1,
		stamp: -1,
	}
	s.vars = append(s.vars, v)
	return v
}

// NewIntVar creates a bounded variable over [lb, ub].
func (s *Solver) NewIntVar(name string, lb, ub int) *IntVar {
	if ub < lb {
		panic(fmt.Sprintf("cp: empty domain for %s: [%d,%d]", name, lb, ub))
	}
	return s.newVar(name, lb, ub)
}

// NewEnumVar creates a variable over the given values, holes allowed.
func (s *Solver) NewEnumVar(name string, values []int) *IntVar {
	if len(values) == 0 {
		panic(fmt.Sprintf("cp: empty domain for %s", name))
	}
	lb, ub := values[0], values[0]
	for _, x := range values {
		if x < lb {
			lb = x
		}
		if x > ub {
			ub = x
		}
	}
	v := s.newVar(name, lb, ub)
	v.offset = lb
	v.bits = make([]uint64, (ub-lb+64)/64)
	for _, x := range values {
		i := x - lb
		v.bits[i>>6] |= 1 << (uint(i) & 63)
	}
	v.size = popcount(v.bits)
	return v
}

// NewRangeEnumVar creates an enumerated variable over [lb, ub].
func (s *Solver) NewRangeEnumVar(name string, lb, ub int) *IntVar {
	if ub < lb {
		panic(fmt.Sprintf("cp: empty domain for %s: [%d,%d]", name, lb, ub))
	}
	v := s.newVar(name, lb, ub)
	v.offset = lb
	v.bits = newBitset(lb, ub)
	return v
}

func (s *Solver) NewConst(name string, x int) *IntVar {
	return s.newVar(name, x, x)
}

func (s *Solver) NewBoolVar(name string) *IntVar {
	return s.newVar(name, 0, 1)
}

func (s *Solver) NewStoredInt(x int) *StoredInt {
	return &StoredInt{s: s, val: x, stamp: -1}
}

func (s *Solver) Vars() []*IntVar {
	return s.vars
}

// Post registers a propagator and schedules it.
func (s *Solver) Post(p Propagator) {
	idx := len(s.props)
	s.props = append(s.props, &propRecord{p: p})
	for _, v := range p.Vars() {
		v.props = append(v.props, idx)
	}
	s.schedule(idx)
}

// PostLazy registers a propagator during the search. It stays posted across
// backtracks and restarts, and runs before the next decision is taken.
func (s *Solver) PostLazy(p Propagator) {
	s.Post(p)
}

func (s *Solver) schedule(idx int) {
	rec := s.props[idx]
	if rec.queued {
		return
	}
	rec.queued = true
	s.queue = append(s.queue, idx)
}

func (s *Solver) notify(v *IntVar) {
	for _, idx := range v.props {
		s.schedule(idx)
	}
}

func (s *Solver) contradiction(v *IntVar) error {
	s.stats.Fails++
	return ErrContradiction
}

func (s *Solver) clearQueue() {
	for _, idx := range s.queue {
		s.props[idx].queued = false
	}
	s.queue = s.queue[:0]
}

// Propagate runs every scheduled propagator until the fixpoint. The
// objective bound found so far is enforced first.
func (s *Solver) Propagate() error {
	if s.hasBound {
		if err := s.objective.UpdateUB(s.bound); err != nil {
			s.clearQueue()
			return err
		}
	}
	for head := 0; head < len(s.queue); head++ {
		idx := s.queue[head]
		rec := s.props[idx]
		rec.queued = false
		if err := rec.p.Propagate(); err != nil {
			s.queue = s.queue[head+1:]
			s.clearQueue()
			return err
		}
	}
	s.queue = s.queue[:0]
	return nil
}

func (s *Solver) SetStrategy(st Strategy) {
	s.strategy = st
}

// SetObjective turns the search into a minimisation of v.
func (s *Solver) SetObjective(v *IntVar) {
	s.objective = v
}

func (s *Solver) Objective() *IntVar {
	return s.objective
}

func (s *Solver) SetRestarts(p *RestartPolicy) {
	s.restart = p
}

func (s *Solver) SetLimits(l Limits) {
	s.limits = l
}

func (s *Solver) Stats() Stats {
	return s.stats
}
