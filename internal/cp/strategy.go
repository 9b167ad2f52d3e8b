package cp

// Operator is the kind of a branching decision.
type Operator int

const (
	// Assign branches on x = v, refuted by x != v.
	Assign Operator = iota
	// SplitLE branches on x <= v, refuted by x >= v+1.
	SplitLE
)

type Decision struct {
	Var   *IntVar
	Value int
	Op    Operator
}

func (d Decision) apply() error {
	if d.Op == SplitLE {
		return d.Var.UpdateUB(d.Value)
	}
	return d.Var.InstantiateTo(d.Value)
}

func (d Decision) refute() error {
	if d.Op == SplitLE {
		return d.Var.UpdateLB(d.Value + 1)
	}
	return d.Var.RemoveValue(d.Value)
}

// normalize turns an assignment on an interior value of a bounded variable
// into a split, since such a value cannot be removed.
func (d Decision) normalize() Decision {
	v := d.Var
	if d.Op == Assign && !v.IsEnumerated() && d.Value != v.LB() && d.Value != v.UB() {
		return Decision{Var: v, Value: d.Value, Op: SplitLE}
	}
	return d
}

// Strategy returns the next decision, or false when it has nothing left to
// branch on.
type Strategy interface {
	Next() (Decision, bool)
}

type StrategyFunc func() (Decision, bool)

func (f StrategyFunc) Next() (Decision, bool) { return f() }

// VarSelector picks an uninstantiated variable or returns nil.
type VarSelector interface {
	Select(vars []*IntVar) *IntVar
}

type ValueSelector interface {
	SelectValue(v *IntVar) int
}

type ValueFunc func(v *IntVar) int

func (f ValueFunc) SelectValue(v *IntVar) int { return f(v) }

var (
	MinValue ValueSelector = ValueFunc(func(v *IntVar) int { return v.LB() })
	MaxValue ValueSelector = ValueFunc(func(v *IntVar) int { return v.UB() })
)

type inputOrder struct {
	first *StoredInt
}

// InputOrder selects the first uninstantiated variable, remembering the
// position reached in a reversible cell.
func (s *Solver) InputOrder() VarSelector {
	return &inputOrder{first: s.NewStoredInt(0)}
}

func (o *inputOrder) Select(vars []*IntVar) *IntVar {
	i := o.first.Get()
	for i < len(vars) && vars[i].IsInstantiated() {
		i++
	}
	o.first.Set(i)
	if i == len(vars) {
		return nil
	}
	return vars[i]
}

type smallestLB struct{}

// SmallestLB selects the uninstantiated variable with the smallest lower
// bound, the first one on ties.
var SmallestLB VarSelector = smallestLB{}

func (smallestLB) Select(vars []*IntVar) *IntVar {
	var best *IntVar
	for _, v := range vars {
		if v.IsInstantiated() {
			continue
		}
		if best == nil || v.LB() < best.LB() {
			best = v
		}
	}
	return best
}

// IntStrategy branches on Vars with the given selectors.
type IntStrategy struct {
	Vars  []*IntVar
	Var   VarSelector
	Value ValueSelector
}

func (st *IntStrategy) Next() (Decision, bool) {
	v := st.Var.Select(st.Vars)
	if v == nil {
		return Decision{}, false
	}
	return Decision{Var: v, Value: st.Value.SelectValue(v), Op: Assign}, true
}

// Phase is one step of a Sequence. OnEnter runs each time the sequence moves
// onto the phase.
type Phase struct {
	Name     string
	Strategy Strategy
	OnEnter  func()
}

// Sequence chains phases. The current phase is reversible, so backtracking
// above the point where a phase was entered brings the previous one back.
type Sequence struct {
	phases  []Phase
	current *StoredInt
}

func (s *Solver) NewSequence(phases ...Phase) *Sequence {
	return &Sequence{phases: phases, current: s.NewStoredInt(-1)}
}

// Current returns the name of the phase in use, or "" before the first call.
func (q *Sequence) Current() string {
	i := q.current.Get()
	if i < 0 || i >= len(q.phases) {
		return ""
	}
	return q.phases[i].Name
}

func (q *Sequence) Next() (Decision, bool) {
	i := q.current.Get()
	if i < 0 {
		i = q.enter(0)
	}
	for i < len(q.phases) {
		if st := q.phases[i].Strategy; st != nil {
			if d, ok := st.Next(); ok {
				return d, true
			}
		}
		i = q.enter(i + 1)
	}
	return Decision{}, false
}

func (q *Sequence) enter(i int) int {
	q.current.Set(i)
	if i < len(q.phases) && q.phases[i].OnEnter != nil {
		q.phases[i].OnEnter()
	}
	return i
}
