package duration

import (
	"fmt"

	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/pkg/errors"
)

// ErrNoEvaluator is returned when no evaluator is registered for a kind.
var ErrNoEvaluator = errors.New("no duration evaluator")

// Evaluator estimates the duration of an action on an element. The id is a
// node id for node actions, a VM id otherwise.
type Evaluator interface {
	Evaluate(m *model.Model, kind plan.ActionKind, id int) (int, error)
}

type Evaluators struct {
	evaluators map[plan.ActionKind]Evaluator
}

func NewEvaluators() *Evaluators {
	return &Evaluators{evaluators: make(map[plan.ActionKind]Evaluator)}
}

// Defaults gives 1 to VM actions and 2 to node actions.
func Defaults() *Evaluators {
	e := NewEvaluators()
	for _, k := range plan.ActionKinds() {
		if k.IsNodeAction() {
			e.Register(k, Constant(2))
		} else {
			e.Register(k, Constant(1))
		}
	}
	return e
}

// Register replaces the evaluator of a kind.
func (e *Evaluators) Register(kind plan.ActionKind, ev Evaluator) {
	e.evaluators[kind] = ev
}

func (e *Evaluators) Unregister(kind plan.ActionKind) {
	delete(e.evaluators, kind)
}

func (e *Evaluators) Get(kind plan.ActionKind) (Evaluator, bool) {
	ev, ok := e.evaluators[kind]
	return ev, ok
}

// Evaluate fails when no evaluator is registered or when it computes a
// negative duration.
func (e *Evaluators) Evaluate(m *model.Model, kind plan.ActionKind, id int) (int, error) {
	ev, ok := e.evaluators[kind]
	if !ok {
		return 0, errors.Wrapf(ErrNoEvaluator, "action %s", kind)
	}
	d, err := ev.Evaluate(m, kind, id)
	if err != nil {
		return 0, errors.Wrapf(err, "evaluating %s on %d", kind, id)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %d for %s on %d", d, kind, id)
	}
	return d, nil
}

func (e *Evaluators) Clone() *Evaluators {
	ret := NewEvaluators()
	for k, ev := range e.evaluators {
		ret.evaluators[k] = ev
	}
	return ret
}

type constant int

// Constant always gives d.
func Constant(d int) Evaluator {
	return constant(d)
}

func (c constant) Evaluate(*model.Model, plan.ActionKind, int) (int, error) {
	return int(c), nil
}

type fromAttribute struct {
	key      string
	fallback Evaluator
}

// FromAttribute reads the duration from an attribute of the element and uses
// the fallback when the attribute is missing.
func FromAttribute(key string, fallback Evaluator) Evaluator {
	return &fromAttribute{key: key, fallback: fallback}
}

func (f *fromAttribute) Evaluate(m *model.Model, kind plan.ActionKind, id int) (int, error) {
	var (
		v  int
		ok bool
	)
	if kind.IsNodeAction() {
		v, ok = m.Attributes().GetNode(model.NodeID(id), f.key)
	} else {
		v, ok = m.Attributes().GetVM(model.VMID(id), f.key)
	}
	if ok {
		return v, nil
	}
	if f.fallback == nil {
		return 0, fmt.Errorf("missing attribute %q", f.key)
	}
	return f.fallback.Evaluate(m, kind, id)
}

type linearToResource struct {
	rc   string
	a, b int
}

// LinearToResource gives a*consumption+b where consumption is the VM
// consumption of the resource. Node actions are evaluated with the capacity.
func LinearToResource(rc string, a, b int) Evaluator {
	return &linearToResource{rc: rc, a: a, b: b}
}

func (l *linearToResource) Evaluate(m *model.Model, kind plan.ActionKind, id int) (int, error) {
	rc := m.Resource(l.rc)
	if rc == nil {
		return 0, fmt.Errorf("unknown resource %q", l.rc)
	}
	amount := 0
	if kind.IsNodeAction() {
		amount = rc.Capacity(model.NodeID(id))
	} else {
		amount = rc.Consumption(model.VMID(id))
	}
	return l.a*amount + l.b, nil
}
