package alg

import (
	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/emirpasic/gods/trees/binaryheap"
)

// decode turns a solution into a plan. Transitions are visited by start
// date, in creation order on ties.
func (p *Problem) decode(sol *cp.Solution) (*plan.ReconfigurationPlan, error) {
	heap := binaryheap.NewWith(func(a, b interface{}) int {
		ta, tb := a.(*Transition), b.(*Transition)
		if sa, sb := sol.Value(ta.start), sol.Value(tb.start); sa != sb {
			return sa - sb
		}
		return ta.order - tb.order
	})
	for _, t := range p.Transitions() {
		heap.Push(t)
	}

	pl := plan.NewReconfigurationPlan(p.src)
	for !heap.Empty() {
		v, _ := heap.Pop()
		t := v.(*Transition)
		if _, err := t.InsertActions(p, sol, pl); err != nil {
			return nil, err
		}
	}
	return pl, nil
}
