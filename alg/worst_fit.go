package alg

import (
	"sort"

	"github.com/amsen20/reconf/internal/cp"
)

// worstFit places the d-slices by decreasing sizes. A VM keeps its current
// host when it is still possible, otherwise it goes to the node with the
// most room left on the first dimension, nodes online in the source first.
// Ties are broken at random.
type worstFit struct {
	p         *Problem
	items     []*Transition
	firstFree *cp.StoredInt
	online    []bool
	ties      []int
}

func newWorstFit(p *Problem) *worstFit {
	var items []*Transition
	for _, t := range p.VMTransitions() {
		if t.dSlice != nil {
			items = append(items, t)
		}
	}
	sort.Stable(&ReverseSorter[*Transition]{
		objects: items,
		by:      func(t *Transition) []int { return p.sizes(t.vm) },
	})

	online := make([]bool, len(p.nodes))
	for b, n := range p.nodes {
		online[b] = p.src.Mapping().IsOnline(n)
	}
	return &worstFit{
		p:         p,
		items:     items,
		firstFree: p.solver.NewStoredInt(0),
		online:    online,
	}
}

func (w *worstFit) Next() (cp.Decision, bool) {
	i := w.firstFree.Get()
	for i < len(w.items) && w.items[i].dSlice.hoster.IsInstantiated() {
		i++
	}
	w.firstFree.Set(i)
	if i == len(w.items) {
		return cp.Decision{}, false
	}
	t := w.items[i]
	return cp.Decision{Var: t.dSlice.hoster, Value: w.selectNode(t), Op: cp.Assign}, true
}

func (w *worstFit) selectNode(t *Transition) int {
	h := t.dSlice.hoster
	if t.hasNode {
		if cur := w.p.nodeIdx[t.node]; h.Contains(cur) {
			return cur
		}
	}

	w.ties = w.ties[:0]
	bestOnline, bestRest := false, 0
	for b, ok := h.LB(), true; ok; b, ok = h.NextValue(b) {
		rest := 0
		if len(w.p.dims) > 0 {
			rest = w.p.packing.Rest(0, b)
		}
		better := len(w.ties) == 0 ||
			(w.online[b] && !bestOnline) ||
			(w.online[b] == bestOnline && rest > bestRest)
		switch {
		case better:
			w.ties = append(w.ties[:0], b)
			bestOnline, bestRest = w.online[b], rest
		case w.online[b] == bestOnline && rest == bestRest:
			w.ties = append(w.ties, b)
		}
	}
	return w.ties[w.p.rnd.Intn(len(w.ties))]
}
