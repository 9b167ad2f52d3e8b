package alg

import (
	"github.com/amsen20/reconf/internal/cp"
)

// VectorPacking places items in bins without exceeding any dimension of
// any bin. Loads are exposed per dimension and bin.
type VectorPacking struct {
	dims  []string
	items []*cp.IntVar
	// sizes[d][i] and capacities[d][b]
	sizes      [][]int
	capacities [][]int
	loads      [][]*cp.IntVar
}

// NewVectorPacking creates one load variable per dimension and bin, ranging
// from 0 to the capacity.
func NewVectorPacking(s *cp.Solver, dims []string, items []*cp.IntVar, sizes, capacities [][]int) *VectorPacking {
	vp := &VectorPacking{
		dims:       dims,
		items:      items,
		sizes:      sizes,
		capacities: capacities,
		loads:      make([][]*cp.IntVar, len(dims)),
	}
	for d, name := range dims {
		vp.loads[d] = make([]*cp.IntVar, len(capacities[d]))
		for b, c := range capacities[d] {
			if c < 0 {
				c = 0
			}
			vp.loads[d][b] = s.NewIntVar("load("+name+")", 0, c)
		}
	}
	return vp
}

func (vp *VectorPacking) Vars() []*cp.IntVar {
	vars := append([]*cp.IntVar{}, vp.items...)
	for _, loads := range vp.loads {
		vars = append(vars, loads...)
	}
	return vars
}

func (vp *VectorPacking) Dims() []string {
	return vp.dims
}

func (vp *VectorPacking) Load(d, b int) *cp.IntVar {
	return vp.loads[d][b]
}

// Rest is the capacity left on a bin once the assigned items are counted.
// It follows the backtracking because the lower bound of the load is kept
// equal to the assigned amount.
func (vp *VectorPacking) Rest(d, b int) int {
	return vp.capacities[d][b] - vp.loads[d][b].LB()
}

func (vp *VectorPacking) Propagate() error {
	nbBins := 0
	if len(vp.dims) > 0 {
		nbBins = len(vp.capacities[0])
	}
	for d := range vp.dims {
		assigned := make([]int, nbBins)
		candidates := make([]int, nbBins)
		free := 0
		for i, item := range vp.items {
			size := vp.sizes[d][i]
			if item.IsInstantiated() {
				assigned[item.Value()] += size
				continue
			}
			free += size
			for b, ok := item.LB(), true; ok; b, ok = item.NextValue(b) {
				candidates[b] += size
			}
		}

		reachable := 0
		for b := 0; b < nbBins; b++ {
			load := vp.loads[d][b]
			if err := load.UpdateLB(assigned[b]); err != nil {
				return err
			}
			if err := load.UpdateUB(assigned[b] + candidates[b]); err != nil {
				return err
			}
			if candidates[b] > 0 {
				reachable += vp.capacities[d][b] - assigned[b]
			}
		}
		if free > reachable {
			return cp.ErrContradiction
		}

		for i, item := range vp.items {
			if item.IsInstantiated() {
				continue
			}
			size := vp.sizes[d][i]
			for b, ok := item.LB(), true; ok; b, ok = item.NextValue(b) {
				if size > vp.capacities[d][b]-assigned[b] {
					if err := item.RemoveValue(b); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
