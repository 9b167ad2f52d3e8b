package alg

import (
	"sort"

	"github.com/amsen20/reconf/internal/cp"
)

type scheduledItem struct {
	t     *Transition
	sizes []int
}

// nodeSchedule is a time-table propagator over the resources of one node.
// VMs staying on the node use their resources the whole time, leaving
// c-slices use them during [0, end) and arriving d-slices during
// [start, horizon). At any instant from the first arrival on, the usage must
// fit the capacity. An overload before any arrival is the source state and
// is tolerated.
type nodeSchedule struct {
	idx      int
	horizon  int
	caps     []int
	leaving  []scheduledItem
	arriving []scheduledItem

	// scratch
	times []int
	usage [][]int
}

func (ns *nodeSchedule) Vars() []*cp.IntVar {
	var vars []*cp.IntVar
	for _, it := range ns.leaving {
		vars = append(vars, it.t.cSlice.end)
	}
	for _, it := range ns.arriving {
		vars = append(vars, it.t.dSlice.hoster, it.t.dSlice.start)
	}
	return vars
}

func (ns *nodeSchedule) isStaying(t *Transition) bool {
	if t.cSlice == nil || t.dSlice == nil {
		return false
	}
	h := t.dSlice.hoster
	return h.IsInstantiated() && h.Value() == ns.idx && t.cSlice.hoster.Value() == ns.idx
}

func (ns *nodeSchedule) Propagate() error {
	dims := len(ns.caps)
	base := make([]int, dims)

	var leaving, arriving []scheduledItem
	for _, it := range ns.leaving {
		if ns.isStaying(it.t) {
			addSizes(base, it.sizes)
			continue
		}
		leaving = append(leaving, it)
	}
	firstArrival := ns.horizon + 1
	for _, it := range ns.arriving {
		h := it.t.dSlice.hoster
		if !h.IsInstantiated() || h.Value() != ns.idx || ns.isStaying(it.t) {
			continue
		}
		arriving = append(arriving, it)
		if ub := it.t.dSlice.start.UB(); ub < firstArrival {
			firstArrival = ub
		}
	}
	if len(arriving) == 0 {
		return nil
	}

	ns.buildProfile(base, leaving, arriving)

	for k, t := range ns.times {
		if t < firstArrival {
			continue
		}
		for d := 0; d < dims; d++ {
			if ns.usage[k][d] > ns.caps[d] {
				return cp.ErrContradiction
			}
		}
	}

	for _, a := range arriving {
		if err := ns.pushArrival(a); err != nil {
			return err
		}
	}
	for _, c := range leaving {
		if err := ns.hurryDeparture(c, firstArrival); err != nil {
			return err
		}
	}
	return nil
}

// buildProfile computes the compulsory usage at every breakpoint.
func (ns *nodeSchedule) buildProfile(base []int, leaving, arriving []scheduledItem) {
	ns.times = append(ns.times[:0], 0)
	for _, it := range leaving {
		ns.times = append(ns.times, it.t.cSlice.end.LB())
	}
	for _, it := range arriving {
		ns.times = append(ns.times, it.t.dSlice.start.UB())
	}
	sort.Ints(ns.times)
	uniq := ns.times[:1]
	for _, t := range ns.times[1:] {
		if t != uniq[len(uniq)-1] {
			uniq = append(uniq, t)
		}
	}
	ns.times = uniq

	ns.usage = ns.usage[:0]
	for _, t := range ns.times {
		u := append([]int(nil), base...)
		for _, it := range leaving {
			if t < it.t.cSlice.end.LB() {
				addSizes(u, it.sizes)
			}
		}
		for _, it := range arriving {
			if it.t.dSlice.start.UB() <= t {
				addSizes(u, it.sizes)
			}
		}
		ns.usage = append(ns.usage, u)
	}
}

func (ns *nodeSchedule) segmentEnd(k int) int {
	if k+1 < len(ns.times) {
		return ns.times[k+1]
	}
	return ns.horizon + 1
}

// pushArrival delays an arrival past the last segment where it does not
// fit next to the compulsory usage of the others.
func (ns *nodeSchedule) pushArrival(a scheduledItem) error {
	start := a.t.dSlice.start
	if start.IsInstantiated() {
		return nil
	}
	for k := len(ns.times) - 1; k >= 0; k-- {
		end := ns.segmentEnd(k)
		if end <= start.LB() {
			return nil
		}
		own := ns.times[k] >= start.UB()
		for d, size := range a.sizes {
			u := ns.usage[k][d]
			if own {
				u -= size
			}
			if u+size > ns.caps[d] {
				return start.UpdateLB(end)
			}
		}
	}
	return nil
}

// hurryDeparture makes a leaving slice end before the first overloaded
// instant following an arrival.
func (ns *nodeSchedule) hurryDeparture(c scheduledItem, firstArrival int) error {
	end := c.t.cSlice.end
	if end.IsInstantiated() {
		return nil
	}
	for k, t := range ns.times {
		if t >= end.UB() {
			return nil
		}
		if t < firstArrival || t < end.LB() {
			continue
		}
		for d, size := range c.sizes {
			if ns.usage[k][d]+size > ns.caps[d] {
				return end.UpdateUB(t)
			}
		}
	}
	return nil
}

func addSizes(dst, sizes []int) {
	for d, s := range sizes {
		dst[d] += s
	}
}
