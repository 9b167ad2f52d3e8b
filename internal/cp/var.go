package cp

import (
	"fmt"
	"math/bits"
	"strings"
)

// IntVar is a finite integer domain. Bounded variables only track [lb, ub];
// enumerated ones also keep a bitset so holes can be punched.
type IntVar struct {
	s    *Solver
	id   int
	name string

	lb, ub int
	size   int
	bits   []uint64
	offset int

	// world in which the current state was saved, see trail.
	stamp int
	props []int
}

func (v *IntVar) Name() string { return v.name }
func (v *IntVar) ID() int      { return v.id }
func (v *IntVar) LB() int      { return v.lb }
func (v *IntVar) UB() int      { return v.ub }
func (v *IntVar) Size() int    { return v.size }

func (v *IntVar) IsInstantiated() bool { return v.lb == v.ub }

func (v *IntVar) IsEnumerated() bool { return v.bits != nil }

// Value returns the value of an instantiated variable. It panics otherwise.
func (v *IntVar) Value() int {
	if v.lb != v.ub {
		panic(fmt.Sprintf("cp: variable %s is not instantiated: %s", v.name, v))
	}
	return v.lb
}

func (v *IntVar) Contains(x int) bool {
	if x < v.lb || x > v.ub {
		return false
	}
	if v.bits == nil {
		return true
	}
	return v.hasBit(x)
}

// NextValue returns the smallest value of the domain strictly greater than
// x, or false when there is none.
func (v *IntVar) NextValue(x int) (int, bool) {
	if x < v.lb {
		return v.lb, true
	}
	if x >= v.ub {
		return 0, false
	}
	if v.bits == nil {
		return x + 1, true
	}
	for y := x + 1; y <= v.ub; y++ {
		if v.hasBit(y) {
			return y, true
		}
	}
	return 0, false
}

// Values lists the domain in increasing order.
func (v *IntVar) Values() []int {
	res := make([]int, 0, v.size)
	for x, ok := v.lb, true; ok; x, ok = v.NextValue(x) {
		res = append(res, x)
	}
	return res
}

func (v *IntVar) String() string {
	if v.IsInstantiated() {
		return fmt.Sprintf("%s=%d", v.name, v.lb)
	}
	if v.bits == nil || v.size == v.ub-v.lb+1 {
		return fmt.Sprintf("%s=[%d,%d]", v.name, v.lb, v.ub)
	}
	vals := v.Values()
	parts := make([]string, len(vals))
	for i, x := range vals {
		parts[i] = fmt.Sprint(x)
	}
	return fmt.Sprintf("%s={%s}", v.name, strings.Join(parts, ","))
}

func (v *IntVar) hasBit(x int) bool {
	i := x - v.offset
	return v.bits[i>>6]&(1<<(uint(i)&63)) != 0
}

func (v *IntVar) clearBit(x int) {
	i := x - v.offset
	v.bits[i>>6] &^= 1 << (uint(i) & 63)
}

func (v *IntVar) UpdateLB(x int) error {
	if x <= v.lb {
		return nil
	}
	if x > v.ub {
		return v.s.contradiction(v)
	}
	v.s.trail.saveVar(v)
	if v.bits == nil {
		v.size -= x - v.lb
		v.lb = x
	} else {
		for y := v.lb; y < x; y++ {
			if v.hasBit(y) {
				v.clearBit(y)
				v.size--
			}
		}
		v.lb = x
		v.shrinkBounds()
	}
	if v.size <= 0 {
		return v.s.contradiction(v)
	}
	v.s.notify(v)
	return nil
}

func (v *IntVar) UpdateUB(x int) error {
	if x >= v.ub {
		return nil
	}
	if x < v.lb {
		return v.s.contradiction(v)
	}
	v.s.trail.saveVar(v)
	if v.bits == nil {
		v.size -= v.ub - x
		v.ub = x
	} else {
		for y := x + 1; y <= v.ub; y++ {
			if v.hasBit(y) {
				v.clearBit(y)
				v.size--
			}
		}
		v.ub = x
		v.shrinkBounds()
	}
	if v.size <= 0 {
		return v.s.contradiction(v)
	}
	v.s.notify(v)
	return nil
}

func (v *IntVar) InstantiateTo(x int) error {
	if !v.Contains(x) {
		return v.s.contradiction(v)
	}
	if v.lb == v.ub {
		return nil
	}
	v.s.trail.saveVar(v)
	if v.bits != nil {
		for i := range v.bits {
			v.bits[i] = 0
		}
		i := x - v.offset
		v.bits[i>>6] |= 1 << (uint(i) & 63)
	}
	v.lb, v.ub, v.size = x, x, 1
	v.s.notify(v)
	return nil
}

// RemoveValue punches a hole. On a bounded variable only the bounds can be
// removed; interior values are left in place.
func (v *IntVar) RemoveValue(x int) error {
	if !v.Contains(x) {
		return nil
	}
	if x == v.lb {
		return v.UpdateLB(x + 1)
	}
	if x == v.ub {
		return v.UpdateUB(x - 1)
	}
	if v.bits == nil {
		return nil
	}
	v.s.trail.saveVar(v)
	v.clearBit(x)
	v.size--
	v.s.notify(v)
	return nil
}

// shrinkBounds moves lb and ub onto values that are still in the bitset.
func (v *IntVar) shrinkBounds() {
	for v.lb <= v.ub && !v.hasBit(v.lb) {
		v.lb++
	}
	for v.ub >= v.lb && !v.hasBit(v.ub) {
		v.ub--
	}
}

func newBitset(lb, ub int) []uint64 {
	n := ub - lb + 1
	words := make([]uint64, (n+63)/64)
	for i := range words {
		words[i] = ^uint64(0)
	}
	if r := n % 64; r != 0 {
		words[len(words)-1] = (1 << uint(r)) - 1
	}
	return words
}

func popcount(words []uint64) int {
	n := 0
	for _, w := range words {
		n += bits.OnesCount64(w)
	}
	return n
}
