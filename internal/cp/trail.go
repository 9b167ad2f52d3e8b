package cp

// trail records the state of variables and stored cells before their first
// modification in a world, so popping a world restores them.
type trail struct {
	entries []trailEntry
	marks   []int
}

type trailEntry struct {
	v      *IntVar
	lb, ub int
	size   int
	bits   []uint64

	cell *StoredInt
	val  int

	stamp int
}

func (t *trail) world() int {
	return len(t.marks)
}

func (t *trail) push() {
	t.marks = append(t.marks, len(t.entries))
}

func (t *trail) pop() {
	last := len(t.marks) - 1
	mark := t.marks[last]
	t.marks = t.marks[:last]
	for i := len(t.entries) - 1; i >= mark; i-- {
		e := &t.entries[i]
		if e.v != nil {
			v := e.v
			v.lb, v.ub, v.size, v.stamp = e.lb, e.ub, e.size, e.stamp
			if e.bits != nil {
				copy(v.bits, e.bits)
			}
		} else {
			e.cell.val, e.cell.stamp = e.val, e.stamp
		}
		t.entries[i] = trailEntry{}
	}
	t.entries = t.entries[:mark]
}

func (t *trail) saveVar(v *IntVar) {
	w := t.world()
	if v.stamp == w || w == 0 {
		return
	}
	e := trailEntry{v: v, lb: v.lb, ub: v.ub, size: v.size, stamp: v.stamp}
	if v.bits != nil {
		e.bits = make([]uint64, len(v.bits))
		copy(e.bits, v.bits)
	}
	t.entries = append(t.entries, e)
	v.stamp = w
}

func (t *trail) saveCell(c *StoredInt) {
	w := t.world()
	if c.stamp == w || w == 0 {
		return
	}
	t.entries = append(t.entries, trailEntry{cell: c, val: c.val, stamp: c.stamp})
	c.stamp = w
}

// StoredInt is an integer restored on backtrack.
type StoredInt struct {
	s     *Solver
	val   int
	stamp int
}

func (c *StoredInt) Get() int {
	return c.val
}

func (c *StoredInt) Set(x int) {
	if c.val == x {
		return
	}
	c.s.trail.saveCell(c)
	c.val = x
}
