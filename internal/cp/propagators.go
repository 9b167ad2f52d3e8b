package cp

type offsetEq struct {
	x, y *IntVar
	c    int
}

// OffsetEq enforces y = x + c.
func OffsetEq(x *IntVar, c int, y *IntVar) Propagator {
	return &offsetEq{x: x, y: y, c: c}
}

func (p *offsetEq) Vars() []*IntVar { return []*IntVar{p.x, p.y} }

func (p *offsetEq) Propagate() error {
	if err := p.y.UpdateLB(p.x.LB() + p.c); err != nil {
		return err
	}
	if err := p.y.UpdateUB(p.x.UB() + p.c); err != nil {
		return err
	}
	if err := p.x.UpdateLB(p.y.LB() - p.c); err != nil {
		return err
	}
	return p.x.UpdateUB(p.y.UB() - p.c)
}

type lessEq struct {
	x, y *IntVar
	c    int
}

// LessEq enforces x + c <= y.
func LessEq(x *IntVar, c int, y *IntVar) Propagator {
	return &lessEq{x: x, y: y, c: c}
}

func (p *lessEq) Vars() []*IntVar { return []*IntVar{p.x, p.y} }

func (p *lessEq) Propagate() error {
	if err := p.y.UpdateLB(p.x.LB() + p.c); err != nil {
		return err
	}
	return p.x.UpdateUB(p.y.UB() - p.c)
}

type plus struct {
	x, y, z *IntVar
}

// Plus enforces x + y = z on bounds.
func Plus(x, y, z *IntVar) Propagator {
	return &plus{x: x, y: y, z: z}
}

func (p *plus) Vars() []*IntVar { return []*IntVar{p.x, p.y, p.z} }

func (p *plus) Propagate() error {
	x, y, z := p.x, p.y, p.z
	if err := z.UpdateLB(x.LB() + y.LB()); err != nil {
		return err
	}
	if err := z.UpdateUB(x.UB() + y.UB()); err != nil {
		return err
	}
	if err := x.UpdateLB(z.LB() - y.UB()); err != nil {
		return err
	}
	if err := x.UpdateUB(z.UB() - y.LB()); err != nil {
		return err
	}
	if err := y.UpdateLB(z.LB() - x.UB()); err != nil {
		return err
	}
	return y.UpdateUB(z.UB() - x.LB())
}

type scale struct {
	x, y *IntVar
	c    int
}

// Scale enforces y = c * x with c >= 0.
func Scale(x *IntVar, c int, y *IntVar) Propagator {
	if c < 0 {
		panic("cp: negative scale factor")
	}
	return &scale{x: x, y: y, c: c}
}

func (p *scale) Vars() []*IntVar { return []*IntVar{p.x, p.y} }

func (p *scale) Propagate() error {
	if p.c == 0 {
		return p.y.InstantiateTo(0)
	}
	if err := p.y.UpdateLB(p.c * p.x.LB()); err != nil {
		return err
	}
	if err := p.y.UpdateUB(p.c * p.x.UB()); err != nil {
		return err
	}
	if err := p.x.UpdateLB(ceilDiv(p.y.LB(), p.c)); err != nil {
		return err
	}
	if err := p.x.UpdateUB(floorDiv(p.y.UB(), p.c)); err != nil {
		return err
	}
	if p.x.IsInstantiated() {
		return p.y.InstantiateTo(p.c * p.x.Value())
	}
	return nil
}

type sum struct {
	xs []*IntVar
	z  *IntVar
}

// Sum enforces sum(xs) = z on bounds.
func Sum(xs []*IntVar, z *IntVar) Propagator {
	return &sum{xs: xs, z: z}
}

func (p *sum) Vars() []*IntVar {
	return append(append([]*IntVar{}, p.xs...), p.z)
}

func (p *sum) Propagate() error {
	lo, hi := 0, 0
	for _, x := range p.xs {
		lo += x.LB()
		hi += x.UB()
	}
	if err := p.z.UpdateLB(lo); err != nil {
		return err
	}
	if err := p.z.UpdateUB(hi); err != nil {
		return err
	}
	zlb, zub := p.z.LB(), p.z.UB()
	for _, x := range p.xs {
		xlb, xub := x.LB(), x.UB()
		// others contribute [lo-xlb, hi-xub]
		if err := x.UpdateLB(zlb - (hi - xub)); err != nil {
			return err
		}
		if err := x.UpdateUB(zub - (lo - xlb)); err != nil {
			return err
		}
	}
	return nil
}

type allDifferent struct {
	xs []*IntVar
}

// AllDifferent forbids two variables from sharing a value once one of them
// is instantiated.
func AllDifferent(xs []*IntVar) Propagator {
	return &allDifferent{xs: xs}
}

func (p *allDifferent) Vars() []*IntVar { return p.xs }

func (p *allDifferent) Propagate() error {
	for i, x := range p.xs {
		if !x.IsInstantiated() {
			continue
		}
		val := x.Value()
		for j, y := range p.xs {
			if i == j {
				continue
			}
			if y.IsInstantiated() && y.Value() == val {
				return x.s.contradiction(y)
			}
			if err := y.RemoveValue(val); err != nil {
				return err
			}
		}
	}
	return nil
}

type reifNotEqual struct {
	x   *IntVar
	val int
	b   *IntVar
}

// ReifNotEqual enforces b = 1 iff x != val, b being boolean.
func ReifNotEqual(x *IntVar, val int, b *IntVar) Propagator {
	return &reifNotEqual{x: x, val: val, b: b}
}

func (p *reifNotEqual) Vars() []*IntVar { return []*IntVar{p.x, p.b} }

func (p *reifNotEqual) Propagate() error {
	if err := p.b.UpdateLB(0); err != nil {
		return err
	}
	if err := p.b.UpdateUB(1); err != nil {
		return err
	}
	if !p.x.Contains(p.val) {
		return p.b.InstantiateTo(1)
	}
	if p.x.IsInstantiated() {
		return p.b.InstantiateTo(0)
	}
	if p.b.IsInstantiated() {
		if p.b.Value() == 1 {
			return p.x.RemoveValue(p.val)
		}
		return p.x.InstantiateTo(p.val)
	}
	return nil
}

type zeroUnless struct {
	b, x *IntVar
}

// ZeroUnless enforces b = 0 => x = 0, and x > 0 => b = 1.
func ZeroUnless(b, x *IntVar) Propagator {
	return &zeroUnless{b: b, x: x}
}

func (p *zeroUnless) Vars() []*IntVar { return []*IntVar{p.b, p.x} }

func (p *zeroUnless) Propagate() error {
	if p.b.UB() == 0 {
		return p.x.InstantiateTo(0)
	}
	if p.x.LB() > 0 {
		return p.b.UpdateLB(1)
	}
	return nil
}

func ceilDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a > 0) != (b > 0) {
		q--
	}
	return q
}
