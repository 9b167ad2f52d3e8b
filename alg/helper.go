package alg

// ReverseSorter orders objects by decreasing keys, compared
// lexicographically.
type ReverseSorter[Obj any] struct {
	objects []Obj
	by      func(Obj) []int
}

func (s *ReverseSorter[Obj]) Len() int {
	return len(s.objects)
}

func (s *ReverseSorter[Obj]) Swap(i, j int) {
	s.objects[i], s.objects[j] = s.objects[j], s.objects[i]
}

func (s *ReverseSorter[Obj]) Less(i, j int) bool {
	a, b := s.by(s.objects[i]), s.by(s.objects[j])
	for d := 0; d < len(a) && d < len(b); d++ {
		if a[d] != b[d] {
			return a[d] > b[d]
		}
	}
	return false
}
