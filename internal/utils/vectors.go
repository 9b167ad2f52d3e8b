package utils

import "gonum.org/v1/gonum/mat"

// IntVec turns integer amounts into a dense vector.
func IntVec(values []int) *mat.VecDense {
	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	return mat.NewVecDense(len(data), data)
}

func SubVec(a, b *mat.VecDense) *mat.VecDense {
	if a.Len() != b.Len() {
		panic("Two vectors should have the same length.")
	}

	ret := mat.NewVecDense(a.Len(), nil)
	ret.SubVec(a, b)

	return ret
}

// SAddVec adds b to a in place.
func SAddVec(a, b *mat.VecDense) {
	a.AddVec(a, b)
}

func LEThan(a, b *mat.VecDense) bool {
	if a.Len() != b.Len() {
		panic("Two vectors should have the same length.")
	}

	for i := 0; i < a.Len(); i += 1 {
		if a.AtVec(i) > b.AtVec(i) {
			return false
		}
	}

	return true
}

// Exceeding lists the dimensions where a is strictly above b.
func Exceeding(a, b *mat.VecDense) []int {
	if a.Len() != b.Len() {
		panic("Two vectors should have the same length.")
	}

	var dims []int
	for i := 0; i < a.Len(); i++ {
		if a.AtVec(i) > b.AtVec(i) {
			dims = append(dims, i)
		}
	}
	return dims
}
