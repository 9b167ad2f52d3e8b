package utils

import "gonum.org/v1/gonum/mat"

// UsageRatio averages used/capacity over the dimensions having a positive
// capacity. It is 0 when no dimension has one.
func UsageRatio(used, capacity *mat.VecDense) float64 {
	ratios := mat.NewVecDense(used.Len(), nil)
	count := 0
	for i := 0; i < used.Len(); i++ {
		if capacity.AtVec(i) <= 0 {
			continue
		}
		ratios.SetVec(count, used.AtVec(i)/capacity.AtVec(i))
		count++
	}
	if count == 0 {
		return 0
	}

	return mat.Sum(ratios) / float64(count)
}
