package utils

import (
	"hash/fnv"
	"sort"
)

func SliceToMap[T any](s []T, getId func(t T) int) map[int]bool {
	ret := make(map[int]bool)
	for i := 0; i < len(s); i++ {
		ret[getId(s[i])] = true
	}

	return ret
}

// SortedKeys returns the keys of an int keyed map in increasing order.
func SortedKeys[K ~int, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Hash maps a name onto a non negative identifier.
func Hash(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() & 0x7fffffff)
}
