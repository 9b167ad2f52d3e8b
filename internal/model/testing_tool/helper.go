package testing_tool

import "sort"

type nameSorter struct {
	objects []string
}

func (ns *nameSorter) Len() int {
	return len(ns.objects)
}

func (ns *nameSorter) Swap(i, j int) {
	ns.objects[i], ns.objects[j] = ns.objects[j], ns.objects[i]
}

// Shorter names first, so that "vm2" comes before "vm10".
func (ns *nameSorter) Less(i, j int) bool {
	if len(ns.objects[i]) != len(ns.objects[j]) {
		return len(ns.objects[i]) < len(ns.objects[j])
	}
	return ns.objects[i] < ns.objects[j]
}

func sortNames(names []string) {
	sort.Sort(&nameSorter{objects: names})
}
