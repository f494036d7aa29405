// Package graph links the ApiNodes of one file: overload groups, child
// lists and ancestor walks. Links are arena indexes and never cross files.
package graph

import (
	"sort"

	"github.com/phobologic/dtscheck/internal/model"
)

// Link fills the Overloads of every callable node in f. Overloads are
// declarations of the same name in the same enclosing scope; anonymous
// call signatures of one interface form a single group.
func Link(f *model.File) {
	type groupKey struct {
		parent int
		name   string
	}
	groups := make(map[groupKey][]int)
	var order []groupKey

	for i := range f.Nodes {
		n := &f.Nodes[i]
		n.Overloads = nil
		if !n.Kind.IsCallable() {
			continue
		}
		key := groupKey{n.Parent, n.Name}
		if n.Kind == model.CallSignature {
			key.name = "()"
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		for _, idx := range members {
			siblings := make([]int, 0, len(members)-1)
			for _, other := range members {
				if other != idx {
					siblings = append(siblings, other)
				}
			}
			f.Nodes[idx].Overloads = siblings
		}
	}
}

// Children returns, for each node, the indexes of its direct children in
// arena order.
func Children(f *model.File) [][]int {
	children := make([][]int, len(f.Nodes))
	for i := range f.Nodes {
		if p := f.Nodes[i].Parent; p >= 0 && p < len(f.Nodes) {
			children[p] = append(children[p], i)
		}
	}
	return children
}

// Ancestors returns the enclosing nodes of idx, nearest first.
func Ancestors(f *model.File, idx int) []int {
	var out []int
	for p := f.Nodes[idx].Parent; p >= 0 && p < len(f.Nodes); p = f.Nodes[p].Parent {
		out = append(out, p)
	}
	return out
}

// NearestAncestor returns the closest enclosing node matching keep, or -1.
func NearestAncestor(f *model.File, idx int, keep func(*model.ApiNode) bool) int {
	for _, a := range Ancestors(f, idx) {
		if keep(&f.Nodes[a]) {
			return a
		}
	}
	return -1
}

// Depths returns the nesting depth of every node; top-level nodes are 0.
// Parents precede children in the arena, so one pass suffices.
func Depths(f *model.File) []int {
	depths := make([]int, len(f.Nodes))
	for i := range f.Nodes {
		if p := f.Nodes[i].Parent; p >= 0 && p < i {
			depths[i] = depths[p] + 1
		}
	}
	return depths
}

// OverloadGroups lists each overload group once, as sorted arena indexes,
// ordered by first member.
func OverloadGroups(f *model.File) [][]int {
	seen := make(map[int]struct{})
	var groups [][]int
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if len(n.Overloads) == 0 {
			continue
		}
		if _, ok := seen[i]; ok {
			continue
		}
		group := append([]int{i}, n.Overloads...)
		sort.Ints(group)
		for _, idx := range group {
			seen[idx] = struct{}{}
		}
		groups = append(groups, group)
	}
	return groups
}
