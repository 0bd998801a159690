package layered

import (
	"sort"

	"github.com/higashi-matsudo/library-explorer/internal/guessbuilder"
	"github.com/higashi-matsudo/library-explorer/pkg/conjecture"
	"github.com/higashi-matsudo/library-explorer/pkg/errorsx"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
)

// BuildMap collapses a raw conjecture into its final N = L*G room map
// given a group assignment over raw node ids (assign[i] is the group id
// of raw node i). Rooms must appear exactly L times per group for the
// map to be valid (§4.9): an over-sized group is reduced by repeatedly
// uniting two of its canonical classes and closing the consequences
// through the same propagation discipline the marking-probe inference
// uses (restoring invariant I1 across every union), until the group
// holds exactly L classes. The fully-reduced conjecture is then handed
// to the guess builder (C7).
//
// assign must already put the conjecture at cost 0 (every member of a
// group agrees on label and on every settled neighbor's group), or the
// pairwise reduction below may merge classes that should stay distinct.
// Callers should only invoke BuildMap once Refiner has driven the cost
// to 0.
func BuildMap(v *conjecture.View, startNode int, assign []int, l int) (roomgraph.GuessMap, error) {
	for {
		classes := classesByGroup(v, assign)
		if !reduceOversizedGroup(v, classes, l) {
			break
		}
	}

	classes := classesByGroup(v, assign)
	for group, ids := range classes {
		if len(ids) != l {
			return roomgraph.GuessMap{}, errorsx.Newf(errorsx.CodeProtocolViolation,
				"layered map builder: group %d holds %d canonical room(s), want exactly %d", group, len(ids), l)
		}
	}

	return guessbuilder.Build(v, startNode)
}

// classesByGroup returns, for each group id, the distinct canonical
// classes currently held by raw nodes assigned to that group, in
// ascending order.
func classesByGroup(v *conjecture.View, assign []int) map[int][]int {
	seen := make(map[int]map[int]struct{})
	for nodeID, group := range assign {
		if seen[group] == nil {
			seen[group] = make(map[int]struct{})
		}
		seen[group][v.Find(nodeID)] = struct{}{}
	}

	classes := make(map[int][]int, len(seen))
	for group, set := range seen {
		ids := make([]int, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		classes[group] = ids
	}
	return classes
}

// reduceOversizedGroup finds the first group (by ascending group id)
// holding more than l canonical classes and unites two of its classes,
// closing the consequences via ClosureSweep. It reports whether it
// found and reduced one, so the caller can re-partition and retry: a
// single union can cascade into merging classes across what were
// previously distinct groups' neighbor sets, so classesByGroup must be
// recomputed after every reduction rather than assumed stable.
func reduceOversizedGroup(v *conjecture.View, classes map[int][]int, l int) bool {
	groups := make([]int, 0, len(classes))
	for group := range classes {
		groups = append(groups, group)
	}
	sort.Ints(groups)

	for _, group := range groups {
		ids := classes[group]
		if len(ids) <= l {
			continue
		}
		v.ClosureSweep(ids[:2])
		return true
	}
	return false
}
