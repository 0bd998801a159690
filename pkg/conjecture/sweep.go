package conjecture

import (
	"fmt"
	"sort"

	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
)

// ClosureSweep drains a FIFO of mark sets, each a set of canonical ids
// that must be equivalent, restoring invariant I1 (neighbor-consistency
// across merged classes) after every union. This is the propagation
// discipline shared by the marking-probe inference (§4.5) and the
// layered map builder's over-sized-group reduction (§4.9).
func (v *View) ClosureSweep(initial []int) {
	queue := [][]int{initial}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]

		if len(s) >= 2 {
			r := minInt(s)
			for _, x := range s {
				v.Unite(x, r)
			}
		}

		groups := v.partitionByClass()
		for _, members := range groups {
			for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
				nextSet := v.settledNeighborClasses(members, d)
				if len(nextSet) == 0 {
					continue
				}
				newCanon := nextSet[0]
				for _, x := range nextSet[1:] {
					newCanon = v.Unite(newCanon, x)
				}
				for _, m := range members {
					v.Graph.SetNeighbor(m, d, newCanon)
				}
				if len(nextSet) >= 2 {
					queue = append(queue, nextSet)
				}
			}
		}
	}
}

// partitionByClass groups every node id ever created by its current
// canonical class.
func (v *View) partitionByClass() map[int][]int {
	groups := make(map[int][]int)
	for id := 0; id < v.Graph.Len(); id++ {
		c := v.Find(id)
		groups[c] = append(groups[c], id)
	}
	return groups
}

// settledNeighborClasses collects the distinct canonical classes settled
// at door d among members, in ascending order.
func (v *View) settledNeighborClasses(members []int, d roomgraph.Door) []int {
	seen := make(map[int]struct{})
	for _, m := range members {
		nid, settled := v.Graph.GetNeighbor(m, d)
		if !settled {
			continue
		}
		seen[v.Find(nid)] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func minInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// ValidateInvariantI1 re-derives the partition by canonical class and
// asserts that, for every group and door, every member's neighbor slot
// agrees with the first member's — either both closed, or both settled
// to the same canonical class. Returns a descriptive error on the first
// violation found.
func (v *View) ValidateInvariantI1() error {
	groups := v.partitionByClass()
	for class, members := range groups {
		for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
			firstNid, firstSettled := v.Graph.GetNeighbor(members[0], d)
			var firstCanon int
			if firstSettled {
				firstCanon = v.Find(firstNid)
			}
			for _, m := range members[1:] {
				nid, settled := v.Graph.GetNeighbor(m, d)
				if settled != firstSettled {
					return fmt.Errorf("I1 violation: class %d door %d: node %d settled=%v but node %d settled=%v",
						class, d, members[0], firstSettled, m, settled)
				}
				if settled && v.Find(nid) != firstCanon {
					return fmt.Errorf("I1 violation: class %d door %d: node %d -> class %d, node %d -> class %d",
						class, d, members[0], firstCanon, m, v.Find(nid))
				}
			}
		}
	}
	return nil
}
