// Package planner builds exploration plans: random door walks, BFS paths
// to the nearest closed door, and marking-probe insertions (C4).
package planner

import (
	"math/rand"

	"github.com/higashi-matsudo/library-explorer/pkg/collections"
	"github.com/higashi-matsudo/library-explorer/pkg/conjecture"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
)

// RandomExtend pads plan with uniformly random Open actions until it
// reaches targetLength. rng is caller-provided so callers can control
// determinism.
func RandomExtend(plan roomgraph.Plan, targetLength int, rng *rand.Rand) roomgraph.Plan {
	out := make(roomgraph.Plan, len(plan), targetLength)
	copy(out, plan)
	for len(out) < targetLength {
		out = append(out, roomgraph.Open(roomgraph.Door(rng.Intn(roomgraph.NumDoors))))
	}
	return out
}

// BFSToClosedDoor breadth-first searches the canonical view starting at
// find(0). For every explored class it checks doors in ascending order;
// the first closed door encountered anywhere (in BFS class order) is the
// goal. It returns the sequence of Open actions tracing the BFS-parent
// path to the goal's class, followed by one final Open of the closing
// door. It returns (nil, false) iff every door on every reachable class
// is settled, the loop's terminating condition.
func BFSToClosedDoor(v *conjecture.View) (roomgraph.Plan, bool) {
	start := v.Find(0)

	visited := collections.NewVersionedBitset(64)
	visited.Set(start)
	parentClass := map[int]int{}
	parentDoor := map[int]roomgraph.Door{}
	queue := []int{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
			nid, settled := v.Neighbor(cur, d)
			if !settled {
				return buildPath(start, cur, d, parentClass, parentDoor), true
			}
			if !visited.Test(nid) {
				visited.Set(nid)
				parentClass[nid] = cur
				parentDoor[nid] = d
				queue = append(queue, nid)
			}
		}
	}
	return nil, false
}

func buildPath(start, goalClass int, closingDoor roomgraph.Door, parentClass map[int]int, parentDoor map[int]roomgraph.Door) roomgraph.Plan {
	var doors []roomgraph.Door
	for c := goalClass; c != start; c = parentClass[c] {
		doors = append(doors, parentDoor[c])
	}
	plan := make(roomgraph.Plan, 0, len(doors)+1)
	for i := len(doors) - 1; i >= 0; i-- {
		plan = append(plan, roomgraph.Open(doors[i]))
	}
	plan = append(plan, roomgraph.Open(closingDoor))
	return plan
}

// InsertProbe produces a new plan equal to plan with a single Mark
// inserted at insertionIndex. The mark label is the smallest label not
// equal to the conjectured label of the canonical node the explorer
// would be standing in just before insertionIndex, simulating the walk
// from startNode through plan[:insertionIndex].
func InsertProbe(v *conjecture.View, startNode int, plan roomgraph.Plan, insertionIndex int) roomgraph.Plan {
	anchor := simulateWalk(v, startNode, plan[:insertionIndex])
	label := v.Label(anchor)
	return plan.WithMarkInserted(insertionIndex, smallestLabelNotEqual(label))
}

func simulateWalk(v *conjecture.View, start int, actions roomgraph.Plan) int {
	cur := v.Find(start)
	for _, a := range actions {
		if a.Kind != roomgraph.ActionOpen {
			continue
		}
		if nid, ok := v.Neighbor(cur, a.Door); ok {
			cur = nid
		}
	}
	return cur
}

func smallestLabelNotEqual(l roomgraph.Label) roomgraph.Label {
	for c := roomgraph.Label(0); c < roomgraph.NumLabels; c++ {
		if c != l {
			return c
		}
	}
	return 0
}
