// Package guessbuilder implements the guess builder (C7): turning a
// fully-merged conjecture into a final map, by BFS-enumerating canonical
// classes and matching each directed door to its reverse partner.
package guessbuilder

import (
	"github.com/higashi-matsudo/library-explorer/pkg/conjecture"
	"github.com/higashi-matsudo/library-explorer/pkg/errorsx"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
)

// Build enumerates the canonical classes reachable from
// find(startNode), assigns each a dense index in BFS order, matches each
// directed door to its reverse partner, and emits the final guess map.
// It is an invariant violation for the BFS to discover a closed door:
// the caller must only invoke Build once the conjecture has none.
func Build(v *conjecture.View, startNode int) (roomgraph.GuessMap, error) {
	start := v.Find(startNode)

	index := map[int]int{start: 0}
	order := []int{start}
	queue := []int{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
			nid, settled := v.Neighbor(cur, d)
			if !settled {
				return roomgraph.GuessMap{}, errorsx.Newf(errorsx.CodeProtocolViolation,
					"guess builder found a closed door %d on canonical class %d", d, cur)
			}
			if _, seen := index[nid]; !seen {
				index[nid] = len(order)
				order = append(order, nid)
				queue = append(queue, nid)
			}
		}
	}

	n := len(order)
	rooms := make([]roomgraph.Label, n)
	for i, cls := range order {
		rooms[i] = v.Label(cls)
	}

	used := make([][roomgraph.NumDoors]bool, n)
	connections := make([]roomgraph.Connection, 0, n*roomgraph.NumDoors/2)

	for i, cls := range order {
		for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
			if used[i][d] {
				continue
			}
			nid, _ := v.Neighbor(cls, d) // settled, guaranteed by the enumeration above
			j := index[v.Find(nid)]

			revDoor, err := findReverseDoor(v, order, used, i, d, j)
			if err != nil {
				return roomgraph.GuessMap{}, err
			}

			used[i][d] = true
			used[j][revDoor] = true

			from := roomgraph.DoorRef{Room: i, Door: d}
			to := roomgraph.DoorRef{Room: j, Door: revDoor}
			if lexLess(to, from) {
				from, to = to, from
			}
			connections = append(connections, roomgraph.Connection{From: from, To: to})
		}
	}

	return roomgraph.GuessMap{
		Rooms:        rooms,
		StartingRoom: 0,
		Connections:  connections,
	}, nil
}

// findReverseDoor finds the first unused door d' on class order[j] whose
// settled neighbor canonicalizes back to order[i], skipping d' == d when
// i == j since a door never pairs with itself (a self-loop pairs two
// distinct doors on the same room).
func findReverseDoor(v *conjecture.View, order []int, used [][roomgraph.NumDoors]bool, i int, d roomgraph.Door, j int) (roomgraph.Door, error) {
	srcClass := order[i]
	for dp := roomgraph.Door(0); dp < roomgraph.NumDoors; dp++ {
		if i == j && dp == d {
			continue
		}
		if used[j][dp] {
			continue
		}
		nid2, settled := v.Neighbor(order[j], dp)
		if settled && v.Find(nid2) == srcClass {
			return dp, nil
		}
	}
	return 0, errorsx.Newf(errorsx.CodeProtocolViolation,
		"no unused reverse door found for (room %d, door %d) -> room %d", i, d, j)
}

func lexLess(a, b roomgraph.DoorRef) bool {
	if a.Room != b.Room {
		return a.Room < b.Room
	}
	return a.Door < b.Door
}
