// Package inference implements marking-probe inference (C5): reading a
// probe's event stream into a mark set, then driving the closure sweep
// that merges equivalent conjecture nodes while preserving I1.
package inference

import (
	"sort"

	"github.com/higashi-matsudo/library-explorer/pkg/conjecture"
	"github.com/higashi-matsudo/library-explorer/pkg/errorsx"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
)

// ReadMarkSet walks a probe's event stream under the canonical view,
// starting at startNode, and returns the set of canonical ids that must
// be equivalent to anchor(pos) — the node the Mark event revealed to
// disagree with its conjectured label. It is a fatal protocol violation
// if an OpenDoor event advances through a door the conjecture has not
// yet settled, or if the resulting mark set is empty.
func ReadMarkSet(v *conjecture.View, startNode int, events []roomgraph.Event) ([]int, error) {
	cur := v.Find(startNode)
	marked := make(map[int]struct{})

	for _, ev := range events {
		switch ev.Kind {
		case roomgraph.EventVisitRoom, roomgraph.EventOverwrite:
			if ev.Label != v.Label(cur) {
				marked[cur] = struct{}{}
			}
		case roomgraph.EventOpenDoor:
			nid, settled := v.Neighbor(cur, ev.Door)
			if !settled {
				return nil, errorsx.Newf(errorsx.CodeProtocolViolation,
					"probe replay hit a closed door %d at canonical node %d", ev.Door, cur)
			}
			cur = nid
		}
	}

	if len(marked) == 0 {
		return nil, errorsx.New(errorsx.CodeProtocolViolation, "probe yielded an empty mark set")
	}

	out := make([]int, 0, len(marked))
	for id := range marked {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

// ApplyProbe reads a probe's mark set and drives the closure sweep that
// merges it into the conjecture, then validates I1 exhaustively. A
// post-sweep I1 violation is a fatal bug in the engine or a
// non-conforming oracle and is surfaced as a protocol violation.
func ApplyProbe(v *conjecture.View, startNode int, events []roomgraph.Event) error {
	marked, err := ReadMarkSet(v, startNode, events)
	if err != nil {
		return err
	}
	v.ClosureSweep(marked)
	if err := v.ValidateInvariantI1(); err != nil {
		return errorsx.Wrap(errorsx.CodeProtocolViolation, "post-sweep invariant I1 could not be restored", err)
	}
	return nil
}
