package conjecture

import (
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
	"github.com/higashi-matsudo/library-explorer/pkg/unionfind"
)

// View is the canonical quotient of a Graph under a unionfind.Forest:
// one representative per equivalence class, with labels and neighbors
// read through Find so callers never see a stale pre-merge id.
type View struct {
	Graph *Graph
	UF    *unionfind.Forest
}

// NewView pairs a conjecture graph with the union-find forest tracking
// its equivalence classes.
func NewView(g *Graph, uf *unionfind.Forest) *View {
	return &View{Graph: g, UF: uf}
}

// Find returns the canonical class id of id.
func (v *View) Find(id int) int {
	return v.UF.Find(id)
}

// Label returns the label of id's canonical class.
func (v *View) Label(id int) roomgraph.Label {
	return v.Graph.LabelOf(v.Find(id))
}

// Neighbor returns the canonical neighbor class settled at door d of
// id's canonical class, and whether that door is settled at all.
func (v *View) Neighbor(id int, d roomgraph.Door) (int, bool) {
	nid, settled := v.Graph.GetNeighbor(v.Find(id), d)
	if !settled {
		return 0, false
	}
	return v.Find(nid), true
}

// Unite merges the classes of a and b.
func (v *View) Unite(a, b int) int {
	return v.UF.Unite(a, b)
}
