// Package conjecture implements the engine's append-only store of
// tentative room identifications: the conjecture graph.
package conjecture

import "github.com/higashi-matsudo/library-explorer/pkg/roomgraph"

// neighborSlot is a door's neighbor reference: either closed (unknown,
// the zero value) or settled to a concrete node id.
type neighborSlot struct {
	settled bool
	nodeID  int
}

// node is a single conjecture node: a tentative room identification with
// a label and six neighbor slots.
type node struct {
	label     roomgraph.Label
	neighbors [roomgraph.NumDoors]neighborSlot
}

// Graph is a flat, append-only store of conjecture nodes, indexed by
// dense sequential ids. Nodes are never deleted; equivalence between
// nodes is tracked externally by a unionfind.Forest.
type Graph struct {
	nodes []node
}

// New creates an empty conjecture graph.
func New() *Graph {
	return &Graph{}
}

// NewNode appends a fresh node with the given label and returns its id.
func (g *Graph) NewNode(label roomgraph.Label) int {
	id := len(g.nodes)
	g.nodes = append(g.nodes, node{label: label})
	return id
}

// Len returns the number of nodes ever created.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// LabelOf returns the label recorded for id.
func (g *Graph) LabelOf(id int) roomgraph.Label {
	return g.nodes[id].label
}

// SetLabel overwrites the label recorded for id.
func (g *Graph) SetLabel(id int, label roomgraph.Label) {
	g.nodes[id].label = label
}

// GetNeighbor returns the neighbor id settled at door d of id, and
// whether that slot is settled at all.
func (g *Graph) GetNeighbor(id int, d roomgraph.Door) (int, bool) {
	slot := g.nodes[id].neighbors[d]
	return slot.nodeID, slot.settled
}

// SetNeighbor settles door d of id to point at nid.
func (g *Graph) SetNeighbor(id int, d roomgraph.Door, nid int) {
	g.nodes[id].neighbors[d] = neighborSlot{settled: true, nodeID: nid}
}

// ClearNeighbor reopens door d of id, marking it closed again. Used only
// by the layered map builder's group-reduction sweep when a merge makes
// a previously settled door no longer representative of its group.
func (g *Graph) ClearNeighbor(id int, d roomgraph.Door) {
	g.nodes[id].neighbors[d] = neighborSlot{}
}
