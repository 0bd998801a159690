package conjecture

import (
	"testing"

	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
	"github.com/stretchr/testify/assert"
)

func TestNewNodeAssignsDenseIDs(t *testing.T) {
	g := New()
	a := g.NewNode(roomgraph.UnobservedLabel)
	b := g.NewNode(roomgraph.Label(2))
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, 2, g.Len())
}

func TestNeighborsStartClosed(t *testing.T) {
	g := New()
	id := g.NewNode(roomgraph.Label(0))
	_, settled := g.GetNeighbor(id, 3)
	assert.False(t, settled)
}

func TestSetNeighborSettles(t *testing.T) {
	g := New()
	a := g.NewNode(roomgraph.Label(0))
	b := g.NewNode(roomgraph.Label(1))
	g.SetNeighbor(a, 2, b)
	nid, settled := g.GetNeighbor(a, 2)
	assert.True(t, settled)
	assert.Equal(t, b, nid)
}

func TestSetLabelOverwrites(t *testing.T) {
	g := New()
	id := g.NewNode(roomgraph.UnobservedLabel)
	g.SetLabel(id, roomgraph.Label(3))
	assert.Equal(t, roomgraph.Label(3), g.LabelOf(id))
}

func TestClearNeighborReopens(t *testing.T) {
	g := New()
	a := g.NewNode(roomgraph.Label(0))
	b := g.NewNode(roomgraph.Label(0))
	g.SetNeighbor(a, 0, b)
	g.ClearNeighbor(a, 0)
	_, settled := g.GetNeighbor(a, 0)
	assert.False(t, settled)
}
