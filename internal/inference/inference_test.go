package inference

import (
	"testing"

	"github.com/higashi-matsudo/library-explorer/pkg/conjecture"
	"github.com/higashi-matsudo/library-explorer/pkg/errorsx"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
	"github.com/higashi-matsudo/library-explorer/pkg/unionfind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 3: nodes {0,1} both label 2, door 0 of node 0 settled to node
// 1, and a probe reporting VisitRoom(2), Overwrite(3), OpenDoor(0),
// VisitRoom(3). The mark at node 0 records node 0 (3 != 2), and node 1 is
// observed with label 3 != its conjectured label 2, so the mark set is
// {0, 1} and the sweep must unite 0 and 1.
func TestApplyProbeCollapsesScenario3(t *testing.T) {
	g := conjecture.New()
	a := g.NewNode(roomgraph.Label(2))
	b := g.NewNode(roomgraph.Label(2))
	g.SetNeighbor(a, 0, b)
	uf := unionfind.New(g.Len() * 1000)
	v := conjecture.NewView(g, uf)

	events := []roomgraph.Event{
		{Kind: roomgraph.EventVisitRoom, Label: 2},
		{Kind: roomgraph.EventOverwrite, Label: 3},
		{Kind: roomgraph.EventOpenDoor, Door: 0},
		{Kind: roomgraph.EventVisitRoom, Label: 3},
	}

	require.NoError(t, ApplyProbe(v, a, events))
	assert.Equal(t, v.Find(a), v.Find(b))
}

func TestReadMarkSetEmptyIsProtocolViolation(t *testing.T) {
	g := conjecture.New()
	a := g.NewNode(roomgraph.Label(0))
	uf := unionfind.New(g.Len() * 1000)
	v := conjecture.NewView(g, uf)

	events := []roomgraph.Event{{Kind: roomgraph.EventVisitRoom, Label: 0}}
	_, err := ReadMarkSet(v, a, events)
	require.Error(t, err)
	assert.Equal(t, errorsx.CodeProtocolViolation, errorsx.GetErrorCode(err))
}

func TestReadMarkSetClosedDoorIsProtocolViolation(t *testing.T) {
	g := conjecture.New()
	a := g.NewNode(roomgraph.Label(0))
	uf := unionfind.New(g.Len() * 1000)
	v := conjecture.NewView(g, uf)

	events := []roomgraph.Event{
		{Kind: roomgraph.EventVisitRoom, Label: 0},
		{Kind: roomgraph.EventOpenDoor, Door: 0},
	}
	_, err := ReadMarkSet(v, a, events)
	require.Error(t, err)
	assert.Equal(t, errorsx.CodeProtocolViolation, errorsx.GetErrorCode(err))
}
