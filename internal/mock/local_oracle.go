package mock

import (
	"context"
	"sync"

	"github.com/higashi-matsudo/library-explorer/internal/oracle"
	"github.com/higashi-matsudo/library-explorer/pkg/errorsx"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
)

// LocalOracle is a deterministic, in-process oracle backend: it holds an
// actual labeled 6-regular multigraph and answers Explore by replaying
// plans against it exactly as the real service would, including marks
// that permanently overwrite a room's observed label. Unlike MockOracle
// it needs no pre-scripted expectations and can drive an Engine run to
// genuine convergence, which makes it the right double for end-to-end
// scenarios (§8) that a canned mock cannot exercise.
type LocalOracle struct {
	mu sync.Mutex

	startingRoom int
	trueLabels   []roomgraph.Label // fixed at construction, used to judge Guess
	labels       []roomgraph.Label // mutated by Mark actions, used to answer Explore
	adjacency    [][roomgraph.NumDoors]roomgraph.DoorRef

	selectedName string
	selectErr    error

	forceResult *bool
	guessErr    error
	guesses     []roomgraph.GuessMap
}

var _ oracle.API = (*LocalOracle)(nil)

// NewLocalOracle builds a LocalOracle around a ground-truth map. truth
// must settle every door exactly once, in both directions, the same
// invariant the guess builder (C7) produces.
func NewLocalOracle(truth roomgraph.GuessMap) *LocalOracle {
	labels := make([]roomgraph.Label, len(truth.Rooms))
	copy(labels, truth.Rooms)
	trueLabels := make([]roomgraph.Label, len(truth.Rooms))
	copy(trueLabels, truth.Rooms)

	adjacency := make([][roomgraph.NumDoors]roomgraph.DoorRef, len(truth.Rooms))
	for i := range adjacency {
		for d := range adjacency[i] {
			adjacency[i][d] = roomgraph.DoorRef{Room: -1}
		}
	}
	for _, c := range truth.Connections {
		adjacency[c.From.Room][c.From.Door] = c.To
		adjacency[c.To.Room][c.To.Door] = c.From
	}

	return &LocalOracle{
		startingRoom: truth.StartingRoom,
		trueLabels:   trueLabels,
		labels:       labels,
		adjacency:    adjacency,
	}
}

// FailSelect makes every subsequent Select call return err.
func (o *LocalOracle) FailSelect(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selectErr = err
}

// ForceGuessResult makes every subsequent Guess call return correct
// regardless of whether the submitted map actually reproduces the truth,
// the shape scenario 6 needs to force a rejection.
func (o *LocalOracle) ForceGuessResult(correct bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.forceResult = &correct
}

// FailGuess makes every subsequent Guess call return err.
func (o *LocalOracle) FailGuess(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.guessErr = err
}

// Guesses returns every map submitted to Guess so far, in submission
// order.
func (o *LocalOracle) Guesses() []roomgraph.GuessMap {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]roomgraph.GuessMap, len(o.guesses))
	copy(out, o.guesses)
	return out
}

// Select records the selected problem name.
func (o *LocalOracle) Select(ctx context.Context, backend oracle.BackendType, problemName string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.selectErr != nil {
		return o.selectErr
	}
	o.selectedName = problemName
	return nil
}

// Explore replays each plan from the starting room, applying door moves
// and persistent mark overwrites exactly as a conforming oracle would.
func (o *LocalOracle) Explore(ctx context.Context, backend oracle.BackendType, plans []roomgraph.Plan) ([][]roomgraph.Event, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	streams := make([][]roomgraph.Event, len(plans))
	for i, plan := range plans {
		events, err := o.walk(plan)
		if err != nil {
			return nil, err
		}
		streams[i] = events
	}
	return streams, nil
}

func (o *LocalOracle) walk(plan roomgraph.Plan) ([]roomgraph.Event, error) {
	cur := o.startingRoom
	events := make([]roomgraph.Event, 0, 1+2*len(plan))
	events = append(events, roomgraph.Event{Kind: roomgraph.EventVisitRoom, Label: o.labels[cur]})

	for _, a := range plan {
		switch a.Kind {
		case roomgraph.ActionOpen:
			next := o.adjacency[cur][a.Door]
			if next.Room < 0 {
				return nil, errorsx.Newf(errorsx.CodeProtocolViolation,
					"local oracle: room %d door %d has no partner", cur, a.Door)
			}
			cur = next.Room
			events = append(events, roomgraph.Event{Kind: roomgraph.EventOpenDoor, Door: a.Door})
			events = append(events, roomgraph.Event{Kind: roomgraph.EventVisitRoom, Label: o.labels[cur]})
		case roomgraph.ActionMark:
			o.labels[cur] = a.Label
			events = append(events, roomgraph.Event{Kind: roomgraph.EventOverwrite, Label: a.Label})
		}
	}
	return events, nil
}

// Guess records the submitted map and reports whether it reproduces the
// ground-truth structure (original labels, ignoring any marks applied
// during exploration), unless a forced result or error was set.
func (o *LocalOracle) Guess(ctx context.Context, backend oracle.BackendType, m roomgraph.GuessMap) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.guesses = append(o.guesses, m)
	if o.guessErr != nil {
		return false, o.guessErr
	}
	if o.forceResult != nil {
		return *o.forceResult, nil
	}

	truth := roomgraph.GuessMap{
		Rooms:        o.trueLabels,
		StartingRoom: o.startingRoom,
		Connections:  nil, // adjacency already built; isomorphic rebuilds its own view of m
	}
	return isomorphic(truth, o.adjacency, m), nil
}

// isomorphic reports whether guess reconstructs truth's structure
// starting from their respective starting rooms: a room-id bijection
// discovered breadth-first, required to agree on label and, for every
// door (doors are positional, never renumbered by the guess builder), on
// the room each side reaches.
func isomorphic(truth roomgraph.GuessMap, truthAdj [][roomgraph.NumDoors]roomgraph.DoorRef, guess roomgraph.GuessMap) bool {
	if len(truth.Rooms) != len(guess.Rooms) {
		return false
	}
	guessAdj := buildAdjacency(guess)

	gToT := map[int]int{guess.StartingRoom: truth.StartingRoom}
	tToG := map[int]int{truth.StartingRoom: guess.StartingRoom}
	queue := []int{guess.StartingRoom}

	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		t := gToT[g]

		if guess.Rooms[g] != truth.Rooms[t] {
			return false
		}

		for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
			gNext := guessAdj[g][d]
			tNext := truthAdj[t][d]
			if gNext.Room < 0 || tNext.Room < 0 {
				return false
			}
			if mappedT, ok := gToT[gNext.Room]; ok {
				if mappedT != tNext.Room {
					return false
				}
				continue
			}
			if mappedG, ok := tToG[tNext.Room]; ok {
				if mappedG != gNext.Room {
					return false
				}
				continue
			}
			gToT[gNext.Room] = tNext.Room
			tToG[tNext.Room] = gNext.Room
			queue = append(queue, gNext.Room)
		}
	}

	return len(gToT) == len(guess.Rooms)
}

func buildAdjacency(m roomgraph.GuessMap) [][roomgraph.NumDoors]roomgraph.DoorRef {
	adj := make([][roomgraph.NumDoors]roomgraph.DoorRef, len(m.Rooms))
	for i := range adj {
		for d := range adj[i] {
			adj[i][d] = roomgraph.DoorRef{Room: -1}
		}
	}
	for _, c := range m.Connections {
		adj[c.From.Room][c.From.Door] = c.To
		adj[c.To.Room][c.To.Door] = c.From
	}
	return adj
}
