// Package engine implements the exploration loop (C6) that alternates
// plan generation, oracle exploration and marking-probe inference until
// the conjecture has no closed doors, then hands the fully-merged
// conjecture to the guess builder (C7, package guessbuilder).
package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/higashi-matsudo/library-explorer/internal/guessbuilder"
	"github.com/higashi-matsudo/library-explorer/internal/inference"
	"github.com/higashi-matsudo/library-explorer/internal/layered"
	"github.com/higashi-matsudo/library-explorer/internal/oracle"
	"github.com/higashi-matsudo/library-explorer/internal/planner"
	"github.com/higashi-matsudo/library-explorer/pkg/conjecture"
	"github.com/higashi-matsudo/library-explorer/pkg/errorsx"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
	"github.com/higashi-matsudo/library-explorer/pkg/unionfind"
	"github.com/higashi-matsudo/library-explorer/pkg/utils"
)

// unionfindCapacityFactor is the conservative per-node capacity multiple
// the disjoint-set forest is preallocated with, per §3's data model.
const unionfindCapacityFactor = 1000

// defaultSATimeBudget is used when Config.SATimeBudget is unset.
const defaultSATimeBudget = 5 * time.Second

// rawWalksPerRoom is how many full random walks RawWalk takes per
// expected room before handing the raw conjecture to the SA refiner.
const rawWalksPerRoom = 1

// Config configures one engine run against a single catalogue entry.
type Config struct {
	Backend      oracle.BackendType
	ProblemName  string
	N            int
	Layers       *roomgraph.LayerSpec // nil for the general (non-layered) engine
	RandSeed     int64
	SATimeBudget time.Duration // layered problems only; see internal/layered
	SARestarts   int           // concurrent SA attempts; <= 1 runs a single attempt
}

// Engine runs one problem instance to completion: select, explore,
// infer, guess. A fresh Engine (and its conjecture.Graph and
// unionfind.Forest) must be constructed per problem instance; nothing
// inside it is safe to share across concurrently running instances.
type Engine struct {
	client oracle.API
	cfg    Config
	logger utils.Logger
	rng    *rand.Rand
}

// New creates an Engine for one problem run.
func New(client oracle.API, cfg Config, logger utils.Logger) *Engine {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &Engine{
		client: client,
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.RandSeed)),
	}
}

// Run executes select followed by the exploration loop (and, for layered
// problems, the SA refiner and layered map builder) and returns the
// final guess map. It does not submit the guess to the oracle; callers
// decide whether and how to call Guess.
func (e *Engine) Run(ctx context.Context) (*roomgraph.GuessMap, error) {
	if err := e.client.Select(ctx, e.cfg.Backend, e.cfg.ProblemName); err != nil {
		return nil, err
	}
	if e.cfg.Layers != nil {
		return e.runLayered(ctx)
	}
	return e.runGeneral(ctx)
}

func (e *Engine) runGeneral(ctx context.Context) (*roomgraph.GuessMap, error) {
	graph := conjecture.New()
	uf := unionfind.New(e.cfg.N * unionfindCapacityFactor)
	view := conjecture.NewView(graph, uf)

	var plan roomgraph.Plan
	var startNode int
	first := true

	maxIterations := 50 * (e.cfg.N + 1) * roomgraph.NumDoors
	for iter := 0; ; iter++ {
		if iter > maxIterations {
			return nil, errorsx.Newf(errorsx.CodeProtocolViolation,
				"exploration loop exceeded %d iterations without converging for %q", maxIterations, e.cfg.ProblemName)
		}

		plan = planner.RandomExtend(plan, roomgraph.NumDoors*e.cfg.N, e.rng)

		events, err := e.exploreOne(ctx, plan)
		if err != nil {
			return nil, err
		}

		if first {
			if len(events) == 0 || events[0].Kind != roomgraph.EventVisitRoom {
				return nil, errorsx.New(errorsx.CodeProtocolViolation, "initial walk did not begin with VisitRoom")
			}
			startNode = graph.NewNode(events[0].Label)
			first = false
		}

		if _, err := walkEvents(graph, view, startNode, events); err != nil {
			return nil, err
		}

		if err := e.runProbes(ctx, view, startNode, plan); err != nil {
			return nil, err
		}

		nextPlan, ok := planner.BFSToClosedDoor(view)
		if !ok {
			break
		}
		plan = nextPlan
	}

	guess, err := guessbuilder.Build(view, startNode)
	if err != nil {
		return nil, err
	}
	return &guess, nil
}

// RawWalk builds a conjecture graph by walking a fixed number of full
// random plans from the starting room without attempting any merging,
// the raw material the layered SA refiner (C8) works from. It returns
// the view and the dense starting node id.
func (e *Engine) RawWalk(ctx context.Context, walks int) (*conjecture.View, int, error) {
	graph := conjecture.New()
	uf := unionfind.New(e.cfg.N * unionfindCapacityFactor)
	view := conjecture.NewView(graph, uf)

	var startNode int
	first := true

	for w := 0; w < walks; w++ {
		var plan roomgraph.Plan
		plan = planner.RandomExtend(plan, roomgraph.NumDoors*e.cfg.N, e.rng)

		events, err := e.exploreOne(ctx, plan)
		if err != nil {
			return nil, 0, err
		}
		if first {
			if len(events) == 0 || events[0].Kind != roomgraph.EventVisitRoom {
				return nil, 0, errorsx.New(errorsx.CodeProtocolViolation, "initial walk did not begin with VisitRoom")
			}
			startNode = graph.NewNode(events[0].Label)
			first = false
		}
		if _, err := walkEvents(graph, view, startNode, events); err != nil {
			return nil, 0, err
		}
	}

	return view, startNode, nil
}

// runLayered handles problems known to be N = L*G rooms organized into
// L copies of G canonical rooms (§4.8-§4.9): it gathers raw (unmerged)
// exploration data, runs the layered SA refiner to find a zero-cost
// grouping of raw nodes into G groups, then reduces each group down to
// its L distinguishable rooms via the layered map builder.
func (e *Engine) runLayered(ctx context.Context) (*roomgraph.GuessMap, error) {
	walks := rawWalksPerRoom * e.cfg.N
	if walks < 1 {
		walks = 1
	}
	view, startNode, err := e.RawWalk(ctx, walks)
	if err != nil {
		return nil, err
	}

	budget := e.cfg.SATimeBudget
	if budget <= 0 {
		budget = defaultSATimeBudget
	}
	restarts := e.cfg.SARestarts
	if restarts < 1 {
		restarts = 1
	}
	best, bestCost := layered.RefineBest(ctx, view.Graph, e.cfg.Layers.G, e.rng, budget, restarts)
	if bestCost != 0 {
		return nil, errorsx.Newf(errorsx.CodeProtocolViolation,
			"layered refiner for %q did not converge to cost 0 within budget across %d attempt(s) (best cost %d)", e.cfg.ProblemName, restarts, bestCost)
	}

	guess, err := layered.BuildMap(view, startNode, best, e.cfg.Layers.L)
	if err != nil {
		return nil, err
	}
	return &guess, nil
}

// runProbes builds T = len(plan)/2 marking probes against the
// already-walked plan, submits them as one batch, and applies each
// probe's closure sweep in order.
func (e *Engine) runProbes(ctx context.Context, view *conjecture.View, startNode int, plan roomgraph.Plan) error {
	t := len(plan) / 2
	if t == 0 {
		return nil
	}
	probes := make([]roomgraph.Plan, t)
	for pos := 0; pos < t; pos++ {
		probes[pos] = planner.InsertProbe(view, startNode, plan, pos)
	}

	streams, err := e.client.Explore(ctx, e.cfg.Backend, probes)
	if err != nil {
		return err
	}
	for _, events := range streams {
		if err := inference.ApplyProbe(view, startNode, events); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) exploreOne(ctx context.Context, plan roomgraph.Plan) ([]roomgraph.Event, error) {
	streams, err := e.client.Explore(ctx, e.cfg.Backend, []roomgraph.Plan{plan})
	if err != nil {
		return nil, err
	}
	return streams[0], nil
}

// walkEvents replays a mark-free event stream from startNode, following
// existing settled doors and creating fresh nodes (with the sentinel
// label immediately overwritten by the observed one) whenever a walk
// opens a door whose neighbor slot is still closed. It returns the
// canonical id of the node the walk ends on.
func walkEvents(g *conjecture.Graph, v *conjecture.View, startNode int, events []roomgraph.Event) (int, error) {
	cur := v.Find(startNode)
	idx := 1
	for idx < len(events) {
		openEv := events[idx]
		if openEv.Kind != roomgraph.EventOpenDoor {
			return 0, errorsx.Newf(errorsx.CodeProtocolViolation, "expected OpenDoor event at index %d, got kind %d", idx, openEv.Kind)
		}
		if idx+1 >= len(events) || events[idx+1].Kind != roomgraph.EventVisitRoom {
			return 0, errorsx.New(errorsx.CodeProtocolViolation, "OpenDoor event not followed by VisitRoom")
		}
		visitEv := events[idx+1]

		nid, settled := v.Neighbor(cur, openEv.Door)
		if !settled {
			nid = g.NewNode(visitEv.Label)
			g.SetNeighbor(cur, openEv.Door, nid)
		} else {
			g.SetLabel(nid, visitEv.Label)
		}
		cur = v.Find(nid)
		idx += 2
	}
	return cur, nil
}
