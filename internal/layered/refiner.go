// Package layered implements the layered SA refiner (C8) and the
// layered map builder (C9): for problems known to have N = L*G rooms
// organized into L copies of G canonical rooms, a simulated-annealing
// pass assigns each raw conjecture node to a group, and the collapsed
// assignment is reduced to the final N-room map.
package layered

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/higashi-matsudo/library-explorer/pkg/conjecture"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
)

// finalTemperature is T1 in the geometric cooling schedule, §4.8.
const finalTemperature = 1e-3

// defaultGreedyFraction is the share of the time budget spent in Phase
// A (greedy best-improvement) before switching to Phase B (annealing).
const defaultGreedyFraction = 0.5

// Refiner maintains the layered cost aggregates over a raw (unmerged)
// conjecture graph and searches for a group assignment of cost 0.
type Refiner struct {
	graph *conjecture.Graph
	g     int
	rng   *rand.Rand

	nodeLabel     []roomgraph.Label
	neighborLabel [][roomgraph.NumDoors]int // -1 sentinel for an unsettled door

	assign []int

	groupSize      []int
	labelCount     [][roomgraph.NumLabels]int
	nextLabelCount [][roomgraph.NumDoors][roomgraph.NumLabels]int

	currentCost int
	bestAssign  []int
	bestCost    int

	// GreedyFraction overrides defaultGreedyFraction when > 0.
	GreedyFraction float64
}

// NewRefiner builds a Refiner over graph's raw nodes (ids
// [0, graph.Len())), seeded with a uniformly random initial assignment
// to G groups.
func NewRefiner(graph *conjecture.Graph, g int, rng *rand.Rand) *Refiner {
	n := graph.Len()
	r := &Refiner{
		graph:          graph,
		g:              g,
		rng:            rng,
		nodeLabel:      make([]roomgraph.Label, n),
		neighborLabel:  make([][roomgraph.NumDoors]int, n),
		assign:         make([]int, n),
		groupSize:      make([]int, g),
		labelCount:     make([][roomgraph.NumLabels]int, g),
		nextLabelCount: make([][roomgraph.NumDoors][roomgraph.NumLabels]int, g),
	}

	for i := 0; i < n; i++ {
		r.nodeLabel[i] = graph.LabelOf(i)
		for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
			nid, settled := graph.GetNeighbor(i, d)
			if settled {
				r.neighborLabel[i][d] = int(graph.LabelOf(nid))
			} else {
				r.neighborLabel[i][d] = -1
			}
		}
		r.assign[i] = rng.Intn(g)
	}
	for i := 0; i < n; i++ {
		r.addToGroup(i, r.assign[i])
	}

	r.currentCost = r.totalCostFromAggregates()
	r.bestAssign = append([]int(nil), r.assign...)
	r.bestCost = r.currentCost
	return r
}

// Assignment returns a copy of the current (not necessarily best-seen)
// assignment.
func (r *Refiner) Assignment() []int {
	return append([]int(nil), r.assign...)
}

// BestAssignment returns a copy of the best-seen assignment.
func (r *Refiner) BestAssignment() []int {
	return append([]int(nil), r.bestAssign...)
}

// BestCost returns the best-seen total cost.
func (r *Refiner) BestCost() int {
	return r.bestCost
}

func (r *Refiner) addToGroup(i, group int) {
	r.groupSize[group]++
	r.labelCount[group][r.nodeLabel[i]]++
	for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
		if l := r.neighborLabel[i][d]; l >= 0 {
			r.nextLabelCount[group][d][l]++
		}
	}
}

func (r *Refiner) removeFromGroup(i, group int) {
	r.groupSize[group]--
	r.labelCount[group][r.nodeLabel[i]]--
	for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
		if l := r.neighborLabel[i][d]; l >= 0 {
			r.nextLabelCount[group][d][l]--
		}
	}
}

// contribution computes the cost contribution of group per §4.8:
// (size - max label count) + sum_d (active[d] - max next-label count[d]).
func (r *Refiner) contribution(group int) int {
	cost := r.groupSize[group] - maxInt(r.labelCount[group][:])
	for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
		counts := r.nextLabelCount[group][d][:]
		active := sumInt(counts)
		cost += active - maxInt(counts)
	}
	return cost
}

func (r *Refiner) totalCostFromAggregates() int {
	total := 0
	for g := 0; g < r.g; g++ {
		total += r.contribution(g)
	}
	return total
}

// deltaMove returns the cost delta of moving node i to newGroup, without
// mutating state: contribution(from after) + contribution(to after) -
// contribution(from before) - contribution(to before).
func (r *Refiner) deltaMove(i, newGroup int) int {
	oldGroup := r.assign[i]
	if oldGroup == newGroup {
		return 0
	}
	before := r.contribution(oldGroup) + r.contribution(newGroup)
	r.removeFromGroup(i, oldGroup)
	r.addToGroup(i, newGroup)
	after := r.contribution(oldGroup) + r.contribution(newGroup)
	// revert
	r.removeFromGroup(i, newGroup)
	r.addToGroup(i, oldGroup)
	return after - before
}

func (r *Refiner) applyMove(i, newGroup int) int {
	oldGroup := r.assign[i]
	before := r.contribution(oldGroup) + r.contribution(newGroup)
	r.removeFromGroup(i, oldGroup)
	r.assign[i] = newGroup
	r.addToGroup(i, newGroup)
	after := r.contribution(oldGroup) + r.contribution(newGroup)
	return after - before
}

func (r *Refiner) recordIfBest() {
	if r.currentCost < r.bestCost {
		r.bestCost = r.currentCost
		copy(r.bestAssign, r.assign)
	}
}

// Run executes Phase A (greedy best-improvement) for up to
// GreedyFraction of budget, then Phase B (annealing with geometric
// cooling) for the remainder, and returns the best assignment found.
// Cancellation is cooperative: checked at the top of each greedy-sweep
// node and each annealing step.
func (r *Refiner) Run(ctx context.Context, budget time.Duration) []int {
	start := time.Now()
	fraction := r.GreedyFraction
	if fraction <= 0 {
		fraction = defaultGreedyFraction
	}
	greedyDeadline := start.Add(time.Duration(float64(budget) * fraction))
	overallDeadline := start.Add(budget)

	r.runGreedy(ctx, greedyDeadline)
	r.runAnnealing(ctx, greedyDeadline, overallDeadline)

	return r.BestAssignment()
}

func (r *Refiner) runGreedy(ctx context.Context, deadline time.Time) {
	n := len(r.assign)
	for {
		improved := false
		for i := 0; i < n; i++ {
			if ctx.Err() != nil || time.Now().After(deadline) {
				return
			}
			cur := r.assign[i]
			bestDelta := 0
			bestGroup := -1
			for gp := 0; gp < r.g; gp++ {
				if gp == cur {
					continue
				}
				d := r.deltaMove(i, gp)
				if d < bestDelta {
					bestDelta = d
					bestGroup = gp
				}
			}
			if bestGroup != -1 {
				r.currentCost += r.applyMove(i, bestGroup)
				improved = true
				r.recordIfBest()
			}
		}
		if !improved {
			return
		}
	}
}

func (r *Refiner) runAnnealing(ctx context.Context, phaseStart, deadline time.Time) {
	n := len(r.assign)
	if n == 0 || r.g <= 1 {
		return
	}
	phaseDuration := deadline.Sub(phaseStart)
	if phaseDuration <= 0 {
		return
	}
	t0 := math.Max(1, float64(r.bestCost))

	for {
		now := time.Now()
		if ctx.Err() != nil || now.After(deadline) {
			return
		}
		p := float64(now.Sub(phaseStart)) / float64(phaseDuration)
		if p > 1 {
			p = 1
		}
		temp := t0 * math.Pow(finalTemperature/t0, p)

		i := r.rng.Intn(n)
		cur := r.assign[i]
		bestDelta := math.MaxInt
		bestGroup := -1
		for gp := 0; gp < r.g; gp++ {
			if gp == cur {
				continue
			}
			d := r.deltaMove(i, gp)
			if d < bestDelta {
				bestDelta = d
				bestGroup = gp
			}
		}
		if bestGroup == -1 {
			continue
		}

		accept := bestDelta <= 0
		if !accept {
			accept = r.rng.Float64() < math.Exp(-float64(bestDelta)/temp)
		}
		if accept {
			r.currentCost += r.applyMove(i, bestGroup)
			r.recordIfBest()
		}
	}
}

func maxInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func sumInt(xs []int) int {
	s := 0
	for _, x := range xs {
		s += x
	}
	return s
}

// RecomputeCost recomputes the layered cost from scratch, tallying every
// node's counts afresh and then summing per group, independent of the incremental
// aggregates Refiner maintains. Used to cross-check delta-vs-recompute
// equivalence under fuzzing (P5); never used by Run itself.
func RecomputeCost(graph *conjecture.Graph, g int, assign []int) int {
	n := graph.Len()
	labelCount := make([][roomgraph.NumLabels]int, g)
	nextLabelCount := make([][roomgraph.NumDoors][roomgraph.NumLabels]int, g)
	groupSize := make([]int, g)

	for i := 0; i < n; i++ {
		group := assign[i]
		groupSize[group]++
		labelCount[group][graph.LabelOf(i)]++
		for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
			nid, settled := graph.GetNeighbor(i, d)
			if settled {
				nextLabelCount[group][d][graph.LabelOf(nid)]++
			}
		}
	}

	total := 0
	for group := 0; group < g; group++ {
		total += groupSize[group] - maxInt(labelCount[group][:])
		for d := roomgraph.Door(0); d < roomgraph.NumDoors; d++ {
			counts := nextLabelCount[group][d][:]
			total += sumInt(counts) - maxInt(counts)
		}
	}
	return total
}
