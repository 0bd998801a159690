package layered

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/higashi-matsudo/library-explorer/pkg/conjecture"
	"github.com/higashi-matsudo/library-explorer/pkg/parallel"
)

// RefineBest runs restarts independent Refiner attempts over graph
// concurrently, each seeded from its own RNG stream derived from seed,
// and returns the assignment and cost of whichever attempt converged
// lowest. graph is only read during each Refiner's construction, so
// sharing it across concurrent attempts is safe.
func RefineBest(ctx context.Context, graph *conjecture.Graph, g int, seed *rand.Rand, budget time.Duration, restarts int) ([]int, int) {
	if restarts < 1 {
		restarts = 1
	}

	seeds := make([]int64, restarts)
	for i := range seeds {
		seeds[i] = seed.Int63()
	}

	var (
		mu         sync.Mutex
		bestCost   = -1
		bestAssign []int
	)

	cfg := parallel.DefaultPoolConfig()
	cfg.MaxWorkers = restarts

	parallel.ForEach(ctx, seeds, cfg, func(ctx context.Context, s int64) error {
		r := NewRefiner(graph, g, rand.New(rand.NewSource(s)))
		assign := r.Run(ctx, budget)

		mu.Lock()
		if bestCost == -1 || r.BestCost() < bestCost {
			bestCost = r.BestCost()
			bestAssign = assign
		}
		mu.Unlock()
		return nil
	})

	return bestAssign, bestCost
}
