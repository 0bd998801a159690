package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/higashi-matsudo/library-explorer/internal/repository"
	"github.com/higashi-matsudo/library-explorer/internal/storage"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
)

var (
	replayProblem    string
	replayBackend    string
	replayConfigPath string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Resubmit a previously dumped guess map without exploring",
	Long: `replay resubmits a guess already produced for a problem instead of
exploring it again. It reads every dump under {backend}/{problem} from
local storage, most recent first, and submits each until the oracle
accepts one. If no local dump exists it falls back to the guess maps
recorded in the run history.`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	binName := BinName()
	replayCmd.Example = `  # Replay the most recent dump for a problem
  ` + binName + ` replay --problem aleph --backend official`

	replayCmd.Flags().StringVar(&replayProblem, "problem", "", "Problem name to replay (required)")
	replayCmd.Flags().StringVar(&replayBackend, "backend", "mock", "Oracle backend: mock or official")
	replayCmd.Flags().StringVar(&replayConfigPath, "config", "", "Path to a config file (defaults to ./config.yaml)")
	_ = replayCmd.MarkFlagRequired("problem")
}

func runReplay(cmd *cobra.Command, args []string) error {
	a, err := newApp(replayConfigPath, replayBackend)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, ok := roomgraph.FindProblem(a.cfg.Catalogue(), replayProblem); !ok {
		return fmt.Errorf("unknown problem %q", replayProblem)
	}

	ctx := context.Background()
	candidates, err := loadReplayCandidates(ctx, a.store, a.repos.History, string(a.backend), replayProblem)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no dumped guess maps found for %q on backend %s", replayProblem, a.backend)
	}

	if err := a.client.Select(ctx, a.backend, replayProblem); err != nil {
		return err
	}

	for i, guess := range candidates {
		accepted, err := a.client.Guess(ctx, a.backend, guess)
		if err != nil {
			return err
		}
		if accepted {
			a.logger.Info("replay accepted candidate %d/%d for %q", i+1, len(candidates), replayProblem)
			return nil
		}
		a.logger.Info("replay candidate %d/%d for %q rejected", i+1, len(candidates), replayProblem)
	}
	return fmt.Errorf("oracle rejected every replay candidate for %q", replayProblem)
}

// loadReplayCandidates returns replay candidates for a problem, most
// recent first, preferring the filesystem dump and falling back to the
// run history's recorded guess maps when no local dump exists.
func loadReplayCandidates(ctx context.Context, store storage.Storage, history repository.HistoryRepository, backend, problem string) ([]roomgraph.GuessMap, error) {
	if local, ok := store.(*storage.LocalStorage); ok {
		guesses, err := loadLocalDumps(local, backend, problem)
		if err != nil {
			return nil, err
		}
		if len(guesses) > 0 {
			return guesses, nil
		}
	}

	if history == nil {
		return nil, nil
	}
	records, err := history.ListByProblem(ctx, problem)
	if err != nil {
		return nil, fmt.Errorf("failed to list run history for %q: %w", problem, err)
	}
	guesses := make([]roomgraph.GuessMap, 0, len(records))
	for _, record := range records {
		if record.Backend != backend || len(record.GuessMap) == 0 {
			continue
		}
		var guess roomgraph.GuessMap
		if err := json.Unmarshal(record.GuessMap, &guess); err != nil {
			continue
		}
		guesses = append(guesses, guess)
	}
	return guesses, nil
}

// loadLocalDumps globs {basePath}/{backend}/{problem}/*.json, sorted
// descending by filename (dumps are named by unix-second timestamp, so
// this is also most-recent-first).
func loadLocalDumps(store *storage.LocalStorage, backend, problem string) ([]roomgraph.GuessMap, error) {
	pattern := filepath.Join(store.GetBasePath(), backend, problem, "*.json")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob dumps for %q: %w", problem, err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	guesses := make([]roomgraph.GuessMap, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var guess roomgraph.GuessMap
		if err := json.Unmarshal(data, &guess); err != nil {
			continue
		}
		guesses = append(guesses, guess)
	}
	return guesses, nil
}
