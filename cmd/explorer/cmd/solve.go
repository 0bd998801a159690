package cmd

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/higashi-matsudo/library-explorer/internal/scheduler"
	"github.com/higashi-matsudo/library-explorer/internal/scheduler/source"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
)

var (
	solveBackend    string
	solveProblems   string
	solveConfigPath string
	solveTrace      bool
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve catalogue problems through the scheduler",
	Long: `solve iterates the problem catalogue (or a given subset) through the
scheduler, running one engine instance per problem: select, explore, infer
and guess, persisting every accepted guess.`,
	RunE: runSolve,
}

func init() {
	rootCmd.AddCommand(solveCmd)

	binName := BinName()
	solveCmd.Example = `  # Solve every catalogue problem against the mock backend
  ` + binName + ` solve --backend mock

  # Solve a subset against the official backend
  ` + binName + ` solve --backend official --problems aleph,beth,gimel`

	solveCmd.Flags().StringVar(&solveBackend, "backend", "mock", "Oracle backend: mock or official")
	solveCmd.Flags().StringVar(&solveProblems, "problems", "", "Comma-separated problem names (defaults to the full catalogue)")
	solveCmd.Flags().StringVar(&solveConfigPath, "config", "", "Path to a config file (defaults to ./config.yaml)")
	solveCmd.Flags().BoolVar(&solveTrace, "trace", false, "Persist a compressed event/probe trace alongside each run")
}

func runSolve(cmd *cobra.Command, args []string) error {
	a, err := newApp(solveConfigPath, solveBackend)
	if err != nil {
		return err
	}
	defer a.Close()

	problems := a.cfg.Catalogue()
	if solveProblems != "" {
		wanted := strings.Split(solveProblems, ",")
		problems = filterProblems(problems, wanted)
	}

	catalogueSrc := source.NewCatalogueSourceWithProblems("catalogue", problems, a.logger)
	aggregator := source.NewAggregator([]source.TaskSource{catalogueSrc}, 64, a.logger)

	processor := scheduler.NewEngineProcessor(&scheduler.ProcessorConfig{
		Config:  a.cfg,
		Client:  a.client,
		Store:   a.store,
		History: a.repos.History,
		Backend: a.backend,
		Logger:  a.logger,
		Trace:   solveTrace,
	})

	sched := scheduler.New(scheduler.FromConfig(&a.cfg.Scheduler), aggregator, processor, a.logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("solving %d problem(s) against backend %s", len(problems), a.backend)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	sched.Stop()
	return nil
}

// filterProblems returns the catalogue entries whose name is in wanted,
// preserving catalogue order.
func filterProblems(catalogue []roomgraph.ProblemSpec, wanted []string) []roomgraph.ProblemSpec {
	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		want[strings.TrimSpace(w)] = true
	}
	filtered := make([]roomgraph.ProblemSpec, 0, len(wanted))
	for _, p := range catalogue {
		if want[p.Name] {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
