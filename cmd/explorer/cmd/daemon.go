package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/higashi-matsudo/library-explorer/internal/scheduler/source"
	"github.com/higashi-matsudo/library-explorer/internal/service"
)

var (
	daemonConfigPath string
	daemonBackend    string
	daemonCatalogue  bool
	daemonHTTP       bool
	daemonHTTPAddr   string
	daemonDatabase   bool
	daemonPollEvery  time.Duration
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scheduler continuously against one or more task sources",
	Long: `daemon keeps the scheduler running instead of exiting once the
catalogue has been drained. It can accept new problems over HTTP, poll
the run history for operator-inserted pending records, or both, on top
of the usual catalogue source.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	binName := BinName()
	daemonCmd.Example = `  # Run the catalogue once, then keep listening for new problems over HTTP
  ` + binName + ` daemon --http --http-addr :8081

  # Poll the database for pending runs inserted by another process
  ` + binName + ` daemon --database --poll-every 5s`

	daemonCmd.Flags().StringVar(&daemonConfigPath, "config", "", "Path to a config file (defaults to ./config.yaml)")
	daemonCmd.Flags().StringVar(&daemonBackend, "backend", "mock", "Oracle backend: mock or official")
	daemonCmd.Flags().BoolVar(&daemonCatalogue, "catalogue", true, "Seed a one-shot source over the configured problem catalogue")
	daemonCmd.Flags().BoolVar(&daemonHTTP, "http", false, "Accept new problems over HTTP")
	daemonCmd.Flags().StringVar(&daemonHTTPAddr, "http-addr", ":8081", "Listen address for the HTTP task source")
	daemonCmd.Flags().BoolVar(&daemonDatabase, "database", false, "Poll the run history for pending records")
	daemonCmd.Flags().DurationVar(&daemonPollEvery, "poll-every", 5*time.Second, "Database source poll interval")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := newApp(daemonConfigPath, daemonBackend)
	if err != nil {
		return err
	}
	defer a.Close()

	httpOpts := source.DefaultHTTPOptions()
	httpOpts.ListenAddr = daemonHTTPAddr

	dbOpts := source.DefaultDatabaseOptions()
	dbOpts.PollInterval = daemonPollEvery

	svc, err := service.New(service.Options{
		Config:          a.cfg,
		Client:          a.client,
		Backend:         a.backend,
		Logger:          a.logger,
		EnableCatalogue: daemonCatalogue,
		EnableHTTP:      daemonHTTP,
		HTTPOptions:     httpOpts,
		EnableDatabase:  daemonDatabase,
		DatabaseOptions: dbOpts,
	}, a.repos, a.store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return svc.Stop()
}
