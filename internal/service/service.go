// Package service wires the scheduler, its task sources and the engine
// processor into one long-running daemon, for continuous operation
// beyond a single one-shot `solve` pass over the catalogue.
package service

import (
	"context"
	"fmt"

	"github.com/higashi-matsudo/library-explorer/internal/oracle"
	"github.com/higashi-matsudo/library-explorer/internal/repository"
	"github.com/higashi-matsudo/library-explorer/internal/scheduler"
	"github.com/higashi-matsudo/library-explorer/internal/scheduler/source"
	"github.com/higashi-matsudo/library-explorer/internal/storage"
	"github.com/higashi-matsudo/library-explorer/pkg/config"
	"github.com/higashi-matsudo/library-explorer/pkg/utils"
)

// Options configures which task sources feed the daemon.
type Options struct {
	Config  *config.Config
	Client  oracle.API
	Backend oracle.BackendType
	Logger  utils.Logger

	// EnableCatalogue, when true, seeds a one-shot CatalogueSource over
	// the configured problem catalogue.
	EnableCatalogue bool

	// EnableHTTP, when true, starts an HTTPSource so a new problem can
	// be submitted via POST without restarting the process.
	EnableHTTP  bool
	HTTPOptions *source.HTTPOptions

	// EnableDatabase, when true, starts a DatabaseSource polling
	// HistoryRepository for operator-inserted pending records.
	EnableDatabase bool
	DatabaseOptions *source.DatabaseOptions
}

// Service is the long-running daemon: one scheduler draining an
// aggregator of task sources, each problem run through an
// scheduler.EngineProcessor.
type Service struct {
	config  *config.Config
	logger  utils.Logger
	repos   *repository.Repositories
	store   storage.Storage
	backend oracle.BackendType

	sources    []source.TaskSource
	aggregator *source.Aggregator
	scheduler  *scheduler.Scheduler

	running bool
}

// New builds a Service from already-open dependencies (a database
// connection and storage backend), registering the task sources opts
// selects.
func New(opts Options, repos *repository.Repositories, store storage.Storage) (*Service, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("service: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	var sources []source.TaskSource
	if opts.EnableCatalogue {
		sources = append(sources, source.NewCatalogueSourceWithProblems("catalogue", opts.Config.Catalogue(), logger))
	}
	if opts.EnableHTTP {
		sources = append(sources, source.NewHTTPSourceWithOptions("http", opts.HTTPOptions, logger))
	}
	if opts.EnableDatabase {
		dbSource := source.NewDatabaseSourceWithDeps("database", opts.DatabaseOptions, repos.History, logger)
		sources = append(sources, dbSource)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("service: at least one task source must be enabled")
	}

	aggregator := source.NewAggregator(sources, opts.Config.Scheduler.TaskBatchSize*2, logger)

	processor := scheduler.NewEngineProcessor(&scheduler.ProcessorConfig{
		Config:  opts.Config,
		Client:  opts.Client,
		Store:   store,
		History: repos.History,
		Backend: opts.Backend,
		Logger:  logger,
	})

	sched := scheduler.New(scheduler.FromConfig(&opts.Config.Scheduler), aggregator, processor, logger)

	return &Service{
		config:     opts.Config,
		logger:     logger,
		repos:      repos,
		store:      store,
		backend:    opts.Backend,
		sources:    sources,
		aggregator: aggregator,
		scheduler:  sched,
	}, nil
}

// Start starts the scheduler and every registered task source.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("starting service with %d task source(s)", len(s.sources))
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	s.running = true
	return nil
}

// Stop stops the scheduler, its aggregator and every task source. It does
// not close the database connection.
func (s *Service) Stop() error {
	s.logger.Info("stopping service")
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.aggregator != nil {
		if err := s.aggregator.Stop(); err != nil {
			s.logger.Error("failed to stop aggregator: %v", err)
		}
	}
	s.running = false
	return nil
}

// IsRunning reports whether the service has been started and not yet stopped.
func (s *Service) IsRunning() bool {
	return s.running
}

// Stats returns scheduler statistics.
func (s *Service) Stats() ServiceStats {
	stats := ServiceStats{Running: s.running}
	if s.scheduler != nil {
		stats.Scheduler = s.scheduler.Stats()
	}
	return stats
}

// HealthCheck checks the database connection and every task source.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.repos != nil {
		if err := s.repos.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}
	for _, src := range s.sources {
		if err := src.HealthCheck(ctx); err != nil {
			return fmt.Errorf("source %s health check failed: %w", src.Name(), err)
		}
	}
	return nil
}

// ServiceStats holds service statistics.
type ServiceStats struct {
	Running   bool                     `json:"running"`
	Scheduler scheduler.SchedulerStats `json:"scheduler"`
}
