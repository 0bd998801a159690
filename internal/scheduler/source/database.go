package source

import (
	"context"
	"sync"
	"time"

	"github.com/higashi-matsudo/library-explorer/internal/repository"
	"github.com/higashi-matsudo/library-explorer/pkg/utils"
)

// SourceTypeDB is the source type constant for database source.
const SourceTypeDB SourceType = "database"

func init() {
	Register(SourceTypeDB, NewDatabaseSource)
}

// DatabaseOptions holds database source specific configuration.
type DatabaseOptions struct {
	// PollInterval is how often to poll for new problem requests.
	PollInterval time.Duration

	// BatchSize is the maximum number of pending records to fetch per poll.
	BatchSize int
}

// DefaultDatabaseOptions returns the default options.
func DefaultDatabaseOptions() *DatabaseOptions {
	return &DatabaseOptions{
		PollInterval: 2 * time.Second,
		BatchSize:    10,
	}
}

// DatabaseSource polls repository.HistoryRepository for RunRecords an
// operator inserted directly with outcome=pending, and dispatches one
// ProblemRequest per record.
type DatabaseSource struct {
	name    string
	options *DatabaseOptions
	logger  utils.Logger

	history repository.HistoryRepository

	reqChan chan *ProblemRequest
	stopCh  chan struct{}

	mu      sync.RWMutex
	running bool
}

// NewDatabaseSource creates a new database source from configuration.
func NewDatabaseSource(cfg *SourceConfig) (TaskSource, error) {
	opts := &DatabaseOptions{
		PollInterval: cfg.GetDuration("poll_interval", 2*time.Second),
		BatchSize:    cfg.GetInt("batch_size", 10),
	}

	return &DatabaseSource{
		name:    cfg.Name,
		options: opts,
		reqChan: make(chan *ProblemRequest, opts.BatchSize*2),
		stopCh:  make(chan struct{}),
	}, nil
}

// NewDatabaseSourceWithDeps creates a new database source with an explicit
// history repository, for production and test use.
func NewDatabaseSourceWithDeps(name string, opts *DatabaseOptions, history repository.HistoryRepository, logger utils.Logger) *DatabaseSource {
	if opts == nil {
		opts = DefaultDatabaseOptions()
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	return &DatabaseSource{
		name:    name,
		options: opts,
		logger:  logger,
		history: history,
		reqChan: make(chan *ProblemRequest, opts.BatchSize*2),
		stopCh:  make(chan struct{}),
	}
}

// SetHistoryRepository sets the history repository. Must be called before
// Start if using the factory-created source.
func (s *DatabaseSource) SetHistoryRepository(history repository.HistoryRepository) {
	s.history = history
}

// SetLogger sets the logger.
func (s *DatabaseSource) SetLogger(logger utils.Logger) {
	s.logger = logger
}

// Type returns the source type.
func (s *DatabaseSource) Type() SourceType {
	return SourceTypeDB
}

// Name returns the source instance name.
func (s *DatabaseSource) Name() string {
	return s.name
}

// Start starts the database polling loop.
func (s *DatabaseSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	if s.history == nil {
		s.mu.Unlock()
		return nil
	}

	s.running = true
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("Database source %s starting with poll_interval=%v, batch_size=%d",
			s.name, s.options.PollInterval, s.options.BatchSize)
	}

	go s.pollLoop(ctx)
	return nil
}

// Stop stops the database source.
func (s *DatabaseSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	return nil
}

// Tasks returns the problem-request channel.
func (s *DatabaseSource) Tasks() <-chan *ProblemRequest {
	return s.reqChan
}

// Ack is a no-op: the run's final outcome is written by the processor via
// HistoryRepository.UpdateOutcome, not by the source that dispatched it.
func (s *DatabaseSource) Ack(ctx context.Context, req *ProblemRequest) error {
	return nil
}

// Nack marks the record failed when a problem request could not even be
// processed (e.g. the engine never ran).
func (s *DatabaseSource) Nack(ctx context.Context, req *ProblemRequest, reason string) error {
	if s.history == nil {
		return nil
	}
	id, ok := req.AckToken.(int64)
	if !ok {
		return nil
	}
	return s.history.UpdateOutcome(ctx, id, repository.OutcomeFailed, nil, reason)
}

// HealthCheck checks the history repository connection.
func (s *DatabaseSource) HealthCheck(ctx context.Context) error {
	if s.history == nil {
		return nil
	}
	_, err := s.history.ListPending(ctx, 1)
	return err
}

// pollLoop continuously polls for pending records.
func (s *DatabaseSource) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.options.PollInterval)
	defer ticker.Stop()

	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll fetches pending records and emits them as problem requests.
func (s *DatabaseSource) poll(ctx context.Context) {
	if s.history == nil {
		return
	}

	records, err := s.history.ListPending(ctx, s.options.BatchSize)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("Database source %s failed to fetch pending records: %v", s.name, err)
		}
		return
	}

	for _, record := range records {
		req := NewProblemRequest(record.Problem, SourceTypeDB, s.name).
			WithAckToken(record.ID).
			WithMetadata("fetched_at", time.Now().Format(time.RFC3339))

		select {
		case s.reqChan <- req:
			if s.logger != nil {
				s.logger.Debug("Database source %s emitted problem %s (record %d)", s.name, record.Problem, record.ID)
			}
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
			if s.logger != nil {
				s.logger.Warn("Database source %s request channel full, record %d will retry", s.name, record.ID)
			}
		}
	}
}
