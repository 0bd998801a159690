package source

import (
	"context"
	"sync"

	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
	"github.com/higashi-matsudo/library-explorer/pkg/utils"
)

// SourceTypeCatalogue is the source type constant for the static
// catalogue source.
const SourceTypeCatalogue SourceType = "catalogue"

func init() {
	Register(SourceTypeCatalogue, NewCatalogueSource)
}

// CatalogueSource walks a fixed list of problems once, emitting one
// ProblemRequest per entry and then closing its channel. It backs the
// `solve` CLI command's "iterate over a fixed problem list" contract.
type CatalogueSource struct {
	name     string
	problems []roomgraph.ProblemSpec
	logger   utils.Logger

	reqChan chan *ProblemRequest
	stopCh  chan struct{}

	mu      sync.RWMutex
	running bool
}

// NewCatalogueSource creates a CatalogueSource from configuration. It has
// no problems of its own until SetProblems is called; the factory
// registration exists so it can be selected by SourceConfig.Type like
// any other source.
func NewCatalogueSource(cfg *SourceConfig) (TaskSource, error) {
	return &CatalogueSource{
		name:    cfg.Name,
		reqChan: make(chan *ProblemRequest, 16),
		stopCh:  make(chan struct{}),
	}, nil
}

// NewCatalogueSourceWithProblems creates a CatalogueSource carrying an
// explicit problem list, for production and test use.
func NewCatalogueSourceWithProblems(name string, problems []roomgraph.ProblemSpec, logger utils.Logger) *CatalogueSource {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &CatalogueSource{
		name:     name,
		problems: problems,
		logger:   logger,
		reqChan:  make(chan *ProblemRequest, len(problems)+1),
		stopCh:   make(chan struct{}),
	}
}

// SetProblems sets the problem list to walk.
func (s *CatalogueSource) SetProblems(problems []roomgraph.ProblemSpec) {
	s.problems = problems
}

// SetLogger sets the logger.
func (s *CatalogueSource) SetLogger(logger utils.Logger) {
	s.logger = logger
}

// Type returns the source type.
func (s *CatalogueSource) Type() SourceType {
	return SourceTypeCatalogue
}

// Name returns the source instance name.
func (s *CatalogueSource) Name() string {
	return s.name
}

// Start emits every configured problem once and closes the channel.
func (s *CatalogueSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer close(s.reqChan)
		for _, p := range s.problems {
			req := NewProblemRequest(p.Name, SourceTypeCatalogue, s.name)
			select {
			case s.reqChan <- req:
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}
	}()

	return nil
}

// Stop stops the catalogue source.
func (s *CatalogueSource) Stop() error {
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
func (s *CatalogueSource) Tasks() <-chan *ProblemRequest {
	return s.reqChan
}

// Ack is a no-op: the catalogue walk carries no external state to confirm.
func (s *CatalogueSource) Ack(ctx context.Context, req *ProblemRequest) error {
	return nil
}

// Nack is a no-op for the same reason as Ack.
func (s *CatalogueSource) Nack(ctx context.Context, req *ProblemRequest, reason string) error {
	if s.logger != nil {
		s.logger.Warn("catalogue source %s: problem %s failed: %s", s.name, req.Name, reason)
	}
	return nil
}

// HealthCheck always succeeds; the catalogue has no external dependency.
func (s *CatalogueSource) HealthCheck(ctx context.Context) error {
	return nil
}
