package source

import (
	"context"
	"sync"

	"github.com/higashi-matsudo/library-explorer/pkg/utils"
)

// Aggregator aggregates multiple TaskSources into a single unified channel.
// It starts all sources in parallel and forwards their requests to a
// single output channel.
type Aggregator struct {
	sources    []TaskSource
	sourceMap  map[string]TaskSource // key: "type:name"
	outputChan chan *ProblemRequest
	bufferSize int
	logger     utils.Logger

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
	stopCh  chan struct{}
}

// NewAggregator creates a new Aggregator with the given sources.
func NewAggregator(sources []TaskSource, bufferSize int, logger utils.Logger) *Aggregator {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	sourceMap := make(map[string]TaskSource)
	for _, src := range sources {
		key := buildSourceKey(src.Type(), src.Name())
		sourceMap[key] = src
	}

	return &Aggregator{
		sources:    sources,
		sourceMap:  sourceMap,
		outputChan: make(chan *ProblemRequest, bufferSize),
		bufferSize: bufferSize,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// buildSourceKey creates a unique key for source lookup.
func buildSourceKey(sourceType SourceType, name string) string {
	return string(sourceType) + ":" + name
}

// Start starts all sources and begins forwarding requests.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	a.mu.Unlock()

	a.logger.Info("Starting aggregator with %d sources", len(a.sources))

	for _, src := range a.sources {
		if err := src.Start(ctx); err != nil {
			a.logger.Error("Failed to start source %s/%s: %v", src.Type(), src.Name(), err)
			a.Stop()
			return err
		}

		a.logger.Info("Started source: %s/%s", src.Type(), src.Name())

		a.wg.Add(1)
		go a.forward(ctx, src)
	}

	return nil
}

// forward forwards requests from a single source to the aggregated output channel.
func (a *Aggregator) forward(ctx context.Context, src TaskSource) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case req, ok := <-src.Tasks():
			if !ok {
				a.logger.Info("Source %s/%s channel closed", src.Type(), src.Name())
				return
			}

			req.SourceType = src.Type()
			req.SourceName = src.Name()

			select {
			case a.outputChan <- req:
			case <-ctx.Done():
				return
			case <-a.stopCh:
				return
			}
		}
	}
}

// Stop stops all sources and the aggregator.
func (a *Aggregator) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	a.logger.Info("Stopping aggregator...")

	close(a.stopCh)

	for _, src := range a.sources {
		if err := src.Stop(); err != nil {
			a.logger.Error("Failed to stop source %s/%s: %v", src.Type(), src.Name(), err)
		}
	}

	a.wg.Wait()

	close(a.outputChan)

	a.logger.Info("Aggregator stopped")
	return nil
}

// Tasks returns the aggregated problem-request channel.
func (a *Aggregator) Tasks() <-chan *ProblemRequest {
	return a.outputChan
}

// GetSource retrieves a specific source by type and name.
func (a *Aggregator) GetSource(sourceType SourceType, name string) TaskSource {
	a.mu.RLock()
	defer a.mu.RUnlock()

	key := buildSourceKey(sourceType, name)
	return a.sourceMap[key]
}

// GetSourceForRequest retrieves the source that produced the given request.
func (a *Aggregator) GetSourceForRequest(req *ProblemRequest) TaskSource {
	return a.GetSource(req.SourceType, req.SourceName)
}

// Ack acknowledges a problem request by delegating to the appropriate source.
func (a *Aggregator) Ack(ctx context.Context, req *ProblemRequest) error {
	src := a.GetSourceForRequest(req)
	if src == nil {
		return nil
	}
	return src.Ack(ctx, req)
}

// Nack rejects a problem request by delegating to the appropriate source.
func (a *Aggregator) Nack(ctx context.Context, req *ProblemRequest, reason string) error {
	src := a.GetSourceForRequest(req)
	if src == nil {
		return nil
	}
	return src.Nack(ctx, req, reason)
}

// HealthCheck performs health checks on all sources.
func (a *Aggregator) HealthCheck(ctx context.Context) error {
	for _, src := range a.sources {
		if err := src.HealthCheck(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Sources returns all registered sources.
func (a *Aggregator) Sources() []TaskSource {
	return a.sources
}

// SourceCount returns the number of sources.
func (a *Aggregator) SourceCount() int {
	return len(a.sources)
}
