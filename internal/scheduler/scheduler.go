// Package scheduler provides worker-pool management for running many
// problem instances concurrently, each through its own engine.Engine.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/higashi-matsudo/library-explorer/internal/scheduler/source"
	"github.com/higashi-matsudo/library-explorer/pkg/config"
	"github.com/higashi-matsudo/library-explorer/pkg/utils"
)

// TaskProcessor defines the interface for running one problem request to
// completion: select, explore, guess, persist.
type TaskProcessor interface {
	Process(ctx context.Context, req *source.ProblemRequest) error
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	PollInterval  time.Duration // Carried from config; the Scheduler itself does not read it
	WorkerCount   int           // Number of concurrent engine runs
	TaskBatchSize int           // Forwarded to sources that batch fetches
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		PollInterval:  2 * time.Second,
		WorkerCount:   4,
		TaskBatchSize: 10,
	}
}

// FromConfig creates scheduler config from application config.
func FromConfig(cfg *config.SchedulerConfig) *SchedulerConfig {
	return &SchedulerConfig{
		PollInterval:  time.Duration(cfg.PollInterval) * time.Second,
		WorkerCount:   cfg.WorkerCount,
		TaskBatchSize: cfg.TaskBatchSize,
	}
}

// Scheduler runs problem requests drawn from a source.Aggregator through a
// bounded pool of concurrent engine runs (§5's worker-pool concurrency
// model: WorkerCount bounds how many engine instances run at once, each
// with its own state, never shared).
type Scheduler struct {
	config    *SchedulerConfig
	processor TaskProcessor
	logger    utils.Logger

	aggregator *source.Aggregator

	workerPool chan struct{}
	taskQueue  chan *source.ProblemRequest
	wg         sync.WaitGroup

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// New creates a new Scheduler with a source aggregator.
func New(cfg *SchedulerConfig, aggregator *source.Aggregator, processor TaskProcessor, logger utils.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultSchedulerConfig()
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	return &Scheduler{
		config:     cfg,
		aggregator: aggregator,
		processor:  processor,
		logger:     logger,
		workerPool: make(chan struct{}, cfg.WorkerCount),
		taskQueue:  make(chan *source.ProblemRequest, cfg.TaskBatchSize*2),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler with %d workers", s.config.WorkerCount)

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	for i := 0; i < s.config.WorkerCount; i++ {
		s.workerPool <- struct{}{}
	}

	if err := s.aggregator.Start(ctx); err != nil {
		return err
	}

	go s.sourceEventLoop(ctx)
	go s.processLoop(ctx)

	return nil
}

// Stop stops the scheduler gracefully.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler...")
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	close(s.stopCh)

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// processLoop dequeues problem requests and dispatches them to workers.
func (s *Scheduler) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case req := <-s.taskQueue:
			select {
			case <-s.workerPool:
				s.wg.Add(1)
				go s.processRequest(ctx, req)
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}
	}
}

// processRequest runs a single problem request through the processor.
func (s *Scheduler) processRequest(ctx context.Context, req *source.ProblemRequest) {
	defer func() {
		s.workerPool <- struct{}{}
		s.wg.Done()
	}()

	s.logger.Info("Processing problem %s (source %s/%s)", req.Name, req.SourceType, req.SourceName)

	startTime := time.Now()
	err := s.processor.Process(ctx, req)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Problem %s failed after %v: %v", req.Name, duration, err)
		if nackErr := s.aggregator.Nack(ctx, req, err.Error()); nackErr != nil {
			s.logger.Error("Failed to nack problem %s: %v", req.Name, nackErr)
		}
		return
	}

	s.logger.Info("Problem %s completed successfully in %v", req.Name, duration)
	if ackErr := s.aggregator.Ack(ctx, req); ackErr != nil {
		s.logger.Error("Failed to ack problem %s: %v", req.Name, ackErr)
	}
}

// sourceEventLoop receives problem requests from the aggregator and queues them.
func (s *Scheduler) sourceEventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case req, ok := <-s.aggregator.Tasks():
			if !ok {
				s.logger.Info("Aggregator channel closed")
				return
			}

			select {
			case s.taskQueue <- req:
				s.logger.Info("Queued problem %s from source %s/%s", req.Name, req.SourceType, req.SourceName)
			default:
				s.logger.Warn("Task queue full, nacking problem %s", req.Name)
				if err := s.aggregator.Nack(ctx, req, "task queue full"); err != nil {
					s.logger.Error("Failed to nack problem %s: %v", req.Name, err)
				}
			}
		}
	}
}

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		ActiveWorkers: s.config.WorkerCount - len(s.workerPool),
		TotalWorkers:  s.config.WorkerCount,
		QueuedTasks:   len(s.taskQueue),
		Running:       s.isRunning(),
	}
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SchedulerStats holds scheduler statistics.
type SchedulerStats struct {
	ActiveWorkers int  `json:"active_workers"`
	TotalWorkers  int  `json:"total_workers"`
	QueuedTasks   int  `json:"queued_tasks"`
	Running       bool `json:"running"`
}
