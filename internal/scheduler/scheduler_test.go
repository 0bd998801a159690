package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/higashi-matsudo/library-explorer/internal/scheduler/source"
	"github.com/higashi-matsudo/library-explorer/pkg/utils"
)

// countingProcessor counts how many problem requests it has processed,
// for assertions without pulling in testify/mock's call-matching overhead.
type countingProcessor struct {
	processedCount int32
	err            error
}

func (p *countingProcessor) Process(ctx context.Context, req *source.ProblemRequest) error {
	atomic.AddInt32(&p.processedCount, 1)
	return p.err
}

func (p *countingProcessor) GetProcessedCount() int32 {
	return atomic.LoadInt32(&p.processedCount)
}

func TestScheduler_New(t *testing.T) {
	processor := &countingProcessor{}
	logger := utils.NewDefaultLogger(utils.LevelDebug, io.Discard)
	aggregator := source.NewAggregator(nil, 10, logger)

	t.Run("WithDefaultConfig", func(t *testing.T) {
		s := New(nil, aggregator, processor, nil)
		require.NotNil(t, s)
		assert.Equal(t, 4, s.config.WorkerCount)
		assert.Equal(t, 2*time.Second, s.config.PollInterval)
	})

	t.Run("WithCustomConfig", func(t *testing.T) {
		cfg := &SchedulerConfig{
			PollInterval:  5 * time.Second,
			WorkerCount:   10,
			TaskBatchSize: 20,
		}
		s := New(cfg, aggregator, processor, nil)
		require.NotNil(t, s)
		assert.Equal(t, 10, s.config.WorkerCount)
		assert.Equal(t, 5*time.Second, s.config.PollInterval)
	})
}

func TestScheduler_Stats(t *testing.T) {
	processor := &countingProcessor{}
	logger := utils.NewDefaultLogger(utils.LevelDebug, io.Discard)
	aggregator := source.NewAggregator(nil, 10, logger)

	cfg := &SchedulerConfig{
		WorkerCount: 5,
	}

	s := New(cfg, aggregator, processor, nil)

	stats := s.Stats()
	assert.Equal(t, 5, stats.ActiveWorkers)
	assert.Equal(t, 5, stats.TotalWorkers)
	assert.False(t, stats.Running)
}

func TestScheduler_StartStop(t *testing.T) {
	processor := &countingProcessor{}
	logger := utils.NewDefaultLogger(utils.LevelDebug, io.Discard)
	aggregator := source.NewAggregator(nil, 10, logger)

	cfg := &SchedulerConfig{
		PollInterval:  100 * time.Millisecond,
		WorkerCount:   2,
		TaskBatchSize: 5,
	}

	s := New(cfg, aggregator, processor, logger)

	ctx, cancel := context.WithCancel(context.Background())

	err := s.Start(ctx)
	require.NoError(t, err)

	stats := s.Stats()
	assert.True(t, stats.Running)

	time.Sleep(200 * time.Millisecond)

	cancel()
	s.Stop()

	stats = s.Stats()
	assert.False(t, stats.Running)
}

func TestDefaultSchedulerConfig(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 10, cfg.TaskBatchSize)
}

func TestScheduler_ProcessesQueuedRequest(t *testing.T) {
	processor := &countingProcessor{}
	logger := utils.NewDefaultLogger(utils.LevelDebug, io.Discard)
	catalogueSrc := source.NewCatalogueSourceWithProblems("test", nil, logger)
	aggregator := source.NewAggregator([]source.TaskSource{catalogueSrc}, 10, logger)

	cfg := &SchedulerConfig{
		PollInterval:  50 * time.Millisecond,
		WorkerCount:   1,
		TaskBatchSize: 5,
	}
	s := New(cfg, aggregator, processor, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	s.taskQueue <- source.NewProblemRequest("probatio", source.SourceTypeCatalogue, "test")

	require.Eventually(t, func() bool {
		return processor.GetProcessedCount() == 1
	}, time.Second, 10*time.Millisecond)

	s.Stop()
}
