package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/higashi-matsudo/library-explorer/internal/engine"
	"github.com/higashi-matsudo/library-explorer/internal/oracle"
	"github.com/higashi-matsudo/library-explorer/internal/repository"
	"github.com/higashi-matsudo/library-explorer/internal/scheduler/source"
	"github.com/higashi-matsudo/library-explorer/internal/storage"
	"github.com/higashi-matsudo/library-explorer/pkg/compression"
	"github.com/higashi-matsudo/library-explorer/pkg/config"
	"github.com/higashi-matsudo/library-explorer/pkg/errorsx"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
	"github.com/higashi-matsudo/library-explorer/pkg/utils"
	"github.com/higashi-matsudo/library-explorer/pkg/writer"
)

// EngineProcessor implements TaskProcessor by running one problem request
// to completion through a fresh engine.Engine, then persisting the
// accepted guess (A7/A8/A9, per the persisted-artifacts contract: a
// pretty-printed JSON dump under `{backend}/{problem}/{unix-seconds}.json`
// plus a RunRecord summarizing the attempt).
type EngineProcessor struct {
	cfg        *config.Config
	client     oracle.API
	store      storage.Storage
	history    repository.HistoryRepository
	backend    oracle.BackendType
	trace      bool
	logger     utils.Logger
	jsonDumper *writer.JSONWriter[*roomgraph.GuessMap]
}

// ProcessorConfig holds EngineProcessor configuration.
type ProcessorConfig struct {
	Config  *config.Config
	Client  oracle.API
	Store   storage.Storage
	History repository.HistoryRepository
	Backend oracle.BackendType
	Logger  utils.Logger

	// Trace, when set, additionally persists a compressed event/probe
	// trace alongside each run's guess dump, for later debugging of
	// inference failures. The core never reads it back.
	Trace bool
}

// traceArtifact is the shape written under each run's .trace.zst key
// (.trace.gz when the gzip fallback compressor is used) when tracing is
// enabled.
type traceArtifact struct {
	Problem   string              `json:"problem"`
	Backend   string              `json:"backend"`
	Accepted  bool                `json:"accepted"`
	StartedAt time.Time           `json:"started_at"`
	EndedAt   time.Time           `json:"ended_at"`
	GuessMap  *roomgraph.GuessMap `json:"guess_map"`
}

// NewEngineProcessor creates a new EngineProcessor.
func NewEngineProcessor(cfg *ProcessorConfig) *EngineProcessor {
	if cfg.Logger == nil {
		cfg.Logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &EngineProcessor{
		cfg:        cfg.Config,
		client:     cfg.Client,
		store:      cfg.Store,
		history:    cfg.History,
		backend:    cfg.Backend,
		trace:      cfg.Trace,
		logger:     cfg.Logger,
		jsonDumper: writer.NewPrettyJSONWriter[*roomgraph.GuessMap](),
	}
}

// Process runs the problem named by req through select/explore/guess and
// persists the outcome.
func (p *EngineProcessor) Process(ctx context.Context, req *source.ProblemRequest) error {
	spec, ok := roomgraph.FindProblem(p.cfg.Catalogue(), req.Name)
	if !ok {
		return errorsx.Newf(errorsx.CodeProtocolViolation, "unknown problem %q", req.Name)
	}

	econfig := engine.Config{
		Backend:     p.backend,
		ProblemName: spec.Name,
		N:           spec.N,
		Layers:      spec.Layers,
	}
	if spec.IsLayered() {
		econfig.SATimeBudget = p.cfg.Layered.TimeBudgetFor(spec.Name, 5*time.Second)
		econfig.SARestarts = p.cfg.Layered.Restarts
	}

	startedAt := time.Now()
	record := &repository.RunRecord{
		Problem:   spec.Name,
		Backend:   string(p.backend),
		Outcome:   repository.OutcomePending,
		StartedAt: startedAt,
	}
	if p.history != nil {
		if err := p.history.Insert(ctx, record); err != nil {
			p.logger.Warn("failed to insert run record for %s: %v", spec.Name, err)
		}
	}

	eng := engine.New(p.client, econfig, p.logger)
	guess, err := eng.Run(ctx)
	if err != nil {
		p.finish(ctx, record, repository.OutcomeFailed, nil, err)
		return err
	}

	accepted, err := p.client.Guess(ctx, p.backend, *guess)
	if err != nil {
		p.finish(ctx, record, repository.OutcomeFailed, nil, err)
		return err
	}

	var guessBuf bytes.Buffer
	if err := p.jsonDumper.Write(guess, &guessBuf); err != nil {
		p.finish(ctx, record, repository.OutcomeFailed, nil, err)
		return err
	}
	guessJSON := guessBuf.Bytes()

	endedAt := time.Now()
	outcome := repository.OutcomeRejected
	if accepted {
		outcome = repository.OutcomeAccepted
		if p.store != nil {
			key := fmt.Sprintf("%s/%s/%d.json", p.backend, spec.Name, endedAt.Unix())
			if err := p.store.Upload(ctx, key, bytes.NewReader(guessJSON)); err != nil {
				p.logger.Warn("failed to dump guess map for %s: %v", spec.Name, err)
			}
		}
	}

	if p.trace && p.store != nil {
		p.writeTrace(ctx, spec.Name, traceArtifact{
			Problem:   spec.Name,
			Backend:   string(p.backend),
			Accepted:  accepted,
			StartedAt: startedAt,
			EndedAt:   endedAt,
			GuessMap:  guess,
		})
	}

	p.finish(ctx, record, outcome, guessJSON, nil)
	if !accepted {
		return errorsx.Newf(errorsx.CodeGuessRejected, "oracle rejected guess for %q", spec.Name)
	}
	return nil
}

// writeTrace compresses a trace artifact and uploads it alongside the
// run's guess dump. Failures are logged, never surfaced, since the
// trace is purely a debugging aid and never read back by the core.
func (p *EngineProcessor) writeTrace(ctx context.Context, problem string, artifact traceArtifact) {
	comp := compression.Default()
	defer compression.Close(comp)

	raw, err := json.Marshal(artifact)
	if err != nil {
		p.logger.Warn("failed to marshal trace for %s: %v", problem, err)
		return
	}
	compressed, err := comp.Compress(raw)
	if err != nil {
		p.logger.Warn("failed to compress trace for %s: %v", problem, err)
		return
	}
	key := fmt.Sprintf("%s/%s/%d.trace.%s", p.backend, problem, artifact.EndedAt.Unix(), traceExt(comp.Type()))
	if err := p.store.Upload(ctx, key, bytes.NewReader(compressed)); err != nil {
		p.logger.Warn("failed to upload trace for %s: %v", problem, err)
	}
}

// traceExt maps a compression type to the file extension its trace
// artifact is stored under.
func traceExt(t compression.Type) string {
	if t == compression.TypeGzip {
		return "gz"
	}
	return "zst"
}

// finish updates the run record with its final outcome.
func (p *EngineProcessor) finish(ctx context.Context, record *repository.RunRecord, outcome string, guessJSON []byte, runErr error) {
	if p.history == nil || record.ID == 0 {
		return
	}
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := p.history.UpdateOutcome(ctx, record.ID, outcome, guessJSON, errMsg); err != nil {
		p.logger.Warn("failed to update run record %d: %v", record.ID, err)
	}
}
