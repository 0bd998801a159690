package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	explorermock "github.com/higashi-matsudo/library-explorer/internal/mock"
	"github.com/higashi-matsudo/library-explorer/internal/oracle"
	"github.com/higashi-matsudo/library-explorer/internal/repository"
	"github.com/higashi-matsudo/library-explorer/internal/scheduler/source"
	"github.com/higashi-matsudo/library-explorer/pkg/config"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
	"github.com/higashi-matsudo/library-explorer/pkg/utils"
)

func newTestConfig() *config.Config {
	return &config.Config{}
}

func TestEngineProcessor_UnknownProblem(t *testing.T) {
	oracleMock := new(explorermock.MockOracle)
	historyMock := new(explorermock.MockHistoryRepository)

	p := NewEngineProcessor(&ProcessorConfig{
		Config:  newTestConfig(),
		Client:  oracleMock,
		History: historyMock,
		Backend: oracle.BackendMock,
		Logger:  utils.NewDefaultLogger(utils.LevelDebug, io.Discard),
	})

	err := p.Process(context.Background(), source.NewProblemRequest("no-such-problem", source.SourceTypeCatalogue, "test"))
	require.Error(t, err)
	oracleMock.AssertNotCalled(t, "Select", mock.Anything, mock.Anything, mock.Anything)
	historyMock.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestEngineProcessor_SelectFailure(t *testing.T) {
	oracleMock := new(explorermock.MockOracle)
	historyMock := new(explorermock.MockHistoryRepository)

	selectErr := errors.New("select rejected")
	oracleMock.ExpectAnySelect(selectErr)
	historyMock.ExpectInsert(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*repository.RunRecord).ID = 1
	})
	historyMock.ExpectUpdateOutcome(1, repository.OutcomeFailed, nil)

	p := NewEngineProcessor(&ProcessorConfig{
		Config:  newTestConfig(),
		Client:  oracleMock,
		History: historyMock,
		Backend: oracle.BackendMock,
		Logger:  utils.NewDefaultLogger(utils.LevelDebug, io.Discard),
	})

	err := p.Process(context.Background(), source.NewProblemRequest("probatio", source.SourceTypeCatalogue, "test"))
	require.Error(t, err)
	assert.Equal(t, selectErr, err)
	historyMock.AssertExpectations(t)
	oracleMock.AssertExpectations(t)
}

func TestEngineProcessor_NoHistoryRepositorySkipsUpdate(t *testing.T) {
	oracleMock := new(explorermock.MockOracle)

	selectErr := errors.New("select rejected")
	oracleMock.ExpectAnySelect(selectErr)

	p := NewEngineProcessor(&ProcessorConfig{
		Config:  newTestConfig(),
		Client:  oracleMock,
		Backend: oracle.BackendMock,
		Logger:  utils.NewDefaultLogger(utils.LevelDebug, io.Discard),
	})

	err := p.Process(context.Background(), source.NewProblemRequest("probatio", source.SourceTypeCatalogue, "test"))
	require.Error(t, err)
	assert.Equal(t, selectErr, err)
}

// TestEngineProcessor_RejectedGuessIsLoud drives a full Probatio-size run
// against a LocalOracle holding a genuine triangle library, then forces
// the oracle to reject the resulting guess: Process must surface the
// rejection as an error, record the run as OutcomeRejected, and never
// upload an artifact, regardless of the guess itself being sound.
func TestEngineProcessor_RejectedGuessIsLoud(t *testing.T) {
	oc := explorermock.NewLocalOracle(roomgraph.GuessMap{
		Rooms:        []roomgraph.Label{0, 0, 0},
		StartingRoom: 0,
		Connections: []roomgraph.Connection{
			{From: roomgraph.DoorRef{Room: 0, Door: 0}, To: roomgraph.DoorRef{Room: 1, Door: 1}},
			{From: roomgraph.DoorRef{Room: 1, Door: 0}, To: roomgraph.DoorRef{Room: 2, Door: 1}},
			{From: roomgraph.DoorRef{Room: 2, Door: 0}, To: roomgraph.DoorRef{Room: 0, Door: 1}},
			{From: roomgraph.DoorRef{Room: 0, Door: 2}, To: roomgraph.DoorRef{Room: 0, Door: 3}},
			{From: roomgraph.DoorRef{Room: 0, Door: 4}, To: roomgraph.DoorRef{Room: 0, Door: 5}},
			{From: roomgraph.DoorRef{Room: 1, Door: 2}, To: roomgraph.DoorRef{Room: 1, Door: 3}},
			{From: roomgraph.DoorRef{Room: 1, Door: 4}, To: roomgraph.DoorRef{Room: 1, Door: 5}},
			{From: roomgraph.DoorRef{Room: 2, Door: 2}, To: roomgraph.DoorRef{Room: 2, Door: 3}},
			{From: roomgraph.DoorRef{Room: 2, Door: 4}, To: roomgraph.DoorRef{Room: 2, Door: 5}},
		},
	})
	oc.ForceGuessResult(false)

	historyMock := new(explorermock.MockHistoryRepository)
	historyMock.ExpectInsert(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*repository.RunRecord).ID = 1
	})
	historyMock.ExpectUpdateOutcome(1, repository.OutcomeRejected, nil)

	storeMock := new(explorermock.MockStorage)

	p := NewEngineProcessor(&ProcessorConfig{
		Config:  newTestConfig(),
		Client:  oc,
		Store:   storeMock,
		History: historyMock,
		Backend: oracle.BackendMock,
		Logger:  utils.NewDefaultLogger(utils.LevelDebug, io.Discard),
	})

	err := p.Process(context.Background(), source.NewProblemRequest("probatio", source.SourceTypeCatalogue, "test"))
	require.Error(t, err)
	historyMock.AssertExpectations(t)
	storeMock.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)

	guesses := oc.Guesses()
	require.Len(t, guesses, 1)
	assert.Len(t, guesses[0].Rooms, 3)
}
