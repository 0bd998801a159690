package mock

import (
	"context"

	"github.com/higashi-matsudo/library-explorer/internal/oracle"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
	"github.com/stretchr/testify/mock"
)

var _ oracle.API = (*MockOracle)(nil)

// MockOracle is a mock implementation of oracle.API.
type MockOracle struct {
	mock.Mock
}

// Select mocks the Select method.
func (m *MockOracle) Select(ctx context.Context, backend oracle.BackendType, problemName string) error {
	args := m.Called(ctx, backend, problemName)
	return args.Error(0)
}

// Explore mocks the Explore method.
func (m *MockOracle) Explore(ctx context.Context, backend oracle.BackendType, plans []roomgraph.Plan) ([][]roomgraph.Event, error) {
	args := m.Called(ctx, backend, plans)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]roomgraph.Event), args.Error(1)
}

// Guess mocks the Guess method.
func (m *MockOracle) Guess(ctx context.Context, backend oracle.BackendType, gm roomgraph.GuessMap) (bool, error) {
	args := m.Called(ctx, backend, gm)
	return args.Bool(0), args.Error(1)
}

// ExpectSelect sets up an expectation for Select.
func (m *MockOracle) ExpectSelect(problemName string, err error) *mock.Call {
	return m.On("Select", mock.Anything, mock.Anything, problemName).Return(err)
}

// ExpectAnySelect sets up an expectation for any Select call.
func (m *MockOracle) ExpectAnySelect(err error) *mock.Call {
	return m.On("Select", mock.Anything, mock.Anything, mock.Anything).Return(err)
}

// ExpectExplore sets up an expectation for the next Explore call,
// returning the given event streams regardless of the submitted plans.
func (m *MockOracle) ExpectExplore(streams [][]roomgraph.Event, err error) *mock.Call {
	return m.On("Explore", mock.Anything, mock.Anything, mock.Anything).Return(streams, err)
}

// ExpectGuess sets up an expectation for the next Guess call.
func (m *MockOracle) ExpectGuess(correct bool, err error) *mock.Call {
	return m.On("Guess", mock.Anything, mock.Anything, mock.Anything).Return(correct, err)
}
