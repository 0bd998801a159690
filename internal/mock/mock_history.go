package mock

import (
	"context"

	"github.com/higashi-matsudo/library-explorer/internal/repository"
	"github.com/stretchr/testify/mock"
)

var _ repository.HistoryRepository = (*MockHistoryRepository)(nil)

// MockHistoryRepository is a mock implementation of repository.HistoryRepository.
type MockHistoryRepository struct {
	mock.Mock
}

// Insert mocks the Insert method.
func (m *MockHistoryRepository) Insert(ctx context.Context, record *repository.RunRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// UpdateOutcome mocks the UpdateOutcome method.
func (m *MockHistoryRepository) UpdateOutcome(ctx context.Context, id int64, outcome string, guessMap []byte, errMsg string) error {
	args := m.Called(ctx, id, outcome, guessMap, errMsg)
	return args.Error(0)
}

// ListByProblem mocks the ListByProblem method.
func (m *MockHistoryRepository) ListByProblem(ctx context.Context, problem string) ([]*repository.RunRecord, error) {
	args := m.Called(ctx, problem)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.RunRecord), args.Error(1)
}

// ListPending mocks the ListPending method.
func (m *MockHistoryRepository) ListPending(ctx context.Context, limit int) ([]*repository.RunRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.RunRecord), args.Error(1)
}

// ExpectInsert sets up an expectation for Insert.
func (m *MockHistoryRepository) ExpectInsert(err error) *mock.Call {
	return m.On("Insert", mock.Anything, mock.Anything).Return(err)
}

// ExpectUpdateOutcome sets up an expectation for UpdateOutcome.
func (m *MockHistoryRepository) ExpectUpdateOutcome(id int64, outcome string, err error) *mock.Call {
	return m.On("UpdateOutcome", mock.Anything, id, outcome, mock.Anything, mock.Anything).Return(err)
}

// ExpectListByProblem sets up an expectation for ListByProblem.
func (m *MockHistoryRepository) ExpectListByProblem(problem string, records []*repository.RunRecord, err error) *mock.Call {
	return m.On("ListByProblem", mock.Anything, problem).Return(records, err)
}

// ExpectListPending sets up an expectation for ListPending.
func (m *MockHistoryRepository) ExpectListPending(records []*repository.RunRecord, err error) *mock.Call {
	return m.On("ListPending", mock.Anything, mock.Anything).Return(records, err)
}
