package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newHistoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&RunRecord{}))
	return db
}

func TestGormHistoryRepositoryInsertAndList(t *testing.T) {
	db := newHistoryTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()

	record := &RunRecord{
		Problem:   "primus",
		Backend:   "mock",
		StartedAt: time.Now(),
	}
	require.NoError(t, repo.Insert(ctx, record))
	assert.NotZero(t, record.ID)
	assert.Equal(t, OutcomePending, record.Outcome)

	records, err := repo.ListByProblem(ctx, "primus")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mock", records[0].Backend)
}

func TestGormHistoryRepositoryUpdateOutcome(t *testing.T) {
	db := newHistoryTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()

	record := &RunRecord{Problem: "probatio", Backend: "official", StartedAt: time.Now()}
	require.NoError(t, repo.Insert(ctx, record))

	guessMap := []byte(`{"rooms":[0,1,2],"startingRoom":0,"connections":[]}`)
	require.NoError(t, repo.UpdateOutcome(ctx, record.ID, OutcomeAccepted, guessMap, ""))

	got, err := repo.getRunRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, got.Outcome)
	assert.JSONEq(t, string(guessMap), string(got.GuessMap))
}

func TestGormHistoryRepositoryUpdateOutcomeNotFound(t *testing.T) {
	db := newHistoryTestDB(t)
	repo := NewGormHistoryRepository(db)

	err := repo.UpdateOutcome(context.Background(), 999, OutcomeFailed, nil, "boom")
	assert.Error(t, err)
}

func TestGormHistoryRepositoryListPending(t *testing.T) {
	db := newHistoryTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Insert(ctx, &RunRecord{Problem: "aleph", Backend: "mock", StartedAt: time.Now()}))
	}
	require.NoError(t, repo.Insert(ctx, &RunRecord{Problem: "beth", Backend: "mock", StartedAt: time.Now(), Outcome: OutcomeAccepted}))

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}
