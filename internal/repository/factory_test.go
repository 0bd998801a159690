package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepositories(t *testing.T) {
	db := newHistoryTestDB(t)
	repos := NewRepositories(db)
	require.NotNil(t, repos)
	assert.NotNil(t, repos.History)
}

func TestRepositoriesClose(t *testing.T) {
	db := newHistoryTestDB(t)
	repos := NewRepositories(db)

	assert.NoError(t, repos.Close())
}

func TestRepositoriesDB(t *testing.T) {
	db := newHistoryTestDB(t)
	repos := NewRepositories(db)

	assert.NotNil(t, repos.DB())
}

func TestRepositoriesGormDB(t *testing.T) {
	db := newHistoryTestDB(t)
	repos := NewRepositories(db)

	assert.Equal(t, db, repos.GormDB())
}

func TestDBConfigValidation(t *testing.T) {
	t.Run("Postgres", func(t *testing.T) {
		cfg := &DBConfig{Type: "postgres", Host: "localhost", Port: 5432, Database: "testdb", User: "u", Password: "p", MaxConns: 10}
		assert.Equal(t, "postgres", cfg.Type)
		assert.Equal(t, 5432, cfg.Port)
	})

	t.Run("MySQL", func(t *testing.T) {
		cfg := &DBConfig{Type: "mysql", Host: "localhost", Port: 3306, Database: "testdb", User: "u", Password: "p", MaxConns: 10}
		assert.Equal(t, "mysql", cfg.Type)
		assert.Equal(t, 3306, cfg.Port)
	})

	t.Run("SQLite", func(t *testing.T) {
		cfg := &DBConfig{Type: "sqlite", Database: "file.db"}
		assert.Equal(t, "sqlite", cfg.Type)
	})
}
