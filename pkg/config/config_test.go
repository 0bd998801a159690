package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  type: sqlite
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 0.5, cfg.Layered.GreedyFraction)
	assert.InDelta(t, 1e-3, cfg.Layered.FinalTemperature, 1e-9)
	assert.Equal(t, 2, cfg.Scheduler.PollInterval)
	assert.Equal(t, 5, cfg.Scheduler.WorkerCount)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
oracle:
  base_url: "https://example.test/api"
  mock_id: "mock-123"
database:
  type: postgres
  host: db.example.com
  port: 5432
  database: library_explorer
  user: admin
  password: secret
storage:
  type: local
  local_path: /tmp/storage
scheduler:
  poll_interval: 5
  worker_count: 8
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "https://example.test/api", cfg.Oracle.BaseURL)
	assert.Equal(t, "mock-123", cfg.Oracle.MockID)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "library_explorer", cfg.Database.Database)
	assert.Equal(t, 8, cfg.Scheduler.WorkerCount)
}

func TestLoad_InvalidDatabaseType(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  type: oracle-db
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestLoad_COSWithCredentials(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  type: sqlite
storage:
  type: cos
  bucket: test-bucket
  region: ap-guangzhou
  secret_id: test-id
  secret_key: test-key
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "cos", cfg.Storage.Type)
	assert.Equal(t, "test-bucket", cfg.Storage.Bucket)
}

func TestValidate_PostgresRequiresHost(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Type: "postgres", Host: ""},
		Storage:  StorageConfig{Type: "local"},
		Scheduler: SchedulerConfig{
			WorkerCount: 1,
		},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database host is required")
}

func TestValidate_SQLiteDoesNotRequireHost(t *testing.T) {
	cfg := &Config{
		Database:  DatabaseConfig{Type: "sqlite"},
		Storage:   StorageConfig{Type: "local"},
		Scheduler: SchedulerConfig{WorkerCount: 1},
	}

	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidWorkerCount(t *testing.T) {
	cfg := &Config{
		Database:  DatabaseConfig{Type: "sqlite"},
		Storage:   StorageConfig{Type: "local"},
		Scheduler: SchedulerConfig{WorkerCount: 0},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "worker count must be at least 1")
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
database:
  type: mysql
  host: mysql.local
storage:
  type: local
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "mysql.local", cfg.Database.Host)
}

func TestCatalogue_DefaultsWhenEmpty(t *testing.T) {
	cfg := &Config{}
	catalogue := cfg.Catalogue()
	assert.NotEmpty(t, catalogue)
}

func TestCatalogue_OverridesAndAppends(t *testing.T) {
	cfg := &Config{
		Problems: []ProblemConfig{
			{Name: "probatio", N: 3},
			{Name: "primus", N: 6, L: 2, G: 3},
			{Name: "custom", N: 9, L: 3, G: 3},
		},
	}
	catalogue := cfg.Catalogue()

	names := make(map[string]bool, len(catalogue))
	for _, p := range catalogue {
		names[p.Name] = true
		if p.Name == "custom" {
			require.NotNil(t, p.Layers)
			assert.Equal(t, 3, p.Layers.L)
		}
	}
	assert.True(t, names["custom"])
	assert.True(t, names["probatio"])
	assert.True(t, names["aleph"]) // untouched default entry still present
}
