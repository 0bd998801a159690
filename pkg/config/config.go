// Package config provides configuration management for the library
// explorer service.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
	"github.com/higashi-matsudo/library-explorer/pkg/telemetry"
)

// Config holds all configuration for the application.
type Config struct {
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Problems  []ProblemConfig `mapstructure:"problems"`
	Layered   LayeredConfig   `mapstructure:"layered"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry telemetry.Config
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// OracleConfig holds the oracle's base URL and per-backend credentials.
type OracleConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	MockID     string `mapstructure:"mock_id"`
	OfficialID string `mapstructure:"official_id"`
}

// ProblemConfig names one catalogue entry; Layers is non-nil only for
// layered problems, mirroring roomgraph.ProblemSpec.
type ProblemConfig struct {
	Name string `mapstructure:"name"`
	N    int    `mapstructure:"n"`
	L    int    `mapstructure:"l"` // 0 means not layered
	G    int    `mapstructure:"g"`
}

// ToSpec converts a ProblemConfig into a roomgraph.ProblemSpec.
func (p ProblemConfig) ToSpec() roomgraph.ProblemSpec {
	spec := roomgraph.ProblemSpec{Name: p.Name, N: p.N}
	if p.L > 0 && p.G > 0 {
		spec.Layers = &roomgraph.LayerSpec{L: p.L, G: p.G}
	}
	return spec
}

// Catalogue returns the effective problem catalogue: configured entries
// override roomgraph.DefaultCatalogue entries of the same name, and
// entries naming a problem absent from the default catalogue are
// appended. An empty Problems list falls back entirely to the default.
func (c *Config) Catalogue() []roomgraph.ProblemSpec {
	if len(c.Problems) == 0 {
		return roomgraph.DefaultCatalogue
	}

	overrides := make(map[string]roomgraph.ProblemSpec, len(c.Problems))
	order := make([]string, 0, len(c.Problems))
	for _, p := range c.Problems {
		if _, seen := overrides[p.Name]; !seen {
			order = append(order, p.Name)
		}
		overrides[p.Name] = p.ToSpec()
	}

	catalogue := make([]roomgraph.ProblemSpec, 0, len(roomgraph.DefaultCatalogue)+len(order))
	used := make(map[string]bool, len(order))
	for _, p := range roomgraph.DefaultCatalogue {
		if spec, ok := overrides[p.Name]; ok {
			catalogue = append(catalogue, spec)
			used[p.Name] = true
		} else {
			catalogue = append(catalogue, p)
		}
	}
	for _, name := range order {
		if !used[name] {
			catalogue = append(catalogue, overrides[name])
		}
	}
	return catalogue
}

// LayeredConfig tunes the layered SA refiner (C8) used for problems with
// a known (L, G) layer spec.
type LayeredConfig struct {
	GreedyFraction   float64                  `mapstructure:"greedy_fraction"`
	TimeBudget       map[string]time.Duration `mapstructure:"time_budget"` // per-problem override, seconds
	FinalTemperature float64                  `mapstructure:"final_temperature"`
	Restarts         int                      `mapstructure:"restarts"` // concurrent SA attempts per problem; best-cost wins
}

// TimeBudgetFor returns the configured time budget for a named problem,
// or defaultBudget if none is configured.
func (l LayeredConfig) TimeBudgetFor(problem string, defaultBudget time.Duration) time.Duration {
	if l.TimeBudget == nil {
		return defaultBudget
	}
	if d, ok := l.TimeBudget[problem]; ok && d > 0 {
		return d
	}
	return defaultBudget
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // postgres, mysql or sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
	LocalPath string `mapstructure:"local_path"`
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	PollInterval  int `mapstructure:"poll_interval"` // in seconds
	WorkerCount   int `mapstructure:"worker_count"`
	TaskBatchSize int `mapstructure:"task_batch_size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/library-explorer")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Telemetry = *telemetry.LoadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from an io.Reader-shaped byte slice
// (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Telemetry = *telemetry.LoadFromEnv()

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("oracle.base_url", "https://icfpcontest2025.github.io/api")
	v.SetDefault("oracle.mock_id", "")
	v.SetDefault("oracle.official_id", "")

	v.SetDefault("layered.greedy_fraction", 0.5)
	v.SetDefault("layered.final_temperature", 1e-3)
	v.SetDefault("layered.restarts", 4)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "library-explorer.db")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./storage")

	v.SetDefault("scheduler.poll_interval", 2)
	v.SetDefault("scheduler.worker_count", 5)
	v.SetDefault("scheduler.task_batch_size", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "./logs")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "postgres", "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
	case "sqlite":
		// sqlite needs only Database (file path or ":memory:"), defaulted in setDefaults.
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Scheduler.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}

	return nil
}
