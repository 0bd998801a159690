package cmd

import (
	"fmt"

	"github.com/higashi-matsudo/library-explorer/internal/oracle"
	"github.com/higashi-matsudo/library-explorer/internal/repository"
	"github.com/higashi-matsudo/library-explorer/internal/storage"
	"github.com/higashi-matsudo/library-explorer/pkg/config"
	"github.com/higashi-matsudo/library-explorer/pkg/utils"
)

// app bundles the components every subcommand needs: configuration, an
// oracle client, a run-history repository and guess-map storage.
type app struct {
	cfg     *config.Config
	client  *oracle.Client
	repos   *repository.Repositories
	store   storage.Storage
	backend oracle.BackendType
	logger  utils.Logger
}

// newApp loads configuration and wires the oracle client, repositories and
// storage it describes.
func newApp(configPath, backend string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	bt, err := parseBackend(backend)
	if err != nil {
		return nil, err
	}

	log := GetLogger()
	if log == nil {
		log = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	client := oracle.New(oracle.Config{
		BaseURL:    cfg.Oracle.BaseURL,
		MockID:     cfg.Oracle.MockID,
		OfficialID: cfg.Oracle.OfficialID,
	}, log)

	gormDB, err := repository.NewGormDB(&repository.DBConfig{
		Type:     cfg.Database.Type,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	repos := repository.NewRepositories(gormDB)

	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &app{
		cfg:     cfg,
		client:  client,
		repos:   repos,
		store:   store,
		backend: bt,
		logger:  log,
	}, nil
}

func (a *app) Close() {
	a.client.Close()
	if err := a.repos.Close(); err != nil {
		a.logger.Warn("failed to close database: %v", err)
	}
}

func parseBackend(s string) (oracle.BackendType, error) {
	switch s {
	case "mock":
		return oracle.BackendMock, nil
	case "official":
		return oracle.BackendOfficial, nil
	default:
		return "", fmt.Errorf("unknown backend %q (valid: mock, official)", s)
	}
}
