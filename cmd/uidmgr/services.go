package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/uidmgr/internal/config"
	"github.com/standardbeagle/uidmgr/internal/debug"
	"github.com/standardbeagle/uidmgr/internal/keys"
	"github.com/standardbeagle/uidmgr/internal/repository"
	"github.com/standardbeagle/uidmgr/internal/uid"
)

// services wires the manager, repository and provider from configuration
type services struct {
	cfg      *config.Config
	manager  *uid.Manager
	repo     repository.Store
	sqlite   *repository.SQLite // nil for the memory driver
	provider *uid.Provider
}

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %q: %w", configPath, err)
	}
	if db := c.String("db"); db != "" {
		cfg.Repository.Driver = config.DriverSQLite
		cfg.Repository.Path = db
	}
	return cfg, nil
}

func openServices(c *cli.Context) (*services, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}

	if cfg.Diagnostics.LogFile && debug.IsDebugEnabled() {
		path, err := debug.InitDebugLogFile()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(c.App.ErrWriter, "debug log: %s\n", path)
	}

	store, err := uid.NewStore(cfg.StoreConfig(keys.Partition))
	if err != nil {
		return nil, err
	}
	s := &services{
		cfg:     cfg,
		manager: uid.NewManager(store, cfg.ManagerOptions()...),
	}

	switch cfg.Repository.Driver {
	case config.DriverSQLite:
		db, err := repository.OpenSQLite(cfg.Repository.Path, repository.SQLiteOptions{
			Manager:  s.manager,
			Compress: cfg.Repository.Compression == config.CompressionZstd,
			Level:    cfg.Repository.CompressionLevel,
		})
		if err != nil {
			return nil, err
		}
		s.sqlite = db
		s.repo = db
	default:
		s.repo = repository.NewMemory()
	}

	opts, err := cfg.ProviderOptions()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.provider = uid.NewProvider(s.repo, s.manager, opts...)
	return s, nil
}

// requireSQLite rejects commands that need a persistent repository
func (s *services) requireSQLite(command string) error {
	if s.sqlite == nil {
		return fmt.Errorf("%s needs the sqlite repository driver (set repository.driver or pass --db)", command)
	}
	return nil
}

func (s *services) Close() error {
	if s.sqlite != nil {
		return s.sqlite.Close()
	}
	return nil
}
