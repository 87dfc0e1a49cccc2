package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/uidmgr/internal/uid"
)

// Config file names searched by LoadDir, in order
const (
	KDLFileName  = ".uidmgr.kdl"
	TOMLFileName = ".uidmgr.toml"
)

// Repository drivers
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Payload compression modes
const (
	CompressionZstd = "zstd"
	CompressionNone = "none"
)

// Defaults applied before a config file is read
const (
	DefaultRepositoryPath   = "uidmgr.db"
	DefaultCompressionLevel = 3
	DefaultWatchDebounceMs  = 300
)

type Config struct {
	Version     int         `toml:"version"`
	Store       Store       `toml:"store"`
	Diagnostics Diagnostics `toml:"diagnostics"`
	Repository  Repository  `toml:"repository"`
}

// Store configures the interning store and its manager
type Store struct {
	Shards          int  `toml:"shards"`           // power of two; 0 = derive from concurrency
	Concurrency     int  `toml:"concurrency"`      // 0 = GOMAXPROCS
	InitialCapacity int  `toml:"initial_capacity"` // per-shard table size
	CoarseLock      bool `toml:"coarse_lock"`
}

// Diagnostics configures anomaly reporting of the provider
type Diagnostics struct {
	Enabled bool     `toml:"enabled"`
	Exempt  []string `toml:"exempt"`   // doublestar patterns over entity type names
	LogFile bool     `toml:"log_file"` // write the debug log to a timestamped file
}

type Repository struct {
	Driver           string `toml:"driver"`
	Path             string `toml:"path"`
	Compression      string `toml:"compression"`
	CompressionLevel int    `toml:"compression_level"`
	WatchDir         string `toml:"watch_dir"` // directory of <unit>.idx partition files; empty disables watching
	WatchDebounceMs  int    `toml:"watch_debounce_ms"`
}

// Default returns the configuration used when no config file exists
func Default() *Config {
	return &Config{
		Version: 1,
		Store: Store{
			InitialCapacity: uid.DefaultInitialCapacity,
		},
		Diagnostics: Diagnostics{
			Exempt: append([]string(nil), uid.DefaultExemptionPatterns...),
		},
		Repository: Repository{
			Driver:           DriverMemory,
			Path:             DefaultRepositoryPath,
			Compression:      CompressionZstd,
			CompressionLevel: DefaultCompressionLevel,
			WatchDebounceMs:  DefaultWatchDebounceMs,
		},
	}
}

// Load reads the config file at path, choosing the format by extension.
// A missing file yields the defaults. The result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadDir(".")
	}

	var (
		cfg *Config
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kdl":
		cfg, err = LoadKDL(path)
	case ".toml":
		cfg, err = LoadTOML(path)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Default()
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDir loads .uidmgr.kdl or .uidmgr.toml from dir, preferring KDL
func LoadDir(dir string) (*Config, error) {
	for _, name := range []string{KDLFileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	cfg := Default()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StoreConfig converts the store section for uid.NewStore
func (c *Config) StoreConfig(partition uid.PartitionFunc) uid.StoreConfig {
	return uid.StoreConfig{
		Shards:          c.Store.Shards,
		Concurrency:     c.Store.Concurrency,
		InitialCapacity: c.Store.InitialCapacity,
		Partition:       partition,
	}
}

// ManagerOptions converts the store section for uid.NewManager
func (c *Config) ManagerOptions() []uid.ManagerOption {
	return []uid.ManagerOption{uid.WithCoarseLock(c.Store.CoarseLock)}
}

// ProviderOptions builds diagnostics options for uid.NewProvider
func (c *Config) ProviderOptions() ([]uid.ProviderOption, error) {
	if !c.Diagnostics.Enabled {
		return nil, nil
	}
	ex, err := uid.NewExemptions(c.Diagnostics.Exempt)
	if err != nil {
		return nil, err
	}
	return []uid.ProviderOption{
		uid.WithDiagnostics(uid.NewDebugSink()),
		uid.WithExemptions(ex),
	}, nil
}
