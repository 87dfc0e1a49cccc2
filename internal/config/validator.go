package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"

	uiderrors "github.com/standardbeagle/uidmgr/internal/errors"
	"github.com/standardbeagle/uidmgr/internal/uid"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
// Returns an error if validation fails
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateStoreConfig(&cfg.Store); err != nil {
		return uiderrors.NewConfigError("store", strconv.Itoa(cfg.Store.Shards), err)
	}

	if err := v.validateDiagnosticsConfig(&cfg.Diagnostics); err != nil {
		return uiderrors.NewConfigError("diagnostics", "", err)
	}

	if err := v.validateRepositoryConfig(&cfg.Repository); err != nil {
		return uiderrors.NewConfigError("repository", cfg.Repository.Driver, err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

// validateStoreConfig validates store configuration
func (v *Validator) validateStoreConfig(store *Store) error {
	// Shards: 0 means auto-detect (will be set by smart defaults)
	if store.Shards < 0 {
		return fmt.Errorf("Shards cannot be negative, got %d", store.Shards)
	}
	if store.Shards != 0 && !uid.IsPowerOfTwo(store.Shards) {
		return fmt.Errorf("Shards must be a power of two, got %d", store.Shards)
	}
	if store.Shards > uid.MaxShards {
		return fmt.Errorf("Shards should not exceed %d, got %d", uid.MaxShards, store.Shards)
	}

	if store.Concurrency < 0 {
		return fmt.Errorf("Concurrency cannot be negative, got %d", store.Concurrency)
	}

	if store.InitialCapacity < 0 {
		return fmt.Errorf("InitialCapacity cannot be negative, got %d", store.InitialCapacity)
	}

	return nil
}

// validateDiagnosticsConfig checks the exemption patterns
func (v *Validator) validateDiagnosticsConfig(diag *Diagnostics) error {
	_, err := uid.NewExemptions(diag.Exempt)
	return err
}

// validateRepositoryConfig validates repository configuration
func (v *Validator) validateRepositoryConfig(repo *Repository) error {
	switch repo.Driver {
	case DriverMemory:
	case DriverSQLite:
		if repo.Path == "" {
			return errors.New("sqlite repository requires a path")
		}
	default:
		return fmt.Errorf("unknown repository driver %q", repo.Driver)
	}

	switch repo.Compression {
	case CompressionNone:
	case CompressionZstd:
		if repo.CompressionLevel < 1 || repo.CompressionLevel > 22 {
			return fmt.Errorf("CompressionLevel must be between 1 and 22, got %d", repo.CompressionLevel)
		}
	default:
		return fmt.Errorf("unknown compression %q", repo.Compression)
	}

	if repo.WatchDebounceMs < 0 {
		return fmt.Errorf("WatchDebounceMs cannot be negative, got %d", repo.WatchDebounceMs)
	}

	return nil
}

// setSmartDefaults applies smart defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Store.Concurrency == 0 {
		cfg.Store.Concurrency = runtime.GOMAXPROCS(0)
	}

	// Derive the shard count from the expected number of concurrent callers
	if cfg.Store.Shards == 0 {
		cfg.Store.Shards = uid.ShardCount(cfg.Store.Concurrency)
	}

	if cfg.Store.InitialCapacity == 0 {
		cfg.Store.InitialCapacity = uid.DefaultInitialCapacity
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
