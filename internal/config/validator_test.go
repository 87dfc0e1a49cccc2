package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/uidmgr/internal/uid"
)

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := Default()
	cfg.Store.InitialCapacity = 0

	validator := NewValidator()
	require.NoError(t, validator.ValidateAndSetDefaults(cfg))

	assert.Positive(t, cfg.Store.Concurrency)
	assert.Equal(t, uid.ShardCount(cfg.Store.Concurrency), cfg.Store.Shards)
	assert.Equal(t, uid.DefaultInitialCapacity, cfg.Store.InitialCapacity)
}

func TestValidateAndSetDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Default()
	cfg.Store = Store{Shards: 128, Concurrency: 2, InitialCapacity: 16}

	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, Store{Shards: 128, Concurrency: 2, InitialCapacity: 16}, cfg.Store)
}

func TestValidateStoreConfig(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name    string
		store   Store
		wantErr bool
	}{
		{"auto", Store{}, false},
		{"power_of_two", Store{Shards: 64}, false},
		{"max", Store{Shards: uid.MaxShards}, false},
		{"not_power_of_two", Store{Shards: 48}, true},
		{"too_many", Store{Shards: uid.MaxShards * 2}, true},
		{"negative_shards", Store{Shards: -4}, true},
		{"negative_concurrency", Store{Concurrency: -1}, true},
		{"negative_capacity", Store{InitialCapacity: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store
			err := validator.validateStoreConfig(&store)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRepositoryConfig(t *testing.T) {
	validator := NewValidator()
	base := Default().Repository

	tests := []struct {
		name    string
		mutate  func(*Repository)
		wantErr bool
	}{
		{"defaults", func(*Repository) {}, false},
		{"sqlite", func(r *Repository) { r.Driver = DriverSQLite }, false},
		{"sqlite_without_path", func(r *Repository) { r.Driver = DriverSQLite; r.Path = "" }, true},
		{"unknown_driver", func(r *Repository) { r.Driver = "postgres" }, true},
		{"no_compression", func(r *Repository) { r.Compression = CompressionNone; r.CompressionLevel = 0 }, false},
		{"unknown_compression", func(r *Repository) { r.Compression = "lz4" }, true},
		{"level_too_high", func(r *Repository) { r.CompressionLevel = 23 }, true},
		{"level_zero", func(r *Repository) { r.CompressionLevel = 0 }, true},
		{"negative_debounce", func(r *Repository) { r.WatchDebounceMs = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := base
			tt.mutate(&repo)
			err := validator.validateRepositoryConfig(&repo)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDiagnosticsConfig(t *testing.T) {
	validator := NewValidator()
	assert.NoError(t, validator.validateDiagnosticsConfig(&Diagnostics{Exempt: uid.DefaultExemptionPatterns}))
	assert.Error(t, validator.validateDiagnosticsConfig(&Diagnostics{Exempt: []string{"[bad"}}))
}
