package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, 60*time.Second, cfg.LLM.APITimeout)
	assert.Equal(t, 5, cfg.Planner.MaxSteps)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, BackendPool, cfg.Scheduler.Backend)
	assert.Equal(t, 4, cfg.Scheduler.WorkerConcurrency)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadBackend(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Scheduler.Backend = "celery"
	assert.ErrorContains(t, cfg.Validate(), "unknown scheduler backend")
}

func TestValidateRequiresPostgresURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Backend = StorePostgres
	cfg.Store.PostgresURL = ""
	assert.ErrorContains(t, cfg.Validate(), "postgres_url")

	cfg.Store.PostgresURL = "postgres://localhost:5432/autopub"
	assert.NoError(t, cfg.Validate())
}

func TestValidateMaxStepsBounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Planner.MaxSteps = 0
	assert.Error(t, cfg.Validate())

	cfg.Planner.MaxSteps = 11
	assert.Error(t, cfg.Validate())

	cfg.Planner.MaxSteps = 10
	assert.NoError(t, cfg.Validate())
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("scheduler.backend", "eager")
	v.Set("planner.max_steps", 3)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, BackendEager, cfg.Scheduler.Backend)
	assert.Equal(t, 3, cfg.Planner.MaxSteps)
}
