package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
simulation:
  speedMultiplier: 2
  planner:
    maxTransfers: 1
    cacheTimeout: 10s
  economy:
    farePolicy: distance
server:
  port: 9000
  autosaveInterval: 5m
store:
  driver: none
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.Simulation.SpeedMultiplier)
	assert.Equal(t, 1, cfg.Simulation.Planner.MaxTransfers)
	assert.Equal(t, 10*time.Second, cfg.Simulation.Planner.CacheTimeout)
	assert.Equal(t, 2, cfg.Simulation.Planner.TransferCost, "unset keys keep defaults")
	assert.Equal(t, "distance", cfg.Simulation.Economy.FarePolicy)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Server.AutosaveInterval)
	assert.Equal(t, "none", cfg.Store.Driver)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"fare policy":  "simulation:\n  economy:\n    farePolicy: auction\n",
		"store driver": "store:\n  driver: redis\n",
		"port":         "server:\n  port: 0\n",
		"speed":        "simulation:\n  speedMultiplier: -1\n",
		"motion":       "simulation:\n  trains:\n    motion:\n      model: teleport\n",
		"syntax":       "server: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"METRO_PORT":         "7000",
		"METRO_STORE_DRIVER": "postgres",
		"METRO_STORE_DSN":    "postgres://localhost/metro",
		"METRO_SEED":         "42",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/metro", cfg.Store.DSN)
	assert.Equal(t, uint64(42), cfg.Simulation.Seed)

	bad := Default()
	assert.Error(t, bad.ApplyEnv(func(k string) string {
		if k == "METRO_PORT" {
			return "http"
		}
		return ""
	}))
}
