// Package config loads the server's YAML configuration and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cxd309/metro-engine/internal/engine"
)

// ServerConfig contains the HTTP server and tick loop settings.
type ServerConfig struct {
	Port             int           `yaml:"port" validate:"gt=0,lt=65536"`
	AllowedOrigins   []string      `yaml:"allowedOrigins"`
	TickInterval     time.Duration `yaml:"tickInterval" validate:"gt=0"` // wall time between world updates
	AutosaveInterval time.Duration `yaml:"autosaveInterval" validate:"gte=0"`
	Retention        time.Duration `yaml:"retention" validate:"gte=0"` // snapshot age kept by store cleanup
}

// StoreConfig selects where snapshots are persisted.
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres none"`
	DSN    string `yaml:"dsn" validate:"required_unless=Driver none"`
}

// AppConfig is the full server configuration.
type AppConfig struct {
	Simulation engine.Config `yaml:"simulation"`
	Server     ServerConfig  `yaml:"server"`
	Store      StoreConfig   `yaml:"store"`
}

// Default returns the configuration used when no file is given.
func Default() AppConfig {
	return AppConfig{
		Simulation: engine.DefaultConfig(),
		Server: ServerConfig{
			Port:             8081,
			AllowedOrigins:   []string{"http://localhost:5173"},
			TickInterval:     100 * time.Millisecond,
			AutosaveInterval: time.Minute,
			Retention:        24 * time.Hour,
		},
		Store: StoreConfig{Driver: "sqlite", DSN: "data/metro.db"},
	}
}

// Load reads path over the defaults and validates the result. A missing
// file is not an error.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return AppConfig{}, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return AppConfig{}, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c AppConfig) Validate() error {
	v := validator.New()
	if err := v.Struct(c.Server); err != nil {
		return err
	}
	if err := v.Struct(c.Store); err != nil {
		return err
	}
	return c.Simulation.Validate()
}

// ApplyEnv overrides settings from METRO_* variables read through getenv.
func (c *AppConfig) ApplyEnv(getenv func(string) string) error {
	if v := getenv("METRO_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("METRO_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("METRO_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := getenv("METRO_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := getenv("METRO_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("METRO_SEED: %w", err)
		}
		c.Simulation.Seed = seed
	}
	return nil
}
