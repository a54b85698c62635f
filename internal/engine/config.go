package engine

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/cxd309/metro-engine/internal/economy"
	"github.com/cxd309/metro-engine/internal/passenger"
	"github.com/cxd309/metro-engine/internal/planner"
	"github.com/cxd309/metro-engine/internal/train"
)

// Config is the full tuning of a World.
type Config struct {
	SpeedMultiplier    float64 `yaml:"speedMultiplier" validate:"gt=0"`
	CleanupInterval    float64 `yaml:"cleanupInterval" validate:"gt=0"` // sim seconds between stranded-passenger sweeps
	Seed               uint64  `yaml:"seed"`
	AutoSpawnStations  bool    `yaml:"autoSpawnStations"`
	StationMinDistance float64 `yaml:"stationMinDistance" validate:"gte=0"`
	Quiet              bool    `yaml:"quiet"` // suppress gameplay event logging

	Planner    planner.Config   `yaml:"planner"`
	Passengers passenger.Config `yaml:"passengers"`
	Trains     train.Config     `yaml:"trains"`
	Economy    EconomyConfig    `yaml:"economy"`
}

// EconomyConfig selects the starting funds and fare policy.
type EconomyConfig struct {
	StartingBalance float64             `yaml:"startingBalance" validate:"gte=0"`
	Infinite        bool                `yaml:"infinite"`
	FarePolicy      string              `yaml:"farePolicy" validate:"oneof=flat distance"`
	AverageFare     float64             `yaml:"averageFare" validate:"gte=0"`
	Maintenance     bool                `yaml:"maintenance"` // charge per-train upkeep every sim minute
	Prices          economy.PriceConfig `yaml:"prices"`
}

// DefaultConfig returns the standard game tuning.
func DefaultConfig() Config {
	return Config{
		SpeedMultiplier:    1,
		CleanupInterval:    5,
		Seed:               1,
		StationMinDistance: 100,
		Planner:            planner.DefaultConfig(),
		Passengers:         passenger.DefaultConfig(),
		Trains:             train.DefaultConfig(),
		Economy: EconomyConfig{
			StartingBalance: 500,
			FarePolicy:      economy.FlatPolicyName,
			AverageFare:     12,
			Prices:          economy.DefaultPrices(),
		},
	}
}

// Validate checks every tuning field against its bounds.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	if _, err := c.Trains.Motion.Build(); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	return nil
}
