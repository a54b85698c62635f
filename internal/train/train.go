// Package train moves trains back and forth along their lines and hands each
// station stop to the passenger layer.
package train

import (
	"fmt"

	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/passenger"
)

// ID identifies a train.
type ID int

// State is the derived motion state of a train.
type State string

const (
	StateDwelling State = "dwelling"
	StateRunning  State = "running"
)

// Direction of travel along the line's station order.
type Direction int

const (
	Forward Direction = 1
	Reverse Direction = -1
)

// Config holds dwell and fleet defaults.
type Config struct {
	BaseDwell          float64    `yaml:"baseDwell" validate:"gt=0"`           // seconds
	TransferDwellBonus float64    `yaml:"transferDwellBonus" validate:"gte=0"` // seconds per extra line
	DefaultCapacity    int        `yaml:"defaultCapacity" validate:"gt=0"`
	Motion             MotionSpec `yaml:"motion"`
}

// DefaultConfig returns the standard train tuning.
func DefaultConfig() Config {
	return Config{
		BaseDwell:          0.8,
		TransferDwellBonus: 0.4,
		DefaultCapacity:    6,
		Motion:             DefaultMotion(),
	}
}

// DwellTime is the stop duration at a station served by lines lines.
func (c Config) DwellTime(lines int) float64 {
	if lines <= 1 {
		return c.BaseDwell
	}
	return c.BaseDwell + c.TransferDwellBonus*float64(lines-1)
}

// Train is a vehicle shuttling along one line.
type Train struct {
	ID       ID                  `json:"train_id"`
	LineID   network.LineID      `json:"line_id"`
	AtIndex  int                 `json:"at_index"` // station index on the line
	T        float64             `json:"t"`        // fraction of the current segment, [0,1)
	Dir      Direction           `json:"dir"`
	Dwell    float64             `json:"dwell"` // seconds remaining
	Manifest *passenger.Manifest `json:"manifest"`
}

// State reports whether the train is dwelling or running.
func (t *Train) State() State {
	if t.Dwell > 0 {
		return StateDwelling
	}
	return StateRunning
}

// Capacity is the maximum number of riders.
func (t *Train) Capacity() int { return t.Manifest.Capacity }

// Record is the persisted form of a train. Riders are not persisted.
type Record struct {
	ID       ID             `json:"train_id"`
	LineID   network.LineID `json:"line_id"`
	AtIndex  int            `json:"at_index"`
	T        float64        `json:"t"`
	Dir      Direction      `json:"dir"`
	Dwell    float64        `json:"dwell"`
	Capacity int            `json:"capacity"`
}

// Record returns the persisted form of t.
func (t *Train) Record() Record {
	return Record{
		ID:       t.ID,
		LineID:   t.LineID,
		AtIndex:  t.AtIndex,
		T:        t.T,
		Dir:      t.Dir,
		Dwell:    t.Dwell,
		Capacity: t.Manifest.Capacity,
	}
}

// Validate checks that a persisted train can run.
func (r Record) Validate() error {
	switch {
	case r.Dir != Forward && r.Dir != Reverse:
		return fmt.Errorf("train %d: direction %d", r.ID, r.Dir)
	case r.Capacity <= 0:
		return fmt.Errorf("train %d: capacity %d", r.ID, r.Capacity)
	case r.T < 0 || r.T >= 1:
		return fmt.Errorf("train %d: segment fraction %v outside [0,1)", r.ID, r.T)
	case r.Dwell < 0:
		return fmt.Errorf("train %d: negative dwell %v", r.ID, r.Dwell)
	}
	return nil
}
