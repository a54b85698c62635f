package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/cxd309/metro-engine/internal/economy"
	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/passenger"
	"github.com/cxd309/metro-engine/internal/train"
)

// SaveVersion is written into every save. Restore accepts any save with the
// same major version.
const SaveVersion = "1.0.0"

// NextIDs are the id counters that must survive a save.
type NextIDs struct {
	Network   int          `json:"network"`
	Train     train.ID     `json:"train"`
	Passenger passenger.ID `json:"passenger"`
}

// SaveData is the versioned persisted world. Passengers in flight are not
// saved.
type SaveData struct {
	Version   string            `json:"version"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	SimTime   float64           `json:"sim_time"`
	GameOver  bool              `json:"game_over"`
	Stations  []network.Station `json:"stations"`
	Lines     []network.Line    `json:"lines"`
	Trains    []train.Record    `json:"trains"`
	Economy   economy.State     `json:"economy"`
	NextIDs   NextIDs           `json:"next_ids"`
}

// Save captures the persistent world state.
func (w *World) Save() SaveData {
	sd := SaveData{
		Version:   SaveVersion,
		SessionID: w.id,
		Timestamp: time.Now().UTC(),
		SimTime:   w.time,
		GameOver:  w.over,
		Economy:   w.ledger.State(),
		NextIDs: NextIDs{
			Network:   w.net.NextID(),
			Train:     w.trains.NextID(),
			Passenger: w.riders.NextID(),
		},
	}
	for _, s := range w.net.Stations() {
		sd.Stations = append(sd.Stations, *s)
	}
	for _, l := range w.net.Lines() {
		c := *l
		c.Stations = append([]network.StationID(nil), l.Stations...)
		sd.Lines = append(sd.Lines, c)
	}
	for _, t := range w.trains.Trains() {
		sd.Trains = append(sd.Trains, t.Record())
	}
	return sd
}

// Restore replaces the world with sd. Derived state (route cache, queues,
// line load statistics) is rebuilt rather than trusted. The save is checked
// before anything is replaced.
func (w *World) Restore(sd SaveData) error {
	if major(sd.Version) != major(SaveVersion) {
		return fmt.Errorf("save version %q is not compatible with %q", sd.Version, SaveVersion)
	}
	lineLen := make(map[network.LineID]int, len(sd.Lines))
	for _, l := range sd.Lines {
		lineLen[l.ID] = len(l.Stations)
	}
	for _, r := range sd.Trains {
		n, ok := lineLen[r.LineID]
		if !ok {
			return fmt.Errorf("restoring train %d: line %d: %w", r.ID, r.LineID, network.ErrLineNotFound)
		}
		if r.AtIndex < 0 || r.AtIndex >= n {
			return fmt.Errorf("restoring train %d: index %d outside line %d", r.ID, r.AtIndex, r.LineID)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("restoring %w", err)
		}
	}
	if err := sd.Economy.Validate(); err != nil {
		return fmt.Errorf("restoring economy: %w", err)
	}
	if err := w.net.Restore(sd.Stations, sd.Lines, sd.NextIDs.Network); err != nil {
		return fmt.Errorf("restoring network: %w", err)
	}
	if err := w.ledger.Restore(sd.Economy); err != nil {
		return fmt.Errorf("restoring economy: %w", err)
	}
	w.trains.Restore(sd.Trains, sd.NextIDs.Train)
	w.riders.Reset(sd.NextIDs.Passenger)
	w.planner.Invalidate()
	if sd.SessionID != "" {
		w.id = sd.SessionID
	}
	w.time = sd.SimTime
	w.over = sd.GameOver
	w.sinceCleanup, w.spawnTimer, w.sinceUpkeep = 0, 0, 0
	clear(w.loads)
	return nil
}

func major(v string) string {
	m, _, _ := strings.Cut(v, ".")
	return m
}
