package engine

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/cxd309/metro-engine/internal/network"
)

// Scenario is a world prepared from a SimulationInput and ready to run.
type Scenario struct {
	meta  SimulationMeta
	world *World
}

// NewScenario validates input and builds its stations, lines, trains and
// initial passengers. Scenario lines are free.
func NewScenario(input SimulationInput) (*Scenario, error) {
	if input.Meta.TimeStep <= 0 {
		return nil, fmt.Errorf("time_step must be positive, got %v", input.Meta.TimeStep)
	}
	if input.Meta.RunTime < 0 {
		return nil, fmt.Errorf("run_time must not be negative, got %v", input.Meta.RunTime)
	}
	if err := input.Config.Validate(); err != nil {
		return nil, err
	}
	w, err := New(input.Config)
	if err != nil {
		return nil, fmt.Errorf("building world: %w", err)
	}
	if input.Meta.SimulationID != "" {
		w.id = input.Meta.SimulationID
	}

	ids := make(map[int]network.StationID, len(input.Stations))
	for _, s := range input.Stations {
		if _, dup := ids[s.ID]; dup {
			return nil, fmt.Errorf("station %d declared twice", s.ID)
		}
		size := s.Size
		if size == "" {
			size = network.Medium
		}
		ids[s.ID] = w.AddStation(orb.Point{s.X, s.Y}, s.Shape, size).ID
	}
	resolve := func(id int) (network.StationID, error) {
		sid, ok := ids[id]
		if !ok {
			return 0, fmt.Errorf("station %d: %w", id, network.ErrStationNotFound)
		}
		return sid, nil
	}

	for i, sl := range input.Lines {
		if len(sl.Stations) < 2 {
			return nil, fmt.Errorf("line %d: %w", i, network.ErrLineTooShort)
		}
		stops := make([]network.StationID, len(sl.Stations))
		for j, id := range sl.Stations {
			if stops[j], err = resolve(id); err != nil {
				return nil, fmt.Errorf("line %d: %w", i, err)
			}
		}
		line, err := w.CreateLine(stops[0], stops[1], sl.Name, true)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		for _, sid := range stops[2:] {
			if err := w.net.ExtendLine(line.ID, sid, network.Endpoint{Side: network.AtEnd}); err != nil {
				return nil, fmt.Errorf("line %d: %w", i, err)
			}
		}
		for range sl.ExtraTrains {
			w.trains.Add(line.ID, 0)
		}
	}

	for i, sp := range input.Passengers {
		from, err := resolve(sp.From)
		if err != nil {
			return nil, fmt.Errorf("passenger %d: %w", i, err)
		}
		to, err := resolve(sp.To)
		if err != nil {
			return nil, fmt.Errorf("passenger %d: %w", i, err)
		}
		if from == to {
			return nil, fmt.Errorf("passenger %d starts at its destination %d", i, sp.From)
		}
		w.riders.SpawnBetween(from, to, 0)
	}

	return &Scenario{meta: input.Meta, world: w}, nil
}

// World exposes the scenario's world for inspection.
func (s *Scenario) World() *World { return s.world }

// Run ticks the world until RunTime is reached or the game ends and returns
// the log.
func (s *Scenario) Run() SimulationLog {
	log := SimulationLog{Meta: s.meta}
	steps := int(math.Floor(s.meta.RunTime/s.meta.TimeStep + 1e-9))
	for range steps {
		s.world.Update(s.meta.TimeStep)
		log.Output = append(log.Output, s.row())
		if s.world.GameOver() {
			break
		}
	}
	log.Summary = s.summary()
	return log
}

func (s *Scenario) row() SimulationLogRow {
	snap := s.world.Snapshot()
	return SimulationLogRow{
		Timestamp: snap.Time,
		Balance:   snap.Balance,
		Stations:  snap.Stations,
		Trains:    snap.Trains,
	}
}

func (s *Scenario) summary() SimulationSummary {
	w := s.world
	st := w.ledger.State()
	return SimulationSummary{
		GameOver:     w.over,
		Balance:      st.Balance,
		TotalIncome:  st.TotalIncome,
		TotalExpense: st.TotalExpense,
		Counters:     w.riders.Counters(),
		Status:       w.TransferStats().Status,
		Lines:        w.Snapshot().Lines,
		Transactions: st.Transactions,
	}
}

// RunJSON is the entry point shared by the CLI and WASM targets. It accepts a
// JSON-encoded SimulationInput, runs the scenario, and returns a JSON-encoded
// SimulationLog.
func RunJSON(jsonInput string) (string, error) {
	input := SimulationInput{Config: DefaultConfig()}
	input.Config.Quiet = true
	if err := json.Unmarshal([]byte(jsonInput), &input); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}

	sc, err := NewScenario(input)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(sc.Run())
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
