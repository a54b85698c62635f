package engine

import (
	"github.com/cxd309/metro-engine/internal/economy"
	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/passenger"
)

// SimulationMeta holds the identity and timing parameters for a scenario run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id"`
	RunTime      float64 `json:"run_time"`  // sim seconds
	TimeStep     float64 `json:"time_step"` // seconds per tick, before the speed multiplier
}

// ScenarioStation places one station. ID is local to the scenario and is only
// used to refer to the station from lines and passengers.
type ScenarioStation struct {
	ID    int           `json:"id"`
	X     float64       `json:"x"`
	Y     float64       `json:"y"`
	Shape network.Shape `json:"shape"`
	Size  network.Size  `json:"size"`
}

// ScenarioLine is a line built for free before the run. Every line starts
// with one train; ExtraTrains adds more.
type ScenarioLine struct {
	Name        string `json:"name"`
	Stations    []int  `json:"stations"`
	ExtraTrains int    `json:"extra_trains"`
}

// ScenarioPassenger is placed at From at time zero.
type ScenarioPassenger struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// SimulationInput is the JSON-serialisable input to a scenario run. Config
// fields left out of the JSON keep their defaults.
type SimulationInput struct {
	Meta       SimulationMeta      `json:"simulation_meta"`
	Config     Config              `json:"config"`
	Stations   []ScenarioStation   `json:"stations"`
	Lines      []ScenarioLine      `json:"lines"`
	Passengers []ScenarioPassenger `json:"passengers"`
}

// SimulationLogRow is the state of the world after one tick.
type SimulationLogRow struct {
	Timestamp float64       `json:"timestamp"` // sim seconds
	Balance   float64       `json:"balance"`
	Stations  []StationView `json:"stations"`
	Trains    []TrainView   `json:"trains"`
}

// SimulationSummary is the end state of a run.
type SimulationSummary struct {
	GameOver     bool                  `json:"game_over"`
	Balance      float64               `json:"balance"`
	TotalIncome  float64               `json:"total_income"`
	TotalExpense float64               `json:"total_expense"`
	Counters     passenger.Counters    `json:"counters"`
	Status       SystemStatus          `json:"status"`
	Lines        []LineView            `json:"lines"`
	Transactions []economy.Transaction `json:"transactions"`
}

// SimulationLog is the complete output of a scenario run.
type SimulationLog struct {
	Meta    SimulationMeta     `json:"simulation_meta"`
	Output  []SimulationLogRow `json:"output"`
	Summary SimulationSummary  `json:"summary"`
}
