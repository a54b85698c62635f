package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quietInput is a scenario with passenger spawning switched off so runs are
// deterministic.
func quietInput() SimulationInput {
	cfg := DefaultConfig()
	cfg.Quiet = true
	cfg.Passengers.SpawnBaseRate = 0
	cfg.Passengers.SpawnRateGrowth = 0
	return SimulationInput{
		Meta:   SimulationMeta{SimulationID: "test", RunTime: 40, TimeStep: 0.1},
		Config: cfg,
	}
}

func TestRunJSONDeliversOnePassenger(t *testing.T) {
	in := `{
		"simulation_meta": {"simulation_id": "ab", "run_time": 40, "time_step": 0.1},
		"config": {"quiet": true, "passengers": {"spawnBaseRate": 0, "spawnRateGrowth": 0}},
		"stations": [
			{"id": 1, "x": 100, "y": 100, "shape": "circle"},
			{"id": 2, "x": 300, "y": 100, "shape": "triangle"}
		],
		"lines": [{"name": "Line 1", "stations": [1, 2]}],
		"passengers": [{"from": 1, "to": 2}]
	}`
	out, err := RunJSON(in)
	require.NoError(t, err)

	var log SimulationLog
	require.NoError(t, json.Unmarshal([]byte(out), &log))
	assert.Equal(t, "ab", log.Meta.SimulationID)
	assert.Len(t, log.Output, 400)
	assert.Equal(t, 1, log.Summary.Counters.Completed)
	assert.InDelta(t, 512, log.Summary.Balance, 1e-9)
	require.Len(t, log.Summary.Lines, 1)
	assert.Equal(t, 1, log.Summary.Lines[0].Stats.PassengersTransported)
	assert.False(t, log.Summary.GameOver)
}

func TestRunJSONRejectsBadInput(t *testing.T) {
	_, err := RunJSON(`{`)
	assert.Error(t, err)

	_, err = RunJSON(`{"simulation_meta": {"run_time": 10, "time_step": 0}}`)
	assert.Error(t, err)

	_, err = RunJSON(`{
		"simulation_meta": {"run_time": 10, "time_step": 1},
		"stations": [{"id": 1, "shape": "circle"}],
		"lines": [{"stations": [1, 9]}]
	}`)
	assert.Error(t, err)

	_, err = RunJSON(`{
		"simulation_meta": {"run_time": 10, "time_step": 1},
		"config": {"economy": {"farePolicy": "auction"}}
	}`)
	assert.Error(t, err)
}

func TestScenarioTransferTrip(t *testing.T) {
	in := quietInput()
	in.Meta.RunTime = 80
	in.Stations = []ScenarioStation{
		{ID: 1, X: 100, Y: 100, Shape: 0},
		{ID: 2, X: 300, Y: 100, Shape: 1},
		{ID: 3, X: 300, Y: 300, Shape: 2},
	}
	in.Lines = []ScenarioLine{
		{Stations: []int{1, 2}},
		{Stations: []int{2, 3}},
	}
	in.Passengers = []ScenarioPassenger{{From: 1, To: 3}}

	sc, err := NewScenario(in)
	require.NoError(t, err)
	log := sc.Run()

	c := log.Summary.Counters
	assert.Equal(t, 1, c.Spawned)
	assert.Equal(t, 1, c.Transfers)
	assert.Equal(t, 1, c.Completed)
	assert.Equal(t, 0, c.Evicted)
	assert.Greater(t, log.Summary.Balance, 500.0)
}

func TestScenarioConservesPassengers(t *testing.T) {
	in := quietInput()
	in.Config.Passengers = DefaultConfig().Passengers
	in.Config.Passengers.QueueFail = 1000
	in.Meta.RunTime = 300
	in.Stations = []ScenarioStation{
		{ID: 1, X: 100, Y: 100, Shape: 0},
		{ID: 2, X: 250, Y: 100, Shape: 1},
		{ID: 3, X: 400, Y: 100, Shape: 2},
		{ID: 4, X: 250, Y: 300, Shape: 3},
		{ID: 5, X: 250, Y: 500, Shape: 4},
	}
	in.Lines = []ScenarioLine{
		{Stations: []int{1, 2, 3}, ExtraTrains: 1},
		{Stations: []int{2, 4, 5}},
	}

	sc, err := NewScenario(in)
	require.NoError(t, err)
	w := sc.World()
	for range 3000 {
		w.Update(0.1)

		inFlight := 0
		for _, s := range w.Network().Stations() {
			q := w.Passengers().Queue(s.ID)
			require.True(t, q.Consistent())
			inFlight += q.Len()
		}
		for _, tr := range w.Trains().Trains() {
			require.True(t, tr.Manifest.Consistent())
			require.LessOrEqual(t, tr.Manifest.Len(), tr.Capacity())
			inFlight += tr.Manifest.Len()
		}
		c := w.Passengers().Counters()
		require.Equal(t, c.Spawned, inFlight+c.Completed+c.Evicted)
	}
	assert.Positive(t, w.Passengers().Counters().Spawned)
}

func TestScenarioEndsOnOverflow(t *testing.T) {
	in := quietInput()
	in.Config.Passengers.QueueFail = 2
	in.Stations = []ScenarioStation{
		{ID: 1, X: 100, Y: 100, Shape: 0},
		{ID: 2, X: 300, Y: 100, Shape: 1},
	}
	in.Passengers = []ScenarioPassenger{{From: 1, To: 2}, {From: 1, To: 2}}

	sc, err := NewScenario(in)
	require.NoError(t, err)
	log := sc.Run()
	assert.True(t, log.Summary.GameOver)
	assert.Len(t, log.Output, 1)
}
