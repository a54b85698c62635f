//go:build js && wasm

// Command wasm runs the metro engine inside the browser. It registers:
//
//	runScenario(json) -> json        whole headless run, same contract as the CLI
//	defaultConfig() -> json          the engine tuning a scenario starts from
//	loadWorld(json) -> error | null  build an interactive world from a scenario
//	stepWorld(dt) -> json            advance the loaded world, return its snapshot
//
// Failures are returned as {"error": "..."} objects.
package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/cxd309/metro-engine/internal/engine"
)

var world *engine.World

func main() {
	js.Global().Set("runScenario", js.FuncOf(runScenario))
	js.Global().Set("defaultConfig", js.FuncOf(defaultConfig))
	js.Global().Set("loadWorld", js.FuncOf(loadWorld))
	js.Global().Set("stepWorld", js.FuncOf(stepWorld))
	select {}
}

func jsError(err error) any { return map[string]any{"error": err.Error()} }

func runScenario(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no scenario given"}
	}
	out, err := engine.RunJSON(args[0].String())
	if err != nil {
		return jsError(err)
	}
	return out
}

func defaultConfig(js.Value, []js.Value) any {
	b, err := json.Marshal(engine.DefaultConfig())
	if err != nil {
		return jsError(err)
	}
	return string(b)
}

func loadWorld(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no scenario given"}
	}
	input := engine.SimulationInput{Config: engine.DefaultConfig()}
	if err := json.Unmarshal([]byte(args[0].String()), &input); err != nil {
		return jsError(err)
	}
	sc, err := engine.NewScenario(input)
	if err != nil {
		return jsError(err)
	}
	world = sc.World()
	return nil
}

func stepWorld(_ js.Value, args []js.Value) any {
	if world == nil {
		return map[string]any{"error": "no world loaded"}
	}
	if len(args) > 0 {
		world.Update(args[0].Float())
	}
	b, err := json.Marshal(world.Snapshot())
	if err != nil {
		return jsError(err)
	}
	return string(b)
}
