// Command metro-engine reads a SimulationInput JSON (or YAML) scenario from a
// file argument (or stdin), runs it, and writes the SimulationLog JSON to
// stdout.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cxd309/metro-engine/internal/engine"
)

func main() {
	pretty := flag.Bool("pretty", false, "indent the output JSON")
	flag.Parse()

	var (
		data []byte
		err  error
		path string
	)

	if flag.NArg() > 0 {
		path = flag.Arg(0)
		data, err = os.ReadFile(path)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
		os.Exit(1)
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yml" || ext == ".yaml" {
		data, err = yamlToJSON(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
			os.Exit(1)
		}
	}

	result, err := engine.RunJSON(string(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulation error: %v\n", err)
		os.Exit(1)
	}

	if *pretty {
		var v any
		if err := json.Unmarshal([]byte(result), &v); err == nil {
			if b, err := json.MarshalIndent(v, "", "  "); err == nil {
				result = string(b)
			}
		}
	}
	fmt.Println(result)
}

// yamlToJSON converts a YAML scenario into the JSON the engine accepts.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return json.Marshal(v)
}
