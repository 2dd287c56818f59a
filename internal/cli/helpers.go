package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ryantjarrett/CTSI-2024/pkg/config"
	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// loadPopulation reads a population spec file, falling back to the built-in
// default cohort when no path is given.
func loadPopulation(path string) (*config.PopulationSpec, error) {
	if path == "" {
		return config.DefaultPopulationSpec(), nil
	}
	return config.LoadPopulationSpec(path)
}

// loadEngine reads engine settings, falling back to the defaults.
func loadEngine(path string) (config.Engine, error) {
	if path == "" {
		return config.DefaultEngine(), nil
	}
	engine, err := config.LoadEngine(path)
	if err != nil {
		return config.Engine{}, err
	}
	return *engine, nil
}

// loadRequest reads a solve request from a YAML file.
func loadRequest(path string) (models.SolveRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.SolveRequest{}, fmt.Errorf("failed to read request file: %w", err)
	}
	var req models.SolveRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return models.SolveRequest{}, fmt.Errorf("failed to parse request file %s: %w", path, err)
	}
	return req, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
