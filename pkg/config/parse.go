package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParsePopulationSpecYAML parses a PopulationSpec from YAML bytes and
// validates it. This is used for APIs where the population is provided as
// payload (not via filesystem).
func ParsePopulationSpecYAML(data []byte) (*PopulationSpec, error) {
	var spec PopulationSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse population yaml: %w", err)
	}

	if err := validatePopulationSpec(&spec); err != nil {
		return nil, fmt.Errorf("invalid population spec: %w", err)
	}

	return &spec, nil
}

// ParsePopulationSpecYAMLString parses a PopulationSpec from a YAML string
// and validates it.
func ParsePopulationSpecYAMLString(yamlText string) (*PopulationSpec, error) {
	return ParsePopulationSpecYAML([]byte(yamlText))
}

// ParseEngineYAML parses engine settings from YAML bytes, overlaying the
// defaults, and validates the result. Fields absent from the document keep
// their default values.
func ParseEngineYAML(data []byte) (*Engine, error) {
	eng := DefaultEngine()
	if err := yaml.Unmarshal(data, &eng); err != nil {
		return nil, fmt.Errorf("failed to parse engine yaml: %w", err)
	}

	if err := validateEngine(&eng); err != nil {
		return nil, fmt.Errorf("invalid engine settings: %w", err)
	}

	return &eng, nil
}

// ParseEngineYAMLString parses engine settings from a YAML string.
func ParseEngineYAMLString(yamlText string) (*Engine, error) {
	return ParseEngineYAML([]byte(yamlText))
}
