// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package procedure

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type document struct {
	Name      string           `json:"name" yaml:"name"`
	Simulator SimulatorSpec    `json:"simulator" yaml:"simulator"`
	Steps     []map[string]any `json:"steps" yaml:"steps"`
}

// ParseYAML loads a procedure from YAML. The document is either a list of
// steps or a mapping with name, simulator and steps.
func ParseYAML(data []byte) (*Procedure, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse yaml procedure: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("parse yaml procedure: unexpected document")
	}

	top := root.Content[0]
	var (
		proc      = &Procedure{}
		stepNodes []*yaml.Node
	)
	switch top.Kind {
	case yaml.SequenceNode:
		stepNodes = top.Content
	case yaml.MappingNode:
		var doc struct {
			Name      string        `yaml:"name"`
			Simulator SimulatorSpec `yaml:"simulator"`
			Steps     yaml.Node     `yaml:"steps"`
		}
		if err := top.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse yaml procedure: %w", err)
		}
		proc.Name = doc.Name
		proc.Simulator = doc.Simulator
		if doc.Steps.Kind != 0 && doc.Steps.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("parse yaml procedure: steps must be a list")
		}
		stepNodes = doc.Steps.Content
	default:
		return nil, fmt.Errorf("parse yaml procedure: expected a list of steps or a mapping")
	}

	for i, node := range stepNodes {
		var raw map[string]any
		if err := node.Decode(&raw); err != nil {
			return nil, fmt.Errorf("step %d (line %d): %w", i+1, node.Line, err)
		}
		step, err := stepFromMap(raw)
		if err != nil {
			return nil, fmt.Errorf("step %d (line %d): %w", i+1, node.Line, err)
		}
		step.Line = node.Line
		proc.Steps = append(proc.Steps, step)
	}
	if len(proc.Steps) == 0 {
		return nil, fmt.Errorf("procedure has no steps")
	}
	return proc, nil
}

// ParseJSON loads a procedure from JSON, in the same shapes as ParseYAML.
func ParseJSON(data []byte) (*Procedure, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var doc document
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Steps); err != nil {
			return nil, fmt.Errorf("parse json procedure: %w", err)
		}
	} else if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parse json procedure: %w", err)
	}

	proc := &Procedure{Name: doc.Name, Simulator: doc.Simulator}
	for i, raw := range doc.Steps {
		step, err := stepFromMap(raw)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		proc.Steps = append(proc.Steps, step)
	}
	if len(proc.Steps) == 0 {
		return nil, fmt.Errorf("procedure has no steps")
	}
	return proc, nil
}

// Load reads a procedure file. The extension picks the format; unknown
// extensions try JSON then YAML. An unnamed procedure takes the file's base
// name.
func Load(path string) (*Procedure, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("procedure path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proc *Procedure
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		proc, err = ParseJSON(data)
	case ".yaml", ".yml":
		proc, err = ParseYAML(data)
	default:
		proc, err = parseAuto(data)
	}
	if err != nil {
		return nil, err
	}
	if proc.Name == "" {
		proc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return proc, nil
}

func parseAuto(data []byte) (*Procedure, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[{") {
		if proc, err := ParseJSON(data); err == nil {
			return proc, nil
		}
	}
	return ParseYAML(data)
}
