// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package project

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// SessionFile is the on-disk representation of a research session. A
// session saved to a file can be reviewed or shared without rerunning
// any queries.
type SessionFile struct {
	Project string               `yaml:"project,omitempty"`
	SavedAt time.Time            `yaml:"saved_at"`
	Summary SessionFileSummary   `yaml:"summary"`
	Records []types.MemoryRecord `yaml:"records"`
}

// SessionFileSummary stores session statistics.
type SessionFileSummary struct {
	Queries   int     `yaml:"queries"`
	TotalCost float64 `yaml:"total_cost"`
	Results   int     `yaml:"results"`
}

// WriteSessionFile saves the session's records to a YAML file.
func WriteSessionFile(path, projectName string, records []types.MemoryRecord) error {
	sf := SessionFile{
		Project: projectName,
		SavedAt: time.Now().UTC(),
		Records: records,
	}
	for _, rec := range records {
		sf.Summary.Queries++
		sf.Summary.TotalCost += rec.Cost
		sf.Summary.Results += len(rec.Results)
	}

	data, err := yaml.Marshal(&sf)
	if err != nil {
		return fmt.Errorf("marshaling session file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSessionFile loads a previously saved session file from disk.
func ReadSessionFile(path string) (*SessionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	var sf SessionFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	return &sf, nil
}
