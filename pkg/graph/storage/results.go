package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/pkg/errors"
)

// ResultStore persists stage results as a JSON file.
type ResultStore struct {
	filePath string
}

// NewResultStore creates a result store for the given file path.
func NewResultStore(filePath string) *ResultStore {
	return &ResultStore{filePath: filePath}
}

// Store writes the stage results, creating parent directories as needed.
func (s *ResultStore) Store(results graph.StageResults) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode stage results")
	}

	return errors.Wrapf(os.WriteFile(s.filePath, data, 0644),
		"failed to write %s", s.filePath)
}

// Load reads the stage results back.
func (s *ResultStore) Load() (graph.StageResults, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", s.filePath)
	}

	var results graph.StageResults
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", s.filePath)
	}
	return results, nil
}
