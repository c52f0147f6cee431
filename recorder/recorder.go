// Package recorder provides bcfw.Recorder implementations.
package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/n0madic/go-structured-svm/bcfw"
)

// Results keeps every recorded score in memory and writes them as one JSON document
// on Save. It is safe for concurrent use, so a metrics endpoint can read it while
// training runs.
type Results struct {
	path string

	mu     sync.RWMutex
	Batch  []bcfw.BatchScores `json:"batch"`
	Epochs []bcfw.EpochScores `json:"epochs"`
}

// NewResults creates a results log persisted to path. An empty path keeps results in memory only.
func NewResults(path string) *Results {
	return &Results{path: path}
}

// RecordBatch appends sub-epoch scores.
func (r *Results) RecordBatch(s bcfw.BatchScores) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Batch = append(r.Batch, s)
	return nil
}

// Record appends epoch scores.
func (r *Results) Record(s bcfw.EpochScores) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Epochs = append(r.Epochs, s)
	return nil
}

// Last returns the most recent epoch scores.
func (r *Results) Last() (bcfw.EpochScores, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.Epochs) == 0 {
		return bcfw.EpochScores{}, false
	}
	return r.Epochs[len(r.Epochs)-1], true
}

// Save writes all results to the configured path, replacing the previous file.
func (r *Results) Save() error {
	if r.path == "" {
		return nil
	}
	r.mu.RLock()
	data, err := json.MarshalIndent(r, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return os.Rename(tmp, r.path)
}

// Load reads results previously written by Save.
func Load(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := NewResults(path)
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode results %s: %w", path, err)
	}
	return r, nil
}

// Multi fans every call out to all recorders and joins their errors.
type Multi []bcfw.Recorder

// RecordBatch forwards sub-epoch scores to every recorder.
func (m Multi) RecordBatch(s bcfw.BatchScores) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordBatch(s))
	}
	return errors.Join(errs...)
}

// Record forwards epoch scores to every recorder.
func (m Multi) Record(s bcfw.EpochScores) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Record(s))
	}
	return errors.Join(errs...)
}

// Save saves every recorder, even after one fails.
func (m Multi) Save() error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Save())
	}
	return errors.Join(errs...)
}
