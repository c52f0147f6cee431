// Package config loads training configuration files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/n0madic/go-structured-svm/bcfw"
	"github.com/n0madic/go-structured-svm/internal/logging"
)

// File is the layout of a training config file.
type File struct {
	Train   bcfw.Config    `yaml:"train"`
	Log     logging.Config `yaml:"log"`
	Results Results        `yaml:"results"`
	Data    Data           `yaml:"data"`
}

// Results configures where scores and the optimizer state go.
type Results struct {
	Path        string `yaml:"path"`         // JSON results log
	StatePath   string `yaml:"state_path"`   // gob optimizer state, loaded on start and saved on exit
	MetricsAddr string `yaml:"metrics_addr"` // serve Prometheus metrics here when set
}

// Data selects the training and test sets.
type Data struct {
	Train     string  `yaml:"train"` // CSV with the label in the last column; empty uses synthetic data
	Test      string  `yaml:"test"`
	Samples   int     `yaml:"samples"` // synthetic: samples per class
	Features  int     `yaml:"features"`
	Classes   int     `yaml:"classes"`
	Spread    float64 `yaml:"spread"`
	TestRatio float64 `yaml:"test_ratio"`
	Seed      int64   `yaml:"seed"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Train: bcfw.DefaultConfig(),
		Log:   logging.DefaultConfig(),
		Data: Data{
			Samples:   50,
			Features:  2,
			Classes:   3,
			Spread:    1.0,
			TestRatio: 0.2,
			Seed:      1,
		},
	}
}

// Parse decodes YAML from r over the defaults and validates the result.
func Parse(r io.Reader) (File, error) {
	f := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("decode config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Load reads and parses the config file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate checks the training section and the synthetic data settings.
func (f File) Validate() error {
	if err := f.Train.Validate(); err != nil {
		return err
	}
	if f.Data.Train == "" {
		if f.Data.Samples <= 0 || f.Data.Features <= 0 || f.Data.Classes <= 1 {
			return fmt.Errorf("synthetic data needs positive samples and features and at least 2 classes")
		}
	}
	if f.Data.TestRatio < 0 || f.Data.TestRatio >= 1 {
		return fmt.Errorf("test_ratio must be in [0, 1), got %g", f.Data.TestRatio)
	}
	return nil
}
