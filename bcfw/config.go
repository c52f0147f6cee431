package bcfw

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidReg          = errors.New("regularization must be positive")
	ErrInvalidEpochs       = errors.New("epochs must be non-negative")
	ErrInvalidSampleMethod = errors.New("unknown sample method")
	ErrEmptyDataset        = errors.New("empty dataset")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
)

// Config holds the optimizer hyperparameters. It is read once at construction.
type Config struct {
	Epochs         int          `yaml:"epochs"`           // maximum number of passes over the data
	Reg            float64      `yaml:"reg"`              // regularization strength λ
	LineSearch     bool         `yaml:"line_search"`      // exact line search instead of the 2N/(k+2N) schedule
	VerboseSamples int          `yaml:"verbose_samples"`  // score every N samples inside an epoch (<= 0 disables)
	CheckDualEvery int          `yaml:"check_dual_every"` // epoch cadence for scores; 0 disables, negative skips the gap
	SampleMethod   SampleMethod `yaml:"sample_method"`
	RandomState    int64        `yaml:"random_state"` // 0 seeds from the clock
	Averaging      bool         `yaml:"averaging"`
}

// DefaultConfig returns the default optimizer configuration
func DefaultConfig() Config {
	return Config{
		Epochs:         50,
		Reg:            1.0,
		LineSearch:     true,
		VerboseSamples: -1,
		CheckDualEvery: 10,
		SampleMethod:   Permutation,
		RandomState:    0,
		Averaging:      true,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Epochs < 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidEpochs, c.Epochs)
	}
	if !(c.Reg > 0) {
		return fmt.Errorf("%w, got %g", ErrInvalidReg, c.Reg)
	}
	if _, err := ParseSampleMethod(string(c.SampleMethod)); err != nil {
		return err
	}
	return nil
}
