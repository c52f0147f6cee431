// Package multiclass is a multiclass SVM expressed as a structured model: the output is
// a single class label and the joint feature map places the input in the block of
// that class.
package multiclass

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidLabel    = errors.New("label out of range")
	ErrFeatureMismatch = errors.New("feature dimension mismatch")
)

// MultiClass implements bcfw.Model[[]float64, int], bcfw.BatchModel and bcfw.Validator.
type MultiClass struct {
	nFeatures   int       // input dimension
	nClasses    int       // number of labels
	classWeight []float64 // loss for mistaking the true class, per class
}

// Option defines a functional option for configuring MultiClass
type Option func(*MultiClass)

// WithClassWeight sets the per-class misclassification loss
func WithClassWeight(weights []float64) Option {
	return func(m *MultiClass) {
		m.classWeight = append([]float64(nil), weights...)
	}
}

// New creates a multiclass model. Zero dimensions are inferred from the data in Initialize.
func New(nFeatures, nClasses int, options ...Option) (*MultiClass, error) {
	if nFeatures < 0 || nClasses < 0 {
		return nil, fmt.Errorf("dimensions must be non-negative, got %d features and %d classes", nFeatures, nClasses)
	}
	m := &MultiClass{nFeatures: nFeatures, nClasses: nClasses}
	for _, opt := range options {
		opt(m)
	}
	for _, w := range m.classWeight {
		if w < 0 || math.IsNaN(w) {
			return nil, fmt.Errorf("class weights must be non-negative, got %g", w)
		}
	}
	return m, nil
}

// NumFeatures returns the input dimension.
func (m *MultiClass) NumFeatures() int { return m.nFeatures }

// NumClasses returns the number of classes.
func (m *MultiClass) NumClasses() int { return m.nClasses }

// Initialize infers missing dimensions and validates the data.
func (m *MultiClass) Initialize(xs [][]float64, ys []int) error {
	if len(xs) == 0 {
		return errors.New("empty dataset")
	}
	if m.nFeatures == 0 {
		m.nFeatures = len(xs[0])
	}
	if m.nClasses == 0 {
		for _, y := range ys {
			m.nClasses = max(m.nClasses, y+1)
		}
	}
	if err := m.Validate(xs, ys); err != nil {
		return err
	}
	if m.classWeight == nil {
		m.classWeight = make([]float64, m.nClasses)
		for c := range m.classWeight {
			m.classWeight[c] = 1
		}
	} else if len(m.classWeight) != m.nClasses {
		return fmt.Errorf("got %d class weights for %d classes", len(m.classWeight), m.nClasses)
	}
	return nil
}

// Validate checks that every input has nFeatures values and every label is a known class.
func (m *MultiClass) Validate(xs [][]float64, ys []int) error {
	for i, x := range xs {
		if len(x) != m.nFeatures {
			return fmt.Errorf("%w: sample %d has %d features, want %d", ErrFeatureMismatch, i, len(x), m.nFeatures)
		}
	}
	for i, y := range ys {
		if y < 0 || y >= m.nClasses {
			return fmt.Errorf("%w: sample %d has label %d, want [0, %d)", ErrInvalidLabel, i, y, m.nClasses)
		}
	}
	return nil
}

// SizeJointFeature returns nFeatures * nClasses.
func (m *MultiClass) SizeJointFeature() int {
	return m.nFeatures * m.nClasses
}

// JointFeature copies x into the block of class y.
func (m *MultiClass) JointFeature(x []float64, y int) *mat.VecDense {
	psi := mat.NewVecDense(m.SizeJointFeature(), nil)
	m.addJointFeature(psi, x, y)
	return psi
}

func (m *MultiClass) addJointFeature(dst *mat.VecDense, x []float64, y int) {
	off := y * m.nFeatures
	for f, v := range x {
		dst.SetVec(off+f, dst.AtVec(off+f)+v)
	}
}

// classScores returns wᵀφ(x, c) for every class.
func (m *MultiClass) classScores(x []float64, w mat.Vector) ([]float64, error) {
	if len(x) != m.nFeatures {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrFeatureMismatch, len(x), m.nFeatures)
	}
	if w.Len() != m.SizeJointFeature() {
		return nil, fmt.Errorf("%w: weight length %d, want %d", ErrFeatureMismatch, w.Len(), m.SizeJointFeature())
	}
	scores := make([]float64, m.nClasses)
	for c := range scores {
		off := c * m.nFeatures
		for f, v := range x {
			scores[c] += w.AtVec(off+f) * v
		}
	}
	return scores, nil
}

// LossAugmentedInference returns argmax_c loss(y, c) + wᵀφ(x, c).
func (m *MultiClass) LossAugmentedInference(x []float64, y int, w mat.Vector) (int, error) {
	scores, err := m.classScores(x, w)
	if err != nil {
		return 0, err
	}
	for c := range scores {
		scores[c] += m.Loss(y, c)
	}
	return floats.MaxIdx(scores), nil
}

// Inference returns argmax_c wᵀφ(x, c).
func (m *MultiClass) Inference(x []float64, w mat.Vector) (int, error) {
	scores, err := m.classScores(x, w)
	if err != nil {
		return 0, err
	}
	return floats.MaxIdx(scores), nil
}

// Loss is the class weight of y when the prediction is wrong, zero otherwise.
func (m *MultiClass) Loss(y, yHat int) float64 {
	if y == yHat {
		return 0
	}
	if m.classWeight == nil {
		return 1
	}
	return m.classWeight[y]
}

// OutputEmbedding is the one-hot encoding of y.
func (m *MultiClass) OutputEmbedding(y int) *mat.VecDense {
	e := mat.NewVecDense(m.nClasses, nil)
	e.SetVec(y, 1)
	return e
}

// BatchJointFeature returns Σ φ(xs[i], ys[i]).
func (m *MultiClass) BatchJointFeature(xs [][]float64, ys []int) *mat.VecDense {
	sum := mat.NewVecDense(m.SizeJointFeature(), nil)
	for i := range xs {
		m.addJointFeature(sum, xs[i], ys[i])
	}
	return sum
}

// BatchLossAugmentedInference runs LossAugmentedInference for every sample.
func (m *MultiClass) BatchLossAugmentedInference(xs [][]float64, ys []int, w mat.Vector) ([]int, error) {
	out := make([]int, len(xs))
	for i := range xs {
		yHat, err := m.LossAugmentedInference(xs[i], ys[i], w)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out[i] = yHat
	}
	return out, nil
}

// BatchLoss returns the per-sample losses.
func (m *MultiClass) BatchLoss(ys, yHats []int) []float64 {
	out := make([]float64, len(ys))
	for i := range ys {
		out[i] = m.Loss(ys[i], yHats[i])
	}
	return out
}
