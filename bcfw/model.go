package bcfw

import (
	"gonum.org/v1/gonum/mat"
)

// Model is a structured prediction model that the optimizer trains.
// X is the input type and Y the structured output type.
type Model[X, Y any] interface {
	// Initialize is called once before training with the full training set.
	Initialize(xs []X, ys []Y) error
	// SizeJointFeature returns the dimension of the joint feature space.
	SizeJointFeature() int
	// JointFeature returns φ(x, y).
	JointFeature(x X, y Y) *mat.VecDense
	// LossAugmentedInference returns argmax_y' loss(y, y') + wᵀφ(x, y').
	LossAugmentedInference(x X, y Y, w mat.Vector) (Y, error)
	// Inference returns argmax_y' wᵀφ(x, y').
	Inference(x X, w mat.Vector) (Y, error)
	// Loss returns the task loss between the ground truth and a prediction.
	Loss(y, yHat Y) float64
	// OutputEmbedding maps an output to its marginal/embedding vector.
	OutputEmbedding(y Y) *mat.VecDense
}

// BatchModel is implemented by models with vectorized batch variants.
// BatchJointFeature returns the sum of joint features over the batch.
type BatchModel[X, Y any] interface {
	Model[X, Y]
	BatchJointFeature(xs []X, ys []Y) *mat.VecDense
	BatchLossAugmentedInference(xs []X, ys []Y, w mat.Vector) ([]Y, error)
	BatchLoss(ys, yHats []Y) []float64
}

func batchJointFeature[X, Y any](m Model[X, Y], xs []X, ys []Y) *mat.VecDense {
	if bm, ok := m.(BatchModel[X, Y]); ok {
		return bm.BatchJointFeature(xs, ys)
	}
	sum := mat.NewVecDense(m.SizeJointFeature(), nil)
	for i := range xs {
		sum.AddVec(sum, m.JointFeature(xs[i], ys[i]))
	}
	return sum
}

func batchLossAugmentedInference[X, Y any](m Model[X, Y], xs []X, ys []Y, w mat.Vector) ([]Y, error) {
	if bm, ok := m.(BatchModel[X, Y]); ok {
		return bm.BatchLossAugmentedInference(xs, ys, w)
	}
	yHats := make([]Y, len(xs))
	for i := range xs {
		yHat, err := m.LossAugmentedInference(xs[i], ys[i], w)
		if err != nil {
			return nil, err
		}
		yHats[i] = yHat
	}
	return yHats, nil
}

func batchLoss[X, Y any](m Model[X, Y], ys, yHats []Y) []float64 {
	if bm, ok := m.(BatchModel[X, Y]); ok {
		return bm.BatchLoss(ys, yHats)
	}
	losses := make([]float64, len(ys))
	for i := range ys {
		losses[i] = m.Loss(ys[i], yHats[i])
	}
	return losses
}

// Validator is implemented by models that can check inputs and labels against the
// dimensions fixed by Initialize. Held-out sets are checked with it before they are
// scored, so a label the training set never produced surfaces as an error.
type Validator[X, Y any] interface {
	Validate(xs []X, ys []Y) error
}

func validate[X, Y any](m Model[X, Y], xs []X, ys []Y) error {
	if v, ok := m.(Validator[X, Y]); ok {
		return v.Validate(xs, ys)
	}
	return nil
}
