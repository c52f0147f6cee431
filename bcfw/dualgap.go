package bcfw

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var errNotFitted = errors.New("optimizer has no state; call Fit first")

// DualityGap evaluates the dual objective, the Frank-Wolfe duality gap and the primal
// objective at the current exposed weights over the whole dataset. It does not modify
// the optimizer state.
func (o *Optimizer[X, Y]) DualityGap(xs []X, ys []Y) (Gap, error) {
	if o.state == nil {
		return Gap{}, errNotFitted
	}
	if len(xs) == 0 {
		return Gap{}, ErrEmptyDataset
	}
	if len(xs) != len(ys) {
		return Gap{}, ErrDimensionMismatch
	}

	n := float64(len(xs))
	lambda := o.cfg.Reg
	w := o.state.W
	l := o.state.L

	jointFeatureGT := batchJointFeature(o.model, xs, ys)
	yHats, err := batchLossAugmentedInference(o.model, xs, ys, w)
	if err != nil {
		return Gap{}, err
	}
	ws := mat.NewVecDense(w.Len(), nil)
	ws.SubVec(jointFeatureGT, batchJointFeature(o.model, xs, yHats))
	ws.ScaleVec(1/(lambda*n), ws)
	ls := floats.Sum(batchLoss(o.model, ys, yHats))

	dual := -lambda/2*mat.Dot(w, w) + l

	wDiff := mat.NewVecDense(w.Len(), nil)
	wDiff.SubVec(w, ws)
	gap := lambda*mat.Dot(wDiff, w) - l + ls/n

	return Gap{
		DualObjective:   dual,
		DualGap:         gap,
		PrimalObjective: dual + gap,
	}, nil
}
