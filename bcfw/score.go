package bcfw

import (
	"go.uber.org/zap"
)

// Predict runs inference for every input under the exposed weights.
func (o *Optimizer[X, Y]) Predict(xs []X) ([]Y, error) {
	if o.state == nil {
		return nil, errNotFitted
	}
	out := make([]Y, len(xs))
	for i, x := range xs {
		y, err := o.model.Inference(x, o.state.W)
		if err != nil {
			return nil, err
		}
		out[i] = y
	}
	return out, nil
}

// Score returns the mean task loss of the predictions for xs against ys. Labels are
// checked with the model's Validator, if any.
func (o *Optimizer[X, Y]) Score(xs []X, ys []Y) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmptyDataset
	}
	if len(xs) != len(ys) {
		return 0, ErrDimensionMismatch
	}
	if err := validate(o.model, xs, ys); err != nil {
		return 0, err
	}
	yHats, err := o.Predict(xs)
	if err != nil {
		return 0, err
	}
	var total float64
	for i := range ys {
		total += o.model.Loss(ys[i], yHats[i])
	}
	return total / float64(len(ys)), nil
}

// scores computes the train error and, when a test set is configured, the test error.
func (o *Optimizer[X, Y]) scores(xs []X, ys []Y) (float64, *float64, error) {
	train, err := o.Score(xs, ys)
	if err != nil {
		return 0, nil, err
	}
	if len(o.testX) == 0 {
		return train, nil, nil
	}
	test, err := o.Score(o.testX, o.testY)
	if err != nil {
		return 0, nil, err
	}
	return train, &test, nil
}

func (o *Optimizer[X, Y]) recordBatch(epoch, sample int, xs []X, ys []Y) error {
	train, test, err := o.scores(xs, ys)
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.Int("epoch", epoch),
		zap.Int("sample", sample),
		zap.Float64("train_loss", train),
	}
	if test != nil {
		fields = append(fields, zap.Float64("test_loss", *test))
	}
	o.logger.Info("progress", fields...)

	return o.recorder.RecordBatch(BatchScores{
		Epoch:      epoch,
		Sample:     sample,
		Iteration:  o.state.K,
		TrainError: train,
		TestError:  test,
	})
}

func (o *Optimizer[X, Y]) recordEpoch(epoch int, xs []X, ys []Y) error {
	scores := EpochScores{Iteration: epoch, Updates: o.state.K}
	if o.cfg.CheckDualEvery > 0 {
		gap, err := o.DualityGap(xs, ys)
		if err != nil {
			return err
		}
		scores.Gap = &gap
	}

	train, test, err := o.scores(xs, ys)
	if err != nil {
		return err
	}
	scores.TrainError, scores.TestError = train, test

	fields := []zap.Field{
		zap.Int("epoch", epoch),
		zap.Int("updates", o.state.K),
		zap.Float64("train_error", train),
	}
	if test != nil {
		fields = append(fields, zap.Float64("test_error", *test))
	}
	if scores.Gap != nil {
		fields = append(fields,
			zap.Float64("dual_objective", scores.Gap.DualObjective),
			zap.Float64("dual_gap", scores.Gap.DualGap),
			zap.Float64("primal_objective", scores.Gap.PrimalObjective))
	}
	o.logger.Info("epoch", fields...)

	if err := o.recorder.Record(scores); err != nil {
		return err
	}
	return o.recorder.Save()
}
