// Package bcfw trains structured SVMs with the block-coordinate Frank-Wolfe algorithm.
//
// The optimizer keeps one primal block (a feature residual and a loss residual) per
// training sample. Each visit to a sample calls loss-augmented inference, builds the
// Frank-Wolfe corner for that block and moves the block towards it with either an
// exact line search or the 2N/(k+2N) schedule. The global weights are always the sum
// of the blocks; an averaged copy is exposed for prediction.
package bcfw

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const lineSearchEps = 1e-15

// Status tells how a Fit call ended.
type Status int

const (
	// StatusCompleted means all configured epochs ran.
	StatusCompleted Status = iota
	// StatusStopped means the context was cancelled and training stopped early.
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusStopped:
		return "stopped"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result summarizes a Fit call.
type Result struct {
	Status  Status
	Epochs  int // epochs fully completed in this call
	Updates int // global block update count after the call
}

// Stopped reports whether training ended because of cancellation.
func (r Result) Stopped() bool {
	return r.Status == StatusStopped
}

// Optimizer is a block-coordinate Frank-Wolfe structured SVM learner.
// It is not safe for concurrent use.
type Optimizer[X, Y any] struct {
	model      Model[X, Y]
	cfg        Config
	recorder   Recorder
	logger     *zap.Logger
	initialize bool
	reset      bool
	testX      []X
	testY      []Y

	state *State
	rng   *rand.Rand
	order []int
}

type options struct {
	recorder   Recorder
	logger     *zap.Logger
	state      *State
	initialize bool
	reset      bool
	testSet    any
}

// Option defines a functional option for configuring the Optimizer
type Option func(*options)

// WithRecorder sets the recorder that receives scores and diagnostics
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithState warm-starts the optimizer from a previous state
func WithState(s *State) Option {
	return func(o *options) {
		o.state = s
	}
}

// WithoutInitialize skips Model.Initialize at the start of every Fit
func WithoutInitialize() Option {
	return func(o *options) {
		o.initialize = false
	}
}

// WithResetBlocks discards the per-sample blocks at the start of every Fit and
// restarts the raw iterate from the exposed weights
func WithResetBlocks() Option {
	return func(o *options) {
		o.reset = true
	}
}

type testSet[X, Y any] struct {
	xs []X
	ys []Y
}

// WithTestSet adds a held-out set that is scored alongside the training set
func WithTestSet[X, Y any](xs []X, ys []Y) Option {
	return func(o *options) {
		o.testSet = testSet[X, Y]{xs: xs, ys: ys}
	}
}

// NewOptimizer creates a new optimizer for model. The configuration is validated here.
func NewOptimizer[X, Y any](model Model[X, Y], cfg Config, opts ...Option) (*Optimizer[X, Y], error) {
	if model == nil {
		return nil, errors.New("model must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SampleMethod, _ = ParseSampleMethod(string(cfg.SampleMethod))

	o := options{initialize: true}
	for _, opt := range opts {
		opt(&o)
	}

	opt := &Optimizer[X, Y]{
		model:      model,
		cfg:        cfg,
		recorder:   o.recorder,
		logger:     o.logger,
		initialize: o.initialize,
		reset:      o.reset,
		state:      o.state,
		rng:        newRand(cfg.RandomState),
	}
	if opt.recorder == nil {
		opt.recorder = nopRecorder{}
	}
	if opt.logger == nil {
		opt.logger = zap.NewNop()
	}
	if o.testSet != nil {
		ts, ok := o.testSet.(testSet[X, Y])
		if !ok {
			return nil, fmt.Errorf("test set type %T does not match model", o.testSet)
		}
		if len(ts.xs) != len(ts.ys) {
			return nil, fmt.Errorf("%w: test set has %d inputs and %d labels", ErrDimensionMismatch, len(ts.xs), len(ts.ys))
		}
		opt.testX, opt.testY = ts.xs, ts.ys
	}
	return opt, nil
}

// Config returns the configuration the optimizer was built with.
func (o *Optimizer[X, Y]) Config() Config {
	return o.cfg
}

// State returns the current state, or nil before the first Fit.
func (o *Optimizer[X, Y]) State() *State {
	return o.state
}

// Weights returns the exposed weight vector, or nil before the first Fit.
func (o *Optimizer[X, Y]) Weights() *mat.VecDense {
	if o.state == nil {
		return nil
	}
	return o.state.W
}

// Loss returns the exposed loss term.
func (o *Optimizer[X, Y]) Loss() float64 {
	if o.state == nil {
		return 0
	}
	return o.state.L
}

// Fit trains on xs/ys. Cancelling ctx stops training at the next sample boundary and
// returns a Result with StatusStopped and a nil error; the state reflects every
// sample processed so far. Model and recorder errors are returned as is.
//
// Block state carries over between calls when the sample count is unchanged, so
// calling Fit again on the same data continues training. Blocks are only tied to
// sample positions: pass WithResetBlocks when xs/ys differ from the previous call.
// A test set is checked with the model's Validator, if any, before training starts.
func (o *Optimizer[X, Y]) Fit(ctx context.Context, xs []X, ys []Y) (Result, error) {
	if len(xs) == 0 {
		return Result{}, ErrEmptyDataset
	}
	if len(xs) != len(ys) {
		return Result{}, fmt.Errorf("%w: %d inputs and %d labels", ErrDimensionMismatch, len(xs), len(ys))
	}
	if o.initialize {
		if err := o.model.Initialize(xs, ys); err != nil {
			return Result{}, err
		}
	}

	dim := o.model.SizeJointFeature()
	if o.state == nil {
		o.state = NewState(dim)
	} else if o.state.Dim() != dim {
		return Result{}, fmt.Errorf("%w: state has dimension %d, model %d", ErrDimensionMismatch, o.state.Dim(), dim)
	}
	if len(o.testX) > 0 {
		if err := validate(o.model, o.testX, o.testY); err != nil {
			return Result{}, fmt.Errorf("test set: %w", err)
		}
	}
	if o.reset || !o.state.hasBlocks(len(xs)) {
		o.state.resetBlocks(len(xs), func(i int) *mat.VecDense {
			return o.model.OutputEmbedding(ys[i])
		})
	}

	return o.frankWolfeBC(ctx, xs, ys)
}

func (o *Optimizer[X, Y]) frankWolfeBC(ctx context.Context, xs []X, ys []Y) (Result, error) {
	s := o.state
	n := float64(len(xs))
	lambda := o.cfg.Reg
	ws := mat.NewVecDense(s.Dim(), nil)
	wDiff := mat.NewVecDense(s.Dim(), nil)

	res := Result{Status: StatusCompleted}
	for epoch := range o.cfg.Epochs {
		o.order = o.cfg.SampleMethod.order(o.rng, len(xs), o.order)
		for j, i := range o.order {
			if ctx.Err() != nil {
				res.Status = StatusStopped
				res.Updates = s.K
				o.logger.Info("training stopped",
					zap.Int("epoch", epoch),
					zap.Int("sample", j),
					zap.Int("updates", s.K))
				return res, nil
			}

			yHat, err := o.model.LossAugmentedInference(xs[i], ys[i], s.RawW)
			if err != nil {
				return res, err
			}
			ws.SubVec(o.model.JointFeature(xs[i], ys[i]), o.model.JointFeature(xs[i], yHat))
			ws.ScaleVec(1/(lambda*n), ws)
			ls := o.model.Loss(ys[i], yHat) / n

			var gamma float64
			if o.cfg.LineSearch {
				wDiff.SubVec(s.WMat[i], ws)
				gamma = lineSearchStep(wDiff, s.RawW, lambda*n*(s.LMat[i]-ls))
			} else {
				gamma = scheduleStep(len(xs), s.K)
			}

			// Primal block, kept in subtract/blend/add order so RawW stays Σ WMat.
			s.RawW.SubVec(s.RawW, s.WMat[i])
			blend(s.WMat[i], gamma, ws)
			s.RawW.AddVec(s.RawW, s.WMat[i])

			s.RawL -= s.LMat[i]
			s.LMat[i] = (1-gamma)*s.LMat[i] + gamma*ls
			s.RawL += s.LMat[i]

			blend(s.Mu[i], gamma, o.model.OutputEmbedding(yHat))

			if o.cfg.Averaging {
				rho := averagingWeight(s.K)
				blend(s.W, rho, s.RawW)
				s.L = (1-rho)*s.L + rho*s.RawL
			} else {
				s.W.CopyVec(s.RawW)
				s.L = s.RawL
			}
			s.K++

			if o.cfg.VerboseSamples > 0 && j%o.cfg.VerboseSamples == 0 {
				if err := o.recordBatch(epoch, j, xs, ys); err != nil {
					return res, err
				}
			}
		}
		res.Epochs = epoch + 1
		res.Updates = s.K

		if every := o.cfg.CheckDualEvery; every != 0 && epoch%abs(every) == 0 {
			if err := o.recordEpoch(epoch, xs, ys); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// lineSearchStep returns the clamped closed-form step along wDiff = WMat[i] - ws.
// scaledLossDiff is λN(LMat[i] - ls).
func lineSearchStep(wDiff, w mat.Vector, scaledLossDiff float64) float64 {
	gamma := (mat.Dot(wDiff, w) - scaledLossDiff) / (mat.Dot(wDiff, wDiff) + lineSearchEps)
	return math.Max(0, math.Min(1, gamma))
}

// scheduleStep is the fixed 2N/(k+2N) step.
func scheduleStep(n, k int) float64 {
	return 2 * float64(n) / (float64(k) + 2*float64(n))
}

// averagingWeight is ρ = 2/(k+2).
func averagingWeight(k int) float64 {
	return 2 / (float64(k) + 2)
}

// blend sets dst = (1-t)·dst + t·src.
func blend(dst *mat.VecDense, t float64, src mat.Vector) {
	dst.ScaleVec(1-t, dst)
	dst.AddScaledVec(dst, t, src)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
