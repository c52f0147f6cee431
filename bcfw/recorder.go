package bcfw

// BatchScores are recorded every VerboseSamples samples inside an epoch.
type BatchScores struct {
	Epoch      int      `json:"epoch"`
	Sample     int      `json:"sample"`
	Iteration  int      `json:"iteration"` // global update count k
	TrainError float64  `json:"train_error"`
	TestError  *float64 `json:"test_error,omitempty"`
}

// EpochScores are recorded every CheckDualEvery epochs.
type EpochScores struct {
	Iteration  int      `json:"iteration"` // epoch index
	Updates    int      `json:"updates"`
	TrainError float64  `json:"train_error"`
	TestError  *float64 `json:"test_error,omitempty"`
	Gap        *Gap     `json:"gap,omitempty"`
}

// Gap holds the convergence diagnostics of one duality gap evaluation.
type Gap struct {
	DualObjective   float64 `json:"dual_objective"`
	DualGap         float64 `json:"dual_gap"`
	PrimalObjective float64 `json:"primal_objective"`
}

// Recorder receives training scores.
type Recorder interface {
	RecordBatch(s BatchScores) error
	Record(s EpochScores) error
	// Save persists everything recorded so far.
	Save() error
}

type nopRecorder struct{}

func (nopRecorder) RecordBatch(BatchScores) error { return nil }
func (nopRecorder) Record(EpochScores) error      { return nil }
func (nopRecorder) Save() error                   { return nil }
