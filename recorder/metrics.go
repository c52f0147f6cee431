package recorder

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/n0madic/go-structured-svm/bcfw"
)

// Metrics publishes the latest scores as Prometheus gauges.
type Metrics struct {
	trainError      prometheus.Gauge
	testError       prometheus.Gauge
	dualObjective   prometheus.Gauge
	dualGap         prometheus.Gauge
	primalObjective prometheus.Gauge
	epoch           prometheus.Gauge
	updates         prometheus.Gauge
	saves           prometheus.Counter
}

// NewMetrics creates the gauges and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	m := &Metrics{
		trainError:      gauge("train_error", "Mean task loss on the training set"),
		testError:       gauge("test_error", "Mean task loss on the test set"),
		dualObjective:   gauge("dual_objective", "Dual objective at the last gap check"),
		dualGap:         gauge("dual_gap", "Frank-Wolfe duality gap at the last gap check"),
		primalObjective: gauge("primal_objective", "Primal objective at the last gap check"),
		epoch:           gauge("epoch", "Last recorded epoch"),
		updates:         gauge("updates", "Block updates performed"),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_saves_total",
			Help:      "Number of times results were saved",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.trainError, m.testError, m.dualObjective, m.dualGap,
		m.primalObjective, m.epoch, m.updates, m.saves,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordBatch updates the error gauges and the update count.
func (m *Metrics) RecordBatch(s bcfw.BatchScores) error {
	m.trainError.Set(s.TrainError)
	if s.TestError != nil {
		m.testError.Set(*s.TestError)
	}
	m.updates.Set(float64(s.Iteration))
	return nil
}

// Record updates every gauge; the gap gauges keep their value when the gap was not computed.
func (m *Metrics) Record(s bcfw.EpochScores) error {
	m.trainError.Set(s.TrainError)
	if s.TestError != nil {
		m.testError.Set(*s.TestError)
	}
	if s.Gap != nil {
		m.dualObjective.Set(s.Gap.DualObjective)
		m.dualGap.Set(s.Gap.DualGap)
		m.primalObjective.Set(s.Gap.PrimalObjective)
	}
	m.epoch.Set(float64(s.Iteration))
	m.updates.Set(float64(s.Updates))
	return nil
}

// Save counts the save; gauges need no persistence.
func (m *Metrics) Save() error {
	m.saves.Inc()
	return nil
}
