package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n0madic/go-structured-svm/bcfw"
	"github.com/n0madic/go-structured-svm/internal/config"
	"github.com/n0madic/go-structured-svm/internal/dataset"
	"github.com/n0madic/go-structured-svm/internal/logging"
	"github.com/n0madic/go-structured-svm/multiclass"
	"github.com/n0madic/go-structured-svm/recorder"
)

var (
	configPath     string
	epochs         int
	reg            float64
	lineSearch     bool
	verboseSamples int
	checkDualEvery int
	sampleMethod   string
	randomState    int64
	averaging      bool
	trainPath      string
	testPath       string
	resultsPath    string
	statePath      string
	metricsAddr    string
	logLevel       string
	logFile        string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a model",
	Long: `Train a multiclass structured SVM.

Examples:
  # synthetic data with defaults
  bcfw-train train

  # CSV data, fixed step schedule, resume from and save to state.gob
  bcfw-train train --train train.csv --test test.csv --line-search=false --state state.gob

  # settings from a YAML file, metrics on :9090
  bcfw-train train --config train.yaml --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runTrain(ctx, cfg, logger)
	},
}

func init() {
	f := trainCmd.Flags()
	def := config.Default()
	f.StringVarP(&configPath, "config", "c", "", "YAML config file")
	f.IntVar(&epochs, "epochs", def.Train.Epochs, "maximum number of epochs")
	f.Float64Var(&reg, "reg", def.Train.Reg, "regularization strength (> 0)")
	f.BoolVar(&lineSearch, "line-search", def.Train.LineSearch, "exact line search instead of the 2N/(k+2N) schedule")
	f.IntVar(&verboseSamples, "verbose-samples", def.Train.VerboseSamples, "score every N samples inside an epoch (<= 0 disables)")
	f.IntVar(&checkDualEvery, "check-dual-every", def.Train.CheckDualEvery, "epoch cadence for the duality gap (0 disables, negative logs scores only)")
	f.StringVar(&sampleMethod, "sample-method", string(def.Train.SampleMethod), "permutation (perm) or random-with-replacement (rnd)")
	f.Int64Var(&randomState, "random-state", def.Train.RandomState, "random seed (0 seeds from the clock)")
	f.BoolVar(&averaging, "averaging", def.Train.Averaging, "expose the weighted average of the iterates")
	f.StringVar(&trainPath, "train", "", "training CSV (synthetic data when empty)")
	f.StringVar(&testPath, "test", "", "test CSV")
	f.StringVar(&resultsPath, "results", "", "JSON results file")
	f.StringVar(&statePath, "state", "", "optimizer state file, loaded if present and saved after training")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.StringVar(&logLevel, "log-level", def.Log.Level, "log level")
	f.StringVar(&logFile, "log-file", "", "rotating JSON log file")
}

// loadConfig reads the config file, if any, and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command) (config.File, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return config.File{}, err
		}
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("epochs", func() { cfg.Train.Epochs = epochs })
	set("reg", func() { cfg.Train.Reg = reg })
	set("line-search", func() { cfg.Train.LineSearch = lineSearch })
	set("verbose-samples", func() { cfg.Train.VerboseSamples = verboseSamples })
	set("check-dual-every", func() { cfg.Train.CheckDualEvery = checkDualEvery })
	set("sample-method", func() { cfg.Train.SampleMethod = bcfw.SampleMethod(sampleMethod) })
	set("random-state", func() { cfg.Train.RandomState = randomState })
	set("averaging", func() { cfg.Train.Averaging = averaging })
	set("train", func() { cfg.Data.Train = trainPath })
	set("test", func() { cfg.Data.Test = testPath })
	set("results", func() { cfg.Results.Path = resultsPath })
	set("state", func() { cfg.Results.StatePath = statePath })
	set("metrics-addr", func() { cfg.Results.MetricsAddr = metricsAddr })
	set("log-level", func() { cfg.Log.Level = logLevel })
	set("log-file", func() { cfg.Log.File = logFile })

	if err := cfg.Validate(); err != nil {
		return config.File{}, err
	}
	return cfg, nil
}

// loadData returns the training and test sets described by cfg.
func loadData(cfg config.Data) (train, test dataset.Dataset, err error) {
	if cfg.Train == "" {
		all := dataset.Blobs(cfg.Samples, cfg.Features, cfg.Classes, cfg.Spread, uint64(cfg.Seed))
		train, test = dataset.Split(all, cfg.TestRatio, uint64(cfg.Seed))
		return train, test, nil
	}
	if train, err = dataset.LoadCSV(cfg.Train); err != nil {
		return train, test, err
	}
	if cfg.Test != "" {
		if test, err = dataset.LoadCSV(cfg.Test); err != nil {
			return train, test, err
		}
	} else if cfg.TestRatio > 0 {
		train, test = dataset.Split(train, cfg.TestRatio, uint64(cfg.Seed))
	}
	return train, test, nil
}

func loadState(path string) (*bcfw.State, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := bcfw.LoadState(f)
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", path, err)
	}
	return s, nil
}

func saveState(path string, s *bcfw.State) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := s.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func runTrain(ctx context.Context, cfg config.File, logger *zap.Logger) error {
	train, test, err := loadData(cfg.Data)
	if err != nil {
		return err
	}
	logger.Info("data loaded", zap.Int("train", train.Len()), zap.Int("test", test.Len()))

	model, err := multiclass.New(0, 0)
	if err != nil {
		return err
	}

	results := recorder.NewResults(cfg.Results.Path)
	recorders := recorder.Multi{results}
	if cfg.Results.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics, err := recorder.NewMetrics(reg, "bcfw")
		if err != nil {
			return err
		}
		recorders = append(recorders, metrics)
		srv := serveMetrics(cfg.Results.MetricsAddr, reg, logger)
		defer srv.Close()
	}

	opts := []bcfw.Option{
		bcfw.WithRecorder(recorders),
		bcfw.WithLogger(logger.Named("bcfw")),
	}
	if test.Len() > 0 {
		opts = append(opts, bcfw.WithTestSet(test.X, test.Y))
	}
	state, err := loadState(cfg.Results.StatePath)
	if err != nil {
		return err
	}
	if state != nil {
		logger.Info("resuming", zap.String("state", cfg.Results.StatePath), zap.Int("updates", state.K))
		opts = append(opts, bcfw.WithState(state))
	}

	opt, err := bcfw.NewOptimizer[[]float64, int](model, cfg.Train, opts...)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := opt.Fit(ctx, train.X, train.Y)
	if err != nil {
		return err
	}
	logger.Info("training finished",
		zap.Stringer("status", res.Status),
		zap.Int("epochs", res.Epochs),
		zap.Int("updates", res.Updates),
		zap.Duration("elapsed", time.Since(start)))

	trainErr, err := opt.Score(train.X, train.Y)
	if err != nil {
		return err
	}
	fields := []zap.Field{zap.Float64("train_error", trainErr)}
	if test.Len() > 0 {
		testErr, err := opt.Score(test.X, test.Y)
		if err != nil {
			return err
		}
		fields = append(fields, zap.Float64("test_error", testErr))
	}
	logger.Info("final scores", fields...)

	if err := results.Save(); err != nil {
		return err
	}
	if cfg.Results.StatePath != "" {
		if err := saveState(cfg.Results.StatePath, opt.State()); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		logger.Info("state saved", zap.String("path", cfg.Results.StatePath))
	}
	return nil
}
