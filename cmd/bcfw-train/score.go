package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/n0madic/go-structured-svm/bcfw"
	"github.com/n0madic/go-structured-svm/internal/dataset"
	"github.com/n0madic/go-structured-svm/multiclass"
)

var (
	scoreStatePath string
	scoreDataPath  string
	scoreReg       float64
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a saved model on a CSV dataset",
	Long: `Load an optimizer state written by "train --state" and report the mean
loss and the duality gap on a CSV dataset.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadState(scoreStatePath)
		if err != nil {
			return err
		}
		if state == nil {
			return fmt.Errorf("state file %s not found", scoreStatePath)
		}
		data, err := dataset.LoadCSV(scoreDataPath)
		if err != nil {
			return err
		}

		features := len(data.X[0])
		if state.Dim()%features != 0 {
			return fmt.Errorf("%w: state dimension %d is not a multiple of %d features", bcfw.ErrDimensionMismatch, state.Dim(), features)
		}
		model, err := multiclass.New(features, state.Dim()/features)
		if err != nil {
			return err
		}
		if err := model.Initialize(data.X, data.Y); err != nil {
			return err
		}

		cfg := bcfw.DefaultConfig()
		cfg.Epochs = 0
		cfg.Reg = scoreReg
		opt, err := bcfw.NewOptimizer[[]float64, int](model, cfg, bcfw.WithState(state), bcfw.WithoutInitialize())
		if err != nil {
			return err
		}
		loss, err := opt.Score(data.X, data.Y)
		if err != nil {
			return err
		}
		gap, err := opt.DualityGap(data.X, data.Y)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "samples %d | mean loss %.4f | dual %.6f | gap %.6f | primal %.6f\n",
			data.Len(), loss, gap.DualObjective, gap.DualGap, gap.PrimalObjective)
		return nil
	},
}

func init() {
	f := scoreCmd.Flags()
	f.StringVar(&scoreStatePath, "state", "", "optimizer state file")
	f.StringVar(&scoreDataPath, "data", "", "CSV dataset")
	f.Float64Var(&scoreReg, "reg", 1.0, "regularization strength used in training")
	_ = scoreCmd.MarkFlagRequired("state")
	_ = scoreCmd.MarkFlagRequired("data")
}
