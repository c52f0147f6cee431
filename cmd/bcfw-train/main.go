package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bcfw-train",
	Short: "Train multiclass structured SVMs with block-coordinate Frank-Wolfe",
	Long: `bcfw-train trains a multiclass structured SVM with the block-coordinate
Frank-Wolfe algorithm. Data comes from a CSV file (features followed by an
integer label) or from a synthetic Gaussian blob generator.

Press Ctrl+C during training to stop early; the partially trained state is
still scored and saved.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(trainCmd, scoreCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
