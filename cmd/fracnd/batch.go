package main

import (
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"fracnd/pkg/batch"
)

func (a *app) newRunner() (*batch.Runner, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return batch.NewRunner(a.cfg.Fractal, a.cfg.Batch,
		batch.WithLogger(a.log),
		batch.WithProgress(func(done, total, scale int) {
			a.log.Debug().Int("scale", scale).Msgf("scale %d/%d", done, total)
		}),
	)
}

func (a *app) patientCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "patient <dir>",
		Short: "Analyze a single patient folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.newRunner()
			if err != nil {
				return err
			}

			plots := ""
			if a.cfg.Batch.SavePlots || a.cfg.Batch.SavePreviews {
				plots = filepath.Join(output, batch.PlotsDirName)
			}
			res, err := runner.AnalyzePatient(cmd.Context(), args[0], plots)
			if err != nil {
				return err
			}

			printPatient(res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output folder for plots")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func printPatient(res *batch.PatientResult) {
	seg := res.Segmentation.Result
	fmt.Printf("Patient %s\n", res.PatientID)
	fmt.Printf("  segmentation FD: %.4f\n", seg.FD)
	fmt.Printf("  segmentation LD: %s\n", formatLD(seg.LD))
	modalities := maps.Keys(res.Modalities)
	slices.Sort(modalities)
	for _, m := range modalities {
		mr := res.Modalities[m]
		if mr.Err != nil {
			fmt.Printf("  %s: failed: %v\n", m, mr.Err)
			continue
		}
		fmt.Printf("  %s LD: %s\n", m, formatLD(mr.LD()))
	}
}

func formatLD(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.4f", v)
}

func (a *app) datasetCommand() *cobra.Command {
	var (
		output     string
		startFrom  int
		watch      bool
		watchDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dataset <dir>",
		Short: "Analyze every patient folder of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Batch.StartFrom = startFrom
			runner, err := a.newRunner()
			if err != nil {
				return err
			}

			start := time.Now()
			sum, err := runner.AnalyzeDataset(cmd.Context(), args[0], output)
			if sum != nil {
				printSummary(sum, time.Since(start))
			}
			if err != nil {
				return err
			}

			if !watch {
				return nil
			}
			w := runner.NewWatcher(watchDelay)
			w.OnResult = func(res *batch.PatientResult, err error) {
				if err == nil {
					printPatient(res)
				}
			}
			return w.Watch(cmd.Context(), args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output folder for results and plots")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().IntVar(&startFrom, "start-from", 0, "patient index to start from (for resuming)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and analyze new patient folders as they appear")
	cmd.Flags().DurationVar(&watchDelay, "watch-delay", batch.DefaultWatchDelay, "quiet period before a new patient folder is analyzed")
	return cmd
}

func printSummary(sum *batch.Summary, elapsed time.Duration) {
	fmt.Printf("\nDataset analysis finished in %s\n", elapsed.Round(time.Second))
	fmt.Printf("  Run ID: %s\n", sum.RunID)
	fmt.Printf("  Total patients: %d\n", sum.Total)
	fmt.Printf("  Successful: %d\n", sum.Successful)
	fmt.Printf("  Failed: %d\n", sum.Failed)
	if sum.Skipped > 0 {
		fmt.Printf("  Skipped (unchanged): %d\n", sum.Skipped)
	}
	fmt.Printf("  Success rate: %.1f%%\n", sum.SuccessRate)
	fmt.Printf("  Results: %s\n", sum.ResultsFile)
	if sum.PlotsDir != "" {
		fmt.Printf("  Plots: %s\n", sum.PlotsDir)
	}
}
