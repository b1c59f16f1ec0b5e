package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fracnd/internal/models"
	"fracnd/pkg/fractal"
	"fracnd/pkg/report"
	"fracnd/pkg/volume"
	"fracnd/pkg/volumeio"
)

func (a *app) analyzeCommand() *cobra.Command {
	var (
		plotsDir string
		crop     bool
		binary   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <volume>",
		Short: "Analyze a single volume file and print FD and LD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			path := args[0]

			raw, err := volumeio.Load(path)
			if err != nil {
				return err
			}
			vol := volume.FirstFrame(raw)
			if crop {
				if vol, _, err = volume.CropToContent(vol); err != nil {
					return err
				}
			}
			if binary {
				if vol, err = volume.GreyscaleToBinary(vol, a.cfg.Batch.IntensityLevels); err != nil {
					return err
				}
			}

			res, err := a.analyzeVolume(cmd, vol)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "%s %v\n", filepath.Base(path), vol.Shape)
			if err := report.WriteSummary(os.Stdout, res, a.cfg.Batch.Confidence); err != nil {
				return err
			}

			if plotsDir == "" || !a.cfg.Batch.SavePlots {
				return nil
			}
			format, err := report.ParseFormat(a.cfg.Batch.PlotFormat)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(plotsDir, 0755); err != nil {
				return err
			}
			base := filepath.Join(plotsDir, volumeio.TrimExtension(filepath.Base(path)))
			if err := report.SaveFD(base+"_FD"+format.Ext(), res, a.cfg.Batch.Confidence); err != nil {
				return err
			}
			if err := report.SaveLacunarity(base+"_LD"+format.Ext(), res, a.cfg.Batch.Confidence); err != nil {
				return err
			}
			a.log.Info().Str("dir", plotsDir).Msg("plots saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&plotsDir, "plots-dir", "", "directory for FD and lacunarity plots")
	cmd.Flags().BoolVar(&crop, "crop", false, "crop to the bounding box of non-zero voxels first")
	cmd.Flags().BoolVar(&binary, "binary", false, "expand greyscale intensities into a binary level axis first")
	return cmd
}

func (a *app) analyzeVolume(cmd *cobra.Command, vol *models.Volume) (*fractal.AnalysisResult, error) {
	analyzer, err := fractal.NewAnalyzer(a.cfg.Fractal,
		fractal.WithLogger(a.log),
		fractal.WithProgress(func(done, total, scale int) {
			a.log.Debug().Int("scale", scale).Msgf("scale %d/%d", done, total)
		}),
	)
	if err != nil {
		return nil, err
	}
	return analyzer.Analyze(cmd.Context(), vol)
}
