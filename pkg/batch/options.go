// Package batch runs the fractal analysis over patient folders: the fractal
// dimension of each segmentation and the lacunarity of every imaging
// modality masked by that segmentation.
//
// A patient folder holds one segmentation volume named "*_seg.<ext>" and one
// volume per modality named "*_<modality>.<ext>", where <ext> is any FVOL
// extension understood by package volumeio. A dataset folder holds one
// patient folder per patient.
package batch

import (
	"fmt"
	"strings"

	"fracnd/pkg/fractal"
	"fracnd/pkg/report"
)

// DefaultModalities are the modalities analyzed when none are configured.
var DefaultModalities = []string{"t1", "t1ce", "t2", "flair"}

// ResultsFileName is the CSV written into the output folder.
const ResultsFileName = "fractal_analysis_results.csv"

// Options controls a batch run.
type Options struct {
	// Modalities lists the modality suffixes analyzed for lacunarity
	Modalities []string `yaml:"modalities" toml:"modalities"`

	// SubsampleIntensity is the window keep probability for the one-hot
	// intensity volumes, which are much larger than the segmentations
	SubsampleIntensity float64 `yaml:"subsample_intensity" toml:"subsample_intensity"`

	// IntensityLevels is the number of greyscale levels before one-hot expansion
	IntensityLevels int `yaml:"intensity_levels" toml:"intensity_levels"`

	// SavePlots renders FD and lacunarity plots per analysis
	SavePlots bool `yaml:"save_plots" toml:"save_plots"`

	// PlotFormat is png or jpeg
	PlotFormat string `yaml:"plot_format" toml:"plot_format"`

	// Confidence is the confidence level of the plotted bands, in percent
	Confidence float64 `yaml:"confidence" toml:"confidence"`

	// SaveIntermediate rewrites the CSV after every patient
	SaveIntermediate bool `yaml:"save_intermediate" toml:"save_intermediate"`

	// SkipUnchanged skips patients whose segmentation fingerprint matches the
	// one recorded by a previous run
	SkipUnchanged bool `yaml:"skip_unchanged" toml:"skip_unchanged"`

	// SavePreviews writes mid-plane JPEG slices of each cropped segmentation
	SavePreviews bool `yaml:"save_previews" toml:"save_previews"`

	// StartFrom skips the first StartFrom patients of the sorted dataset
	StartFrom int `yaml:"-" toml:"-"`
}

// DefaultOptions returns the batch defaults.
func DefaultOptions() Options {
	return Options{
		Modalities:         append([]string(nil), DefaultModalities...),
		SubsampleIntensity: 0.01,
		IntensityLevels:    255,
		SavePlots:          true,
		PlotFormat:         string(report.FormatPNG),
		Confidence:         report.DefaultConfidence,
		SaveIntermediate:   true,
	}
}

// DefaultFractalConfig returns the estimator settings used for patient
// analysis: 100 scale samples with a stride of 2 and no subsampling.
func DefaultFractalConfig() fractal.Config {
	cfg := fractal.DefaultConfig()
	cfg.NSamples = 100
	cfg.Stride = 2
	return cfg
}

// Validate checks the options for errors.
func (o Options) Validate() error {
	for _, m := range o.Modalities {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("modality names must not be empty")
		}
		if m == SegmentationSuffix {
			return fmt.Errorf("modality %q collides with the segmentation suffix", m)
		}
	}
	if o.SubsampleIntensity <= 0 || o.SubsampleIntensity > 1 {
		return fmt.Errorf("intensity subsample rate must be in (0, 1], got %g", o.SubsampleIntensity)
	}
	if o.IntensityLevels < 1 {
		return fmt.Errorf("intensity levels must be positive, got %d", o.IntensityLevels)
	}
	if _, err := report.ParseFormat(o.PlotFormat); err != nil {
		return err
	}
	if o.Confidence <= 0 || o.Confidence >= 100 {
		return fmt.Errorf("confidence must be in (0, 100), got %g", o.Confidence)
	}
	if o.StartFrom < 0 {
		return fmt.Errorf("start-from index must be non-negative, got %d", o.StartFrom)
	}
	return nil
}
