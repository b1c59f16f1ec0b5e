package config

import "os"

// Flag names shared by the environment overrides and the command line.
const (
	FlagMaxBoxSize         = "max-box-size"
	FlagMinBoxSize         = "min-box-size"
	FlagStride             = "stride"
	FlagDisjoint           = "disjoint"
	FlagSamples            = "n-samples"
	FlagSubsample          = "subsample"
	FlagHistogram          = "histogram"
	FlagBins               = "bins"
	FlagWorkers            = "workers"
	FlagSeed               = "seed"
	FlagModalities         = "modalities"
	FlagSubsampleIntensity = "subsample-intensity"
	FlagIntensityLevels    = "intensity-levels"
	FlagPlots              = "plots"
	FlagPlotFormat         = "plot-format"
	FlagConfidence         = "confidence"
	FlagSaveIntermediate   = "save-intermediate"
	FlagSkipUnchanged      = "skip-unchanged"
	FlagPreviews           = "previews"
	FlagVerbose            = "verbose"
	FlagQuiet              = "quiet"
)

// ApplyEnvConfig applies configuration from environment variables (FRACND_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	f, b := &cfg.Fractal, &cfg.Batch

	ints := []struct {
		flag, env string
		dst       *int
	}{
		{FlagMaxBoxSize, "FRACND_MAX_BOX_SIZE", &f.MaxBoxSize},
		{FlagMinBoxSize, "FRACND_MIN_BOX_SIZE", &f.MinBoxSize},
		{FlagStride, "FRACND_STRIDE", &f.Stride},
		{FlagSamples, "FRACND_N_SAMPLES", &f.NSamples},
		{FlagWorkers, "FRACND_WORKERS", &f.Workers},
		{FlagIntensityLevels, "FRACND_INTENSITY_LEVELS", &b.IntensityLevels},
	}
	for _, v := range ints {
		if err := s.setIntFromString(v.flag, os.Getenv(v.env), v.dst); err != nil {
			return err
		}
	}

	floats := []struct {
		flag, env string
		dst       *float64
	}{
		{FlagSubsample, "FRACND_SUBSAMPLE", &f.Subsample},
		{FlagSubsampleIntensity, "FRACND_SUBSAMPLE_INTENSITY", &b.SubsampleIntensity},
		{FlagConfidence, "FRACND_CONFIDENCE", &b.Confidence},
	}
	for _, v := range floats {
		if err := s.setFloatFromString(v.flag, os.Getenv(v.env), v.dst); err != nil {
			return err
		}
	}

	if err := s.setUintFromString(FlagSeed, os.Getenv("FRACND_SEED"), &f.Seed); err != nil {
		return err
	}

	s.setString(FlagBins, os.Getenv("FRACND_BINS"), &f.Bins)
	s.setString(FlagPlotFormat, os.Getenv("FRACND_PLOT_FORMAT"), &b.PlotFormat)
	s.setStrings(FlagModalities, os.Getenv("FRACND_MODALITIES"), &b.Modalities)

	s.setBoolFromString(FlagDisjoint, os.Getenv("FRACND_DISJOINT"), &f.Disjoint)
	s.setBoolFromString(FlagHistogram, os.Getenv("FRACND_HISTOGRAM"), &f.Histogram)
	s.setBoolFromString(FlagPlots, os.Getenv("FRACND_SAVE_PLOTS"), &b.SavePlots)
	s.setBoolFromString(FlagSaveIntermediate, os.Getenv("FRACND_SAVE_INTERMEDIATE"), &b.SaveIntermediate)
	s.setBoolFromString(FlagSkipUnchanged, os.Getenv("FRACND_SKIP_UNCHANGED"), &b.SkipUnchanged)
	s.setBoolFromString(FlagPreviews, os.Getenv("FRACND_SAVE_PREVIEWS"), &b.SavePreviews)
	s.setBoolFromString(FlagVerbose, os.Getenv("FRACND_VERBOSE"), &cfg.Output.Verbose)
	s.setBoolFromString(FlagQuiet, os.Getenv("FRACND_QUIET"), &cfg.Output.Quiet)

	return nil
}
