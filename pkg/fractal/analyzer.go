// Package fractal estimates the fractal dimension and lacunarity of
// N-dimensional volumes with multi-scale sliding-window box counting.
//
// The estimator sweeps a geometric sequence of window sizes from the largest
// power of two that fits the volume down to a minimum size. At each scale it
// slides a hypercubic window over the volume, counts the windows that touch
// non-zero structure and records the mass inside them. The counts are
// normalized to the equivalent disjoint box count and fitted in log-log space
// to give the fractal dimension FD; the mass distribution gives a lacunarity
// value per scale whose decay exponent is reported as LD.
package fractal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"fracnd/internal/models"
)

// Config enumerates every option of the estimator. Start from DefaultConfig;
// the zero value is not usable.
type Config struct {
	// MaxBoxSize is the log2 exponent of the largest window; 0 selects
	// floor(log2(min(shape)))
	MaxBoxSize int `yaml:"max_box_size" toml:"max_box_size"`

	// MinBoxSize is the log2 exponent of the smallest window
	MinBoxSize int `yaml:"min_box_size" toml:"min_box_size"`

	// Stride is the step between window origins in sliding mode
	Stride int `yaml:"stride" toml:"stride"`

	// Disjoint switches to classic box counting (stride = scale)
	Disjoint bool `yaml:"disjoint" toml:"disjoint"`

	// NSamples is the number of exponents sampled between max and min
	NSamples int `yaml:"n_samples" toml:"n_samples"`

	// Subsample is the probability of evaluating a window; 0 disables
	// subsampling
	Subsample float64 `yaml:"subsample" toml:"subsample"`

	// Histogram estimates the mass distribution with a histogram instead of
	// the unique normalized masses
	Histogram bool `yaml:"histogram" toml:"histogram"`

	// Bins is the histogram bin rule or an explicit bin count
	Bins string `yaml:"bins" toml:"bins"`

	// Workers is the number of goroutines evaluating windows
	Workers int `yaml:"workers" toml:"workers"`

	// Seed initializes the subsampling random source
	Seed uint64 `yaml:"seed" toml:"seed"`
}

// DefaultConfig returns the estimator defaults.
func DefaultConfig() Config {
	return Config{
		MaxBoxSize: 0,
		MinBoxSize: 1,
		Stride:     1,
		NSamples:   20,
		Bins:       BinsAuto,
		Workers:    runtime.NumCPU(),
		Seed:       1,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.MaxBoxSize < 0 {
		return fmt.Errorf("max box size exponent must be non-negative, got %d", c.MaxBoxSize)
	}
	if c.MinBoxSize < 0 {
		return fmt.Errorf("min box size exponent must be non-negative, got %d", c.MinBoxSize)
	}
	if c.MaxBoxSize > 0 && c.MaxBoxSize < c.MinBoxSize {
		return fmt.Errorf("max box size exponent %d is below min %d", c.MaxBoxSize, c.MinBoxSize)
	}
	if !c.Disjoint && c.Stride < 1 {
		return fmt.Errorf("stride must be at least 1, got %d", c.Stride)
	}
	if c.NSamples < 1 {
		return fmt.Errorf("number of samples must be positive, got %d", c.NSamples)
	}
	if c.Subsample < 0 || c.Subsample > 1 {
		return fmt.Errorf("subsample rate must be in (0, 1], got %g", c.Subsample)
	}
	if c.Histogram {
		if err := ValidBins(c.Bins); err != nil {
			return err
		}
	}
	return nil
}

// ProgressFunc is called after every scale with the number of finished
// scales, the total and the scale just measured.
type ProgressFunc func(done, total, scale int)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for per-scale diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(a *Analyzer) { a.progress = fn }
}

// Analyzer runs the scale sweep. It holds configuration only, so one
// Analyzer can serve concurrent Analyze calls.
type Analyzer struct {
	cfg      Config
	logger   zerolog.Logger
	progress ProgressFunc
}

// NewAnalyzer validates cfg and returns an Analyzer.
func NewAnalyzer(cfg Config, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fractal config: %w", err)
	}
	a := &Analyzer{cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// Analyze is a shorthand for NewAnalyzer(cfg).Analyze(ctx, vol).
func Analyze(ctx context.Context, vol *models.Volume, cfg Config) (*AnalysisResult, error) {
	a, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, vol)
}

// Scales returns the window sizes the sweep would measure for vol.
func (a *Analyzer) Scales(vol *models.Volume) ([]int, error) {
	maxExp := a.cfg.MaxBoxSize
	if maxExp == 0 {
		maxExp = DefaultMaxExponent(vol.MinExtent())
	}
	minExp := a.cfg.MinBoxSize
	if minExp > maxExp {
		return nil, fmt.Errorf("%w: smallest axis %d cannot hold a box of 2^%d",
			ErrScaleTooLarge, vol.MinExtent(), minExp)
	}
	return GenerateScales(maxExp, minExp, a.cfg.NSamples)
}

// Analyze measures box counts and lacunarity at every scale and fits FD and
// LD. Cancellation is checked between scales and inside the window pool.
func (a *Analyzer) Analyze(ctx context.Context, vol *models.Volume) (*AnalysisResult, error) {
	if vol == nil || vol.Len() == 0 {
		return nil, fmt.Errorf("volume has no voxels")
	}
	if vol.IsZero() {
		return nil, &EmptyVolumeError{Shape: append([]int(nil), vol.Shape...)}
	}
	if vol.HasNegative() {
		return nil, ErrNegativeValues
	}

	scales, err := a.Scales(vol)
	if err != nil {
		return nil, err
	}

	scanner := &Scanner{
		Workers:   a.cfg.Workers,
		Subsample: a.cfg.Subsample,
		Histogram: a.cfg.Histogram,
		Bins:      a.cfg.Bins,
		Logger:    a.logger,
	}
	if a.cfg.Subsample > 0 {
		scanner.Source = rand.NewSource(a.cfg.Seed)
	}

	a.logger.Debug().
		Ints("shape", vol.Shape).
		Ints("scales", scales).
		Int("stride", a.cfg.Stride).
		Bool("disjoint", a.cfg.Disjoint).
		Msg("starting scale sweep")

	result := &AnalysisResult{
		Shape:        append([]int(nil), vol.Shape...),
		Scales:       make([]int, 0, len(scales)),
		Counts:       make([]int, 0, len(scales)),
		Lacunarities: make([]float64, 0, len(scales)),
	}

	for i, scale := range scales {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		step := a.cfg.Stride
		if a.cfg.Disjoint {
			step = scale
		}

		scan, err := scanner.Scan(ctx, vol, scale, step)
		if err != nil {
			return nil, fmt.Errorf("scale %d: %w", scale, err)
		}

		result.Scales = append(result.Scales, scale)
		result.Counts = append(result.Counts, scan.Count)
		result.Lacunarities = append(result.Lacunarities, scan.Lacunarity)

		if a.progress != nil {
			a.progress(i+1, len(scales), scale)
		}
	}

	result.FDFit, err = FitPowerLaw("FD", result.Scales, result.CountsFloat(), true)
	if err != nil {
		return nil, err
	}
	result.FD = result.FDFit.Exponent

	// A flat spectrum collapses to one distinct value and leaves LD undefined.
	result.LDFit, err = FitPowerLaw("LD", result.Scales, result.Lacunarities, false)
	switch {
	case errors.Is(err, ErrInsufficientData):
		result.LD = math.NaN()
		result.LDErr = err
		a.logger.Warn().Err(err).Msg("lacunarity decay not fitted")
	case err != nil:
		return nil, err
	default:
		result.LD = result.LDFit.Exponent
	}

	a.logger.Debug().
		Float64("fd", result.FD).
		Float64("ld", result.LD).
		Msg("scale sweep finished")

	return result, nil
}
