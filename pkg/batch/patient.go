package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"fracnd/internal/models"
	"fracnd/pkg/fractal"
	"fracnd/pkg/report"
	"fracnd/pkg/visualization"
	"fracnd/pkg/volume"
	"fracnd/pkg/volumeio"
)

// SegmentationSuffix is the file name suffix of segmentation volumes.
const SegmentationSuffix = "seg"

// largeBinaryBytes is the one-hot volume size above which the expansion is
// logged as a warning.
const largeBinaryBytes = 1 << 30

// ErrVolumeNotFound is returned when a patient folder lacks a volume.
var ErrVolumeNotFound = errors.New("volume not found")

// Registrar aligns a modality volume onto the segmentation grid. It is
// applied before the modality is cropped to the segmentation box.
type Registrar interface {
	Register(ctx context.Context, fixed, moving *models.Volume) (*models.Volume, error)
}

// SegmentationResult holds the fractal dimension of a cropped segmentation.
type SegmentationResult struct {
	File   string
	Bounds volume.Bounds
	Result *fractal.AnalysisResult
	Plots  []string

	// Previews lists mid-plane JPEG slices when previews are enabled
	Previews []string
}

// ModalityResult holds the lacunarity of one masked modality. Err is set when
// the modality failed; the other fields are then empty.
type ModalityResult struct {
	Modality string
	File     string
	Result   *fractal.AnalysisResult
	Plots    []string
	Err      error
}

// LD returns the lacunarity decay exponent, or NaN if the modality failed.
func (m *ModalityResult) LD() float64 {
	if m == nil || m.Err != nil || m.Result == nil {
		return nan
	}
	return m.Result.LD
}

// PatientResult is the outcome of AnalyzePatient.
type PatientResult struct {
	PatientID    string
	Dir          string
	Fingerprint  string
	Segmentation SegmentationResult

	// Modalities is keyed by modality name. Modalities without a volume in
	// the patient folder are absent.
	Modalities map[string]*ModalityResult
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithRegistrar sets the registration step applied to every modality.
func WithRegistrar(reg Registrar) Option {
	return func(r *Runner) { r.registrar = reg }
}

// WithProgress forwards per-scale progress of every analysis.
func WithProgress(fn fractal.ProgressFunc) Option {
	return func(r *Runner) { r.progress = fn }
}

// Runner analyzes patients and datasets with fixed settings.
type Runner struct {
	fractal   fractal.Config
	opts      Options
	format    report.Format
	logger    zerolog.Logger
	registrar Registrar
	progress  fractal.ProgressFunc
}

// NewRunner validates the settings and returns a Runner.
func NewRunner(fcfg fractal.Config, opts Options, options ...Option) (*Runner, error) {
	if err := fcfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fractal config: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch options: %w", err)
	}
	format, err := report.ParseFormat(opts.PlotFormat)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		fractal: fcfg,
		opts:    opts,
		format:  format,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Options returns the batch options of the runner.
func (r *Runner) Options() Options { return r.opts }

// FindVolume returns the volume in dir whose name, without extension, ends
// in "_<suffix>". Files are scanned in name order and the first match wins.
func FindVolume(dir, suffix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if !volumeio.IsVolumeFile(name) {
			continue
		}
		if strings.HasSuffix(volumeio.TrimExtension(name), "_"+suffix) {
			return filepath.Join(dir, name), nil
		}
	}
	return "", fmt.Errorf("%w: no *_%s volume in %s", ErrVolumeNotFound, suffix, dir)
}

// AnalyzePatient computes the segmentation FD and the lacunarity of every
// modality found in dir. Plots and previews go to plotsDir; an empty plotsDir
// disables both. A missing or unusable segmentation fails the patient, a
// failing modality only marks its own result.
func (r *Runner) AnalyzePatient(ctx context.Context, dir, plotsDir string) (*PatientResult, error) {
	id := filepath.Base(filepath.Clean(dir))
	logger := r.logger.With().Str("patient", id).Logger()

	segPath, err := FindVolume(dir, SegmentationSuffix)
	if err != nil {
		return nil, err
	}
	fingerprint, err := volumeio.Fingerprint(segPath)
	if err != nil {
		return nil, fmt.Errorf("fingerprint segmentation: %w", err)
	}

	res := &PatientResult{
		PatientID:   id,
		Dir:         dir,
		Fingerprint: fingerprint,
		Modalities:  make(map[string]*ModalityResult, len(r.opts.Modalities)),
	}

	logger.Info().Str("file", segPath).Msg("analyzing segmentation")
	segFull, segCropped, err := r.analyzeSegmentation(ctx, logger, segPath, plotsDir, &res.Segmentation)
	if err != nil {
		return nil, fmt.Errorf("segmentation %s: %w", filepath.Base(segPath), err)
	}
	logger.Info().
		Float64("fd", res.Segmentation.Result.FD).
		Float64("ld", res.Segmentation.Result.LD).
		Ints("shape", segCropped.Shape).
		Msg("segmentation analyzed")

	for _, modality := range r.opts.Modalities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, err := FindVolume(dir, modality)
		if errors.Is(err, ErrVolumeNotFound) {
			logger.Warn().Str("modality", modality).Msg("modality volume missing")
			continue
		}
		mr := &ModalityResult{Modality: modality, File: path}
		res.Modalities[modality] = mr
		if err != nil {
			mr.Err = err
			continue
		}

		if err := r.analyzeModality(ctx, logger, mr, segFull, segCropped, res.Segmentation.Bounds, plotsDir, id); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			mr.Err = err
			mr.Result = nil
			logger.Error().Err(err).Str("modality", modality).Msg("modality analysis failed")
			continue
		}
		logger.Info().
			Str("modality", modality).
			Float64("ld", mr.Result.LD).
			Msg("modality analyzed")
	}

	return res, nil
}

func (r *Runner) analyzeSegmentation(ctx context.Context, logger zerolog.Logger, path, plotsDir string, out *SegmentationResult) (full, cropped *models.Volume, err error) {
	out.File = path

	raw, err := volumeio.Load(path)
	if err != nil {
		return nil, nil, err
	}
	full = volume.FirstFrame(raw)

	cropped, bounds, err := volume.CropToContent(full)
	if err != nil {
		return nil, nil, err
	}
	out.Bounds = bounds

	analysis, err := r.analyze(ctx, logger.With().Str("volume", SegmentationSuffix).Logger(), cropped, r.fractal)
	if err != nil {
		return nil, nil, err
	}
	out.Result = analysis

	if plotsDir == "" {
		return full, cropped, nil
	}
	prefix := filepath.Base(filepath.Clean(filepath.Dir(path))) + "_" + SegmentationSuffix
	if r.opts.SavePlots {
		out.Plots = r.savePlots(logger, analysis, plotsDir, prefix)
	}
	if r.opts.SavePreviews {
		out.Previews = r.savePreviews(logger, cropped, plotsDir, prefix)
	}
	return full, cropped, nil
}

func (r *Runner) analyzeModality(ctx context.Context, logger zerolog.Logger, mr *ModalityResult, segFull, segCropped *models.Volume, bounds volume.Bounds, plotsDir, patientID string) error {
	raw, err := volumeio.Load(mr.File)
	if err != nil {
		return err
	}
	img := volume.FirstFrame(raw)

	if r.registrar != nil {
		img, err = r.registrar.Register(ctx, segFull, img)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
	}

	img, err = volume.Crop(img, bounds)
	if err != nil {
		return fmt.Errorf("crop to segmentation: %w", err)
	}
	masked, err := volume.Mask(img, segCropped)
	if err != nil {
		return err
	}
	shape, size := volume.BinarySize(masked, r.opts.IntensityLevels)
	event := logger.Debug()
	if size > largeBinaryBytes {
		event = logger.Warn()
	}
	event.Str("modality", mr.Modality).Ints("shape", shape).Int64("bytes", size).Msg("expanding intensity levels")

	binary, err := volume.GreyscaleToBinary(masked, r.opts.IntensityLevels)
	if err != nil {
		return err
	}

	cfg := r.fractal
	cfg.Subsample = r.opts.SubsampleIntensity
	analysis, err := r.analyze(ctx, logger.With().Str("volume", mr.Modality).Logger(), binary, cfg)
	if err != nil {
		return err
	}
	mr.Result = analysis

	if plotsDir != "" && r.opts.SavePlots {
		mr.Plots = r.savePlots(logger, analysis, plotsDir, patientID+"_"+mr.Modality)
	}
	return nil
}

func (r *Runner) analyze(ctx context.Context, logger zerolog.Logger, vol *models.Volume, cfg fractal.Config) (*fractal.AnalysisResult, error) {
	opts := []fractal.Option{fractal.WithLogger(logger)}
	if r.progress != nil {
		opts = append(opts, fractal.WithProgress(r.progress))
	}
	a, err := fractal.NewAnalyzer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, vol)
}

// savePlots writes <prefix>_FD and <prefix>_LD. Plot failures are logged and
// do not fail the analysis.
func (r *Runner) savePlots(logger zerolog.Logger, res *fractal.AnalysisResult, dir, prefix string) []string {
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warn().Err(err).Msg("cannot create plots directory")
		return nil
	}
	var paths []string
	save := func(suffix string, fn func(string, *fractal.AnalysisResult, float64) error) {
		path := filepath.Join(dir, prefix+suffix+r.format.Ext())
		if err := fn(path, res, r.opts.Confidence); err != nil {
			logger.Warn().Err(err).Str("plot", path).Msg("failed to save plot")
			return
		}
		paths = append(paths, path)
	}
	save("_FD", report.SaveFD)
	save("_LD", report.SaveLacunarity)
	return paths
}

func (r *Runner) savePreviews(logger zerolog.Logger, vol *models.Volume, dir, prefix string) []string {
	viewer, err := visualization.NewViewer(vol)
	if err != nil {
		logger.Warn().Err(err).Msg("previews skipped")
		return nil
	}
	paths, err := viewer.SaveMidPlanes(dir, prefix)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to save previews")
	}
	return paths
}
