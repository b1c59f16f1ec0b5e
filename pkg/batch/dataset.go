package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"fracnd/pkg/volumeio"
)

// PlotsDirName is the sub-folder of the output folder holding plots.
const PlotsDirName = "plots"

// Summary reports a dataset run.
type Summary struct {
	RunID string

	// Total counts every patient folder of the dataset, including the ones
	// before StartFrom
	Total      int
	Successful int
	Failed     int
	Skipped    int

	// SuccessRate is Successful/Total in percent
	SuccessRate float64

	ResultsFile string
	PlotsDir    string
	StateFile   string

	Results []*PatientResult
}

// ListPatients returns the sub-directories of dir in name order.
func ListPatients(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var patients []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != PlotsDirName {
			patients = append(patients, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(patients)
	return patients, nil
}

// session holds the output state shared by the patients of one run.
type session struct {
	r     *Runner
	runID string
	plots string
	csv   string
	store *StateStore

	mu    sync.Mutex
	table *Results
	state State
}

func (r *Runner) openSession(outputDir string) (*session, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	s := &session{
		r:     r,
		runID: uuid.NewString(),
		csv:   filepath.Join(outputDir, ResultsFileName),
		store: NewStateStore(outputDir),
	}
	if r.opts.SavePlots || r.opts.SavePreviews {
		s.plots = filepath.Join(outputDir, PlotsDirName)
		if err := os.MkdirAll(s.plots, 0755); err != nil {
			return nil, fmt.Errorf("create plots directory: %w", err)
		}
	}

	var err error
	if s.table, err = ReadResults(s.csv, ResultColumns(r.opts.Modalities)); err != nil {
		return nil, err
	}
	if s.state, err = s.store.Load(); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return s, nil
}

// process analyzes one patient folder. It returns skipped=true when the
// segmentation is unchanged since a previous run and SkipUnchanged is set.
func (s *session) process(ctx context.Context, dir string) (res *PatientResult, skipped bool, err error) {
	id := filepath.Base(dir)
	logger := s.r.logger.With().Str("patient", id).Logger()

	if s.r.opts.SkipUnchanged {
		if fp, ok := s.fingerprint(dir); ok {
			s.mu.Lock()
			unchanged := s.state.Unchanged(id, fp)
			s.mu.Unlock()
			if unchanged {
				logger.Info().Str("fingerprint", fp).Msg("segmentation unchanged, skipping")
				return nil, true, nil
			}
		}
	}

	res, err = s.r.AnalyzePatient(ctx, dir, s.plots)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.Add(res)
	s.state.Record(id, res.Fingerprint, s.runID)
	if s.r.opts.SaveIntermediate {
		if err := s.flushLocked(); err != nil {
			logger.Warn().Err(err).Msg("failed to save intermediate results")
		}
	}
	return res, false, nil
}

func (s *session) fingerprint(dir string) (string, bool) {
	path, err := FindVolume(dir, SegmentationSuffix)
	if err != nil {
		return "", false
	}
	fp, err := volumeio.Fingerprint(path)
	if err != nil {
		return "", false
	}
	return fp, true
}

func (s *session) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *session) flushLocked() error {
	if err := s.table.WriteFile(s.csv); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := s.store.Save(s.state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// AnalyzeDataset analyzes every patient folder of inputDir in name order,
// starting at Options.StartFrom. Results go to outputDir: the CSV table, the
// resume state and, when enabled, the plots folder. A failing patient is
// logged and counted; cancellation stops the run after saving what finished.
func (r *Runner) AnalyzeDataset(ctx context.Context, inputDir, outputDir string) (*Summary, error) {
	patients, err := ListPatients(inputDir)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	if r.opts.StartFrom > len(patients) {
		return nil, fmt.Errorf("start-from index %d exceeds %d patients", r.opts.StartFrom, len(patients))
	}

	s, err := r.openSession(outputDir)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		RunID:       s.runID,
		Total:       len(patients),
		ResultsFile: s.csv,
		PlotsDir:    s.plots,
		StateFile:   s.store.Path(),
	}

	r.logger.Info().
		Str("run_id", s.runID).
		Int("patients", len(patients)).
		Int("start_from", r.opts.StartFrom).
		Msg("starting dataset analysis")

	todo := patients[r.opts.StartFrom:]
	for i, dir := range todo {
		if ctx.Err() != nil {
			break
		}
		r.logger.Info().Msgf("patient %d/%d: %s", r.opts.StartFrom+i+1, len(patients), filepath.Base(dir))

		res, skipped, err := s.process(ctx, dir)
		switch {
		case err != nil && ctx.Err() != nil:
			// interrupted, not counted
		case err != nil:
			sum.Failed++
			r.logger.Error().Err(err).Str("patient", filepath.Base(dir)).Msg("patient analysis failed")
		case skipped:
			sum.Skipped++
		default:
			sum.Successful++
			sum.Results = append(sum.Results, res)
		}
	}

	if err := s.flush(); err != nil {
		return sum, err
	}
	if sum.Total > 0 {
		sum.SuccessRate = float64(sum.Successful) / float64(sum.Total) * 100
	}

	r.logger.Info().
		Int("successful", sum.Successful).
		Int("failed", sum.Failed).
		Int("skipped", sum.Skipped).
		Str("results", sum.ResultsFile).
		Msg("dataset analysis finished")

	return sum, ctx.Err()
}
