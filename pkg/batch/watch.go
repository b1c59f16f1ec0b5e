package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDelay is how long a new patient folder must stay quiet before
// it is analyzed.
const DefaultWatchDelay = 2 * time.Second

// Watcher analyzes patient folders as they appear in a dataset folder.
type Watcher struct {
	runner *Runner
	delay  time.Duration

	// OnResult, if set, is called after every analyzed patient
	OnResult func(res *PatientResult, err error)

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewWatcher returns a Watcher that waits delay after the last change in a
// patient folder; a non-positive delay selects DefaultWatchDelay.
func (r *Runner) NewWatcher(delay time.Duration) *Watcher {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	return &Watcher{
		runner:  r,
		delay:   delay,
		pending: make(map[string]*time.Timer),
	}
}

// Watch monitors inputDir with fsnotify until ctx is cancelled. A patient
// folder created in inputDir is watched too, so files copied into it keep
// postponing the analysis until the copy settles. Results are appended to
// the CSV and state in outputDir exactly as AnalyzeDataset writes them.
func (w *Watcher) Watch(ctx context.Context, inputDir, outputDir string) error {
	s, err := w.runner.openSession(outputDir)
	if err != nil {
		return err
	}
	logger := w.runner.logger

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(inputDir); err != nil {
		return fmt.Errorf("watch %s: %w", inputDir, err)
	}
	logger.Info().Str("dir", inputDir).Str("run_id", s.runID).Msg("watching for new patients")

	defer func() {
		w.stopPending()
		w.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			dir := w.patientDir(inputDir, event.Name)
			if dir == "" || dir == filepath.Clean(outputDir) {
				continue
			}
			if event.Op&fsnotify.Create != 0 && filepath.Clean(event.Name) == dir {
				if err := watcher.Add(dir); err != nil {
					logger.Warn().Err(err).Str("dir", dir).Msg("cannot watch patient folder")
				}
			}
			w.schedule(ctx, s, dir)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

// patientDir maps an event path to the patient folder it belongs to, or ""
// if the event is not inside a patient folder.
func (w *Watcher) patientDir(inputDir, name string) string {
	root := filepath.Clean(inputDir)
	rel, err := filepath.Rel(root, filepath.Clean(name))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	if first == PlotsDirName {
		return ""
	}
	dir := filepath.Join(root, first)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	return dir
}

// schedule restarts the quiet-period timer of dir.
func (w *Watcher) schedule(ctx context.Context, s *session, dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[dir]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.delay, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[dir] == t {
			delete(w.pending, dir)
		}
		w.mu.Unlock()
		w.run(ctx, s, dir)
	})
	w.pending[dir] = t
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for dir, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, dir)
	}
}

func (w *Watcher) run(ctx context.Context, s *session, dir string) {
	if ctx.Err() != nil {
		return
	}
	logger := w.runner.logger.With().Str("patient", filepath.Base(dir)).Logger()

	res, skipped, err := s.process(ctx, dir)
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("patient analysis failed")
	case skipped:
		return
	default:
		if !w.runner.opts.SaveIntermediate {
			if ferr := s.flush(); ferr != nil {
				logger.Warn().Err(ferr).Msg("failed to save results")
			}
		}
		logger.Info().Msg("patient analyzed")
	}
	if w.OnResult != nil {
		w.OnResult(res, err)
	}
}
