package fractal

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"fracnd/internal/models"
)

// ctxCheckInterval is the number of windows a worker evaluates between
// cancellation checks.
const ctxCheckInterval = 256

// ScanResult is the aggregate of one scale.
type ScanResult struct {
	// Scale is the window side length
	Scale int

	// Step is the stride used between window origins
	Step int

	// Count is the normalized box count N
	Count int

	// Lacunarity is λ for this scale (0 when no window was touched)
	Lacunarity float64

	// Windows is the number of window positions along all axes
	Windows int

	// Evaluated is the number of windows that survived subsampling
	Evaluated int

	// Touched is the raw number of touched windows before normalization
	Touched int
}

// Scanner enumerates the windows of one scale and aggregates their
// statistics into a box count and a lacunarity value.
type Scanner struct {
	// Workers is the number of goroutines evaluating windows; values <= 1
	// evaluate sequentially
	Workers int

	// Subsample is the Bernoulli keep probability; 0 disables subsampling
	Subsample float64

	// Histogram selects the histogram estimate of the mass distribution
	Histogram bool

	// Bins is the histogram bin rule ("auto", "fd", "sturges", ...) or a count
	Bins string

	// Source feeds the subsampling draws; required when Subsample > 0
	Source rand.Source

	// Logger receives per-scale diagnostics
	Logger zerolog.Logger
}

// Scan evaluates every window of side scale placed every step voxels.
func (s *Scanner) Scan(ctx context.Context, vol *models.Volume, scale, step int) (ScanResult, error) {
	res := ScanResult{Scale: scale, Step: step}
	if scale < 1 || step < 1 {
		return res, fmt.Errorf("scale and step must be positive, got scale=%d step=%d", scale, step)
	}

	// Workers share vol; resolve its strides before they start.
	vol = vol.Indexed()

	dims := vol.Dims()
	counts := make([]int, dims)
	prodWindows, prodBoxes := 1, 1
	for i, extent := range vol.Shape {
		if scale > extent {
			return res, fmt.Errorf("%w: scale %d, axis %d has extent %d", ErrScaleTooLarge, scale, i, extent)
		}
		counts[i] = (extent-scale)/step + 1
		prodWindows *= counts[i]
		prodBoxes *= (extent-scale)/scale + 1
	}
	res.Windows = prodWindows

	positions, err := s.selectPositions(prodWindows)
	if err != nil {
		return res, err
	}
	evaluated := prodWindows
	if positions != nil {
		evaluated = len(positions)
	}
	res.Evaluated = evaluated

	samples, err := s.evaluate(ctx, vol, counts, scale, step, positions, evaluated)
	if err != nil {
		return res, err
	}

	touched := 0
	masses := make([]float64, 0, evaluated)
	for _, smp := range samples {
		if smp.Touched == 1 {
			touched++
			masses = append(masses, smp.Mass)
		}
	}
	res.Touched = touched

	// Multiply before dividing so exact ratios stay integral.
	denom := float64(prodWindows)
	if s.Subsample > 0 {
		denom *= s.Subsample
	}
	res.Count = int(float64(touched) * float64(prodBoxes) / denom)

	if touched == 0 {
		s.Logger.Warn().
			Int("scale", scale).
			Int("evaluated", evaluated).
			Msg("no touched windows at scale, point will be excluded from fits")
		return res, nil
	}

	for i := range masses {
		masses[i] /= float64(touched)
	}
	lac, err := lacunarity(masses, s.Histogram, s.Bins)
	if err != nil {
		return res, err
	}
	if lac.mean == 0 {
		return res, &DegenerateLacunarityError{Scale: scale}
	}
	res.Lacunarity = lac.value

	s.Logger.Debug().
		Int("scale", scale).
		Int("step", step).
		Int("windows", prodWindows).
		Int("evaluated", evaluated).
		Int("touched", touched).
		Int("count", res.Count).
		Float64("lacunarity", res.Lacunarity).
		Msg("scale scanned")

	return res, nil
}

// selectPositions draws the subsampling trials in enumeration order. A nil
// slice means every position is evaluated.
func (s *Scanner) selectPositions(total int) ([]int, error) {
	if s.Subsample <= 0 || s.Subsample >= 1 {
		return nil, nil
	}
	if s.Source == nil {
		return nil, fmt.Errorf("subsampling requires a random source")
	}
	trial := distuv.Bernoulli{P: s.Subsample, Src: s.Source}
	positions := make([]int, 0, int(float64(total)*s.Subsample)+1)
	for p := 0; p < total; p++ {
		if trial.Rand() == 1 {
			positions = append(positions, p)
		}
	}
	return positions, nil
}

// evaluate runs EvaluateWindow for every selected position. Each worker owns
// a contiguous range of the result slice, so the output order matches the
// enumeration order regardless of scheduling.
func (s *Scanner) evaluate(ctx context.Context, vol *models.Volume, counts []int, scale, step int, positions []int, n int) ([]WindowSample, error) {
	samples := make([]WindowSample, n)
	if n == 0 {
		return samples, nil
	}

	position := func(i int) int {
		if positions == nil {
			return i
		}
		return positions[i]
	}

	run := func(start, end int) {
		origin := make([]int, len(counts))
		for i := start; i < end; i++ {
			if (i-start)%ctxCheckInterval == 0 && ctx.Err() != nil {
				return
			}
			windowOrigin(position(i), counts, step, origin)
			samples[i] = EvaluateWindow(models.Window{Volume: vol, Origin: origin, Size: scale})
		}
	}

	numWorkers := s.Workers
	if numWorkers > n {
		numWorkers = n
	}
	if numWorkers <= 1 {
		run(0, n)
		return samples, ctx.Err()
	}

	perWorker := (n + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * perWorker
		if start >= n {
			break
		}
		end := start + perWorker
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			run(start, end)
		}(start, end)
	}
	wg.Wait()

	return samples, ctx.Err()
}

// windowOrigin decodes a row-major window position into voxel coordinates.
func windowOrigin(pos int, counts []int, step int, origin []int) {
	for axis := len(counts) - 1; axis >= 0; axis-- {
		origin[axis] = (pos % counts[axis]) * step
		pos /= counts[axis]
	}
}
