package fractal

import "fracnd/internal/models"

// WindowSample is the statistic of a single window.
type WindowSample struct {
	// Touched is 1 when any voxel of the window is strictly positive
	Touched int

	// Mass is the sum of the raw voxel values
	Mass float64
}

// EvaluateWindow computes the occupancy flag and mass of a window. It only
// reads the window and is safe to call concurrently.
func EvaluateWindow(w models.Window) WindowSample {
	var s WindowSample
	w.Each(func(v float64) {
		if v > 0 {
			s.Touched = 1
		}
		s.Mass += v
	})
	return s
}
