package fractal

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyVolume is matched by every EmptyVolumeError.
	ErrEmptyVolume = errors.New("volume is empty")

	// ErrInsufficientData is matched by every InsufficientDataError.
	ErrInsufficientData = errors.New("insufficient data for regression")

	// ErrDegenerateLacunarity is matched by every DegenerateLacunarityError.
	ErrDegenerateLacunarity = errors.New("degenerate lacunarity")

	// ErrNegativeValues is returned for volumes holding negative mass.
	ErrNegativeValues = errors.New("volume contains negative values")

	// ErrScaleTooLarge is returned when a window does not fit inside the volume.
	ErrScaleTooLarge = errors.New("scale exceeds volume extent")
)

// EmptyVolumeError is returned when the input volume has no non-zero voxel.
type EmptyVolumeError struct {
	Shape []int
}

func (e *EmptyVolumeError) Error() string {
	return fmt.Sprintf("volume of shape %v is empty: provide a volume with at least one non-zero voxel", e.Shape)
}

func (e *EmptyVolumeError) Is(target error) bool { return target == ErrEmptyVolume }

// InsufficientDataError is returned when fewer than two distinct
// (scale, value) pairs survive the fitter's filtering.
type InsufficientDataError struct {
	// Series names the fitted series ("FD" or "LD")
	Series string

	// Points is the number of pairs that remained
	Points int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s fit needs at least 2 distinct points, got %d", e.Series, e.Points)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// DegenerateLacunarityError is returned when the mass distribution at a scale
// has zero mean, which leaves var/mean² undefined.
type DegenerateLacunarityError struct {
	Scale int
}

func (e *DegenerateLacunarityError) Error() string {
	return fmt.Sprintf("lacunarity undefined at scale %d: mass distribution has zero mean", e.Scale)
}

func (e *DegenerateLacunarityError) Is(target error) bool { return target == ErrDegenerateLacunarity }
