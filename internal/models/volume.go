package models

import (
	"fmt"
	"math"
)

// Volume is a dense N-dimensional array of voxel values stored in row-major
// order (the last axis varies fastest). For a 3D volume with shape
// (depth, height, width) the element (z, y, x) lives at z*h*w + y*w + x.
type Volume struct {
	// Data holds the voxel values
	Data []float64

	// Shape is the extent of each axis
	Shape []int

	strides []int
}

// NewVolume allocates a zero-filled volume with the given shape.
func NewVolume(shape ...int) *Volume {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if len(shape) == 0 {
		n = 0
	}
	v := &Volume{
		Data:  make([]float64, n),
		Shape: append([]int(nil), shape...),
	}
	v.strides = computeStrides(v.Shape)
	return v
}

// VolumeFromData wraps an existing data slice. The slice is not copied.
func VolumeFromData(data []float64, shape ...int) (*Volume, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("volume needs at least one dimension")
	}
	n := 1
	for i, s := range shape {
		if s <= 0 {
			return nil, fmt.Errorf("dimension %d has non-positive extent %d", i, s)
		}
		n *= s
	}
	if n != len(data) {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, n, len(data))
	}
	return &Volume{
		Data:    data,
		Shape:   append([]int(nil), shape...),
		strides: computeStrides(shape),
	}, nil
}

func computeStrides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// Dims returns the number of axes.
func (v *Volume) Dims() int { return len(v.Shape) }

// Len returns the number of voxels.
func (v *Volume) Len() int { return len(v.Data) }

// Strides returns the element stride of every axis. It never modifies v, so
// concurrent readers may call it on a volume built as a struct literal.
func (v *Volume) Strides() []int {
	if len(v.strides) == len(v.Shape) {
		return v.strides
	}
	return computeStrides(v.Shape)
}

// Indexed returns v when its strides are already resolved, otherwise a
// shallow copy sharing Data whose strides are computed once.
func (v *Volume) Indexed() *Volume {
	if len(v.strides) == len(v.Shape) {
		return v
	}
	return &Volume{Data: v.Data, Shape: v.Shape, strides: computeStrides(v.Shape)}
}

// Index converts N-d coordinates into the flat data offset.
func (v *Volume) Index(coords []int) int {
	strides := v.Strides()
	idx := 0
	for i, c := range coords {
		idx += c * strides[i]
	}
	return idx
}

// At returns the value at the given coordinates.
func (v *Volume) At(coords ...int) float64 {
	return v.Data[v.Index(coords)]
}

// Set stores a value at the given coordinates.
func (v *Volume) Set(value float64, coords ...int) {
	v.Data[v.Index(coords)] = value
}

// MinExtent returns the smallest axis length.
func (v *Volume) MinExtent() int {
	if len(v.Shape) == 0 {
		return 0
	}
	m := v.Shape[0]
	for _, s := range v.Shape[1:] {
		if s < m {
			m = s
		}
	}
	return m
}

// IsZero reports whether every voxel equals zero.
func (v *Volume) IsZero() bool {
	for _, x := range v.Data {
		if x != 0 {
			return false
		}
	}
	return true
}

// HasNegative reports whether any voxel is below zero.
func (v *Volume) HasNegative() bool {
	for _, x := range v.Data {
		if x < 0 {
			return true
		}
	}
	return false
}

// Min returns the smallest voxel value (+Inf for an empty volume).
func (v *Volume) Min() float64 {
	m := math.Inf(1)
	for _, x := range v.Data {
		if x < m {
			m = x
		}
	}
	return m
}

// Max returns the largest voxel value (-Inf for an empty volume).
func (v *Volume) Max() float64 {
	m := math.Inf(-1)
	for _, x := range v.Data {
		if x > m {
			m = x
		}
	}
	return m
}

// Sum returns the total of all voxel values.
func (v *Volume) Sum() float64 {
	total := 0.0
	for _, x := range v.Data {
		total += x
	}
	return total
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	c := NewVolume(v.Shape...)
	copy(c.Data, v.Data)
	return c
}

// Window is a read-only hypercubic view into a volume. It never copies the
// underlying data.
type Window struct {
	// Volume is the source array
	Volume *Volume

	// Origin is the first corner of the window, one coordinate per axis
	Origin []int

	// Size is the side length of the window along every axis
	Size int
}

// Each calls fn for every element of the window in row-major order.
func (w Window) Each(fn func(value float64)) {
	dims := w.Volume.Dims()
	if dims == 0 || w.Size <= 0 {
		return
	}
	strides := w.Volume.Strides()
	base := w.Volume.Index(w.Origin)
	last := dims - 1

	// Odometer over every axis but the last; the last axis is a contiguous run.
	offset := make([]int, last)
	for {
		start := base
		for i := 0; i < last; i++ {
			start += offset[i] * strides[i]
		}
		for _, x := range w.Volume.Data[start : start+w.Size] {
			fn(x)
		}

		axis := last - 1
		for axis >= 0 {
			offset[axis]++
			if offset[axis] < w.Size {
				break
			}
			offset[axis] = 0
			axis--
		}
		if axis < 0 {
			return
		}
	}
}
