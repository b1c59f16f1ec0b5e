// Package volume prepares volumes for fractal analysis: bounding-box crops,
// masking, 4D to 3D reduction and the expansion of greyscale intensities
// into a binary level axis.
package volume

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"fracnd/internal/models"
)

var (
	// ErrConstantVolume is returned when a greyscale volume has no intensity
	// range to normalize.
	ErrConstantVolume = errors.New("volume has constant intensity")

	// ErrNoContent is returned when cropping a volume without non-zero voxels.
	ErrNoContent = errors.New("volume has no non-zero voxels")
)

// Bounds is a half-open box [Min, Max) along every axis.
type Bounds struct {
	Min []int
	Max []int
}

// Shape returns the extent of the box.
func (b Bounds) Shape() []int {
	shape := make([]int, len(b.Min))
	for i := range b.Min {
		shape[i] = b.Max[i] - b.Min[i]
	}
	return shape
}

// ContentBounds returns the smallest box holding every non-zero voxel.
func ContentBounds(v *models.Volume) (Bounds, error) {
	dims := v.Dims()
	b := Bounds{Min: make([]int, dims), Max: make([]int, dims)}
	for i := range b.Min {
		b.Min[i] = math.MaxInt
		b.Max[i] = -1
	}

	found := false
	coords := make([]int, dims)
	for idx, x := range v.Data {
		if x == 0 {
			continue
		}
		found = true
		unravel(idx, v.Shape, coords)
		for i, c := range coords {
			if c < b.Min[i] {
				b.Min[i] = c
			}
			if c+1 > b.Max[i] {
				b.Max[i] = c + 1
			}
		}
	}
	if !found {
		return Bounds{}, ErrNoContent
	}
	return b, nil
}

// CropToContent crops v to the bounding box of its non-zero voxels and
// returns the box so that companion volumes can be cropped identically.
func CropToContent(v *models.Volume) (*models.Volume, Bounds, error) {
	b, err := ContentBounds(v)
	if err != nil {
		return nil, Bounds{}, err
	}
	cropped, err := Crop(v, b)
	if err != nil {
		return nil, Bounds{}, err
	}
	return cropped, b, nil
}

// Crop copies the box b out of v.
func Crop(v *models.Volume, b Bounds) (*models.Volume, error) {
	dims := v.Dims()
	if len(b.Min) != dims || len(b.Max) != dims {
		return nil, fmt.Errorf("bounds have %d/%d axes, volume has %d", len(b.Min), len(b.Max), dims)
	}
	for i := 0; i < dims; i++ {
		if b.Min[i] < 0 || b.Max[i] > v.Shape[i] || b.Min[i] >= b.Max[i] {
			return nil, fmt.Errorf("bounds [%d, %d) invalid for axis %d of extent %d",
				b.Min[i], b.Max[i], i, v.Shape[i])
		}
	}

	shape := b.Shape()
	out := models.NewVolume(shape...)
	rowLen := shape[dims-1]
	src := make([]int, dims)
	dst := 0
	forEachRow(shape, func(offset []int) {
		for i := range src {
			src[i] = b.Min[i] + offset[i]
		}
		start := v.Index(src)
		copy(out.Data[dst:dst+rowLen], v.Data[start:start+rowLen])
		dst += rowLen
	})
	return out, nil
}

// Mask multiplies image by mask element-wise.
func Mask(image, mask *models.Volume) (*models.Volume, error) {
	if !slices.Equal(image.Shape, mask.Shape) {
		return nil, fmt.Errorf("mask shape %v does not match image shape %v", mask.Shape, image.Shape)
	}
	out := models.NewVolume(image.Shape...)
	for i, x := range image.Data {
		out.Data[i] = x * mask.Data[i]
	}
	return out, nil
}

// FirstFrame reduces a 4D volume to 3D by taking index 0 of the last axis.
// Volumes of any other rank are returned unchanged.
func FirstFrame(v *models.Volume) *models.Volume {
	if v.Dims() != 4 {
		return v
	}
	frames := v.Shape[3]
	out := models.NewVolume(v.Shape[:3]...)
	for i := range out.Data {
		out.Data[i] = v.Data[i*frames]
	}
	return out
}

// BinarySize returns the shape and the float64 payload size in bytes of
// GreyscaleToBinary(v, levels) for a non-constant v. The maximum always maps
// to level levels, so the level axis has levels+1 entries.
func BinarySize(v *models.Volume, levels int) ([]int, int64) {
	shape := append(append([]int(nil), v.Shape...), levels+1)
	n := int64(1)
	for _, s := range shape {
		n *= int64(s)
	}
	return shape, n * 8
}

// GreyscaleToBinary min-max normalizes v to [0, levels], truncates to
// integers and one-hot expands the result into a new trailing axis of length
// max+1. The voxel with level k becomes 1 at position k of that axis.
//
// The result holds Len(v)·(levels+1) float64 values; BinarySize reports it
// before the allocation. With 255 levels a 100³ crop takes about 2 GB.
func GreyscaleToBinary(v *models.Volume, levels int) (*models.Volume, error) {
	if levels < 1 {
		return nil, fmt.Errorf("levels must be positive, got %d", levels)
	}
	lo, hi := v.Min(), v.Max()
	if v.Len() == 0 || hi == lo {
		return nil, ErrConstantVolume
	}

	quantized := make([]int, v.Len())
	top := 0
	for i, x := range v.Data {
		q := int((x - lo) / (hi - lo) * float64(levels))
		quantized[i] = q
		if q > top {
			top = q
		}
	}

	shape := append(append([]int(nil), v.Shape...), top+1)
	out := models.NewVolume(shape...)
	depth := top + 1
	for i, q := range quantized {
		out.Data[i*depth+q] = 1
	}
	return out, nil
}

// CollapseLevels inverts GreyscaleToBinary: it sums k·b[..., k] over the
// trailing level axis.
func CollapseLevels(b *models.Volume) (*models.Volume, error) {
	if b.Dims() < 2 {
		return nil, fmt.Errorf("binary volume needs a level axis, got %d dims", b.Dims())
	}
	depth := b.Shape[b.Dims()-1]
	out := models.NewVolume(b.Shape[:b.Dims()-1]...)
	for i := range out.Data {
		row := b.Data[i*depth : (i+1)*depth]
		for k, x := range row {
			out.Data[i] += float64(k) * x
		}
	}
	return out, nil
}

// forEachRow calls fn with the offset of every row of a box of the given
// shape; the last offset coordinate is always 0.
func forEachRow(shape []int, fn func(offset []int)) {
	last := len(shape) - 1
	offset := make([]int, len(shape))
	for {
		fn(offset)
		axis := last - 1
		for axis >= 0 {
			offset[axis]++
			if offset[axis] < shape[axis] {
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

func unravel(idx int, shape []int, coords []int) {
	for i := len(shape) - 1; i >= 0; i-- {
		coords[i] = idx % shape[i]
		idx /= shape[i]
	}
}
