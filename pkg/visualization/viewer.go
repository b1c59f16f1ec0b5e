// Package visualization renders 2D slices of 3D volumes for visual checks of
// the regions that go into the fractal analysis.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	"fracnd/internal/models"
	"fracnd/pkg/volume"
)

// Axis names a slicing direction of a (depth, height, width) volume.
type Axis string

const (
	// AxisX slices the YZ plane at a fixed x
	AxisX Axis = "x"
	// AxisY slices the XZ plane at a fixed y
	AxisY Axis = "y"
	// AxisZ slices the XY plane at a fixed z
	AxisZ Axis = "z"
)

// ParseAxis accepts x, y or z in either case.
func ParseAxis(s string) (Axis, error) {
	switch a := Axis(strings.ToLower(s)); a {
	case AxisX, AxisY, AxisZ:
		return a, nil
	default:
		return "", fmt.Errorf("invalid axis: %s (must be x, y, or z)", s)
	}
}

// Viewer extracts greyscale slices from a 3D volume. Values are scaled
// linearly from [0, max] to the full 16-bit range so label volumes and
// intensities both stay visible.
type Viewer struct {
	// vol is the source volume in (depth, height, width) order
	vol *models.Volume

	width  int
	height int
	depth  int

	// scale maps voxel values to 16-bit grey levels
	scale float64
}

// NewViewer creates a viewer over a 3D volume.
func NewViewer(vol *models.Volume) (*Viewer, error) {
	if vol.Dims() != 3 {
		return nil, fmt.Errorf("viewer needs a 3D volume, got %d dims", vol.Dims())
	}
	scale := 0.0
	if m := vol.Max(); m > 0 {
		scale = 65535 / m
	}
	return &Viewer{
		vol:    vol,
		depth:  vol.Shape[0],
		height: vol.Shape[1],
		width:  vol.Shape[2],
		scale:  scale,
	}, nil
}

// Extent returns the number of slices along axis.
func (v *Viewer) Extent(axis Axis) int {
	switch axis {
	case AxisX:
		return v.width
	case AxisY:
		return v.height
	case AxisZ:
		return v.depth
	default:
		return 0
	}
}

func (v *Viewer) grey(z, y, x int) color.Gray16 {
	value := v.vol.Data[z*v.width*v.height+y*v.width+x] * v.scale
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, value)))}
}

// ExtractSlice extracts a 2D slice at position along axis.
func (v *Viewer) ExtractSlice(axis Axis, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case AxisX:
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.grey(z, y, position))
			}
		}

	case AxisY:
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.grey(z, position, x))
			}
		}

	case AxisZ:
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.grey(position, y, x))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion copies a box given as (z, y, x) start and size.
func (v *Viewer) ExtractRegion(start, size [3]int) (*models.Volume, error) {
	b := volume.Bounds{Min: make([]int, 3), Max: make([]int, 3)}
	for i := range start {
		if start[i] < 0 {
			return nil, fmt.Errorf("start coordinates must be non-negative")
		}
		if size[i] <= 0 {
			return nil, fmt.Errorf("size dimensions must be positive")
		}
		b.Min[i] = start[i]
		b.Max[i] = start[i] + size[i]
	}
	region, err := volume.Crop(v.vol, b)
	if err != nil {
		return nil, fmt.Errorf("region extends beyond volume boundaries: %w", err)
	}
	return region, nil
}

// SaveSlice saves an extracted slice as a JPEG image.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveSliceSequence saves every slice along axis into outputDir.
func (v *Viewer) SaveSliceSequence(axis Axis, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	maxPos := v.Extent(axis)
	if maxPos == 0 {
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// PreviewMinSide is the shortest side, in pixels, of mid-plane previews.
const PreviewMinSide = 256

// enlarge scales img by the smallest integer factor that brings its shorter
// side to at least minSide. Voxels stay square blocks.
func enlarge(img image.Image, minSide int) image.Image {
	b := img.Bounds()
	short := min(b.Dx(), b.Dy())
	if short == 0 || short >= minSide {
		return img
	}
	factor := (minSide + short - 1) / short
	dst := image.NewGray16(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// SaveMidPlanes writes the central slice along each axis as
// <prefix>_<axis>.jpg, enlarged to PreviewMinSide, and returns the written
// paths.
func (v *Viewer) SaveMidPlanes(outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}
	var paths []string
	for _, axis := range []Axis{AxisX, AxisY, AxisZ} {
		img, err := v.ExtractSlice(axis, v.Extent(axis)/2)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(outputDir, fmt.Sprintf("%s_%s.jpg", prefix, axis))
		if err := v.SaveSlice(enlarge(img, PreviewMinSide), path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
