package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fracnd/internal/models"
)

func TestCropToContent(t *testing.T) {
	v := models.NewVolume(6, 5, 4)
	v.Set(1, 1, 2, 1)
	v.Set(2, 3, 4, 2)

	cropped, b, err := CropToContent(v)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 1}, b.Min)
	assert.Equal(t, []int{4, 5, 3}, b.Max)
	assert.Equal(t, []int{3, 3, 2}, cropped.Shape)
	assert.Equal(t, 1.0, cropped.At(0, 0, 0))
	assert.Equal(t, 2.0, cropped.At(2, 2, 1))
	assert.Equal(t, v.Sum(), cropped.Sum())
}

func TestCropToContentEmpty(t *testing.T) {
	_, _, err := CropToContent(models.NewVolume(3, 3))
	assert.ErrorIs(t, err, ErrNoContent)
}

// TestCropCompanionVolume verifies that the box of a segmentation crops an
// intensity volume of the same shape to the same region.
func TestCropCompanionVolume(t *testing.T) {
	seg := models.NewVolume(4, 4)
	seg.Set(1, 1, 1)
	seg.Set(1, 2, 2)

	img := models.NewVolume(4, 4)
	for i := range img.Data {
		img.Data[i] = float64(i)
	}

	_, b, err := CropToContent(seg)
	require.NoError(t, err)
	out, err := Crop(img, b)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2}, out.Shape)
	assert.Equal(t, []float64{5, 6, 9, 10}, out.Data)
}

func TestCropInvalidBounds(t *testing.T) {
	v := models.NewVolume(4, 4)

	_, err := Crop(v, Bounds{Min: []int{0}, Max: []int{2}})
	assert.Error(t, err)

	_, err = Crop(v, Bounds{Min: []int{0, 0}, Max: []int{5, 2}})
	assert.Error(t, err)

	_, err = Crop(v, Bounds{Min: []int{2, 0}, Max: []int{2, 2}})
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	img, _ := models.VolumeFromData([]float64{1, 2, 3, 4}, 2, 2)
	mask, _ := models.VolumeFromData([]float64{0, 1, 1, 0}, 2, 2)

	out, err := Mask(img, mask)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 3, 0}, out.Data)

	other := models.NewVolume(4)
	_, err = Mask(img, other)
	assert.Error(t, err)
}

func TestFirstFrame(t *testing.T) {
	v := models.NewVolume(2, 2, 2, 3)
	for i := range v.Data {
		v.Data[i] = float64(i)
	}

	out := FirstFrame(v)
	assert.Equal(t, []int{2, 2, 2}, out.Shape)
	assert.Equal(t, []float64{0, 3, 6, 9, 12, 15, 18, 21}, out.Data)

	flat := models.NewVolume(2, 2, 2)
	assert.Same(t, flat, FirstFrame(flat))
}

func TestGreyscaleToBinary(t *testing.T) {
	v, _ := models.VolumeFromData([]float64{10, 20, 30, 50}, 2, 2)

	b, err := GreyscaleToBinary(v, 4)
	require.NoError(t, err)

	// Levels 0, 1, 2 and 4.
	assert.Equal(t, []int{2, 2, 5}, b.Shape)
	assert.Equal(t, 1.0, b.At(0, 0, 0))
	assert.Equal(t, 1.0, b.At(0, 1, 1))
	assert.Equal(t, 1.0, b.At(1, 0, 2))
	assert.Equal(t, 1.0, b.At(1, 1, 4))
	assert.Equal(t, 4.0, b.Sum())
}

// TestGreyscaleRoundTrip verifies that collapsing the level axis restores a
// volume already quantized to [0, levels].
func TestGreyscaleRoundTrip(t *testing.T) {
	data := []float64{0, 4, 1, 2, 3, 0, 4, 2, 1}
	v, err := models.VolumeFromData(append([]float64(nil), data...), 3, 3)
	require.NoError(t, err)

	b, err := GreyscaleToBinary(v, 4)
	require.NoError(t, err)

	back, err := CollapseLevels(b)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, back.Shape)
	assert.Equal(t, data, back.Data)
}

func TestBinarySize(t *testing.T) {
	v, _ := models.VolumeFromData([]float64{10, 20, 30, 50, 0, 7}, 3, 2)

	shape, size := BinarySize(v, 4)
	assert.Equal(t, []int{3, 2, 5}, shape)
	assert.Equal(t, int64(3*2*5*8), size)

	b, err := GreyscaleToBinary(v, 4)
	require.NoError(t, err)
	assert.Equal(t, shape, b.Shape)
	assert.Equal(t, size, int64(b.Len()*8))

	_, size = BinarySize(models.NewVolume(100, 100, 100), 255)
	assert.Equal(t, int64(2_048_000_000), size)
}

func TestGreyscaleToBinaryErrors(t *testing.T) {
	constant, _ := models.VolumeFromData([]float64{2, 2, 2}, 3)
	_, err := GreyscaleToBinary(constant, 255)
	assert.ErrorIs(t, err, ErrConstantVolume)

	ramp, _ := models.VolumeFromData([]float64{0, 1}, 2)
	_, err = GreyscaleToBinary(ramp, 0)
	assert.Error(t, err)

	_, err = CollapseLevels(ramp)
	assert.Error(t, err)
}
