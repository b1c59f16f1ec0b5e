package visualization

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"fracnd/internal/models"
)

// layeredVolume builds a (depth, height, width) volume whose z-th slice holds
// the value z+1.
func layeredVolume(width, height, depth int) *models.Volume {
	vol := models.NewVolume(depth, height, width)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Set(float64(z+1), z, y, x)
			}
		}
	}
	return vol
}

// TestNewViewer verifies that the viewer reads the volume shape
func TestNewViewer(t *testing.T) {
	viewer, err := NewViewer(layeredVolume(10, 8, 5))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	if viewer.width != 10 {
		t.Errorf("Expected width 10, got %d", viewer.width)
	}
	if viewer.height != 8 {
		t.Errorf("Expected height 8, got %d", viewer.height)
	}
	if viewer.depth != 5 {
		t.Errorf("Expected depth 5, got %d", viewer.depth)
	}

	if _, err := NewViewer(models.NewVolume(4, 4)); err == nil {
		t.Error("Expected error for 2D volume, got nil")
	}
}

// TestExtractSlice verifies slice dimensions and grey levels along every axis
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 5
	viewer, err := NewViewer(layeredVolume(width, height, depth))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice(AxisZ, z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		gray, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}
		expected := uint16(float64(z+1) * 65535 / float64(depth))
		got := gray.Gray16At(width/2, height/2).Y
		if diff := int(got) - int(expected); diff > 1 || diff < -1 {
			t.Errorf("Expected Z slice value ~%d at center, got %d", expected, got)
		}
	}

	imgX, err := viewer.ExtractSlice(AxisX, width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}

	imgY, err := viewer.ExtractSlice(AxisY, height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	if _, err := viewer.ExtractSlice(Axis("w"), 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice(AxisZ, depth); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice(AxisZ, -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestExtractRegion verifies that a 3D box is copied voxel for voxel
func TestExtractRegion(t *testing.T) {
	vol := models.NewVolume(5, 10, 10)
	for i := range vol.Data {
		vol.Data[i] = float64(i)
	}
	viewer, err := NewViewer(vol)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	start, size := [3]int{1, 3, 2}, [3]int{2, 3, 4}
	region, err := viewer.ExtractRegion(start, size)
	if err != nil {
		t.Fatalf("Failed to extract region: %v", err)
	}
	if region.Len() != 24 {
		t.Errorf("Expected region size 24, got %d", region.Len())
	}

	for z := 0; z < size[0]; z++ {
		for y := 0; y < size[1]; y++ {
			for x := 0; x < size[2]; x++ {
				want := vol.At(start[0]+z, start[1]+y, start[2]+x)
				if got := region.At(z, y, x); got != want {
					t.Errorf("Region value mismatch at (%d,%d,%d): expected %f, got %f", z, y, x, want, got)
				}
			}
		}
	}

	if _, err := viewer.ExtractRegion([3]int{-1, 0, 0}, [3]int{1, 1, 1}); err == nil {
		t.Error("Expected error for negative start coordinate, got nil")
	}
	if _, err := viewer.ExtractRegion([3]int{0, 0, 0}, [3]int{0, 1, 1}); err == nil {
		t.Error("Expected error for zero size, got nil")
	}
	if _, err := viewer.ExtractRegion([3]int{0, 0, 9}, [3]int{1, 1, 2}); err == nil {
		t.Error("Expected error for region extending beyond volume, got nil")
	}
}

// TestSaveSliceSequence verifies that a sequence of slices is written to disk
func TestSaveSliceSequence(t *testing.T) {
	viewer, err := NewViewer(layeredVolume(5, 5, 3))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	outputDir := filepath.Join(t.TempDir(), "slices")
	if err := viewer.SaveSliceSequence(AxisZ, outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	for z := 0; z < 3; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.jpg", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if err := viewer.SaveSliceSequence(Axis("invalid"), outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}

// TestSaveMidPlanes verifies that one preview per axis is written
func TestSaveMidPlanes(t *testing.T) {
	viewer, err := NewViewer(layeredVolume(6, 4, 3))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	dir := t.TempDir()
	paths, err := viewer.SaveMidPlanes(dir, "P001_seg")
	if err != nil {
		t.Fatalf("Failed to save mid planes: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("Expected 3 previews, got %d", len(paths))
	}
	for _, axis := range []string{"x", "y", "z"} {
		want := filepath.Join(dir, "P001_seg_"+axis+".jpg")
		if _, err := os.Stat(want); err != nil {
			t.Errorf("Expected preview %s: %v", want, err)
		}
	}
}

// TestEnlarge verifies that small slices are scaled by an integer factor
func TestEnlarge(t *testing.T) {
	viewer, err := NewViewer(layeredVolume(6, 4, 3))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	img, err := viewer.ExtractSlice(AxisZ, 2)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}

	big := enlarge(img, PreviewMinSide)
	if got := big.Bounds(); got.Dx() != 6*64 || got.Dy() != 4*64 {
		t.Fatalf("Expected 384x256, got %dx%d", got.Dx(), got.Dy())
	}
	if big.At(0, 0) != img.At(0, 0) || big.At(383, 255) != img.At(5, 3) {
		t.Error("Expected nearest-neighbor copies of the corner voxels")
	}

	large := image.NewGray16(image.Rect(0, 0, 300, 400))
	if enlarge(large, PreviewMinSide) != image.Image(large) {
		t.Error("Expected an image above the minimum size to be returned unchanged")
	}

	dir := t.TempDir()
	paths, err := viewer.SaveMidPlanes(dir, "P001_seg")
	if err != nil {
		t.Fatalf("Failed to save mid planes: %v", err)
	}
	f, err := os.Open(paths[2])
	if err != nil {
		t.Fatalf("Failed to open preview: %v", err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Failed to decode preview: %v", err)
	}
	if cfg.Width < PreviewMinSide || cfg.Height < PreviewMinSide {
		t.Errorf("Expected preview of at least %d pixels per side, got %dx%d", PreviewMinSide, cfg.Width, cfg.Height)
	}
}

// TestParseAxis verifies axis name parsing
func TestParseAxis(t *testing.T) {
	if a, err := ParseAxis("Z"); err != nil || a != AxisZ {
		t.Errorf("Expected AxisZ, got %q (%v)", a, err)
	}
	if _, err := ParseAxis("q"); err == nil {
		t.Error("Expected error for unknown axis, got nil")
	}
}
