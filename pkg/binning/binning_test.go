package binning

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhangjingcode/FAE/internal/models"
)

// createVolumes returns a 4x2x1 image with intensities 10..45 and a mask
// covering everything but the first voxel
func createVolumes() (*models.Volume, *models.Volume) {
	img := &models.Volume{Data: []float64{5, 10, 20, 25, 30, 35, 40, 45}, Width: 4, Height: 2, Depth: 1}
	mask := &models.Volume{Data: []float64{0, 1, 1, 1, 1, 1, 1, 1}, Width: 4, Height: 2, Depth: 1}
	return img, mask
}

func TestGenerate(t *testing.T) {
	img, mask := createVolumes()
	g := New(4)
	if err := g.LoadVolumes(img, mask); err != nil {
		t.Fatalf("LoadVolumes failed: %v", err)
	}
	if len(g.Warnings()) != 0 {
		t.Errorf("Expected no warnings for binary mask, got %v", g.Warnings())
	}
	if len(g.ROIValues()) != 7 {
		t.Errorf("Expected 7 ROI voxels, got %d", len(g.ROIValues()))
	}

	rng, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if rng.Start != 10 || rng.End != 45 {
		t.Errorf("Expected ROI range [10, 45], got [%f, %f]", rng.Start, rng.End)
	}
	if rng.ImageMin != 5 || rng.ImageMax != 45 {
		t.Errorf("Expected image range [5, 45], got [%f, %f]", rng.ImageMin, rng.ImageMax)
	}
	if rng.Step != 8.75 {
		t.Errorf("Expected step 8.75, got %f", rng.Step)
	}
	want := []float64{10, 18.75, 27.5, 36.25}
	if len(rng.Edges) != len(want) {
		t.Fatalf("Expected %d edges, got %d", len(want), len(rng.Edges))
	}
	for i := range want {
		if math.Abs(rng.Edges[i]-want[i]) > 1e-12 {
			t.Errorf("Edge %d: expected %f, got %f", i, want[i], rng.Edges[i])
		}
	}
}

func TestOverrides(t *testing.T) {
	img, mask := createVolumes()
	lo, hi, imgMax := 0.0, 100.0, 255.0

	g := New(5)
	g.MinROI, g.MaxROI, g.Max = &lo, &hi, &imgMax
	if err := g.LoadVolumes(img, mask); err != nil {
		t.Fatalf("LoadVolumes failed: %v", err)
	}

	rng, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if rng.Start != 0 || rng.End != 100 || rng.Step != 20 {
		t.Errorf("Expected [0, 100] step 20, got [%f, %f] step %f", rng.Start, rng.End, rng.Step)
	}
	// the max override applies to the maximum, not the minimum
	if rng.ImageMin != 5 || rng.ImageMax != 255 {
		t.Errorf("Expected image range [5, 255], got [%f, %f]", rng.ImageMin, rng.ImageMax)
	}
}

func TestGenerateWithoutVolumes(t *testing.T) {
	lo, hi := 10.0, 45.0
	g := New(4)
	if _, err := g.Generate(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded, got %v", err)
	}

	g.MinROI, g.MaxROI = &lo, &hi
	rng, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if rng.Edges[0] != 10 || rng.Step != 8.75 {
		t.Errorf("Unexpected range %+v", rng)
	}
}

func TestGenerateErrors(t *testing.T) {
	img, mask := createVolumes()

	g := New(0)
	if err := g.LoadVolumes(img, mask); err != nil {
		t.Fatalf("LoadVolumes failed: %v", err)
	}
	if _, err := g.Generate(); !errors.Is(err, ErrInvalidBinCount) {
		t.Errorf("Expected ErrInvalidBinCount, got %v", err)
	}

	flat := &models.Volume{Data: []float64{7, 7, 7, 7, 7, 7, 7, 7}, Width: 4, Height: 2, Depth: 1}
	g = New(4)
	if err := g.LoadVolumes(flat, mask); err != nil {
		t.Fatalf("LoadVolumes failed: %v", err)
	}
	if _, err := g.Generate(); !errors.Is(err, ErrDegenerateRange) {
		t.Errorf("Expected ErrDegenerateRange, got %v", err)
	}
}

// TestLoadVolumesEmptyROIForgetsPreviousLoad verifies that a failed load
// does not leave the previous volumes in place
func TestLoadVolumesEmptyROIForgetsPreviousLoad(t *testing.T) {
	img, mask := createVolumes()
	g := New(4)
	if err := g.LoadVolumes(img, mask); err != nil {
		t.Fatalf("LoadVolumes failed: %v", err)
	}

	empty := &models.Volume{Data: make([]float64, 8), Width: 4, Height: 2, Depth: 1}
	if err := g.LoadVolumes(img, empty); !errors.Is(err, ErrEmptyROI) {
		t.Fatalf("Expected ErrEmptyROI, got %v", err)
	}
	if g.ROIValues() != nil || g.Image() != nil || g.Mask() != nil {
		t.Error("Expected the previous volumes to be cleared")
	}
	if _, err := g.Generate(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded after a failed load, got %v", err)
	}
}

func TestLoadVolumesMaskChecks(t *testing.T) {
	img, _ := createVolumes()

	tests := []struct {
		name    string
		mask    []float64
		warning string
		err     error
	}{
		{"not binary", []float64{0, 1, 2, 1, 1, 1, 1, 1}, "not binary roi", nil},
		{"ones only", []float64{1, 1, 1, 1, 1, 1, 1, 1}, "voxels except 0 or 1", nil},
		{"zeros and twos", []float64{0, 2, 2, 2, 0, 0, 0, 0}, "voxels except 0 or 1", ErrEmptyROI},
		{"empty", []float64{0, 0, 0, 0, 0, 0, 0, 0}, "voxels except 0 or 1", ErrEmptyROI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := &models.Volume{Data: tt.mask, Width: 4, Height: 2, Depth: 1}
			g := New(4)
			err := g.LoadVolumes(img, mask)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("Expected %v, got %v", tt.err, err)
				}
			} else if err != nil {
				t.Fatalf("LoadVolumes failed: %v", err)
			}

			warnings := g.Warnings()
			if len(warnings) != 1 || !strings.Contains(warnings[0], tt.warning) {
				t.Errorf("Expected warning containing %q, got %v", tt.warning, warnings)
			}
		})
	}

	g := New(4)
	if err := g.LoadVolumes(img, models.NewVolume(2, 2, 1)); err == nil {
		t.Error("Expected error for mask of different shape")
	}
}

// writeSlice writes an 8-bit PNG from row-major values
func writeSlice(t *testing.T, path string, width, height int, values []uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i, v := range values {
		img.SetGray(i%width, i/width, color.Gray{Y: v})
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func TestLoadFromFilesAndPlot(t *testing.T) {
	dir := t.TempDir()
	imgDir := filepath.Join(dir, "image")
	maskDir := filepath.Join(dir, "mask")
	for _, d := range []string{imgDir, maskDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}

	writeSlice(t, filepath.Join(imgDir, "slice_1.png"), 2, 2, []uint8{0, 100, 120, 140})
	writeSlice(t, filepath.Join(imgDir, "slice_2.png"), 2, 2, []uint8{160, 180, 200, 250})
	writeSlice(t, filepath.Join(maskDir, "slice_1.png"), 2, 2, []uint8{0, 1, 1, 1})
	writeSlice(t, filepath.Join(maskDir, "slice_2.png"), 2, 2, []uint8{1, 1, 1, 0})

	g := New(4)
	if err := g.Load(imgDir, maskDir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	rng, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if rng.Start != 100 || rng.End != 200 || rng.Step != 25 {
		t.Errorf("Expected [100, 200] step 25, got [%f, %f] step %f", rng.Start, rng.End, rng.Step)
	}
	if rng.ImageMin != 0 || rng.ImageMax != 250 {
		t.Errorf("Expected image range [0, 250], got [%f, %f]", rng.ImageMin, rng.ImageMax)
	}

	plotPath := filepath.Join(dir, "hist.png")
	if err := g.SavePlot(plotPath, rng); err != nil {
		t.Fatalf("SavePlot failed: %v", err)
	}
	if _, err := os.Stat(plotPath); err != nil {
		t.Errorf("Plot not written: %v", err)
	}

	if err := New(4).Load(filepath.Join(dir, "missing"), maskDir); err == nil {
		t.Error("Expected error for missing image")
	}
}
