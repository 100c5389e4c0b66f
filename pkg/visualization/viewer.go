package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"github.com/zhangjingcode/FAE/internal/models"
)

// Viewer exports slices of an image volume, optionally restricted to an ROI
type Viewer struct {
	volume *models.Volume
	mask   *models.Volume

	// intensity window mapped onto the 16-bit gray range
	low  float64
	high float64
}

// NewViewer creates a viewer whose intensity window spans the volume range
func NewViewer(volume *models.Volume) *Viewer {
	v := &Viewer{volume: volume}
	if len(volume.Data) > 0 {
		v.low = floats.Min(volume.Data)
		v.high = floats.Max(volume.Data)
	}
	return v
}

// SetMask restricts exported slices to voxels where mask is 1; other voxels
// are rendered black
func (v *Viewer) SetMask(mask *models.Volume) error {
	if mask != nil {
		if err := v.volume.CheckSameShape(mask); err != nil {
			return err
		}
	}
	v.mask = mask
	return nil
}

// SetWindow sets the intensity range mapped to black and white
func (v *Viewer) SetWindow(low, high float64) {
	v.low, v.high = low, high
}

// gray maps the voxel at idx onto the intensity window
func (v *Viewer) gray(idx int) color.Gray16 {
	if v.mask != nil && v.mask.Data[idx] != 1 {
		return color.Gray16{}
	}
	if v.high <= v.low {
		return color.Gray16{}
	}
	scaled := (v.volume.Data[idx] - v.low) / (v.high - v.low)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, scaled*65535)))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	vol := v.volume
	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= vol.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, vol.Width)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Depth, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				img.SetGray16(z, y, v.gray(vol.Index(position, y, z)))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= vol.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, vol.Height)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Width, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, z, v.gray(vol.Index(x, position, z)))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= vol.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, vol.Depth)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Width, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, y, v.gray(vol.Index(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// Region is an axis aligned box of voxels
type Region struct {
	X, Y, Z             int
	SizeX, SizeY, SizeZ int
}

// ROIBounds returns the bounding box of the voxels where mask is 1. ok is
// false when the mask is empty.
func ROIBounds(mask *models.Volume) (r Region, ok bool) {
	minX, minY, minZ := mask.Width, mask.Height, mask.Depth
	maxX, maxY, maxZ := -1, -1, -1
	for z := 0; z < mask.Depth; z++ {
		for y := 0; y < mask.Height; y++ {
			for x := 0; x < mask.Width; x++ {
				if mask.At(x, y, z) != 1 {
					continue
				}
				minX, maxX = min(minX, x), max(maxX, x)
				minY, maxY = min(minY, y), max(maxY, y)
				minZ, maxZ = min(minZ, z), max(maxZ, z)
			}
		}
	}
	if maxX < 0 {
		return Region{}, false
	}
	return Region{
		X: minX, Y: minY, Z: minZ,
		SizeX: maxX - minX + 1, SizeY: maxY - minY + 1, SizeZ: maxZ - minZ + 1,
	}, true
}

// ExtractRegion copies a subregion of the volume into a new viewer that
// keeps the intensity window and the corresponding part of the mask
func (v *Viewer) ExtractRegion(r Region) (*Viewer, error) {
	if r.X < 0 || r.Y < 0 || r.Z < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if r.SizeX <= 0 || r.SizeY <= 0 || r.SizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	vol := v.volume
	if r.X+r.SizeX > vol.Width || r.Y+r.SizeY > vol.Height || r.Z+r.SizeZ > vol.Depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	crop := func(src *models.Volume) *models.Volume {
		dst := models.NewVolume(r.SizeX, r.SizeY, r.SizeZ)
		for z := 0; z < r.SizeZ; z++ {
			for y := 0; y < r.SizeY; y++ {
				for x := 0; x < r.SizeX; x++ {
					dst.Set(x, y, z, src.At(r.X+x, r.Y+y, r.Z+z))
				}
			}
		}
		return dst
	}

	out := &Viewer{volume: crop(vol), low: v.low, high: v.high}
	if v.mask != nil {
		out.mask = crop(v.mask)
	}
	return out, nil
}

// Volume returns the volume shown by the viewer
func (v *Viewer) Volume() *models.Volume {
	return v.volume
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
// and returns the number of files written
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) (int, error) {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.volume.Width
	case "y", "Y":
		maxPos = v.volume.Height
	case "z", "Z":
		maxPos = v.volume.Depth
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}

	return maxPos, nil
}
