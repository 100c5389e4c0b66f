// Package imageio loads image and ROI mask volumes from 2D slice images.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/zhangjingcode/FAE/internal/models"
)

// LoadVolume reads a volume from path. A directory is read as a stack of
// slices; a single image file becomes a volume of depth 1.
func LoadVolume(path string) (*models.Volume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return LoadSlices(path)
	}

	img, err := loadImage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	bounds := img.Bounds()
	return &models.Volume{
		Data:   ImageToIntensity(img),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Depth:  1,
	}, nil
}

// LoadSlices loads every JPEG and PNG file of dir as one slice of a volume.
// Slices are ordered by the number embedded in their filename so that
// "slice_2.png" comes before "slice_10.png".
func LoadSlices(dir string) (*models.Volume, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if isImageFile(file.Name()) {
			imageFiles = append(imageFiles, file.Name())
		}
	}

	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no JPG or PNG images found in %s", dir)
	}

	sort.SliceStable(imageFiles, func(i, j int) bool {
		numI := extractNumber(imageFiles[i])
		numJ := extractNumber(imageFiles[j])
		if numI != numJ {
			return numI < numJ
		}
		return imageFiles[i] < imageFiles[j]
	})

	var vol *models.Volume
	var scale intensityScale
	for z, filename := range imageFiles {
		img, err := loadImage(filepath.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", filename, err)
		}

		bounds := img.Bounds()
		if vol == nil {
			vol = models.NewVolume(bounds.Dx(), bounds.Dy(), len(imageFiles))
			scale = scaleOf(img)
		} else if bounds.Dx() != vol.Width || bounds.Dy() != vol.Height {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d",
				filename, bounds.Dx(), bounds.Dy(), vol.Width, vol.Height)
		} else if s := scaleOf(img); s != scale {
			return nil, fmt.Errorf("slice %s is %s, expected %s like the first slice", filename, s, scale)
		}

		copy(vol.Data[z*vol.Width*vol.Height:], ImageToIntensity(img))
	}

	return vol, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// extractNumber extracts the digits of a filename as one number
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}

	if digits.Len() > 0 {
		num, err := strconv.Atoi(digits.String())
		if err == nil {
			return num
		}
	}
	return 0
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// intensityScale is the range ImageToIntensity maps an image onto
type intensityScale string

const (
	scaleGray8  intensityScale = "8-bit gray"
	scaleGray16 intensityScale = "16-bit gray"
	scaleColor  intensityScale = "color"
)

func scaleOf(img image.Image) intensityScale {
	switch img.(type) {
	case *image.Gray:
		return scaleGray8
	case *image.Gray16:
		return scaleGray16
	}
	return scaleColor
}

// ImageToIntensity converts an image to raw gray intensities in row-major order.
// 8-bit gray images keep their 0-255 range and 16-bit gray images their
// 0-65535 range; any other model is converted to 16-bit gray.
func ImageToIntensity(img image.Image) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := make([]float64, width*height)

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				result[y*width+x] = float64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				result[y*width+x] = float64(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				result[y*width+x] = float64(g.Y)
			}
		}
	}

	return result
}
