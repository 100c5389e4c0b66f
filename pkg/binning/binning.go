// Package binning estimates histogram bin edges for radiomics feature
// extraction from the intensities inside a region of interest.
package binning

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/zhangjingcode/FAE/internal/models"
	"github.com/zhangjingcode/FAE/pkg/imageio"
	"github.com/zhangjingcode/FAE/pkg/visualization"
)

var (
	// ErrEmptyROI is returned when no mask voxel equals 1
	ErrEmptyROI = errors.New("roi contains no voxels")

	// ErrInvalidBinCount is returned for a bin count below 1
	ErrInvalidBinCount = errors.New("bin count must be positive")

	// ErrDegenerateRange is returned when the ROI maximum does not exceed the minimum
	ErrDegenerateRange = errors.New("roi maximum must exceed roi minimum")

	// ErrNotLoaded is returned when the ROI range is unknown because no
	// volumes were loaded and no override covers it
	ErrNotLoaded = errors.New("no image loaded")
)

// BinGenerator derives bin edges from the ROI voxels of an image. The
// optional overrides replace the values measured on the loaded volumes.
type BinGenerator struct {
	BinCount int

	Min    *float64
	Max    *float64
	MinROI *float64
	MaxROI *float64

	image *models.Volume
	mask  *models.Volume
	roi   []float64

	// measured or overridden range
	min, max       float64
	minROI, maxROI float64
	loaded         bool

	warnings []string
	log      zerolog.Logger
}

// BinRange is the result of Generate
type BinRange struct {
	// Start and End are the ROI range the edges cover
	Start float64
	End   float64

	// Step is the bin width
	Step float64

	// Edges holds the lower edge of every bin
	Edges []float64

	// ImageMin and ImageMax span the whole image
	ImageMin float64
	ImageMax float64
}

// New creates a generator for binCount bins without overrides
func New(binCount int) *BinGenerator {
	return &BinGenerator{BinCount: binCount, log: zerolog.Nop()}
}

// SetLogger routes mask warnings to log
func (g *BinGenerator) SetLogger(log zerolog.Logger) {
	g.log = log
}

// Load reads the image and mask volumes from disk, see LoadVolumes
func (g *BinGenerator) Load(imagePath, maskPath string) error {
	img, err := imageio.LoadVolume(imagePath)
	if err != nil {
		return fmt.Errorf("error loading image: %w", err)
	}
	mask, err := imageio.LoadVolume(maskPath)
	if err != nil {
		return fmt.Errorf("error loading mask: %w", err)
	}
	return g.LoadVolumes(img, mask)
}

// LoadVolumes collects the image voxels where mask is 1. A mask that is not
// strictly made of 0 and 1 is reported as a warning and loading continues.
func (g *BinGenerator) LoadVolumes(img, mask *models.Volume) error {
	if err := img.CheckSameShape(mask); err != nil {
		return fmt.Errorf("image and mask differ: %w", err)
	}

	g.warnings = nil
	g.image, g.mask, g.roi = nil, nil, nil
	g.loaded = false

	counts := make(map[float64]int)
	for _, v := range mask.Data {
		counts[v]++
	}
	if len(counts) > 2 {
		g.warn("not binary roi: " + formatCounts(counts))
	} else if counts[0] == 0 || counts[1] == 0 {
		g.warn("voxels except 0 or 1 in the roi: " + formatCounts(counts))
	}

	roi := make([]float64, 0, counts[1])
	for i, v := range mask.Data {
		if v == 1 {
			roi = append(roi, img.Data[i])
		}
	}
	if len(roi) == 0 {
		return ErrEmptyROI
	}

	g.image, g.mask, g.roi = img, mask, roi
	g.min = pick(g.Min, floats.Min(img.Data))
	g.max = pick(g.Max, floats.Max(img.Data))
	g.minROI = pick(g.MinROI, floats.Min(roi))
	g.maxROI = pick(g.MaxROI, floats.Max(roi))
	g.loaded = true

	g.log.Debug().
		Int("voxels", len(roi)).
		Float64("min_roi", g.minROI).
		Float64("max_roi", g.maxROI).
		Msg("ROI loaded")
	return nil
}

func pick(override *float64, measured float64) float64 {
	if override != nil {
		return *override
	}
	return measured
}

func (g *BinGenerator) warn(msg string) {
	g.warnings = append(g.warnings, msg)
	g.log.Warn().Msg(msg)
}

// formatCounts renders mask value counts in ascending value order
func formatCounts(counts map[float64]int) string {
	values := make([]float64, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Float64s(values)

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g: %d", v, counts[v])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Warnings returns the mask warnings of the last Load
func (g *BinGenerator) Warnings() []string {
	return append([]string(nil), g.warnings...)
}

// ROIValues returns the image intensities inside the ROI
func (g *BinGenerator) ROIValues() []float64 {
	return g.roi
}

// Image returns the loaded image volume
func (g *BinGenerator) Image() *models.Volume {
	return g.image
}

// Mask returns the loaded mask volume
func (g *BinGenerator) Mask() *models.Volume {
	return g.mask
}

// Generate computes BinCount equally spaced edges from the ROI minimum with a
// step of (maxROI - minROI) / BinCount. Without loaded volumes both ROI
// overrides must be set.
func (g *BinGenerator) Generate() (BinRange, error) {
	if g.BinCount <= 0 {
		return BinRange{}, fmt.Errorf("%w: %d", ErrInvalidBinCount, g.BinCount)
	}

	rng := BinRange{ImageMin: g.min, ImageMax: g.max}
	switch {
	case g.loaded:
		rng.Start, rng.End = g.minROI, g.maxROI
	case g.MinROI != nil && g.MaxROI != nil:
		rng.Start, rng.End = *g.MinROI, *g.MaxROI
		rng.ImageMin, rng.ImageMax = pick(g.Min, rng.Start), pick(g.Max, rng.End)
	default:
		return BinRange{}, ErrNotLoaded
	}

	if rng.End <= rng.Start {
		return BinRange{}, fmt.Errorf("%w: [%g, %g]", ErrDegenerateRange, rng.Start, rng.End)
	}

	rng.Step = (rng.End - rng.Start) / float64(g.BinCount)
	rng.Edges = make([]float64, g.BinCount)
	for i := range rng.Edges {
		rng.Edges[i] = rng.Start + float64(i)*rng.Step
	}
	return rng, nil
}

// SavePlot writes a histogram of the ROI voxels annotated with the ROI range
// and the bin edges of rng
func (g *BinGenerator) SavePlot(path string, rng BinRange) error {
	if !g.loaded {
		return ErrNotLoaded
	}
	return visualization.SaveBinPlot(visualization.BinPlot{
		Title:  "In ROI",
		Values: g.roi,
		MinROI: rng.Start,
		MaxROI: rng.End,
		Edges:  rng.Edges,
	}, path)
}
