package visualization

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoValues is returned when there is nothing to plot
var ErrNoValues = errors.New("no values to plot")

// HistogramBars is the number of histogram bars drawn for the ROI voxels
const HistogramBars = 10

// BinPlot describes a histogram of ROI intensities annotated with the ROI
// range and the generated bin edges
type BinPlot struct {
	Title  string
	Values []float64

	// MinROI and MaxROI are drawn as solid black lines
	MinROI float64
	MaxROI float64

	// Edges are drawn as dashed blue lines
	Edges []float64
}

// SaveBinPlot renders bp to filename. The image format follows the file
// extension (png, jpg, svg, pdf, ...).
func SaveBinPlot(bp BinPlot, filename string) error {
	if len(bp.Values) == 0 {
		return ErrNoValues
	}

	p := plot.New()
	p.Title.Text = bp.Title
	if p.Title.Text == "" {
		p.Title.Text = "In ROI"
	}
	p.X.Label.Text = "Intensity"
	p.Y.Label.Text = "Voxels"

	h, err := plotter.NewHist(plotter.Values(bp.Values), HistogramBars)
	if err != nil {
		return fmt.Errorf("error building histogram: %w", err)
	}
	h.FillColor = color.RGBA{R: 226, G: 74, B: 51, A: 255}
	p.Add(h)

	top := 0.0
	for _, b := range h.Bins {
		if b.Weight > top {
			top = b.Weight
		}
	}

	for _, x := range []float64{bp.MinROI, bp.MaxROI} {
		l, err := verticalLine(x, top)
		if err != nil {
			return err
		}
		l.LineStyle.Width = vg.Points(3)
		l.LineStyle.Color = color.Black
		p.Add(l)
	}

	for _, x := range bp.Edges {
		l, err := verticalLine(x, top)
		if err != nil {
			return err
		}
		l.LineStyle.Width = vg.Points(1)
		l.LineStyle.Color = color.RGBA{B: 255, A: 255}
		l.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(l)
	}

	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating plot directory: %w", err)
		}
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("could not save plot: %w", err)
	}
	return nil
}

func verticalLine(x, top float64) (*plotter.Line, error) {
	l, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: top}})
	if err != nil {
		return nil, fmt.Errorf("error building line at %g: %w", x, err)
	}
	return l, nil
}
