// Package normalizer fits and applies per-feature affine normalization to
// feature matrices.
//
// Every method fits two values per feature from the training data, a scale and
// an offset, and maps a value x to (x - offset) / scale. Features whose scale is
// zero carry no information and are removed by Transform. The fitted values
// can be saved to CSV and reloaded to normalize new data exactly like the
// training data was.
package normalizer

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/zhangjingcode/FAE/internal/models"
	"github.com/zhangjingcode/FAE/pkg/dataio"
)

var (
	// ErrNotFitted is returned when transforming with a normalizer that has no parameters
	ErrNotFitted = errors.New("normalizer has not been fitted")

	// ErrFeatureMismatch is returned when a container does not line up with the fitted features
	ErrFeatureMismatch = errors.New("features do not match the fitted normalizer")

	// ErrEmptyData is returned when fitting on a matrix without cases or features
	ErrEmptyData = errors.New("cannot fit normalizer on empty data")
)

// Normalizer holds a method and the parameters fitted with it
type Normalizer struct {
	method Method

	// scale and offset are indexed like features
	scale  []float64
	offset []float64

	// features is nil for parameters loaded from a file without names,
	// in which case containers are aligned by column position
	features []string

	log zerolog.Logger
}

// New creates an unfitted normalizer for the method called name
func New(name string) (*Normalizer, error) {
	m, err := LookupMethod(name)
	if err != nil {
		return nil, err
	}
	return NewWithMethod(m), nil
}

// NewWithMethod creates an unfitted normalizer for m
func NewWithMethod(m Method) *Normalizer {
	return &Normalizer{method: m, log: zerolog.Nop()}
}

// SetLogger routes warnings, such as dropped features, to log
func (n *Normalizer) SetLogger(log zerolog.Logger) {
	n.log = log
}

// Name returns the method name, e.g. Norm0Center
func (n *Normalizer) Name() string {
	return n.method.Name
}

// Description returns the report sentence of the method
func (n *Normalizer) Description() string {
	return n.method.Description
}

// Method returns the strategy of n
func (n *Normalizer) Method() Method {
	return n.method
}

// IsFitted reports whether parameters are available
func (n *Normalizer) IsFitted() bool {
	return n.scale != nil
}

// Scale returns a copy of the fitted scales
func (n *Normalizer) Scale() []float64 {
	return append([]float64(nil), n.scale...)
}

// Offset returns a copy of the fitted offsets
func (n *Normalizer) Offset() []float64 {
	return append([]float64(nil), n.offset...)
}

// Features returns the feature names the parameters belong to, or nil
func (n *Normalizer) Features() []string {
	return append([]string(nil), n.features...)
}

// SetParams installs parameters directly. features may be nil.
func (n *Normalizer) SetParams(scale, offset []float64, features []string) error {
	if len(scale) != len(offset) {
		return fmt.Errorf("got %d scales and %d offsets", len(scale), len(offset))
	}
	if features != nil && len(features) != len(scale) {
		return fmt.Errorf("got %d feature names for %d parameters", len(features), len(scale))
	}
	n.scale = append([]float64{}, scale...)
	n.offset = append([]float64{}, offset...)
	if features != nil {
		n.features = append([]string{}, features...)
	} else {
		n.features = nil
	}
	return nil
}

// Fit computes the scale and offset of every feature of dc
func (n *Normalizer) Fit(dc *models.DataContainer) error {
	rows, cols := dc.Dims()
	if rows == 0 || cols == 0 {
		return ErrEmptyData
	}

	scale := make([]float64, cols)
	offset := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, dc.Array)
		scale[j], offset[j] = n.method.fit(col)
	}

	return n.SetParams(scale, offset, dc.FeatureNames)
}

// Transform returns a normalized copy of dc. Features with zero scale are
// removed and non-finite results are replaced by zero. The fitted
// parameters are left untouched, so Transform can be applied repeatedly.
func (n *Normalizer) Transform(dc *models.DataContainer) (*models.DataContainer, error) {
	scale, offset, err := n.align(dc, false)
	if err != nil {
		return nil, err
	}

	var drop []int
	var dropNames []string
	keptScale := make([]float64, 0, len(scale))
	keptOffset := make([]float64, 0, len(offset))
	for j, s := range scale {
		if s == 0 {
			drop = append(drop, j)
			dropNames = append(dropNames, dc.FeatureNames[j])
			continue
		}
		keptScale = append(keptScale, s)
		keptOffset = append(keptOffset, offset[j])
	}
	if len(drop) > 0 {
		n.log.Warn().
			Str("method", n.method.Name).
			Strs("features", dropNames).
			Msg("removing invariant features with zero scale")
	}

	out := dc.DropFeatures(drop)
	if out.Array == nil {
		return out, nil
	}
	out.Array.Apply(func(i, j int, v float64) float64 {
		r := (v - keptOffset[j]) / keptScale[j]
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return 0
		}
		return r
	}, out.Array)

	return out, nil
}

func keepNonZero(values, scale []float64) []float64 {
	out := make([]float64, 0, len(values))
	for j, v := range values {
		if scale[j] != 0 {
			out = append(out, v)
		}
	}
	return out
}

// InverseTransform maps normalized values back to the original units.
// dc must hold features that survived Transform.
func (n *Normalizer) InverseTransform(dc *models.DataContainer) (*models.DataContainer, error) {
	scale, offset, err := n.align(dc, true)
	if err != nil {
		return nil, err
	}

	out := dc.Clone()
	if out.Array == nil {
		return out, nil
	}
	out.Array.Apply(func(i, j int, v float64) float64 {
		return v*scale[j] + offset[j]
	}, out.Array)
	return out, nil
}

// align returns the scale and offset of every column of dc, in dc's order.
// Named parameters are matched by feature name. Unnamed parameters are
// matched by position; with skipZero the zero-scale features removed by
// Transform are skipped first.
func (n *Normalizer) align(dc *models.DataContainer, skipZero bool) (scale, offset []float64, err error) {
	if !n.IsFitted() {
		return nil, nil, ErrNotFitted
	}
	_, cols := dc.Dims()

	if n.features != nil {
		index := make(map[string]int, len(n.features))
		for i, f := range n.features {
			index[f] = i
		}

		scale = make([]float64, cols)
		offset = make([]float64, cols)
		for j, name := range dc.FeatureNames {
			i, ok := index[name]
			if !ok {
				return nil, nil, fmt.Errorf("%w: %q was not fitted", ErrFeatureMismatch, name)
			}
			scale[j] = n.scale[i]
			offset[j] = n.offset[i]
		}
		return scale, offset, nil
	}

	scale, offset = n.scale, n.offset
	if skipZero {
		scale = keepNonZero(n.scale, n.scale)
		offset = keepNonZero(n.offset, n.scale)
	}
	if len(scale) != cols {
		return nil, nil, fmt.Errorf("%w: data has %d features, normalizer has %d",
			ErrFeatureMismatch, cols, len(scale))
	}
	return append([]float64(nil), scale...), append([]float64(nil), offset...), nil
}

// Run fits on dc (or, with isTest, loads the parameters stored in
// storeFolder) and returns the normalized data. When storeFolder is set the
// normalized matrix is written there, and in training mode the parameters too.
//
// The None method returns the data unchanged.
func (n *Normalizer) Run(dc *models.DataContainer, storeFolder string, isTest bool) (*models.DataContainer, error) {
	if n.method.Name == None.Name {
		if err := n.Fit(dc); err != nil {
			return nil, err
		}
		if storeFolder != "" {
			featureFile := n.method.TrainingFile
			if isTest {
				featureFile = n.method.TestingFile
			}
			if err := dataio.SaveCSV(filepath.Join(storeFolder, featureFile), dc); err != nil {
				return nil, err
			}
			if !isTest {
				if err := n.Save(filepath.Join(storeFolder, n.method.ParamsFile)); err != nil {
					return nil, err
				}
			}
		}
		return dc.Clone(), nil
	}

	if isTest {
		if err := n.Load(filepath.Join(storeFolder, n.method.ParamsFile)); err != nil {
			return nil, fmt.Errorf("failed to load %s parameters: %w", n.method.Name, err)
		}
	} else if err := n.Fit(dc); err != nil {
		return nil, err
	}

	out, err := n.Transform(dc)
	if err != nil {
		return nil, err
	}

	if storeFolder == "" {
		return out, nil
	}

	if isTest {
		return out, dataio.SaveCSV(filepath.Join(storeFolder, n.method.TestingFile), out)
	}
	if err := dataio.SaveCSV(filepath.Join(storeFolder, n.method.TrainingFile), out); err != nil {
		return nil, err
	}
	if err := n.Save(filepath.Join(storeFolder, n.method.ParamsFile)); err != nil {
		return nil, err
	}

	n.log.Info().
		Str("method", n.method.Name).
		Str("folder", storeFolder).
		Msg("stored normalization parameters")
	return out, nil
}
