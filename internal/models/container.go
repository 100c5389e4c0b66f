// Package models holds the plain data types shared by the fae packages.
package models

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrUnknownFeature is returned when a feature name is not part of a container
var ErrUnknownFeature = errors.New("unknown feature")

// DataContainer is a feature matrix with its case names, feature names and labels.
// Rows are cases and columns are features.
type DataContainer struct {
	// Array holds the feature values. It is nil when the matrix has no rows
	// or no columns, since gonum does not allow empty dense matrices.
	Array *mat.Dense

	// CaseNames has one entry per row
	CaseNames []string

	// FeatureNames has one entry per column
	FeatureNames []string

	// Labels has one entry per row, 0 or 1 for binary problems
	Labels []int

	// HasLabel is false when the source file carried no label column
	HasLabel bool
}

// NewDataContainer builds a container from row-major values.
// rows must all have len(featureNames) entries.
func NewDataContainer(caseNames, featureNames []string, rows [][]float64, labels []int) (*DataContainer, error) {
	if len(rows) != len(caseNames) {
		return nil, fmt.Errorf("got %d rows for %d cases", len(rows), len(caseNames))
	}

	dc := &DataContainer{
		CaseNames:    append([]string(nil), caseNames...),
		FeatureNames: append([]string(nil), featureNames...),
		HasLabel:     labels != nil,
	}

	if labels == nil {
		dc.Labels = make([]int, len(rows))
	} else {
		dc.Labels = append([]int(nil), labels...)
	}

	data := make([]float64, 0, len(rows)*len(featureNames))
	for i, row := range rows {
		if len(row) != len(featureNames) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(featureNames))
		}
		data = append(data, row...)
	}
	dc.Array = NewDense(len(rows), len(featureNames), data)

	if err := dc.Validate(); err != nil {
		return nil, err
	}
	return dc, nil
}

// NewDense wraps mat.NewDense, returning nil for empty shapes
func NewDense(r, c int, data []float64) *mat.Dense {
	if r == 0 || c == 0 {
		return nil
	}
	return mat.NewDense(r, c, data)
}

// Dims returns the number of cases and features
func (dc *DataContainer) Dims() (rows, cols int) {
	return len(dc.CaseNames), len(dc.FeatureNames)
}

// Validate checks that names, labels and the array agree in size
func (dc *DataContainer) Validate() error {
	rows, cols := dc.Dims()
	if len(dc.Labels) != rows {
		return fmt.Errorf("got %d labels for %d cases", len(dc.Labels), rows)
	}

	if dc.Array == nil {
		if rows != 0 && cols != 0 {
			return fmt.Errorf("missing array for %dx%d container", rows, cols)
		}
	} else if r, c := dc.Array.Dims(); r != rows || c != cols {
		return fmt.Errorf("array is %dx%d but container names describe %dx%d", r, c, rows, cols)
	}

	seen := make(map[string]struct{}, cols)
	for _, name := range dc.FeatureNames {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate feature name %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy
func (dc *DataContainer) Clone() *DataContainer {
	out := &DataContainer{
		CaseNames:    append([]string(nil), dc.CaseNames...),
		FeatureNames: append([]string(nil), dc.FeatureNames...),
		Labels:       append([]int(nil), dc.Labels...),
		HasLabel:     dc.HasLabel,
	}
	if dc.Array != nil {
		out.Array = mat.DenseCopyOf(dc.Array)
	}
	return out
}

// FeatureIndex returns the column of name, or -1
func (dc *DataContainer) FeatureIndex(name string) int {
	for i, f := range dc.FeatureNames {
		if f == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the values of the named feature
func (dc *DataContainer) Column(name string) ([]float64, error) {
	j := dc.FeatureIndex(name)
	if j < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	if dc.Array == nil {
		return []float64{}, nil
	}
	return mat.Col(nil, j, dc.Array), nil
}

// Row returns a copy of the feature values of case i
func (dc *DataContainer) Row(i int) []float64 {
	if dc.Array == nil {
		return nil
	}
	return mat.Row(nil, i, dc.Array)
}

// SelectFeatures returns a new container whose columns follow names
func (dc *DataContainer) SelectFeatures(names []string) (*DataContainer, error) {
	indices := make([]int, len(names))
	for k, name := range names {
		j := dc.FeatureIndex(name)
		if j < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
		indices[k] = j
	}
	return dc.selectColumns(indices), nil
}

// DropFeatures returns a new container without the given columns
func (dc *DataContainer) DropFeatures(indices []int) *DataContainer {
	drop := make(map[int]struct{}, len(indices))
	for _, j := range indices {
		drop[j] = struct{}{}
	}

	keep := make([]int, 0, len(dc.FeatureNames))
	for j := range dc.FeatureNames {
		if _, ok := drop[j]; !ok {
			keep = append(keep, j)
		}
	}
	return dc.selectColumns(keep)
}

func (dc *DataContainer) selectColumns(indices []int) *DataContainer {
	rows, _ := dc.Dims()
	out := &DataContainer{
		CaseNames:    append([]string(nil), dc.CaseNames...),
		FeatureNames: make([]string, len(indices)),
		Labels:       append([]int(nil), dc.Labels...),
		HasLabel:     dc.HasLabel,
	}
	for k, j := range indices {
		out.FeatureNames[k] = dc.FeatureNames[j]
	}

	out.Array = NewDense(rows, len(indices), nil)
	if out.Array == nil {
		return out
	}
	for k, j := range indices {
		out.Array.SetCol(k, mat.Col(nil, j, dc.Array))
	}
	return out
}
