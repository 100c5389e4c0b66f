package normalizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zhangjingcode/FAE/pkg/dataio"
)

// Column names of the parameter file. They match the files written by the
// FAE desktop tool so existing model folders stay loadable.
const (
	featureColumn = "feature"
	scaleColumn   = "slop"
	offsetColumn  = "interception"
)

// Save writes the fitted parameters to path as CSV:
//
//	feature,slop,interception
//	original_firstorder_Mean,2.5,10.1
func (n *Normalizer) Save(path string) error {
	if !n.IsFitted() {
		return ErrNotFitted
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	records := make([][]string, 0, len(n.scale)+1)
	indexColumn := featureColumn
	if n.features == nil {
		indexColumn = ""
	}
	records = append(records, []string{indexColumn, scaleColumn, offsetColumn})
	for i := range n.scale {
		name := strconv.Itoa(i)
		if n.features != nil {
			name = n.features[i]
		}
		records = append(records, []string{
			name,
			dataio.FormatFloat(n.scale[i]),
			dataio.FormatFloat(n.offset[i]),
		})
	}

	if err := writer.WriteAll(records); err != nil {
		file.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return file.Close()
}

// Load replaces the parameters of n with the ones stored at path. Files
// written by pandas, with an unnamed integer index column, load without
// feature names and align by position.
func (n *Normalizer) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scale, offset, features, err := readParams(file)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	return n.SetParams(scale, offset, features)
}

// LoadParams loads a parameter file into a new normalizer. The method is
// inferred from the file name; files with other names get a method named
// after the file, which transforms identically.
func LoadParams(path string) (*Normalizer, error) {
	base := filepath.Base(path)
	m, ok := methodForParamsFile(base)
	if !ok {
		m = Method{
			Name:       strings.TrimSuffix(base, filepath.Ext(base)),
			ParamsFile: base,
		}
	}

	n := NewWithMethod(m)
	if err := n.Load(path); err != nil {
		return nil, err
	}
	return n, nil
}

func readParams(r io.Reader) (scale, offset []float64, features []string, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("missing header: %w", err)
	}

	scaleCol, offsetCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case scaleColumn:
			scaleCol = i
		case offsetColumn:
			offsetCol = i
		}
	}
	if scaleCol < 0 || offsetCol < 0 {
		return nil, nil, nil, fmt.Errorf("header %v lacks %s and %s columns", header, scaleColumn, offsetColumn)
	}
	named := scaleCol != 0 && offsetCol != 0 &&
		strings.EqualFold(strings.TrimSpace(header[0]), featureColumn)

	scale = []float64{}
	offset = []float64{}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, err
		}

		s, err := strconv.ParseFloat(strings.TrimSpace(rec[scaleCol]), 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bad %s value: %w", scaleColumn, err)
		}
		o, err := strconv.ParseFloat(strings.TrimSpace(rec[offsetCol]), 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bad %s value: %w", offsetColumn, err)
		}
		scale = append(scale, s)
		offset = append(offset, o)
		if named {
			features = append(features, rec[0])
		}
	}

	if named && features == nil {
		features = []string{}
	}
	return scale, offset, features, nil
}
