// Package dataio reads and writes feature matrix CSV files.
//
// The layout is the one produced by radiomics extraction: the first column
// holds the case name, an optional "label" column holds the class and every
// other column is a numeric feature.
//
//	CaseName,label,original_firstorder_Mean,original_shape_Volume
//	case001,1,12.5,3401
package dataio

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zhangjingcode/FAE/internal/models"
)

// LabelColumn is the header name of the class column
const LabelColumn = "label"

// CaseColumn is the header written for the case name column
const CaseColumn = "CaseName"

// LoadCSV reads a feature matrix from path
func LoadCSV(path string) (*models.DataContainer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dc, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return dc, nil
}

// ReadCSV parses a feature matrix from r
func ReadCSV(r io.Reader) (*models.DataContainer, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty feature file")
	}
	if err != nil {
		return nil, err
	}
	if len(header) < 1 {
		return nil, fmt.Errorf("header has no columns")
	}
	// strip a UTF-8 BOM left by spreadsheet exports
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	labelCol := -1
	var featureNames []string
	var featureCols []int
	for i, name := range header[1:] {
		col := i + 1
		if strings.EqualFold(strings.TrimSpace(name), LabelColumn) {
			labelCol = col
			continue
		}
		featureNames = append(featureNames, name)
		featureCols = append(featureCols, col)
	}

	var caseNames []string
	var rows [][]float64
	var labels []int
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, err
		}

		caseNames = append(caseNames, rec[0])

		row := make([]float64, len(featureCols))
		for k, col := range featureCols {
			v, err := parseCell(rec[col])
			if err != nil {
				return nil, fmt.Errorf("line %d, feature %q: %w", line, header[col], err)
			}
			row[k] = v
		}
		rows = append(rows, row)

		if labelCol >= 0 {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[labelCol]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, label: %w", line, err)
			}
			labels = append(labels, int(v))
		}
	}

	if labelCol >= 0 && labels == nil {
		labels = []int{}
	}
	return models.NewDataContainer(caseNames, featureNames, rows, labels)
}

// parseCell accepts the float formats written by numpy and pandas,
// with empty cells treated as missing
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "null":
		return math.NaN(), nil
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

// SaveCSV writes dc to path, creating the parent directory if needed
func SaveCSV(path string, dc *models.DataContainer) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteCSV(file, dc); err != nil {
		file.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return file.Close()
}

// WriteCSV writes dc in the layout read by ReadCSV, label first
func WriteCSV(w io.Writer, dc *models.DataContainer) error {
	writer := csv.NewWriter(w)

	header := []string{CaseColumn}
	if dc.HasLabel {
		header = append(header, LabelColumn)
	}
	header = append(header, dc.FeatureNames...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, name := range dc.CaseNames {
		rec := make([]string, 0, len(header))
		rec = append(rec, name)
		if dc.HasLabel {
			rec = append(rec, strconv.Itoa(dc.Labels[i]))
		}
		for _, v := range dc.Row(i) {
			rec = append(rec, FormatFloat(v))
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// FormatFloat renders v with the shortest representation that round trips
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
