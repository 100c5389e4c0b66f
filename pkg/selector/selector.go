// Package selector restricts feature matrices to a named feature list and
// persists that list next to a trained model.
package selector

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zhangjingcode/FAE/internal/models"
)

// InfoFile is the file name of the selection record inside a model folder
const InfoFile = "feature_select_info.csv"

const (
	selectedKey = "selected_feature"
	numberKey   = "feature_number"
)

// ErrNoSelection is returned when a selection file has no selected_feature row
var ErrNoSelection = errors.New("no selected_feature row")

// SelectByName returns a copy of dc holding only names, in that order.
// An empty list keeps every feature.
func SelectByName(dc *models.DataContainer, names []string) (*models.DataContainer, error) {
	if len(names) == 0 {
		return dc.Clone(), nil
	}
	return dc.SelectFeatures(names)
}

// ParseList splits a comma separated feature list, dropping blanks
func ParseList(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

// SaveSelectedFeatures writes the selection record:
//
//	feature_number,2
//	selected_feature,original_shape_Volume,original_firstorder_Mean
func SaveSelectedFeatures(path string, names []string) error {
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
	records := [][]string{
		{numberKey, strconv.Itoa(len(names))},
		append([]string{selectedKey}, names...),
	}
	if err := writer.WriteAll(records); err != nil {
		file.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return file.Close()
}

// LoadSelectedFeatures reads the names of the selected_feature row of path.
// An existing row with no names yields an empty, non-nil list.
func LoadSelectedFeatures(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return nil, fmt.Errorf("%s: %w", path, ErrNoSelection)
		}
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", path, err)
		}
		if len(rec) > 0 && strings.TrimSpace(rec[0]) == selectedKey {
			names := make([]string, 0, len(rec)-1)
			for _, name := range rec[1:] {
				if name = strings.TrimSpace(name); name != "" {
					names = append(names, name)
				}
			}
			return names, nil
		}
	}
}
