package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrUnknownNormalizer is returned by New for names that match no method
var ErrUnknownNormalizer = errors.New("unknown normalization method")

// Method describes one normalization strategy: how the per-feature scale and
// offset are fitted, and where Run stores its results.
type Method struct {
	// Name is the short name used in pipeline folder names, e.g. Norm0Center
	Name string

	// Alias is the configuration spelling, e.g. zero_center
	Alias string

	// ParamsFile is the file the fitted parameters are stored in
	ParamsFile string

	// TrainingFile and TestingFile receive the normalized feature matrices
	TrainingFile string
	TestingFile  string

	// Description is the sentence used in generated reports
	Description string

	fit func(col []float64) (scale, offset float64)
}

// Methods lists the supported strategies
var (
	None = Method{
		Name:         "NormNone",
		Alias:        "none",
		ParamsFile:   "non_normalization.csv",
		TrainingFile: "non_normalized_feature.csv",
		TestingFile:  "non_normalized_testing_feature.csv",
		Description:  "No normalization was applied to the feature matrix. ",
		fit: func(col []float64) (float64, float64) {
			return 1, 0
		},
	}

	Unit = Method{
		Name:         "NormUnit",
		Alias:        "unit",
		ParamsFile:   "unit_normalization_training.csv",
		TrainingFile: "unit_normalized_training_feature.csv",
		TestingFile:  "unit_normalized_testing_feature.csv",
		Description: "Each feature vector was divided by its L2 norm, " +
			"mapping it to a unit vector. ",
		fit: func(col []float64) (float64, float64) {
			return floats.Norm(col, 2), 0
		},
	}

	ZeroCenter = Method{
		Name:         "Norm0Center",
		Alias:        "zero_center",
		ParamsFile:   "zero_center_normalization_training.csv",
		TrainingFile: "zero_center_normalized_training_feature.csv",
		TestingFile:  "zero_center_normalized_testing_feature.csv",
		Description: "For each feature vector the mean value and the standard deviation were " +
			"calculated. The mean was subtracted from the vector and the result divided by " +
			"the standard deviation, giving every feature zero mean and unit standard deviation. ",
		fit: func(col []float64) (float64, float64) {
			mean, std := stat.PopMeanStdDev(col, nil)
			return std, mean
		},
	}

	ZeroCenterUnit = Method{
		Name:         "Norm0CenterUnit",
		Alias:        "zero_center_unit",
		ParamsFile:   "zero_center_unit_normalization_training.csv",
		TrainingFile: "zero_center_unit_normalized_training_feature.csv",
		TestingFile:  "zero_center_unit_normalized_testing_feature.csv",
		Description: "Each feature vector was subtracted by its mean value " +
			"and divided by its length. ",
		fit: func(col []float64) (float64, float64) {
			return floats.Norm(col, 2), stat.Mean(col, nil)
		},
	}
)

// Methods returns the four strategies in report order
func Methods() []Method {
	return []Method{None, Unit, ZeroCenter, ZeroCenterUnit}
}

// LookupMethod finds a method by Name or Alias, ignoring case
func LookupMethod(name string) (Method, error) {
	name = strings.TrimSpace(name)
	for _, m := range Methods() {
		if strings.EqualFold(name, m.Name) || strings.EqualFold(name, m.Alias) {
			return m, nil
		}
	}
	return Method{}, fmt.Errorf("%w: %q", ErrUnknownNormalizer, name)
}

// methodForParamsFile guesses the method that wrote a parameter file
func methodForParamsFile(base string) (Method, bool) {
	for _, m := range Methods() {
		if strings.EqualFold(base, m.ParamsFile) {
			return m, true
		}
	}
	return Method{}, false
}
