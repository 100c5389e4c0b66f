// Package classifier provides the binary classifiers used to score
// normalized feature matrices, and their persistence in a model folder.
package classifier

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnknownClassifier is returned for classifier names that are not supported
	ErrUnknownClassifier = errors.New("unknown classifier")

	// ErrNotTrained is returned when predicting with a classifier that has not been fitted
	ErrNotTrained = errors.New("classifier has not been trained")

	// ErrDimension is returned when the data does not fit the classifier
	ErrDimension = errors.New("dimension mismatch")

	// ErrLabels is returned for labels other than 0 and 1
	ErrLabels = errors.New("labels must be 0 or 1")
)

// Classifier is a binary classifier over feature matrices
type Classifier interface {
	// Name is the short name used in model folders, e.g. LR
	Name() string

	// Fit trains on x (cases by features) with labels y in {0, 1}
	Fit(x *mat.Dense, y []int) error

	// PredictProba returns the probability of class 1 for every row of x
	PredictProba(x *mat.Dense) ([]float64, error)
}

// Params collects the hyperparameters of all classifiers
type Params struct {
	// LearningRate is the gradient descent step of logistic regression
	LearningRate float64 `yaml:"learningRate"`

	// Epochs is the number of full-batch gradient steps
	Epochs int `yaml:"epochs"`

	// L2 is the ridge penalty of logistic regression
	L2 float64 `yaml:"l2"`

	// K is the neighbour count of KNN
	K int `yaml:"k"`
}

// DefaultParams returns the parameters used when nothing is configured
func DefaultParams() Params {
	return Params{
		LearningRate: 0.1,
		Epochs:       2000,
		L2:           0.001,
		K:            5,
	}
}

// New creates an untrained classifier by name (LR or KNN)
func New(name string, p Params) (Classifier, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LR", "LOGISTICREGRESSION":
		return NewLogisticRegression(p.LearningRate, p.Epochs, p.L2), nil
	case "KNN":
		return NewKNN(p.K), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownClassifier, name)
}

// PredictLabels thresholds probabilities into class labels
func PredictLabels(proba []float64, threshold float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= threshold {
			out[i] = 1
		}
	}
	return out
}

func checkTrainingData(x *mat.Dense, y []int) (rows, cols int, err error) {
	if x == nil {
		return 0, 0, fmt.Errorf("%w: no training data", ErrDimension)
	}
	rows, cols = x.Dims()
	if rows != len(y) {
		return 0, 0, fmt.Errorf("%w: %d rows but %d labels", ErrDimension, rows, len(y))
	}
	for _, label := range y {
		if label != 0 && label != 1 {
			return 0, 0, fmt.Errorf("%w: got %d", ErrLabels, label)
		}
	}
	return rows, cols, nil
}
