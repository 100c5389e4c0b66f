// Package metrics estimates binary classification metrics from predicted
// probabilities.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrEmpty is returned when there are no predictions
	ErrEmpty = errors.New("no predictions")

	// ErrLength is returned when predictions and labels differ in length
	ErrLength = errors.New("predictions and labels differ in length")

	// ErrLabels is returned when a label is neither 0 nor 1
	ErrLabels = errors.New("labels must be 0 or 1")
)

// BootstrapRounds is the number of resamples used for the AUC confidence interval
const BootstrapRounds = 1000

// Metrics summarizes the performance of a binary classifier
type Metrics struct {
	Samples   int
	Positives int
	Negatives int

	AUC      float64
	AUCLower float64
	AUCUpper float64

	// Cutoff maximizes the Youden index; cases with a prediction at or
	// above it are called positive
	Cutoff      float64
	YoudenIndex float64

	Accuracy    float64
	Sensitivity float64
	Specificity float64
	PPV         float64
	NPV         float64

	// SingleClass is set when only one class is present, in which case the
	// AUC and its interval are fixed at 0.5
	SingleClass bool
}

// Estimate computes the metrics of pred against labels (0 or 1)
func Estimate(pred []float64, labels []int) (Metrics, error) {
	if len(pred) != len(labels) {
		return Metrics{}, fmt.Errorf("%w: %d predictions, %d labels", ErrLength, len(pred), len(labels))
	}
	if len(pred) == 0 {
		return Metrics{}, ErrEmpty
	}

	m := Metrics{Samples: len(pred)}
	for i, l := range labels {
		switch l {
		case 1:
			m.Positives++
		case 0:
			m.Negatives++
		default:
			return Metrics{}, fmt.Errorf("%w: case %d has label %d", ErrLabels, i, l)
		}
	}

	if m.Positives == 0 || m.Negatives == 0 {
		m.SingleClass = true
		m.AUC, m.AUCLower, m.AUCUpper = 0.5, 0.5, 0.5
	} else {
		m.AUC = AUC(pred, labels)
		m.AUCLower, m.AUCUpper = bootstrapAUC(pred, labels, BootstrapRounds, 42)
	}

	m.Cutoff, m.YoudenIndex = youdenCutoff(pred, labels)
	cm := Confuse(pred, labels, m.Cutoff)
	m.Accuracy = cm.Accuracy()
	m.Sensitivity = ratio(cm.TP, cm.TP+cm.FN)
	m.Specificity = ratio(cm.TN, cm.TN+cm.FP)
	m.PPV = ratio(cm.TP, cm.TP+cm.FP)
	m.NPV = ratio(cm.TN, cm.TN+cm.FN)
	return m, nil
}

// AUC returns the area under the ROC curve. Both classes must be present.
func AUC(pred []float64, labels []int) float64 {
	y := append([]float64(nil), pred...)
	classes := make([]bool, len(labels))
	for i, l := range labels {
		classes[i] = l == 1
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// bootstrapAUC returns the 95% interval of the AUC over resampled cases.
// Resamples that lose one of the classes are skipped.
func bootstrapAUC(pred []float64, labels []int, rounds int, seed int64) (lower, upper float64) {
	rng := rand.New(rand.NewSource(seed))
	n := len(pred)

	aucs := make([]float64, 0, rounds)
	samplePred := make([]float64, n)
	sampleLabels := make([]int, n)
	for r := 0; r < rounds; r++ {
		positives := 0
		for i := 0; i < n; i++ {
			k := rng.Intn(n)
			samplePred[i] = pred[k]
			sampleLabels[i] = labels[k]
			if labels[k] == 1 {
				positives++
			}
		}
		if positives == 0 || positives == n {
			continue
		}
		aucs = append(aucs, AUC(samplePred, sampleLabels))
	}

	if len(aucs) == 0 {
		auc := AUC(pred, labels)
		return auc, auc
	}

	sort.Float64s(aucs)
	return stat.Quantile(0.025, stat.Empirical, aucs, nil),
		stat.Quantile(0.975, stat.Empirical, aucs, nil)
}

// youdenCutoff returns the candidate cutoff with the largest
// sensitivity + specificity - 1. Ties keep the lowest cutoff.
func youdenCutoff(pred []float64, labels []int) (cutoff, youden float64) {
	candidates := append([]float64(nil), pred...)
	sort.Float64s(candidates)

	best := math.Inf(-1)
	cutoff = 0.5
	for i, c := range candidates {
		if i > 0 && c == candidates[i-1] {
			continue
		}
		cm := Confuse(pred, labels, c)
		j := ratio(cm.TP, cm.TP+cm.FN) + ratio(cm.TN, cm.TN+cm.FP) - 1
		if j > best {
			best, cutoff = j, c
		}
	}
	return cutoff, best
}

// ConfusionMatrix counts outcomes at a cutoff
type ConfusionMatrix struct {
	TP, FP, TN, FN int
}

// Confuse classifies pred at cutoff and counts the outcomes against labels
func Confuse(pred []float64, labels []int, cutoff float64) ConfusionMatrix {
	var cm ConfusionMatrix
	for i, p := range pred {
		positive := p >= cutoff
		switch {
		case positive && labels[i] == 1:
			cm.TP++
		case positive:
			cm.FP++
		case labels[i] == 1:
			cm.FN++
		default:
			cm.TN++
		}
	}
	return cm
}

// Accuracy is the fraction of correct calls
func (cm ConfusionMatrix) Accuracy() float64 {
	return ratio(cm.TP+cm.TN, cm.TP+cm.TN+cm.FP+cm.FN)
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Row is one named metric value
type Row struct {
	Name  string
	Value float64
}

// Rows lists the metrics in report order
func (m Metrics) Rows() []Row {
	return []Row{
		{"sample_number", float64(m.Samples)},
		{"positive_number", float64(m.Positives)},
		{"negative_number", float64(m.Negatives)},
		{"auc", m.AUC},
		{"auc_ci_lower", m.AUCLower},
		{"auc_ci_upper", m.AUCUpper},
		{"cutoff", m.Cutoff},
		{"youden_index", m.YoudenIndex},
		{"accuracy", m.Accuracy},
		{"sensitivity", m.Sensitivity},
		{"specificity", m.Specificity},
		{"positive_predictive_value", m.PPV},
		{"negative_predictive_value", m.NPV},
	}
}
