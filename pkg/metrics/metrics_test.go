package metrics

import (
	"errors"
	"math"
	"testing"
)

func TestAUC(t *testing.T) {
	tests := []struct {
		name   string
		pred   []float64
		labels []int
		want   float64
	}{
		{"perfect", []float64{0.1, 0.2, 0.8, 0.9}, []int{0, 0, 1, 1}, 1},
		{"inverted", []float64{0.9, 0.8, 0.2, 0.1}, []int{0, 0, 1, 1}, 0},
		{"ties", []float64{0.5, 0.5, 0.5, 0.5}, []int{0, 1, 0, 1}, 0.5},
		// 7 of the 8 positive/negative pairs are ranked correctly
		{"mixed", []float64{0, 3, 5, 6, 7.5, 8}, []int{0, 1, 0, 1, 1, 1}, 0.875},
		{"unsorted input", []float64{8, 0, 6, 3, 7.5, 5}, []int{1, 0, 1, 1, 1, 0}, 0.875},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AUC(tt.pred, tt.labels); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Expected AUC %f, got %f", tt.want, got)
			}
		})
	}
}

func TestEstimatePerfectSeparation(t *testing.T) {
	pred := []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}
	labels := []int{0, 0, 0, 1, 1, 1}

	m, err := Estimate(pred, labels)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}

	if m.Samples != 6 || m.Positives != 3 || m.Negatives != 3 {
		t.Errorf("Unexpected counts %d/%d/%d", m.Samples, m.Positives, m.Negatives)
	}
	if m.AUC != 1 {
		t.Errorf("Expected AUC 1, got %f", m.AUC)
	}
	if m.AUCLower != 1 || m.AUCUpper != 1 {
		t.Errorf("Expected degenerate interval [1, 1], got [%f, %f]", m.AUCLower, m.AUCUpper)
	}
	if m.Cutoff != 0.7 {
		t.Errorf("Expected cutoff 0.7, got %f", m.Cutoff)
	}
	if m.YoudenIndex != 1 {
		t.Errorf("Expected Youden index 1, got %f", m.YoudenIndex)
	}
	for name, v := range map[string]float64{
		"accuracy":    m.Accuracy,
		"sensitivity": m.Sensitivity,
		"specificity": m.Specificity,
		"ppv":         m.PPV,
		"npv":         m.NPV,
	} {
		if v != 1 {
			t.Errorf("Expected %s 1, got %f", name, v)
		}
	}
}

func TestEstimateInterval(t *testing.T) {
	pred := []float64{0.1, 0.4, 0.35, 0.8, 0.2, 0.6, 0.55, 0.9, 0.3, 0.7}
	labels := []int{0, 0, 1, 1, 0, 1, 0, 1, 0, 1}

	m, err := Estimate(pred, labels)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if m.AUCLower > m.AUC || m.AUCUpper < m.AUC {
		t.Errorf("AUC %f lies outside its interval [%f, %f]", m.AUC, m.AUCLower, m.AUCUpper)
	}
	if m.AUCLower < 0 || m.AUCUpper > 1 {
		t.Errorf("Interval [%f, %f] outside [0, 1]", m.AUCLower, m.AUCUpper)
	}

	again, err := Estimate(pred, labels)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if again != m {
		t.Error("Estimate is not deterministic")
	}
}

func TestEstimateSingleClass(t *testing.T) {
	m, err := Estimate([]float64{0.2, 0.9}, []int{1, 1})
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if !m.SingleClass {
		t.Error("Expected SingleClass to be set")
	}
	if m.AUC != 0.5 {
		t.Errorf("Expected AUC 0.5, got %f", m.AUC)
	}
	if m.Specificity != 0 {
		t.Errorf("Expected specificity 0 without negatives, got %f", m.Specificity)
	}
}

func TestEstimateErrors(t *testing.T) {
	if _, err := Estimate(nil, nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected ErrEmpty, got %v", err)
	}
	if _, err := Estimate([]float64{0.1}, []int{0, 1}); !errors.Is(err, ErrLength) {
		t.Errorf("Expected ErrLength, got %v", err)
	}
	for _, labels := range [][]int{{-1, 1, -1, 1}, {0, 1, 2, 1}} {
		if _, err := Estimate([]float64{0.1, 0.9, 0.2, 0.8}, labels); !errors.Is(err, ErrLabels) {
			t.Errorf("Expected ErrLabels for %v, got %v", labels, err)
		}
	}
}

// TestBootstrapSkipsSingleClassResamples verifies the interval stays finite
// when many resamples of a small set lose a class
func TestBootstrapSkipsSingleClassResamples(t *testing.T) {
	pred := []float64{0.1, 0.9, 0.2, 0.8}
	for _, labels := range [][]int{{0, 1, 0, 1}, {-1, 1, -1, 1}} {
		lower, upper := bootstrapAUC(pred, labels, 200, 1)
		if math.IsNaN(lower) || math.IsNaN(upper) {
			t.Errorf("Expected a finite interval for %v, got [%f, %f]", labels, lower, upper)
		}
		if lower != 1 || upper != 1 {
			t.Errorf("Expected [1, 1] on separable data %v, got [%f, %f]", labels, lower, upper)
		}
	}
}

func TestConfuse(t *testing.T) {
	cm := Confuse([]float64{0.9, 0.6, 0.4, 0.2, 0.5}, []int{1, 0, 1, 0, 1}, 0.5)
	want := ConfusionMatrix{TP: 2, FP: 1, TN: 1, FN: 1}
	if cm != want {
		t.Errorf("Expected %+v, got %+v", want, cm)
	}
	if got := cm.Accuracy(); got != 0.6 {
		t.Errorf("Expected accuracy 0.6, got %f", got)
	}
}

func TestRowsOrder(t *testing.T) {
	rows := Metrics{AUC: 0.75}.Rows()
	if rows[0].Name != "sample_number" {
		t.Errorf("Expected sample_number first, got %s", rows[0].Name)
	}
	found := false
	for _, r := range rows {
		if r.Name == "auc" && r.Value == 0.75 {
			found = true
		}
	}
	if !found {
		t.Error("auc row missing")
	}
}
