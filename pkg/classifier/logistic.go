package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is a binary logistic regression trained with
// full-batch gradient descent and an optional L2 penalty
type LogisticRegression struct {
	Weights []float64 `yaml:"weights"`
	Bias    float64   `yaml:"bias"`

	LearningRate float64 `yaml:"learningRate"`
	Epochs       int     `yaml:"epochs"`
	L2           float64 `yaml:"l2"`
}

// NewLogisticRegression creates an untrained model
func NewLogisticRegression(lr float64, epochs int, l2 float64) *LogisticRegression {
	return &LogisticRegression{
		LearningRate: lr,
		Epochs:       epochs,
		L2:           l2,
	}
}

// Name implements Classifier
func (m *LogisticRegression) Name() string { return "LR" }

// Fit implements Classifier
func (m *LogisticRegression) Fit(x *mat.Dense, y []int) error {
	rows, cols, err := checkTrainingData(x, y)
	if err != nil {
		return err
	}

	w := mat.NewVecDense(cols, nil)
	grad := mat.NewVecDense(cols, nil)
	residual := mat.NewVecDense(rows, nil)
	bias := 0.0
	n := float64(rows)

	for ep := 0; ep < m.Epochs; ep++ {
		// residual = sigmoid(Xw + b) - y
		residual.MulVec(x, w)
		for i := 0; i < rows; i++ {
			residual.SetVec(i, sigmoid(residual.AtVec(i)+bias)-float64(y[i]))
		}

		grad.MulVec(x.T(), residual)
		grad.ScaleVec(1/n, grad)
		if m.L2 > 0 {
			grad.AddScaledVec(grad, m.L2, w)
		}

		bias -= m.LearningRate * mat.Sum(residual) / n
		w.AddScaledVec(w, -m.LearningRate, grad)
	}

	m.Weights = make([]float64, cols)
	for j := range m.Weights {
		m.Weights[j] = w.AtVec(j)
	}
	m.Bias = bias
	return nil
}

// PredictProba implements Classifier
func (m *LogisticRegression) PredictProba(x *mat.Dense) ([]float64, error) {
	if m.Weights == nil {
		return nil, ErrNotTrained
	}
	if x == nil {
		return nil, fmt.Errorf("%w: no data", ErrDimension)
	}
	rows, cols := x.Dims()
	if cols != len(m.Weights) {
		return nil, fmt.Errorf("%w: model has %d weights, data has %d features", ErrDimension, len(m.Weights), cols)
	}

	z := mat.NewVecDense(rows, nil)
	z.MulVec(x, mat.NewVecDense(cols, append([]float64(nil), m.Weights...)))

	out := make([]float64, rows)
	for i := range out {
		out[i] = sigmoid(z.AtVec(i) + m.Bias)
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
