package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// KNN scores a case by the fraction of positive cases among its K nearest
// training cases in feature space
type KNN struct {
	K      int         `yaml:"k"`
	Points [][]float64 `yaml:"points"`
	Labels []int       `yaml:"labels"`

	tree *kdtree.Tree
}

// NewKNN creates an untrained model. k below 1 is treated as 1.
func NewKNN(k int) *KNN {
	if k < 1 {
		k = 1
	}
	return &KNN{K: k}
}

// Name implements Classifier
func (m *KNN) Name() string { return "KNN" }

// Fit implements Classifier; it stores the training cases and indexes them
func (m *KNN) Fit(x *mat.Dense, y []int) error {
	rows, _, err := checkTrainingData(x, y)
	if err != nil {
		return err
	}

	m.Points = make([][]float64, rows)
	for i := range m.Points {
		m.Points[i] = mat.Row(nil, i, x)
	}
	m.Labels = append([]int(nil), y...)
	m.buildTree()
	return nil
}

func (m *KNN) buildTree() {
	points := make(casePoints, len(m.Points))
	for i, p := range m.Points {
		points[i] = casePoint{coords: p, label: m.Labels[i]}
	}
	m.tree = kdtree.New(points, false)
}

// PredictProba implements Classifier
func (m *KNN) PredictProba(x *mat.Dense) ([]float64, error) {
	if len(m.Points) == 0 {
		return nil, ErrNotTrained
	}
	if x == nil {
		return nil, fmt.Errorf("%w: no data", ErrDimension)
	}
	rows, cols := x.Dims()
	if dims := len(m.Points[0]); cols != dims {
		return nil, fmt.Errorf("%w: model has %d features, data has %d", ErrDimension, dims, cols)
	}
	if m.tree == nil {
		m.buildTree()
	}

	k := m.K
	if k > len(m.Points) {
		k = len(m.Points)
	}

	out := make([]float64, rows)
	for i := range out {
		keeper := kdtree.NewNKeeper(k)
		m.tree.NearestSet(keeper, casePoint{coords: mat.Row(nil, i, x), label: -1})

		positives, found := 0, 0
		for _, item := range keeper.Heap {
			// skip the sentinel of an unfilled keeper
			if item.Comparable == nil {
				continue
			}
			found++
			if item.Comparable.(casePoint).label == 1 {
				positives++
			}
		}
		if found > 0 {
			out[i] = float64(positives) / float64(found)
		}
	}
	return out, nil
}

// casePoint is a training case in feature space
type casePoint struct {
	coords []float64
	label  int
}

// Compare implements the kdtree.Comparable interface
func (p casePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coords[d] - c.(casePoint).coords[d]
}

// Dims implements the kdtree.Comparable interface
func (p casePoint) Dims() int { return len(p.coords) }

// Distance returns the squared Euclidean distance
func (p casePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(casePoint)
	sum := 0.0
	for i, v := range p.coords {
		d := v - q.coords[i]
		sum += d * d
	}
	return sum
}

// casePoints satisfies kdtree.Interface
type casePoints []casePoint

func (p casePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p casePoints) Len() int                              { return len(p) }
func (p casePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p casePoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(casePlane{casePoints: p, Dim: d}, kdtree.MedianOfRandoms(casePlane{casePoints: p, Dim: d}, 100))
}

// casePlane implements sort.Interface and kdtree.SortSlicer for casePoints
type casePlane struct {
	casePoints
	kdtree.Dim
}

func (p casePlane) Less(i, j int) bool {
	return p.casePoints[i].coords[p.Dim] < p.casePoints[j].coords[p.Dim]
}

func (p casePlane) Slice(start, end int) kdtree.SortSlicer {
	return casePlane{casePoints: p.casePoints[start:end], Dim: p.Dim}
}

func (p casePlane) Swap(i, j int) {
	p.casePoints[i], p.casePoints[j] = p.casePoints[j], p.casePoints[i]
}
