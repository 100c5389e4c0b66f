// Package reuse loads a trained model folder and applies it to new feature
// matrices, and trains model folders in the same layout.
//
// A model folder holds:
//
//	<method>_normalization_training.csv   normalization parameters
//	feature_select_info.csv               the selected features
//	classifier.yaml                       the trained classifier
package reuse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zhangjingcode/FAE/internal/models"
	"github.com/zhangjingcode/FAE/pkg/classifier"
	"github.com/zhangjingcode/FAE/pkg/dataio"
	"github.com/zhangjingcode/FAE/pkg/metrics"
	"github.com/zhangjingcode/FAE/pkg/normalizer"
	"github.com/zhangjingcode/FAE/pkg/selector"
)

var (
	// ErrNormalizerNotFound is returned when a model folder holds no normalization file
	ErrNormalizerNotFound = errors.New("no normalization file in model folder")

	// ErrAmbiguousNormalizer is returned when a model folder holds more than one
	ErrAmbiguousNormalizer = errors.New("several normalization files in model folder")
)

// Result file names
const (
	TrainInfoFile   = "train_info.csv"
	TrainResultFile = "train_result.csv"
	TestInfoFile    = "test_info.csv"
	TestResultFile  = "test_result.csv"
)

const normalizationSuffix = "_normalization_training.csv"

// TrainInfo is everything needed to score new cases with a trained model
type TrainInfo struct {
	Folder string

	Normalizer *normalizer.Normalizer

	// SelectedFeatures is empty when the selection file lists no feature
	SelectedFeatures []string

	Classifier classifier.Classifier

	// ClassifierFeatures is the column order the classifier was trained with
	ClassifierFeatures []string
}

// Runner runs the model workflows and reports through its logger
type Runner struct {
	log zerolog.Logger
}

// NewRunner creates a runner logging to log
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{log: log}
}

// LoadTrainInfo loads a model folder without logging
func LoadTrainInfo(folder string) (*TrainInfo, error) {
	return NewRunner(zerolog.Nop()).LoadTrainInfo(folder)
}

// TestNewData scores csvPath with a model folder without logging
func TestNewData(csvPath, folder, resultDir string) (metrics.Metrics, error) {
	return NewRunner(zerolog.Nop()).TestNewData(csvPath, folder, resultDir)
}

// TrainModel trains a model folder without logging
func TrainModel(csvPath, folder string, opts TrainOptions) (metrics.Metrics, error) {
	return NewRunner(zerolog.Nop()).TrainModel(csvPath, folder, opts)
}

// normalizationFiles lists the normalization parameter files of folder
func normalizationFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	var found []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, normalizationSuffix) || name == normalizer.None.ParamsFile {
			found = append(found, name)
		}
	}
	return found, nil
}

// findNormalizationFile returns the normalization parameter file of folder.
// A folder holding several is ambiguous.
func findNormalizationFile(folder string) (string, error) {
	found, err := normalizationFiles(folder)
	if err != nil {
		return "", err
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNormalizerNotFound, folder)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("%w: %s holds %s", ErrAmbiguousNormalizer, folder, strings.Join(found, ", "))
}

// removeNormalizationFiles deletes the normalization parameter files of folder
func removeNormalizationFiles(folder string) error {
	found, err := normalizationFiles(folder)
	if err != nil {
		return err
	}
	for _, name := range found {
		if err := os.Remove(filepath.Join(folder, name)); err != nil {
			return fmt.Errorf("error removing stale normalizer: %w", err)
		}
	}
	return nil
}

// LoadTrainInfo reads the normalizer, the feature selection and the
// classifier stored in folder
func (r *Runner) LoadTrainInfo(folder string) (*TrainInfo, error) {
	name, err := findNormalizationFile(folder)
	if err != nil {
		return nil, err
	}
	norm, err := normalizer.LoadParams(filepath.Join(folder, name))
	if err != nil {
		return nil, fmt.Errorf("error loading normalizer: %w", err)
	}
	norm.SetLogger(r.log)

	selected, err := selector.LoadSelectedFeatures(filepath.Join(folder, selector.InfoFile))
	if err != nil {
		return nil, fmt.Errorf("error loading selected features: %w", err)
	}
	if len(selected) == 0 {
		r.log.Warn().Str("folder", folder).Msg("no selected features, using all features")
	}

	clf, features, err := classifier.Load(folder)
	if err != nil {
		return nil, err
	}

	r.log.Debug().
		Str("normalizer", norm.Name()).
		Int("features", len(selected)).
		Str("classifier", clf.Name()).
		Msg("loaded model folder")

	return &TrainInfo{
		Folder:             folder,
		Normalizer:         norm,
		SelectedFeatures:   selected,
		Classifier:         clf,
		ClassifierFeatures: features,
	}, nil
}

// Predict selects, normalizes and scores dc. It returns the probability of
// class 1 for every case together with the data the classifier saw.
func (info *TrainInfo) Predict(dc *models.DataContainer) ([]float64, *models.DataContainer, error) {
	names := info.SelectedFeatures
	if len(names) == 0 {
		names = info.ClassifierFeatures
	}

	selected, err := selector.SelectByName(dc, names)
	if err != nil {
		return nil, nil, err
	}

	normalized, err := info.Normalizer.Transform(selected)
	if err != nil {
		return nil, nil, err
	}

	if len(info.ClassifierFeatures) > 0 {
		if normalized, err = normalized.SelectFeatures(info.ClassifierFeatures); err != nil {
			return nil, nil, err
		}
	}

	pred, err := info.Classifier.PredictProba(normalized.Array)
	if err != nil {
		return nil, nil, err
	}
	return pred, normalized, nil
}

// TestNewData applies the model of folder to the cases of csvPath and
// estimates the metrics against their labels. With resultDir set the
// per-case predictions and the metrics are written there. Data without a
// label column is scored but yields no metrics.
func (r *Runner) TestNewData(csvPath, folder, resultDir string) (metrics.Metrics, error) {
	info, err := r.LoadTrainInfo(folder)
	if err != nil {
		return metrics.Metrics{}, err
	}

	dc, err := dataio.LoadCSV(csvPath)
	if err != nil {
		return metrics.Metrics{}, fmt.Errorf("error loading %s: %w", csvPath, err)
	}

	pred, scored, err := info.Predict(dc)
	if err != nil {
		return metrics.Metrics{}, err
	}

	var m metrics.Metrics
	if scored.HasLabel {
		if m, err = metrics.Estimate(pred, scored.Labels); err != nil {
			return metrics.Metrics{}, err
		}
		r.log.Info().
			Int("cases", m.Samples).
			Float64("auc", m.AUC).
			Float64("accuracy", m.Accuracy).
			Msg("tested model")
	} else {
		m.Samples = len(pred)
		r.log.Warn().Str("file", csvPath).Msg("data has no label column, metrics are not estimated")
	}

	if resultDir == "" {
		return m, nil
	}
	if err := os.MkdirAll(resultDir, 0755); err != nil {
		return m, fmt.Errorf("error creating result directory: %w", err)
	}
	if err := writeCaseInfo(filepath.Join(resultDir, TestInfoFile), scored, pred); err != nil {
		return m, err
	}
	if scored.HasLabel {
		if err := writeMetrics(filepath.Join(resultDir, TestResultFile), m); err != nil {
			return m, err
		}
	}
	return m, nil
}
