package reuse

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhangjingcode/FAE/pkg/classifier"
	"github.com/zhangjingcode/FAE/pkg/dataio"
	"github.com/zhangjingcode/FAE/pkg/metrics"
	"github.com/zhangjingcode/FAE/pkg/normalizer"
	"github.com/zhangjingcode/FAE/pkg/selector"
)

// TrainOptions configures TrainModel
type TrainOptions struct {
	// Normalizer is a method name or alias, NormNone when empty
	Normalizer string

	// Features restricts the model to these features; empty keeps all
	Features []string

	// Classifier is LR or KNN, LR when empty
	Classifier string
	Params     classifier.Params
}

// DefaultTrainOptions returns zero-center normalization with logistic regression
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Normalizer: normalizer.ZeroCenter.Name,
		Classifier: "LR",
		Params:     classifier.DefaultParams(),
	}
}

// TrainModel fits a normalizer and a classifier on the cases of csvPath and
// stores them in folder, in the layout LoadTrainInfo reads. The metrics are
// estimated on the training data and written to folder as well.
//
// Normalization is fitted on every feature; features removed as invariant
// are left out of the stored selection. Parameter files of an earlier
// training in folder are replaced.
func (r *Runner) TrainModel(csvPath, folder string, opts TrainOptions) (metrics.Metrics, error) {
	dc, err := dataio.LoadCSV(csvPath)
	if err != nil {
		return metrics.Metrics{}, fmt.Errorf("error loading %s: %w", csvPath, err)
	}
	if !dc.HasLabel {
		return metrics.Metrics{}, fmt.Errorf("%s has no %s column", csvPath, dataio.LabelColumn)
	}
	if _, err := selector.SelectByName(dc, opts.Features); err != nil {
		return metrics.Metrics{}, err
	}

	method := opts.Normalizer
	if method == "" {
		method = normalizer.None.Name
	}
	norm, err := normalizer.New(method)
	if err != nil {
		return metrics.Metrics{}, err
	}
	norm.SetLogger(r.log)

	if err := os.MkdirAll(folder, 0755); err != nil {
		return metrics.Metrics{}, fmt.Errorf("error creating model folder: %w", err)
	}
	if err := removeNormalizationFiles(folder); err != nil {
		return metrics.Metrics{}, err
	}

	normalized, err := norm.Run(dc, folder, false)
	if err != nil {
		return metrics.Metrics{}, fmt.Errorf("error normalizing: %w", err)
	}

	features := opts.Features
	if len(features) > 0 {
		kept := make([]string, 0, len(features))
		for _, f := range features {
			if normalized.FeatureIndex(f) < 0 {
				r.log.Warn().Str("feature", f).Msg("selected feature was removed by normalization")
				continue
			}
			kept = append(kept, f)
		}
		if len(kept) == 0 {
			return metrics.Metrics{}, fmt.Errorf("every selected feature was removed by normalization")
		}
		features = kept
	} else {
		features = normalized.FeatureNames
	}

	selected, err := selector.SelectByName(normalized, features)
	if err != nil {
		return metrics.Metrics{}, err
	}
	if _, cols := selected.Dims(); cols == 0 {
		return metrics.Metrics{}, fmt.Errorf("no features left to train on")
	}

	name := opts.Classifier
	if name == "" {
		name = "LR"
	}
	clf, err := classifier.New(name, opts.Params)
	if err != nil {
		return metrics.Metrics{}, err
	}
	if err := clf.Fit(selected.Array, selected.Labels); err != nil {
		return metrics.Metrics{}, fmt.Errorf("error training %s: %w", clf.Name(), err)
	}

	if err := selector.SaveSelectedFeatures(filepath.Join(folder, selector.InfoFile), selected.FeatureNames); err != nil {
		return metrics.Metrics{}, err
	}
	if err := classifier.Save(folder, clf, selected.FeatureNames); err != nil {
		return metrics.Metrics{}, err
	}

	pred, err := clf.PredictProba(selected.Array)
	if err != nil {
		return metrics.Metrics{}, err
	}
	m, err := metrics.Estimate(pred, selected.Labels)
	if err != nil {
		return metrics.Metrics{}, err
	}

	if err := writeCaseInfo(filepath.Join(folder, TrainInfoFile), selected, pred); err != nil {
		return m, err
	}
	if err := writeMetrics(filepath.Join(folder, TrainResultFile), m); err != nil {
		return m, err
	}

	r.log.Info().
		Str("normalizer", norm.Name()).
		Str("classifier", clf.Name()).
		Int("features", len(selected.FeatureNames)).
		Float64("auc", m.AUC).
		Str("folder", folder).
		Msg("trained model")
	return m, nil
}
