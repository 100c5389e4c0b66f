package reuse

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/zhangjingcode/FAE/pkg/normalizer"
	"github.com/zhangjingcode/FAE/pkg/selector"
)

// trainingCSV has two informative features and one constant feature
const trainingCSV = `CaseName,label,f1,f2,f3
case1,0,1.0,10.5,7
case2,0,1.2,11.0,7
case3,0,0.8,9.5,7
case4,0,1.1,10.0,7
case5,1,3.0,14.0,7
case6,1,3.3,15.5,7
case7,1,2.9,13.5,7
case8,1,3.1,14.5,7
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return data
}

// TestTrainThenTestReproducesPredictions verifies the model folder round trip
func TestTrainThenTestReproducesPredictions(t *testing.T) {
	for _, tc := range []struct{ method, clf string }{
		{"zero_center", "LR"},
		{"NormUnit", "KNN"},
		{"zero_center_unit", "LR"},
		{"none", "KNN"},
	} {
		t.Run(tc.method+"_"+tc.clf, func(t *testing.T) {
			dir := t.TempDir()
			csvPath := filepath.Join(dir, "train.csv")
			writeFile(t, csvPath, trainingCSV)
			folder := filepath.Join(dir, "model")

			opts := DefaultTrainOptions()
			opts.Normalizer = tc.method
			opts.Classifier = tc.clf
			opts.Params.K = 3

			trained, err := TrainModel(csvPath, folder, opts)
			if err != nil {
				t.Fatalf("TrainModel failed: %v", err)
			}
			if trained.AUC != 1 {
				t.Errorf("Expected training AUC 1 on separable data, got %f", trained.AUC)
			}

			resultDir := filepath.Join(dir, "result")
			tested, err := TestNewData(csvPath, folder, resultDir)
			if err != nil {
				t.Fatalf("TestNewData failed: %v", err)
			}
			if tested != trained {
				t.Errorf("Expected test metrics %+v to equal training metrics %+v", tested, trained)
			}

			trainInfo := readFile(t, filepath.Join(folder, TrainInfoFile))
			testInfo := readFile(t, filepath.Join(resultDir, TestInfoFile))
			if !bytes.Equal(trainInfo, testInfo) {
				t.Errorf("Predictions differ:\ntrain:\n%s\ntest:\n%s", trainInfo, testInfo)
			}
			if !strings.HasPrefix(string(testInfo), "CaseName,Pred,Label\n") {
				t.Errorf("Unexpected test_info header: %q", strings.SplitN(string(testInfo), "\n", 2)[0])
			}

			result := string(readFile(t, filepath.Join(resultDir, TestResultFile)))
			if !strings.Contains(result, "auc,1\n") {
				t.Errorf("Expected auc row in result, got:\n%s", result)
			}
		})
	}
}

func TestLoadTrainInfo(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "train.csv")
	writeFile(t, csvPath, trainingCSV)
	folder := filepath.Join(dir, "model")

	opts := DefaultTrainOptions()
	if _, err := TrainModel(csvPath, folder, opts); err != nil {
		t.Fatalf("TrainModel failed: %v", err)
	}

	info, err := LoadTrainInfo(folder)
	if err != nil {
		t.Fatalf("LoadTrainInfo failed: %v", err)
	}
	if info.Normalizer.Name() != normalizer.ZeroCenter.Name {
		t.Errorf("Expected %s, got %s", normalizer.ZeroCenter.Name, info.Normalizer.Name())
	}
	// the constant feature is removed by normalization
	want := []string{"f1", "f2"}
	if !reflect.DeepEqual(info.SelectedFeatures, want) {
		t.Errorf("Expected selected features %v, got %v", want, info.SelectedFeatures)
	}
	if !reflect.DeepEqual(info.ClassifierFeatures, want) {
		t.Errorf("Expected classifier features %v, got %v", want, info.ClassifierFeatures)
	}
	if info.Classifier.Name() != "LR" {
		t.Errorf("Expected LR, got %s", info.Classifier.Name())
	}
}

func TestTrainModelWithFeatureList(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "train.csv")
	writeFile(t, csvPath, trainingCSV)
	folder := filepath.Join(dir, "model")

	opts := DefaultTrainOptions()
	opts.Features = []string{"f2", "f3"}
	if _, err := TrainModel(csvPath, folder, opts); err != nil {
		t.Fatalf("TrainModel failed: %v", err)
	}

	selected, err := selector.LoadSelectedFeatures(filepath.Join(folder, selector.InfoFile))
	if err != nil {
		t.Fatalf("LoadSelectedFeatures failed: %v", err)
	}
	if !reflect.DeepEqual(selected, []string{"f2"}) {
		t.Errorf("Expected only f2 to be kept, got %v", selected)
	}

	opts.Features = []string{"missing"}
	if _, err := TrainModel(csvPath, filepath.Join(dir, "other"), opts); err == nil {
		t.Error("Expected error for unknown feature")
	}

	opts.Features = []string{"f3"}
	if _, err := TrainModel(csvPath, filepath.Join(dir, "constant"), opts); err == nil {
		t.Error("Expected error when every selected feature is removed")
	}
}

func TestTestNewDataEmptySelection(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "train.csv")
	writeFile(t, csvPath, trainingCSV)
	folder := filepath.Join(dir, "model")

	trained, err := TrainModel(csvPath, folder, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("TrainModel failed: %v", err)
	}

	if err := selector.SaveSelectedFeatures(filepath.Join(folder, selector.InfoFile), nil); err != nil {
		t.Fatalf("SaveSelectedFeatures failed: %v", err)
	}

	tested, err := TestNewData(csvPath, folder, "")
	if err != nil {
		t.Fatalf("TestNewData failed: %v", err)
	}
	if tested.AUC != trained.AUC {
		t.Errorf("Expected AUC %f, got %f", trained.AUC, tested.AUC)
	}
}

func TestTestNewDataWithoutLabels(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "train.csv")
	writeFile(t, csvPath, trainingCSV)
	folder := filepath.Join(dir, "model")
	if _, err := TrainModel(csvPath, folder, DefaultTrainOptions()); err != nil {
		t.Fatalf("TrainModel failed: %v", err)
	}

	newPath := filepath.Join(dir, "new.csv")
	writeFile(t, newPath, "CaseName,f1,f2,f3\nnew1,1.0,10.0,7\nnew2,3.2,15.0,7\n")

	resultDir := filepath.Join(dir, "result")
	m, err := TestNewData(newPath, folder, resultDir)
	if err != nil {
		t.Fatalf("TestNewData failed: %v", err)
	}
	if m.Samples != 2 {
		t.Errorf("Expected 2 samples, got %d", m.Samples)
	}

	lines := strings.Split(strings.TrimSpace(string(readFile(t, filepath.Join(resultDir, TestInfoFile)))), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "new1,") || !strings.HasSuffix(lines[1], ",") {
		t.Errorf("Expected unlabeled row for new1, got %q", lines[1])
	}
	if _, err := os.Stat(filepath.Join(resultDir, TestResultFile)); !os.IsNotExist(err) {
		t.Error("Expected no metrics file for unlabeled data")
	}
}

func TestLoadTrainInfoErrors(t *testing.T) {
	if _, err := LoadTrainInfo(t.TempDir()); !errors.Is(err, ErrNormalizerNotFound) {
		t.Errorf("Expected ErrNormalizerNotFound, got %v", err)
	}

	// a normalizer without a selection file
	folder := t.TempDir()
	writeFile(t, filepath.Join(folder, normalizer.ZeroCenter.ParamsFile), "feature,slop,interception\nf1,1,0\n")
	if _, err := LoadTrainInfo(folder); err == nil {
		t.Error("Expected error for missing feature_select_info.csv")
	}

	// selection present, classifier missing
	if err := selector.SaveSelectedFeatures(filepath.Join(folder, selector.InfoFile), []string{"f1"}); err != nil {
		t.Fatalf("SaveSelectedFeatures failed: %v", err)
	}
	if _, err := LoadTrainInfo(folder); err == nil {
		t.Error("Expected error for missing classifier")
	}
}

// TestTrainModelRetrainReplacesNormalizer verifies that retraining a folder
// with another method leaves only the new parameters behind
func TestTrainModelRetrainReplacesNormalizer(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "train.csv")
	writeFile(t, csvPath, trainingCSV)
	folder := filepath.Join(dir, "model")

	opts := DefaultTrainOptions()
	opts.Normalizer = normalizer.ZeroCenter.Alias
	if _, err := TrainModel(csvPath, folder, opts); err != nil {
		t.Fatalf("First TrainModel failed: %v", err)
	}

	// unit keeps the constant f3 that zero_center drops
	opts.Normalizer = normalizer.Unit.Alias
	trained, err := TrainModel(csvPath, folder, opts)
	if err != nil {
		t.Fatalf("Second TrainModel failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(folder, normalizer.ZeroCenter.ParamsFile)); !os.IsNotExist(err) {
		t.Errorf("Expected stale %s to be removed, got %v", normalizer.ZeroCenter.ParamsFile, err)
	}

	info, err := LoadTrainInfo(folder)
	if err != nil {
		t.Fatalf("LoadTrainInfo failed: %v", err)
	}
	if info.Normalizer.Name() != normalizer.Unit.Name {
		t.Errorf("Expected %s, got %s", normalizer.Unit.Name, info.Normalizer.Name())
	}

	tested, err := TestNewData(csvPath, folder, "")
	if err != nil {
		t.Fatalf("TestNewData failed: %v", err)
	}
	if tested != trained {
		t.Errorf("Expected test metrics %+v to equal training metrics %+v", tested, trained)
	}
}

func TestLoadTrainInfoAmbiguousNormalizer(t *testing.T) {
	folder := t.TempDir()
	writeFile(t, filepath.Join(folder, normalizer.ZeroCenter.ParamsFile), "feature,slop,interception\nf1,1,0\n")
	writeFile(t, filepath.Join(folder, normalizer.Unit.ParamsFile), "feature,slop,interception\nf1,1,0\n")

	if _, err := LoadTrainInfo(folder); !errors.Is(err, ErrAmbiguousNormalizer) {
		t.Errorf("Expected ErrAmbiguousNormalizer, got %v", err)
	}
}

func TestTrainModelRequiresLabels(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "nolabel.csv")
	writeFile(t, csvPath, "CaseName,f1\na,1\nb,2\n")

	if _, err := TrainModel(csvPath, filepath.Join(dir, "model"), DefaultTrainOptions()); err == nil {
		t.Error("Expected error for data without labels")
	}
}
