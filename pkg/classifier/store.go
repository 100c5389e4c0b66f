package classifier

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ModelFile is the file name of a saved classifier inside a model folder
const ModelFile = "classifier.yaml"

// modelFile is the YAML envelope of a saved classifier
type modelFile struct {
	Name         string   `yaml:"name"`
	FeatureNames []string `yaml:"featureNames"`

	LogisticRegression *LogisticRegression `yaml:"logisticRegression,omitempty"`
	KNN                *KNN                `yaml:"knn,omitempty"`
}

// Save writes c and the feature order it was trained with to folder
func Save(folder string, c Classifier, features []string) error {
	env := modelFile{Name: c.Name(), FeatureNames: features}
	switch m := c.(type) {
	case *LogisticRegression:
		env.LogisticRegression = m
	case *KNN:
		env.KNN = m
	default:
		return fmt.Errorf("%w: cannot save %T", ErrUnknownClassifier, c)
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("error creating model folder: %w", err)
	}

	data, err := yaml.Marshal(&env)
	if err != nil {
		return fmt.Errorf("error marshaling classifier: %w", err)
	}

	if err := os.WriteFile(filepath.Join(folder, ModelFile), data, 0644); err != nil {
		return fmt.Errorf("error writing classifier: %w", err)
	}
	return nil
}

// Load reads the classifier saved in folder together with its feature order
func Load(folder string) (Classifier, []string, error) {
	data, err := os.ReadFile(filepath.Join(folder, ModelFile))
	if err != nil {
		return nil, nil, fmt.Errorf("error reading classifier: %w", err)
	}

	var env modelFile
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("error parsing classifier: %w", err)
	}

	switch {
	case env.LogisticRegression != nil:
		return env.LogisticRegression, env.FeatureNames, nil
	case env.KNN != nil:
		if len(env.KNN.Points) != len(env.KNN.Labels) {
			return nil, nil, fmt.Errorf("%w: %d points but %d labels",
				ErrDimension, len(env.KNN.Points), len(env.KNN.Labels))
		}
		if len(env.KNN.Points) > 0 {
			env.KNN.buildTree()
		}
		return env.KNN, env.FeatureNames, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownClassifier, env.Name)
}
