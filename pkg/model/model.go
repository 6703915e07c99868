// Package model loads the pre-fitted classifier, scaler and feature list from disk.
// The classifier is opaque to the rest of the application: it only exposes class labels,
// hard predictions and per-class probabilities.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	KindRandomForest       = "random_forest"
	KindGradientBoosting   = "gradient_boosting"
	KindLogisticRegression = "logistic_regression"

	DefaultModelFile       = "model.json"
	DefaultScalerFile      = "scaler.json"
	DefaultFeatureListFile = "feature_list.txt"
)

var (
	ErrUnknownKind     = errors.New("unknown model kind")
	ErrNoFeatureList   = errors.New("no feature list: provide feature_list.txt or model feature_names")
	ErrFeatureMismatch = errors.New("artifact feature counts do not match")

	// Kinds lists the supported classifier kinds.
	Kinds = []string{KindRandomForest, KindGradientBoosting, KindLogisticRegression}
)

// Classifier is a pre-fitted multi-class classifier.
type Classifier interface {
	// Kind returns the classifier family.
	Kind() string
	// Classes returns the class labels in probability column order.
	Classes() []int
	// NumFeatures returns the width of the input vectors the model was fitted with.
	NumFeatures() int
	// Predict returns the most probable class label for every row.
	Predict(X [][]float64) []int
	// PredictProba returns one probability distribution per row, in Classes order.
	PredictProba(X [][]float64) [][]float64
}

// Artifacts is everything needed to score a table.
type Artifacts struct {
	Model    Classifier
	Scaler   Scaler
	Features []string
	Dir      string
}

// Info is a serializable description of the loaded artifacts.
type Info struct {
	Kind     string   `json:"kind" yaml:"kind"`
	Classes  []int    `json:"classes" yaml:"classes"`
	Scaler   string   `json:"scaler" yaml:"scaler"`
	Features []string `json:"features" yaml:"features"`
	Dir      string   `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// Info describes the artifacts.
func (a *Artifacts) Info() *Info {
	return &Info{
		Kind:     a.Model.Kind(),
		Classes:  a.Model.Classes(),
		Scaler:   a.Scaler.Kind(),
		Features: a.Features,
		Dir:      a.Dir,
	}
}

// Paths points at the individual artifact files.
type Paths struct {
	Model       string
	Scaler      string
	FeatureList string
}

// DefaultPaths returns the conventional artifact file locations inside dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Model:       filepath.Join(dir, DefaultModelFile),
		Scaler:      filepath.Join(dir, DefaultScalerFile),
		FeatureList: filepath.Join(dir, DefaultFeatureListFile),
	}
}

// Load reads and validates the artifacts from dir using the default file names.
func Load(dir string) (*Artifacts, error) {
	a, err := LoadPaths(DefaultPaths(dir))
	if err != nil {
		return nil, err
	}
	a.Dir = dir
	return a, nil
}

// LoadPaths reads and validates the artifacts at the given paths.
// The feature list file is optional when the model document carries feature_names.
func LoadPaths(p Paths) (*Artifacts, error) {
	doc, err := readDocument(p.Model)
	if err != nil {
		return nil, err
	}

	m, err := doc.build()
	if err != nil {
		return nil, fmt.Errorf("building %s model from %s: %w", doc.Kind, p.Model, err)
	}

	s, err := ReadScaler(p.Scaler)
	if err != nil {
		return nil, err
	}

	features, err := ReadFeatureList(p.FeatureList)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if len(doc.FeatureNames) == 0 {
			return nil, ErrNoFeatureList
		}
		slog.Debug("feature list file not found, using model feature names", "path", p.FeatureList)
		features = doc.FeatureNames
	case err != nil:
		return nil, err
	case len(doc.FeatureNames) > 0 && !equal(features, doc.FeatureNames):
		slog.Warn("feature list differs from model feature names, using feature list",
			"path", p.FeatureList, "features", len(features), "model_features", len(doc.FeatureNames))
	}

	if err := validate(m, s, features); err != nil {
		return nil, err
	}

	slog.Debug("model artifacts loaded",
		"kind", m.Kind(),
		"classes", len(m.Classes()),
		"features", len(features),
		"scaler", s.Kind())

	return &Artifacts{
		Model:    m,
		Scaler:   s,
		Features: features,
	}, nil
}

func validate(m Classifier, s Scaler, features []string) error {
	if len(features) == 0 {
		return ErrNoFeatureList
	}
	if n := m.NumFeatures(); n > 0 && n != len(features) {
		return fmt.Errorf("%w: model expects %d, feature list has %d",
			ErrFeatureMismatch, n, len(features))
	}
	if b, ok := m.(featureBound); ok && b.maxFeatureIndex() >= len(features) {
		return fmt.Errorf("%w: model splits on feature %d, feature list has %d",
			ErrFeatureMismatch, b.maxFeatureIndex(), len(features))
	}
	if s.NumFeatures() != len(features) {
		return fmt.Errorf("%w: scaler expects %d, feature list has %d",
			ErrFeatureMismatch, s.NumFeatures(), len(features))
	}
	seen := make(map[string]bool, len(features))
	for _, f := range features {
		if seen[f] {
			return fmt.Errorf("duplicate feature in feature list: %s", f)
		}
		seen[f] = true
	}
	return nil
}

// featureBound is implemented by tree models that may not declare their input width.
type featureBound interface {
	maxFeatureIndex() int
}

// document is the on-disk JSON model representation shared by all kinds.
type document struct {
	Kind         string      `json:"kind"`
	Classes      []int       `json:"classes"`
	FeatureNames []string    `json:"feature_names,omitempty"`
	NumFeatures  int         `json:"n_features,omitempty"`
	Trees        []Tree      `json:"trees,omitempty"`
	BaseScore    float64     `json:"base_score,omitempty"`
	Coef         [][]float64 `json:"coef,omitempty"`
	Intercept    []float64   `json:"intercept,omitempty"`
}

func readDocument(path string) (*document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model file %s: %w", path, err)
	}
	defer f.Close()

	return decodeDocument(f, path)
}

func decodeDocument(r io.Reader, name string) (*document, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding model file %s: %w", name, err)
	}
	if len(doc.Classes) < 2 {
		return nil, fmt.Errorf("model %s must declare at least two classes", name)
	}
	if doc.NumFeatures == 0 {
		doc.NumFeatures = len(doc.FeatureNames)
	}
	return &doc, nil
}

func (d *document) build() (Classifier, error) {
	switch d.Kind {
	case KindRandomForest:
		return newForest(d)
	case KindGradientBoosting:
		return newBooster(d)
	case KindLogisticRegression:
		return newLogistic(d)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func predictFromProba(classes []int, proba [][]float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = classes[argmax(p)]
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
