package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDir = "testdata"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func TestLoad(t *testing.T) {
	a, err := Load(testDir)
	require.NoError(t, err)
	assert.Equal(t, KindRandomForest, a.Model.Kind())
	assert.Equal(t, []int{0, 1, 2, 3}, a.Model.Classes())
	assert.Equal(t, []string{"wall_thickness", "hyaline_fraction", "collagen__pct_"}, a.Features)
	assert.Equal(t, ScalerStandard, a.Scaler.Kind())

	info := a.Info()
	assert.Equal(t, testDir, info.Dir)
	assert.Len(t, info.Features, 3)
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestForest_PredictProba(t *testing.T) {
	a, err := Load(testDir)
	require.NoError(t, err)

	X := a.Scaler.Transform([][]float64{
		{1, 0.25, 5},
		{4, 1.0, 20},
		{3, 1.0, 5},
		{1, 0.25, 20},
	})

	proba := a.Model.PredictProba(X)
	require.Len(t, proba, 4)
	assert.InDeltaSlice(t, []float64{0.7, 0.15, 0.15, 0}, proba[0], 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0.05, 0.25, 0.7}, proba[1], 1e-9)
	assert.InDeltaSlice(t, []float64{0.1, 0.65, 0.1, 0.15}, proba[2], 1e-9)
	assert.InDeltaSlice(t, []float64{0.35, 0.1, 0.55, 0}, proba[3], 1e-9)

	for _, p := range proba {
		sum := 0.0
		for _, v := range p {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	assert.Equal(t, []int{0, 3, 1, 2}, a.Model.Predict(X))
}

func TestBooster(t *testing.T) {
	doc := `{
		"kind": "gradient_boosting",
		"classes": [0, 1, 2],
		"feature_names": ["a", "b"],
		"base_score": 0.5,
		"trees": [
			{"class": 0, "nodes": [{"feature": 0, "threshold": 1, "left": 1, "right": 2}, {"left": -1, "value": [2]}, {"left": -1, "value": [-1]}]},
			{"class": 1, "nodes": [{"feature": 1, "threshold": 1, "left": 1, "right": 2}, {"left": -1, "value": [-1]}, {"left": -1, "value": [2]}]},
			{"class": 2, "nodes": [{"left": -1, "value": [0]}]}
		]
	}`
	d, err := decodeDocument(strings.NewReader(doc), "test")
	require.NoError(t, err)
	m, err := d.build()
	require.NoError(t, err)
	assert.Equal(t, KindGradientBoosting, m.Kind())
	assert.Equal(t, 2, m.NumFeatures())

	// a < 1 goes left: class 0 margin wins
	assert.Equal(t, []int{0}, m.Predict([][]float64{{0, 0}}))
	// a == 1 goes right with strict splits, b >= 1 boosts class 1
	assert.Equal(t, []int{1}, m.Predict([][]float64{{1, 1}}))

	p := m.PredictProba([][]float64{{0, 0}})[0]
	assert.Len(t, p, 3)
	assert.InDelta(t, 1.0, p[0]+p[1]+p[2], 1e-9)
}

func TestBooster_Binary(t *testing.T) {
	doc := `{
		"kind": "gradient_boosting",
		"classes": [0, 1],
		"n_features": 1,
		"trees": [{"nodes": [{"feature": 0, "threshold": 0, "left": 1, "right": 2}, {"left": -1, "value": [-3]}, {"left": -1, "value": [3]}]}]
	}`
	d, err := decodeDocument(strings.NewReader(doc), "test")
	require.NoError(t, err)
	m, err := d.build()
	require.NoError(t, err)

	p := m.PredictProba([][]float64{{-1}, {1}})
	assert.Less(t, p[0][1], 0.5)
	assert.Greater(t, p[1][1], 0.5)
	assert.Equal(t, []int{0, 1}, m.Predict([][]float64{{-1}, {1}}))
}

func TestBooster_MarginMismatch(t *testing.T) {
	doc := `{"kind": "gradient_boosting", "classes": [0, 1, 2], "trees": [{"nodes": [{"left": -1, "value": [1]}]}]}`
	d, err := decodeDocument(strings.NewReader(doc), "test")
	require.NoError(t, err)
	_, err = d.build()
	assert.Error(t, err)
}

func TestLogistic(t *testing.T) {
	doc := `{
		"kind": "logistic_regression",
		"classes": [0, 1, 2],
		"coef": [[1, 0], [0, 1], [-1, -1]],
		"intercept": [0, 0, 0]
	}`
	d, err := decodeDocument(strings.NewReader(doc), "test")
	require.NoError(t, err)
	m, err := d.build()
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumFeatures())
	assert.Equal(t, []int{0, 1, 2}, m.Predict([][]float64{{3, 0}, {0, 3}, {-3, -3}}))
}

func TestLogistic_Binary(t *testing.T) {
	doc := `{"kind": "logistic_regression", "classes": [0, 1], "coef": [[2]], "intercept": [0]}`
	d, err := decodeDocument(strings.NewReader(doc), "test")
	require.NoError(t, err)
	m, err := d.build()
	require.NoError(t, err)

	p := m.PredictProba([][]float64{{0}})[0]
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, p, 1e-9)
}

func TestLogistic_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no coef", `{"kind": "logistic_regression", "classes": [0, 1]}`},
		{"row count", `{"kind": "logistic_regression", "classes": [0, 1, 2], "coef": [[1], [1]]}`},
		{"ragged", `{"kind": "logistic_regression", "classes": [0, 1], "coef": [[1, 2], [1]]}`},
		{"intercepts", `{"kind": "logistic_regression", "classes": [0, 1], "coef": [[1], [1]], "intercept": [1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decodeDocument(strings.NewReader(tt.doc), "test")
			require.NoError(t, err)
			_, err = d.build()
			assert.Error(t, err)
		})
	}
}

func TestDecodeDocument_Invalid(t *testing.T) {
	_, err := decodeDocument(strings.NewReader(`{"kind": "random_forest", "classes": [1]}`), "test")
	assert.Error(t, err)

	_, err = decodeDocument(strings.NewReader(`{`), "test")
	assert.Error(t, err)

	d, err := decodeDocument(strings.NewReader(`{"kind": "svm", "classes": [0, 1]}`), "test")
	require.NoError(t, err)
	_, err = d.build()
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestTreeCheck(t *testing.T) {
	tests := []struct {
		name string
		tree Tree
	}{
		{"empty", Tree{}},
		{"backward link", Tree{Nodes: []Node{{Feature: 0, Left: 0, Right: 1}, {Left: -1, Value: []float64{1, 0}}}}},
		{"out of range", Tree{Nodes: []Node{{Feature: 0, Left: 1, Right: 5}, {Left: -1, Value: []float64{1, 0}}}}},
		{"empty leaf", Tree{Nodes: []Node{{Left: -1}}}},
		{"leaf width", Tree{Nodes: []Node{{Left: -1, Value: []float64{1, 0, 0}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tree.check(2)
			assert.Error(t, err)
		})
	}
}

func TestLoadPaths_FeatureNamesFallback(t *testing.T) {
	dir := t.TempDir()
	p := Paths{
		Model: writeFile(t, dir, "model.json",
			`{"kind": "logistic_regression", "classes": [0, 1], "feature_names": ["a", "b"], "coef": [[1, 1]]}`),
		Scaler:      writeFile(t, dir, "scaler.json", `{"kind": "minmax", "min": [0, 0], "scale": [1, 1]}`),
		FeatureList: filepath.Join(dir, "missing.txt"),
	}

	a, err := LoadPaths(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, a.Features)
	assert.Equal(t, ScalerMinMax, a.Scaler.Kind())
}

func TestLoadPaths_NoFeatures(t *testing.T) {
	dir := t.TempDir()
	p := Paths{
		Model:       writeFile(t, dir, "model.json", `{"kind": "logistic_regression", "classes": [0, 1], "coef": [[1, 1]]}`),
		Scaler:      writeFile(t, dir, "scaler.json", `{"mean": [0, 0], "scale": [1, 1]}`),
		FeatureList: filepath.Join(dir, "missing.txt"),
	}

	_, err := LoadPaths(p)
	assert.ErrorIs(t, err, ErrNoFeatureList)
}

func TestLoadPaths_Mismatch(t *testing.T) {
	dir := t.TempDir()
	p := Paths{
		Model:       writeFile(t, dir, "model.json", `{"kind": "logistic_regression", "classes": [0, 1], "coef": [[1, 1]]}`),
		Scaler:      writeFile(t, dir, "scaler.json", `{"mean": [0, 0, 0], "scale": [1, 1, 1]}`),
		FeatureList: writeFile(t, dir, "features.txt", "a\nb\n"),
	}

	_, err := LoadPaths(p)
	assert.ErrorIs(t, err, ErrFeatureMismatch)

	p.Scaler = writeFile(t, dir, "scaler.json", `{"mean": [0, 0], "scale": [1, 1]}`)
	p.FeatureList = writeFile(t, dir, "features.txt", "a\na\n")
	_, err = LoadPaths(p)
	assert.Error(t, err)
}

func TestReadScaler(t *testing.T) {
	dir := t.TempDir()

	s, err := ReadScaler(writeFile(t, dir, "s.json", `{"kind": "standard", "mean": [1, 2], "scale": [2, 0]}`))
	require.NoError(t, err)
	out := s.Transform([][]float64{{3, 5}})
	assert.Equal(t, []float64{1, 3}, out[0])

	s, err = ReadScaler(writeFile(t, dir, "m.json", `{"kind": "minmax", "min": [-1], "scale": [0.5]}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, s.Transform([][]float64{{2}})[0])

	_, err = ReadScaler(writeFile(t, dir, "bad.json", `{"kind": "robust", "scale": [1]}`))
	assert.Error(t, err)

	_, err = ReadScaler(writeFile(t, dir, "len.json", `{"mean": [1, 2], "scale": [1]}`))
	assert.Error(t, err)

	_, err = ReadScaler(writeFile(t, dir, "empty.json", `{"kind": "standard"}`))
	assert.Error(t, err)

	_, err = ReadScaler(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestReadFeatureList(t *testing.T) {
	dir := t.TempDir()
	list, err := ReadFeatureList(writeFile(t, dir, "f.txt", "a\r\n\nb c\n  \nd\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b c", "d"}, list)

	_, err = ReadFeatureList(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ReadFeatureList("")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
