package metrics

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testClasses   = []int{0, 1, 2, 3}
	testActual    = []int{0, 3, 2, 2}
	testPredicted = []int{0, 3, 1, 2}
	testProba     = [][]float64{
		{0.70, 0.15, 0.15, 0.00},
		{0.00, 0.05, 0.25, 0.70},
		{0.10, 0.65, 0.10, 0.15},
		{0.35, 0.10, 0.55, 0.00},
	}
)

func TestEvaluate(t *testing.T) {
	s, err := Evaluate(testActual, testPredicted, testProba, testClasses)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Samples)
	assert.InDelta(t, 0.75, s.Accuracy, 1e-9)
	assert.InDelta(t, 1.0, s.Precision, 1e-9)
	assert.InDelta(t, 0.75, s.Recall, 1e-9)
	assert.InDelta(t, 0.8333, s.F1, 1e-4)

	wantConfusion := [][]int{
		{1, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 1, 1, 0},
		{0, 0, 0, 1},
	}
	if diff := cmp.Diff(wantConfusion, s.Confusion); diff != "" {
		t.Errorf("confusion mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, testClasses, s.Labels)

	require.NotNil(t, s.AUC)
	assert.InDelta(t, 2.5/3, *s.AUC, 1e-9)

	// class 1 never occurs in the ground truth so it has no curve
	require.Len(t, s.ROC, 3)
	got := map[int]float64{}
	for _, c := range s.ROC {
		got[c.Class] = c.AUC
	}
	want := map[int]float64{0: 1, 2: 0.5, 3: 1}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("auc mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, s.Classes, 4)
	assert.Nil(t, s.Classes[1].AUC)
	assert.Equal(t, 0, s.Classes[1].Support)
	assert.InDelta(t, 0.5, s.Classes[2].Recall, 1e-9)
	assert.InDelta(t, 2.0/3, s.Classes[2].F1, 1e-9)
	require.NotNil(t, s.Classes[2].AUC)
	assert.InDelta(t, 0.5, *s.Classes[2].AUC, 1e-9)
}

func TestEvaluate_Binary(t *testing.T) {
	actual := []int{0, 0, 1, 1}
	predicted := []int{0, 0, 0, 1}
	proba := [][]float64{{0.9, 0.1}, {0.6, 0.4}, {0.65, 0.35}, {0.2, 0.8}}

	s, err := Evaluate(actual, predicted, proba, []int{0, 1})
	require.NoError(t, err)
	require.Len(t, s.ROC, 1)
	assert.Equal(t, 1, s.ROC[0].Class)
	require.NotNil(t, s.AUC)
	assert.InDelta(t, 0.75, *s.AUC, 1e-9)
}

func TestEvaluate_WithoutProbabilities(t *testing.T) {
	s, err := Evaluate(testActual, testPredicted, nil, testClasses)
	require.NoError(t, err)
	assert.Nil(t, s.AUC)
	assert.Empty(t, s.ROC)
}

func TestEvaluate_Errors(t *testing.T) {
	_, err := Evaluate([]int{1, 1, 1}, []int{1, 0, 1}, nil, []int{0, 1})
	assert.ErrorIs(t, err, ErrSingleClass)

	_, err = Evaluate([]int{0, 1}, []int{0}, nil, []int{0, 1})
	assert.Error(t, err)

	_, err = Evaluate([]int{0, 1}, []int{0, 1}, [][]float64{{1, 0}}, []int{0, 1})
	assert.Error(t, err)
}

func TestROC(t *testing.T) {
	fpr, tpr, ok := ROC([]bool{true, false, true, false}, []float64{0.9, 0.9, 0.5, 0.1})
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0.5, 0.5, 1}, fpr)
	assert.Equal(t, []float64{0, 0.5, 1, 1}, tpr)
	assert.InDelta(t, 0.625, AUC(fpr, tpr), 1e-9)

	_, _, ok = ROC([]bool{true, true}, []float64{0.1, 0.2})
	assert.False(t, ok)
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.0, Accuracy(nil, nil))
	assert.Equal(t, 0.5, Accuracy([]int{1, 2}, []int{1, 3}))
	assert.Equal(t, 3, Distinct([]int{1, 2, 2, 5}))
}
