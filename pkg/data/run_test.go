package data

import (
	"testing"
	"time"

	"github.com/mchmarny/vascular/pkg/metrics"
	"github.com/mchmarny/vascular/pkg/report"
	"github.com/mchmarny/vascular/pkg/score"
	"github.com/mchmarny/vascular/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun(t *testing.T, labeled bool) *Run {
	t.Helper()
	zero, one := 0, 1
	b := &score.Batch{
		Classes: []int{0, 1},
		Predictions: []score.Prediction{
			{Row: 0, Class: 0, Confidence: 0.9, Probabilities: []float64{0.9, 0.1}},
			{Row: 1, Class: 1, Confidence: 0.8, Probabilities: []float64{0.2, 0.8}},
		},
		Report: &score.AlignReport{Missing: []string{"collagen"}},
	}

	r := &report.Result{Batch: b, Warnings: b.Report.Warnings()}
	if labeled {
		b.HasActual = true
		b.Predictions[0].Actual = &zero
		b.Predictions[1].Actual = &one
		actual, predicted := b.Labels()
		s, err := metrics.Evaluate(actual, predicted, b.Probabilities(), b.Classes)
		require.NoError(t, err)
		r.Summary = s
	}

	preview := &table.Table{Columns: []string{"a"}, Rows: [][]string{{"1"}, {"2"}}}
	return NewRun("upload.csv", "random_forest", preview, r)
}

func TestNewRun(t *testing.T) {
	r := testRun(t, true)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 2, r.Rows)
	assert.Equal(t, 1, r.Warnings)
	require.NotNil(t, r.Accuracy)
	assert.Equal(t, 1.0, *r.Accuracy)
	assert.WithinDuration(t, time.Now(), r.CreatedAt, time.Minute)

	assert.Nil(t, testRun(t, false).Accuracy)
}

func TestSaveAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	r := testRun(t, true)
	require.NoError(t, SaveRun(db, r))

	got, err := GetRun(db, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.RunSummary.ID, got.ID)
	assert.True(t, r.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, "upload.csv", got.FileName)
	assert.Equal(t, "random_forest", got.ModelKind)
	require.NotNil(t, got.Accuracy)
	assert.Equal(t, *r.Accuracy, *got.Accuracy)
	assert.Equal(t, r.Preview, got.Preview)

	require.NotNil(t, got.Result)
	require.NotNil(t, got.Result.Batch)
	assert.Equal(t, 2, got.Result.Batch.Len())
	assert.True(t, got.Result.Batch.HasActual)
	require.NotNil(t, got.Result.Summary)
	assert.Equal(t, r.Result.Summary.Confusion, got.Result.Summary.Confusion)
	assert.Equal(t, []string{"collagen"}, got.Result.Batch.Report.Missing)
}

func TestSaveRun_Invalid(t *testing.T) {
	db := setupTestDB(t)
	assert.Error(t, SaveRun(db, nil))
	assert.Error(t, SaveRun(db, &Run{}))
	assert.ErrorIs(t, SaveRun(nil, testRun(t, false)), errDBNotInitialized)
}

func TestSaveRun_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	r := testRun(t, false)
	require.NoError(t, SaveRun(db, r))
	assert.Error(t, SaveRun(db, r))
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := GetRun(db, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)

	list, err := ListRuns(db, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	older := testRun(t, true)
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := testRun(t, false)
	require.NoError(t, SaveRun(db, older))
	require.NoError(t, SaveRun(db, newer))

	list, err = ListRuns(db, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
	assert.NotNil(t, list[1].Accuracy)

	list, err = ListRuns(db, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeleteRun(t *testing.T) {
	db := setupTestDB(t)
	r := testRun(t, false)
	require.NoError(t, SaveRun(db, r))

	require.NoError(t, DeleteRun(db, r.ID))
	_, err := GetRun(db, r.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, DeleteRun(db, r.ID), ErrRunNotFound)
}

func TestDeleteAllRuns(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SaveRun(db, testRun(t, false)))
	require.NoError(t, SaveRun(db, testRun(t, true)))

	n, err := DeleteAllRuns(db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := ListRuns(db, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRuns_NilDB(t *testing.T) {
	_, err := GetRun(nil, "x")
	assert.Error(t, err)
	_, err = ListRuns(nil, 1)
	assert.Error(t, err)
	assert.Error(t, DeleteRun(nil, "x"))
	_, err = DeleteAllRuns(nil)
	assert.Error(t, err)
}
