package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDataState_NilDB(t *testing.T) {
	_, err := GetDataState(nil)
	assert.Error(t, err)
}

func TestGetDataState_EmptyDB(t *testing.T) {
	db := setupTestDB(t)
	state, err := GetDataState(db)
	require.NoError(t, err)
	assert.Equal(t, int64(0), state["runs"])
	assert.Equal(t, int64(0), state["rows"])
}

func TestGetDataState_WithRuns(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SaveRun(db, testRun(t, true)))
	require.NoError(t, SaveRun(db, testRun(t, false)))

	state, err := GetDataState(db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), state["runs"])
	assert.Equal(t, int64(4), state["rows"])
	assert.Equal(t, int64(1), state["with_labels"])
	assert.Equal(t, int64(2), state["warnings"])
}
