package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `id,age,<lumen>,"Vascular class(0=no, 1=Hyalinosis, 2=Fibrosis, 3=Hyalinosis+Fibrosis)"
1,54,0.3,0
2,61,,2
3,NA,0.7,3.0
`

func TestReadCSV(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(testCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Len(t, tbl.Columns, 4)
	assert.Equal(t, "", tbl.Rows[1][2])
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = ReadCSV(strings.NewReader("a,b\n\n"))
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestReadCSV_NilReader(t *testing.T) {
	_, err := ReadCSV(nil)
	assert.Error(t, err)
}

func TestReadCSV_RaggedRows(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a,b,c\n1\n1,2,3,4\n"))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"1", "", ""}, tbl.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, tbl.Rows[1])
}

func TestReadCSV_BOM(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("\ufeffa,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "a", tbl.Columns[0])
}

func TestSanitizeHeaders(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(testCSV))
	require.NoError(t, err)
	tbl.SanitizeHeaders()
	assert.Equal(t, "_lumen_", tbl.Columns[2])
	assert.Equal(t, "x", SanitizeName("  x "))
}

func TestRenameAndLabels(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(testCSV))
	require.NoError(t, err)

	assert.True(t, tbl.Rename(DefaultTargetColumn, DefaultLabelColumn))
	assert.False(t, tbl.Rename("missing", "x"))
	assert.True(t, tbl.Has(DefaultLabelColumn))

	labels, err := tbl.Labels(DefaultLabelColumn)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3}, labels)
}

func TestLabels_Invalid(t *testing.T) {
	tbl := &Table{Columns: []string{"y"}, Rows: [][]string{{"1"}, {"1.5"}}}
	_, err := tbl.Labels("y")
	assert.Error(t, err)

	_, err = tbl.Labels("nope")
	assert.Error(t, err)
}

func TestHead(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(testCSV))
	require.NoError(t, err)

	h := tbl.Head(PreviewRows)
	assert.Equal(t, 3, h.Len())

	h = tbl.Head(1)
	require.Equal(t, 1, h.Len())
	h.Rows[0][0] = "changed"
	assert.Equal(t, "1", tbl.Rows[0][0])
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.5", 1.5, true},
		{" 2 ", 2, true},
		{"", 0, false},
		{"NaN", 0, false},
		{"na", 0, false},
		{"abc", 0, false},
		{"inf", 0, false},
		{"+Inf", 0, false},
		{"-Infinity", 0, false},
		{"1e400", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseFloat(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
