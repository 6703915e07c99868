// Package table holds uploaded CSV data as named columns of raw string cells.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultTargetColumn is the ground truth column name used in the source metadata exports.
	DefaultTargetColumn = "Vascular class(0=no, 1=Hyalinosis, 2=Fibrosis, 3=Hyalinosis+Fibrosis)"

	// DefaultLabelColumn is the canonical name the target column is renamed to.
	DefaultLabelColumn = "Actual Class"

	// PreviewRows is the number of rows shown before predictions are run.
	PreviewRows = 5
)

var (
	ErrNoHeader    = errors.New("csv has no header row")
	ErrEmptyTable  = errors.New("csv has no data rows")
	headerReplacer = strings.NewReplacer("<", "_", ">", "_")
	missingValues  = map[string]bool{
		"":     true,
		"na":   true,
		"nan":  true,
		"null": true,
		"none": true,
		"n/a":  true,
	}
)

// Table is a header plus rectangular rows of raw cell values.
type Table struct {
	Columns []string   `json:"columns" yaml:"columns"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

// ReadCSV parses a CSV document with a header row.
// Short rows are padded with empty cells and long rows are trimmed to the header width.
func ReadCSV(r io.Reader) (*Table, error) {
	if r == nil {
		return nil, errors.New("reader required")
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	t := &Table{
		Columns: trimBOM(header),
		Rows:    make([][]string, 0),
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, fit(rec, len(t.Columns)))
	}

	if len(t.Rows) == 0 {
		return nil, ErrEmptyTable
	}

	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of the first column with the given name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]string, bool) {
	i := t.Index(name)
	if i < 0 {
		return nil, false
	}
	col := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		col[r] = row[i]
	}
	return col, true
}

// SanitizeHeaders replaces characters boosted tree models reject in feature names
// ('<' and '>') with '_' and trims surrounding whitespace.
func (t *Table) SanitizeHeaders() {
	for i, c := range t.Columns {
		t.Columns[i] = SanitizeName(c)
	}
}

// SanitizeName applies the header sanitizing rules to a single name.
func SanitizeName(name string) string {
	return strings.TrimSpace(headerReplacer.Replace(name))
}

// Rename changes the name of column old to new. Returns false when old is not present.
func (t *Table) Rename(old, new string) bool {
	i := t.Index(old)
	if i < 0 {
		return false
	}
	t.Columns[i] = new
	return true
}

// Head returns a copy of the table with at most n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	h := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, n),
	}
	for i := 0; i < n; i++ {
		h.Rows[i] = append([]string(nil), t.Rows[i]...)
	}
	return h
}

// Labels parses the named column as integer class labels.
// Values such as "2.0" are accepted; anything that is not a whole number is an error.
func (t *Table) Labels(name string) ([]int, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("column not found: %s", name)
	}

	out := make([]int, len(col))
	for i, v := range col {
		n, err := ParseLabel(v)
		if err != nil {
			return nil, fmt.Errorf("row %d of %q: %w", i+1, name, err)
		}
		out[i] = n
	}
	return out, nil
}

// ParseLabel parses an integer class label.
func ParseLabel(v string) (int, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid class label: %q", v)
	}
	return int(f), nil
}

// ParseFloat parses a numeric cell. The second return is false for missing,
// non-numeric or non-finite values.
func ParseFloat(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if IsMissing(v) {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// IsMissing reports whether a cell holds one of the recognized missing value markers.
func IsMissing(v string) bool {
	return missingValues[strings.ToLower(strings.TrimSpace(v))]
}

func fit(rec []string, width int) []string {
	row := make([]string, width)
	copy(row, rec)
	return row
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func trimBOM(header []string) []string {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header
}
