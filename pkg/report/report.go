// Package report renders scored batches as CSV, JSON, Excel workbooks and ROC plots.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mchmarny/vascular/pkg/metrics"
	"github.com/mchmarny/vascular/pkg/score"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"

	DefaultPrecision = 3
)

var (
	ErrUnknownFormat = errors.New("unknown export format")

	// Formats lists the supported export formats.
	Formats = []Format{FormatCSV, FormatXLSX, FormatJSON}

	// DefaultClassNames are the display names of the vascular classes.
	DefaultClassNames = map[int]string{
		0: "No",
		1: "Hyalinosis",
		2: "Fibrosis",
		3: "Hyalinosis+Fibrosis",
	}
)

// ParseFormat validates a format name; empty means CSV.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatCSV, nil
	}
	f := Format(strings.ToLower(strings.TrimPrefix(s, ".")))
	for _, v := range Formats {
		if v == f {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv"
	}
}

// Options control rounding, highlighting and labels of rendered output.
type Options struct {
	Precision  int
	Thresholds score.Thresholds
	ClassNames map[int]string
}

// DefaultOptions returns 3 decimal precision, the default bands and class names.
func DefaultOptions() Options {
	return Options{
		Precision:  DefaultPrecision,
		Thresholds: score.DefaultThresholds(),
		ClassNames: DefaultClassNames,
	}
}

// ClassName returns the display name of class c, falling back to its number.
func (o Options) ClassName(c int) string {
	if n, ok := o.ClassNames[c]; ok && n != "" {
		return n
	}
	return strconv.Itoa(c)
}

// Result is a scored batch with its metrics and warnings.
type Result struct {
	Batch    *score.Batch     `json:"batch" yaml:"batch"`
	Summary  *metrics.Summary `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Warnings []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Write renders r to w in the given format.
func Write(w io.Writer, f Format, r *Result, opt Options) error {
	if r == nil || r.Batch == nil {
		return errors.New("nil result")
	}
	switch f {
	case FormatCSV:
		return WriteCSV(w, r.Batch, opt.Precision)
	case FormatJSON:
		return WriteJSON(w, r, opt.Precision)
	case FormatXLSX:
		return WriteXLSX(w, r, opt)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
}

// Records returns the export rows of b, header first, rounded to precision decimals.
func Records(b *score.Batch, precision int) [][]string {
	out := make([][]string, 0, b.Len()+1)
	out = append(out, b.Columns())
	for _, p := range b.Rounded(precision).Predictions {
		row := make([]string, 0, len(p.Probabilities)+3)
		row = append(row, strconv.Itoa(p.Class), formatFloat(p.Confidence))
		for _, v := range p.Probabilities {
			row = append(row, formatFloat(v))
		}
		if b.HasActual {
			if p.Actual != nil {
				row = append(row, strconv.Itoa(*p.Actual))
			} else {
				row = append(row, "")
			}
		}
		out = append(out, row)
	}
	return out
}

// WriteCSV writes the predictions table without an index column.
func WriteCSV(w io.Writer, b *score.Batch, precision int) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Records(b, precision)); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// WriteJSON writes the result with rounded predictions.
func WriteJSON(w io.Writer, r *Result, precision int) error {
	out := *r
	out.Batch = r.Batch.Rounded(precision)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
