// Package score aligns uploaded tables to the model feature list and runs inference.
package score

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mchmarny/vascular/pkg/model"
	"github.com/mchmarny/vascular/pkg/table"
)

var (
	ErrEmptyTable      = errors.New("table has no rows")
	ErrMissingFeatures = errors.New("input is missing model features")
	ErrNoFeatures      = errors.New("feature list is empty")
	ErrInvalidLabels   = errors.New("invalid actual class labels")
)

// AlignReport records every adjustment made while aligning an input table.
// Missing features are synthesized as zero columns, which silently degrades
// predictions, so callers should surface the report to the user.
type AlignReport struct {
	Missing    []string       `json:"missing,omitempty" yaml:"missing,omitempty"`
	Dropped    []string       `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Imputed    map[string]int `json:"imputed,omitempty" yaml:"imputed,omitempty"`
	NonNumeric map[string]int `json:"non_numeric,omitempty" yaml:"non_numeric,omitempty"`
}

// HasMissing reports whether any model feature had to be synthesized.
func (r *AlignReport) HasMissing() bool {
	return r != nil && len(r.Missing) > 0
}

// Warnings renders the report as user facing messages.
func (r *AlignReport) Warnings() []string {
	if r == nil {
		return nil
	}
	list := make([]string, 0)
	if len(r.Missing) > 0 {
		list = append(list, fmt.Sprintf("%d model feature(s) missing from input and set to 0: %s",
			len(r.Missing), strings.Join(r.Missing, ", ")))
	}
	for _, f := range sortedKeys(r.NonNumeric) {
		list = append(list, fmt.Sprintf("feature %q has %d non-numeric value(s) treated as missing", f, r.NonNumeric[f]))
	}
	for _, f := range sortedKeys(r.Imputed) {
		list = append(list, fmt.Sprintf("feature %q has %d missing value(s) filled with the column mean", f, r.Imputed[f]))
	}
	return list
}

// AlignOptions controls the alignment.
type AlignOptions struct {
	// Strict turns missing features into ErrMissingFeatures instead of zero columns.
	Strict bool
	// Exclude lists input columns that are never features (e.g. the ground truth label)
	// and are therefore not reported as dropped.
	Exclude []string
}

// Aligned is the model ready feature matrix.
type Aligned struct {
	Features []string
	Raw      [][]float64
	Scaled   [][]float64
	Report   *AlignReport
}

// Align selects, imputes and scales the feature columns of t.
//
//  1. features absent from t become all zero columns
//  2. columns are reordered to the feature list; other columns are dropped
//  3. missing or non-numeric cells take the column mean of the batch (0 when a column has no values)
//  4. the scaler transform is applied
func Align(t *table.Table, features []string, scaler model.Scaler, opt AlignOptions) (*Aligned, error) {
	if t.Len() == 0 {
		return nil, ErrEmptyTable
	}
	if len(features) == 0 {
		return nil, ErrNoFeatures
	}
	if scaler != nil && scaler.NumFeatures() != len(features) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", scaler.NumFeatures(), len(features))
	}

	report := &AlignReport{
		Imputed:    make(map[string]int),
		NonNumeric: make(map[string]int),
	}

	want := make(map[string]bool, len(features))
	for _, f := range features {
		want[f] = true
	}
	skip := make(map[string]bool, len(opt.Exclude))
	for _, c := range opt.Exclude {
		skip[c] = true
	}
	for _, c := range t.Columns {
		if !want[c] && !skip[c] {
			report.Dropped = append(report.Dropped, c)
		}
	}

	index := make([]int, len(features))
	for j, f := range features {
		index[j] = t.Index(f)
		if index[j] < 0 {
			report.Missing = append(report.Missing, f)
		}
	}

	if opt.Strict && report.HasMissing() {
		return nil, fmt.Errorf("%w: %s", ErrMissingFeatures, strings.Join(report.Missing, ", "))
	}
	if report.HasMissing() {
		slog.Warn("input missing model features, defaulting to 0",
			"missing", len(report.Missing),
			"features", strings.Join(report.Missing, ","))
	}

	raw := make([][]float64, t.Len())
	for i := range raw {
		raw[i] = make([]float64, len(features))
	}

	for j, f := range features {
		if index[j] < 0 {
			continue
		}
		fillColumn(t, raw, index[j], j, f, report)
	}

	cleanReport(report)

	scaled := raw
	if scaler != nil {
		scaled = scaler.Transform(raw)
	}

	return &Aligned{
		Features: features,
		Raw:      raw,
		Scaled:   scaled,
		Report:   report,
	}, nil
}

// fillColumn copies source column src into feature column j, imputing missing
// cells with the mean of the present ones.
func fillColumn(t *table.Table, raw [][]float64, src, j int, name string, report *AlignReport) {
	missing := make([]int, 0)
	sum, n := 0.0, 0
	for i, row := range t.Rows {
		v, ok := table.ParseFloat(row[src])
		if !ok {
			if !table.IsMissing(row[src]) {
				report.NonNumeric[name]++
			}
			missing = append(missing, i)
			continue
		}
		raw[i][j] = v
		sum += v
		n++
	}

	if len(missing) == 0 {
		return
	}

	mean := 0.0
	if n > 0 {
		mean = sum / float64(n)
	}
	for _, i := range missing {
		raw[i][j] = mean
	}
	report.Imputed[name] = len(missing)
	slog.Debug("imputed feature values", "feature", name, "count", len(missing), "mean", mean)
}

func cleanReport(r *AlignReport) {
	if len(r.Imputed) == 0 {
		r.Imputed = nil
	}
	if len(r.NonNumeric) == 0 {
		r.NonNumeric = nil
	}
}
