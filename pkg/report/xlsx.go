package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mchmarny/vascular/pkg/score"
	"github.com/xuri/excelize/v2"
)

const (
	SheetPredictions = "Predictions"
	SheetMetrics     = "Metrics"
	SheetWarnings    = "Warnings"

	defaultSheet = "Sheet1"
	rocCell      = "J2"
)

type styles struct {
	header   int
	mismatch int
	bands    map[score.Band]int
}

// WriteXLSX writes a workbook with Predictions, Metrics and Warnings sheets.
// Confidence cells are filled by band and mismatched predictions are filled red.
func WriteXLSX(w io.Writer, r *Result, opt Options) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Debug("closing workbook", "error", err)
		}
	}()

	if err := f.SetSheetName(defaultSheet, SheetPredictions); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	for _, name := range []string{SheetMetrics, SheetWarnings} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	if err := writePredictionsSheet(f, st, r.Batch, opt); err != nil {
		return err
	}
	if err := writeMetricsSheet(f, st, r, opt); err != nil {
		return err
	}
	if err := writeWarningsSheet(f, st, r.Warnings); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func newStyles(f *excelize.File) (*styles, error) {
	fill := func(c score.Colors, bold bool) (int, error) {
		return f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{c.Fill}},
			Font: &excelize.Font{Color: c.Text, Bold: bold},
		})
	}

	st := &styles{bands: make(map[score.Band]int)}
	var err error
	if st.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	if st.mismatch, err = fill(score.MismatchColors, true); err != nil {
		return nil, fmt.Errorf("creating mismatch style: %w", err)
	}
	for _, b := range []score.Band{score.BandHigh, score.BandMedium, score.BandLow} {
		if st.bands[b], err = fill(b.Colors(), false); err != nil {
			return nil, fmt.Errorf("creating %s band style: %w", b, err)
		}
	}
	return st, nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func styleCell(f *excelize.File, sheet string, col, row, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

func styleHeader(f *excelize.File, st *styles, sheet string, row, cols int) error {
	if cols == 0 {
		return nil
	}
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, st.header)
}

func writePredictionsSheet(f *excelize.File, st *styles, b *score.Batch, opt Options) error {
	cols := b.Columns()
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := setRow(f, SheetPredictions, 1, header...); err != nil {
		return err
	}
	if err := styleHeader(f, st, SheetPredictions, 1, len(cols)); err != nil {
		return err
	}

	for i, p := range b.Rounded(opt.Precision).Predictions {
		row := i + 2
		values := make([]any, 0, len(cols))
		values = append(values, p.Class, p.Confidence)
		for _, v := range p.Probabilities {
			values = append(values, v)
		}
		if b.HasActual {
			if p.Actual != nil {
				values = append(values, *p.Actual)
			} else {
				values = append(values, "")
			}
		}
		if err := setRow(f, SheetPredictions, row, values...); err != nil {
			return err
		}

		band := opt.Thresholds.Band(p.Confidence)
		if err := styleCell(f, SheetPredictions, 2, row, st.bands[band]); err != nil {
			return fmt.Errorf("styling confidence row %d: %w", row, err)
		}
		if p.Mismatch() {
			if err := styleCell(f, SheetPredictions, 1, row, st.mismatch); err != nil {
				return fmt.Errorf("styling mismatch row %d: %w", row, err)
			}
		}
	}

	return f.SetColWidth(SheetPredictions, "A", "Z", 18)
}

func writeMetricsSheet(f *excelize.File, st *styles, r *Result, opt Options) error {
	s := r.Summary
	if s == nil {
		return setRow(f, SheetMetrics, 1, "Metrics unavailable, see Warnings")
	}

	round := func(v float64) float64 { return score.Round(v, opt.Precision) }

	row := 1
	if err := setRow(f, SheetMetrics, row, "Metric", "Value"); err != nil {
		return err
	}
	if err := styleHeader(f, st, SheetMetrics, row, 2); err != nil {
		return err
	}
	summary := [][]any{
		{"Samples", s.Samples},
		{"Accuracy", round(s.Accuracy)},
		{"Precision (weighted)", round(s.Precision)},
		{"Recall (weighted)", round(s.Recall)},
		{"F1 (weighted)", round(s.F1)},
	}
	if s.AUC != nil {
		summary = append(summary, []any{"AUC (macro)", round(*s.AUC)})
	}
	for _, v := range summary {
		row++
		if err := setRow(f, SheetMetrics, row, v...); err != nil {
			return err
		}
	}

	row += 2
	if err := setRow(f, SheetMetrics, row, "Class", "Name", "Precision", "Recall", "F1", "Support", "AUC"); err != nil {
		return err
	}
	if err := styleHeader(f, st, SheetMetrics, row, 7); err != nil {
		return err
	}
	for _, c := range s.Classes {
		row++
		var auc any = ""
		if c.AUC != nil {
			auc = round(*c.AUC)
		}
		err := setRow(f, SheetMetrics, row, c.Class, opt.ClassName(c.Class),
			round(c.Precision), round(c.Recall), round(c.F1), c.Support, auc)
		if err != nil {
			return err
		}
	}

	row += 2
	header := []any{"Actual \\ Predicted"}
	for _, l := range s.Labels {
		header = append(header, l)
	}
	if err := setRow(f, SheetMetrics, row, header...); err != nil {
		return err
	}
	if err := styleHeader(f, st, SheetMetrics, row, len(header)); err != nil {
		return err
	}
	for i, l := range s.Labels {
		row++
		values := []any{l}
		for _, n := range s.Confusion[i] {
			values = append(values, n)
		}
		if err := setRow(f, SheetMetrics, row, values...); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SheetMetrics, "A", "A", 22); err != nil {
		return err
	}

	var png bytes.Buffer
	if err := WriteROC(&png, s, opt); err != nil {
		if errors.Is(err, ErrNoCurves) {
			return nil
		}
		return err
	}
	err := f.AddPictureFromBytes(SheetMetrics, rocCell, &excelize.Picture{
		Extension: ".png",
		File:      png.Bytes(),
		Format:    &excelize.GraphicOptions{AltText: "ROC curves", ScaleX: 1, ScaleY: 1},
	})
	if err != nil {
		return fmt.Errorf("embedding roc plot: %w", err)
	}
	return nil
}

func writeWarningsSheet(f *excelize.File, st *styles, warnings []string) error {
	if err := setRow(f, SheetWarnings, 1, "Warning"); err != nil {
		return err
	}
	if err := styleHeader(f, st, SheetWarnings, 1, 1); err != nil {
		return err
	}
	for i, w := range warnings {
		if err := setRow(f, SheetWarnings, i+2, w); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetWarnings, "A", "A", 80)
}
