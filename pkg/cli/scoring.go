package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mchmarny/vascular/pkg/data"
	"github.com/mchmarny/vascular/pkg/metrics"
	"github.com/mchmarny/vascular/pkg/report"
	"github.com/mchmarny/vascular/pkg/score"
	"github.com/mchmarny/vascular/pkg/table"
)

// scorer turns an uploaded CSV into a scored run.
type scorer struct {
	predictor       *score.Predictor
	modelKind       string
	sanitizeHeaders bool
	targetColumn    string
	labelColumn     string
}

func newScorer(cfg *appConfig, strict bool) (*scorer, error) {
	p, err := cfg.Predictor(strict)
	if err != nil {
		return nil, err
	}
	return &scorer{
		predictor:       p,
		modelKind:       p.Model.Kind(),
		sanitizeHeaders: cfg.Config.SanitizeHeaders,
		targetColumn:    cfg.Config.TargetColumn,
		labelColumn:     cfg.Config.LabelColumn,
	}, nil
}

// Score parses r, predicts every row and evaluates the predictions when the
// input carries ground truth labels. Input problems wrap errBadInput.
func (s *scorer) Score(name string, r io.Reader) (*data.Run, error) {
	t, err := table.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", errBadInput, name, err)
	}

	target := s.targetColumn
	if s.sanitizeHeaders {
		t.SanitizeHeaders()
		target = table.SanitizeName(target)
	}
	if target != "" && target != s.labelColumn {
		t.Rename(target, s.labelColumn)
	}

	preview := t.Head(table.PreviewRows)

	b, err := s.predictor.PredictBatch(t)
	if err != nil {
		if errors.Is(err, score.ErrEmptyTable) || errors.Is(err, score.ErrMissingFeatures) || errors.Is(err, score.ErrInvalidLabels) {
			return nil, fmt.Errorf("%w: scoring %s: %w", errBadInput, name, err)
		}
		return nil, fmt.Errorf("scoring %s: %w", name, err)
	}

	res := &report.Result{Batch: b, Warnings: b.Report.Warnings()}
	if b.Report.HasMissing() {
		slog.Warn("input is missing model features", "file", name, "missing", b.Report.Missing)
	}

	if b.HasActual {
		actual, predicted := b.Labels()
		sum, err := metrics.Evaluate(actual, predicted, b.Probabilities(), b.Classes)
		switch {
		case errors.Is(err, metrics.ErrSingleClass):
			res.Warnings = append(res.Warnings, err.Error())
		case err != nil:
			return nil, fmt.Errorf("evaluating %s: %w", name, err)
		default:
			res.Summary = sum
		}
	}

	run := data.NewRun(name, s.modelKind, preview, res)
	slog.Debug("upload scored",
		"file", name,
		"run", run.ID,
		"rows", run.Rows,
		"warnings", run.Warnings)
	return run, nil
}
