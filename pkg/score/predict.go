package score

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"

	"github.com/mchmarny/vascular/pkg/model"
	"github.com/mchmarny/vascular/pkg/table"
)

const (
	ColumnPredicted  = "Predicted Class"
	ColumnConfidence = "Confidence Score"
	ColumnProbPrefix = "Prob_Class_"
)

// Prediction is the model output for one input row.
type Prediction struct {
	Row           int       `json:"row" yaml:"row"`
	Class         int       `json:"predicted_class" yaml:"predicted_class"`
	Confidence    float64   `json:"confidence" yaml:"confidence"`
	Probabilities []float64 `json:"probabilities" yaml:"probabilities"`
	Actual        *int      `json:"actual_class,omitempty" yaml:"actual_class,omitempty"`
}

// Mismatch reports whether a known actual class differs from the prediction.
func (p *Prediction) Mismatch() bool {
	return p.Actual != nil && *p.Actual != p.Class
}

// Batch is the scored result of one uploaded table, in input row order.
type Batch struct {
	Classes     []int        `json:"classes" yaml:"classes"`
	Predictions []Prediction `json:"predictions" yaml:"predictions"`
	Report      *AlignReport `json:"report,omitempty" yaml:"report,omitempty"`
	HasActual   bool         `json:"has_actual" yaml:"has_actual"`
}

// Len returns the number of predictions.
func (b *Batch) Len() int {
	return len(b.Predictions)
}

// Columns returns the export column names: predicted class, confidence,
// one probability column per class and, when known, the actual class.
func (b *Batch) Columns() []string {
	cols := []string{ColumnPredicted, ColumnConfidence}
	for _, c := range b.Classes {
		cols = append(cols, fmt.Sprintf("%s%d", ColumnProbPrefix, c))
	}
	if b.HasActual {
		cols = append(cols, table.DefaultLabelColumn)
	}
	return cols
}

// Labels returns the actual and predicted classes of rows with a known actual class.
func (b *Batch) Labels() (actual, predicted []int) {
	for _, p := range b.Predictions {
		if p.Actual == nil {
			continue
		}
		actual = append(actual, *p.Actual)
		predicted = append(predicted, p.Class)
	}
	return actual, predicted
}

// Probabilities returns the probability rows of predictions with a known actual class.
func (b *Batch) Probabilities() [][]float64 {
	out := make([][]float64, 0, len(b.Predictions))
	for _, p := range b.Predictions {
		if p.Actual != nil {
			out = append(out, p.Probabilities)
		}
	}
	return out
}

// Options configures a Predictor.
type Options struct {
	Strict      bool
	LabelColumn string
}

// Predictor scores tables with a fixed set of pre-fitted artifacts.
// It holds no mutable state and is safe for concurrent use.
type Predictor struct {
	Model    model.Classifier
	Scaler   model.Scaler
	Features []string
	Options  Options
}

// NewPredictor creates a predictor from loaded artifacts.
func NewPredictor(a *model.Artifacts, opt Options) (*Predictor, error) {
	if a == nil || a.Model == nil {
		return nil, errors.New("model artifacts required")
	}
	if opt.LabelColumn == "" {
		opt.LabelColumn = table.DefaultLabelColumn
	}
	return &Predictor{
		Model:    a.Model,
		Scaler:   a.Scaler,
		Features: a.Features,
		Options:  opt,
	}, nil
}

func (p *Predictor) align(t *table.Table) (*Aligned, error) {
	return Align(t, p.Features, p.Scaler, AlignOptions{
		Strict:  p.Options.Strict,
		Exclude: []string{p.Options.LabelColumn},
	})
}

// PredictClass returns the predicted class label of every row in t.
func (p *Predictor) PredictClass(t *table.Table) ([]int, error) {
	a, err := p.align(t)
	if err != nil {
		return nil, err
	}
	return p.Model.Predict(a.Scaled), nil
}

// PredictBatch scores every row of t. The label column, when present, must hold
// integer classes and is attached to the predictions as the actual class.
func (p *Predictor) PredictBatch(t *table.Table) (*Batch, error) {
	var actual []int
	if t.Has(p.Options.LabelColumn) {
		var err error
		if actual, err = t.Labels(p.Options.LabelColumn); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidLabels, err)
		}
	}

	a, err := p.align(t)
	if err != nil {
		return nil, err
	}

	classes := p.Model.Predict(a.Scaled)
	proba := p.Model.PredictProba(a.Scaled)
	if len(classes) != t.Len() || len(proba) != t.Len() {
		return nil, fmt.Errorf("model returned %d predictions and %d probability rows for %d inputs",
			len(classes), len(proba), t.Len())
	}

	b := &Batch{
		Classes:     p.Model.Classes(),
		Predictions: make([]Prediction, t.Len()),
		Report:      a.Report,
		HasActual:   actual != nil,
	}

	for i := range classes {
		b.Predictions[i] = Prediction{
			Row:           i,
			Class:         classes[i],
			Confidence:    maxOf(proba[i]),
			Probabilities: proba[i],
		}
		if actual != nil {
			v := actual[i]
			b.Predictions[i].Actual = &v
		}
	}

	slog.Debug("batch scored", "rows", b.Len(), "has_actual", b.HasActual, "missing", len(a.Report.Missing))
	return b, nil
}

// Round returns v rounded half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Rounded returns a copy of the batch with confidence and probabilities rounded.
func (b *Batch) Rounded(decimals int) *Batch {
	out := *b
	out.Predictions = make([]Prediction, len(b.Predictions))
	for i, p := range b.Predictions {
		p.Confidence = Round(p.Confidence, decimals)
		probs := make([]float64, len(p.Probabilities))
		for j, v := range p.Probabilities {
			probs[j] = Round(v, decimals)
		}
		p.Probabilities = probs
		out.Predictions[i] = p
	}
	return &out
}

func maxOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return slices.Max(v)
}

func sortedKeys(m map[string]int) []string {
	return slices.Sorted(maps.Keys(m))
}
