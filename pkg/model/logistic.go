package model

import (
	"errors"
	"fmt"
)

// logistic is a (multinomial) logistic regression. A single coefficient row
// means a binary model scored with the logistic function.
type logistic struct {
	classes   []int
	coef      [][]float64
	intercept []float64
}

func newLogistic(d *document) (*logistic, error) {
	if len(d.Coef) == 0 {
		return nil, errors.New("model has no coefficients")
	}

	k := len(d.Classes)
	rows := len(d.Coef)
	if rows != k && !(k == 2 && rows == 1) {
		return nil, fmt.Errorf("%d coefficient rows for %d classes", rows, k)
	}

	width := len(d.Coef[0])
	for i, row := range d.Coef {
		if len(row) != width {
			return nil, fmt.Errorf("coefficient row %d has %d values, expected %d", i, len(row), width)
		}
	}
	if d.NumFeatures > 0 && d.NumFeatures != width {
		return nil, fmt.Errorf("coefficients have %d features but model declares %d", width, d.NumFeatures)
	}

	intercept := d.Intercept
	if len(intercept) == 0 {
		intercept = make([]float64, rows)
	}
	if len(intercept) != rows {
		return nil, fmt.Errorf("%d intercepts for %d coefficient rows", len(intercept), rows)
	}

	return &logistic{
		classes:   d.Classes,
		coef:      d.Coef,
		intercept: intercept,
	}, nil
}

func (l *logistic) Kind() string     { return KindLogisticRegression }
func (l *logistic) Classes() []int   { return l.classes }
func (l *logistic) NumFeatures() int { return len(l.coef[0]) }

func (l *logistic) Predict(X [][]float64) []int {
	return predictFromProba(l.classes, l.PredictProba(X))
}

func (l *logistic) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		z := make([]float64, len(l.coef))
		for k, w := range l.coef {
			z[k] = l.intercept[k]
			for j, v := range w {
				z[k] += v * x[j]
			}
		}
		if len(z) == 1 {
			p := sigmoid(z[0])
			out[i] = []float64{1 - p, p}
			continue
		}
		out[i] = softmax(z)
	}
	return out
}
