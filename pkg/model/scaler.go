package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// Scaler is a pre-fitted per-column linear transform.
type Scaler interface {
	Kind() string
	NumFeatures() int
	// Transform returns a scaled copy of X.
	Transform(X [][]float64) [][]float64
}

type scalerDocument struct {
	Kind  string    `json:"kind"`
	Mean  []float64 `json:"mean,omitempty"`
	Min   []float64 `json:"min,omitempty"`
	Scale []float64 `json:"scale"`
}

// StandardScaler computes (x - mean) / scale.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

func (s *StandardScaler) Kind() string     { return ScalerStandard }
func (s *StandardScaler) NumFeatures() int { return len(s.Mean) }

func (s *StandardScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		row := make([]float64, len(x))
		for j, v := range x {
			row[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = row
	}
	return out
}

// MinMaxScaler computes x * scale + min.
type MinMaxScaler struct {
	Min   []float64
	Scale []float64
}

func (s *MinMaxScaler) Kind() string     { return ScalerMinMax }
func (s *MinMaxScaler) NumFeatures() int { return len(s.Min) }

func (s *MinMaxScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		row := make([]float64, len(x))
		for j, v := range x {
			row[j] = v*s.Scale[j] + s.Min[j]
		}
		out[i] = row
	}
	return out
}

// ReadScaler loads a scaler document from path.
func ReadScaler(path string) (Scaler, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scaler file %s: %w", path, err)
	}

	var doc scalerDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decoding scaler file %s: %w", path, err)
	}

	s, err := doc.build()
	if err != nil {
		return nil, fmt.Errorf("building scaler from %s: %w", path, err)
	}
	return s, nil
}

func (d *scalerDocument) build() (Scaler, error) {
	if len(d.Scale) == 0 {
		return nil, errors.New("scaler has no scale values")
	}

	switch d.Kind {
	case ScalerStandard, "":
		if len(d.Mean) != len(d.Scale) {
			return nil, fmt.Errorf("scaler has %d means and %d scales", len(d.Mean), len(d.Scale))
		}
		return &StandardScaler{Mean: d.Mean, Scale: nonZero(d.Scale)}, nil
	case ScalerMinMax:
		if len(d.Min) != len(d.Scale) {
			return nil, fmt.Errorf("scaler has %d mins and %d scales", len(d.Min), len(d.Scale))
		}
		return &MinMaxScaler{Min: d.Min, Scale: d.Scale}, nil
	default:
		return nil, fmt.Errorf("unknown scaler kind: %q", d.Kind)
	}
}

// nonZero replaces zero scales (constant training columns) with 1.
func nonZero(scale []float64) []float64 {
	out := make([]float64, len(scale))
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		out[i] = v
	}
	return out
}
