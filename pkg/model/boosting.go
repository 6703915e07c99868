package model

import (
	"fmt"
	"math"
)

// booster is a gradient boosted tree ensemble. Every tree adds its leaf weight to the
// margin of one class; margins are turned into probabilities with softmax, or with
// the logistic function when a two class model carries a single margin.
type booster struct {
	classes     []int
	trees       []Tree
	baseScore   float64
	margins     int
	numFeatures int
	maxFeature  int
}

func newBooster(d *document) (*booster, error) {
	maxFeature, err := checkTrees(d.Trees, 0, d.NumFeatures)
	if err != nil {
		return nil, err
	}

	margins := 0
	for i, t := range d.Trees {
		if t.Class < 0 {
			return nil, fmt.Errorf("tree %d has negative class index", i)
		}
		if t.Class+1 > margins {
			margins = t.Class + 1
		}
	}

	k := len(d.Classes)
	if margins != k && !(k == 2 && margins == 1) {
		return nil, fmt.Errorf("trees produce %d margins for %d classes", margins, k)
	}

	return &booster{
		classes:     d.Classes,
		trees:       d.Trees,
		baseScore:   d.BaseScore,
		margins:     margins,
		numFeatures: d.NumFeatures,
		maxFeature:  maxFeature,
	}, nil
}

func (b *booster) Kind() string     { return KindGradientBoosting }
func (b *booster) Classes() []int   { return b.classes }
func (b *booster) NumFeatures() int { return b.numFeatures }
func (b *booster) maxFeatureIndex() int {
	return b.maxFeature
}

func (b *booster) Predict(X [][]float64) []int {
	return predictFromProba(b.classes, b.PredictProba(X))
}

func (b *booster) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		margin := make([]float64, b.margins)
		for m := range margin {
			margin[m] = b.baseScore
		}
		for t := range b.trees {
			leaf := b.trees[t].leaf(x, true)
			margin[b.trees[t].Class] += leaf.Value[0]
		}

		if b.margins == 1 {
			p := sigmoid(margin[0])
			out[i] = []float64{1 - p, p}
			continue
		}
		out[i] = softmax(margin)
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func softmax(z []float64) []float64 {
	hi := z[0]
	for _, v := range z[1:] {
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(z))
	sum := 0.0
	for i, v := range z {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
