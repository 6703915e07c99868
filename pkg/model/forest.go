package model

// forest is a bagged ensemble of classification trees. Each leaf holds the class
// counts (or fractions) observed during fitting, and the ensemble probability is the
// mean of the normalized leaf distributions.
type forest struct {
	classes     []int
	trees       []Tree
	numFeatures int
	maxFeature  int
}

func newForest(d *document) (*forest, error) {
	maxFeature, err := checkTrees(d.Trees, len(d.Classes), d.NumFeatures)
	if err != nil {
		return nil, err
	}
	return &forest{
		classes:     d.Classes,
		trees:       d.Trees,
		numFeatures: d.NumFeatures,
		maxFeature:  maxFeature,
	}, nil
}

func (f *forest) Kind() string     { return KindRandomForest }
func (f *forest) Classes() []int   { return f.classes }
func (f *forest) NumFeatures() int { return f.numFeatures }
func (f *forest) maxFeatureIndex() int {
	return f.maxFeature
}

func (f *forest) Predict(X [][]float64) []int {
	return predictFromProba(f.classes, f.PredictProba(X))
}

func (f *forest) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	k := len(f.classes)
	for i, x := range X {
		p := make([]float64, k)
		for t := range f.trees {
			leaf := f.trees[t].leaf(x, false)
			sum := 0.0
			for _, v := range leaf.Value {
				sum += v
			}
			if sum == 0 {
				continue
			}
			for c, v := range leaf.Value {
				p[c] += v / sum
			}
		}
		normalize(p)
		out[i] = p
	}
	return out
}

func normalize(p []float64) {
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	if sum == 0 {
		for i := range p {
			p[i] = 1 / float64(len(p))
		}
		return
	}
	for i := range p {
		p[i] /= sum
	}
}
