package metrics

import "sort"

// rocCurves builds one-vs-rest curves for every class present in the ground truth with
// at least one negative. Binary models only get the curve of the positive (second) class.
func rocCurves(actual []int, proba [][]float64, classes []int) []Curve {
	cols := make([]int, 0, len(classes))
	if len(classes) == 2 {
		cols = append(cols, 1)
	} else {
		for i := range classes {
			cols = append(cols, i)
		}
	}

	curves := make([]Curve, 0, len(cols))
	for _, k := range cols {
		scores := make([]float64, len(actual))
		truth := make([]bool, len(actual))
		for i := range actual {
			scores[i] = proba[i][k]
			truth[i] = actual[i] == classes[k]
		}
		fpr, tpr, ok := ROC(truth, scores)
		if !ok {
			continue
		}
		curves = append(curves, Curve{
			Class: classes[k],
			FPR:   fpr,
			TPR:   tpr,
			AUC:   AUC(fpr, tpr),
		})
	}
	return curves
}

// ROC computes the false and true positive rates at every distinct score threshold,
// starting at (0, 0). ok is false when truth has no positives or no negatives.
func ROC(truth []bool, scores []float64) (fpr, tpr []float64, ok bool) {
	pos, neg := 0, 0
	for _, t := range truth {
		if t {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, nil, false
	}

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	fpr = []float64{0}
	tpr = []float64{0}
	tp, fp := 0, 0
	for i, j := range idx {
		if truth[j] {
			tp++
		} else {
			fp++
		}
		// emit a point only after the last sample sharing this score
		if i+1 < len(idx) && scores[idx[i+1]] == scores[j] {
			continue
		}
		fpr = append(fpr, float64(fp)/float64(neg))
		tpr = append(tpr, float64(tp)/float64(pos))
	}
	return fpr, tpr, true
}

// AUC integrates a curve with the trapezoidal rule.
func AUC(x, y []float64) float64 {
	area := 0.0
	for i := 1; i < len(x); i++ {
		area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return area
}

func macroAUC(curves []Curve) (float64, bool) {
	if len(curves) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, c := range curves {
		sum += c.AUC
	}
	return sum / float64(len(curves)), true
}
