// Package metrics evaluates scored batches against ground truth labels.
package metrics

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSingleClass is returned when the ground truth has fewer than two distinct classes,
// which leaves precision, recall and ROC undefined.
var ErrSingleClass = errors.New("metrics require at least two distinct actual classes")

// ClassMetrics are the one-vs-rest scores of a single class.
type ClassMetrics struct {
	Class     int      `json:"class" yaml:"class"`
	Precision float64  `json:"precision" yaml:"precision"`
	Recall    float64  `json:"recall" yaml:"recall"`
	F1        float64  `json:"f1" yaml:"f1"`
	Support   int      `json:"support" yaml:"support"`
	AUC       *float64 `json:"auc,omitempty" yaml:"auc,omitempty"`
}

// Curve is a ROC curve for one class against the rest.
type Curve struct {
	Class int       `json:"class" yaml:"class"`
	FPR   []float64 `json:"fpr" yaml:"fpr"`
	TPR   []float64 `json:"tpr" yaml:"tpr"`
	AUC   float64   `json:"auc" yaml:"auc"`
}

// Summary is the aggregate performance of a batch. Precision, Recall and F1 are
// support weighted averages; AUC is the macro average of the per-class ROC AUC.
type Summary struct {
	Samples   int            `json:"samples" yaml:"samples"`
	Accuracy  float64        `json:"accuracy" yaml:"accuracy"`
	Precision float64        `json:"precision" yaml:"precision"`
	Recall    float64        `json:"recall" yaml:"recall"`
	F1        float64        `json:"f1" yaml:"f1"`
	AUC       *float64       `json:"auc,omitempty" yaml:"auc,omitempty"`
	Classes   []ClassMetrics `json:"classes" yaml:"classes"`
	Confusion [][]int        `json:"confusion" yaml:"confusion"`
	Labels    []int          `json:"labels" yaml:"labels"`
	ROC       []Curve        `json:"roc,omitempty" yaml:"roc,omitempty"`
}

// Evaluate computes the summary for actual vs predicted labels. classes is the model's
// class list and defines the probability column order of proba. proba may be nil, in
// which case no ROC curves or AUC are computed.
func Evaluate(actual, predicted []int, proba [][]float64, classes []int) (*Summary, error) {
	if len(actual) != len(predicted) {
		return nil, fmt.Errorf("actual (%d) and predicted (%d) lengths differ", len(actual), len(predicted))
	}
	if proba != nil && len(proba) != len(actual) {
		return nil, fmt.Errorf("actual (%d) and probability (%d) lengths differ", len(actual), len(proba))
	}
	if Distinct(actual) < 2 {
		return nil, ErrSingleClass
	}

	labels := unionLabels(classes, actual, predicted)
	pos := make(map[int]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}

	s := &Summary{
		Samples:   len(actual),
		Accuracy:  Accuracy(actual, predicted),
		Labels:    labels,
		Confusion: make([][]int, len(labels)),
	}
	for i := range s.Confusion {
		s.Confusion[i] = make([]int, len(labels))
	}
	for i := range actual {
		s.Confusion[pos[actual[i]]][pos[predicted[i]]]++
	}

	for _, l := range labels {
		cm := classScores(s.Confusion, pos[l])
		cm.Class = l
		s.Classes = append(s.Classes, cm)
		if cm.Support == 0 {
			continue
		}
		w := float64(cm.Support) / float64(s.Samples)
		s.Precision += w * cm.Precision
		s.Recall += w * cm.Recall
		s.F1 += w * cm.F1
	}

	if proba != nil {
		s.ROC = rocCurves(actual, proba, classes)
		if auc, ok := macroAUC(s.ROC); ok {
			s.AUC = &auc
		}
		for i := range s.Classes {
			for _, c := range s.ROC {
				if c.Class == s.Classes[i].Class {
					v := c.AUC
					s.Classes[i].AUC = &v
				}
			}
		}
	}

	return s, nil
}

// Accuracy is the fraction of matching labels.
func Accuracy(actual, predicted []int) float64 {
	if len(actual) == 0 {
		return 0
	}
	n := 0
	for i := range actual {
		if actual[i] == predicted[i] {
			n++
		}
	}
	return float64(n) / float64(len(actual))
}

// Distinct returns the number of distinct labels.
func Distinct(labels []int) int {
	seen := make(map[int]bool)
	for _, l := range labels {
		seen[l] = true
	}
	return len(seen)
}

func classScores(confusion [][]int, k int) ClassMetrics {
	tp := confusion[k][k]
	fp, fn := 0, 0
	for i := range confusion {
		if i == k {
			continue
		}
		fp += confusion[i][k]
		fn += confusion[k][i]
	}

	cm := ClassMetrics{Support: tp + fn}
	if tp+fp > 0 {
		cm.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		cm.Recall = float64(tp) / float64(tp+fn)
	}
	if cm.Precision+cm.Recall > 0 {
		cm.F1 = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall)
	}
	return cm
}

func unionLabels(sets ...[]int) []int {
	seen := make(map[int]bool)
	out := make([]int, 0)
	for _, s := range sets {
		for _, v := range s {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Ints(out)
	return out
}
