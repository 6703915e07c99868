package model

import (
	"errors"
	"fmt"
)

const leafChild = -1

// Node is a single decision tree node. A node whose Left child is -1 is a leaf.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// Tree is a flattened binary decision tree; Nodes[0] is the root.
// Class is only used by boosted ensembles and is the index of the class margin the tree adds to.
type Tree struct {
	Class int    `json:"class,omitempty"`
	Nodes []Node `json:"nodes"`
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Left == leafChild
}

// leaf walks the tree for row x. When strict is true a value equal to the threshold goes right.
func (t *Tree) leaf(x []float64, strict bool) *Node {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n
		}
		v := x[n.Feature]
		if v < n.Threshold || (!strict && v == n.Threshold) {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// check validates node links and leaf widths. valueWidth of 0 skips the width check.
func (t *Tree) check(valueWidth int) (maxFeature int, err error) {
	if len(t.Nodes) == 0 {
		return 0, errors.New("tree has no nodes")
	}

	maxFeature = -1
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			if len(n.Value) == 0 {
				return 0, fmt.Errorf("leaf node %d has no value", i)
			}
			if valueWidth > 0 && len(n.Value) != valueWidth {
				return 0, fmt.Errorf("leaf node %d has %d values, expected %d", i, len(n.Value), valueWidth)
			}
			continue
		}
		// children must point forward so every walk terminates
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return 0, fmt.Errorf("node %d has invalid children (%d, %d)", i, n.Left, n.Right)
		}
		if n.Feature < 0 {
			return 0, fmt.Errorf("node %d has negative feature index", i)
		}
		if n.Feature > maxFeature {
			maxFeature = n.Feature
		}
	}
	return maxFeature, nil
}

// checkTrees validates all trees and the declared feature count against the split indices.
func checkTrees(trees []Tree, valueWidth, numFeatures int) (int, error) {
	if len(trees) == 0 {
		return 0, errors.New("model has no trees")
	}

	maxFeature := -1
	for i := range trees {
		m, err := trees[i].check(valueWidth)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		if m > maxFeature {
			maxFeature = m
		}
	}

	if numFeatures > 0 && maxFeature >= numFeatures {
		return 0, fmt.Errorf("split on feature %d but model declares %d features", maxFeature, numFeatures)
	}
	return maxFeature, nil
}
