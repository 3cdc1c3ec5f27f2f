package boosting

import (
	"errors"
	"math"
	"sort"
)

// Node is one node of a regression tree, stored in a flat slice. Leaves have
// Feature == -1 and carry the already shrunk leaf weight in Value.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is a regression tree.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) predict(x []float64) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, errors.New("empty tree")
	}
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.Feature < 0 {
			return node.Value, nil
		}
		if node.Feature >= len(x) {
			return 0, errors.New("feature index out of range")
		}
		if x[node.Feature] < node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
		if idx <= 0 || idx >= len(t.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

// treeBuilder grows one tree on gradient statistics with exact greedy splits.
type treeBuilder struct {
	x        [][]float64
	grad     []float64
	hess     []float64
	features []int
	params   Params
	nodes    []Node
	gain     []float64
	splits   []int
}

func (b *treeBuilder) build(rows []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(rows, 0)
	return Tree{Nodes: append([]Node(nil), b.nodes...)}
}

// grow appends the subtree for rows and returns its root index.
func (b *treeBuilder) grow(rows []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	g, h := b.sums(rows)
	leaf := -g / (h + b.params.Lambda) * b.params.LearningRate

	if depth >= b.params.MaxDepth || len(rows) < 2 {
		b.nodes[idx].Value = leaf
		return idx
	}

	feature, threshold, gain, ok := b.bestSplit(rows, g, h)
	if !ok {
		b.nodes[idx].Value = leaf
		return idx
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, r := range rows {
		if b.x[r][feature] < threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	b.gain[feature] += gain
	b.splits[feature]++

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

func (b *treeBuilder) sums(rows []int) (float64, float64) {
	var g, h float64
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}
	return g, h
}

func (b *treeBuilder) bestSplit(rows []int, g, h float64) (int, float64, float64, bool) {
	lambda := b.params.Lambda
	parent := g * g / (h + lambda)

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	order := make([]int, len(rows))

	for _, f := range b.features {
		copy(order, rows)
		sort.SliceStable(order, func(i, j int) bool { return b.x[order[i]][f] < b.x[order[j]][f] })

		var gl, hl float64
		for i := 0; i < len(order)-1; i++ {
			r := order[i]
			gl += b.grad[r]
			hl += b.hess[r]

			cur, next := b.x[r][f], b.x[order[i+1]][f]
			if cur == next {
				continue
			}
			gr, hr := g-gl, h-hl
			if hl < b.params.MinChildWeight || hr < b.params.MinChildWeight {
				continue
			}
			gain := 0.5 * (gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent)
			if gain > bestGain {
				bestFeature, bestGain = f, gain
				bestThreshold = cur + (next-cur)/2
				if bestThreshold <= cur {
					bestThreshold = next
				}
			}
		}
	}
	if bestFeature < 0 || math.IsNaN(bestGain) {
		return -1, 0, 0, false
	}
	return bestFeature, bestThreshold, bestGain, true
}
