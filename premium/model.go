package premium

import (
	"fmt"
	"math"
)

// model is a fitted scoring function over a feature vector of fixed length
type model interface {
	predict(x FeatureVector) float64
}

type linearModel struct {
	intercept float64
	weights   []float64
}

func (m *linearModel) predict(x FeatureVector) float64 {
	sum := m.intercept
	for i, w := range m.weights {
		sum += w * x[i]
	}
	return sum
}

// treeNode is either a leaf or a split; samples with x[feature] < threshold
// go left
type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

// treeEnsemble sums leaf values of additive regression trees onto a base
// score, the way boosted tree exports are evaluated
type treeEnsemble struct {
	base  float64
	trees [][]treeNode
}

func (m *treeEnsemble) predict(x FeatureVector) float64 {
	sum := m.base
	for _, nodes := range m.trees {
		i := 0
		for !nodes[i].leaf {
			n := nodes[i]
			if x[n.feature] < n.threshold {
				i = n.left
			} else {
				i = n.right
			}
		}
		sum += nodes[i].value
	}
	return sum
}

func compileModel(mf modelFile, dim int) (model, error) {
	switch mf.Type {
	case "linear":
		if len(mf.Weights) != dim {
			return nil, fmt.Errorf("linear model has %d weights, expected %d", len(mf.Weights), dim)
		}
		if !isFinite(mf.Intercept) {
			return nil, fmt.Errorf("linear model intercept is not finite")
		}
		for i, w := range mf.Weights {
			if !isFinite(w) {
				return nil, fmt.Errorf("linear model weight %d is not finite", i)
			}
		}
		return &linearModel{
			intercept: mf.Intercept,
			weights:   append([]float64(nil), mf.Weights...),
		}, nil

	case "trees":
		if len(mf.Trees) == 0 {
			return nil, fmt.Errorf("tree ensemble has no trees")
		}
		ens := &treeEnsemble{base: mf.BaseScore, trees: make([][]treeNode, len(mf.Trees))}
		for t, tf := range mf.Trees {
			nodes, err := compileTree(tf, dim)
			if err != nil {
				return nil, fmt.Errorf("tree %d: %w", t, err)
			}
			ens.trees[t] = nodes
		}
		return ens, nil

	default:
		return nil, fmt.Errorf("unknown model type %q", mf.Type)
	}
}

// compileTree requires children to sit after their parent, which rules out
// cycles and guarantees evaluation terminates
func compileTree(tf treeFile, dim int) ([]treeNode, error) {
	if len(tf.Nodes) == 0 {
		return nil, fmt.Errorf("tree has no nodes")
	}

	nodes := make([]treeNode, len(tf.Nodes))
	for i, nf := range tf.Nodes {
		switch {
		case nf.Leaf != nil && nf.Feature != nil:
			return nil, fmt.Errorf("node %d is both a leaf and a split", i)
		case nf.Leaf != nil:
			if !isFinite(*nf.Leaf) {
				return nil, fmt.Errorf("node %d leaf value is not finite", i)
			}
			nodes[i] = treeNode{leaf: true, value: *nf.Leaf}
		case nf.Feature != nil:
			f := *nf.Feature
			if f < 0 || f >= dim {
				return nil, fmt.Errorf("node %d splits on feature %d, vector has %d", i, f, dim)
			}
			for _, child := range []int{nf.Left, nf.Right} {
				if child <= i || child >= len(tf.Nodes) {
					return nil, fmt.Errorf("node %d has invalid child %d", i, child)
				}
			}
			nodes[i] = treeNode{feature: f, threshold: nf.Threshold, left: nf.Left, right: nf.Right}
		default:
			return nil, fmt.Errorf("node %d is neither a leaf nor a split", i)
		}
	}
	return nodes, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
