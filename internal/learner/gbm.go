package learner

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/mikey/sms-spam-pipeline/internal/table"
)

// GBMParams configures gradient-boosted trees with logistic loss
type GBMParams struct {
	Common
	// Ratio is the share of rows used for training; the rest is held out for validation
	Ratio     float64
	NTrees    int
	MaxDepth  int
	MinRows   int
	LearnRate float64
	// Lambda is the L2 penalty on leaf values
	Lambda float64
}

// DefaultGBMParams returns the GBM defaults
func DefaultGBMParams() GBMParams {
	return GBMParams{
		Common:    DefaultCommon(),
		Ratio:     0.8,
		NTrees:    50,
		MaxDepth:  5,
		MinRows:   10,
		LearnRate: 0.1,
		Lambda:    1,
	}
}

func (p GBMParams) validate() error {
	if p.NTrees <= 0 || p.LearnRate <= 0 || p.MaxDepth < 0 || p.Lambda < 0 {
		return fmt.Errorf("%w: gbm needs ntrees > 0, learn_rate > 0, max_depth >= 0, lambda >= 0", ErrInvalidVariant)
	}
	return nil
}

func fitGBM(ctx context.Context, p GBMParams, d dataset) (scorer, Metrics, error) {
	train, valid, hasValid := d.split(p.Ratio)
	m, err := trainGBM(ctx, p, train)
	if err != nil {
		return nil, Metrics{}, err
	}
	return m, evaluate(fmt.Sprintf("GBM_depth%d", p.MaxDepth), m, train, valid, hasValid), nil
}

type gbmModel struct {
	init  float64
	trees []*tree
}

// Score returns the positive class probability
func (m *gbmModel) Score(x table.SparseVector) float64 {
	f := m.init
	for _, t := range m.trees {
		f += t.predict(x)
	}
	return sigmoid(f)
}

type treeNode struct {
	leaf      bool
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

type tree struct {
	nodes []treeNode
}

func (t *tree) predict(x table.SparseVector) float64 {
	i := 0
	for !t.nodes[i].leaf {
		n := t.nodes[i]
		if x.At(n.feature) <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return t.nodes[i].value
}

// entry is one non-zero feature value
type entry struct {
	row   int
	value float64
}

// group aggregates the rows of a node sharing one feature value
type group struct {
	value float64
	g, h  float64
	n     int
}

func trainGBM(ctx context.Context, p GBMParams, d dataset) (*gbmModel, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	n := d.len()

	// column view: for each feature, the non-zero entries sorted by value
	cols := make([][]entry, d.dim)
	for r, x := range d.X {
		for k, f := range x.Indices {
			cols[f] = append(cols[f], entry{row: r, value: x.Values[k]})
		}
	}
	for _, c := range cols {
		sort.SliceStable(c, func(i, j int) bool { return c[i].value < c[j].value })
	}

	prior := math.Min(math.Max(d.positiveRate(), 1e-6), 1-1e-6)
	m := &gbmModel{init: math.Log(prior / (1 - prior))}

	F := make([]float64, n)
	for i := range F {
		F[i] = m.init
	}

	g := make([]float64, n)
	h := make([]float64, n)
	minRows := max(p.MinRows, 1)
	for t := 0; t < p.NTrees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range F {
			prob := sigmoid(F[i])
			g[i] = prob - d.y[i]
			h[i] = prob * (1 - prob)
		}

		gr := &grower{
			X:       d.X,
			cols:    cols,
			g:       g,
			h:       h,
			nodeOf:  make([]int, n),
			p:       p,
			minRows: minRows,
		}
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		gr.nodes = append(gr.nodes, treeNode{})
		gr.build(0, rows, 0)

		tr := &tree{nodes: gr.nodes}
		for i := range F {
			F[i] += tr.nodes[gr.nodeOf[i]].value
		}
		m.trees = append(m.trees, tr)
	}
	return m, nil
}

// grower builds one regression tree on second-order gradient statistics
type grower struct {
	X       []table.SparseVector
	cols    [][]entry
	g, h    []float64
	nodeOf  []int
	nodes   []treeNode
	p       GBMParams
	minRows int
	groups  []group
}

func (gr *grower) build(node int, rows []int, depth int) {
	var G, H float64
	for _, r := range rows {
		gr.nodeOf[r] = node
		G += gr.g[r]
		H += gr.h[r]
	}

	leaf := func() {
		gr.nodes[node] = treeNode{leaf: true, value: -G / (H + gr.p.Lambda) * gr.p.LearnRate}
	}
	if (gr.p.MaxDepth > 0 && depth >= gr.p.MaxDepth) || len(rows) < 2*gr.minRows {
		leaf()
		return
	}

	feature, threshold, ok := gr.bestSplit(node, len(rows), G, H)
	if !ok {
		leaf()
		return
	}

	var left, right []int
	for _, r := range rows {
		if gr.X[r].At(feature) <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := len(gr.nodes)
	gr.nodes = append(gr.nodes, treeNode{}, treeNode{})
	gr.nodes[node] = treeNode{feature: feature, threshold: threshold, left: l, right: l + 1}
	gr.build(l, left, depth+1)
	gr.build(l+1, right, depth+1)
}

func (gr *grower) bestSplit(node, n int, G, H float64) (int, float64, bool) {
	lambda := gr.p.Lambda
	parent := G * G / (H + lambda)

	bestGain := 1e-12
	bestFeature, bestThreshold, found := 0, 0.0, false
	for f, col := range gr.cols {
		groups := gr.collect(node, col, n, G, H)
		if len(groups) < 2 {
			continue
		}

		var gl, hl float64
		nl := 0
		for i := 0; i < len(groups)-1; i++ {
			gl += groups[i].g
			hl += groups[i].h
			nl += groups[i].n
			nr := n - nl
			if nl < gr.minRows || nr < gr.minRows {
				continue
			}
			gr_, hr := G-gl, H-hl
			gain := gl*gl/(hl+lambda) + gr_*gr_/(hr+lambda) - parent
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (groups[i].value + groups[i+1].value) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

// collect merges the node's entries of one feature into value-ordered groups,
// with the implicit zeros as a single group in their sorted position.
func (gr *grower) collect(node int, col []entry, n int, G, H float64) []group {
	groups := gr.groups[:0]
	var nzG, nzH float64
	nz := 0
	zeroAt := -1
	for _, e := range col {
		if gr.nodeOf[e.row] != node {
			continue
		}
		if zeroAt < 0 && e.value > 0 {
			zeroAt = len(groups)
		}
		if k := len(groups) - 1; k >= 0 && groups[k].value == e.value && zeroAt != len(groups) {
			groups[k].g += gr.g[e.row]
			groups[k].h += gr.h[e.row]
			groups[k].n++
		} else {
			groups = append(groups, group{value: e.value, g: gr.g[e.row], h: gr.h[e.row], n: 1})
		}
		nzG += gr.g[e.row]
		nzH += gr.h[e.row]
		nz++
	}
	gr.groups = groups

	if nz == 0 || nz == n {
		return groups
	}
	if zeroAt < 0 {
		zeroAt = len(groups)
	}
	zero := group{value: 0, g: G - nzG, h: H - nzH, n: n - nz}
	groups = append(groups, group{})
	copy(groups[zeroAt+1:], groups[zeroAt:])
	groups[zeroAt] = zero
	gr.groups = groups
	return groups
}
