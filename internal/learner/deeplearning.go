package learner

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/mikey/sms-spam-pipeline/internal/table"
)

// DeepLearningParams configures a feed-forward network trained with SGD.
// An empty Hidden gives a plain logistic regression.
type DeepLearningParams struct {
	Common
	Epochs int
	L1     float64
	L2     float64
	Hidden []int
	Rate   float64
}

// DefaultDeepLearningParams returns the network defaults
func DefaultDeepLearningParams() DeepLearningParams {
	return DeepLearningParams{
		Common: DefaultCommon(),
		Epochs: 10,
		L1:     0.001,
		L2:     0,
		Hidden: []int{200, 200},
		Rate:   0.005,
	}
}

func (p DeepLearningParams) validate() error {
	if p.Epochs <= 0 || p.Rate <= 0 || p.L1 < 0 || p.L2 < 0 {
		return fmt.Errorf("%w: deep learning needs epochs > 0, rate > 0, l1 >= 0, l2 >= 0", ErrInvalidVariant)
	}
	for _, h := range p.Hidden {
		if h <= 0 {
			return fmt.Errorf("%w: hidden layer sizes must be positive, got %v", ErrInvalidVariant, p.Hidden)
		}
	}
	return nil
}

func (p DeepLearningParams) modelName() string {
	if len(p.Hidden) == 0 {
		return "GLM"
	}
	sizes := make([]string, len(p.Hidden))
	for i, h := range p.Hidden {
		sizes[i] = strconv.Itoa(h)
	}
	return "DeepLearning_" + strings.Join(sizes, "x")
}

func fitDeepLearning(ctx context.Context, p DeepLearningParams, d dataset) (scorer, Metrics, error) {
	n, err := trainNetwork(ctx, p, d)
	if err != nil {
		return nil, Metrics{}, err
	}
	return n, evaluate(p.modelName(), n, d, dataset{}, false), nil
}

// layer weights are input-major: w[i*out+j] connects input i to unit j
type layer struct {
	in, out int
	w       []float64
	b       []float64
}

type network struct {
	layers []layer
}

func newNetwork(dim int, hidden []int, rng *rand.Rand) *network {
	sizes := append(append([]int{dim}, hidden...), 1)
	n := &network{}
	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		ly := layer{in: in, out: out, w: make([]float64, in*out), b: make([]float64, out)}
		limit := math.Sqrt(6 / float64(in+out))
		for i := range ly.w {
			ly.w[i] = (rng.Float64()*2 - 1) * limit
		}
		n.layers = append(n.layers, ly)
	}
	return n
}

// forward fills the pre-activations z and activations a of every layer and
// returns the output probability
func (n *network) forward(x table.SparseVector, z, a [][]float64) float64 {
	last := len(n.layers) - 1
	for l, ly := range n.layers {
		zl := z[l]
		copy(zl, ly.b)
		if l == 0 {
			for k, idx := range x.Indices {
				if idx >= ly.in {
					continue
				}
				v := x.Values[k]
				row := ly.w[idx*ly.out : (idx+1)*ly.out]
				for j, w := range row {
					zl[j] += v * w
				}
			}
		} else {
			for i, v := range a[l-1] {
				if v == 0 {
					continue
				}
				row := ly.w[i*ly.out : (i+1)*ly.out]
				for j, w := range row {
					zl[j] += v * w
				}
			}
		}
		if l < last {
			for j, v := range zl {
				a[l][j] = math.Max(v, 0)
			}
		}
	}
	return sigmoid(z[last][0])
}

func (n *network) buffers() (z, a [][]float64) {
	z = make([][]float64, len(n.layers))
	a = make([][]float64, len(n.layers))
	for l, ly := range n.layers {
		z[l] = make([]float64, ly.out)
		a[l] = make([]float64, ly.out)
	}
	return z, a
}

// Score returns the positive class probability
func (n *network) Score(x table.SparseVector) float64 {
	z, a := n.buffers()
	return n.forward(x, z, a)
}

func trainNetwork(ctx context.Context, p DeepLearningParams, d dataset) (*network, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(d.seed))
	n := newNetwork(d.dim, p.Hidden, rng)
	z, a := n.buffers()

	deltas := make([][]float64, len(n.layers))
	for l, ly := range n.layers {
		deltas[l] = make([]float64, ly.out)
	}

	update := func(w, grad float64) float64 {
		reg := p.L2 * w
		if w > 0 {
			reg += p.L1
		} else if w < 0 {
			reg -= p.L1
		}
		return w - p.Rate*(grad+reg)
	}

	for epoch := 0; epoch < p.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, r := range rng.Perm(d.len()) {
			x := d.X[r]
			prob := n.forward(x, z, a)

			last := len(n.layers) - 1
			deltas[last][0] = prob - d.y[r]
			for l := last; l >= 0; l-- {
				ly := n.layers[l]
				delta := deltas[l]

				// propagate before the weights of this layer move
				if l > 0 {
					prev := deltas[l-1]
					for i := range prev {
						if z[l-1][i] <= 0 {
							prev[i] = 0
							continue
						}
						row := ly.w[i*ly.out : (i+1)*ly.out]
						s := 0.0
						for j, w := range row {
							s += w * delta[j]
						}
						prev[i] = s
					}
				}

				if l == 0 {
					for k, idx := range x.Indices {
						if idx >= ly.in {
							continue
						}
						v := x.Values[k]
						row := ly.w[idx*ly.out : (idx+1)*ly.out]
						for j := range row {
							row[j] = update(row[j], v*delta[j])
						}
					}
				} else {
					for i, v := range a[l-1] {
						if v == 0 {
							continue
						}
						row := ly.w[i*ly.out : (i+1)*ly.out]
						for j := range row {
							row[j] = update(row[j], v*delta[j])
						}
					}
				}
				for j := range ly.b {
					ly.b[j] -= p.Rate * delta[j]
				}
			}
		}
	}
	return n, nil
}
