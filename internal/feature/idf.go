package feature

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mikey/sms-spam-pipeline/internal/pipeline"
	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
	"go.uber.org/zap"
)

var (
	// ErrNoTrainingData is returned when an estimator is fitted on zero rows
	ErrNoTrainingData = pipeline.ErrNoTrainingData
	// ErrDimensionMismatch is returned when a vector size differs from the fitted size
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// IDFConfig configures the IDF estimator
type IDFConfig struct {
	InputCol   string
	OutputCol  string
	MinDocFreq int
}

// DefaultIDFConfig returns the configuration used for SMS text
func DefaultIDFConfig() IDFConfig {
	return IDFConfig{
		InputCol:   "wordToIndex",
		OutputCol:  "tf_idf",
		MinDocFreq: 4,
	}
}

// IDF learns inverse document frequency weights
type IDF struct {
	cfg IDFConfig
}

// NewIDF creates an IDF estimator
func NewIDF(cfg IDFConfig) *IDF {
	return &IDF{cfg: cfg}
}

func (e *IDF) Name() string         { return "IDF" }
func (e *IDF) InputCols() []string  { return []string{e.cfg.InputCol} }
func (e *IDF) OutputCols() []string { return []string{e.cfg.OutputCol} }

// Fit computes per-bucket document frequencies and derives
// ln((m+1)/(df+1)) for buckets seen in at least MinDocFreq documents.
func (e *IDF) Fit(ctx context.Context, sess *session.Session, tbl *table.Table) (pipeline.Transformer, error) {
	vectors, err := tbl.Vectors(e.cfg.InputCol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name(), err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%s: %w", e.Name(), ErrNoTrainingData)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := vectors[0].Size
	df := make([]int, size)
	for _, v := range vectors {
		if v.Size != size {
			return nil, fmt.Errorf("%s: %w: got %d, want %d", e.Name(), ErrDimensionMismatch, v.Size, size)
		}
		for k, i := range v.Indices {
			if v.Values[k] > 0 {
				df[i]++
			}
		}
	}

	m := float64(len(vectors))
	weights := make([]float64, size)
	kept := 0
	for i, n := range df {
		if n >= e.cfg.MinDocFreq {
			weights[i] = math.Log((m + 1) / (float64(n) + 1))
			kept++
		}
	}

	sess.Logger().Debug("Fitted IDF",
		zap.Int("documents", len(vectors)),
		zap.Int("buckets", size),
		zap.Int("weighted_buckets", kept))

	return &IDFModel{cfg: e.cfg, weights: weights}, nil
}

// IDFModel rescales term frequencies by learned weights
type IDFModel struct {
	cfg     IDFConfig
	weights []float64
}

func (m *IDFModel) Name() string         { return "IDFModel" }
func (m *IDFModel) InputCols() []string  { return []string{m.cfg.InputCol} }
func (m *IDFModel) OutputCols() []string { return []string{m.cfg.OutputCol} }

// Weight returns the learned weight of bucket i
func (m *IDFModel) Weight(i int) float64 {
	return m.weights[i]
}

// Apply rescales a single vector. Zero-weight buckets are dropped.
func (m *IDFModel) Apply(v table.SparseVector) (table.SparseVector, error) {
	if v.Size != len(m.weights) {
		return table.SparseVector{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, v.Size, len(m.weights))
	}
	out := table.SparseVector{Size: v.Size}
	for k, i := range v.Indices {
		x := v.Values[k] * m.weights[i]
		if x == 0 {
			continue
		}
		out.Indices = append(out.Indices, i)
		out.Values = append(out.Values, x)
	}
	return out, nil
}

// Transform appends the weighted column
func (m *IDFModel) Transform(ctx context.Context, sess *session.Session, tbl *table.Table) (*table.Table, error) {
	vectors, err := tbl.Vectors(m.cfg.InputCol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name(), err)
	}

	out := make([]table.SparseVector, len(vectors))
	err = sess.Partition(ctx, len(vectors), func(_ context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			v, err := m.Apply(vectors[i])
			if err != nil {
				return fmt.Errorf("%s: row %d: %w", m.Name(), i, err)
			}
			out[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tbl.With(table.VectorColumn(m.cfg.OutputCol, out))
}
