package learner

import (
	"context"
	"fmt"
	"math"

	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
)

// block is the slice of the encoded feature space owned by one input column
type block struct {
	col    string
	kind   table.Kind
	offset int
	size   int
	levels map[string]int
}

// encoder flattens the feature columns into one sparse vector per row.
// Vector columns are copied, Float columns take one slot and String columns
// are one-hot encoded over the levels seen in training.
type encoder struct {
	blocks      []block
	dim         int
	unknownToNA bool
}

func fitEncoder(t *table.Table, cols []string, unknownToNA bool) (*encoder, error) {
	enc := &encoder{unknownToNA: unknownToNA}
	for _, name := range cols {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}

		b := block{col: name, kind: col.Kind(), offset: enc.dim}
		switch col.Kind() {
		case table.KindVector:
			vectors, _ := t.Vectors(name)
			if len(vectors) > 0 {
				b.size = vectors[0].Size
			}
		case table.KindFloat:
			b.size = 1
		case table.KindString:
			values, _ := t.Strings(name)
			levels := distinct(values)
			b.levels = make(map[string]int, len(levels))
			for i, lv := range levels {
				b.levels[lv] = i
			}
			b.size = len(levels)
		default:
			return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedFeature, name, col.Kind())
		}

		enc.blocks = append(enc.blocks, b)
		enc.dim += b.size
	}
	return enc, nil
}

func (e *encoder) encode(ctx context.Context, sess *session.Session, t *table.Table) ([]table.SparseVector, error) {
	type source struct {
		vectors []table.SparseVector
		floats  []float64
		strings []string
	}

	sources := make([]source, len(e.blocks))
	for i, b := range e.blocks {
		var err error
		switch b.kind {
		case table.KindVector:
			sources[i].vectors, err = t.Vectors(b.col)
		case table.KindFloat:
			sources[i].floats, err = t.Floats(b.col)
		case table.KindString:
			sources[i].strings, err = t.Strings(b.col)
		}
		if err != nil {
			return nil, err
		}
	}

	out := make([]table.SparseVector, t.NumRows())
	err := sess.Partition(ctx, len(out), func(_ context.Context, lo, hi int) error {
		for r := lo; r < hi; r++ {
			v := table.SparseVector{Size: e.dim}
			for i, b := range e.blocks {
				switch b.kind {
				case table.KindVector:
					src := sources[i].vectors[r]
					if src.Size != b.size {
						return fmt.Errorf("%w: %s row %d has size %d, want %d", ErrDimensionMismatch, b.col, r, src.Size, b.size)
					}
					for k, idx := range src.Indices {
						v.Indices = append(v.Indices, b.offset+idx)
						v.Values = append(v.Values, src.Values[k])
					}
				case table.KindFloat:
					if x := sources[i].floats[r]; x != 0 && !math.IsNaN(x) {
						v.Indices = append(v.Indices, b.offset)
						v.Values = append(v.Values, x)
					}
				case table.KindString:
					value := sources[i].strings[r]
					lv, ok := b.levels[value]
					if !ok {
						if e.unknownToNA {
							continue
						}
						return fmt.Errorf("%w: %s=%q", ErrUnknownCategoricalLevel, b.col, value)
					}
					v.Indices = append(v.Indices, b.offset+lv)
					v.Values = append(v.Values, 1)
				}
			}
			out[r] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
