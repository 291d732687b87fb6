package table

import "sort"

// Kind identifies the value type stored in a column
type Kind int

const (
	KindString Kind = iota
	KindTokens
	KindVector
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindTokens:
		return "tokens"
	case KindVector:
		return "vector"
	case KindFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Column is a named, typed sequence of values. Only the slice matching Kind is set.
type Column struct {
	name    string
	kind    Kind
	strings []string
	tokens  [][]string
	vectors []SparseVector
	floats  []float64
}

// StringColumn creates a column of strings
func StringColumn(name string, values []string) *Column {
	return &Column{name: name, kind: KindString, strings: values}
}

// TokensColumn creates a column of token sequences
func TokensColumn(name string, values [][]string) *Column {
	return &Column{name: name, kind: KindTokens, tokens: values}
}

// VectorColumn creates a column of sparse vectors
func VectorColumn(name string, values []SparseVector) *Column {
	return &Column{name: name, kind: KindVector, vectors: values}
}

// FloatColumn creates a column of floats
func FloatColumn(name string, values []float64) *Column {
	return &Column{name: name, kind: KindFloat, floats: values}
}

// Name returns the column name
func (c *Column) Name() string { return c.name }

// Kind returns the column kind
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of rows
func (c *Column) Len() int {
	switch c.kind {
	case KindString:
		return len(c.strings)
	case KindTokens:
		return len(c.tokens)
	case KindVector:
		return len(c.vectors)
	case KindFloat:
		return len(c.floats)
	}
	return 0
}

// SparseVector is a fixed-size vector storing only non-zero entries.
// Indices are strictly increasing.
type SparseVector struct {
	Size    int
	Indices []int
	Values  []float64
}

// NewSparseVector builds a vector from an index->value map, dropping zeros
func NewSparseVector(size int, entries map[int]float64) SparseVector {
	v := SparseVector{Size: size}
	for i, x := range entries {
		if x != 0 {
			v.Indices = append(v.Indices, i)
		}
	}
	sort.Ints(v.Indices)
	v.Values = make([]float64, len(v.Indices))
	for k, i := range v.Indices {
		v.Values[k] = entries[i]
	}
	return v
}

// At returns the value at index i
func (v SparseVector) At(i int) float64 {
	k := sort.SearchInts(v.Indices, i)
	if k < len(v.Indices) && v.Indices[k] == i {
		return v.Values[k]
	}
	return 0
}

// Dense expands the vector
func (v SparseVector) Dense() []float64 {
	out := make([]float64, v.Size)
	for k, i := range v.Indices {
		out[i] = v.Values[k]
	}
	return out
}

// NNZ returns the number of stored entries
func (v SparseVector) NNZ() int {
	return len(v.Indices)
}
