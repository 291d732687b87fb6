package table

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn is returned when a referenced column does not exist
	ErrMissingColumn = errors.New("missing column")
	// ErrColumnExists is returned when appending a column whose name is already taken
	ErrColumnExists = errors.New("column already exists")
	// ErrLengthMismatch is returned when a column's row count differs from the table's
	ErrLengthMismatch = errors.New("column length mismatch")
	// ErrColumnKind is returned when a column is read as the wrong kind
	ErrColumnKind = errors.New("unexpected column kind")
)

// Record is a single labeled SMS sample
type Record struct {
	Label string
	Text  string
}

// Table is an immutable, ordered set of equally sized named columns.
// Operations that change the shape return a new Table sharing column storage.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a table from the given columns
func New(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, ok := t.index[c.name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnExists, c.name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrLengthMismatch, c.name, c.Len(), t.rows)
		}
		t.index[c.name] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// FromRecords builds a (label, text) table
func FromRecords(records []Record) *Table {
	labels := make([]string, len(records))
	texts := make([]string, len(records))
	for i, r := range records {
		labels[i] = r.Label
		texts[i] = r.Text
	}
	t, _ := New(StringColumn("label", labels), StringColumn("text", texts))
	return t
}

// FromTexts builds a single-column (text) table, the shape used for inference
func FromTexts(texts ...string) *Table {
	t, _ := New(StringColumn("text", append([]string(nil), texts...)))
	return t
}

// NumRows returns the number of rows
func (t *Table) NumRows() int {
	return t.rows
}

// Columns returns the column names in order
func (t *Table) Columns() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

// Has reports whether the table contains the named column
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return t.cols[i], nil
}

// With returns a new table with col appended
func (t *Table) With(col *Column) (*Table, error) {
	if t.Has(col.name) {
		return nil, fmt.Errorf("%w: %s", ErrColumnExists, col.name)
	}
	if len(t.cols) > 0 && col.Len() != t.rows {
		return nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrLengthMismatch, col.name, col.Len(), t.rows)
	}
	cols := make([]*Column, 0, len(t.cols)+1)
	cols = append(cols, t.cols...)
	cols = append(cols, col)
	return New(cols...)
}

// Drop returns a new table without the named columns. Absent names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	out := &Table{index: make(map[string]int, len(t.cols)), rows: t.rows}
	for _, c := range t.cols {
		if _, ok := drop[c.name]; ok {
			continue
		}
		out.index[c.name] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out
}

// Strings returns the values of a String column
func (t *Table) Strings(name string) ([]string, error) {
	c, err := t.typed(name, KindString)
	if err != nil {
		return nil, err
	}
	return c.strings, nil
}

// Tokens returns the values of a Tokens column
func (t *Table) Tokens(name string) ([][]string, error) {
	c, err := t.typed(name, KindTokens)
	if err != nil {
		return nil, err
	}
	return c.tokens, nil
}

// Vectors returns the values of a Vector column
func (t *Table) Vectors(name string) ([]SparseVector, error) {
	c, err := t.typed(name, KindVector)
	if err != nil {
		return nil, err
	}
	return c.vectors, nil
}

// Floats returns the values of a Float column
func (t *Table) Floats(name string) ([]float64, error) {
	c, err := t.typed(name, KindFloat)
	if err != nil {
		return nil, err
	}
	return c.floats, nil
}

func (t *Table) typed(name string, kind Kind) (*Column, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.kind != kind {
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrColumnKind, name, c.kind, kind)
	}
	return c, nil
}
