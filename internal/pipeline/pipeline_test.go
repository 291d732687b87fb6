package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	calls []string
}

// copyStage duplicates a string column and records the call
type copyStage struct {
	name    string
	in, out string
	rec     *recorder
}

func (s *copyStage) Name() string         { return s.name }
func (s *copyStage) InputCols() []string  { return []string{s.in} }
func (s *copyStage) OutputCols() []string { return []string{s.out} }

func (s *copyStage) Transform(_ context.Context, _ *session.Session, t *table.Table) (*table.Table, error) {
	s.rec.calls = append(s.rec.calls, "transform:"+s.name)
	values, err := t.Strings(s.in)
	if err != nil {
		return nil, err
	}
	return t.With(table.StringColumn(s.out, values))
}

type countEstimator struct {
	name string
	in   string
	out  string
	rec  *recorder
	err  error
}

func (e *countEstimator) Name() string         { return e.name }
func (e *countEstimator) InputCols() []string  { return []string{e.in} }
func (e *countEstimator) OutputCols() []string { return []string{e.out} }

func (e *countEstimator) Fit(_ context.Context, _ *session.Session, t *table.Table) (Transformer, error) {
	e.rec.calls = append(e.rec.calls, "fit:"+e.name)
	if e.err != nil {
		return nil, e.err
	}
	if _, err := t.Strings(e.in); err != nil {
		return nil, err
	}
	return &countModel{est: e, rows: t.NumRows()}, nil
}

type countModel struct {
	est  *countEstimator
	rows int
}

func (m *countModel) Name() string         { return m.est.name + "Model" }
func (m *countModel) InputCols() []string  { return []string{m.est.in} }
func (m *countModel) OutputCols() []string { return []string{m.est.out} }

func (m *countModel) Transform(_ context.Context, _ *session.Session, t *table.Table) (*table.Table, error) {
	m.est.rec.calls = append(m.est.rec.calls, "transform:"+m.Name())
	values := make([]float64, t.NumRows())
	for i := range values {
		values[i] = float64(m.rows)
	}
	return t.With(table.FloatColumn(m.est.out, values))
}

type bareStage struct{}

func (bareStage) Name() string         { return "bare" }
func (bareStage) InputCols() []string  { return nil }
func (bareStage) OutputCols() []string { return nil }

func newSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(zap.NewNop(), session.Options{Workers: 2})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAssemble_Errors(t *testing.T) {
	sess := newSession(t)
	rec := &recorder{}

	_, err := Assemble(sess)
	assert.ErrorIs(t, err, ErrNoStages)

	_, err = Assemble(sess, bareStage{})
	assert.ErrorIs(t, err, ErrInvalidStage)

	_, err = Assemble(sess,
		&copyStage{name: "a", in: "text", out: "words", rec: rec},
		&copyStage{name: "b", in: "text", out: "words", rec: rec},
	)
	assert.ErrorIs(t, err, ErrColumnCollision)

	_, err = Assemble(sess,
		&copyStage{name: "a", in: "text", out: "words", rec: rec},
		&copyStage{name: "b", in: "words", out: "text", rec: rec},
	)
	assert.ErrorIs(t, err, ErrColumnCollision)
	assert.Empty(t, rec.calls)
}

func TestPipeline_FitAndTransform(t *testing.T) {
	sess := newSession(t)
	rec := &recorder{}
	p, err := Assemble(sess,
		&copyStage{name: "copy", in: "text", out: "words", rec: rec},
		&countEstimator{name: "count", in: "words", out: "n", rec: rec},
		&copyStage{name: "tail", in: "text", out: "echo", rec: rec},
	)
	require.NoError(t, err)
	assert.Len(t, p.Stages(), 3)

	m, err := p.Fit(context.Background(), table.FromTexts("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"transform:copy",
		"fit:count",
		"transform:countModel",
	}, rec.calls)
	assert.NotEmpty(t, m.ID())
	require.Len(t, m.Stages(), 3)
	assert.Equal(t, "countModel", m.Stages()[1].Name())

	rec.calls = nil
	out, err := m.Transform(context.Background(), table.FromTexts("x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"transform:copy", "transform:countModel", "transform:tail"}, rec.calls)
	assert.Equal(t, []string{"text", "words", "n", "echo"}, out.Columns())

	n, err := out.Floats("n")
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, n)

	m2, err := p.Fit(context.Background(), table.FromTexts("a"))
	require.NoError(t, err)
	assert.NotEqual(t, m.ID(), m2.ID())
}

func TestPipeline_FitErrors(t *testing.T) {
	sess := newSession(t)
	rec := &recorder{}
	boom := errors.New("boom")

	p, err := Assemble(sess, &countEstimator{name: "count", in: "text", out: "n", rec: rec, err: boom})
	require.NoError(t, err)

	_, err = p.Fit(context.Background(), table.FromTexts())
	assert.ErrorIs(t, err, ErrNoTrainingData)

	_, err = p.Fit(context.Background(), table.FromTexts("a"))
	assert.ErrorIs(t, err, boom)
}

func TestModel_TransformMissingColumn(t *testing.T) {
	sess := newSession(t)
	rec := &recorder{}
	p, err := Assemble(sess, &copyStage{name: "copy", in: "text", out: "words", rec: rec})
	require.NoError(t, err)

	m, err := p.Fit(context.Background(), table.FromTexts("a"))
	require.NoError(t, err)

	empty, err := table.New(table.StringColumn("other", []string{"x"}))
	require.NoError(t, err)
	_, err = m.Transform(context.Background(), empty)
	assert.ErrorIs(t, err, table.ErrMissingColumn)
}
