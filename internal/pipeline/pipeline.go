package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
	"go.uber.org/zap"
)

var (
	// ErrNoStages is returned when assembling an empty pipeline
	ErrNoStages = errors.New("pipeline has no stages")
	// ErrColumnCollision is returned when two stages claim the same column
	ErrColumnCollision = errors.New("column name collision")
	// ErrInvalidStage is returned for stages that neither transform nor fit
	ErrInvalidStage = errors.New("stage is neither a transformer nor an estimator")
	// ErrNoTrainingData is returned when fitting on an empty table
	ErrNoTrainingData = errors.New("no training data")
)

// Pipeline is an ordered, validated list of stages
type Pipeline struct {
	sess   *session.Session
	stages []Stage
}

// Assemble validates the stage list and fixes its order.
// Column collisions are reported here, before anything runs.
func Assemble(sess *session.Session, stages ...Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}

	produced := make(map[string]string)
	consumed := make(map[string]string)
	for _, s := range stages {
		switch s.(type) {
		case Transformer, Estimator:
		default:
			return nil, fmt.Errorf("%w: %s", ErrInvalidStage, s.Name())
		}

		for _, in := range s.InputCols() {
			if _, ok := consumed[in]; !ok {
				consumed[in] = s.Name()
			}
		}
		for _, out := range s.OutputCols() {
			if owner, ok := produced[out]; ok {
				return nil, fmt.Errorf("%w: %q produced by both %s and %s", ErrColumnCollision, out, owner, s.Name())
			}
			if reader, ok := consumed[out]; ok {
				return nil, fmt.Errorf("%w: %s overwrites %q read by %s", ErrColumnCollision, s.Name(), out, reader)
			}
			produced[out] = s.Name()
		}
	}

	return &Pipeline{
		sess:   sess,
		stages: append([]Stage(nil), stages...),
	}, nil
}

// Stages returns the stages in execution order
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// Fit runs every stage in order, fitting estimators on the table produced by
// the stages before them. Each call returns a new Model.
func (p *Pipeline) Fit(ctx context.Context, t *table.Table) (*Model, error) {
	if t.NumRows() == 0 {
		return nil, ErrNoTrainingData
	}

	logger := p.sess.Logger()
	fitted := make([]Transformer, 0, len(p.stages))
	current := t
	for i, s := range p.stages {
		start := time.Now()

		var tr Transformer
		switch st := s.(type) {
		case Estimator:
			var err error
			tr, err = st.Fit(ctx, p.sess, current)
			if err != nil {
				return nil, fmt.Errorf("failed to fit stage %d (%s): %w", i, s.Name(), err)
			}
		case Transformer:
			tr = st
		}

		// The last stage's output is not needed to finish fitting
		if i < len(p.stages)-1 {
			next, err := tr.Transform(ctx, p.sess, current)
			if err != nil {
				return nil, fmt.Errorf("failed to run stage %d (%s): %w", i, s.Name(), err)
			}
			current = next
		}

		fitted = append(fitted, tr)
		logger.Debug("Fitted stage",
			zap.Int("index", i),
			zap.String("stage", s.Name()),
			zap.Duration("duration", time.Since(start)))
	}

	m := &Model{
		id:     uuid.NewString(),
		sess:   p.sess,
		stages: fitted,
	}
	logger.Info("Pipeline fitted",
		zap.String("model_id", m.id),
		zap.Int("stages", len(fitted)),
		zap.Int("rows", t.NumRows()))
	return m, nil
}

// Model is a fitted pipeline. It is read-only and safe for concurrent use.
type Model struct {
	id     string
	sess   *session.Session
	stages []Transformer
}

// ID returns the model identifier
func (m *Model) ID() string { return m.id }

// Stages returns the fitted stages in execution order
func (m *Model) Stages() []Transformer {
	return append([]Transformer(nil), m.stages...)
}

// Transform applies every fitted stage in order
func (m *Model) Transform(ctx context.Context, t *table.Table) (*table.Table, error) {
	current := t
	for i, s := range m.stages {
		next, err := s.Transform(ctx, m.sess, current)
		if err != nil {
			return nil, fmt.Errorf("failed to run stage %d (%s): %w", i, s.Name(), err)
		}
		current = next
	}
	return current, nil
}
