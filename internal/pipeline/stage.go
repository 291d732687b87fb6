package pipeline

import (
	"context"

	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
)

// Stage is one unit of a pipeline. Columns are wired between stages by name.
type Stage interface {
	// Name identifies the stage in logs and errors
	Name() string

	// InputCols lists the columns the stage reads
	InputCols() []string

	// OutputCols lists the columns the stage appends
	OutputCols() []string
}

// Transformer is a stage that maps a table to a new table without learning anything
type Transformer interface {
	Stage

	// Transform returns a new table; the input table is never modified
	Transform(ctx context.Context, sess *session.Session, t *table.Table) (*table.Table, error)
}

// Estimator is a stage that learns from a table and yields a fitted Transformer
type Estimator interface {
	Stage

	// Fit learns the stage parameters from t
	Fit(ctx context.Context, sess *session.Session, t *table.Table) (Transformer, error)
}
