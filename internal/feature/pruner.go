package feature

import (
	"context"
	"fmt"

	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
)

// PrunerConfig configures a ColumnPruner
type PrunerConfig struct {
	Columns []string
	// Strict fails when a listed column is absent; otherwise absent columns are skipped
	Strict bool
}

// ColumnPruner drops working columns from a table
type ColumnPruner struct {
	cfg PrunerConfig
}

// NewColumnPruner creates a pruner. The column list is copied.
func NewColumnPruner(cfg PrunerConfig) *ColumnPruner {
	cfg.Columns = append([]string(nil), cfg.Columns...)
	return &ColumnPruner{cfg: cfg}
}

func (p *ColumnPruner) Name() string         { return "ColumnPruner" }
func (p *ColumnPruner) InputCols() []string  { return nil }
func (p *ColumnPruner) OutputCols() []string { return nil }

// Columns returns the columns the pruner removes
func (p *ColumnPruner) Columns() []string {
	return append([]string(nil), p.cfg.Columns...)
}

// Transform returns the table without the configured columns
func (p *ColumnPruner) Transform(_ context.Context, _ *session.Session, tbl *table.Table) (*table.Table, error) {
	if p.cfg.Strict {
		for _, c := range p.cfg.Columns {
			if !tbl.Has(c) {
				return nil, fmt.Errorf("%s: %w: %s", p.Name(), table.ErrMissingColumn, c)
			}
		}
	}
	return tbl.Drop(p.cfg.Columns...), nil
}
