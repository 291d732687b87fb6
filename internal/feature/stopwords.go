package feature

import (
	"context"
	"fmt"

	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
	"golang.org/x/text/cases"
)

// DefaultStopWords is the short list of ignored SMS words
var DefaultStopWords = []string{"the", "a", "", "in", "on", "at", "as", "not", "for"}

// StopWordsConfig configures a StopWordsRemover
type StopWordsConfig struct {
	InputCol      string
	OutputCol     string
	StopWords     []string
	CaseSensitive bool
}

// DefaultStopWordsConfig returns the configuration used for SMS text
func DefaultStopWordsConfig() StopWordsConfig {
	return StopWordsConfig{
		InputCol:  "words",
		OutputCol: "filtered",
		StopWords: append([]string(nil), DefaultStopWords...),
	}
}

// StopWordsRemover drops tokens found in a fixed stop-word set
type StopWordsRemover struct {
	cfg   StopWordsConfig
	words map[string]struct{}
}

// NewStopWordsRemover creates a remover. The word list is copied.
func NewStopWordsRemover(cfg StopWordsConfig) *StopWordsRemover {
	words := make(map[string]struct{}, len(cfg.StopWords))
	fold := cases.Fold()
	for _, w := range cfg.StopWords {
		if !cfg.CaseSensitive {
			w = fold.String(w)
		}
		words[w] = struct{}{}
	}
	cfg.StopWords = append([]string(nil), cfg.StopWords...)
	return &StopWordsRemover{cfg: cfg, words: words}
}

func (r *StopWordsRemover) Name() string         { return "StopWordsRemover" }
func (r *StopWordsRemover) InputCols() []string  { return []string{r.cfg.InputCol} }
func (r *StopWordsRemover) OutputCols() []string { return []string{r.cfg.OutputCol} }

// Filter removes stop words from tokens, keeping order
func (r *StopWordsRemover) Filter(tokens []string) []string {
	// cases.Caser keeps state and must not be shared between goroutines
	return r.filter(cases.Fold(), tokens)
}

func (r *StopWordsRemover) filter(fold cases.Caser, tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		key := tok
		if !r.cfg.CaseSensitive {
			key = fold.String(tok)
		}
		if _, stop := r.words[key]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Transform appends the filtered token column
func (r *StopWordsRemover) Transform(ctx context.Context, sess *session.Session, tbl *table.Table) (*table.Table, error) {
	tokens, err := tbl.Tokens(r.cfg.InputCol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Name(), err)
	}

	out := make([][]string, len(tokens))
	err = sess.Partition(ctx, len(tokens), func(_ context.Context, lo, hi int) error {
		fold := cases.Fold()
		for i := lo; i < hi; i++ {
			out[i] = r.filter(fold, tokens[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tbl.With(table.TokensColumn(r.cfg.OutputCol, out))
}
