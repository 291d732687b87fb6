package feature

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
)

// DefaultTokenPattern matches runs of ASCII letters
const DefaultTokenPattern = "[a-zA-Z]+"

// TokenizerConfig configures a Tokenizer
type TokenizerConfig struct {
	InputCol       string
	OutputCol      string
	Pattern        string
	MinTokenLength int
	// Gaps treats Pattern as a delimiter instead of a token matcher
	Gaps        bool
	ToLowercase bool
}

// DefaultTokenizerConfig returns the configuration used for SMS text
func DefaultTokenizerConfig() TokenizerConfig {
	return TokenizerConfig{
		InputCol:       "text",
		OutputCol:      "words",
		Pattern:        DefaultTokenPattern,
		MinTokenLength: 3,
		ToLowercase:    true,
	}
}

// Tokenizer splits a text column into token sequences with a regular expression
type Tokenizer struct {
	cfg TokenizerConfig
	re  *regexp.Regexp
}

// NewTokenizer creates a tokenizer; an invalid pattern is a configuration error
func NewTokenizer(cfg TokenizerConfig) (*Tokenizer, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultTokenPattern
	}
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid token pattern %q: %w", cfg.Pattern, err)
	}
	return &Tokenizer{cfg: cfg, re: re}, nil
}

func (t *Tokenizer) Name() string         { return "RegexTokenizer" }
func (t *Tokenizer) InputCols() []string  { return []string{t.cfg.InputCol} }
func (t *Tokenizer) OutputCols() []string { return []string{t.cfg.OutputCol} }

// Tokenize splits a single text
func (t *Tokenizer) Tokenize(text string) []string {
	if t.cfg.ToLowercase {
		text = strings.ToLower(text)
	}

	var candidates []string
	if t.cfg.Gaps {
		candidates = t.re.Split(text, -1)
	} else {
		candidates = t.re.FindAllString(text, -1)
	}

	tokens := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || utf8.RuneCountInString(c) < t.cfg.MinTokenLength {
			continue
		}
		tokens = append(tokens, c)
	}
	return tokens
}

// Transform appends the token column
func (t *Tokenizer) Transform(ctx context.Context, sess *session.Session, tbl *table.Table) (*table.Table, error) {
	texts, err := tbl.Strings(t.cfg.InputCol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name(), err)
	}

	out := make([][]string, len(texts))
	err = sess.Partition(ctx, len(texts), func(_ context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			out[i] = t.Tokenize(texts[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tbl.With(table.TokensColumn(t.cfg.OutputCol, out))
}
