package feature

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
	"github.com/twmb/murmur3"
)

const hashSeed = 42

// HashingTFConfig configures a HashingTF stage
type HashingTFConfig struct {
	InputCol    string
	OutputCol   string
	NumFeatures int
	// Binary records presence instead of counts
	Binary bool
}

// DefaultHashingTFConfig returns the configuration used for SMS text
func DefaultHashingTFConfig() HashingTFConfig {
	return HashingTFConfig{
		InputCol:    "filtered",
		OutputCol:   "wordToIndex",
		NumFeatures: 1 << 10,
	}
}

// HashingTF maps tokens to term frequencies in a fixed number of buckets.
// Collisions are not detected.
type HashingTF struct {
	cfg HashingTFConfig
}

// NewHashingTF creates a hashing stage
func NewHashingTF(cfg HashingTFConfig) (*HashingTF, error) {
	if cfg.NumFeatures <= 0 {
		return nil, errors.New("hashing: number of features must be positive")
	}
	return &HashingTF{cfg: cfg}, nil
}

func (h *HashingTF) Name() string         { return "HashingTF" }
func (h *HashingTF) InputCols() []string  { return []string{h.cfg.InputCol} }
func (h *HashingTF) OutputCols() []string { return []string{h.cfg.OutputCol} }

// NumFeatures returns the bucket count
func (h *HashingTF) NumFeatures() int { return h.cfg.NumFeatures }

// IndexOf returns the bucket of a term
func (h *HashingTF) IndexOf(term string) int {
	return nonNegativeMod(int(int32(hashTerm(hashSeed, term))), h.cfg.NumFeatures)
}

// hashTerm is MurmurHash3 x86_32 over the UTF-8 bytes of term
func hashTerm(seed uint32, term string) uint32 {
	return murmur3.SeedSum32(seed, []byte(term))
}

// Hash turns a token sequence into a term-frequency vector
func (h *HashingTF) Hash(tokens []string) table.SparseVector {
	counts := make(map[int]float64, len(tokens))
	for _, tok := range tokens {
		i := h.IndexOf(tok)
		if h.cfg.Binary {
			counts[i] = 1
		} else {
			counts[i]++
		}
	}
	return table.NewSparseVector(h.cfg.NumFeatures, counts)
}

// Transform appends the term-frequency column
func (h *HashingTF) Transform(ctx context.Context, sess *session.Session, tbl *table.Table) (*table.Table, error) {
	tokens, err := tbl.Tokens(h.cfg.InputCol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.Name(), err)
	}

	out := make([]table.SparseVector, len(tokens))
	err = sess.Partition(ctx, len(tokens), func(_ context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			out[i] = h.Hash(tokens[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tbl.With(table.VectorColumn(h.cfg.OutputCol, out))
}

func nonNegativeMod(x, mod int) int {
	r := x % mod
	if r < 0 {
		r += mod
	}
	return r
}
