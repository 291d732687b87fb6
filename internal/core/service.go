package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/sms-spam-pipeline/internal/table"
	"github.com/mikey/sms-spam-pipeline/internal/utils"
	"go.uber.org/zap"
)

const (
	// DefaultThreshold is the spam probability above which a message is spam
	DefaultThreshold = 0.5
	// DefaultPositiveClass is the label whose probability column is read
	DefaultPositiveClass = "spam"
)

// DetectorOptions configures a Detector
type DetectorOptions struct {
	Threshold     float64
	PositiveClass string
	CacheEnabled  bool
	CacheTTL      time.Duration
}

// Detector is the prediction query surface over a fitted model
type Detector struct {
	model         Classifier
	cache         CacheRepository
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	opts          DetectorOptions
}

// NewDetector creates a new detector. cache may be nil when caching is disabled.
func NewDetector(
	model Classifier,
	cache CacheRepository,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	opts DetectorOptions,
) *Detector {
	if opts.PositiveClass == "" {
		opts.PositiveClass = DefaultPositiveClass
	}
	if cache == nil {
		opts.CacheEnabled = false
	}
	return &Detector{
		model:         model,
		cache:         cache,
		textProcessor: textProcessor,
		logger:        logger,
		opts:          opts,
	}
}

// Threshold returns the decision threshold
func (d *Detector) Threshold() float64 {
	return d.opts.Threshold
}

// ModelID returns the identifier of the model behind the detector
func (d *Detector) ModelID() string {
	return d.model.ID()
}

func (d *Detector) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(d.model.ID() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Score returns the spam probability of one text, consulting the cache first
func (d *Detector) Score(ctx context.Context, text string) (*SpamAnalysisResult, error) {
	if d.textProcessor != nil {
		text = d.textProcessor.Clean(text)
	}
	key := d.cacheKey(text)

	// Check cache if enabled
	if d.opts.CacheEnabled {
		entry, err := d.cache.Get(ctx, key)
		switch {
		case err == nil:
			d.logger.Debug("Cache hit", zap.String("key", key))
			return &SpamAnalysisResult{
				IsSpam:      entry.Score > d.opts.Threshold,
				Score:       entry.Score,
				Threshold:   d.opts.Threshold,
				Explanation: "Result from cache",
				AnalyzedAt:  time.Now(),
				ModelUsed:   d.model.ID(),
				Cached:      true,
			}, nil
		case !errors.Is(err, ErrCacheMiss):
			d.logger.Warn("Failed to read cache", zap.Error(err))
		}
	}

	score, err := Predict(ctx, d.model, text, d.opts.PositiveClass)
	if err != nil {
		return nil, err
	}

	result := &SpamAnalysisResult{
		IsSpam:      score > d.opts.Threshold,
		Score:       score,
		Threshold:   d.opts.Threshold,
		Explanation: fmt.Sprintf("P(%s)=%.4f, threshold %.2f", d.opts.PositiveClass, score, d.opts.Threshold),
		AnalyzedAt:  time.Now(),
		ModelUsed:   d.model.ID(),
	}

	// Update cache with result if enabled
	if d.opts.CacheEnabled {
		entry := &CacheEntry{
			Key:       key,
			IsSpam:    result.IsSpam,
			Score:     score,
			LastSeen:  result.AnalyzedAt,
			ExpiresAt: result.AnalyzedAt.Add(d.opts.CacheTTL),
		}
		if err := d.cache.Set(ctx, entry); err != nil {
			d.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return result, nil
}

// IsSpam reports whether the spam probability of text exceeds the threshold
func (d *Detector) IsSpam(ctx context.Context, text string) (bool, error) {
	result, err := d.Score(ctx, text)
	if err != nil {
		return false, err
	}
	return result.IsSpam, nil
}

// AnalyzeMessage scores the text of a message
func (d *Detector) AnalyzeMessage(ctx context.Context, msg *Message) (*SpamAnalysisResult, error) {
	result, err := d.Score(ctx, msg.Text)
	if err != nil {
		return nil, err
	}
	result.ProcessingID = msg.ID
	if result.ProcessingID == "" {
		result.ProcessingID = uuid.NewString()
	}
	d.logger.Info("Message analyzed",
		zap.String("processing_id", result.ProcessingID),
		zap.String("from", msg.From),
		zap.Bool("is_spam", result.IsSpam),
		zap.Float64("score", result.Score),
		zap.Bool("cached", result.Cached))
	return result, nil
}

// Predict runs the model on a single text and returns the probability of positiveClass
func Predict(ctx context.Context, model Classifier, text, positiveClass string) (float64, error) {
	out, err := model.Transform(ctx, table.FromTexts(text))
	if err != nil {
		return 0, fmt.Errorf("failed to score message: %w", err)
	}
	probs, err := out.Floats(positiveClass)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s probability: %w", positiveClass, err)
	}
	if len(probs) != 1 {
		return 0, fmt.Errorf("expected 1 prediction, got %d", len(probs))
	}
	return probs[0], nil
}

// IsSpam is the bare query surface: it reports whether the spam probability
// of text under model exceeds threshold
func IsSpam(ctx context.Context, text string, model Classifier, threshold float64) (bool, error) {
	score, err := Predict(ctx, model, text, DefaultPositiveClass)
	if err != nil {
		return false, err
	}
	return score > threshold, nil
}
