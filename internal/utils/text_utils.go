package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TextProcessor cleans raw message text before it enters the pipeline
type TextProcessor struct {
	logger  *zap.Logger
	maxSize int
}

// NewTextProcessor creates a new TextProcessor. A maxSize <= 0 disables truncation.
func NewTextProcessor(logger *zap.Logger, maxSize int) *TextProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextProcessor{
		logger:  logger,
		maxSize: maxSize,
	}
}

// Truncate cuts text to at most maxSize bytes without splitting a UTF-8 sequence
func (tp *TextProcessor) Truncate(text string) string {
	if tp.maxSize <= 0 || len(text) <= tp.maxSize {
		return text
	}

	cut := tp.maxSize
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	tp.logger.Debug("Message truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", cut),
		zap.Int("max_size", tp.maxSize))

	return text[:cut]
}

// SanitizeUTF8 drops invalid UTF-8 bytes
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	clean := strings.ToValidUTF8(text, "")
	tp.logger.Debug("Message sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(clean)))
	return clean
}

// Clean strips a trailing carriage return, sanitizes and truncates
func (tp *TextProcessor) Clean(text string) string {
	text = strings.TrimSuffix(text, "\r")
	return tp.Truncate(tp.SanitizeUTF8(text))
}
