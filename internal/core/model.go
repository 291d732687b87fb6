package core

import (
	"time"
)

// Message represents one text message submitted for classification
type Message struct {
	ID      string
	From    string
	To      []string
	Subject string
	Text    string
	Headers map[string][]string
}

// SpamAnalysisResult represents the result of spam analysis
type SpamAnalysisResult struct {
	IsSpam       bool
	Score        float64
	Threshold    float64
	Explanation  string
	AnalyzedAt   time.Time
	ModelUsed    string
	ProcessingID string
	Cached       bool
}

// CacheEntry is a stored prediction, keyed by the digest of model ID and text
type CacheEntry struct {
	Key       string
	IsSpam    bool
	Score     float64
	LastSeen  time.Time
	ExpiresAt time.Time
}
