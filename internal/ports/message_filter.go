package ports

import (
	"context"

	"github.com/mikey/sms-spam-pipeline/internal/core"
)

// Analyzer scores messages; core.Detector is the production implementation
type Analyzer interface {
	AnalyzeMessage(ctx context.Context, msg *core.Message) (*core.SpamAnalysisResult, error)
}

// MessageFilter defines the interface for message filtering front ends
type MessageFilter interface {
	// ProcessMessage processes a message and returns the filtering result
	ProcessMessage(ctx context.Context, msg *core.Message) (*core.SpamAnalysisResult, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
