package filter

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mikey/sms-spam-pipeline/internal/core"
	"github.com/mikey/sms-spam-pipeline/internal/ports"
	"go.uber.org/zap"
)

// CliFilter prints a verdict for each message it is given
type CliFilter struct {
	analyzer ports.Analyzer
	logger   *zap.Logger
	verbose  bool
	out      io.Writer
}

// NewCliFilter creates a new CLI filter writing to stdout
func NewCliFilter(analyzer ports.Analyzer, logger *zap.Logger, verbose bool) *CliFilter {
	return &CliFilter{
		analyzer: analyzer,
		logger:   logger,
		verbose:  verbose,
		out:      os.Stdout,
	}
}

// SetOutput redirects the printed summaries
func (f *CliFilter) SetOutput(w io.Writer) {
	f.out = w
}

// ProcessMessage analyzes a message and prints the result
func (f *CliFilter) ProcessMessage(ctx context.Context, msg *core.Message) (*core.SpamAnalysisResult, error) {
	f.logger.Debug("Processing message", zap.String("id", msg.ID))

	if f.verbose {
		fmt.Fprintf(f.out, "\n=== Message ===\n")
		fmt.Fprintf(f.out, "Text: %s\n", msg.Text)
		fmt.Fprintf(f.out, "Length: %d bytes\n", len(msg.Text))
	}

	startTime := time.Now()
	result, err := f.analyzer.AnalyzeMessage(ctx, msg)
	if err != nil {
		f.logger.Error("Failed to analyze message", zap.Error(err))
		fmt.Fprintf(f.out, "Error: %v\n", err)
		return nil, err
	}
	duration := time.Since(startTime)

	if f.verbose {
		fmt.Fprintf(f.out, "\n=== Results ===\n")
		fmt.Fprintf(f.out, "Spam score: %.4f\n", result.Score)
		fmt.Fprintf(f.out, "Explanation: %s\n", result.Explanation)
		fmt.Fprintf(f.out, "Model used: %s\n", result.ModelUsed)
		fmt.Fprintf(f.out, "Cached: %t\n", result.Cached)
		fmt.Fprintf(f.out, "Processing time: %v\n", duration)
	}
	fmt.Fprintf(f.out, "%t\n", result.IsSpam)

	return result, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
