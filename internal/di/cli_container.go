package di

import (
	"github.com/mikey/sms-spam-pipeline/internal/config"
	"github.com/mikey/sms-spam-pipeline/internal/learner"
)

// CLIFlags contains the command line flags that override configuration
type CLIFlags struct {
	ConfigFile string
	DataPath   string

	Threshold    float64
	ThresholdSet bool

	// Algorithm is the positional learner argument. Empty and unknown names
	// both keep pipeline.algorithm.
	Algorithm string
	// FilterType overrides server.filter_type when set
	FilterType string

	Verbose bool
	JSONLog bool
	// Server selects the configured logger instead of the console logger
	Server bool
}

// applyFlags writes the flags that were given on top of the loaded configuration
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	if flags.DataPath != "" {
		cfg.Set("data.path", flags.DataPath)
	}
	if flags.ThresholdSet {
		cfg.Set("detector.threshold", flags.Threshold)
	}
	if kind, ok := learner.LookupKind(flags.Algorithm); ok {
		cfg.Set("pipeline.algorithm", string(kind))
	}
	if flags.FilterType != "" {
		cfg.Set("server.filter_type", flags.FilterType)
	}
	if flags.Verbose {
		cfg.Set("cli.verbose", true)
	}
}
