package factory

import (
	"fmt"

	"github.com/mikey/sms-spam-pipeline/internal/adapters/filter"
	"github.com/mikey/sms-spam-pipeline/internal/config"
	"github.com/mikey/sms-spam-pipeline/internal/core"
	"github.com/mikey/sms-spam-pipeline/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates message filters based on configuration
type FilterFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	detector *core.Detector
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, detector *core.Detector) *FilterFactory {
	return &FilterFactory{
		cfg:      cfg,
		logger:   logger,
		detector: detector,
	}
}

// CreateMessageFilter creates the filter named by server.filter_type
func (f *FilterFactory) CreateMessageFilter() (ports.MessageFilter, error) {
	server := f.cfg.GetServer()

	switch server.FilterType {
	case "smtp":
		return filter.NewSMTPFilter(f.detector, f.logger, filter.SMTPFilterOptions{
			ListenAddress: server.ListenAddress,
			NextHop:       server.NextHop,
			Hostname:      server.Hostname,
			BlockSpam:     server.BlockSpam,
			SpamHeader:    server.SpamHeader,
			ScoreHeader:   server.ScoreHeader,
		}), nil
	case "milter":
		return filter.NewMilterFilter(f.detector, f.logger, filter.MilterFilterOptions{
			ListenAddress: server.ListenAddress,
			BlockSpam:     server.BlockSpam,
			SpamHeader:    server.SpamHeader,
			ScoreHeader:   server.ScoreHeader,
		}), nil
	case "cli":
		return filter.NewCliFilter(f.detector, f.logger, f.cfg.GetBool("cli.verbose")), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", server.FilterType)
	}
}
