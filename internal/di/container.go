package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/sms-spam-pipeline/internal/config"
	"github.com/mikey/sms-spam-pipeline/internal/core"
	"github.com/mikey/sms-spam-pipeline/internal/factory"
	"github.com/mikey/sms-spam-pipeline/internal/learner"
	"github.com/mikey/sms-spam-pipeline/internal/logging"
	"github.com/mikey/sms-spam-pipeline/internal/ports"
	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/utils"
)

// BuildContainer creates and configures a dependency injection container.
// Training runs lazily, the first time a Classifier (or anything built on it) is invoked.
// Resources built along the way register themselves with the container's *Lifecycle.
func BuildContainer(ctx context.Context, flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()
	lc := &Lifecycle{}

	if err := container.Provide(func() *Lifecycle { return lc }); err != nil {
		return nil, err
	}

	// Register flags and the run context
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() context.Context { return ctx }); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags) (*config.Config, error) {
		cfg, err := config.New(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		applyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags, cfg *config.Config) (*zap.Logger, error) {
		var logger *zap.Logger
		var err error
		if flags.Server {
			logger, err = logging.InitLogger(cfg)
		} else {
			logger, err = logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
		}
		if err != nil {
			return nil, err
		}
		lc.Append(func() error {
			// stderr cannot always be synced
			_ = logger.Sync()
			return nil
		})
		return logger, nil
	}); err != nil {
		return nil, err
	}

	// Register factories
	for _, ctor := range []interface{}{
		factory.NewTextProcessorFactory,
		factory.NewCacheFactory,
		factory.NewPipelineFactory,
		factory.NewFilterFactory,
	} {
		if err := container.Provide(ctor); err != nil {
			return nil, err
		}
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register session
	if err := container.Provide(func(f *factory.PipelineFactory) *session.Session {
		sess := f.CreateSession()
		lc.Append(sess.Close)
		return sess
	}); err != nil {
		return nil, err
	}

	// Register learner kind
	if err := container.Provide(func(cfg *config.Config) learner.Kind {
		return cfg.GetPipeline().Algorithm
	}); err != nil {
		return nil, err
	}

	// Register the trained model
	if err := container.Provide(func(
		ctx context.Context,
		f *factory.PipelineFactory,
		sess *session.Session,
		kind learner.Kind,
	) (core.Classifier, error) {
		m, err := f.Train(ctx, sess, kind)
		if err != nil {
			return nil, err
		}
		return m, nil
	}); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		repo, err := f.CreateCacheRepository()
		if err != nil || repo == nil {
			return nil, err
		}
		lc.Append(func() error {
			repo.Stop()
			return nil
		})
		return repo, nil
	}); err != nil {
		return nil, err
	}

	// Register detector
	if err := container.Provide(func(
		model core.Classifier,
		repo core.CacheRepository,
		textProcessor *utils.TextProcessor,
		logger *zap.Logger,
		cfg *config.Config,
	) (*core.Detector, error) {
		cc, err := cfg.GetCache()
		if err != nil {
			return nil, err
		}
		dc := cfg.GetDetector()
		return core.NewDetector(model, repo, textProcessor, logger, core.DetectorOptions{
			Threshold:     dc.Threshold,
			PositiveClass: dc.PositiveClass,
			CacheEnabled:  cc.Enabled,
			CacheTTL:      cc.TTL,
		}), nil
	}); err != nil {
		return nil, err
	}

	// Register message filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.MessageFilter, error) {
		return f.CreateMessageFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
