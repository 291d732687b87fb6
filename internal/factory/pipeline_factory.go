package factory

import (
	"context"
	"fmt"

	"github.com/mikey/sms-spam-pipeline/internal/config"
	"github.com/mikey/sms-spam-pipeline/internal/feature"
	"github.com/mikey/sms-spam-pipeline/internal/learner"
	"github.com/mikey/sms-spam-pipeline/internal/loader"
	"github.com/mikey/sms-spam-pipeline/internal/pipeline"
	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
	"github.com/mikey/sms-spam-pipeline/internal/utils"
	"go.uber.org/zap"
)

// PipelineFactory builds sessions, stages and fitted models from configuration
type PipelineFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewPipelineFactory creates a new pipeline factory
func NewPipelineFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *PipelineFactory {
	return &PipelineFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSession opens the execution session; the caller closes it
func (f *PipelineFactory) CreateSession() *session.Session {
	sc := f.cfg.GetSession()
	return session.New(f.logger, session.Options{AppName: sc.AppName, Workers: sc.Workers})
}

// CreateLoader creates a loader bound to sess
func (f *PipelineFactory) CreateLoader(sess *session.Session) *loader.Loader {
	return loader.New(sess, f.textProcessor)
}

// CreateVariant returns the configured parameters for a learner kind
func (f *PipelineFactory) CreateVariant(kind learner.Kind) learner.Variant {
	switch kind {
	case learner.KindDeepLearning:
		return learner.DeepLearning(f.cfg.GetDeepLearning())
	case learner.KindAutoML:
		return learner.AutoML(f.cfg.GetAutoML())
	default:
		return learner.GBM(f.cfg.GetGBM())
	}
}

// CreateStages returns the stage list: tokenizer, stop words, hashing, IDF,
// learner and the pruner that drops the working columns.
func (f *PipelineFactory) CreateStages(kind learner.Kind) ([]pipeline.Stage, error) {
	tokenizer, err := feature.NewTokenizer(f.cfg.GetTokenizer())
	if err != nil {
		return nil, err
	}
	hashing, err := feature.NewHashingTF(f.cfg.GetHashing())
	if err != nil {
		return nil, err
	}
	l, err := learner.New(f.CreateVariant(kind))
	if err != nil {
		return nil, err
	}

	pc := f.cfg.GetPipeline()
	return []pipeline.Stage{
		tokenizer,
		feature.NewStopWordsRemover(f.cfg.GetStopWords()),
		hashing,
		feature.NewIDF(f.cfg.GetIDF()),
		l,
		feature.NewColumnPruner(feature.PrunerConfig{Columns: pc.Prune, Strict: pc.PruneStrict}),
	}, nil
}

// CreatePipeline assembles the stages for kind
func (f *PipelineFactory) CreatePipeline(sess *session.Session, kind learner.Kind) (*pipeline.Pipeline, error) {
	stages, err := f.CreateStages(kind)
	if err != nil {
		return nil, err
	}
	return pipeline.Assemble(sess, stages...)
}

// Fit assembles and fits the pipeline for kind on t
func (f *PipelineFactory) Fit(ctx context.Context, sess *session.Session, kind learner.Kind, t *table.Table) (*pipeline.Model, error) {
	p, err := f.CreatePipeline(sess, kind)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Training pipeline",
		zap.String("learner", string(kind)),
		zap.Int("rows", t.NumRows()))
	return p.Fit(ctx, t)
}

// Train loads data.path and fits the pipeline for kind on it
func (f *PipelineFactory) Train(ctx context.Context, sess *session.Session, kind learner.Kind) (*pipeline.Model, error) {
	data, err := f.CreateLoader(sess).Load(ctx, f.cfg.GetData().Path)
	if err != nil {
		return nil, err
	}
	m, err := f.Fit(ctx, sess, kind, data)
	if err != nil {
		return nil, fmt.Errorf("failed to train %s pipeline: %w", kind, err)
	}
	return m, nil
}
