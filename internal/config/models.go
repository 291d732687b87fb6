package config

import (
	"fmt"
	"time"

	"github.com/mikey/sms-spam-pipeline/internal/feature"
	"github.com/mikey/sms-spam-pipeline/internal/learner"
)

// DataConfig represents the training data location
type DataConfig struct {
	Path        string
	MaxLineSize int
}

// SessionConfig represents the execution session settings
type SessionConfig struct {
	AppName string
	Workers int
}

// PipelineConfig represents the pipeline-wide settings
type PipelineConfig struct {
	Algorithm                           learner.Kind
	Seed                                int64
	Prune                               []string
	PruneStrict                         bool
	ConvertUnknownCategoricalLevelsToNA bool
}

// DetectorConfig represents the prediction query settings
type DetectorConfig struct {
	Threshold     float64
	PositiveClass string
}

// ServerConfig represents the message filter settings
type ServerConfig struct {
	FilterType    string
	ListenAddress string
	NextHop       string
	Hostname      string
	BlockSpam     bool
	SpamHeader    string
	ScoreHeader   string
}

// CacheConfig represents the prediction cache settings
type CacheConfig struct {
	Enabled          bool
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// GetData returns the training data configuration
func (c *Config) GetData() DataConfig {
	return DataConfig{
		Path:        c.GetString("data.path"),
		MaxLineSize: c.GetInt("data.max_line_size"),
	}
}

// GetSession returns the session configuration
func (c *Config) GetSession() SessionConfig {
	return SessionConfig{
		AppName: c.GetString("session.app_name"),
		Workers: c.GetInt("session.workers"),
	}
}

// GetPipeline returns the pipeline configuration
func (c *Config) GetPipeline() PipelineConfig {
	return PipelineConfig{
		Algorithm:                           learner.ParseKind(c.GetString("pipeline.algorithm")),
		Seed:                                c.GetInt64("pipeline.seed"),
		Prune:                               c.GetStringSlice("pipeline.prune"),
		PruneStrict:                         c.GetBool("pipeline.prune_strict"),
		ConvertUnknownCategoricalLevelsToNA: c.GetBool("pipeline.convert_unknown_categorical_levels_to_na"),
	}
}

// GetTokenizer returns the tokenizer stage configuration
func (c *Config) GetTokenizer() feature.TokenizerConfig {
	cfg := feature.DefaultTokenizerConfig()
	cfg.Pattern = c.GetString("tokenizer.pattern")
	cfg.MinTokenLength = c.GetInt("tokenizer.min_token_length")
	cfg.Gaps = c.GetBool("tokenizer.gaps")
	cfg.ToLowercase = c.GetBool("tokenizer.lowercase")
	return cfg
}

// GetStopWords returns the stop words stage configuration
func (c *Config) GetStopWords() feature.StopWordsConfig {
	cfg := feature.DefaultStopWordsConfig()
	cfg.StopWords = c.GetStringSlice("stopwords.words")
	cfg.CaseSensitive = c.GetBool("stopwords.case_sensitive")
	return cfg
}

// GetHashing returns the hashing term frequency stage configuration
func (c *Config) GetHashing() feature.HashingTFConfig {
	cfg := feature.DefaultHashingTFConfig()
	cfg.NumFeatures = c.GetInt("hashing.num_features")
	cfg.Binary = c.GetBool("hashing.binary")
	return cfg
}

// GetIDF returns the IDF stage configuration
func (c *Config) GetIDF() feature.IDFConfig {
	cfg := feature.DefaultIDFConfig()
	cfg.MinDocFreq = c.GetInt("idf.min_doc_freq")
	return cfg
}

func (c *Config) common() learner.Common {
	common := learner.DefaultCommon()
	common.Seed = c.GetInt64("pipeline.seed")
	common.ConvertUnknownCategoricalLevelsToNA = c.GetBool("pipeline.convert_unknown_categorical_levels_to_na")
	return common
}

// GetGBM returns the GBM learner configuration
func (c *Config) GetGBM() learner.GBMParams {
	return learner.GBMParams{
		Common:    c.common(),
		Ratio:     c.GetFloat64("gbm.ratio"),
		NTrees:    c.GetInt("gbm.ntrees"),
		MaxDepth:  c.GetInt("gbm.max_depth"),
		MinRows:   c.GetInt("gbm.min_rows"),
		LearnRate: c.GetFloat64("gbm.learn_rate"),
		Lambda:    c.GetFloat64("gbm.lambda"),
	}
}

// GetDeepLearning returns the feed-forward network configuration
func (c *Config) GetDeepLearning() learner.DeepLearningParams {
	return learner.DeepLearningParams{
		Common: c.common(),
		Epochs: c.GetInt("dl.epochs"),
		L1:     c.GetFloat64("dl.l1"),
		L2:     c.GetFloat64("dl.l2"),
		Hidden: c.GetIntSlice("dl.hidden"),
		Rate:   c.GetFloat64("dl.rate"),
	}
}

// GetAutoML returns the model search configuration
func (c *Config) GetAutoML() learner.AutoMLParams {
	return learner.AutoMLParams{
		Common:         c.common(),
		MaxRuntimeSecs: c.GetFloat64("automl.max_runtime_secs"),
		Ratio:          c.GetFloat64("automl.ratio"),
		MaxModels:      c.GetInt("automl.max_models"),
	}
}

// GetDetector returns the detector configuration
func (c *Config) GetDetector() DetectorConfig {
	return DetectorConfig{
		Threshold:     c.GetFloat64("detector.threshold"),
		PositiveClass: c.GetString("detector.positive_class"),
	}
}

// GetServer returns the message filter configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:    c.GetString("server.filter_type"),
		ListenAddress: c.GetString("server.listen_address"),
		NextHop:       c.GetString("server.next_hop"),
		Hostname:      c.GetString("server.hostname"),
		BlockSpam:     c.GetBool("server.block_spam"),
		SpamHeader:    c.GetString("server.headers.spam"),
		ScoreHeader:   c.GetString("server.headers.score"),
	}
}

// GetCache returns the prediction cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, fmt.Errorf("invalid cache ttl: %w", err)
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, fmt.Errorf("invalid cache cleanup frequency: %w", err)
	}
	return CacheConfig{
		Enabled:          c.GetBool("cache.enabled"),
		Type:             c.GetString("cache.type"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
	}, nil
}
