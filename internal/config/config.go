package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance. A non-empty path reads that file
// instead of searching the default locations.
func New(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/sms-spam-pipeline/")
		v.AddConfigPath("$HOME/.sms-spam-pipeline")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("SMS_PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Training data
	v.SetDefault("data.path", "smsData.txt")
	// 0 keeps messages whole
	v.SetDefault("data.max_line_size", 0)

	// Session
	v.SetDefault("session.app_name", "sms-spam-pipeline")
	v.SetDefault("session.workers", 0)

	// Pipeline
	v.SetDefault("pipeline.algorithm", "gbm")
	v.SetDefault("pipeline.seed", 1)
	v.SetDefault("pipeline.prune", []string{"tf_idf", "wordToIndex", "filtered", "words"})
	v.SetDefault("pipeline.prune_strict", false)
	v.SetDefault("pipeline.convert_unknown_categorical_levels_to_na", false)

	// Feature stages
	v.SetDefault("tokenizer.pattern", "[a-zA-Z]+")
	v.SetDefault("tokenizer.min_token_length", 3)
	v.SetDefault("tokenizer.gaps", false)
	v.SetDefault("tokenizer.lowercase", true)
	v.SetDefault("stopwords.words", []string{"the", "a", "", "in", "on", "at", "as", "not", "for"})
	v.SetDefault("stopwords.case_sensitive", false)
	v.SetDefault("hashing.num_features", 1024)
	v.SetDefault("hashing.binary", false)
	v.SetDefault("idf.min_doc_freq", 4)

	// Learners
	v.SetDefault("gbm.ratio", 0.8)
	v.SetDefault("gbm.ntrees", 50)
	v.SetDefault("gbm.max_depth", 5)
	v.SetDefault("gbm.min_rows", 10)
	v.SetDefault("gbm.learn_rate", 0.1)
	v.SetDefault("gbm.lambda", 1.0)

	v.SetDefault("dl.epochs", 10)
	v.SetDefault("dl.l1", 0.001)
	v.SetDefault("dl.l2", 0.0)
	v.SetDefault("dl.hidden", []int{200, 200})
	v.SetDefault("dl.rate", 0.005)

	v.SetDefault("automl.max_runtime_secs", 300)
	v.SetDefault("automl.ratio", 0.8)
	v.SetDefault("automl.max_models", 0)

	// Detector defaults
	v.SetDefault("detector.threshold", 0.5)
	v.SetDefault("detector.positive_class", "spam")

	// Server defaults
	v.SetDefault("server.filter_type", "cli")
	v.SetDefault("server.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.next_hop", "localhost:10026")
	v.SetDefault("server.hostname", "localhost")
	v.SetDefault("server.block_spam", false)
	v.SetDefault("server.headers.spam", "X-Spam-Status")
	v.SetDefault("server.headers.score", "X-Spam-Score")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/sms_prediction_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/sms_pipeline")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetIntSlice gets an integer slice value from the configuration
func (c *Config) GetIntSlice(key string) []int {
	return c.v.GetIntSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
