package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/sms-spam-pipeline/internal/learner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "smsData.txt", cfg.GetData().Path)
	assert.Equal(t, 0, cfg.GetData().MaxLineSize)
	assert.Equal(t, learner.KindGBM, cfg.GetPipeline().Algorithm)
	assert.Equal(t, []string{"tf_idf", "wordToIndex", "filtered", "words"}, cfg.GetPipeline().Prune)
	assert.Equal(t, 0.5, cfg.GetDetector().Threshold)
	assert.Equal(t, "spam", cfg.GetDetector().PositiveClass)

	tok := cfg.GetTokenizer()
	assert.Equal(t, "[a-zA-Z]+", tok.Pattern)
	assert.Equal(t, 3, tok.MinTokenLength)
	assert.True(t, tok.ToLowercase)
	assert.Equal(t, "text", tok.InputCol)
	assert.Equal(t, "words", tok.OutputCol)

	assert.Equal(t, []string{"the", "a", "", "in", "on", "at", "as", "not", "for"}, cfg.GetStopWords().StopWords)
	assert.Equal(t, 1024, cfg.GetHashing().NumFeatures)
	assert.Equal(t, 4, cfg.GetIDF().MinDocFreq)

	gbm := cfg.GetGBM()
	assert.Equal(t, learner.DefaultGBMParams(), gbm)

	dl := cfg.GetDeepLearning()
	assert.Equal(t, []int{200, 200}, dl.Hidden)
	assert.Equal(t, 10, dl.Epochs)
	assert.Equal(t, 0.001, dl.L1)

	automl := cfg.GetAutoML()
	assert.Equal(t, 300.0, automl.MaxRuntimeSecs)
	assert.Equal(t, 0, automl.MaxModels)

	cc, err := cfg.GetCache()
	require.NoError(t, err)
	assert.True(t, cc.Enabled)
	assert.Equal(t, "memory", cc.Type)
	assert.Equal(t, 24*time.Hour, cc.TTL)
	assert.Equal(t, time.Hour, cc.CleanupFrequency)
}

func TestGetCache_InvalidDuration(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())
	cfg.Set("cache.cleanup_frequency", "hourly")

	_, err := cfg.GetCache()
	assert.ErrorContains(t, err, "invalid cache cleanup frequency")
}

func TestNew_ReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
pipeline:
  algorithm: dl
gbm:
  ntrees: 7
dl:
  hidden: [16, 8]
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("SMS_PIPELINE_DETECTOR_THRESHOLD", "0.9")

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, learner.KindDeepLearning, cfg.GetPipeline().Algorithm)
	assert.Equal(t, 7, cfg.GetGBM().NTrees)
	assert.Equal(t, []int{16, 8}, cfg.GetDeepLearning().Hidden)
	assert.Equal(t, 0.9, cfg.GetDetector().Threshold)
}

func TestGetPipeline_UnknownAlgorithm(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())
	cfg.Set("pipeline.algorithm", "bogus")
	assert.Equal(t, learner.KindGBM, cfg.GetPipeline().Algorithm)
}

func TestNew_MissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
