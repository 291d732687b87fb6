package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/sms-spam-pipeline/internal/core"
	"github.com/mikey/sms-spam-pipeline/internal/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
)

type recordingFilter struct {
	texts []string
}

func (f *recordingFilter) ProcessMessage(_ context.Context, msg *core.Message) (*core.SpamAnalysisResult, error) {
	f.texts = append(f.texts, msg.Text)
	return &core.SpamAnalysisResult{}, nil
}

func (f *recordingFilter) Start() error { return nil }
func (f *recordingFilter) Stop() error  { return nil }

func TestProcessLines_SkipsBlankLines(t *testing.T) {
	mf := &recordingFilter{}
	err := processLines(context.Background(), mf, strings.NewReader("first\n\n   \n second \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, mf.texts)
}

func TestAlgorithmArg(t *testing.T) {
	assert.Equal(t, "", algorithmArg(nil))
	assert.Equal(t, "dl", algorithmArg([]string{"dl"}))
}

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "data", "threshold", "verbose", "json-log"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["predict"])
	assert.True(t, names["serve"])
}

func TestInvoke_FailedTrainingLeavesNoCacheBehind(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("cache:\n  type: sqlite\n  sqlite_path: %s\n", filepath.Join(cacheDir, "predictions.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	flags := &di.CLIFlags{
		ConfigFile: cfgPath,
		DataPath:   filepath.Join(dir, "absent.txt"),
	}
	err := invoke(context.Background(), flags, func(d *core.Detector) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, dig.RootCause(err), os.ErrNotExist)

	_, statErr := os.Stat(cacheDir)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestInvoke_UnsupportedCacheTypeIsReported(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("cache:\n  type: redis\n"), 0o600))

	err := invoke(context.Background(), &di.CLIFlags{ConfigFile: cfgPath}, func(repo core.CacheRepository) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported cache type")
}
