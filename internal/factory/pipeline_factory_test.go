package factory

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/sms-spam-pipeline/internal/config"
	"github.com/mikey/sms-spam-pipeline/internal/core"
	"github.com/mikey/sms-spam-pipeline/internal/learner"
	"github.com/mikey/sms-spam-pipeline/internal/pipeline"
	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var prunedColumns = []string{"tf_idf", "wordToIndex", "filtered", "words"}

var spamTemplates = []string{
	"FREE entry to win a cash prize, text CLAIM now",
	"Urgent! You are a winner, call now to claim your free prize",
	"Congratulations, free ringtone and cash bonus, reply WIN",
	"You have won a free holiday prize, call the claim line",
	"Free mobile upgrade winner, claim your cash reward today",
}

var hamTemplates = []string{
	"Sorry I will be home later, save me some dinner",
	"Are we still meeting for lunch tomorrow",
	"Can you pick up milk on your way home tonight",
	"Thanks for dinner last night, see you tomorrow",
	"Running late, will call you when I get home",
}

// corpus repeats each template so every word clears the IDF document frequency floor
func corpus() []table.Record {
	var records []table.Record
	for i := 0; i < 6; i++ {
		for j := range spamTemplates {
			records = append(records,
				table.Record{Label: "spam", Text: spamTemplates[j]},
				table.Record{Label: "ham", Text: hamTemplates[j]})
		}
	}
	return records
}

func newFactory(t *testing.T, cfg *config.Config) (*PipelineFactory, *session.Session) {
	t.Helper()
	if cfg == nil {
		cfg = config.NewFromViper(config.NewEmptyViper())
	}
	f := NewPipelineFactory(cfg, zap.NewNop(), NewTextProcessorFactory(cfg, zap.NewNop()).CreateTextProcessor())
	sess := f.CreateSession()
	t.Cleanup(func() { _ = sess.Close() })
	return f, sess
}

func assertPruned(t *testing.T, out *table.Table) {
	t.Helper()
	for _, c := range prunedColumns {
		assert.False(t, out.Has(c), "column %s should be pruned", c)
	}
}

func TestCreateStages_Order(t *testing.T) {
	f, _ := newFactory(t, nil)
	stages, err := f.CreateStages(learner.KindGBM)
	require.NoError(t, err)

	var names []string
	for _, s := range stages {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"RegexTokenizer", "StopWordsRemover", "HashingTF", "IDF", "GBM", "ColumnPruner"}, names)
}

func TestCreateStages_InvalidTokenizerPattern(t *testing.T) {
	cfg := config.NewFromViper(config.NewEmptyViper())
	cfg.Set("tokenizer.pattern", "[")
	f, _ := newFactory(t, cfg)

	_, err := f.CreateStages(learner.KindGBM)
	assert.Error(t, err)
}

func TestFit_TwoRows(t *testing.T) {
	for _, kind := range []learner.Kind{learner.KindGBM, learner.KindDeepLearning, learner.KindAutoML} {
		t.Run(string(kind), func(t *testing.T) {
			cfg := config.NewFromViper(config.NewEmptyViper())
			cfg.Set("automl.max_models", 2)
			cfg.Set("dl.hidden", []int{16})
			f, sess := newFactory(t, cfg)

			data := table.FromRecords([]table.Record{
				{Label: "ham", Text: "hello there"},
				{Label: "spam", Text: "win money now"},
			})
			m, err := f.Fit(context.Background(), sess, kind, data)
			require.NoError(t, err)

			out, err := m.Transform(context.Background(), table.FromTexts("win now"))
			require.NoError(t, err)

			pred, err := out.Strings("prediction")
			require.NoError(t, err)
			require.Len(t, pred, 1)
			assert.Contains(t, []string{"ham", "spam"}, pred[0])

			spam, err := out.Floats("spam")
			require.NoError(t, err)
			assert.False(t, math.IsNaN(spam[0]))
			assert.GreaterOrEqual(t, spam[0], 0.0)
			assert.LessOrEqual(t, spam[0], 1.0)
			assertPruned(t, out)
		})
	}
}

func TestSelector_BogusMatchesDefault(t *testing.T) {
	f, sess := newFactory(t, nil)
	data := table.FromRecords(corpus())

	var scores [][]float64
	for _, arg := range []string{"bogus", "", "gbm"} {
		kind := learner.ParseKind(arg)
		stages, err := f.CreateStages(kind)
		require.NoError(t, err)
		assert.Equal(t, "GBM", stages[4].Name())

		m, err := f.Fit(context.Background(), sess, kind, data)
		require.NoError(t, err)
		out, err := m.Transform(context.Background(), table.FromTexts("claim your free prize", "see you at lunch"))
		require.NoError(t, err)
		spam, err := out.Floats("spam")
		require.NoError(t, err)
		scores = append(scores, spam)
	}
	assert.Equal(t, scores[0], scores[1])
	assert.Equal(t, scores[0], scores[2])
}

func TestIsSpam_EndToEnd(t *testing.T) {
	f, sess := newFactory(t, nil)
	m, err := f.Fit(context.Background(), sess, learner.KindGBM, table.FromRecords(corpus()))
	require.NoError(t, err)

	spam, err := core.IsSpam(context.Background(), "Sorry I will be home later for dinner", m, 0.5)
	require.NoError(t, err)
	assert.False(t, spam)

	spam, err = core.IsSpam(context.Background(), "Claim your free cash prize now", m, 0.5)
	require.NoError(t, err)
	assert.True(t, spam)

	out, err := m.Transform(context.Background(), table.FromTexts("Sorry I will be home later for dinner"))
	require.NoError(t, err)
	assertPruned(t, out)
	assert.Equal(t, []string{"text", "prediction", "ham", "spam"}, out.Columns())
}

func TestFit_PrunedFeatureColumnIsRejected(t *testing.T) {
	f, sess := newFactory(t, nil)
	stages, err := f.CreateStages(learner.KindGBM)
	require.NoError(t, err)

	// move the pruner in front of the learner
	reordered := []pipeline.Stage{stages[0], stages[1], stages[2], stages[3], stages[5], stages[4]}
	p, err := pipeline.Assemble(sess, reordered...)
	require.NoError(t, err)

	_, err = p.Fit(context.Background(), table.FromRecords(corpus()))
	assert.ErrorIs(t, err, table.ErrMissingColumn)
}

func TestFit_NoTrainingData(t *testing.T) {
	f, sess := newFactory(t, nil)
	_, err := f.Fit(context.Background(), sess, learner.KindGBM, table.FromRecords(nil))
	assert.ErrorIs(t, err, pipeline.ErrNoTrainingData)
}

func TestTrain_FromFile(t *testing.T) {
	var lines []string
	for _, r := range corpus() {
		lines = append(lines, fmt.Sprintf("%s\t%s", r.Label, r.Text))
	}
	lines = append(lines, "\tno label here", "   \tblank label")
	path := filepath.Join(t.TempDir(), "smsData.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))

	cfg := config.NewFromViper(config.NewEmptyViper())
	cfg.Set("data.path", path)
	f, sess := newFactory(t, cfg)

	m, err := f.Train(context.Background(), sess, learner.KindGBM)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID())

	cfg.Set("data.path", filepath.Join(t.TempDir(), "absent.txt"))
	_, err = f.Train(context.Background(), sess, learner.KindGBM)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreateVariant(t *testing.T) {
	cfg := config.NewFromViper(config.NewEmptyViper())
	cfg.Set("gbm.ntrees", 7)
	f, _ := newFactory(t, cfg)

	v := f.CreateVariant(learner.KindGBM)
	require.NotNil(t, v.GBM)
	assert.Equal(t, 7, v.GBM.NTrees)

	v = f.CreateVariant(learner.KindAutoML)
	require.NotNil(t, v.AutoML)
	assert.False(t, v.AutoML.ConvertUnknownCategoricalLevelsToNA)
}
