package learner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mikey/sms-spam-pipeline/internal/pipeline"
	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
	"go.uber.org/zap"
)

var (
	// ErrLabelCardinality is returned when the label column does not hold exactly two classes
	ErrLabelCardinality = errors.New("label column must contain exactly two classes")
	// ErrUnknownCategoricalLevel is returned at inference for a categorical value not seen in training
	ErrUnknownCategoricalLevel = errors.New("unknown categorical level")
	// ErrUnsupportedFeature is returned for feature columns the learners cannot encode
	ErrUnsupportedFeature = errors.New("unsupported feature column")
	// ErrDimensionMismatch is returned when a vector feature changes size after training
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
	// ErrInvalidVariant is returned when a Variant carries no parameters for its kind
	ErrInvalidVariant = errors.New("invalid learner variant")
)

// Kind names a learner variant
type Kind string

const (
	KindGBM          Kind = "gbm"
	KindDeepLearning Kind = "dl"
	KindAutoML       Kind = "automl"
)

// LookupKind maps a name to a Kind and reports whether the name is known
func LookupKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindGBM, KindDeepLearning, KindAutoML:
		return k, true
	default:
		return KindGBM, false
	}
}

// ParseKind maps a name to a Kind. Anything unrecognized selects KindGBM.
func ParseKind(s string) Kind {
	k, _ := LookupKind(s)
	return k
}

// Common holds the parameters shared by every variant
type Common struct {
	FeaturesCols  []string
	LabelCol      string
	PredictionCol string
	Seed          int64
	// ConvertUnknownCategoricalLevelsToNA encodes unseen categorical values as
	// missing instead of failing the prediction
	ConvertUnknownCategoricalLevelsToNA bool
}

// DefaultCommon returns the shared defaults
func DefaultCommon() Common {
	return Common{
		FeaturesCols:  []string{"tf_idf"},
		LabelCol:      "label",
		PredictionCol: "prediction",
		Seed:          1,
	}
}

// Variant is a tagged union of learner configurations. Exactly one of the
// parameter pointers matching Kind must be set.
type Variant struct {
	Kind         Kind
	GBM          *GBMParams
	DeepLearning *DeepLearningParams
	AutoML       *AutoMLParams
}

// GBM wraps GBM parameters in a Variant
func GBM(p GBMParams) Variant { return Variant{Kind: KindGBM, GBM: &p} }

// DeepLearning wraps feed-forward network parameters in a Variant
func DeepLearning(p DeepLearningParams) Variant {
	return Variant{Kind: KindDeepLearning, DeepLearning: &p}
}

// AutoML wraps model search parameters in a Variant
func AutoML(p AutoMLParams) Variant { return Variant{Kind: KindAutoML, AutoML: &p} }

// DefaultVariant returns the default configuration for kind
func DefaultVariant(kind Kind) Variant {
	switch kind {
	case KindDeepLearning:
		return DeepLearning(DefaultDeepLearningParams())
	case KindAutoML:
		return AutoML(DefaultAutoMLParams())
	default:
		return GBM(DefaultGBMParams())
	}
}

func (v Variant) common() (Common, error) {
	switch {
	case v.Kind == KindGBM && v.GBM != nil:
		return v.GBM.Common, nil
	case v.Kind == KindDeepLearning && v.DeepLearning != nil:
		return v.DeepLearning.Common, nil
	case v.Kind == KindAutoML && v.AutoML != nil:
		return v.AutoML.Common, nil
	}
	return Common{}, fmt.Errorf("%w: %q", ErrInvalidVariant, v.Kind)
}

// trainer fits a scorer on an encoded dataset
type trainer func(ctx context.Context, sess *session.Session, d dataset) (scorer, Metrics, error)

// Learner is the pipeline estimator for every variant
type Learner struct {
	variant Variant
	common  Common
	train   trainer
}

// New creates the estimator for a variant
func New(v Variant) (*Learner, error) {
	c, err := v.common()
	if err != nil {
		return nil, err
	}
	if len(c.FeaturesCols) == 0 || c.LabelCol == "" || c.PredictionCol == "" {
		return nil, fmt.Errorf("%w: features, label and prediction columns are required", ErrInvalidVariant)
	}
	c.FeaturesCols = append([]string(nil), c.FeaturesCols...)

	l := &Learner{variant: v, common: c}
	switch v.Kind {
	case KindGBM:
		p := *v.GBM
		l.train = func(ctx context.Context, _ *session.Session, d dataset) (scorer, Metrics, error) {
			return fitGBM(ctx, p, d)
		}
	case KindDeepLearning:
		p := *v.DeepLearning
		p.Hidden = append([]int(nil), p.Hidden...)
		l.train = func(ctx context.Context, _ *session.Session, d dataset) (scorer, Metrics, error) {
			return fitDeepLearning(ctx, p, d)
		}
	case KindAutoML:
		p := *v.AutoML
		l.train = func(ctx context.Context, sess *session.Session, d dataset) (scorer, Metrics, error) {
			return fitAutoML(ctx, sess, p, d)
		}
	}
	return l, nil
}

// Name returns the stage name
func (l *Learner) Name() string {
	switch l.variant.Kind {
	case KindDeepLearning:
		return "DeepLearning"
	case KindAutoML:
		return "AutoML"
	default:
		return "GBM"
	}
}

// InputCols returns the feature and label columns
func (l *Learner) InputCols() []string {
	return append(append([]string(nil), l.common.FeaturesCols...), l.common.LabelCol)
}

// OutputCols returns the prediction column. Class probability columns are
// named after the labels and only known after Fit.
func (l *Learner) OutputCols() []string {
	return []string{l.common.PredictionCol}
}

// Fit trains the variant on the encoded feature columns
func (l *Learner) Fit(ctx context.Context, sess *session.Session, t *table.Table) (pipeline.Transformer, error) {
	if t.NumRows() == 0 {
		return nil, fmt.Errorf("%s: %w", l.Name(), pipeline.ErrNoTrainingData)
	}

	labels, err := t.Strings(l.common.LabelCol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}
	classes := distinct(labels)
	if len(classes) != 2 {
		return nil, fmt.Errorf("%s: %w: found %d (%v)", l.Name(), ErrLabelCardinality, len(classes), classes)
	}
	for _, c := range []string{l.common.PredictionCol, classes[0], classes[1]} {
		if t.Has(c) {
			return nil, fmt.Errorf("%s: %w: %s", l.Name(), table.ErrColumnExists, c)
		}
	}

	enc, err := fitEncoder(t, l.common.FeaturesCols, l.common.ConvertUnknownCategoricalLevelsToNA)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}
	X, err := enc.encode(ctx, sess, t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}

	y := make([]float64, len(labels))
	for i, lab := range labels {
		if lab == classes[1] {
			y[i] = 1
		}
	}

	d := dataset{X: X, y: y, dim: enc.dim, seed: l.common.Seed}
	sc, metrics, err := l.train(ctx, sess, d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}

	sess.Logger().Info("Trained learner",
		zap.String("learner", l.Name()),
		zap.String("model", metrics.Model),
		zap.Int("rows", len(y)),
		zap.Int("features", enc.dim),
		zap.Float64("train_logloss", metrics.TrainLogLoss),
		zap.Float64("valid_logloss", metrics.ValidLogLoss),
		zap.Bool("has_validation", metrics.HasValidation))

	return &Model{
		name:    l.Name() + "Model",
		common:  l.common,
		classes: classes,
		encoder: enc,
		scorer:  sc,
		metrics: metrics,
	}, nil
}

// Model is a trained learner. It is read-only.
type Model struct {
	name    string
	common  Common
	classes []string
	encoder *encoder
	scorer  scorer
	metrics Metrics
}

func (m *Model) Name() string        { return m.name }
func (m *Model) InputCols() []string { return append([]string(nil), m.common.FeaturesCols...) }

// OutputCols returns the prediction column followed by one probability column per class
func (m *Model) OutputCols() []string {
	return append([]string{m.common.PredictionCol}, m.classes...)
}

// Classes returns the class labels; the second one is the positive class
func (m *Model) Classes() []string { return append([]string(nil), m.classes...) }

// Metrics returns the training metrics
func (m *Model) Metrics() Metrics { return m.metrics }

// Transform appends predicted labels and class probabilities
func (m *Model) Transform(ctx context.Context, sess *session.Session, t *table.Table) (*table.Table, error) {
	X, err := m.encoder.encode(ctx, sess, t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}

	n := len(X)
	pred := make([]string, n)
	neg := make([]float64, n)
	pos := make([]float64, n)
	err = sess.Partition(ctx, n, func(_ context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			p := m.scorer.Score(X[i])
			pos[i], neg[i] = p, 1-p
			if p >= 0.5 {
				pred[i] = m.classes[1]
			} else {
				pred[i] = m.classes[0]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out, err := t.With(table.StringColumn(m.common.PredictionCol, pred))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	if out, err = out.With(table.FloatColumn(m.classes[0], neg)); err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	if out, err = out.With(table.FloatColumn(m.classes[1], pos)); err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	return out, nil
}

func distinct(values []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
