package learner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mikey/sms-spam-pipeline/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AutoMLParams configures the model search
type AutoMLParams struct {
	Common
	// MaxRuntimeSecs is a soft budget checked before each candidate starts; 0 disables it
	MaxRuntimeSecs float64
	Ratio          float64
	// MaxModels caps the number of candidates; 0 means the whole grid
	MaxModels int
}

// DefaultAutoMLParams returns the search defaults
func DefaultAutoMLParams() AutoMLParams {
	return AutoMLParams{
		Common:         DefaultCommon(),
		MaxRuntimeSecs: 300,
		Ratio:          0.8,
	}
}

type candidate struct {
	name string
	fit  func(ctx context.Context, d dataset) (scorer, error)
}

// candidates returns the search grid in ranking tie-break order
func candidates(p AutoMLParams) []candidate {
	var out []candidate
	for _, depth := range []int{3, 5, 7} {
		gp := DefaultGBMParams()
		gp.Common = p.Common
		gp.MaxDepth = depth
		out = append(out, candidate{
			name: fmt.Sprintf("GBM_depth%d", depth),
			fit: func(ctx context.Context, d dataset) (scorer, error) {
				return trainGBM(ctx, gp, d)
			},
		})
	}
	for _, hidden := range [][]int{nil, {50}, {200, 200}} {
		dp := DefaultDeepLearningParams()
		dp.Common = p.Common
		dp.Hidden = hidden
		out = append(out, candidate{
			name: dp.modelName(),
			fit: func(ctx context.Context, d dataset) (scorer, error) {
				return trainNetwork(ctx, dp, d)
			},
		})
	}
	if p.MaxModels > 0 && p.MaxModels < len(out) {
		out = out[:p.MaxModels]
	}
	return out
}

type result struct {
	idx     int
	loss    float64
	trained bool
}

func fitAutoML(ctx context.Context, sess *session.Session, p AutoMLParams, d dataset) (scorer, Metrics, error) {
	if p.MaxRuntimeSecs < 0 || p.MaxModels < 0 {
		return nil, Metrics{}, fmt.Errorf("%w: automl needs max_runtime_secs >= 0 and max_models >= 0", ErrInvalidVariant)
	}

	train, valid, hasValid := d.split(p.Ratio)
	eval := train
	if hasValid {
		eval = valid
	}

	cands := candidates(p)
	results := make([]result, len(cands))
	start := time.Now()
	budget := time.Duration(p.MaxRuntimeSecs * float64(time.Second))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sess.Workers())
	for i, c := range cands {
		i, c := i, c
		results[i].idx = i
		g.Go(func() error {
			// the first candidate always runs so there is a leader
			if i > 0 && budget > 0 && time.Since(start) >= budget {
				return nil
			}
			s, err := c.fit(gctx, train)
			if err != nil {
				return fmt.Errorf("candidate %s: %w", c.name, err)
			}
			results[i].loss = logLoss(s, eval)
			results[i].trained = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Metrics{}, err
	}

	ranked := append([]result(nil), results...)
	sort.SliceStable(ranked, func(a, b int) bool {
		ra, rb := ranked[a], ranked[b]
		if ra.trained != rb.trained {
			return ra.trained
		}
		if !ra.trained {
			return false
		}
		return ra.loss < rb.loss
	})

	board := make([]LeaderboardEntry, len(ranked))
	for i, r := range ranked {
		board[i] = LeaderboardEntry{Model: cands[r.idx].name, LogLoss: r.loss, Trained: r.trained}
	}
	leader := cands[ranked[0].idx]

	sess.Logger().Info("AutoML search finished",
		zap.String("leader", leader.name),
		zap.Int("candidates", len(cands)),
		zap.Duration("elapsed", time.Since(start)))
	for _, e := range board {
		sess.Logger().Debug("Leaderboard",
			zap.String("model", e.Model),
			zap.Float64("logloss", e.LogLoss),
			zap.Bool("trained", e.Trained))
	}

	// refit the leader on every row
	s, err := leader.fit(ctx, d)
	if err != nil {
		return nil, Metrics{}, fmt.Errorf("refit %s: %w", leader.name, err)
	}

	m := Metrics{
		Model:         leader.name,
		TrainLogLoss:  logLoss(s, d),
		HasValidation: hasValid,
		Leaderboard:   board,
	}
	if hasValid {
		m.ValidLogLoss = ranked[0].loss
	}
	return s, m, nil
}
