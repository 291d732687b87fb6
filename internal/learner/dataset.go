package learner

import (
	"math"
	"math/rand"

	"github.com/mikey/sms-spam-pipeline/internal/table"
)

const probEpsilon = 1e-15

// scorer returns the probability of the positive class
type scorer interface {
	Score(x table.SparseVector) float64
}

// Metrics describes a trained model
type Metrics struct {
	Model         string
	TrainLogLoss  float64
	ValidLogLoss  float64
	HasValidation bool
	Leaderboard   []LeaderboardEntry
}

// LeaderboardEntry is one AutoML candidate, in ranking order
type LeaderboardEntry struct {
	Model   string
	LogLoss float64
	Trained bool
}

// dataset is the encoded training data: rows, binary targets and the feature count
type dataset struct {
	X    []table.SparseVector
	y    []float64
	dim  int
	seed int64
}

func (d dataset) len() int { return len(d.X) }

func (d dataset) subset(idx []int) dataset {
	out := dataset{dim: d.dim, seed: d.seed, X: make([]table.SparseVector, len(idx)), y: make([]float64, len(idx))}
	for i, j := range idx {
		out.X[i] = d.X[j]
		out.y[i] = d.y[j]
	}
	return out
}

func (d dataset) hasBothClasses() bool {
	var pos, neg bool
	for _, v := range d.y {
		if v == 1 {
			pos = true
		} else {
			neg = true
		}
	}
	return pos && neg
}

// split shuffles with the dataset seed and keeps ratio of the rows for
// training. When the training part would be empty or single-class, all rows
// are used for training and no validation set is returned.
func (d dataset) split(ratio float64) (train, valid dataset, ok bool) {
	n := d.len()
	nTrain := int(ratio * float64(n))
	if ratio <= 0 || ratio >= 1 || nTrain == 0 || nTrain == n {
		return d, dataset{}, false
	}

	perm := rand.New(rand.NewSource(d.seed)).Perm(n)
	train = d.subset(perm[:nTrain])
	valid = d.subset(perm[nTrain:])
	if !train.hasBothClasses() {
		return d, dataset{}, false
	}
	return train, valid, true
}

func (d dataset) positiveRate() float64 {
	if d.len() == 0 {
		return 0.5
	}
	sum := 0.0
	for _, v := range d.y {
		sum += v
	}
	return sum / float64(d.len())
}

// logLoss is the mean binary cross-entropy of s on d
func logLoss(s scorer, d dataset) float64 {
	if d.len() == 0 {
		return 0
	}
	total := 0.0
	for i, x := range d.X {
		total += bce(d.y[i], s.Score(x))
	}
	return total / float64(d.len())
}

func bce(y, p float64) float64 {
	p = math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

// evaluate fills the train/validation log loss of a scorer
func evaluate(name string, s scorer, train, valid dataset, hasValid bool) Metrics {
	m := Metrics{
		Model:         name,
		TrainLogLoss:  logLoss(s, train),
		HasValidation: hasValid,
	}
	if hasValid {
		m.ValidLogLoss = logLoss(s, valid)
	}
	return m
}
