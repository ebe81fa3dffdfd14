package sdm

import (
	"math"
	"time"
)

// RunEvaluation is one evaluation score, addressable by (metric, run,
// algorithm).
type RunEvaluation struct {
	Metric    string
	Run       int // 1-based
	Algorithm string
	Score     float64
	TrainN    int
	TestN     int
}

// Model is the fitted artifact. It is created once by Fit, never mutated,
// and read through Evaluation and PredictRow.
type Model struct {
	Species   string
	Algorithm string
	CovNames  []string
	FittedAt  time.Time
	Evals     []RunEvaluation

	// Final coefficients, fitted on the full dataset.
	degree  int
	means   []float64
	stds    []float64
	weights []float64
}

// Evaluation returns the score stored under (metric, run, algorithm).
func (m *Model) Evaluation(metric string, run int, algorithm string) (RunEvaluation, bool) {
	for _, e := range m.Evals {
		if e.Metric == metric && e.Run == run && e.Algorithm == algorithm {
			return e, true
		}
	}
	return RunEvaluation{}, false
}

// MeanScore averages the evaluation scores across runs.
func (m *Model) MeanScore() float64 {
	if len(m.Evals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, e := range m.Evals {
		sum += e.Score
	}
	return sum / float64(len(m.Evals))
}

// PredictRow returns the occurrence probability for one covariate row, in
// covariate order.
func (m *Model) PredictRow(cov []float64) float64 {
	features := basisRow(cov, m.means, m.stds, m.degree)
	eta := 0.0
	for i, f := range features {
		eta += m.weights[i] * f
	}
	return sigmoid(eta)
}

// basisRow expands a covariate row into the model's feature vector:
// intercept followed by degree powers of each standardized covariate.
func basisRow(cov, means, stds []float64, degree int) []float64 {
	features := make([]float64, 1+degree*len(cov))
	features[0] = 1
	k := 1
	for i, v := range cov {
		z := (v - means[i]) / stds[i]
		p := 1.0
		for d := 0; d < degree; d++ {
			p *= z
			features[k] = p
			k++
		}
	}
	return features
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
