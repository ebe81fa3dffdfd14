package sdm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
	"github.com/couchcryptid/sdm-pipeline/internal/observability"
)

// Fitter runs the model-fitting stage.
type Fitter struct {
	cfg     FitConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFitter creates a Fitter with the given configuration.
func NewFitter(cfg FitConfig, logger *slog.Logger, metrics *observability.Metrics) *Fitter {
	return &Fitter{cfg: cfg, logger: logger, metrics: metrics}
}

// Fit trains the configured algorithm set on the formatted dataset with
// NbRunEval repeated random splits at DataSplit percent, scoring each run's
// held-out rows with the configured metric, then refits on the full dataset
// to produce the projection coefficients.
func (f *Fitter) Fit(ctx context.Context, species string, ds domain.Dataset) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, alg := range f.cfg.Algorithms {
		if alg != AlgGAM {
			return nil, fmt.Errorf("unknown algorithm %q", alg)
		}
	}
	if f.cfg.Metric != MetricROC {
		return nil, fmt.Errorf("unknown metric %q", f.cfg.Metric)
	}

	presence, background := splitByClass(ds.Labels)
	if len(presence) < 2 || len(background) < 2 {
		return nil, fmt.Errorf("%s: need at least 2 rows per class, have %d presence / %d background",
			AlgGAM, len(presence), len(background))
	}

	means, stds, err := standardization(ds)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(f.cfg.Seed))
	model := &Model{
		Species:   species,
		Algorithm: AlgGAM,
		CovNames:  ds.CovNames,
		FittedAt:  domain.Now(),
		degree:    f.cfg.Options.BasisDegree,
		means:     means,
		stds:      stds,
	}

	for run := 1; run <= f.cfg.NbRunEval; run++ {
		train, test := stratifiedSplit(presence, background, f.cfg.DataSplit, rng)

		w, err := irls(rowsOf(ds, train), labelsOf(ds, train), means, stds, f.cfg.Options)
		if err != nil {
			return nil, fmt.Errorf("%s run %d: %w", AlgGAM, run, err)
		}

		scores := make([]float64, len(test))
		labels := make([]float64, len(test))
		for i, idx := range test {
			scores[i] = predictWith(w, ds.Rows[idx], means, stds, f.cfg.Options.BasisDegree)
			labels[i] = ds.Labels[idx]
		}
		auc := rocAUC(scores, labels)

		model.Evals = append(model.Evals, RunEvaluation{
			Metric:    MetricROC,
			Run:       run,
			Algorithm: AlgGAM,
			Score:     auc,
			TrainN:    len(train),
			TestN:     len(test),
		})
		f.metrics.ModelRuns.Inc()
		f.metrics.RunAUC.WithLabelValues(strconv.Itoa(run)).Set(auc)
		f.logger.Info("evaluation run complete", "algorithm", AlgGAM, "run", run,
			"metric", MetricROC, "score", auc, "train", len(train), "test", len(test))
	}

	all := make([]int, ds.Len())
	for i := range all {
		all[i] = i
	}
	w, err := irls(rowsOf(ds, all), ds.Labels, means, stds, f.cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("%s final fit: %w", AlgGAM, err)
	}
	model.weights = w

	return model, nil
}

func splitByClass(labels []float64) (presence, background []int) {
	for i, l := range labels {
		if l == domain.PresenceLabel {
			presence = append(presence, i)
		} else {
			background = append(background, i)
		}
	}
	return presence, background
}

// stratifiedSplit draws DataSplit percent of each class into the train set,
// keeping at least one row of each class on both sides.
func stratifiedSplit(presence, background []int, split int, rng *rand.Rand) (train, test []int) {
	take := func(idx []int) (tr, te []int) {
		shuffled := make([]int, len(idx))
		copy(shuffled, idx)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		n := len(shuffled) * split / 100
		if n < 1 {
			n = 1
		}
		if n >= len(shuffled) {
			n = len(shuffled) - 1
		}
		return shuffled[:n], shuffled[n:]
	}

	ptr, pte := take(presence)
	btr, bte := take(background)
	train = append(append([]int{}, ptr...), btr...)
	test = append(append([]int{}, pte...), bte...)
	return train, test
}

func rowsOf(ds domain.Dataset, idx []int) [][]float64 {
	rows := make([][]float64, len(idx))
	for i, j := range idx {
		rows[i] = ds.Rows[j]
	}
	return rows
}

func labelsOf(ds domain.Dataset, idx []int) []float64 {
	labels := make([]float64, len(idx))
	for i, j := range idx {
		labels[i] = ds.Labels[j]
	}
	return labels
}

// standardization computes per-covariate means and standard deviations over
// the full dataset. A constant covariate cannot be standardized and fails
// the fit up front.
func standardization(ds domain.Dataset) (means, stds []float64, err error) {
	k := len(ds.CovNames)
	means = make([]float64, k)
	stds = make([]float64, k)
	n := float64(ds.Len())

	for j := 0; j < k; j++ {
		sum := 0.0
		for _, row := range ds.Rows {
			sum += row[j]
		}
		means[j] = sum / n

		ss := 0.0
		for _, row := range ds.Rows {
			d := row[j] - means[j]
			ss += d * d
		}
		stds[j] = math.Sqrt(ss / n)
		if stds[j] == 0 || math.IsNaN(stds[j]) {
			return nil, nil, fmt.Errorf("%s: degenerate covariate %q (zero variance)", AlgGAM, ds.CovNames[j])
		}
	}
	return means, stds, nil
}

func predictWith(w []float64, cov, means, stds []float64, degree int) float64 {
	features := basisRow(cov, means, stds, degree)
	eta := 0.0
	for i, f := range features {
		eta += w[i] * f
	}
	return sigmoid(eta)
}

// irls fits ridge-penalized logistic regression on the basis expansion by
// iteratively reweighted least squares.
func irls(rows [][]float64, labels []float64, means, stds []float64, opt Options) ([]float64, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("empty training set")
	}
	ones := 0
	for _, l := range labels {
		if l == domain.PresenceLabel {
			ones++
		}
	}
	if ones == 0 || ones == n {
		return nil, fmt.Errorf("degenerate training data: single class")
	}

	p := 1 + opt.BasisDegree*len(rows[0])
	xData := make([]float64, 0, n*p)
	for _, row := range rows {
		xData = append(xData, basisRow(row, means, stds, opt.BasisDegree)...)
	}
	x := mat.NewDense(n, p, xData)

	w := make([]float64, p)
	eta := make([]float64, n)
	mu := make([]float64, n)
	wt := make([]float64, n)
	z := make([]float64, n)

	for iter := 0; iter < opt.MaxIter; iter++ {
		for i := 0; i < n; i++ {
			eta[i] = 0
			for j := 0; j < p; j++ {
				eta[i] += x.At(i, j) * w[j]
			}
			mu[i] = sigmoid(eta[i])
			wt[i] = mu[i] * (1 - mu[i])
			if wt[i] < 1e-10 {
				wt[i] = 1e-10
			}
			z[i] = eta[i] + (labels[i]-mu[i])/wt[i]
		}

		// Weighted normal equations with a ridge penalty off the intercept.
		var xtwx mat.Dense
		wx := mat.NewDense(n, p, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < p; j++ {
				wx.Set(i, j, wt[i]*x.At(i, j))
			}
		}
		xtwx.Mul(x.T(), wx)
		for j := 1; j < p; j++ {
			xtwx.Set(j, j, xtwx.At(j, j)+opt.Ridge)
		}

		b := mat.NewVecDense(p, nil)
		for j := 0; j < p; j++ {
			s := 0.0
			for i := 0; i < n; i++ {
				s += x.At(i, j) * wt[i] * z[i]
			}
			b.SetVec(j, s)
		}

		var sol mat.VecDense
		if err := sol.SolveVec(&xtwx, b); err != nil {
			return nil, fmt.Errorf("singular system: %w", err)
		}

		delta := 0.0
		for j := 0; j < p; j++ {
			d := math.Abs(sol.AtVec(j) - w[j])
			if d > delta {
				delta = d
			}
			w[j] = sol.AtVec(j)
		}
		if delta < opt.Tol {
			break
		}
	}

	for _, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("fit diverged")
		}
	}
	return w, nil
}

// rocAUC computes the area under the ROC curve by the Mann-Whitney rank
// statistic, with midranks for tied scores.
func rocAUC(scores, labels []float64) float64 {
	type pair struct {
		score float64
		pos   bool
	}
	pairs := make([]pair, len(scores))
	nPos, nNeg := 0, 0
	for i, s := range scores {
		pos := labels[i] == domain.PresenceLabel
		pairs[i] = pair{score: s, pos: pos}
		if pos {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return math.NaN()
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	rankSum := 0.0
	i := 0
	for i < len(pairs) {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			j++
		}
		midrank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if pairs[k].pos {
				rankSum += midrank
			}
		}
		i = j
	}

	return (rankSum - float64(nPos)*float64(nPos+1)/2) / (float64(nPos) * float64(nNeg))
}
