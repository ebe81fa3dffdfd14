// Package sdm fits and projects presence/background species distribution
// models. The single supported algorithm is a logistic additive model on a
// per-covariate polynomial basis, labeled GAM after the modeling convention
// the pipeline follows.
package sdm

// Algorithm and metric identifiers.
const (
	AlgGAM    = "GAM"
	MetricROC = "ROC"
)

// Options holds algorithm hyperparameters. The zero value is not usable;
// start from DefaultOptions.
type Options struct {
	BasisDegree int     // polynomial degree of each covariate smooth
	Ridge       float64 // L2 penalty on basis coefficients (not the intercept)
	MaxIter     int     // IRLS iteration cap
	Tol         float64 // coefficient-change convergence threshold
}

// DefaultOptions returns the documented defaults used by the workflow.
func DefaultOptions() Options {
	return Options{
		BasisDegree: 2,
		Ridge:       1e-4,
		MaxIter:     50,
		Tol:         1e-8,
	}
}

// FitConfig configures a fitting invocation.
type FitConfig struct {
	Algorithms []string // algorithm set; only AlgGAM is known
	NbRunEval  int      // number of random-split evaluation runs
	DataSplit  int      // train percentage of each class, e.g. 70
	Metric     string   // evaluation metric; only MetricROC is known
	Seed       int64
	Options    Options
}
