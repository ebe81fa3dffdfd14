package sdm

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
	"github.com/couchcryptid/sdm-pipeline/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFitConfig() FitConfig {
	return FitConfig{
		Algorithms: []string{AlgGAM},
		NbRunEval:  3,
		DataSplit:  70,
		Metric:     MetricROC,
		Seed:       42,
		Options:    DefaultOptions(),
	}
}

// separableDataset builds a synthetic two-covariate dataset where presences
// sit at warmer, greener cells than the background, with enough overlap
// that a perfect score is not expected.
func separableDataset(n int, seed int64) domain.Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := domain.Dataset{CovNames: []string{"sst", "chlor_a"}}
	for i := 0; i < n; i++ {
		label := float64(i % 2)
		sst := 12 + rng.NormFloat64()*2
		chl := 0.3 + rng.NormFloat64()*0.2
		if label == domain.PresenceLabel {
			sst += 4
			chl += 0.3
		}
		ds.Labels = append(ds.Labels, label)
		ds.Lons = append(ds.Lons, -70+rng.Float64())
		ds.Lats = append(ds.Lats, 40+rng.Float64())
		ds.Rows = append(ds.Rows, []float64{sst, chl})
	}
	return ds
}

func TestFitter_Fit(t *testing.T) {
	f := NewFitter(testFitConfig(), testLogger(), observability.NewMetricsForTesting())
	ds := separableDataset(400, 7)

	m, err := f.Fit(context.Background(), "Centropristis striata", ds)
	require.NoError(t, err)

	assert.Equal(t, "Centropristis striata", m.Species)
	assert.Equal(t, AlgGAM, m.Algorithm)
	assert.Equal(t, []string{"sst", "chlor_a"}, m.CovNames)
	require.Len(t, m.Evals, 3)

	for run := 1; run <= 3; run++ {
		e, ok := m.Evaluation(MetricROC, run, AlgGAM)
		require.True(t, ok, "run %d", run)
		assert.Greater(t, e.Score, 0.8, "run %d separates the classes", run)
		assert.LessOrEqual(t, e.Score, 1.0)
		assert.InDelta(t, 280, e.TrainN, 2)
		assert.InDelta(t, 120, e.TestN, 2)
	}
	assert.Greater(t, m.MeanScore(), 0.8)

	_, ok := m.Evaluation(MetricROC, 4, AlgGAM)
	assert.False(t, ok)

	// The final refit predicts higher probability for a clearly warm, green
	// cell than for a cold, clear one.
	warm := m.PredictRow([]float64{17, 0.7})
	cold := m.PredictRow([]float64{10, 0.1})
	assert.Greater(t, warm, cold)
	assert.GreaterOrEqual(t, cold, 0.0)
	assert.LessOrEqual(t, warm, 1.0)
}

func TestFitter_Fit_Deterministic(t *testing.T) {
	ds := separableDataset(200, 9)

	m1, err := NewFitter(testFitConfig(), testLogger(), observability.NewMetricsForTesting()).
		Fit(context.Background(), "x", ds)
	require.NoError(t, err)
	m2, err := NewFitter(testFitConfig(), testLogger(), observability.NewMetricsForTesting()).
		Fit(context.Background(), "x", ds)
	require.NoError(t, err)

	assert.Equal(t, m1.Evals, m2.Evals)
}

func TestFitter_Fit_UnknownAlgorithm(t *testing.T) {
	cfg := testFitConfig()
	cfg.Algorithms = []string{"MAXENT"}
	f := NewFitter(cfg, testLogger(), observability.NewMetricsForTesting())

	_, err := f.Fit(context.Background(), "x", separableDataset(100, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAXENT")
}

func TestFitter_Fit_UnknownMetric(t *testing.T) {
	cfg := testFitConfig()
	cfg.Metric = "TSS"
	f := NewFitter(cfg, testLogger(), observability.NewMetricsForTesting())

	_, err := f.Fit(context.Background(), "x", separableDataset(100, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TSS")
}

func TestFitter_Fit_TooFewRows(t *testing.T) {
	ds := domain.Dataset{
		CovNames: []string{"sst"},
		Labels:   []float64{1, 0, 0},
		Rows:     [][]float64{{15}, {10}, {11}},
		Lons:     []float64{0, 0, 0},
		Lats:     []float64{0, 0, 0},
	}
	f := NewFitter(testFitConfig(), testLogger(), observability.NewMetricsForTesting())

	_, err := f.Fit(context.Background(), "x", ds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 rows per class")
}

func TestFitter_Fit_DegenerateCovariate(t *testing.T) {
	ds := separableDataset(100, 3)
	for i := range ds.Rows {
		ds.Rows[i][1] = 0.5 // constant chlorophyll
	}
	f := NewFitter(testFitConfig(), testLogger(), observability.NewMetricsForTesting())

	_, err := f.Fit(context.Background(), "x", ds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chlor_a")
}

func TestFitter_Fit_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFitter(testFitConfig(), testLogger(), observability.NewMetricsForTesting())

	_, err := f.Fit(ctx, "x", separableDataset(100, 1))
	require.ErrorIs(t, err, context.Canceled)
}

func TestStratifiedSplit_KeepsBothClasses(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	presence := []int{0, 1}
	background := []int{2, 3, 4}

	train, test := stratifiedSplit(presence, background, 70, rng)

	assert.Len(t, train, 3)
	assert.Len(t, test, 2)
	hasIn := func(set []int, members []int) bool {
		for _, m := range members {
			for _, s := range set {
				if s == m {
					return true
				}
			}
		}
		return false
	}
	assert.True(t, hasIn(train, presence))
	assert.True(t, hasIn(test, presence))
	assert.True(t, hasIn(train, background))
	assert.True(t, hasIn(test, background))
}

func TestRocAUC(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		labels []float64
		want   float64
	}{
		{"perfect ranking", []float64{0.9, 0.8, 0.2, 0.1}, []float64{1, 1, 0, 0}, 1},
		{"inverted ranking", []float64{0.1, 0.2, 0.8, 0.9}, []float64{1, 1, 0, 0}, 0},
		{"all tied", []float64{0.5, 0.5, 0.5, 0.5}, []float64{1, 1, 0, 0}, 0.5},
		{"partial", []float64{0.9, 0.4, 0.6, 0.1}, []float64{1, 1, 0, 0}, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, rocAUC(tt.scores, tt.labels), 1e-12)
		})
	}
}

func TestRocAUC_SingleClass(t *testing.T) {
	assert.True(t, math.IsNaN(rocAUC([]float64{0.5, 0.6}, []float64{1, 1})))
}
