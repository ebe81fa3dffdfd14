package sdm

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
	"github.com/couchcryptid/sdm-pipeline/internal/observability"
)

func TestSpeciesToken(t *testing.T) {
	assert.Equal(t, "Centropristis.striata", SpeciesToken("Centropristis striata"))
	assert.Equal(t, "Genus.species.subsp", SpeciesToken("Genus  species subsp"))
	assert.Equal(t, "Solo", SpeciesToken("Solo"))
}

func TestProjectionPath(t *testing.T) {
	got := ProjectionPath("data/out", "Centropristis striata", "current")
	want := filepath.Join("data", "out", "Centropristis.striata", "proj_current",
		"proj_current_Centropristis.striata.asc")
	assert.Equal(t, want, got)
}

func TestBandName(t *testing.T) {
	assert.Equal(t, "Centropristis.striata_AllData_RUN2_GAM",
		BandName("Centropristis striata", 2, AlgGAM))
}

func trainedModel(t *testing.T) *Model {
	t.Helper()
	f := NewFitter(testFitConfig(), testLogger(), observability.NewMetricsForTesting())
	m, err := f.Fit(context.Background(), "Centropristis striata", separableDataset(200, 5))
	require.NoError(t, err)
	return m
}

func projectionCovariates(t *testing.T) *domain.CovariateSet {
	t.Helper()
	g := domain.Grid{X0: -80, Y0: 30, Dx: 0.25, Dy: 0.25, Nx: 5, Ny: 5}
	sst := domain.NewLayer(g, "Jun 2023")
	chl := domain.NewLayer(g, "Jun 2023")
	for iy := 0; iy < g.Ny; iy++ {
		for ix := 0; ix < g.Nx; ix++ {
			sst.Set(ix, iy, 10+float64(ix))
			chl.Set(ix, iy, 0.1+0.1*float64(iy))
		}
	}
	// One masked cell survives projection as no-data.
	sst.Set(2, 2, math.NaN())
	chl.Set(2, 2, math.NaN())

	cov, err := domain.NewCovariateSet([]string{"sst", "chlor_a"}, []*domain.Layer{sst, chl})
	require.NoError(t, err)
	return cov
}

func TestProject(t *testing.T) {
	frozen := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	defer domain.SetClock(nil)

	m := trainedModel(t)
	cov := projectionCovariates(t)

	proj, err := Project(m, cov, "current")
	require.NoError(t, err)

	assert.Equal(t, "Centropristis striata", proj.Species)
	assert.Equal(t, "current", proj.Name)
	assert.True(t, proj.CreatedAt.Equal(frozen))
	require.Len(t, proj.Bands, 3)
	assert.Equal(t, "Centropristis.striata_AllData_RUN1_GAM", proj.Bands[0])

	g := cov.Grid()
	for iy := 0; iy < g.Ny; iy++ {
		for ix := 0; ix < g.Nx; ix++ {
			v := proj.Layer.At(ix, iy)
			if ix == 2 && iy == 2 {
				assert.True(t, math.IsNaN(v), "masked cell stays no-data")
				continue
			}
			require.False(t, math.IsNaN(v), "cell (%d,%d)", ix, iy)
			assert.Equal(t, v, math.Trunc(v), "encoded value is integral")
			p := domain.DecodeProb(v)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
	}
}

func TestProject_CovariateMismatch(t *testing.T) {
	m := trainedModel(t)
	g := domain.Grid{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 2, Ny: 2}

	t.Run("wrong count", func(t *testing.T) {
		cov, err := domain.NewCovariateSet([]string{"sst"}, []*domain.Layer{domain.NewLayer(g, "x")})
		require.NoError(t, err)
		_, err = Project(m, cov, "current")
		require.Error(t, err)
	})

	t.Run("wrong order", func(t *testing.T) {
		cov, err := domain.NewCovariateSet([]string{"chlor_a", "sst"},
			[]*domain.Layer{domain.NewLayer(g, "x"), domain.NewLayer(g, "y")})
		require.NoError(t, err)
		_, err = Project(m, cov, "current")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chlor_a")
	})
}
