package rastercat

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
	"github.com/couchcryptid/sdm-pipeline/internal/observability"
)

var loaderGrid = domain.Grid{X0: -80, Y0: 30, Dx: 0.25, Dy: 0.25, Nx: 6, Ny: 6}

// writeCatalogFile writes one synthetic raster to dir following the catalog
// naming convention. holes lists cells left as no-data.
func writeCatalogFile(t *testing.T, dir, variable, month string, fill float64, holes ...[2]int) {
	t.Helper()
	l := domain.NewLayer(loaderGrid, "")
	for i := range l.Cells {
		l.Cells[i] = fill
	}
	for _, h := range holes {
		l.Set(h[0], h[1], math.NaN())
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_monthly_%s.asc", variable, month))
	require.NoError(t, WriteASC(path, l))
}

func testLoader(t *testing.T, root string) *Loader {
	t.Helper()
	cfg := LoaderConfig{
		Root:      root,
		Variables: []string{"sst", "chlor_a"},
		Period:    "monthly",
		From:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		Month:     time.June,
	}
	return NewLoader(cfg, discardLogger(), observability.NewMetricsForTesting())
}

func TestLoader_LoadCovariates(t *testing.T) {
	dir := t.TempDir()
	// SST has a hole at (2,2) that chlorophyll does not, and vice versa at
	// (4,4). Cross-masking must propagate both.
	writeCatalogFile(t, dir, "sst", "2023-06", 15, [2]int{2, 2})
	writeCatalogFile(t, dir, "sst", "2023-07", 18, [2]int{2, 2})
	writeCatalogFile(t, dir, "chlor_a", "2023-06", 0.5, [2]int{4, 4})
	writeCatalogFile(t, dir, "chlor_a", "2023-07", 0.7, [2]int{4, 4})

	cov, err := testLoader(t, dir).LoadCovariates(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"sst", "chlor_a"}, cov.Names)
	assert.Equal(t, loaderGrid, cov.Grid())

	ref := cov.Reference()
	assert.Equal(t, "Jun 2023", ref.Label)
	assert.Equal(t, 15.0, ref.At(0, 0), "June slice selected, not July")

	// Both holes exist in both covariates after masking.
	for _, l := range cov.Layers {
		assert.True(t, math.IsNaN(l.At(2, 2)), "%s missing SST hole", l.Label)
		assert.True(t, math.IsNaN(l.At(4, 4)), "%s missing chlorophyll hole", l.Label)
	}
	assert.Len(t, ref.ValidCells(), loaderGrid.Nx*loaderGrid.Ny-2)
}

func TestLoader_LoadCovariates_MissingVariable(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "sst", "2023-06", 15)

	_, err := testLoader(t, dir).LoadCovariates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chlor_a")
}

func TestLoader_LoadCovariates_MissingMonth(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "sst", "2023-07", 18)
	writeCatalogFile(t, dir, "chlor_a", "2023-07", 0.7)

	_, err := testLoader(t, dir).LoadCovariates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "June")
}

func TestLoader_LoadCovariates_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testLoader(t, t.TempDir()).LoadCovariates(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadStack_Empty(t *testing.T) {
	_, err := LoadStack("sst", nil)
	require.Error(t, err)
}
