package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/sdm-pipeline/internal/adapter/rastercat"
	"github.com/couchcryptid/sdm-pipeline/internal/domain"
	"github.com/couchcryptid/sdm-pipeline/internal/sdm"
)

// DiskProjector implements Projector by projecting in memory and writing
// the encoded raster to the deterministic output path.
type DiskProjector struct {
	outDir string
	name   string
	logger *slog.Logger
}

// NewDiskProjector creates a projector writing under outDir with the given
// projection name.
func NewDiskProjector(outDir, name string, logger *slog.Logger) *DiskProjector {
	return &DiskProjector{outDir: outDir, name: name, logger: logger}
}

// Project applies the model over the covariate set and persists the result.
func (d *DiskProjector) Project(ctx context.Context, m *sdm.Model, cov *domain.CovariateSet) (*sdm.Projection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	proj, err := sdm.Project(m, cov, d.name)
	if err != nil {
		return nil, err
	}

	path := sdm.ProjectionPath(d.outDir, m.Species, d.name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create projection dir: %w", err)
	}
	if err := rastercat.WriteASC(path, proj.Layer); err != nil {
		return nil, err
	}

	d.logger.Info("projection written", "path", path,
		"cells", len(proj.Layer.ValidCells()), "bands", proj.Bands)
	return proj, nil
}
