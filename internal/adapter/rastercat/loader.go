package rastercat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
	"github.com/couchcryptid/sdm-pipeline/internal/observability"
)

// LoaderConfig selects which catalog slices become model covariates.
type LoaderConfig struct {
	Root      string
	Variables []string // covariate order; the first is the reference variable
	Period    string
	From, To  time.Time  // inclusive date range
	Month     time.Month // the slice used as the model covariate
}

// Loader assembles the covariate set for a run: scan the catalog, load the
// selected stacks, propagate no-data across variables, and pick the target
// month's layer per variable.
type Loader struct {
	cfg     LoaderConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLoader creates a covariate loader over the catalog root.
func NewLoader(cfg LoaderConfig, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{cfg: cfg, logger: logger, metrics: metrics}
}

// LoadStack reads the selected entries as an ordered stack.
func LoadStack(variable string, entries []Entry) (*domain.Stack, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("load stack %s: no catalog entries selected", variable)
	}
	layers := make([]*domain.Layer, len(entries))
	for i, e := range entries {
		l, err := ReadASC(e.Path, e.Label())
		if err != nil {
			return nil, fmt.Errorf("load stack %s: %w", variable, err)
		}
		layers[i] = l
	}
	return domain.NewStack(variable, layers...)
}

// LoadCovariates implements the environmental-layer stage. The first
// configured variable is authoritative for the valid domain: its no-data
// cells are forced onto every other variable, and the reverse, so all
// covariates agree cell for cell.
func (ld *Loader) LoadCovariates(ctx context.Context) (*domain.CovariateSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := Scan(ld.cfg.Root, ld.logger)
	if err != nil {
		return nil, err
	}

	stacks := make([]*domain.Stack, len(ld.cfg.Variables))
	for i, variable := range ld.cfg.Variables {
		selected := Filter(entries, variable, ld.cfg.Period, ld.cfg.From, ld.cfg.To)
		if len(selected) == 0 {
			return nil, fmt.Errorf("no %s/%s layers in catalog %s for %s..%s",
				variable, ld.cfg.Period, ld.cfg.Root,
				ld.cfg.From.Format("2006-01"), ld.cfg.To.Format("2006-01"))
		}
		stack, err := LoadStack(variable, selected)
		if err != nil {
			return nil, err
		}
		stacks[i] = stack
		ld.metrics.LayersLoaded.WithLabelValues(variable).Add(float64(len(stack.Layers)))
		ld.logger.Info("stack loaded", "variable", variable, "layers", len(stack.Layers),
			"grid", fmt.Sprintf("%dx%d", stack.Grid().Nx, stack.Grid().Ny))
	}

	// Cross-variable masking in both directions keeps the stacks
	// co-registered (e.g. lake cells present in chlorophyll but not SST).
	for i := 1; i < len(stacks); i++ {
		n, err := stacks[i].MaskBy(stacks[0])
		if err != nil {
			return nil, err
		}
		m, err := stacks[0].MaskBy(stacks[i])
		if err != nil {
			return nil, err
		}
		ld.metrics.CellsMasked.Add(float64(n + m))
		if n+m > 0 {
			ld.logger.Info("cross-variable mask applied",
				"variables", fmt.Sprintf("%s<->%s", stacks[0].Variable, stacks[i].Variable),
				"cells", n+m)
		}
	}

	layers := make([]*domain.Layer, len(stacks))
	for i, stack := range stacks {
		l := layerForMonth(stack, ld.cfg.Month)
		if l == nil {
			return nil, fmt.Errorf("stack %s has no %s layer", stack.Variable, ld.cfg.Month)
		}
		layers[i] = l
	}

	return domain.NewCovariateSet(ld.cfg.Variables, layers)
}

// layerForMonth returns the first layer whose label month matches.
func layerForMonth(stack *domain.Stack, month time.Month) *domain.Layer {
	for _, l := range stack.Layers {
		t, err := time.Parse("Jan 2006", l.Label)
		if err != nil {
			continue
		}
		if t.Month() == month {
			return l
		}
	}
	return nil
}
