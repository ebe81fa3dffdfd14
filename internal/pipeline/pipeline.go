// Package pipeline orchestrates the five-stage species distribution run:
// fetch occurrences, load covariate layers, build the presence/background
// sample table, fit the model, project and render. Stages run strictly in
// sequence, each exactly once; any stage failure ends the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
	"github.com/couchcryptid/sdm-pipeline/internal/observability"
	"github.com/couchcryptid/sdm-pipeline/internal/sdm"
)

// Stage names used in errors and metrics labels.
const (
	StageFetch   = "fetch"
	StageLayers  = "layers"
	StageSamples = "samples"
	StageFit     = "fit"
	StageProject = "project"
	StageRender  = "render"
)

// StageError wraps a failure with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// OccurrenceSource fetches all occurrence records for a species.
type OccurrenceSource interface {
	FetchOccurrences(ctx context.Context, scientificName string) ([]domain.Occurrence, error)
}

// CovariateLoader assembles the covariate set from the raster catalog.
type CovariateLoader interface {
	LoadCovariates(ctx context.Context) (*domain.CovariateSet, error)
}

// ModelFitter fits the distribution model on a formatted dataset.
type ModelFitter interface {
	Fit(ctx context.Context, species string, ds domain.Dataset) (*sdm.Model, error)
}

// Projector applies a fitted model over a covariate domain and persists the
// probability raster.
type Projector interface {
	Project(ctx context.Context, m *sdm.Model, cov *domain.CovariateSet) (*sdm.Projection, error)
}

// Renderer draws the projection for visual validation.
type Renderer interface {
	Render(path, title string, prob *domain.Layer, presences []domain.Sample) error
}

// Params carries the run constants that are not owned by any one stage.
type Params struct {
	Species        string
	Month          time.Month
	BackgroundSize int
	Exclusion      domain.ExclusionRule
	Seed           int64
	PlotPath       string // empty disables rendering
}

// Pipeline glues the stages together.
type Pipeline struct {
	source    OccurrenceSource
	loader    CovariateLoader
	fitter    ModelFitter
	projector Projector
	renderer  Renderer
	params    Params
	logger    *slog.Logger
	metrics   *observability.Metrics
	done      atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(source OccurrenceSource, loader CovariateLoader, fitter ModelFitter,
	projector Projector, renderer Renderer, params Params,
	logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:    source,
		loader:    loader,
		fitter:    fitter,
		projector: projector,
		renderer:  renderer,
		params:    params,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.done.Load() {
		return errors.New("pipeline run has not completed yet")
	}
	return nil
}

// Run executes the five stages once. The returned error, if any, is a
// *StageError naming the failed stage.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "species", p.params.Species,
		"month", p.params.Month.String(), "background_size", p.params.BackgroundSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Stage 1: occurrence fetch.
	start := time.Now()
	recs, err := p.source.FetchOccurrences(ctx, p.params.Species)
	if err != nil {
		return &StageError{Stage: StageFetch, Err: err}
	}
	p.metrics.OccurrencesFetched.Add(float64(len(recs)))
	p.observe(StageFetch, start)

	// Stage 2: environmental layers.
	start = time.Now()
	cov, err := p.loader.LoadCovariates(ctx)
	if err != nil {
		return &StageError{Stage: StageLayers, Err: err}
	}
	p.observe(StageLayers, start)

	// Stage 3: sample table.
	start = time.Now()
	res, err := domain.BuildSamples(recs, cov.Reference(), domain.BuildParams{
		Bounds:         cov.Grid().Bounds(),
		Month:          p.params.Month,
		BackgroundSize: p.params.BackgroundSize,
		Exclusion:      p.params.Exclusion,
		Rand:           rand.New(rand.NewSource(p.params.Seed)),
	})
	if err != nil {
		return &StageError{Stage: StageSamples, Err: err}
	}
	p.recordSampleMetrics(res)
	if short := res.Shortfall(p.params.BackgroundSize); short > 0 {
		p.logger.Warn("background sample shortfall, proceeding with reduced set",
			"requested", p.params.BackgroundSize, "kept", res.Background, "short", short)
	}
	p.logger.Info("sample table built", "presence", res.Presence, "background", res.Background,
		"excluded", res.ExcludedPresences)
	p.observe(StageSamples, start)

	// Stage 4: model fit.
	start = time.Now()
	ds, err := domain.FormatDataset(res.Table, cov)
	if err != nil {
		return &StageError{Stage: StageFit, Err: err}
	}
	model, err := p.fitter.Fit(ctx, p.params.Species, ds)
	if err != nil {
		return &StageError{Stage: StageFit, Err: err}
	}
	p.logger.Info("model fitted", "algorithm", model.Algorithm,
		"runs", len(model.Evals), "mean_score", model.MeanScore())
	p.observe(StageFit, start)

	// Stage 5: projection and rendering.
	start = time.Now()
	proj, err := p.projector.Project(ctx, model, cov)
	if err != nil {
		return &StageError{Stage: StageProject, Err: err}
	}
	p.metrics.CellsProjected.Add(float64(len(proj.Layer.ValidCells())))
	p.observe(StageProject, start)

	if p.renderer != nil && p.params.PlotPath != "" {
		start = time.Now()
		title := fmt.Sprintf("%s occurrence probability (%s)", p.params.Species, proj.Name)
		if err := p.renderer.Render(p.params.PlotPath, title, proj.Layer, res.Table); err != nil {
			return &StageError{Stage: StageRender, Err: err}
		}
		p.observe(StageRender, start)
	}

	p.done.Store(true)
	p.logger.Info("pipeline complete", "projection", proj.Name, "bands", len(proj.Bands))
	return nil
}

func (p *Pipeline) observe(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) recordSampleMetrics(res domain.BuildResult) {
	p.metrics.OccurrencesKept.Add(float64(res.Presence))
	p.metrics.BackgroundRequested.Add(float64(p.params.BackgroundSize))
	p.metrics.BackgroundKept.Add(float64(res.Background))
	p.metrics.SamplesDropped.WithLabelValues("collision").Add(float64(res.DroppedCollision))
	p.metrics.SamplesDropped.WithLabelValues("nodata").Add(float64(res.DroppedNoData))
	p.metrics.SamplesDropped.WithLabelValues("duplicate").Add(float64(res.DroppedDuplicate))
	p.metrics.SamplesDropped.WithLabelValues("excluded").Add(float64(res.ExcludedPresences))
}
